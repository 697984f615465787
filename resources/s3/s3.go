// Package s3 provides CloudFormation resource types for AWS::S3.
package s3

// Bucket represents AWS::S3::Bucket.
//
// See: https://docs.aws.amazon.com/AWSCloudFormation/latest/UserGuide/aws-resource-s3-bucket.html
type Bucket struct {
	BucketEncryption               *Bucket_BucketEncryption               `json:"BucketEncryption,omitempty"`
	BucketName                     any                                    `json:"BucketName,omitempty"`
	PublicAccessBlockConfiguration *Bucket_PublicAccessBlockConfiguration `json:"PublicAccessBlockConfiguration,omitempty"`
	VersioningConfiguration        *Bucket_VersioningConfiguration        `json:"VersioningConfiguration,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r Bucket) ResourceType() string {
	return "AWS::S3::Bucket"
}

// Bucket_BucketEncryption represents AWS::S3::Bucket.BucketEncryption.
type Bucket_BucketEncryption struct {
	ServerSideEncryptionConfiguration []Bucket_ServerSideEncryptionRule `json:"ServerSideEncryptionConfiguration,omitempty"`
}

// Bucket_ServerSideEncryptionRule represents AWS::S3::Bucket.ServerSideEncryptionRule.
type Bucket_ServerSideEncryptionRule struct {
	ServerSideEncryptionByDefault *Bucket_ServerSideEncryptionByDefault `json:"ServerSideEncryptionByDefault,omitempty"`
}

// Bucket_ServerSideEncryptionByDefault represents AWS::S3::Bucket.ServerSideEncryptionByDefault.
type Bucket_ServerSideEncryptionByDefault struct {
	SSEAlgorithm   any `json:"SSEAlgorithm,omitempty"`
	KMSMasterKeyID any `json:"KMSMasterKeyID,omitempty"`
}

// Bucket_PublicAccessBlockConfiguration represents AWS::S3::Bucket.PublicAccessBlockConfiguration.
type Bucket_PublicAccessBlockConfiguration struct {
	BlockPublicAcls       bool `json:"BlockPublicAcls,omitempty"`
	BlockPublicPolicy     bool `json:"BlockPublicPolicy,omitempty"`
	IgnorePublicAcls      bool `json:"IgnorePublicAcls,omitempty"`
	RestrictPublicBuckets bool `json:"RestrictPublicBuckets,omitempty"`
}

// Bucket_VersioningConfiguration represents AWS::S3::Bucket.VersioningConfiguration.
type Bucket_VersioningConfiguration struct {
	Status any `json:"Status,omitempty"`
}

// BucketPolicy represents AWS::S3::BucketPolicy.
//
// See: https://docs.aws.amazon.com/AWSCloudFormation/latest/UserGuide/aws-resource-s3-bucketpolicy.html
type BucketPolicy struct {
	Bucket         any `json:"Bucket,omitempty"`
	PolicyDocument any `json:"PolicyDocument,omitempty"`
}

// ResourceType returns the CloudFormation resource type.
func (r BucketPolicy) ResourceType() string {
	return "AWS::S3::BucketPolicy"
}
