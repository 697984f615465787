package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

// AWS_PARTITION returns the partition the resource is in (aws, aws-cn, aws-us-gov).
var AWS_PARTITION = intrinsics.AWS_PARTITION
