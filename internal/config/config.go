// Package config loads rds-scheduler settings from a config file and
// RDS_SCHEDULER_* environment variables.
package config

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lex00/cloudformation-schema-go/enums"
	"github.com/spf13/viper"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/schedule"
)

// EnvPrefix prefixes environment overrides, e.g. RDS_SCHEDULER_INSTANCE_ID.
const EnvPrefix = "RDS_SCHEDULER"

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "rds-scheduler.yaml"

// ErrInvalid is returned when the configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full synthesizer configuration.
type Config struct {
	Account     string         `mapstructure:"account"`
	Region      string         `mapstructure:"region"`
	InstanceID  string         `mapstructure:"instance_id"`
	InstanceARN string         `mapstructure:"instance_arn"`
	ContextFile string         `mapstructure:"context_file"`
	Schedule    ScheduleConfig `mapstructure:"schedule"`
	Function    FunctionConfig `mapstructure:"function"`
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
}

// ScheduleConfig holds the six-field cron expressions, evaluated in UTC.
type ScheduleConfig struct {
	Stop  string `mapstructure:"stop"`
	Start string `mapstructure:"start"`
}

// FunctionConfig configures both scheduled functions.
type FunctionConfig struct {
	Runtime        string `mapstructure:"runtime"`
	Handler        string `mapstructure:"handler"`
	Architecture   string `mapstructure:"architecture"`
	MemorySize     int    `mapstructure:"memory_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PipelineConfig configures the delivery pipeline.
type PipelineConfig struct {
	Name             string `mapstructure:"name"`
	DeploymentStack  string `mapstructure:"deployment_stack"`
	Branch           string `mapstructure:"branch"`
	TokenSecret      string `mapstructure:"token_secret"`
	TokenField       string `mapstructure:"token_field"`
	OwnerParameter   string `mapstructure:"owner_parameter"`
	RepoParameter    string `mapstructure:"repo_parameter"`
	Webhook          bool   `mapstructure:"webhook"`
	AdminPermissions bool   `mapstructure:"admin_permissions"`
	BuildImage       string `mapstructure:"build_image"`
	GoVersion        string `mapstructure:"go_version"`
}

// SetDefaults configures default values for every option. Keys without a
// sensible default are registered empty so environment overrides bind.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("account", "")
	v.SetDefault("region", "")
	v.SetDefault("instance_id", "")
	v.SetDefault("instance_arn", "")
	v.SetDefault("context_file", "rds-scheduler.context.json")

	v.SetDefault("schedule.stop", schedule.DefaultStopExpression)
	v.SetDefault("schedule.start", schedule.DefaultStartExpression)

	fn := schedule.DefaultFunctionSettings()
	v.SetDefault("function.runtime", fn.Runtime)
	v.SetDefault("function.handler", fn.Handler)
	v.SetDefault("function.architecture", fn.Architecture)
	v.SetDefault("function.memory_size", fn.MemorySize)
	v.SetDefault("function.timeout_seconds", int(fn.Timeout.Seconds()))

	v.SetDefault("pipeline.name", "automatic-aws-db-shutdown-cdk-pipeline")
	v.SetDefault("pipeline.deployment_stack", "LambdaDeploymentStack")
	v.SetDefault("pipeline.branch", "master")
	v.SetDefault("pipeline.token_secret", "/automatic-aws-db-shutdown-cdk/github/token")
	v.SetDefault("pipeline.token_field", "github-token")
	v.SetDefault("pipeline.owner_parameter", "/automatic-aws-db-shutdown-cdk/github/owner")
	v.SetDefault("pipeline.repo_parameter", "/automatic-aws-db-shutdown-cdk/github/repo")
	v.SetDefault("pipeline.webhook", true)
	v.SetDefault("pipeline.admin_permissions", true)
	v.SetDefault("pipeline.build_image", "aws/codebuild/standard:7.0")
	v.SetDefault("pipeline.go_version", "1.24")
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the config file at path, or rds-scheduler.yaml/.toml in the
// working directory when path is empty, and validates the result. A missing
// default file is not an error; environment variables may supply everything.
func Load(path string) (*Config, error) {
	v := NewViper()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// ReadFile reads the config file at path into v, or the default file in the
// working directory when path is empty.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading config file %s", path)
		}
		return nil
	}

	v.SetConfigName("rds-scheduler")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "reading config file")
		}
	}
	return nil
}

// LoadWithViper unmarshals and validates configuration from v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Env is the deployment environment of both stacks.
func (c *Config) Env() rdsscheduler.Environment {
	return rdsscheduler.Environment{Account: c.Account, Region: c.Region}
}

// Environ returns the environment variables that reproduce the functions
// stack settings of c under NewViper.
func (c *Config) Environ() map[string]string {
	settings := map[string]string{
		"account":                  c.Account,
		"region":                   c.Region,
		"instance_id":              c.InstanceID,
		"instance_arn":             c.InstanceARN,
		"schedule.stop":            c.Schedule.Stop,
		"schedule.start":           c.Schedule.Start,
		"function.runtime":         c.Function.Runtime,
		"function.handler":         c.Function.Handler,
		"function.architecture":    c.Function.Architecture,
		"function.memory_size":     strconv.Itoa(c.Function.MemorySize),
		"function.timeout_seconds": strconv.Itoa(c.Function.TimeoutSeconds),
	}
	env := make(map[string]string, len(settings))
	for key, value := range settings {
		env[EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = value
	}
	return env
}

var (
	accountPattern  = regexp.MustCompile(`^\d{12}$`)
	regionPattern   = regexp.MustCompile(`^[a-z]{2}(-gov|-iso[a-z]?)?-[a-z]+-\d+$`)
	instancePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]{0,62}$`)
)

func invalid(hint, format string, args ...any) error {
	return errors.WithHint(errors.Wrapf(ErrInvalid, format, args...), hint)
}

// Validate checks that the configuration can be synthesized.
func (c *Config) Validate() error {
	if !accountPattern.MatchString(c.Account) {
		return invalid("set account to a 12-digit AWS account ID", "account %q is not a 12-digit account ID", c.Account)
	}
	if !regionPattern.MatchString(c.Region) {
		return invalid("set region, e.g. us-east-1", "region %q is not an AWS region", c.Region)
	}
	if !instancePattern.MatchString(c.InstanceID) || strings.Contains(c.InstanceID, "--") || strings.HasSuffix(c.InstanceID, "-") {
		return invalid("set instance_id to the DB instance identifier", "instance_id %q is not a DB instance identifier", c.InstanceID)
	}
	if err := c.validateARN(); err != nil {
		return err
	}

	stop, err := schedule.ParseExpression(c.Schedule.Stop)
	if err != nil {
		return errors.Wrap(errors.Mark(err, ErrInvalid), "schedule.stop")
	}
	start, err := schedule.ParseExpression(c.Schedule.Start)
	if err != nil {
		return errors.Wrap(errors.Mark(err, ErrInvalid), "schedule.start")
	}
	if stop.Equivalent(start) {
		return invalid("stop and start at different times",
			"schedule.stop %q and schedule.start %q are the same schedule", c.Schedule.Stop, c.Schedule.Start)
	}

	if c.Function.Runtime == "" {
		return invalid("set function.runtime, e.g. provided.al2023", "function.runtime must not be empty")
	}
	if err := checkEnum("Runtime", c.Function.Runtime); err != nil {
		return err
	}
	if c.Function.Architecture != "arm64" && c.Function.Architecture != "x86_64" {
		return invalid("use arm64 or x86_64", "function.architecture %q is not supported", c.Function.Architecture)
	}
	if c.Function.Handler == "" {
		return invalid("set function.handler, e.g. bootstrap", "function.handler must not be empty")
	}
	if c.Function.MemorySize < 128 || c.Function.MemorySize > 10240 {
		return invalid("use 128-10240 MB", "function.memory_size must be 128-10240, got %d", c.Function.MemorySize)
	}
	if c.Function.TimeoutSeconds < 1 || c.Function.TimeoutSeconds > 900 {
		return invalid("use 1-900 seconds", "function.timeout_seconds must be 1-900, got %d", c.Function.TimeoutSeconds)
	}

	if c.Pipeline.Name == "" || c.Pipeline.DeploymentStack == "" || c.Pipeline.Branch == "" {
		return invalid("leave pipeline.name, deployment_stack and branch unset for defaults", "pipeline name, deployment stack and branch must not be empty")
	}
	if c.Pipeline.OwnerParameter == "" || c.Pipeline.RepoParameter == "" || c.Pipeline.TokenSecret == "" {
		return invalid("leave pipeline lookups unset for defaults", "pipeline owner, repo and token references must not be empty")
	}
	if c.ContextFile == "" {
		return invalid("leave context_file unset for the default", "context_file must not be empty")
	}
	return nil
}

// validateARN requires an RDS db ARN for the configured instance, account
// and region.
func (c *Config) validateARN() error {
	hint := "use arn:aws:rds:" + c.Region + ":" + c.Account + ":db:" + c.InstanceID
	if strings.Contains(c.InstanceARN, "*") {
		return invalid(hint, "instance_arn %q must not contain wildcards", c.InstanceARN)
	}
	parts := strings.SplitN(c.InstanceARN, ":", 7)
	if len(parts) != 7 || parts[0] != "arn" || parts[2] != "rds" || parts[5] != "db" {
		return invalid(hint, "instance_arn %q is not an RDS db ARN", c.InstanceARN)
	}
	if parts[3] != c.Region || parts[4] != c.Account {
		return invalid(hint, "instance_arn %q is not in %s/%s", c.InstanceARN, c.Account, c.Region)
	}
	if parts[6] != c.InstanceID {
		return invalid(hint, "instance_arn %q does not name instance %s", c.InstanceARN, c.InstanceID)
	}
	return nil
}

// checkEnum validates a Lambda property against the CloudFormation enums
// when the schema knows the property.
func checkEnum(property, value string) error {
	name := enums.GetEnumForProperty("lambda", property)
	if name == "" {
		return nil
	}
	if !enums.IsValidValue("lambda", name, value) {
		return invalid("use a Lambda runtime identifier such as provided.al2023",
			"function.%s %q is not a valid value", strings.ToLower(property), value)
	}
	return nil
}

// WriteSample writes a starter config to path. It fails if the file exists.
func WriteSample(path string, account, region, instanceID string) error {
	v := viper.New()
	SetDefaults(v)
	v.Set("account", account)
	v.Set("region", region)
	v.Set("instance_id", instanceID)
	v.Set("instance_arn", "arn:aws:rds:"+region+":"+account+":db:"+instanceID)
	if err := v.SafeWriteConfigAs(path); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
