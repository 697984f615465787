// Package lookup resolves values from the target account at synthesis time.
//
// Resolved values are cached in a context file next to the config so later
// synthesis runs are deterministic and need no AWS credentials.
package lookup

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
)

// DefaultContextFile is the cache file written beside the config.
const DefaultContextFile = "rds-scheduler.context.json"

// ErrNotFound is returned when a parameter does not exist.
var ErrNotFound = errors.New("parameter not found")

// Provider resolves SSM string parameters.
type Provider interface {
	StringParameter(ctx context.Context, name string) (string, error)
}

// ssmAPI is the subset of the SSM client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSM reads parameters from Systems Manager Parameter Store.
type SSM struct {
	client ssmAPI
}

// NewSSM creates a provider using the default credential chain in region.
func NewSSM(ctx context.Context, region string) (*SSM, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	return &SSM{client: ssm.NewFromConfig(cfg)}, nil
}

// StringParameter implements Provider.
func (s *SSM) StringParameter(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{Name: aws.String(name)})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", errors.WithHint(
				errors.Wrapf(ErrNotFound, "%s", name),
				"create it with: aws ssm put-parameter --type String --name "+name+" --value <value>",
			)
		}
		return "", errors.Wrapf(err, "reading SSM parameter %s", name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.Wrapf(ErrNotFound, "%s has no value", name)
	}
	return *out.Parameter.Value, nil
}

// Lazy creates an SSM provider on first use, so a fully cached synthesis
// never loads AWS credentials.
type Lazy struct {
	Region string

	once sync.Once
	ssm  *SSM
	err  error
}

// StringParameter implements Provider.
func (l *Lazy) StringParameter(ctx context.Context, name string) (string, error) {
	l.once.Do(func() {
		l.ssm, l.err = NewSSM(ctx, l.Region)
	})
	if l.err != nil {
		return "", l.err
	}
	return l.ssm.StringParameter(ctx, name)
}

// Dummy returns placeholder values without contacting AWS.
type Dummy struct{}

// StringParameter implements Provider.
func (Dummy) StringParameter(_ context.Context, name string) (string, error) {
	return DummyValue(name), nil
}

// DummyValue is the placeholder Dummy returns for name.
func DummyValue(name string) string {
	return "dummy-value-for-" + name
}

// Cache serves lookups from a context file and falls back to another
// provider on a miss.
type Cache struct {
	path   string
	env    rdsscheduler.Environment
	next   Provider
	values map[string]string
	dirty  bool
	logger *zap.SugaredLogger
}

// NewCache loads the context file at path, if any. Misses go to next.
func NewCache(path string, env rdsscheduler.Environment, next Provider, logger *zap.SugaredLogger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Cache{
		path:   path,
		env:    env,
		next:   next,
		values: make(map[string]string),
		logger: logger,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if err := json.Unmarshal(data, &c.values); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "parsing %s", path),
			"delete the file to look values up again",
		)
	}
	return c, nil
}

// Key is the context key of an SSM parameter in env.
func Key(env rdsscheduler.Environment, name string) string {
	return "ssm:account=" + env.Account + ":parameterName=" + name + ":region=" + env.Region
}

// StringParameter implements Provider.
func (c *Cache) StringParameter(ctx context.Context, name string) (string, error) {
	key := Key(c.env, name)
	if v, ok := c.values[key]; ok {
		return v, nil
	}

	v, err := c.next.StringParameter(ctx, name)
	if err != nil {
		return "", err
	}
	if _, isDummy := c.next.(Dummy); isDummy {
		c.logger.Warnw("using dummy lookup value", "parameter", name)
		return v, nil
	}

	c.logger.Infow("looked up parameter", "parameter", name, "account", c.env.Account, "region", c.env.Region)
	c.values[key] = v
	c.dirty = true
	return v, nil
}

// Save writes new lookups back to the context file.
func (c *Cache) Save() error {
	if !c.dirty {
		return nil
	}
	data, err := json.MarshalIndent(c.values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "serializing lookup context")
	}
	if err := os.WriteFile(c.path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", c.path)
	}
	c.dirty = false
	return nil
}
