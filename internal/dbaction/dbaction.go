// Package dbaction is the runtime side of a scheduled function: it stops or
// starts the RDS instance named by the function's environment.
package dbaction

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
)

// Operation is the RDS call a handler makes.
type Operation string

const (
	Stop  Operation = "stop"
	Start Operation = "start"
)

// ErrMissingInstance is returned when the instance identifier is not set.
var ErrMissingInstance = errors.New("instance identifier not set")

// rdsAPI is the subset of the RDS client used here.
type rdsAPI interface {
	StopDBInstance(ctx context.Context, in *rds.StopDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StopDBInstanceOutput, error)
	StartDBInstance(ctx context.Context, in *rds.StartDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StartDBInstanceOutput, error)
}

// Result is what the handler returns to the Lambda runtime.
type Result struct {
	Instance  string    `json:"instance"`
	Operation Operation `json:"operation"`
	Status    string    `json:"status,omitempty"`
	// Skipped is true when the instance was already in, or moving to, a
	// state that rejects the operation.
	Skipped bool `json:"skipped"`
}

// Handler runs one operation against one instance.
type Handler struct {
	op       Operation
	instance string
	client   rdsAPI
	logger   *zap.SugaredLogger
}

// New returns a handler running op against instance through client.
func New(op Operation, instance string, client rdsAPI, logger *zap.SugaredLogger) (*Handler, error) {
	if op != Stop && op != Start {
		return nil, errors.Newf("unknown operation %q", op)
	}
	if instance == "" {
		return nil, errors.WithHint(ErrMissingInstance, "set "+rdsscheduler.InstanceEnvVar+" on the function")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{op: op, instance: instance, client: client, logger: logger}, nil
}

// FromEnvironment builds a handler from the Lambda environment: the
// instance identifier variable and the default AWS credential chain.
func FromEnvironment(ctx context.Context, op Operation, logger *zap.SugaredLogger) (*Handler, error) {
	instance := os.Getenv(rdsscheduler.InstanceEnvVar)
	if instance == "" {
		return nil, errors.WithHint(ErrMissingInstance, "set "+rdsscheduler.InstanceEnvVar+" on the function")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	return New(op, instance, rds.NewFromConfig(cfg), logger)
}

// Handle runs the operation for a scheduled event. An instance in a state
// that rejects the operation, such as stopping one already stopped, is
// logged and reported as skipped.
func (h *Handler) Handle(ctx context.Context, event events.CloudWatchEvent) (Result, error) {
	log := h.logger.With("instance", h.instance, "operation", h.op, "event", event.ID)
	log.Infow("scheduled invocation", "time", event.Time)

	res := Result{Instance: h.instance, Operation: h.op}
	var (
		instance *rdstypes.DBInstance
		err      error
	)
	switch h.op {
	case Stop:
		var out *rds.StopDBInstanceOutput
		out, err = h.client.StopDBInstance(ctx, &rds.StopDBInstanceInput{DBInstanceIdentifier: aws.String(h.instance)})
		if out != nil {
			instance = out.DBInstance
		}
	case Start:
		var out *rds.StartDBInstanceOutput
		out, err = h.client.StartDBInstance(ctx, &rds.StartDBInstanceInput{DBInstanceIdentifier: aws.String(h.instance)})
		if out != nil {
			instance = out.DBInstance
		}
	}

	if err != nil {
		var invalidState *rdstypes.InvalidDBInstanceStateFault
		if errors.As(err, &invalidState) {
			log.Infow("instance state rejects operation, skipping", "reason", invalidState.ErrorMessage())
			res.Skipped = true
			return res, nil
		}
		var notFound *rdstypes.DBInstanceNotFoundFault
		if errors.As(err, &notFound) {
			return res, errors.WithHint(
				errors.Wrapf(err, "instance %s not found", h.instance),
				"check "+rdsscheduler.InstanceEnvVar+" and the function's region",
			)
		}
		return res, errors.Wrapf(err, "%s instance %s", h.op, h.instance)
	}

	if instance != nil {
		res.Status = aws.ToString(instance.DBInstanceStatus)
	}
	log.Infow("operation accepted", "status", res.Status)
	return res, nil
}
