// Command db-shutdown is the Lambda handler that stops the scheduled RDS
// instance.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/lex00/rds-scheduler-go/internal/dbaction"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	h, err := dbaction.FromEnvironment(context.Background(), dbaction.Stop, logger.Sugar())
	if err != nil {
		logger.Sugar().Fatalw("initializing handler", "error", err)
	}
	lambda.Start(h.Handle)
}
