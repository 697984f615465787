// Package synth wires configuration into the scheduled functions stack and
// the pipeline stack that deploys it.
package synth

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lex00/rds-scheduler-go/internal/app"
	"github.com/lex00/rds-scheduler-go/internal/config"
	"github.com/lex00/rds-scheduler-go/internal/lookup"
	"github.com/lex00/rds-scheduler-go/internal/pipeline"
	"github.com/lex00/rds-scheduler-go/internal/schedule"
)

// Result is a fully declared app.
type Result struct {
	App           *app.App
	Lambda        *schedule.LambdaStack
	PipelineStack *app.Stack
	Pipeline      *pipeline.Pipeline
}

// FunctionSettings maps config onto the scheduled function properties.
func FunctionSettings(cfg *config.Config) schedule.FunctionSettings {
	return schedule.FunctionSettings{
		Runtime:      cfg.Function.Runtime,
		Handler:      cfg.Function.Handler,
		Architecture: cfg.Function.Architecture,
		MemorySize:   cfg.Function.MemorySize,
		Timeout:      time.Duration(cfg.Function.TimeoutSeconds) * time.Second,
	}
}

// PipelineProps maps config onto pipeline props for the given stack.
func PipelineProps(cfg *config.Config, ls *schedule.LambdaStack) pipeline.Props {
	props := pipeline.DefaultProps()
	props.PipelineName = cfg.Pipeline.Name
	props.DeploymentStack = cfg.Pipeline.DeploymentStack
	props.Source = pipeline.Source{
		TokenSecret:    cfg.Pipeline.TokenSecret,
		TokenField:     cfg.Pipeline.TokenField,
		OwnerParameter: cfg.Pipeline.OwnerParameter,
		RepoParameter:  cfg.Pipeline.RepoParameter,
		Branch:         cfg.Pipeline.Branch,
		Webhook:        cfg.Pipeline.Webhook,
	}
	props.LambdaTemplate = ls.TemplateFile()
	props.ShutDownCode = ls.ShutDownCode
	props.StartUpCode = ls.StartUpCode
	props.AdminPermissions = cfg.Pipeline.AdminPermissions
	props.BuildImage = cfg.Pipeline.BuildImage
	props.GoVersion = cfg.Pipeline.GoVersion
	props.Architecture = cfg.Function.Architecture
	props.SynthEnv = cfg.Environ()
	return props
}

// Build declares both stacks. The pipeline receives the code placeholders
// of the functions stack.
func Build(ctx context.Context, cfg *config.Config, lookups lookup.Provider, logger *zap.SugaredLogger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	a := app.New(app.WithLogger(logger))

	ls, err := schedule.NewLambdaStack(a, schedule.LambdaStackProps{
		Env:             cfg.Env(),
		InstanceID:      cfg.InstanceID,
		InstanceARN:     cfg.InstanceARN,
		StopExpression:  cfg.Schedule.Stop,
		StartExpression: cfg.Schedule.Start,
		Function:        FunctionSettings(cfg),
	})
	if err != nil {
		return nil, errors.Wrap(err, "declaring functions stack")
	}

	stack, p, err := pipeline.NewPipelineStack(ctx, a, cfg.Env(), lookups, PipelineProps(cfg, ls))
	if err != nil {
		return nil, err
	}

	logger.Debugw("declared stacks",
		"instance", cfg.InstanceID,
		"environment", cfg.Env().String(),
		"pipeline", p.Name,
	)
	return &Result{App: a, Lambda: ls, PipelineStack: stack, Pipeline: p}, nil
}

// Lookups returns the cached lookup provider for cfg. The context file is
// resolved relative to the config file directory. With noLookups, misses
// return placeholder values instead of calling SSM.
func Lookups(cfg *config.Config, configDir string, noLookups bool, logger *zap.SugaredLogger) (*lookup.Cache, error) {
	var next lookup.Provider = &lookup.Lazy{Region: cfg.Region}
	if noLookups {
		next = lookup.Dummy{}
	}
	path := cfg.ContextFile
	if !filepath.IsAbs(path) && configDir != "" {
		path = filepath.Join(configDir, path)
	}
	return lookup.NewCache(path, cfg.Env(), next, logger)
}

// Run declares, synthesizes and saves new lookups. It is the whole synth
// pass without writing the assembly.
func Run(ctx context.Context, cfg *config.Config, cache *lookup.Cache, logger *zap.SugaredLogger) (*Result, *app.Assembly, error) {
	res, err := Build(ctx, cfg, cache, logger)
	if err != nil {
		return nil, nil, err
	}
	asm, err := res.App.Synth()
	if err != nil {
		return nil, nil, err
	}
	if err := cache.Save(); err != nil {
		return nil, nil, err
	}
	return res, asm, nil
}
