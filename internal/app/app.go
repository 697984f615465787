// Package app groups stacks into a cloud assembly and writes it to disk.
package app

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/template"
)

// ManifestVersion is the cloud assembly schema version written to manifest.json.
const ManifestVersion = "36.0.0"

// StackArtifactType is the manifest artifact type of a CloudFormation stack.
const StackArtifactType = "aws:cloudformation:stack"

// ManifestFile is the name of the manifest inside an assembly directory.
const ManifestFile = "manifest.json"

// ErrDuplicateStack is returned when two stacks share a name.
var ErrDuplicateStack = errors.New("duplicate stack name")

// Stack is a named template bound to a deployment environment.
type Stack struct {
	*template.Builder

	Name string
	Env  rdsscheduler.Environment
}

// TemplateFile is the file name the stack synthesizes to.
func (s *Stack) TemplateFile() string {
	return s.Name + ".template.json"
}

// App is the root of a set of stacks.
type App struct {
	stacks []*Stack
	logger *zap.SugaredLogger
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger used during synthesis.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an empty App.
func New(opts ...Option) *App {
	a := &App{logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewStack adds a stack to the app. Stacks synthesize in the order added.
func (a *App) NewStack(name, description string, env rdsscheduler.Environment) (*Stack, error) {
	if name == "" {
		return nil, errors.New("stack name must not be empty")
	}
	if _, ok := a.Stack(name); ok {
		return nil, errors.Wrapf(ErrDuplicateStack, "%s", name)
	}
	s := &Stack{
		Builder: template.NewBuilder(description),
		Name:    name,
		Env:     env,
	}
	a.stacks = append(a.stacks, s)
	return s, nil
}

// Stacks returns the stacks in declaration order.
func (a *App) Stacks() []*Stack {
	return append([]*Stack(nil), a.stacks...)
}

// Stack looks up a stack by name.
func (a *App) Stack(name string) (*Stack, bool) {
	for _, s := range a.stacks {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Assembly is the synthesized output of an App.
type Assembly struct {
	// Order lists stack names in declaration order.
	Order     []string
	Templates map[string]*rdsscheduler.Template
	Manifest  rdsscheduler.Manifest
}

// Synth builds every stack. Any stack failing to build fails the assembly.
func (a *App) Synth() (*Assembly, error) {
	asm := &Assembly{
		Templates: make(map[string]*rdsscheduler.Template, len(a.stacks)),
		Manifest: rdsscheduler.Manifest{
			Version: ManifestVersion,
			Stacks:  make(map[string]rdsscheduler.StackArtifact, len(a.stacks)),
		},
	}

	for _, s := range a.stacks {
		tmpl, err := s.Build()
		if err != nil {
			return nil, errors.Wrapf(err, "synthesizing stack %s", s.Name)
		}
		asm.Order = append(asm.Order, s.Name)
		asm.Templates[s.Name] = tmpl
		asm.Manifest.Stacks[s.Name] = rdsscheduler.StackArtifact{
			Type:         StackArtifactType,
			Environment:  s.Env.String(),
			TemplateFile: s.TemplateFile(),
			Resources:    len(tmpl.Resources),
		}
		a.logger.Debugw("synthesized stack", "stack", s.Name, "resources", len(tmpl.Resources))
	}

	return asm, nil
}

// Write renders the assembly into dir, creating it if needed. It returns the
// paths written.
func (asm *Assembly) Write(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %s", dir)
	}

	var written []string
	for _, name := range asm.Order {
		data, err := template.ToJSON(asm.Templates[name])
		if err != nil {
			return nil, errors.Wrapf(err, "serializing stack %s", name)
		}
		path := filepath.Join(dir, asm.Manifest.Stacks[name].TemplateFile)
		if err := writeFile(path, data); err != nil {
			return nil, err
		}
		written = append(written, path)
	}

	data, err := json.MarshalIndent(asm.Manifest, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "serializing manifest")
	}
	path := filepath.Join(dir, ManifestFile)
	if err := writeFile(path, data); err != nil {
		return nil, err
	}
	return append(written, path), nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
