// Package template provides CloudFormation template building from declared resources.
package template

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/serialize"
)

// FormatVersion is the only CloudFormation template format version.
const FormatVersion = "2010-09-09"

// ErrDuplicateID is returned when a logical ID is declared twice.
var ErrDuplicateID = errors.New("duplicate logical ID")

// ErrUnresolvedReference is returned when a property references an
// undeclared resource or parameter.
var ErrUnresolvedReference = errors.New("unresolved reference")

// Builder constructs a CloudFormation template from declared resources.
type Builder struct {
	description string
	resources   map[string]rdsscheduler.Resource
	dependsOn   map[string][]string
	parameters  map[string]rdsscheduler.Parameter
	outputs     map[string]rdsscheduler.Output
}

// NewBuilder creates an empty template builder.
func NewBuilder(description string) *Builder {
	return &Builder{
		description: description,
		resources:   make(map[string]rdsscheduler.Resource),
		dependsOn:   make(map[string][]string),
		parameters:  make(map[string]rdsscheduler.Parameter),
		outputs:     make(map[string]rdsscheduler.Output),
	}
}

// AddResource declares a resource under a logical ID. dependsOn lists
// explicit DependsOn edges on top of those implied by references.
func (b *Builder) AddResource(name string, res rdsscheduler.Resource, dependsOn ...string) error {
	if err := b.checkNew(name); err != nil {
		return err
	}
	b.resources[name] = res
	if len(dependsOn) > 0 {
		deps := append([]string(nil), dependsOn...)
		sort.Strings(deps)
		b.dependsOn[name] = deps
	}
	return nil
}

// AddParameter declares a template parameter.
func (b *Builder) AddParameter(name string, param rdsscheduler.Parameter) error {
	if err := b.checkNew(name); err != nil {
		return err
	}
	b.parameters[name] = param
	return nil
}

// AddOutput declares a template output. Outputs have their own namespace.
func (b *Builder) AddOutput(name string, output rdsscheduler.Output) error {
	if _, exists := b.outputs[name]; exists {
		return errors.Wrapf(ErrDuplicateID, "output %s", name)
	}
	b.outputs[name] = output
	return nil
}

// Has reports whether a resource or parameter uses the logical ID.
func (b *Builder) Has(name string) bool {
	_, isResource := b.resources[name]
	_, isParam := b.parameters[name]
	return isResource || isParam
}

func (b *Builder) checkNew(name string) error {
	if name == "" {
		return errors.New("logical ID must not be empty")
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errors.Newf("logical ID %q must be alphanumeric", name)
		}
	}
	if b.Has(name) {
		return errors.Wrapf(ErrDuplicateID, "%s", name)
	}
	return nil
}

// Build constructs the CloudFormation template.
func (b *Builder) Build() (*rdsscheduler.Template, error) {
	graph, props, err := b.resolve()
	if err != nil {
		return nil, err
	}

	// The order itself is not rendered, but a cycle must fail the build.
	if _, err := topologicalSort(graph, b.resources); err != nil {
		return nil, err
	}

	template := &rdsscheduler.Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              b.description,
		Resources:                make(map[string]rdsscheduler.ResourceDef, len(b.resources)),
	}

	if len(b.parameters) > 0 {
		template.Parameters = make(map[string]rdsscheduler.Parameter, len(b.parameters))
		for name, param := range b.parameters {
			template.Parameters[name] = param
		}
	}

	for name, res := range b.resources {
		template.Resources[name] = rdsscheduler.ResourceDef{
			Type:       res.ResourceType(),
			Properties: props[name],
			DependsOn:  b.dependsOn[name],
		}
	}

	if len(b.outputs) > 0 {
		template.Outputs = make(map[string]rdsscheduler.Output, len(b.outputs))
		for name, output := range b.outputs {
			value, err := normalize(output.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "serializing output %s", name)
			}
			output.Value = value
			template.Outputs[name] = output
		}
	}

	return template, nil
}

// Order returns resource logical IDs in dependency order.
func (b *Builder) Order() ([]string, error) {
	graph, _, err := b.resolve()
	if err != nil {
		return nil, err
	}
	return topologicalSort(graph, b.resources)
}

// Dependencies returns the resources each resource depends on, through
// references or explicit DependsOn. Parameter references are not included.
func (b *Builder) Dependencies() (map[string][]string, error) {
	graph, _, err := b.resolve()
	return graph, err
}

// resolve serializes every resource and derives the dependency graph.
func (b *Builder) resolve() (map[string][]string, map[string]map[string]any, error) {
	graph := make(map[string][]string, len(b.resources))
	props := make(map[string]map[string]any, len(b.resources))

	for _, name := range sortedKeys(b.resources) {
		p, err := serialize.Resource(b.resources[name])
		if err != nil {
			return nil, nil, errors.Wrapf(err, "serializing %s", name)
		}
		props[name] = p

		deps := make(map[string]bool)
		for _, ref := range serialize.References(p) {
			if _, isParam := b.parameters[ref]; isParam {
				continue
			}
			if _, isResource := b.resources[ref]; !isResource {
				return nil, nil, errors.Wrapf(ErrUnresolvedReference, "%s references %s", name, ref)
			}
			deps[ref] = true
		}
		for _, dep := range b.dependsOn[name] {
			if _, isResource := b.resources[dep]; !isResource {
				return nil, nil, errors.Wrapf(ErrUnresolvedReference, "%s depends on %s", name, dep)
			}
			deps[dep] = true
		}

		list := make([]string, 0, len(deps))
		for dep := range deps {
			list = append(list, dep)
		}
		sort.Strings(list)
		graph[name] = list
	}

	return graph, props, nil
}

// topologicalSort returns resources in dependency order.
func topologicalSort(deps map[string][]string, resources map[string]rdsscheduler.Resource) ([]string, error) {
	// Build adjacency list
	dependents := make(map[string][]string)
	inDegree := make(map[string]int)

	for name := range deps {
		inDegree[name] = len(deps[name])
		for _, dep := range deps[name] {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	// Kahn's algorithm
	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue) // Deterministic order

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range dependents[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
				sort.Strings(queue) // Keep sorted for determinism
			}
		}
	}

	if len(result) != len(deps) {
		return nil, detectCycle(deps, resources)
	}

	return result, nil
}

// detectCycle finds and reports a cycle in the dependency graph.
func detectCycle(deps map[string][]string, resources map[string]rdsscheduler.Resource) error {
	visited := make(map[string]bool)
	path := make(map[string]bool)

	var cycle []string
	var findCycle func(node string) bool
	findCycle = func(node string) bool {
		visited[node] = true
		path[node] = true

		for _, dep := range deps[node] {
			if !visited[dep] {
				if findCycle(dep) {
					cycle = append([]string{node}, cycle...)
					return true
				}
			} else if path[dep] {
				cycle = append([]string{dep, node}, cycle...)
				return true
			}
		}

		path[node] = false
		return false
	}

	for _, name := range sortedKeys(resources) {
		if !visited[name] && findCycle(name) {
			break
		}
	}

	if len(cycle) == 0 {
		return errors.New("circular dependency detected")
	}

	lines := make([]string, len(cycle))
	for i, name := range cycle {
		lines[i] = fmt.Sprintf("  %s (%s)", name, resources[name].ResourceType())
	}
	return errors.Newf("circular dependency detected:\n%s", strings.Join(lines, "\n    → "))
}

// normalize renders intrinsic values into plain maps so YAML output matches JSON.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToJSON serializes the template to JSON.
func ToJSON(t *rdsscheduler.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *rdsscheduler.Template) ([]byte, error) {
	return yaml.Marshal(t)
}
