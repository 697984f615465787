// Package graph generates DOT and Mermaid graphs of synthesized stacks:
// resource dependencies within a template, and artifact flow through the
// delivery pipeline.
package graph

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/emicklei/dot"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
	"github.com/lex00/rds-scheduler-go/internal/serialize"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Generator creates graphs from templates.
type Generator struct {
	// IncludeParameters includes parameter references in the graph.
	IncludeParameters bool

	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByType groups resources by AWS service.
	ClusterByType bool
}

// Generate writes the resource dependency graph of t to w. Edges point from
// a resource to what it depends on. GetAtt edges are blue; explicit
// DependsOn edges without a reference are dashed.
func (g *Generator) Generate(t *rdsscheduler.Template, w io.Writer) error {
	return g.write(g.buildGraph(t), w)
}

// GenerateString is a convenience method that returns the graph as a string.
func (g *Generator) GenerateString(t *rdsscheduler.Template) (string, error) {
	var sb strings.Builder
	if err := g.Generate(t, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// GeneratePipeline writes the stage and artifact flow of every pipeline in
// t to w. Stages are clusters; edges carry artifact names.
func (g *Generator) GeneratePipeline(t *rdsscheduler.Template, w io.Writer) error {
	return g.write(buildPipelineGraph(t), w)
}

func (g *Generator) write(graph *dot.Graph, w io.Writer) error {
	var output string
	if g.Format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}
	_, err := io.WriteString(w, output)
	return err
}

func newGraph() *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})
	return graph
}

// buildGraph creates the dot.Graph structure of t's resources.
func (g *Generator) buildGraph(t *rdsscheduler.Template) *dot.Graph {
	graph := newGraph()
	nodes := make(map[string]dot.Node)

	names := sortedKeys(t.Resources)
	if g.ClusterByType {
		g.addClusteredNodes(graph, t, names, nodes)
	} else {
		for _, name := range names {
			nodes[name] = resourceNode(graph, name, t.Resources[name].Type)
		}
	}

	if g.IncludeParameters {
		for _, name := range sortedKeys(t.Parameters) {
			n := graph.Node(name)
			n.Attr("shape", "ellipse")
			n.Attr("style", "dashed")
			n.Label(name)
			nodes[name] = n
		}
	}

	for _, name := range names {
		res := t.Resources[name]
		refs := serialize.References(res.Properties)
		attRefs := toSet(serialize.AttributeReferences(res.Properties))
		referenced := toSet(refs)

		for _, dep := range refs {
			to, ok := nodes[dep]
			if !ok {
				continue
			}
			e := graph.Edge(nodes[name], to)
			if attRefs[dep] {
				e.Attr("color", "blue")
			}
		}
		for _, dep := range res.DependsOn {
			to, ok := nodes[dep]
			if !ok || referenced[dep] {
				continue
			}
			graph.Edge(nodes[name], to).Attr("style", "dashed")
		}
	}
	return graph
}

// addClusteredNodes adds resource nodes grouped by AWS service. Services
// with a single resource are not clustered.
func (g *Generator) addClusteredNodes(graph *dot.Graph, t *rdsscheduler.Template, names []string, nodes map[string]dot.Node) {
	byService := make(map[string][]string)
	for _, name := range names {
		service := extractService(t.Resources[name].Type)
		byService[service] = append(byService[service], name)
	}

	for _, service := range sortedKeys(byService) {
		members := byService[service]
		parent := graph
		if len(members) > 1 {
			parent = graph.Subgraph("cluster_"+service, dot.ClusterOption{})
			parent.Attr("label", service)
			parent.Attr("style", "rounded")
			parent.Attr("bgcolor", "lightyellow")
		}
		for _, name := range members {
			nodes[name] = resourceNode(parent, name, t.Resources[name].Type)
		}
	}
}

func resourceNode(graph *dot.Graph, name, typ string) dot.Node {
	n := graph.Node(name)
	n.Label(name + "\\n[" + typ + "]")
	return n
}

// buildPipelineGraph draws one cluster per stage with a node per action.
// An edge joins the action producing an artifact to each consumer.
func buildPipelineGraph(t *rdsscheduler.Template) *dot.Graph {
	graph := newGraph()
	graph.Attr("rankdir", "LR")

	for _, id := range sortedKeys(t.Resources) {
		res := t.Resources[id]
		if res.Type != "AWS::CodePipeline::Pipeline" {
			continue
		}

		producers := make(map[string]dot.Node)
		type consumer struct {
			node     dot.Node
			artifact string
		}
		var consumers []consumer

		for i, s := range asList(res.Properties["Stages"]) {
			stage, _ := s.(map[string]any)
			stageName, _ := stage["Name"].(string)
			cluster := graph.Subgraph("cluster_"+id+"_"+stageName, dot.ClusterOption{})
			cluster.Attr("label", strconv.Itoa(i+1)+". "+stageName)

			for _, a := range asList(stage["Actions"]) {
				action, _ := a.(map[string]any)
				actionName, _ := action["Name"].(string)
				typeID, _ := action["ActionTypeId"].(map[string]any)
				provider, _ := typeID["Provider"].(string)

				n := cluster.Node(id + "/" + stageName + "/" + actionName)
				n.Label(actionName + "\\n[" + provider + "]")

				for _, out := range asList(action["OutputArtifacts"]) {
					producers[artifactName(out)] = n
				}
				for _, in := range asList(action["InputArtifacts"]) {
					consumers = append(consumers, consumer{node: n, artifact: artifactName(in)})
				}
			}
		}

		for _, c := range consumers {
			if from, ok := producers[c.artifact]; ok {
				graph.Edge(from, c.node, c.artifact)
			}
		}
	}
	return graph
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func artifactName(v any) string {
	m, _ := v.(map[string]any)
	name, _ := m["Name"].(string)
	return name
}

// extractService extracts the service from a CloudFormation type.
// e.g., "AWS::Lambda::Function" -> "Lambda"
func extractService(cfType string) string {
	parts := strings.Split(cfType, "::")
	if len(parts) == 3 {
		return parts[1]
	}
	return "Other"
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
