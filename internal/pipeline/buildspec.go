package pipeline

import (
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// BuildSpecVersion is the CodeBuild buildspec schema version.
const BuildSpecVersion = "0.2"

// BuildSpec is a CodeBuild buildspec.
type BuildSpec struct {
	Version   string             `yaml:"version"`
	Env       *BuildSpecEnv      `yaml:"env,omitempty"`
	Phases    BuildSpecPhases    `yaml:"phases"`
	Artifacts BuildSpecArtifacts `yaml:"artifacts"`
}

// BuildSpecEnv holds plain environment variables for every phase.
type BuildSpecEnv struct {
	Variables map[string]string `yaml:"variables,omitempty"`
}

// BuildSpecPhases are run in install, build order.
type BuildSpecPhases struct {
	Install *BuildSpecPhase `yaml:"install,omitempty"`
	Build   *BuildSpecPhase `yaml:"build,omitempty"`
}

// BuildSpecPhase is one phase of a build.
type BuildSpecPhase struct {
	RuntimeVersions map[string]string `yaml:"runtime-versions,omitempty"`
	Commands        []string          `yaml:"commands,omitempty"`
}

// BuildSpecArtifacts selects the files a build outputs.
type BuildSpecArtifacts struct {
	BaseDirectory string   `yaml:"base-directory"`
	Files         []string `yaml:"files"`
}

// Render returns the buildspec as YAML.
func (b BuildSpec) Render() (string, error) {
	if len(b.Artifacts.Files) == 0 {
		return "", errors.New("buildspec declares no artifact files")
	}
	data, err := yaml.Marshal(b)
	if err != nil {
		return "", errors.Wrap(err, "rendering buildspec")
	}
	return string(data), nil
}

// SynthCommand synthesizes in CodeBuild. Lookups missing from the committed
// context file get placeholders, since the build role cannot read SSM and
// only the functions template is deployed from the output.
const SynthCommand = "go run ./cmd/rds-scheduler synth --no-lookups -o dist"

// SynthBuildSpec runs the synthesizer and outputs the template of one stack.
// env carries the settings the functions template was synthesized with.
func SynthBuildSpec(goVersion, templateFile string, env map[string]string) BuildSpec {
	var vars *BuildSpecEnv
	if len(env) > 0 {
		vars = &BuildSpecEnv{Variables: env}
	}
	return BuildSpec{
		Version: BuildSpecVersion,
		Env:     vars,
		Phases: BuildSpecPhases{
			Install: &BuildSpecPhase{
				RuntimeVersions: map[string]string{"golang": goVersion},
				Commands:        []string{"go mod download"},
			},
			Build: &BuildSpecPhase{
				Commands: []string{SynthCommand},
			},
		},
		Artifacts: BuildSpecArtifacts{
			BaseDirectory: "dist",
			Files:         []string{templateFile},
		},
	}
}

// HandlerBuildSpec compiles the Lambda handler in pkg into a bootstrap binary.
func HandlerBuildSpec(goVersion, arch, pkg, outDir string) BuildSpec {
	return BuildSpec{
		Version: BuildSpecVersion,
		Env: &BuildSpecEnv{Variables: map[string]string{
			"CGO_ENABLED": "0",
			"GOOS":        "linux",
			"GOARCH":      arch,
		}},
		Phases: BuildSpecPhases{
			Install: &BuildSpecPhase{
				RuntimeVersions: map[string]string{"golang": goVersion},
				Commands:        []string{"go mod download"},
			},
			Build: &BuildSpecPhase{
				Commands: []string{"go build -tags lambda.norpc -trimpath -o " + outDir + "/bootstrap " + pkg},
			},
		},
		Artifacts: BuildSpecArtifacts{
			BaseDirectory: outDir,
			Files:         []string{"bootstrap"},
		},
	}
}
