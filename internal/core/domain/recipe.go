package domain

import (
	"strconv"
	"strings"
)

// FilePlaceholder is replaced by the source file name in language command templates.
const FilePlaceholder = "{file}"

// Language describes how to run and compile source files of one language.
type Language struct {
	Name      string
	Extension string
	Run       []string
	Compile   []string
}

// RunCommand returns the run command for file.
func (l Language) RunCommand(file string) []string {
	return expandCommand(l.Run, file)
}

// CompileCommand returns the compile command for file.
func (l Language) CompileCommand(file string) []string {
	return expandCommand(l.Compile, file)
}

func expandCommand(template []string, file string) []string {
	out := make([]string, len(template))
	for i, arg := range template {
		out[i] = strings.ReplaceAll(arg, FilePlaceholder, file)
	}
	return out
}

// StepKind names what a recipe step does.
type StepKind string

const (
	// StepFeed adds content to a source file.
	StepFeed StepKind = "feed"
	// StepRecall reads a named fragment back out of a source file.
	StepRecall StepKind = "recall"
	// StepRun runs a source file with its language's run command.
	StepRun StepKind = "run"
	// StepCompile checks a source file with its language's compile command.
	StepCompile StepKind = "compile"
	// StepCommand runs an arbitrary command in the working directory.
	StepCommand StepKind = "cmd"
)

// Step is one recipe entry, the equivalent of a single document directive.
type Step struct {
	Kind      StepKind
	Source    string
	Name      string
	Placement Placement
	Restart   bool
	Content   []string
	Language  string
	Command   []string
	NoCache   bool
}

// Key returns the cache key of the step: its kind and every literal field.
// Run and compile steps are keyed after their expanded command has been set in Command.
func (s Step) Key() Key {
	args := []string{
		"source=" + s.Source,
		"name=" + s.Name,
		"placement=" + s.Placement.String(),
		"restart=" + strconv.FormatBool(s.Restart),
		"language=" + s.Language,
		"command=" + strconv.Itoa(len(s.Command)),
	}
	args = append(args, s.Command...)
	args = append(args, "content="+strconv.Itoa(len(s.Content)))
	args = append(args, s.Content...)
	return NewKey(string(s.Kind), args...)
}

// Recipe is a loaded weave.yaml: where to work and which steps to execute.
type Recipe struct {
	Root      string
	WorkDir   string
	Capacity  int
	Languages map[string]Language
	Steps     []Step
}
