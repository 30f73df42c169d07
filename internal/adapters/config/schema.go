package config

// Recipefile represents the structure of the weave.yaml recipe file.
type Recipefile struct {
	Version   string                 `yaml:"version"`
	WorkDir   string                 `yaml:"workdir"`
	Capacity  *int                   `yaml:"capacity"`
	Languages map[string]LanguageDTO `yaml:"languages"`
	Steps     []StepDTO              `yaml:"steps"`
}

// LanguageDTO represents a language definition in the recipe.
type LanguageDTO struct {
	Extension string   `yaml:"extension"`
	Run       []string `yaml:"run"`
	Compile   []string `yaml:"compile"`
}

// StepDTO represents one recipe step. Which fields are set decides what the step does.
type StepDTO struct {
	Source   string   `yaml:"source"`
	Name     string   `yaml:"name"`
	Content  string   `yaml:"content"`
	File     string   `yaml:"file"`
	After    string   `yaml:"after"`
	Before   string   `yaml:"before"`
	Into     string   `yaml:"into"`
	Replace  string   `yaml:"replace"`
	Restart  bool     `yaml:"restart"`
	Recall   string   `yaml:"recall"`
	Run      string   `yaml:"run"`
	Compile  string   `yaml:"compile"`
	Language string   `yaml:"language"`
	Cmd      []string `yaml:"cmd"`
	NoCache  bool     `yaml:"nocache"`
}
