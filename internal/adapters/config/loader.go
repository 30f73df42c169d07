// Package config provides the recipe loader for weave.
package config

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.trai.ch/weave/internal/core/domain"
	"go.trai.ch/weave/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const (
	// EnvCapacity overrides the action cache capacity of the recipe.
	EnvCapacity = "WEAVE_CAPACITY"
	// EnvWorkDir overrides the working directory of the recipe.
	EnvWorkDir = "WEAVE_WORKDIR"
)

var _ ports.RecipeLoader = (*Loader)(nil)

// Loader implements ports.RecipeLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// DiscoverRoot walks up from cwd to the first directory holding weave.yaml.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	currentDir, err := filepath.Abs(cwd)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrConfigNotFound.Error()), "cwd", cwd)
	}

	for {
		if _, err := os.Stat(filepath.Join(currentDir, domain.RecipeFileName)); err == nil {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}

	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

// Load finds, reads and validates the recipe governing cwd. Variables from a .env file
// next to the recipe are exported to the process unless already set, then the WEAVE_*
// overrides are applied.
func (l *Loader) Load(cwd string) (*domain.Recipe, error) {
	root, err := l.DiscoverRoot(cwd)
	if err != nil {
		return nil, err
	}

	if err := loadEnvFile(filepath.Join(root, domain.EnvFileName)); err != nil {
		return nil, err
	}

	configPath := filepath.Join(root, domain.RecipeFileName)
	var recipefile Recipefile
	if err := readAndUnmarshalYAML(configPath, &recipefile); err != nil {
		return nil, zerr.With(err, "path", configPath)
	}

	if recipefile.Version != "" && recipefile.Version != "1" {
		l.Logger.Warn(fmt.Sprintf("unknown recipe version %q in %s", recipefile.Version, configPath))
	}

	recipe := &domain.Recipe{
		Root:      root,
		WorkDir:   resolveWorkDir(root, recipefile.WorkDir),
		Capacity:  domain.DefaultCapacity,
		Languages: buildLanguages(recipefile.Languages),
	}
	if recipefile.Capacity != nil {
		recipe.Capacity = *recipefile.Capacity
	}

	if err := applyEnvOverrides(recipe); err != nil {
		return nil, err
	}
	if recipe.Capacity <= 0 {
		return nil, zerr.With(domain.ErrInvalidCapacity, "capacity", recipe.Capacity)
	}

	for i, dto := range recipefile.Steps {
		step, err := buildStep(root, dto, recipe.Languages)
		if err != nil {
			return nil, zerr.With(err, "step", i+1)
		}
		recipe.Steps = append(recipe.Steps, step)
	}

	return recipe, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, iofs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}
	return nil
}

func applyEnvOverrides(recipe *domain.Recipe) error {
	if raw := strings.TrimSpace(os.Getenv(EnvCapacity)); raw != "" {
		capacity, err := strconv.Atoi(raw)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "variable", EnvCapacity)
		}
		recipe.Capacity = capacity
	}
	if raw := strings.TrimSpace(os.Getenv(EnvWorkDir)); raw != "" {
		recipe.WorkDir = resolveWorkDir(recipe.Root, raw)
	}
	return nil
}

func resolveWorkDir(root, configured string) string {
	if configured == "" {
		return domain.DefaultWorkPath(root)
	}
	if filepath.IsAbs(configured) {
		return filepath.Clean(configured)
	}
	return filepath.Clean(filepath.Join(root, configured))
}

func buildLanguages(dtos map[string]LanguageDTO) map[string]domain.Language {
	languages := make(map[string]domain.Language, len(dtos))
	for name, dto := range dtos {
		languages[name] = domain.Language{
			Name:      name,
			Extension: dto.Extension,
			Run:       dto.Run,
			Compile:   dto.Compile,
		}
	}
	return languages
}

// buildStep decides the kind of a step from the fields it sets.
func buildStep(root string, dto StepDTO, languages map[string]domain.Language) (domain.Step, error) {
	var kinds []domain.StepKind
	if dto.Recall != "" {
		kinds = append(kinds, domain.StepRecall)
	}
	if dto.Run != "" {
		kinds = append(kinds, domain.StepRun)
	}
	if dto.Compile != "" {
		kinds = append(kinds, domain.StepCompile)
	}
	if len(dto.Cmd) > 0 {
		kinds = append(kinds, domain.StepCommand)
	}
	if len(kinds) == 0 {
		kinds = append(kinds, domain.StepFeed)
	}
	if len(kinds) > 1 {
		return domain.Step{}, zerr.With(domain.ErrInvalidStep, "conflicting_kinds", fmt.Sprint(kinds))
	}

	step := domain.Step{Kind: kinds[0], NoCache: dto.NoCache}

	switch step.Kind {
	case domain.StepFeed:
		return buildFeedStep(root, step, dto)
	case domain.StepRecall:
		if dto.Source == "" {
			return domain.Step{}, zerr.With(domain.ErrInvalidStep, "missing", "source")
		}
		step.Source = dto.Source
		step.Name = dto.Recall
	case domain.StepRun, domain.StepCompile:
		step.Source = dto.Run
		if step.Kind == domain.StepCompile {
			step.Source = dto.Compile
		}
		lang, err := resolveLanguage(step.Source, dto.Language, languages)
		if err != nil {
			return domain.Step{}, err
		}
		command := lang.Run
		if step.Kind == domain.StepCompile {
			command = lang.Compile
		}
		if len(command) == 0 {
			return domain.Step{}, zerr.With(zerr.With(domain.ErrInvalidStep, "language", lang.Name), "missing", string(step.Kind))
		}
		step.Language = lang.Name
	case domain.StepCommand:
		step.Command = dto.Cmd
	}

	return step, nil
}

func buildFeedStep(root string, step domain.Step, dto StepDTO) (domain.Step, error) {
	if dto.Source == "" {
		return domain.Step{}, zerr.With(domain.ErrInvalidStep, "missing", "source")
	}
	step.Source = dto.Source
	step.Name = dto.Name
	step.Restart = dto.Restart
	step.Content = splitContent(dto.Content)

	if dto.File != "" {
		if dto.Content != "" {
			return domain.Step{}, zerr.With(domain.ErrInvalidStep, "conflicting", "content, file")
		}
		content, err := readContentFile(root, dto.File)
		if err != nil {
			return domain.Step{}, err
		}
		step.Content = splitContent(content)
	}

	anchors := 0
	step.Placement = domain.AtEnd()
	for _, candidate := range []struct {
		anchor    string
		placement func(string) domain.Placement
	}{
		{dto.After, domain.After},
		{dto.Before, domain.Before},
		{dto.Into, domain.Into},
		{dto.Replace, domain.Replacing},
	} {
		if candidate.anchor != "" {
			anchors++
			step.Placement = candidate.placement(candidate.anchor)
		}
	}
	if anchors > 1 {
		return domain.Step{}, zerr.With(domain.ErrInvalidStep, "source", dto.Source)
	}

	return step, nil
}

// resolveLanguage returns the named language, or the one whose extension matches source.
func resolveLanguage(source, name string, languages map[string]domain.Language) (domain.Language, error) {
	if name != "" {
		lang, ok := languages[name]
		if !ok {
			return domain.Language{}, zerr.With(domain.ErrUnknownLanguage, "language", name)
		}
		return lang, nil
	}

	ext := filepath.Ext(source)
	var found []domain.Language
	for _, lang := range languages {
		if ext != "" && lang.Extension == ext {
			found = append(found, lang)
		}
	}
	if len(found) != 1 {
		return domain.Language{}, zerr.With(domain.ErrUnknownLanguage, "source", source)
	}
	return found[0], nil
}

// readContentFile reads the content of a feed step from a file relative to root.
func readContentFile(root, name string) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	// #nosec G304 -- path comes from the recipe
	data, err := os.ReadFile(path)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}
	return string(data), nil
}

// splitContent turns a YAML block scalar into lines. The final newline does not start a line.
func splitContent(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is validated by caller
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return zerr.Wrap(parseErr, domain.ErrConfigParseFailed.Error())
	}

	return nil
}
