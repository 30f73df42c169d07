// Package app implements the application layer for weave.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.trai.ch/weave/internal/core/domain"
	"go.trai.ch/weave/internal/core/ports"
	"go.trai.ch/weave/internal/engine/cache"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	loader   ports.RecipeLoader
	runner   ports.Runner
	observer ports.FileObserver
	opener   ports.StoreOpener
	tracer   ports.Tracer
	logger   ports.Logger
	out      io.Writer
}

// New creates a new App instance.
func New(
	loader ports.RecipeLoader,
	runner ports.Runner,
	observer ports.FileObserver,
	opener ports.StoreOpener,
	tracer ports.Tracer,
	log ports.Logger,
) *App {
	return &App{
		loader:   loader,
		runner:   runner,
		observer: observer,
		opener:   opener,
		tracer:   tracer,
		logger:   log,
		out:      os.Stdout,
	}
}

// WithOutput sets the writer step results are printed to.
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// RunOptions configuration for the Run and Show methods.
type RunOptions struct {
	// NoCache executes every step and leaves the persisted cache untouched.
	NoCache bool
}

// stepResult is what one executed step shows.
type stepResult struct {
	step  domain.Step
	cont  bool
	value string
}

// Run executes every step of the recipe found from cwd and prints each result.
func (a *App) Run(ctx context.Context, cwd string, opts RunOptions) error {
	p := newPrinter(a.out)
	_, err := a.replay(ctx, cwd, opts, func(r stepResult) {
		p.step(r)
	})
	return err
}

// Show executes the recipe found from cwd and prints the final content of source.
func (a *App) Show(ctx context.Context, cwd, source string, opts RunOptions) error {
	m, err := a.replay(ctx, cwd, opts, nil)
	if err != nil {
		return err
	}

	f, ok := m.Table().Lookup(source)
	if !ok {
		return zerr.With(domain.ErrFragmentNotFound, "source", source)
	}
	_, err = io.WriteString(a.out, f.Text())
	return err
}

// replay executes the recipe against a fresh manager and hands each result to emit.
//
//nolint:cyclop // orchestration function
func (a *App) replay(ctx context.Context, cwd string, opts RunOptions, emit func(stepResult)) (*cache.Manager, error) {
	// 1. Load the recipe
	recipe, err := a.loader.Load(cwd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load recipe")
	}

	ctx, span := a.tracer.Start(ctx, "weave.run",
		ports.WithAttribute("weave.root", recipe.Root),
		ports.WithAttribute("weave.steps", len(recipe.Steps)),
	)
	defer span.End()

	if err := os.MkdirAll(recipe.WorkDir, domain.DirPerm); err != nil {
		err = zerr.With(zerr.Wrap(err, domain.ErrMaterializeFailed.Error()), "path", recipe.WorkDir)
		span.RecordError(err)
		return nil, err
	}

	// 2. Open the action cache
	actions, err := cache.NewActionCache(recipe.Capacity)
	if err != nil {
		return nil, err
	}

	var store ports.ActionStore
	if !opts.NoCache {
		store, err = a.opener.Open(domain.DefaultCachePath(recipe.Root))
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				a.logger.Warn(fmt.Sprintf("closing action cache: %v", cerr))
			}
		}()

		if err := actions.Load(store); err != nil {
			a.logger.Warn(fmt.Sprintf("discarding action cache: %v", err))
		}
	}

	m := cache.NewManager(recipe.WorkDir, actions, store, a.observer, a.tracer, a.logger)
	m.Enabled(!opts.NoCache)

	// 3. Execute the steps in order
	for i, step := range recipe.Steps {
		cont := false
		if step.Kind == domain.StepFeed || step.Kind == domain.StepRecall {
			prior, ok := m.Table().Lookup(step.Source)
			cont = ok && !prior.IsEmpty()
		}

		value, err := a.execute(ctx, m, recipe, step)
		if err != nil {
			// Actions recorded by the steps that did succeed are kept.
			a.flushPartial(m)
			err = zerr.With(zerr.Wrap(err, domain.ErrRecipeFailed.Error()), "step", i+1)
			span.RecordError(err)
			return nil, err
		}
		if emit != nil {
			emit(stepResult{step: step, cont: cont, value: value})
		}
	}

	// 4. Materialize and persist
	if err := m.WriteAll(); err != nil {
		a.flushPartial(m)
		span.RecordError(err)
		return nil, err
	}
	if err := m.Flush(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	a.logger.Debug(fmt.Sprintf("%d steps done, %d actions cached", len(recipe.Steps), actions.Len()))
	return m, nil
}

// flushPartial persists the actions recorded so far on a failed run.
func (a *App) flushPartial(m *cache.Manager) {
	if err := m.Flush(); err != nil {
		a.logger.Warn(fmt.Sprintf("saving action cache: %v", err))
	}
}

// execute runs one step through the cache.
func (a *App) execute(ctx context.Context, m *cache.Manager, recipe *domain.Recipe, step domain.Step) (string, error) {
	if step.Kind == domain.StepRun || step.Kind == domain.StepCompile {
		argv, err := languageCommand(recipe, step)
		if err != nil {
			return "", err
		}
		// Keyed by the expanded command, not the language name.
		step.Command = argv
	}

	return cache.Run(ctx, m, step.Key(), func(ctx context.Context) (string, error) {
		if step.NoCache {
			m.SuppressCache()
		}

		switch step.Kind {
		case domain.StepFeed:
			return feed(m, step)
		case domain.StepRecall:
			return m.Recall(step.Source, step.Name)
		case domain.StepRun, domain.StepCompile, domain.StepCommand:
			return a.exec(ctx, m, step.Command)
		default:
			return "", zerr.With(domain.ErrInvalidStep, "kind", string(step.Kind))
		}
	})
}

// languageCommand expands the run or compile command of the step's language.
func languageCommand(recipe *domain.Recipe, step domain.Step) ([]string, error) {
	lang, ok := recipe.Languages[step.Language]
	if !ok {
		return nil, zerr.With(domain.ErrUnknownLanguage, "language", step.Language)
	}
	if step.Kind == domain.StepCompile {
		return lang.CompileCommand(step.Source), nil
	}
	return lang.RunCommand(step.Source), nil
}

func feed(m *cache.Manager, step domain.Step) (string, error) {
	if step.Restart {
		m.Restart(step.Source)
	}
	if len(step.Content) == 0 && step.Name == "" {
		return "", nil
	}

	fragment := domain.ExpandSubparts(step.Name, step.Content)
	if err := m.Feed(step.Source, fragment, step.Placement); err != nil {
		return "", err
	}
	return fragment.Outline(), nil
}

func (a *App) exec(ctx context.Context, m *cache.Manager, argv []string) (string, error) {
	var out string
	err := m.Exec(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.runner.Run(ctx, argv, m.WorkDir())
		return err
	})
	if err != nil {
		return "", err
	}
	return trimBlankLines(out), nil
}

// trimBlankLines drops leading and trailing blank lines, keeping a final newline.
func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if start == end {
		return ""
	}
	return strings.Join(lines[start:end], "\n") + "\n"
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	Cache bool
	Work  bool
}

// Clean removes the persisted action cache and the working directory based on the provided options.
func (a *App) Clean(_ context.Context, cwd string, options CleanOptions) error {
	recipe, err := a.loader.Load(cwd)
	if err != nil {
		return zerr.Wrap(err, "failed to load recipe")
	}

	var errs error

	remove := func(name string, paths ...string) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		for _, path := range paths {
			if err := os.RemoveAll(path); err != nil {
				errs = errors.Join(errs, zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)))
				return
			}
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	if options.Cache {
		db := domain.DefaultCachePath(recipe.Root)
		remove("action cache", db, db+"-wal", db+"-shm")
	}

	if options.Work {
		remove("working directory", recipe.WorkDir)
	}

	return errs
}
