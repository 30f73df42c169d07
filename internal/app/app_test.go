package app_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/weave/internal/adapters/kv"
	"go.trai.ch/weave/internal/adapters/telemetry"
	"go.trai.ch/weave/internal/app"
	"go.trai.ch/weave/internal/core/domain"
	"go.trai.ch/weave/internal/core/ports"
	"go.trai.ch/weave/internal/core/ports/mocks"
	"go.trai.ch/weave/internal/engine/cache"
	"go.uber.org/mock/gomock"
)

type appTestMocks struct {
	loader   *mocks.MockRecipeLoader
	runner   *mocks.MockRunner
	observer *mocks.MockFileObserver
	opener   *mocks.MockStoreOpener
	store    *mocks.MockActionStore
	logger   *mocks.MockLogger
}

func setupAppTest(t *testing.T) (*app.App, appTestMocks, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	ctrl := gomock.NewController(t)
	m := appTestMocks{
		loader:   mocks.NewMockRecipeLoader(ctrl),
		runner:   mocks.NewMockRunner(ctrl),
		observer: mocks.NewMockFileObserver(ctrl),
		opener:   mocks.NewMockStoreOpener(ctrl),
		store:    mocks.NewMockActionStore(ctrl),
		logger:   mocks.NewMockLogger(ctrl),
	}
	m.logger.EXPECT().Debug(gomock.Any()).AnyTimes()

	var out bytes.Buffer
	a := app.New(m.loader, m.runner, m.observer, m.opener, telemetry.NewNoOpTracer(), m.logger).
		WithOutput(&out)
	return a, m, &out
}

func pythonRecipe(root string) *domain.Recipe {
	return &domain.Recipe{
		Root:     root,
		WorkDir:  domain.DefaultWorkPath(root),
		Capacity: domain.DefaultCapacity,
		Languages: map[string]domain.Language{
			"python": {Name: "python", Extension: ".py", Run: []string{"python3", "{file}"}},
		},
		Steps: []domain.Step{
			{
				Kind:      domain.StepFeed,
				Source:    "main.py",
				Name:      "main",
				Placement: domain.AtEnd(),
				Content:   []string{"def main():", "    <<<body>>>", "main()"},
			},
			{
				Kind:      domain.StepFeed,
				Source:    "main.py",
				Placement: domain.Into("body"),
				Content:   []string{"    print('hi')"},
			},
			{Kind: domain.StepRun, Source: "main.py", Language: "python"},
		},
	}
}

// observeReading runs fn and reports that it read the given files.
func observeReading(names ...string) func(context.Context, string, func(context.Context) error) (ports.FileChanges, error) {
	return func(ctx context.Context, _ string, fn func(context.Context) error) (ports.FileChanges, error) {
		if err := fn(ctx); err != nil {
			return ports.FileChanges{}, err
		}
		return ports.FileChanges{Accessed: names}, nil
	}
}

const pythonOutput = `main.py
def main():
[... body ...]
main()

main.py (cont)
    print('hi')

run main.py
hi
`

func TestApp_Run(t *testing.T) {
	a, m, out := setupAppTest(t)
	root := t.TempDir()
	recipe := pythonRecipe(root)

	m.loader.EXPECT().Load(root).Return(recipe, nil)
	m.opener.EXPECT().Open(domain.DefaultCachePath(root)).Return(m.store, nil)
	m.store.EXPECT().Get(domain.ActionsKey).Return(nil, nil)
	m.observer.EXPECT().Observe(gomock.Any(), recipe.WorkDir, gomock.Any()).DoAndReturn(observeReading("main.py"))
	m.runner.EXPECT().Run(gomock.Any(), []string{"python3", "main.py"}, recipe.WorkDir).Return("\nhi\n\n", nil)
	m.store.EXPECT().Put(domain.ActionsKey, gomock.Any()).Return(nil)
	m.store.EXPECT().Close().Return(nil)

	require.NoError(t, a.Run(context.Background(), root, app.RunOptions{}))
	assert.Equal(t, pythonOutput, out.String())

	got, err := os.ReadFile(filepath.Join(recipe.WorkDir, "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "def main():\n    print('hi')\nmain()\n", string(got))
}

func TestApp_RunReplaysAcrossInvocations(t *testing.T) {
	a, m, out := setupAppTest(t)
	root := t.TempDir()
	recipe := pythonRecipe(root)

	a = app.New(m.loader, m.runner, m.observer, kv.Opener{}, telemetry.NewNoOpTracer(), m.logger).WithOutput(out)

	m.loader.EXPECT().Load(root).Return(recipe, nil).Times(2)
	m.observer.EXPECT().Observe(gomock.Any(), recipe.WorkDir, gomock.Any()).DoAndReturn(observeReading("main.py")).Times(1)
	m.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).Return("hi\n", nil).Times(1)

	require.NoError(t, a.Run(context.Background(), root, app.RunOptions{}))
	first := out.String()
	out.Reset()

	require.NoError(t, a.Run(context.Background(), root, app.RunOptions{}))
	assert.Equal(t, first, out.String())
	assert.Equal(t, pythonOutput, out.String())
}

func TestApp_RunNoCache(t *testing.T) {
	a, m, out := setupAppTest(t)
	root := t.TempDir()
	recipe := pythonRecipe(root)

	// The store is never opened.
	m.loader.EXPECT().Load(root).Return(recipe, nil).Times(2)
	m.observer.EXPECT().Observe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(observeReading("main.py")).Times(2)
	m.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).Return("hi\n", nil).Times(2)

	for range 2 {
		out.Reset()
		require.NoError(t, a.Run(context.Background(), root, app.RunOptions{NoCache: true}))
		assert.Equal(t, pythonOutput, out.String())
	}
}

func TestApp_RunCommandAndRecall(t *testing.T) {
	a, m, out := setupAppTest(t)
	root := t.TempDir()
	recipe := &domain.Recipe{
		Root:     root,
		WorkDir:  filepath.Join(root, "work"),
		Capacity: 10,
		Steps: []domain.Step{
			{Kind: domain.StepFeed, Source: "notes.txt", Name: "greeting", Placement: domain.AtEnd(), Content: []string{"hello"}},
			{Kind: domain.StepRecall, Source: "notes.txt", Name: "greeting"},
			{Kind: domain.StepCommand, Command: []string{"cat", "notes.txt"}, NoCache: true},
		},
	}

	m.loader.EXPECT().Load(root).Return(recipe, nil)
	m.opener.EXPECT().Open(gomock.Any()).Return(m.store, nil)
	m.store.EXPECT().Get(gomock.Any()).Return(nil, nil)
	m.observer.EXPECT().Observe(gomock.Any(), recipe.WorkDir, gomock.Any()).DoAndReturn(observeReading("notes.txt"))
	m.runner.EXPECT().Run(gomock.Any(), []string{"cat", "notes.txt"}, recipe.WorkDir).Return("hello\n", nil)
	m.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)
	m.store.EXPECT().Close().Return(nil)

	require.NoError(t, a.Run(context.Background(), root, app.RunOptions{}))
	assert.Equal(t, "notes.txt\nhello\n\nnotes.txt (cont)\nhello\n\n$ cat notes.txt\nhello\n", out.String())
}

func TestApp_RunStepFailure(t *testing.T) {
	a, m, out := setupAppTest(t)
	root := t.TempDir()
	recipe := pythonRecipe(root)

	a = app.New(m.loader, m.runner, m.observer, kv.Opener{}, telemetry.NewNoOpTracer(), m.logger).WithOutput(out)

	m.loader.EXPECT().Load(root).Return(recipe, nil)
	m.observer.EXPECT().Observe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(observeReading())
	m.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any()).Return("", domain.ErrProcessStartFailed)

	err := a.Run(context.Background(), root, app.RunOptions{})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrProcessStartFailed)
	assert.ErrorContains(t, err, domain.ErrRecipeFailed.Error())
	assert.Contains(t, out.String(), "main.py (cont)")
	assert.NotContains(t, out.String(), "run main.py")

	// Both feed steps were persisted despite the failing run.
	store, err := kv.Opener{}.Open(domain.DefaultCachePath(root))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	actions, err := cache.NewActionCache(domain.DefaultCapacity)
	require.NoError(t, err)
	require.NoError(t, actions.Load(store))
	assert.Equal(t, 2, actions.Len())
}

func TestApp_RunLanguageChangeReexecutes(t *testing.T) {
	a, m, out := setupAppTest(t)
	root := t.TempDir()
	first := pythonRecipe(root)
	second := pythonRecipe(root)
	second.Languages["python"] = domain.Language{Name: "python", Extension: ".py", Run: []string{"python3", "-O", "{file}"}}

	a = app.New(m.loader, m.runner, m.observer, kv.Opener{}, telemetry.NewNoOpTracer(), m.logger).WithOutput(out)

	gomock.InOrder(
		m.loader.EXPECT().Load(root).Return(first, nil),
		m.loader.EXPECT().Load(root).Return(second, nil),
	)
	m.observer.EXPECT().Observe(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(observeReading("main.py")).Times(2)
	m.runner.EXPECT().Run(gomock.Any(), []string{"python3", "main.py"}, gomock.Any()).Return("hi\n", nil)
	m.runner.EXPECT().Run(gomock.Any(), []string{"python3", "-O", "main.py"}, gomock.Any()).Return("optimised\n", nil)

	require.NoError(t, a.Run(context.Background(), root, app.RunOptions{}))
	out.Reset()

	require.NoError(t, a.Run(context.Background(), root, app.RunOptions{}))
	assert.Contains(t, out.String(), "run main.py\noptimised\n")
}

func TestApp_RunMissingAnchor(t *testing.T) {
	a, m, _ := setupAppTest(t)
	root := t.TempDir()
	recipe := &domain.Recipe{
		Root:     root,
		WorkDir:  filepath.Join(root, "work"),
		Capacity: 10,
		Steps: []domain.Step{
			{Kind: domain.StepFeed, Source: "a.txt", Placement: domain.After("nowhere"), Content: []string{"x"}},
		},
	}

	m.loader.EXPECT().Load(root).Return(recipe, nil)

	err := a.Run(context.Background(), root, app.RunOptions{NoCache: true})
	require.Error(t, err)
	name, ok := domain.IsFragmentNotFound(err)
	require.True(t, ok)
	assert.Equal(t, "nowhere", name)
}

func TestApp_RunCorruptCacheWarns(t *testing.T) {
	a, m, _ := setupAppTest(t)
	root := t.TempDir()
	recipe := &domain.Recipe{
		Root:     root,
		WorkDir:  filepath.Join(root, "work"),
		Capacity: 10,
		Steps: []domain.Step{
			{Kind: domain.StepFeed, Source: "a.txt", Placement: domain.AtEnd(), Content: []string{"x"}},
		},
	}

	m.loader.EXPECT().Load(root).Return(recipe, nil)
	m.opener.EXPECT().Open(gomock.Any()).Return(m.store, nil)
	m.store.EXPECT().Get(gomock.Any()).Return([]byte("{"), nil)
	m.logger.EXPECT().Warn(gomock.Any())
	m.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)
	m.store.EXPECT().Close().Return(nil)

	require.NoError(t, a.Run(context.Background(), root, app.RunOptions{}))
}

func TestApp_RunLoadFailure(t *testing.T) {
	a, m, _ := setupAppTest(t)

	m.loader.EXPECT().Load("/nowhere").Return(nil, domain.ErrConfigNotFound)

	err := a.Run(context.Background(), "/nowhere", app.RunOptions{})
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
	assert.ErrorContains(t, err, "failed to load recipe")
}

func TestApp_RunStoreOpenFailure(t *testing.T) {
	a, m, _ := setupAppTest(t)
	root := t.TempDir()

	m.loader.EXPECT().Load(root).Return(pythonRecipe(root), nil)
	m.opener.EXPECT().Open(gomock.Any()).Return(nil, domain.ErrStoreOpenFailed)

	err := a.Run(context.Background(), root, app.RunOptions{})
	require.ErrorIs(t, err, domain.ErrStoreOpenFailed)
}

func TestApp_Show(t *testing.T) {
	a, m, out := setupAppTest(t)
	root := t.TempDir()
	recipe := pythonRecipe(root)
	recipe.Steps = recipe.Steps[:2]

	m.loader.EXPECT().Load(root).Return(recipe, nil).Times(2)

	require.NoError(t, a.Show(context.Background(), root, "main.py", app.RunOptions{NoCache: true}))
	assert.Equal(t, "def main():\n    print('hi')\nmain()\n", out.String())

	err := a.Show(context.Background(), root, "other.py", app.RunOptions{NoCache: true})
	require.ErrorIs(t, err, domain.ErrFragmentNotFound)
}

func TestApp_Clean(t *testing.T) {
	tests := []struct {
		name      string
		opts      app.CleanOptions
		wantCache bool
		wantWork  bool
	}{
		{name: "cache only", opts: app.CleanOptions{Cache: true}, wantCache: false, wantWork: true},
		{name: "work only", opts: app.CleanOptions{Work: true}, wantCache: true, wantWork: false},
		{name: "all", opts: app.CleanOptions{Cache: true, Work: true}, wantCache: false, wantWork: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, m, _ := setupAppTest(t)
			root := t.TempDir()
			recipe := pythonRecipe(root)

			db := domain.DefaultCachePath(root)
			require.NoError(t, os.MkdirAll(recipe.WorkDir, domain.DirPerm))
			require.NoError(t, os.WriteFile(db, []byte("db"), domain.FilePerm))
			require.NoError(t, os.WriteFile(filepath.Join(recipe.WorkDir, "main.py"), []byte("x"), domain.FilePerm))

			m.loader.EXPECT().Load(root).Return(recipe, nil)
			m.logger.EXPECT().Info(gomock.Any()).AnyTimes()

			require.NoError(t, a.Clean(context.Background(), root, tt.opts))

			_, err := os.Stat(db)
			assert.Equal(t, tt.wantCache, err == nil)
			_, err = os.Stat(recipe.WorkDir)
			assert.Equal(t, tt.wantWork, err == nil)
		})
	}
}

func TestApp_CleanLoadFailure(t *testing.T) {
	a, m, _ := setupAppTest(t)
	m.loader.EXPECT().Load(gomock.Any()).Return(nil, errors.New("boom"))

	err := a.Clean(context.Background(), "/x", app.CleanOptions{Cache: true})
	require.Error(t, err)
	assert.ErrorContains(t, err, "boom")
}
