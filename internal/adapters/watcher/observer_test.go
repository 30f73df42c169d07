package watcher_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/weave/internal/adapters/fs"
	"go.trai.ch/weave/internal/adapters/watcher"
	"go.trai.ch/weave/internal/core/domain"
	"go.trai.ch/weave/internal/core/ports"
	"go.trai.ch/weave/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func noop(context.Context) error { return nil }

func TestObserver_ClassifiesChanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	snapshotter := mocks.NewMockSnapshotter(ctrl)
	logger := mocks.NewMockLogger(ctrl)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".weave"), 0o750))

	before := map[string]ports.FileStamp{
		"changed.txt":   {Hash: 1, Size: 1},
		"rewritten.txt": {Hash: 1, Size: 1},
		"read.txt":      {Hash: 1, Size: 1},
	}
	after := map[string]ports.FileStamp{
		"changed.txt":   {Hash: 2, Size: 1},
		"rewritten.txt": {Hash: 1, Size: 1},
		"read.txt":      {Hash: 1, Size: 1},
		"sub/new.txt":   {Hash: 3, Size: 4},
	}
	gomock.InOrder(
		snapshotter.EXPECT().Snapshot(gomock.Any(), root).Return(before, nil),
		snapshotter.EXPECT().Snapshot(gomock.Any(), root).Return(after, nil),
	)

	tracker := &watcher.FakeTracker{
		Accessed: []string{
			filepath.Join(root, "read.txt"),
			filepath.Join(root, "sub"),
			filepath.Join(root, "sub", "new.txt"),
			filepath.Join(root, "gone.txt"),
		},
		Written: []string{filepath.Join(root, "rewritten.txt")},
	}

	observer := watcher.NewObserverWithTracker(snapshotter, logger, tracker)
	changes, err := observer.Observe(t.Context(), root, noop)
	require.NoError(t, err)

	assert.Equal(t, []string{"read.txt"}, changes.Accessed)
	assert.Equal(t, []string{"changed.txt", "rewritten.txt"}, changes.Modified)
	assert.Equal(t, []string{"sub/new.txt"}, changes.Created)
	assert.Equal(t, []string{root, filepath.Join(root, "sub")}, tracker.Dirs, ".weave is not watched")
}

func TestObserver_RunErrorSkipsSecondSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	snapshotter := mocks.NewMockSnapshotter(ctrl)
	logger := mocks.NewMockLogger(ctrl)

	snapshotter.EXPECT().Snapshot(gomock.Any(), gomock.Any()).Return(map[string]ports.FileStamp{}, nil).Times(1)

	runErr := errors.New("boom")
	observer := watcher.NewObserverWithTracker(snapshotter, logger, &watcher.FakeTracker{})
	_, err := observer.Observe(t.Context(), t.TempDir(), func(context.Context) error { return runErr })
	require.ErrorIs(t, err, runErr)
}

func TestObserver_TrackerErrors(t *testing.T) {
	tests := []struct {
		name    string
		tracker *watcher.FakeTracker
	}{
		{name: "add fails", tracker: &watcher.FakeTracker{AddErr: errors.New("no watches left")}},
		{name: "stop fails", tracker: &watcher.FakeTracker{StopErr: errors.New("read failed")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			snapshotter := mocks.NewMockSnapshotter(ctrl)
			logger := mocks.NewMockLogger(ctrl)
			snapshotter.EXPECT().Snapshot(gomock.Any(), gomock.Any()).Return(map[string]ports.FileStamp{}, nil)

			observer := watcher.NewObserverWithTracker(snapshotter, logger, tt.tracker)
			_, err := observer.Observe(t.Context(), t.TempDir(), noop)
			require.Error(t, err)
			assert.ErrorContains(t, err, domain.ErrObserveFailed.Error())
		})
	}
}

func TestObserver_OverflowWarns(t *testing.T) {
	ctrl := gomock.NewController(t)
	snapshotter := mocks.NewMockSnapshotter(ctrl)
	logger := mocks.NewMockLogger(ctrl)

	snapshotter.EXPECT().Snapshot(gomock.Any(), gomock.Any()).Return(map[string]ports.FileStamp{}, nil).Times(2)
	logger.EXPECT().Warn(gomock.Any()).Times(1)

	observer := watcher.NewObserverWithTracker(snapshotter, logger, &watcher.FakeTracker{Overflow: true})
	_, err := observer.Observe(t.Context(), t.TempDir(), noop)
	require.NoError(t, err)
}

func TestObserver_SnapshotError(t *testing.T) {
	ctrl := gomock.NewController(t)
	snapshotter := mocks.NewMockSnapshotter(ctrl)
	logger := mocks.NewMockLogger(ctrl)

	snapErr := errors.New("disk gone")
	snapshotter.EXPECT().Snapshot(gomock.Any(), gomock.Any()).Return(nil, snapErr)

	called := false
	observer := watcher.NewObserverWithTracker(snapshotter, logger, &watcher.FakeTracker{})
	_, err := observer.Observe(t.Context(), t.TempDir(), func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, snapErr)
	assert.False(t, called)
}

func TestObserver_RealFilesystem(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "input.txt"), []byte("in"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "edit.txt"), []byte("old"), 0o600))

	observer := watcher.NewObserver(fs.NewHasher(fs.NewWalker()), logger)
	changes, err := observer.Observe(t.Context(), root, func(context.Context) error {
		if _, err := os.ReadFile(filepath.Join(root, "input.txt")); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(root, "edit.txt"), []byte("new"), 0o600); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Join(root, "out"), 0o750); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(root, "out", "result.txt"), []byte("42"), 0o600)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"edit.txt"}, changes.Modified)
	assert.Equal(t, []string{"out/result.txt"}, changes.Created)
	if runtime.GOOS == "linux" {
		assert.Contains(t, changes.Accessed, "input.txt")
		assert.NotContains(t, changes.Accessed, "out/result.txt")
	} else {
		assert.Empty(t, changes.Accessed)
	}
}
