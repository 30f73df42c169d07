package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.trai.ch/weave/internal/core/domain"
	"go.trai.ch/weave/internal/core/ports"
	"go.trai.ch/zerr"
)

// Manager decides, for every keyed request, whether a recorded action can be replayed
// against the current file table or the producer has to run again.
//
// A Manager is not safe for concurrent use. Producers run one at a time; nested Run
// calls from inside a producer are allowed.
type Manager struct {
	table    *FileTable
	actions  *ActionCache
	store    ports.ActionStore
	observer ports.FileObserver
	tracer   ports.Tracer
	logger   ports.Logger
	workDir  string

	watches []*Watch
	enabled bool
}

// NewManager creates a Manager materializing files under workDir.
// store may be nil, in which case Flush does nothing.
func NewManager(
	workDir string,
	actions *ActionCache,
	store ports.ActionStore,
	observer ports.FileObserver,
	tracer ports.Tracer,
	logger ports.Logger,
) *Manager {
	return &Manager{
		table:    NewFileTable(),
		actions:  actions,
		store:    store,
		observer: observer,
		tracer:   tracer,
		logger:   logger,
		workDir:  workDir,
		enabled:  true,
	}
}

// Enabled turns lookup and recording on or off. When off every Run executes its producer.
func (m *Manager) Enabled(enabled bool) {
	m.enabled = enabled
}

// WorkDir returns the directory files are materialized in.
func (m *Manager) WorkDir() string {
	return m.workDir
}

// Table returns the live file table.
func (m *Manager) Table() *FileTable {
	return m.table
}

// Actions returns the action cache.
func (m *Manager) Actions() *ActionCache {
	return m.actions
}

// Run returns the value of producer for key, replaying a recorded action when every file
// it read still has the content it had when it ran.
//
// On a miss producer runs inside a new watch. If it fails nothing is recorded and the
// error is returned unchanged.
func Run[V any](
	ctx context.Context,
	m *Manager,
	key domain.Key,
	producer func(ctx context.Context) (V, error),
) (V, error) {
	ctx, span := m.tracer.Start(ctx, "cache.run")
	defer span.End()
	span.SetAttribute("cache.key", key.String())

	if m.enabled {
		if v, action, ok := replay[V](m, key); ok {
			span.SetAttribute("cache.hit", true)
			span.SetAttribute("cache.inputs", len(action.Inputs))
			span.SetAttribute("cache.outputs", len(action.Outputs))
			return v, nil
		}
	}
	span.SetAttribute("cache.hit", false)
	m.logger.Debug("generating " + key.String())

	w := NewWatch(m.table.Snapshot())
	m.watches = append(m.watches, w)
	defer m.popWatch()

	v, err := producer(ctx)
	if err != nil {
		span.RecordError(err)
		var zero V
		return zero, err
	}

	m.reconcile(w.ExternalNames())

	if !m.enabled || w.Suppressed() {
		return v, nil
	}

	value, err := json.Marshal(v)
	if err != nil {
		err = zerr.With(zerr.Wrap(err, domain.ErrValueEncodeFailed.Error()), "key", key.String())
		span.RecordError(err)
		var zero V
		return zero, err
	}

	names := w.OutputNames()
	outputs := make([]domain.File, len(names))
	for i, name := range names {
		outputs[i] = m.table.current(name)
	}

	action := domain.NewAction(w.Inputs(), outputs, value)
	m.actions.Record(key, action)

	span.SetAttribute("cache.inputs", len(action.Inputs))
	span.SetAttribute("cache.outputs", len(action.Outputs))
	return v, nil
}

// replay applies the newest valid action recorded under key.
func replay[V any](m *Manager, key domain.Key) (V, domain.Action, bool) {
	var v V
	action, ok := m.actions.Lookup(key, func(a domain.Action) bool {
		return m.table.AllUpToDate(a.Inputs)
	})
	if !ok {
		return v, domain.Action{}, false
	}
	if err := json.Unmarshal(action.Value, &v); err != nil {
		err = zerr.With(zerr.Wrap(err, domain.ErrValueDecodeFailed.Error()), "key", key.String())
		m.logger.Debug(fmt.Sprintf("discarding recorded action: %v", err))
		return v, domain.Action{}, false
	}

	m.logger.Debug("reusing " + key.String())
	m.table.ApplyOutputs(action.Outputs)
	for _, f := range action.Inputs {
		m.watchInput(f.Name)
	}
	for _, f := range action.Outputs {
		m.watchOutput(f.Name)
	}
	return v, action, true
}

func (m *Manager) popWatch() {
	m.watches = m.watches[:len(m.watches)-1]
}

func (m *Manager) watchInput(name string) {
	for _, w := range m.watches {
		w.AddInput(name)
	}
}

func (m *Manager) watchOutput(name string) {
	for _, w := range m.watches {
		w.AddOutputInternal(name)
	}
}

func (m *Manager) watchExternal(name string) {
	for _, w := range m.watches {
		w.AddOutputExternal(name)
	}
}

// WatchInput registers name as read by the running producers.
func (m *Manager) WatchInput(name string) {
	m.watchInput(name)
}

// SuppressCache keeps the running producer, and every producer enclosing it, from being recorded.
func (m *Manager) SuppressCache() {
	for _, w := range m.watches {
		w.Suppress()
	}
}

// Feed places fragment in source.
func (m *Manager) Feed(source string, fragment *domain.Fragment, p domain.Placement) error {
	m.watchInput(source)
	f, err := m.table.Get(source).Feed(fragment, p)
	if err != nil {
		return err
	}
	m.table.Set(f)
	m.watchOutput(source)
	return nil
}

// Restart empties source.
func (m *Manager) Restart(source string) {
	m.table.Set(m.table.Get(source).Restart())
	m.watchOutput(source)
}

// Recall returns the text of the fragment called name in source, or all of source when name is empty.
func (m *Manager) Recall(source, name string) (string, error) {
	m.watchInput(source)
	return m.table.Get(source).Recall(name)
}

// Text returns the rendered content of source.
func (m *Manager) Text(source string) string {
	m.watchInput(source)
	return m.table.Get(source).Text()
}

// IsEmpty reports whether source has no content.
func (m *Manager) IsEmpty(source string) bool {
	m.watchInput(source)
	return m.table.Get(source).IsEmpty()
}

// CountLines returns the number of lines in source.
func (m *Manager) CountLines(source string) int {
	m.watchInput(source)
	return m.table.Get(source).CountLines()
}

// WriteAll materializes the file table into the working directory.
func (m *Manager) WriteAll() error {
	return m.table.WriteAll(m.workDir)
}

// Exec materializes the file table and runs fn while observing the working directory.
// Files fn's processes read become inputs; files they change become external outputs.
func (m *Manager) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := m.WriteAll(); err != nil {
		return err
	}

	changes, err := m.observer.Observe(ctx, m.workDir, fn)
	if err != nil {
		return err
	}

	for _, name := range changes.Accessed {
		m.watchInput(name)
	}
	for _, name := range changes.Modified {
		m.watchExternal(name)
	}
	for _, name := range changes.Created {
		m.watchExternal(name)
	}
	return nil
}

// reconcile folds disk changes made by external processes back into the table.
// A file whose bytes differ from its rendering becomes an opaque binary file.
func (m *Manager) reconcile(names []string) {
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(m.workDir, filepath.FromSlash(name)))
		if err != nil {
			m.logger.Warn(fmt.Sprintf("could not reconcile %s: %v", name, err))
			m.table.forget(name)
			continue
		}

		current := m.table.current(name)
		if !bytes.Equal(current.Bytes(), data) {
			m.logger.Debug(fmt.Sprintf("%s changed on disk (%s)", name, changeSummary(current.Bytes(), data)))
			m.table.Set(domain.BinaryFile(name, data))
		}
		m.table.markSynced(name)
	}
}

// Flush persists the action cache.
func (m *Manager) Flush() error {
	if m.store == nil {
		return nil
	}
	return m.actions.Save(m.store)
}

// changeSummary describes the line delta between two contents.
func changeSummary(before, after []byte) string {
	if !utf8.Valid(before) || !utf8.Valid(after) {
		return fmt.Sprintf("%d -> %d bytes", len(before), len(after))
	}

	dmp := diffmatchpatch.New()
	a, b, _ := dmp.DiffLinesToRunes(string(before), string(after))
	var added, removed int
	for _, d := range dmp.DiffMainRunes(a, b, false) {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		case diffmatchpatch.DiffEqual:
		}
	}
	return fmt.Sprintf("+%d -%d lines", added, removed)
}
