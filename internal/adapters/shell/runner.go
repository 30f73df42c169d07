// Package shell runs external commands under a pseudo-terminal.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/creack/pty"
	"go.trai.ch/weave/internal/core/domain"
	"go.trai.ch/weave/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Runner = (*Runner)(nil)

// Runner implements ports.Runner using os/exec and pty.
type Runner struct {
	logger ports.Logger
	env    map[string]string
}

// NewRunner creates a Runner. env overrides the inherited process environment.
func NewRunner(logger ports.Logger, env map[string]string) *Runner {
	return &Runner{
		logger: logger,
		env:    env,
	}
}

// Run executes argv in dir and returns its combined output with line endings normalised.
// A non-zero exit is reported through the logger, not as an error.
// Cancelling ctx kills the process and returns the context's error.
func (r *Runner) Run(ctx context.Context, argv []string, dir string) (string, error) {
	if len(argv) == 0 {
		return "", zerr.Wrap(errors.New("empty command"), domain.ErrProcessStartFailed.Error())
	}

	cmdEnv := resolveEnvironment(os.Environ(), r.env)

	name := argv[0]
	executable := name
	if !filepath.IsAbs(name) && !strings.ContainsRune(name, filepath.Separator) {
		lp, err := lookPath(name, cmdEnv)
		if err != nil {
			return "", zerr.With(zerr.Wrap(err, domain.ErrProcessStartFailed.Error()), "command", name)
		}
		executable = lp
	}

	cmd := exec.CommandContext(ctx, executable, argv[1:]...) //nolint:gosec // user provided command
	cmd.Args[0] = name
	cmd.Dir = dir
	cmd.Env = cmdEnv

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrProcessStartFailed.Error()), "command", name)
	}

	var out bytes.Buffer
	debug := &logWriter{logger: r.logger}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() { _ = debug.Close() }()
		// Reading the pty master fails with EIO once the child side closes.
		_, _ = io.Copy(io.MultiWriter(&out, debug), ptmx)
	}()

	waitErr := cmd.Wait()
	wg.Wait()
	_ = ptmx.Close()

	// A process killed by cancellation is not a result.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return "", zerr.With(zerr.Wrap(waitErr, domain.ErrProcessStartFailed.Error()), "command", name)
		}
		r.logger.Debug(name + ": " + exitErr.ProcessState.String())
	}

	return normalizeNewlines(out.String()), nil
}

// normalizeNewlines turns the terminal's CRLF line endings back into LF.
func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// logWriter forwards complete output lines to the debug log.
type logWriter struct {
	logger ports.Logger
	buf    []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	// PTYs may introduce \r. Remove it.
	w.logger.Debug(strings.TrimSuffix(string(line), "\r"))
}

// resolveEnvironment merges overrides into the system environment.
// TERM is forced to a dumb terminal so that tools do not emit colour codes into results.
func resolveEnvironment(sysEnv []string, overrides map[string]string) []string {
	envMap := make(map[string]string)
	for _, entry := range sysEnv {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}
	envMap["TERM"] = "dumb"

	for k, v := range overrides {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	return result
}

// lookPath searches for an executable in the directories named by the PATH environment variable.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = strings.TrimPrefix(e, "PATH=")
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		if err := findExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
