//go:build linux

package watcher

import (
	"bytes"
	"errors"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	inotifyMask = unix.IN_ACCESS | unix.IN_OPEN | unix.IN_MODIFY | unix.IN_CLOSE_WRITE |
		unix.IN_CREATE | unix.IN_MOVED_TO
	pollTimeoutMillis = 50
	readBufferSize    = 64 * (unix.SizeofInotifyEvent + unix.NAME_MAX + 1)
)

// inotifyTracker reads inotify events, which unlike fsnotify include reads.
type inotifyTracker struct {
	fd   int
	mu   sync.Mutex
	dirs map[int32]string
	seen *activity
	stop chan struct{}
	done chan struct{}
	err  error
}

func newPlatformTracker() (tracker, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, err
	}
	t := &inotifyTracker{
		fd:   fd,
		dirs: make(map[int32]string),
		seen: newActivity(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go t.loop()
	return t, nil
}

func (t *inotifyTracker) Add(dir string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(dir)
}

func (t *inotifyTracker) add(dir string) error {
	wd, err := unix.InotifyAddWatch(t.fd, dir, inotifyMask|unix.IN_ONLYDIR)
	if err != nil {
		return err
	}
	t.dirs[int32(wd)] = dir //nolint:gosec // watch descriptors fit in int32
	return nil
}

func (t *inotifyTracker) Stop() (*activity, error) {
	close(t.stop)
	<-t.done

	t.mu.Lock()
	defer t.mu.Unlock()

	// Events already queued by the kernel belong to the observed work.
	if err := t.drain(); err != nil && t.err == nil {
		t.err = err
	}
	if err := unix.Close(t.fd); err != nil && t.err == nil {
		t.err = err
	}
	return t.seen, t.err
}

func (t *inotifyTracker) loop() {
	defer close(t.done)

	fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}} //nolint:gosec // fd fits in int32
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		n, err := unix.Poll(fds, pollTimeoutMillis)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			t.fail(err)
			return
		}
		if n == 0 {
			continue
		}

		t.mu.Lock()
		err = t.drain()
		t.mu.Unlock()
		if err != nil {
			t.fail(err)
			return
		}
	}
}

func (t *inotifyTracker) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

// drain reads every pending event. Callers hold mu.
func (t *inotifyTracker) drain() error {
	var buf [readBufferSize]byte
	for {
		n, err := unix.Read(t.fd, buf[:])
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return nil
		}
		if err != nil {
			return err
		}
		if n < unix.SizeofInotifyEvent {
			return nil
		}
		t.parse(buf[:n])
	}
}

func (t *inotifyTracker) parse(buf []byte) {
	for offset := 0; offset+unix.SizeofInotifyEvent <= len(buf); {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset])) //nolint:gosec // kernel-provided layout
		nameStart := offset + unix.SizeofInotifyEvent
		nameEnd := nameStart + int(raw.Len)
		offset = nameEnd
		if nameEnd > len(buf) {
			return
		}

		if raw.Mask&unix.IN_Q_OVERFLOW != 0 {
			t.seen.overflow = true
			continue
		}

		dir, ok := t.dirs[raw.Wd]
		if !ok || raw.Len == 0 {
			continue
		}
		path := filepath.Join(dir, string(bytes.TrimRight(buf[nameStart:nameEnd], "\x00")))

		if raw.Mask&unix.IN_ISDIR != 0 {
			if raw.Mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0 && !shouldSkipDirectories[filepath.Base(path)] {
				for sub := range watchRecursively(path) {
					_ = t.add(sub)
				}
			}
			continue
		}

		if raw.Mask&(unix.IN_ACCESS|unix.IN_OPEN) != 0 {
			t.seen.accessed[path] = true
		}
		if raw.Mask&(unix.IN_MODIFY|unix.IN_CLOSE_WRITE|unix.IN_CREATE|unix.IN_MOVED_TO) != 0 {
			t.seen.written[path] = true
		}
	}
}
