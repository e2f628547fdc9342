//go:build linux

package watchers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/Fullex26/camnotify/internal/config"
	"github.com/Fullex26/camnotify/internal/eventbus"
)

const (
	inotifyBufSize = 4 * 1024
	// A sidecar is only complete once the writer closes it or renames it into place.
	watchMask = unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO
)

// InboxWatcher turns sidecar files dropped into the inbox directory into detections.
type InboxWatcher struct {
	Base
	dir string
}

func NewInboxWatcher(cfg *config.Config, bus *eventbus.Bus) *InboxWatcher {
	return &InboxWatcher{
		Base: Base{Cfg: cfg, Bus: bus},
		dir:  cfg.Watch.Dir,
	}
}

func (w *InboxWatcher) Name() string { return "inbox" }

func (w *InboxWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0750); err != nil {
		return fmt.Errorf("creating inbox: %w", err)
	}

	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return fmt.Errorf("inotify_init1: %w", err)
	}
	defer unix.Close(fd)

	if _, err := unix.InotifyAddWatch(fd, w.dir, watchMask); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	// Self-pipe trick: goroutine writes to [1] on ctx cancel, unblocking Poll on [0].
	var pipe [2]int
	if err := unix.Pipe2(pipe[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return fmt.Errorf("pipe: %w", err)
	}
	defer unix.Close(pipe[0])

	go func() {
		<-ctx.Done()
		_, _ = unix.Write(pipe[1], []byte{1})
		unix.Close(pipe[1])
	}()

	buf := make([]byte, inotifyBufSize)
	slog.Info("inbox watcher active", "dir", w.dir)

	for {
		fds := []unix.PollFd{
			{Fd: int32(fd), Events: unix.POLLIN},
			{Fd: int32(pipe[0]), Events: unix.POLLIN},
		}

		_, err := unix.Poll(fds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}

		// Stop pipe fired: context cancelled.
		if fds[1].Revents&unix.POLLIN != 0 {
			return nil
		}

		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN {
				continue
			}
			return fmt.Errorf("read inotify: %w", err)
		}

		for _, name := range parseNames(buf[:n]) {
			w.handle(name)
		}
	}
}

func (w *InboxWatcher) Stop() error { return nil }

// parseNames extracts the file names carried by a batch of inotify events
func parseNames(buf []byte) []string {
	var names []string
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buf) {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		nameLen := int(raw.Len)
		end := offset + unix.SizeofInotifyEvent + nameLen
		if end > len(buf) {
			break
		}
		if nameLen > 0 && raw.Mask&watchMask != 0 {
			name := string(bytes.TrimRight(buf[offset+unix.SizeofInotifyEvent:end], "\x00"))
			names = append(names, name)
		}
		offset = end
	}
	return names
}

func (w *InboxWatcher) handle(name string) {
	if !isSidecar(name) {
		return
	}
	path := filepath.Join(w.dir, name)
	det, err := LoadSidecar(path)
	if err != nil {
		slog.Warn("inbox: skipping sidecar", "path", path, "error", err)
		return
	}
	slog.Debug("inbox: detection", "camera", det.Camera, "types", det.Types, "image", det.Image.FileName())
	w.Bus.Publish(det)
}
