//go:build linux

package watchers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Fullex26/camnotify/internal/config"
	"github.com/Fullex26/camnotify/internal/eventbus"
	"github.com/Fullex26/camnotify/pkg/models"
)

func startInbox(t *testing.T) (string, <-chan models.Detection) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "inbox")
	cfg := config.DefaultConfig()
	cfg.Watch.Dir = dir

	bus := eventbus.New()
	got := make(chan models.Detection, 4)
	bus.Subscribe(func(d models.Detection) { got <- d })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	w := NewInboxWatcher(cfg, bus)
	go func() { errc <- w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("Start() returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop after cancel")
		}
	})

	// Wait for the watcher to create the inbox and register its watch.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("inbox dir was never created")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	return dir, got
}

func TestInboxWatcher_Name(t *testing.T) {
	w := NewInboxWatcher(config.DefaultConfig(), eventbus.New())
	if w.Name() != "inbox" {
		t.Errorf("Name() = %q", w.Name())
	}
}

func TestInboxWatcher_PublishesSidecar(t *testing.T) {
	dir, got := startInbox(t)

	writeFile(t, dir, "front-1.jpg", "jpeg")
	writeFile(t, dir, "front-1.json", `{"camera":"Front","types":["person"]}`)

	select {
	case d := <-got:
		if d.Camera != "Front" {
			t.Errorf("Camera = %q", d.Camera)
		}
		if d.Image.FileName() != "front-1.jpg" {
			t.Errorf("image = %q", d.Image.FileName())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no detection published")
	}
}

func TestInboxWatcher_RenamedIntoPlace(t *testing.T) {
	dir, got := startInbox(t)

	tmp := writeFile(t, t.TempDir(), "staging.json", `{"camera":"Back"}`)
	if err := os.Rename(tmp, filepath.Join(dir, "back-2.json")); err != nil {
		t.Skipf("cross-device rename unavailable: %v", err)
	}

	select {
	case d := <-got:
		if d.Camera != "Back" {
			t.Errorf("Camera = %q", d.Camera)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no detection published for renamed sidecar")
	}
}

func TestInboxWatcher_IgnoresOtherFiles(t *testing.T) {
	dir, got := startInbox(t)

	writeFile(t, dir, "front-1.jpg", "jpeg")
	writeFile(t, dir, "broken.json", `{not json`)

	select {
	case d := <-got:
		t.Errorf("unexpected detection %+v", d)
	case <-time.After(200 * time.Millisecond):
	}
}
