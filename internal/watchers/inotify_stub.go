//go:build !linux

package watchers

import (
	"context"

	"github.com/Fullex26/camnotify/internal/config"
	"github.com/Fullex26/camnotify/internal/eventbus"
)

// InboxWatcher is a no-op on non-Linux platforms (inotify is Linux-only).
type InboxWatcher struct {
	Base
}

func NewInboxWatcher(cfg *config.Config, bus *eventbus.Bus) *InboxWatcher {
	return &InboxWatcher{Base: Base{Cfg: cfg, Bus: bus}}
}

func (w *InboxWatcher) Name() string                    { return "inbox" }
func (w *InboxWatcher) Start(ctx context.Context) error { <-ctx.Done(); return nil }
func (w *InboxWatcher) Stop() error                     { return nil }
