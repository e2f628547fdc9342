package eventbus

import (
	"sync"

	"github.com/Fullex26/camnotify/pkg/models"
)

// Handler is a function that receives detections
type Handler func(d models.Detection)

// Bus is a simple in-process pub/sub bus for detections
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		handlers: make([]Handler, 0),
	}
}

// Subscribe registers a handler for all detections
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish sends a detection to all subscribers.
// Handlers run in their own goroutines so a slow endpoint never blocks the watcher.
func (b *Bus) Publish(d models.Detection) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		go h(d)
	}
}
