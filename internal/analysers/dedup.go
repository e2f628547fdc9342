package analysers

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Fullex26/camnotify/pkg/models"
)

// Deduplicator prevents notification spam when a camera keeps seeing the same thing
type Deduplicator struct {
	mu       sync.Mutex
	seen     map[string]time.Time // dedup key -> last sent time
	cooldown time.Duration
}

func NewDeduplicator(cooldown time.Duration) *Deduplicator {
	return &Deduplicator{
		seen:     make(map[string]time.Time),
		cooldown: cooldown,
	}
}

// ShouldAlert returns true if this camera has not reported the same set of
// types within the cooldown. The first occurrence always gets through.
func (d *Deduplicator) ShouldAlert(det models.Detection) bool {
	key := dedupKey(det)

	d.mu.Lock()
	defer d.mu.Unlock()

	lastSent, exists := d.seen[key]
	if !exists || time.Since(lastSent) > d.cooldown {
		d.seen[key] = time.Now()
		return true
	}

	return false
}

// Cleanup removes expired entries to prevent memory leak
func (d *Deduplicator) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, lastSent := range d.seen {
		if time.Since(lastSent) > d.cooldown*2 {
			delete(d.seen, key)
		}
	}
}

// dedupKey is camera plus the sorted, lower-cased types, so order and case don't matter
func dedupKey(det models.Detection) string {
	types := make([]string, len(det.Types))
	for i, t := range det.Types {
		types[i] = strings.ToLower(t)
	}
	sort.Strings(types)
	return strings.ToLower(det.Camera) + ":" + strings.Join(types, ",")
}
