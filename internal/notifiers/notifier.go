package notifiers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Fullex26/camnotify/pkg/models"
)

const userAgent = "camnotify/0.1"

// Notifier sends detections to external channels
type Notifier interface {
	// Name returns the notifier identifier
	Name() string
	// Send delivers one detection and reports how the attempt went.
	// A non-nil error means the request could not be completed (transport or local I/O);
	// non-2xx answers and unsupported methods are reported through the Dispatch only.
	Send(ctx context.Context, d models.Detection) (models.Dispatch, error)
	// Test sends a test notification to verify configuration
	Test(ctx context.Context) error
}

// Filter restricts a notifier to a set of cameras
type Filter struct {
	Notifier
	cameras []string
}

// WithCameras wraps n so it only accepts the listed cameras. An empty list returns n as is.
func WithCameras(n Notifier, cameras []string) Notifier {
	if len(cameras) == 0 {
		return n
	}
	return &Filter{Notifier: n, cameras: cameras}
}

func (f *Filter) accepts(camera string) bool {
	for _, c := range f.cameras {
		if strings.EqualFold(c, camera) {
			return true
		}
	}
	return false
}

// Accepts reports whether n wants detections from camera
func Accepts(n Notifier, camera string) bool {
	if f, ok := n.(*Filter); ok {
		return f.accepts(camera)
	}
	return true
}

// describeTypes renders the detected types for human-facing messages
func describeTypes(types []string) string {
	if len(types) == 0 {
		return "motion"
	}
	return strings.Join(types, ", ")
}

func newDispatch(name string, d models.Detection) models.Dispatch {
	return models.Dispatch{
		ID:          uuid.NewString(),
		DetectionID: d.ID,
		Notifier:    name,
		Camera:      d.Camera,
		Timestamp:   time.Now(),
	}
}
