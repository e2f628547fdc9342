package models

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AuthorizationMethod selects how a notifier authenticates against its endpoint
type AuthorizationMethod int

const (
	AuthNone AuthorizationMethod = iota
	AuthBasic
	AuthBearer
)

func (a AuthorizationMethod) String() string {
	switch a {
	case AuthNone:
		return "none"
	case AuthBasic:
		return "basic"
	case AuthBearer:
		return "bearer"
	}
	return "unknown"
}

// MarshalText lets the method round-trip through YAML and JSON as a word.
func (a AuthorizationMethod) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts none/basic/bearer in any case. Empty means none.
func (a *AuthorizationMethod) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "none":
		*a = AuthNone
	case "basic":
		*a = AuthBasic
	case "bearer":
		*a = AuthBearer
	default:
		return fmt.Errorf("unknown authentication %q (must be none, basic, or bearer)", string(text))
	}
	return nil
}

// Image is the processed snapshot produced by the detection pipeline.
// Open is called once per dispatch and the caller must close the stream.
type Image interface {
	FileName() string
	Open() (io.ReadCloser, error)
}

// FileImage is an Image backed by a file on disk
type FileImage struct {
	Path string
}

func (f FileImage) FileName() string { return filepath.Base(f.Path) }

func (f FileImage) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// Detection is what flows through the bus: one camera, one image, the types found
type Detection struct {
	ID        string
	Camera    string
	Image     Image // nil when the pipeline produced no snapshot
	Types     []string
	Timestamp time.Time
}

// Outcome is the result of a single dispatch attempt
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"  // endpoint answered 2xx
	OutcomeRejected Outcome = "rejected" // endpoint answered non-2xx
	OutcomeAborted  Outcome = "aborted"  // never sent (unsupported method)
	OutcomeFailed   Outcome = "failed"   // transport error
)

func (o Outcome) Emoji() string {
	switch o {
	case OutcomeSuccess:
		return "✅"
	case OutcomeRejected:
		return "🟡"
	case OutcomeAborted:
		return "⛔"
	default:
		return "🔴"
	}
}

// Dispatch records one attempt to deliver a detection to one notifier
type Dispatch struct {
	ID          string        `json:"id"`
	DetectionID string        `json:"detection_id"`
	Notifier    string        `json:"notifier"`
	Camera      string        `json:"camera"`
	Method      string        `json:"method"`
	URL         string        `json:"url"`
	StatusCode  int           `json:"status_code"` // 0 when no response was received
	Outcome     Outcome       `json:"outcome"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Timestamp   time.Time     `json:"timestamp"`
}
