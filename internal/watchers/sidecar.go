package watchers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Fullex26/camnotify/pkg/models"
)

const (
	sidecarExt = ".json"
	defaultExt = ".jpg"
	maxSidecar = 64 * 1024
)

// sidecar is the JSON document the detection pipeline drops next to each snapshot
type sidecar struct {
	Camera    string    `json:"camera"`
	Image     string    `json:"image"`
	Types     []string  `json:"types"`
	Timestamp time.Time `json:"timestamp"`
}

func isSidecar(name string) bool {
	return strings.HasSuffix(name, sidecarExt) && !strings.HasPrefix(name, ".")
}

// LoadSidecar reads a sidecar file and turns it into a Detection.
// The image defaults to the sidecar's basename with .jpg and relative
// paths resolve against the sidecar's directory.
func LoadSidecar(path string) (models.Detection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Detection{}, fmt.Errorf("reading sidecar: %w", err)
	}
	if info.Size() > maxSidecar {
		return models.Detection{}, fmt.Errorf("sidecar %s is %d bytes, limit is %d", path, info.Size(), maxSidecar)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.Detection{}, fmt.Errorf("reading sidecar: %w", err)
	}

	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return models.Detection{}, fmt.Errorf("parsing sidecar %s: %w", path, err)
	}
	if sc.Camera == "" {
		return models.Detection{}, errors.New("sidecar has no camera")
	}

	image := sc.Image
	if image == "" {
		image = strings.TrimSuffix(filepath.Base(path), sidecarExt) + defaultExt
	}
	if !filepath.IsAbs(image) {
		image = filepath.Join(filepath.Dir(path), image)
	}

	ts := sc.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return models.Detection{
		ID:        uuid.NewString(),
		Camera:    sc.Camera,
		Image:     models.FileImage{Path: image},
		Types:     sc.Types,
		Timestamp: ts,
	}, nil
}
