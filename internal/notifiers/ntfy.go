package notifiers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Fullex26/camnotify/internal/config"
	"github.com/Fullex26/camnotify/pkg/models"
)

// Ntfy sends notifications via ntfy.sh
type Ntfy struct {
	server    string
	topic     string
	auth      *AuthHeader
	sendImage bool
	client    *http.Client
	log       *slog.Logger
}

func NewNtfy(cfg config.NtfyConfig, client *http.Client) *Ntfy {
	server := cfg.Server
	if server == "" {
		server = "https://ntfy.sh"
	}
	var auth *AuthHeader
	if cfg.Token != "" {
		auth = BuildAuthHeader(models.AuthBearer, "", "", cfg.Token)
	}
	return &Ntfy{
		server:    strings.TrimRight(server, "/"),
		topic:     cfg.Topic,
		auth:      auth,
		sendImage: cfg.SendImage,
		client:    client,
		log:       slog.Default().With("notifier", "ntfy"),
	}
}

func (n *Ntfy) Name() string { return "ntfy" }

// Send publishes the detection. With an image the snapshot is PUT as an
// attachment and the text travels in the Message header.
func (n *Ntfy) Send(ctx context.Context, d models.Detection) (models.Dispatch, error) {
	log := n.log.With("camera", d.Camera)
	rec := newDispatch(n.Name(), d)

	title := fmt.Sprintf("camnotify: %s", d.Camera)
	message := fmt.Sprintf("Detected: %s", describeTypes(d.Types))
	headers := map[string]string{
		"Title":    title,
		"Priority": "high",
		"Tags":     "camera",
	}

	if !n.sendImage || d.Image == nil {
		err := n.send(ctx, log, http.MethodPost, strings.NewReader(message), headers, &rec)
		return rec, err
	}

	img, err := d.Image.Open()
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.Error = err.Error()
		return rec, fmt.Errorf("opening image: %w", err)
	}
	defer img.Close()

	headers["Filename"] = d.Image.FileName()
	headers["Message"] = message

	stream := newStreamBody(img)
	defer stream.finish()

	err = n.send(ctx, log, http.MethodPut, stream, headers, &rec)
	return rec, err
}

func (n *Ntfy) Test(ctx context.Context) error {
	rec := newDispatch(n.Name(), models.Detection{ID: "test"})
	err := n.send(ctx, n.log, http.MethodPost, strings.NewReader("Test notification — camnotify is connected!"),
		map[string]string{"Title": "camnotify", "Tags": "white_check_mark"}, &rec)
	return testResult(n.Name(), rec, err)
}

func (n *Ntfy) send(ctx context.Context, log *slog.Logger, method string, body io.Reader, headers map[string]string, rec *models.Dispatch) error {
	url := fmt.Sprintf("%s/%s", n.server, n.topic)
	rec.Method = method
	rec.URL = url

	req, err := newRequest(ctx, method, url, body)
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.Error = err.Error()
		return fmt.Errorf("building ntfy request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if n.auth != nil {
		req.Header.Set("Authorization", n.auth.String())
	}

	if err := do(n.client, log, req, rec); err != nil {
		return fmt.Errorf("ntfy send failed: %w", err)
	}
	return nil
}
