package notifiers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Fullex26/camnotify/internal/config"
	"github.com/Fullex26/camnotify/pkg/models"
)

// Discord sends notifications via Discord webhooks
type Discord struct {
	webhookURL string
	sendImage  bool
	client     *http.Client
	log        *slog.Logger
}

func NewDiscord(cfg config.DiscordConfig, client *http.Client) *Discord {
	return &Discord{
		webhookURL: cfg.WebhookURL,
		sendImage:  cfg.SendImage,
		client:     client,
		log:        slog.Default().With("notifier", "discord"),
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, det models.Detection) (models.Dispatch, error) {
	log := d.log.With("camera", det.Camera)
	rec := newDispatch(d.Name(), det)

	embed := map[string]interface{}{
		"title":       fmt.Sprintf("📷 %s", det.Camera),
		"description": fmt.Sprintf("Detected: %s", describeTypes(det.Types)),
		"color":       0xe67e22,
	}
	if !det.Timestamp.IsZero() {
		embed["timestamp"] = det.Timestamp.UTC().Format(time.RFC3339)
	}

	var img io.ReadCloser
	if d.sendImage && det.Image != nil {
		var err error
		img, err = det.Image.Open()
		if err != nil {
			rec.Outcome = models.OutcomeFailed
			rec.Error = err.Error()
			return rec, fmt.Errorf("opening image: %w", err)
		}
		defer img.Close()
		embed["image"] = map[string]string{"url": "attachment://" + det.Image.FileName()}
	}

	payload := map[string]interface{}{
		"embeds": []interface{}{embed},
	}

	var attachment *part
	if img != nil {
		p := filePart("files[0]", det.Image.FileName(), img)
		attachment = &p
	}
	err := d.send(ctx, log, payload, attachment, &rec)
	return rec, err
}

func (d *Discord) Test(ctx context.Context) error {
	rec := newDispatch(d.Name(), models.Detection{ID: "test"})
	payload := map[string]string{"content": "📷 **camnotify** — Test notification\n\nIf you see this, camnotify is connected!"}
	err := d.send(ctx, d.log, payload, nil, &rec)
	return testResult(d.Name(), rec, err)
}

// send posts payload_json plus an optional file as multipart/form-data
func (d *Discord) send(ctx context.Context, log *slog.Logger, payload interface{}, attachment *part, rec *models.Dispatch) error {
	rec.Method = http.MethodPost
	rec.URL = d.webhookURL

	payloadPart, err := jsonPart("payload_json", payload)
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.Error = err.Error()
		return err
	}
	parts := []part{payloadPart}
	if attachment != nil {
		parts = append(parts, *attachment)
	}

	form, contentType := newFormBody(parts)
	defer form.finish()

	req, err := newRequest(ctx, http.MethodPost, d.webhookURL, form)
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.Error = err.Error()
		return fmt.Errorf("building discord request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	if err := do(d.client, log, req, rec); err != nil {
		return fmt.Errorf("discord send failed: %w", err)
	}
	return nil
}
