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

// typesField is the form field carrying the detected types as a JSON array
const typesField = "types"

// Webhook calls a user-defined third-party endpoint with the detection
type Webhook struct {
	url       string
	method    string // raw configured token, validated per send
	auth      *AuthHeader
	field     string
	sendImage bool
	sendTypes bool
	client    *http.Client
	log       *slog.Logger
}

func NewWebhook(cfg config.WebhookConfig, client *http.Client) *Webhook {
	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	return &Webhook{
		url:       cfg.URL,
		method:    method,
		auth:      BuildAuthHeader(cfg.Authentication, cfg.Username, cfg.Password, cfg.Token),
		field:     cfg.Field,
		sendImage: cfg.SendImage,
		sendTypes: cfg.SendTypes,
		client:    client,
		log:       slog.Default().With("notifier", "webhook"),
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, d models.Detection) (models.Dispatch, error) {
	log := w.log.With("camera", d.Camera)
	rec := newDispatch(w.Name(), d)
	rec.Method = w.method
	rec.URL = w.url

	log.Info("processing")

	// Validate before touching the image so an abort never leaves a stream open.
	method, err := ParseMethod(w.method)
	if err != nil {
		log.Error(fmt.Sprintf("the method type '%s' is not supported", w.method), "method", w.method)
		rec.Outcome = models.OutcomeAborted
		rec.Error = err.Error()
		return rec, nil
	}

	var body io.Reader
	var contentType string
	if method.HasBody() {
		var parts []part
		if w.sendTypes {
			types := d.Types
			if types == nil {
				types = []string{}
			}
			p, err := jsonPart(typesField, types)
			if err != nil {
				rec.Outcome = models.OutcomeFailed
				rec.Error = err.Error()
				return rec, err
			}
			parts = append(parts, p)
		}
		if w.sendImage {
			if d.Image == nil {
				log.Warn("no image to attach")
			} else {
				img, err := d.Image.Open()
				if err != nil {
					rec.Outcome = models.OutcomeFailed
					rec.Error = err.Error()
					return rec, fmt.Errorf("opening image: %w", err)
				}
				defer img.Close()
				parts = append(parts, filePart(w.field, d.Image.FileName(), img))
			}
		}
		if len(parts) > 0 {
			form, ct := newFormBody(parts)
			defer form.finish() // runs before img.Close
			body, contentType = form, ct
		}
	}

	req, err := newRequest(ctx, method.String(), w.url, body)
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.Error = err.Error()
		return rec, fmt.Errorf("building webhook request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if w.auth != nil {
		req.Header.Set("Authorization", w.auth.String())
	}

	log.Info(fmt.Sprintf("calling %s", method))
	if err := do(w.client, log, req, &rec); err != nil {
		return rec, fmt.Errorf("webhook send failed: %w", err)
	}
	return rec, nil
}

func (w *Webhook) Test(ctx context.Context) error {
	rec, err := w.Send(ctx, models.Detection{
		ID:        "test",
		Camera:    "camnotify-test",
		Types:     []string{"test"},
		Timestamp: time.Now(),
	})
	if err == nil && rec.Outcome == models.OutcomeAborted {
		return fmt.Errorf("%w: %q", ErrUnsupportedMethod, w.method)
	}
	return testResult(w.Name(), rec, err)
}
