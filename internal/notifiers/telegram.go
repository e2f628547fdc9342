package notifiers

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Fullex26/camnotify/internal/config"
	"github.com/Fullex26/camnotify/pkg/models"
)

const telegramAPI = "https://api.telegram.org/bot%s/%s"

// Telegram sends notifications via Telegram Bot API
type Telegram struct {
	token     string
	chatID    string
	sendImage bool
	client    *http.Client
	log       *slog.Logger
}

func NewTelegram(cfg config.TelegramConfig, client *http.Client) *Telegram {
	return &Telegram{
		token:     cfg.BotToken,
		chatID:    cfg.ChatID,
		sendImage: cfg.SendImage,
		client:    client,
		log:       slog.Default().With("notifier", "telegram"),
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, d models.Detection) (models.Dispatch, error) {
	log := t.log.With("camera", d.Camera)
	rec := newDispatch(t.Name(), d)
	caption := formatCaption(d)

	if !t.sendImage || d.Image == nil {
		err := t.sendMessage(ctx, log, caption, &rec)
		return rec, err
	}

	img, err := d.Image.Open()
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.Error = err.Error()
		return rec, fmt.Errorf("opening image: %w", err)
	}
	defer img.Close()

	err = t.sendPhoto(ctx, log, caption, d.Image.FileName(), img, &rec)
	return rec, err
}

func (t *Telegram) Test(ctx context.Context) error {
	rec := newDispatch(t.Name(), models.Detection{ID: "test"})
	err := t.sendMessage(ctx, t.log, "📷 <b>camnotify</b> — Test notification\n\nIf you see this, camnotify is connected!", &rec)
	return testResult(t.Name(), rec, err)
}

func (t *Telegram) sendMessage(ctx context.Context, log *slog.Logger, text string, rec *models.Dispatch) error {
	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("parse_mode", "HTML")
	data.Set("text", text)

	return t.post(ctx, log, "sendMessage", strings.NewReader(data.Encode()), "application/x-www-form-urlencoded", rec)
}

func (t *Telegram) sendPhoto(ctx context.Context, log *slog.Logger, caption, filename string, img io.Reader, rec *models.Dispatch) error {
	form, contentType := newFormBody([]part{
		fieldPart("chat_id", t.chatID),
		fieldPart("parse_mode", "HTML"),
		fieldPart("caption", caption),
		filePart("photo", filename, img),
	})
	defer form.finish()

	return t.post(ctx, log, "sendPhoto", form, contentType, rec)
}

func (t *Telegram) post(ctx context.Context, log *slog.Logger, apiMethod string, body io.Reader, contentType string, rec *models.Dispatch) error {
	apiURL := fmt.Sprintf(telegramAPI, t.token, apiMethod)
	rec.Method = http.MethodPost
	// Keep the bot token out of the dispatch history.
	rec.URL = fmt.Sprintf(telegramAPI, "<token>", apiMethod)

	req, err := newRequest(ctx, http.MethodPost, apiURL, body)
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.Error = err.Error()
		return fmt.Errorf("building telegram request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	if err := do(t.client, log, req, rec); err != nil {
		// url.Error carries the request URL, which embeds the token.
		rec.Error = redact(rec.Error, t.token)
		return fmt.Errorf("telegram send failed: %s", redact(err.Error(), t.token))
	}
	return nil
}

func formatCaption(d models.Detection) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📷 <b>%s</b>\n", html.EscapeString(d.Camera)))
	b.WriteString(fmt.Sprintf("Detected: %s", html.EscapeString(describeTypes(d.Types))))
	if !d.Timestamp.IsZero() {
		b.WriteString(fmt.Sprintf("\n<i>%s</i>", d.Timestamp.Format("2006-01-02 15:04:05")))
	}
	return b.String()
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "<token>")
}
