package notifiers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Fullex26/camnotify/pkg/models"
)

// handleResponse logs the status of a completed request. The body is never parsed.
func handleResponse(log *slog.Logger, resp *http.Response) models.Outcome {
	// Drain a little so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Info("success", "status", resp.StatusCode)
		return models.OutcomeSuccess
	}
	log.Warn(fmt.Sprintf("endpoint responded with HTTP status code %d", resp.StatusCode), "status", resp.StatusCode)
	return models.OutcomeRejected
}

// do sends req and fills in the transport-level fields of rec
func do(client *http.Client, log *slog.Logger, req *http.Request, rec *models.Dispatch) error {
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := client.Do(req)
	rec.Duration = time.Since(start)
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.Error = err.Error()
		return err
	}
	defer resp.Body.Close()

	rec.StatusCode = resp.StatusCode
	rec.Outcome = handleResponse(log, resp)
	return nil
}

// testResult turns a test dispatch into an error for the CLI
func testResult(name string, rec models.Dispatch, err error) error {
	if err != nil {
		return err
	}
	if rec.Outcome != models.OutcomeSuccess {
		if rec.StatusCode == 0 {
			return fmt.Errorf("%s test %s: %s", name, rec.Outcome, rec.Error)
		}
		return fmt.Errorf("%s returned status %d", name, rec.StatusCode)
	}
	return nil
}
