package simd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/egosim/pkg/logger"
	"github.com/GoSim-25-26J-441/egosim/pkg/models"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

var (
	ErrInvalidURL       = errors.New("invalid callback url")
	ErrMetadataEndpoint = errors.New("callback url targets a cloud metadata endpoint")
)

// NotificationPayload represents the JSON payload sent to the callback URL
type NotificationPayload struct {
	RunID           string           `json:"run_id"`
	Status          models.RunStatus `json:"status"`
	CreatedAtUnixMs int64            `json:"created_at_unix_ms"`
	StartedAtUnixMs int64            `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64            `json:"ended_at_unix_ms,omitempty"`
	Error           string           `json:"error,omitempty"`
	Egos            int              `json:"egos,omitempty"`
	EgoRatio        float64          `json:"ego_ratio,omitempty"`
	Summaries       []models.Summary `json:"summaries,omitempty"`
	Progress        *models.Progress `json:"progress,omitempty"`
	Timestamp       int64            `json:"timestamp"` // When notification was sent
}

// Notifier posts run completion notifications to client callbacks
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy
}

// NewNotifier creates a new notification service
func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 3,
		backoff:    utils.NewExponentialBackoff(time.Second, 30*time.Second, 2),
	}
}

// validateCallbackURL rejects callbacks that are not plain http(s) URLs or
// that point at a cloud metadata service
func validateCallbackURL(raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "{run_id}", "x"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if host == "metadata.google.internal" {
		return ErrMetadataEndpoint
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() {
			return fmt.Errorf("%w: unspecified address %s", ErrInvalidURL, host)
		}
		if ip.IsLinkLocalUnicast() {
			return ErrMetadataEndpoint
		}
	}
	return nil
}

// Notify sends a notification to the callback URL asynchronously
func (n *Notifier) Notify(callbackURL string, callbackSecret string, rec *RunRecord) {
	if callbackURL == "" {
		return
	}
	if rec == nil || rec.Run == nil {
		logger.Warn("cannot notify: invalid run record", "callback_url", callbackURL)
		return
	}

	finalURL := strings.ReplaceAll(callbackURL, "{run_id}", rec.Run.ID)

	payload := NotificationPayload{
		RunID:           rec.Run.ID,
		Status:          rec.Run.Status,
		CreatedAtUnixMs: rec.Run.CreatedAtUnixMs,
		StartedAtUnixMs: rec.Run.StartedAtUnixMs,
		EndedAtUnixMs:   rec.Run.EndedAtUnixMs,
		Error:           rec.Run.Error,
		Egos:            rec.Run.Egos,
		EgoRatio:        rec.Run.EgoRatio,
		Summaries:       rec.Run.Summaries,
		Progress:        rec.Run.Progress,
		Timestamp:       time.Now().UTC().UnixMilli(),
	}

	go n.sendNotification(finalURL, callbackSecret, payload)
}

// sendNotification performs the actual HTTP POST with retry logic
func (n *Notifier) sendNotification(callbackURL string, callbackSecret string, payload NotificationPayload) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload",
			"callback_url", callbackURL,
			"run_id", payload.RunID,
			"error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff.NextDelay(attempt - 1)
			logger.Debug("retrying notification",
				"callback_url", callbackURL,
				"run_id", payload.RunID,
				"attempt", attempt,
				"delay", delay)
			time.Sleep(delay)
		}

		req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(payloadJSON))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "egosim/1.0")
		if callbackSecret != "" {
			req.Header.Set("X-Egosim-Callback-Secret", callbackSecret)
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			logger.Warn("notification attempt failed",
				"callback_url", callbackURL,
				"run_id", payload.RunID,
				"attempt", attempt+1,
				"error", err)
			continue
		}

		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		responseBody := string(bodyBytes)
		if len(responseBody) > 200 {
			responseBody = responseBody[:200] + "..."
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("notification sent successfully",
				"run_id", payload.RunID,
				"status", payload.Status,
				"status_code", resp.StatusCode)
			return
		}

		lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		logger.Warn("notification returned non-2xx status",
			"callback_url", callbackURL,
			"run_id", payload.RunID,
			"status_code", resp.StatusCode,
			"response_body", responseBody,
			"attempt", attempt+1)
	}

	logger.Error("failed to send notification after retries",
		"callback_url", callbackURL,
		"run_id", payload.RunID,
		"status", payload.Status,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
}
