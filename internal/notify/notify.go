// Package notify delivers the rendered report text.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Channel defines the interface for report delivery.
type Channel interface {
	Send(ctx context.Context, text string) error
	Type() string
}

// SlackChannel posts the report to a Slack incoming webhook.
type SlackChannel struct {
	WebhookURL string
	Timeout    time.Duration
	client     *http.Client
}

// NewSlackChannel creates a Slack webhook channel.
func NewSlackChannel(webhookURL string, timeout time.Duration) *SlackChannel {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &SlackChannel{
		WebhookURL: webhookURL,
		Timeout:    timeout,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *SlackChannel) Type() string {
	return "slack"
}

func (s *SlackChannel) Send(ctx context.Context, text string) error {
	payload := map[string]interface{}{"text": text}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogChannel writes the report to the log instead of delivering it.
// Used for dry runs.
type LogChannel struct {
	Logger *slog.Logger
}

// NewLogChannel creates a log-based delivery channel.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{Logger: logger}
}

func (l *LogChannel) Type() string {
	return "log"
}

func (l *LogChannel) Send(ctx context.Context, text string) error {
	l.Logger.InfoContext(ctx, "report", slog.String("report", text))
	return nil
}

// MultiChannel fans the report out to several channels. Delivery succeeds
// only when every channel accepts it: the seen set must not be persisted
// on the strength of a log line alone.
type MultiChannel struct {
	channels []Channel
}

// NewMultiChannel creates a fan-out channel.
func NewMultiChannel(channels ...Channel) *MultiChannel {
	return &MultiChannel{channels: channels}
}

func (m *MultiChannel) Type() string {
	return "multi"
}

func (m *MultiChannel) Send(ctx context.Context, text string) error {
	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(ctx, text); err != nil {
			errs = append(errs, fmt.Errorf("%s channel failed: %w", ch.Type(), err))
		}
	}
	return errors.Join(errs...)
}
