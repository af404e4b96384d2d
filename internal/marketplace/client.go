// Package marketplace fetches raw license and churn records from the vendor
// reporting API. Everything it returns is loosely typed; normalization is
// the engine's job, not the client's.
package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/emberline/marketpulse/internal/extract"
)

// ErrExportTimeout marks an async export that did not complete before the
// polling deadline. Callers treat it as a degraded source (empty records),
// not a fatal run failure.
var ErrExportTimeout = errors.New("export did not complete before deadline")

// Config configures the reporting API client.
type Config struct {
	BaseURL  string
	Username string
	APIToken string
	VendorID string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// PollInterval and PollDeadline bound the async export polling loop.
	PollInterval time.Duration
	PollDeadline time.Duration
}

// Client talks to the vendor reporting endpoints with basic auth.
type Client struct {
	cfg    Config
	client *http.Client
}

// New creates a reporting API client. Zero durations get sensible defaults.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.PollDeadline == 0 {
		cfg.PollDeadline = 5 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// LicensesExport fetches licenses via the export endpoint (JSON) for a UTC
// date window, inclusive. Robust to the payload being a bare array, an
// object wrapper, or a single record.
func (c *Client) LicensesExport(ctx context.Context, start, end time.Time) ([]extract.RawRecord, error) {
	u := c.vendorURL("/reporting/licenses/export")
	params := url.Values{
		"startDate":        {start.Format("2006-01-02")},
		"endDate":          {end.Format("2006-01-02")},
		"dateType":         {"start"},
		"accept":           {"json"},
		"withDataInsights": {"true"},
	}

	payload, _, err := c.getJSON(ctx, u+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("licenses export: %w", err)
	}
	return extractItems(payload), nil
}

// Licenses fetches licenses via the paginated reporting endpoint for a UTC
// date window, following "next" links from the Link header or the body.
func (c *Client) Licenses(ctx context.Context, start, end time.Time) ([]extract.RawRecord, error) {
	params := url.Values{
		"startDate": {start.Format("2006-01-02")},
		"endDate":   {end.Format("2006-01-02")},
		"dateType":  {"start"},
	}
	next := c.vendorURL("/reporting/licenses") + "?" + params.Encode()

	var out []extract.RawRecord
	for next != "" {
		payload, header, err := c.getJSON(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("licenses page: %w", err)
		}

		out = append(out, extractItems(payload)...)

		next = headerNext(header)
		if next == "" {
			next = bodyNext(payload)
		}
		if next != "" && !strings.HasPrefix(next, "http") {
			next = c.cfg.BaseURL + next
		}
	}
	return out, nil
}

// ChurnEvents fetches uninstall/unsubscribe/disable feedback for a UTC date
// window via the feedback details export.
func (c *Client) ChurnEvents(ctx context.Context, start, end time.Time) ([]extract.RawRecord, error) {
	u := c.vendorURL("/reporting/feedback/details/export")
	params := url.Values{
		"startDate": {start.Format("2006-01-02")},
		"endDate":   {end.Format("2006-01-02")},
		"accept":    {"json"},
	}
	for _, t := range []string{"uninstall", "unsubscribe", "disable"} {
		params.Add("type", t)
	}

	payload, _, err := c.getJSON(ctx, u+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("feedback export: %w", err)
	}

	if obj, ok := payload.(map[string]interface{}); ok {
		if items := asRecords(obj["feedback"]); items != nil {
			return items, nil
		}
	}
	return extractItems(payload), nil
}

// TransactionsExport starts an asynchronous transactions export and polls
// until it completes, then downloads the records. If the polling deadline
// elapses first, it returns ErrExportTimeout; the caller degrades that
// source to zero records instead of failing the run.
func (c *Client) TransactionsExport(ctx context.Context, start, end time.Time) ([]extract.RawRecord, error) {
	params := url.Values{
		"startDate": {start.Format("2006-01-02")},
		"endDate":   {end.Format("2006-01-02")},
		"accept":    {"json"},
	}
	startURL := c.vendorURL("/reporting/transactions/export/async") + "?" + params.Encode()

	payload, _, err := c.doJSON(ctx, http.MethodPost, startURL)
	if err != nil {
		return nil, fmt.Errorf("start transactions export: %w", err)
	}
	obj, _ := payload.(map[string]interface{})
	exportID := extract.FirstString(obj["id"], obj["exportId"])
	if exportID == "" {
		return nil, fmt.Errorf("start transactions export: response carried no export id")
	}

	statusURL := c.vendorURL("/reporting/transactions/export/async/" + exportID + "/status")
	deadline := time.Now().Add(c.cfg.PollDeadline)
	for {
		payload, _, err := c.getJSON(ctx, statusURL)
		if err != nil {
			return nil, fmt.Errorf("poll transactions export: %w", err)
		}
		obj, _ := payload.(map[string]interface{})
		switch strings.ToUpper(extract.FirstString(obj["status"], obj["state"])) {
		case "COMPLETED", "COMPLETE", "DONE":
			return c.downloadExport(ctx, exportID)
		case "FAILED", "ERROR":
			return nil, fmt.Errorf("transactions export %s failed upstream", exportID)
		}

		if time.Now().After(deadline) {
			return nil, ErrExportTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

func (c *Client) downloadExport(ctx context.Context, exportID string) ([]extract.RawRecord, error) {
	u := c.vendorURL("/reporting/transactions/export/async/" + exportID + "/download")
	payload, _, err := c.getJSON(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("download transactions export: %w", err)
	}
	return extractItems(payload), nil
}

func (c *Client) vendorURL(path string) string {
	return fmt.Sprintf("%s/rest/2/vendors/%s%s", c.cfg.BaseURL, c.cfg.VendorID, path)
}

func (c *Client) getJSON(ctx context.Context, rawURL string) (interface{}, http.Header, error) {
	return c.doJSON(ctx, http.MethodGet, rawURL)
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string) (interface{}, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("%s returned status %d", rawURL, resp.StatusCode)
	}

	var payload interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return payload, resp.Header, nil
}

var linkNextRe = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?next"?`)

// headerNext extracts the rel="next" target from a Link header, if any.
func headerNext(header http.Header) string {
	for _, link := range header.Values("Link") {
		if m := linkNextRe.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	return ""
}
