// Package workobssdk is a minimal typed client for the Work Observability
// HTTP API.
package workobssdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a workobs server.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "api",
		Timeout:  10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Fragmenter is one interruption reason with its weekly count.
type Fragmenter struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// WorkBlock is a replayed work block.
type WorkBlock struct {
	BlockID         string  `json:"blockId"`
	Intent          string  `json:"intent"`
	Notes           *string `json:"notes"`
	Date            string  `json:"date"`
	Interrupted     bool    `json:"interrupted"`
	ReasonCode      *string `json:"reasonCode"`
	ActualOutcome   *string `json:"actualOutcome"`
	DurationMinutes *int    `json:"durationMinutes"`
	DurationLabel   string  `json:"durationLabel"`
}

// RecoveryBlock is a replayed recovery block.
type RecoveryBlock struct {
	BlockID         string `json:"blockId"`
	Kind            string `json:"kind"`
	Date            string `json:"date"`
	DurationMinutes *int   `json:"durationMinutes"`
	DurationLabel   string `json:"durationLabel"`
}

// DayRollup mirrors the /days/{date} response.
type DayRollup struct {
	Date           string          `json:"date"`
	Intents        []string        `json:"intents"`
	Blocks         []WorkBlock     `json:"blocks"`
	RecoveryBlocks []RecoveryBlock `json:"recoveryBlocks"`
	Metrics        map[string]any  `json:"metrics"`
}

// WeekRollup mirrors the /weeks/{yearWeek} response.
type WeekRollup struct {
	YearWeek   string         `json:"yearWeek"`
	Metrics    map[string]any `json:"metrics"`
	Reflection struct {
		TopFragmenters       []string `json:"topFragmenters"`
		NotPerformanceIssues []string `json:"notPerformanceIssues"`
		OneChangeNextWeek    string   `json:"oneChangeNextWeek"`
	} `json:"reflection"`
}

// SetDailyIntents replaces the intents for a date (max 5).
func (c *Client) SetDailyIntents(ctx context.Context, date string, intents []string) error {
	body := map[string]any{"date": date, "intents": intents}
	return c.do(ctx, http.MethodPost, "intents/daily", body, nil)
}

// StartBlock opens a work block and returns its id.
func (c *Client) StartBlock(ctx context.Context, date, intent string, notes *string) (string, error) {
	body := map[string]any{"date": date, "intent": intent}
	if notes != nil {
		body["notes"] = *notes
	}
	var resp struct {
		BlockID string `json:"blockId"`
	}
	err := c.do(ctx, http.MethodPost, "blocks/start", body, &resp)
	return resp.BlockID, err
}

// InterruptBlock records an interruption.
func (c *Client) InterruptBlock(ctx context.Context, blockID, reasonCode string) error {
	body := map[string]any{"blockId": blockID, "reasonCode": reasonCode}
	return c.do(ctx, http.MethodPost, "blocks/interrupt", body, nil)
}

// EndBlock closes a work block.
func (c *Client) EndBlock(ctx context.Context, blockID string, actualOutcome *string, durationMinutes *int) error {
	body := map[string]any{"blockId": blockID}
	if actualOutcome != nil {
		body["actualOutcome"] = *actualOutcome
	}
	if durationMinutes != nil {
		body["durationMinutes"] = *durationMinutes
	}
	return c.do(ctx, http.MethodPost, "blocks/end", body, nil)
}

// StartRecovery opens a recovery block (COFFEE or LUNCH).
func (c *Client) StartRecovery(ctx context.Context, date, kind string) (string, error) {
	body := map[string]any{"date": date, "kind": kind}
	var resp struct {
		BlockID string `json:"blockId"`
	}
	err := c.do(ctx, http.MethodPost, "recovery/start", body, &resp)
	return resp.BlockID, err
}

// EndRecovery closes a recovery block.
func (c *Client) EndRecovery(ctx context.Context, blockID string, durationMinutes int) error {
	body := map[string]any{"blockId": blockID, "durationMinutes": durationMinutes}
	return c.do(ctx, http.MethodPost, "recovery/end", body, nil)
}

// Day fetches the day rollup for a date.
func (c *Client) Day(ctx context.Context, date string) (DayRollup, error) {
	var resp DayRollup
	err := c.do(ctx, http.MethodGet, "days/"+url.PathEscape(date), nil, &resp)
	return resp, err
}

// Week fetches the week rollup for a YYYY-Www key.
func (c *Client) Week(ctx context.Context, yearWeek string) (WeekRollup, error) {
	var resp WeekRollup
	err := c.do(ctx, http.MethodGet, "weeks/"+url.PathEscape(yearWeek), nil, &resp)
	return resp, err
}

// SaveWeeklySummary records a weekly reflection.
func (c *Client) SaveWeeklySummary(ctx context.Context, yearWeek string, topFragmenters, notPerformanceIssues []string, oneChangeNextWeek string) error {
	body := map[string]any{
		"topFragmenters":       topFragmenters,
		"notPerformanceIssues": notPerformanceIssues,
		"oneChangeNextWeek":    oneChangeNextWeek,
	}
	endpoint := fmt.Sprintf("weeks/%s/summary", url.PathEscape(yearWeek))
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// ExportDay asks the server to write the Markdown report for a date and
// returns the path written.
func (c *Client) ExportDay(ctx context.Context, date string) (string, error) {
	var resp struct {
		Path string `json:"path"`
	}
	err := c.do(ctx, http.MethodPost, "export/day/"+url.PathEscape(date), nil, &resp)
	return resp.Path, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.Trim(c.BasePath, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
