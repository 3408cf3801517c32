// Package sheets talks to the spreadsheet bridge: a single
// upsert-by-key endpoint in front of the Google Sheet. The bridge is
// responsible for upsert semantics; this client just delivers rows.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Characters that make a spreadsheet treat a cell as a formula.
var formulaPrefixes = "=+-@\t\r\n"

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 20 * time.Second},
	}
}

type upsertRequest struct {
	Key    string         `json:"key"`
	Fields map[string]any `json:"fields"`
}

// Upsert writes one mirror row keyed by the transaction id. The bridge
// replaces an existing row with the same key, so retrying after a lost
// acknowledgement cannot duplicate anything.
func (c *Client) Upsert(ctx context.Context, naturalKey string, fields map[string]any) error {
	sanitized := make(map[string]any, len(fields))
	for k, v := range fields {
		sanitized[k] = sanitizeCell(v)
	}

	body, err := json.Marshal(upsertRequest{Key: naturalKey, Fields: sanitized})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upsert", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sheets bridge: upsert %s: status %d", naturalKey, resp.StatusCode)
	}
	return nil
}

// sanitizeCell defuses formula injection: string values starting with
// =, +, -, @ or control characters get a leading apostrophe so the
// sheet keeps them as text. Numbers pass through untouched.
func sanitizeCell(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if s != "" && strings.ContainsRune(formulaPrefixes, rune(s[0])) {
		return "'" + s
	}
	return s
}
