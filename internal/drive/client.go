// Package drive uploads expense receipt photos through the drive
// bridge: one upload endpoint in front of a shared Google Drive
// folder. The bridge stores the file and answers with a link anyone
// with it can view; the link lands in the business record and the
// spreadsheet mirror.
package drive

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Uploader is what the inbound adapter needs: image bytes in, a
// shareable link out.
type Uploader interface {
	Upload(ctx context.Context, image []byte) (string, error)
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client

	Now func() time.Time
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Now:     time.Now,
	}
}

type uploadRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Content  string `json:"content"` // base64
}

type uploadResponse struct {
	Link string `json:"link"`
}

// Upload stores one receipt image and returns its shareable link.
func (c *Client) Upload(ctx context.Context, image []byte) (string, error) {
	mimeType, ext := sniffImage(image)
	name := "receipt_" + c.Now().Format("20060102_150405") + ext

	body, err := json.Marshal(uploadRequest{
		Filename: name,
		MimeType: mimeType,
		Content:  base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/receipts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("drive bridge: upload %s: status %d", name, resp.StatusCode)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("drive bridge: decode response: %w", err)
	}
	if out.Link == "" {
		return "", errors.New("drive bridge: empty link in response")
	}
	return out.Link, nil
}

// sniffImage detects the image type from magic bytes. Telegram photos
// are almost always JPEG, which is also the fallback.
func sniffImage(b []byte) (mimeType, ext string) {
	switch {
	case len(b) >= 8 && bytes.Equal(b[:8], []byte("\x89PNG\r\n\x1a\n")):
		return "image/png", ".png"
	case len(b) >= 2 && b[0] == 0xff && b[1] == 0xd8:
		return "image/jpeg", ".jpg"
	case len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return "image/webp", ".webp"
	default:
		return "image/jpeg", ".jpg"
	}
}
