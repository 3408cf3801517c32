// Package ocr extracts text from payment screenshots and receipts via
// the Google Vision REST API.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const visionURL = "https://vision.googleapis.com/v1/images:annotate"

// Extractor is the narrow boundary the webhook handler depends on.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (string, error)
}

type VisionClient struct {
	APIKey string
	HTTP   *http.Client
}

func NewVisionClient(apiKey string) *VisionClient {
	return &VisionClient{
		APIKey: apiKey,
		HTTP:   &http.Client{Timeout: 30 * time.Second},
	}
}

type visionImage struct {
	Content string `json:"content"`
}

type visionFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type visionImageContext struct {
	LanguageHints []string `json:"languageHints"`
}

type visionAnnotateRequest struct {
	Image        visionImage        `json:"image"`
	Features     []visionFeature    `json:"features"`
	ImageContext visionImageContext `json:"imageContext"`
}

type visionRequest struct {
	Requests []visionAnnotateRequest `json:"requests"`
}

type visionResponse struct {
	Responses []struct {
		FullTextAnnotation struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// Extract runs TEXT_DETECTION with Ukrainian/Russian language hints and
// returns the full text annotation, empty when the image has none.
func (c *VisionClient) Extract(ctx context.Context, image []byte) (string, error) {
	body, err := json.Marshal(visionRequest{
		Requests: []visionAnnotateRequest{{
			Image:        visionImage{Content: base64.StdEncoding.EncodeToString(image)},
			Features:     []visionFeature{{Type: "TEXT_DETECTION", MaxResults: 1}},
			ImageContext: visionImageContext{LanguageHints: []string{"uk", "ru"}},
		}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, visionURL+"?key="+c.APIKey, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision: status %d", resp.StatusCode)
	}

	var out visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Responses) == 0 {
		return "", nil
	}
	if out.Responses[0].Error != nil {
		return "", fmt.Errorf("vision: %s", out.Responses[0].Error.Message)
	}
	return out.Responses[0].FullTextAnnotation.Text, nil
}
