package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mikeboe/deep-research/pkg/research"
)

// ExtractClient calls a claim-extraction API and implements the engine's
// Extractor contract. The service takes a list of URLs and an extraction
// prompt and returns structured claims per URL.
type ExtractClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewExtractClient(baseURL, apiKey string) *ExtractClient {
	return &ExtractClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type extractRequest struct {
	URLs   []string `json:"urls"`
	Prompt string   `json:"prompt"`
}

type extractResponse struct {
	Results []struct {
		URL    string `json:"url"`
		Claims []struct {
			Statement   string  `json:"statement"`
			Section     string  `json:"section"`
			Page        int     `json:"page"`
			Confidence  string  `json:"confidence"`
			MetricLabel string  `json:"metric_label"`
			MetricValue float64 `json:"metric_value"`
			Unit        string  `json:"unit"`
		} `json:"claims"`
	} `json:"results"`
}

// Extract fetches structured claims for the given URLs.
func (c *ExtractClient) Extract(ctx context.Context, urls []string, prompt string) ([]research.Extraction, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	jsonBody, err := json.Marshal(extractRequest{URLs: urls, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extract API returned status %s, body: %s", resp.Status, string(body))
	}

	var parsed extractResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extract response: %w", err)
	}

	extractions := make([]research.Extraction, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		ex := research.Extraction{URL: r.URL}
		for _, cl := range r.Claims {
			if cl.Statement == "" {
				continue
			}
			ex.Claims = append(ex.Claims, research.Claim{
				Statement:   cl.Statement,
				Section:     cl.Section,
				Page:        cl.Page,
				Confidence:  normalizeConfidence(cl.Confidence),
				MetricLabel: cl.MetricLabel,
				MetricValue: cl.MetricValue,
				Unit:        cl.Unit,
			})
		}
		extractions = append(extractions, ex)
	}
	return extractions, nil
}

func normalizeConfidence(raw string) research.Confidence {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "HIGH":
		return research.ConfidenceHigh
	case "MEDIUM":
		return research.ConfidenceMedium
	case "LOW":
		return research.ConfidenceLow
	default:
		return ""
	}
}
