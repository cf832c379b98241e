package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikeboe/deep-research/pkg/research"
)

func TestExtractClientExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			t.Errorf("path = %q, want /extract", r.URL.Path)
		}

		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.URLs) != 1 || req.URLs[0] != "https://example.com/report" {
			t.Errorf("urls = %v", req.URLs)
		}
		if req.Prompt == "" {
			t.Error("prompt missing")
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{
					"url": "https://example.com/report",
					"claims": []map[string]interface{}{
						{
							"statement":    "the market grew 12% in 2024",
							"section":      "Overview",
							"page":         3,
							"confidence":   "high",
							"metric_label": "growth",
							"metric_value": 12.0,
							"unit":         "%",
						},
						{"statement": ""}, // empty statements are dropped
					},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewExtractClient(srv.URL, "test-key")
	extractions, err := client.Extract(context.Background(), []string{"https://example.com/report"}, "extract facts")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(extractions) != 1 {
		t.Fatalf("got %d extractions, want 1", len(extractions))
	}
	if len(extractions[0].Claims) != 1 {
		t.Fatalf("got %d claims, want 1 (empty statements dropped)", len(extractions[0].Claims))
	}

	claim := extractions[0].Claims[0]
	if claim.Confidence != research.ConfidenceHigh {
		t.Errorf("confidence = %q, want HIGH", claim.Confidence)
	}
	if claim.Page != 3 || claim.Section != "Overview" {
		t.Errorf("unexpected provenance %+v", claim)
	}
	if claim.MetricLabel != "growth" || claim.MetricValue != 12.0 || claim.Unit != "%" {
		t.Errorf("unexpected metric %+v", claim)
	}
}

func TestExtractClientNoURLs(t *testing.T) {
	client := NewExtractClient("http://unused", "test-key")
	extractions, err := client.Extract(context.Background(), nil, "prompt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if extractions != nil {
		t.Errorf("expected nil extractions, got %v", extractions)
	}
}

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		raw  string
		want research.Confidence
	}{
		{"HIGH", research.ConfidenceHigh},
		{" high ", research.ConfidenceHigh},
		{"Medium", research.ConfidenceMedium},
		{"low", research.ConfidenceLow},
		{"certain", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeConfidence(tt.raw); got != tt.want {
			t.Errorf("normalizeConfidence(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
