package research

import "context"

// Searcher wraps an external search capability returning ranked results.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Source, error)
}

// Claim is one structured statement extracted from a source document.
type Claim struct {
	Statement   string     `json:"statement"`
	Section     string     `json:"section,omitempty"`
	Page        int        `json:"page,omitempty"`
	Confidence  Confidence `json:"confidence,omitempty"`
	MetricLabel string     `json:"metric_label,omitempty"`
	MetricValue float64    `json:"metric_value,omitempty"`
	Unit        string     `json:"unit,omitempty"`
}

// Extraction holds the claims recovered from a single URL.
type Extraction struct {
	URL    string  `json:"url"`
	Claims []Claim `json:"claims"`
}

// Extractor wraps an external content/claim-extraction capability.
type Extractor interface {
	Extract(ctx context.Context, urls []string, prompt string) ([]Extraction, error)
}

// Reasoner wraps a generative reasoning capability. shapeHint describes the
// response structure the caller expects (typically a JSON schema fragment);
// the returned text is parsed by the caller and a parse failure is handled
// as a recoverable stage failure, never a panic.
type Reasoner interface {
	Reason(ctx context.Context, prompt, shapeHint string) (string, error)
}
