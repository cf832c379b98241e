package chat

import (
	"testing"

	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

func TestFormatCitationsPreservesOrder(t *testing.T) {
	sources := []vectorstore.SourceCitation{
		{Source: "https://alpha.example.com", CitationID: 1},
		{Source: "https://beta.example.com", CitationID: 2},
		{Source: "https://gamma.example.com", CitationID: 3},
	}

	want := "[1] https://alpha.example.com\n[2] https://beta.example.com\n[3] https://gamma.example.com"
	if got := formatCitations(sources); got != want {
		t.Errorf("formatCitations = %q, want %q", got, want)
	}
}

func TestFormatCitationsEmpty(t *testing.T) {
	if got := formatCitations(nil); got != "" {
		t.Errorf("formatCitations(nil) = %q, want empty", got)
	}
}
