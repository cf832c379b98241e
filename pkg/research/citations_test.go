package research

import (
	"reflect"
	"testing"
)

func TestAssignCitations(t *testing.T) {
	findings := []Finding{
		{Text: "a", Source: "https://alpha.example.com/report"},
		{Text: "b", Source: "https://beta.example.com/data"},
		{Text: "c", Source: "https://alpha.example.com/report"}, // repeat keeps ID 1
		{Text: "d", Source: ""},                                 // sourceless, skipped
		{Text: "e", Source: "https://gamma.example.com"},
	}

	ids, citations := AssignCitations(findings)

	wantIDs := map[string]int{
		"https://alpha.example.com/report": 1,
		"https://beta.example.com/data":    2,
		"https://gamma.example.com":        3,
	}
	if !reflect.DeepEqual(ids, wantIDs) {
		t.Errorf("ids = %v, want %v", ids, wantIDs)
	}

	if len(citations) != 3 {
		t.Fatalf("got %d citations, want 3", len(citations))
	}
	for i, c := range citations {
		if c.ID != i+1 {
			t.Errorf("citation %d has ID %d, want %d", i, c.ID, i+1)
		}
	}
	if citations[0].Title != "alpha.example.com" {
		t.Errorf("title = %q, want hostname", citations[0].Title)
	}
}

func TestAssignCitationsStable(t *testing.T) {
	findings := []Finding{
		{Text: "a", Source: "https://one.example.com"},
		{Text: "b", Source: "https://two.example.com"},
		{Text: "c", Source: "https://one.example.com"},
	}

	firstIDs, firstCitations := AssignCitations(findings)
	secondIDs, secondCitations := AssignCitations(findings)

	if !reflect.DeepEqual(firstIDs, secondIDs) {
		t.Errorf("re-running changed the ID mapping: %v vs %v", firstIDs, secondIDs)
	}
	if !reflect.DeepEqual(firstCitations, secondCitations) {
		t.Errorf("re-running changed the bibliography")
	}
}

func TestAssignCitationsEmpty(t *testing.T) {
	ids, citations := AssignCitations(nil)
	if len(ids) != 0 || len(citations) != 0 {
		t.Errorf("expected empty outputs, got %v, %v", ids, citations)
	}
}

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://www.example.com/path?x=1", "www.example.com"},
		{"not a url at all ://", "not a url at all ://"},
		{"relative/path", "relative/path"},
	}
	for _, tt := range tests {
		if got := displayTitle(tt.rawURL); got != tt.want {
			t.Errorf("displayTitle(%q) = %q, want %q", tt.rawURL, got, tt.want)
		}
	}
}
