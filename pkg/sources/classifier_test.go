package sources

import (
	"reflect"
	"testing"
)

func TestClassifierAllowed(t *testing.T) {
	c := NewClassifier(DefaultDenylist)

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "plain https", url: "https://example.com/report", want: true},
		{name: "plain http", url: "http://research.example.org", want: true},
		{name: "denied domain", url: "https://pinterest.com/pin/123", want: false},
		{name: "denied with www", url: "https://www.reddit.com/r/science", want: false},
		{name: "denied subdomain", url: "https://old.reddit.com/r/science", want: false},
		{name: "denylist entry as suffix only", url: "https://notreddit.com/page", want: true},
		{name: "non-http scheme", url: "ftp://example.com/file", want: false},
		{name: "no host", url: "https://", want: false},
		{name: "relative path", url: "just/a/path", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Allowed(tt.url); got != tt.want {
				t.Errorf("Allowed(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestFilterURLs(t *testing.T) {
	c := NewClassifier([]string{"denied.com"})

	got := c.FilterURLs([]string{
		"https://keep.com/a",
		"https://denied.com/b",
		"https://keep.com/c",
	})
	want := []string{"https://keep.com/a", "https://keep.com/c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterURLs = %v, want %v", got, want)
	}
}
