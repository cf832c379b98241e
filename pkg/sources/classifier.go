package sources

import (
	"net/url"
	"strings"
)

// DefaultDenylist contains domains that consistently produce low-quality or
// unverifiable research material (aggregators, social media, Q&A farms).
var DefaultDenylist = []string{
	"pinterest.com",
	"quora.com",
	"reddit.com",
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"tiktok.com",
	"youtube.com",
	"answers.com",
	"ehow.com",
	"slideshare.net",
	"scribd.com",
	"coursehero.com",
}

// Classifier validates discovered URLs against a denylist of low-quality
// domains. The denylist is fixed at construction time; a Classifier is safe
// for concurrent use.
type Classifier struct {
	denied map[string]bool
}

// NewClassifier builds a classifier from the given denylist. Entries are
// matched against the registrable host and all of its subdomains.
func NewClassifier(denylist []string) *Classifier {
	denied := make(map[string]bool, len(denylist))
	for _, d := range denylist {
		denied[strings.ToLower(strings.TrimPrefix(d, "www."))] = true
	}
	return &Classifier{denied: denied}
}

// Allowed reports whether the URL points at an acceptable research source.
// Unparseable and non-HTTP URLs are rejected.
func (c *Classifier) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	if host == "" {
		return false
	}
	for h := host; h != ""; {
		if c.denied[h] {
			return false
		}
		idx := strings.Index(h, ".")
		if idx < 0 {
			break
		}
		h = h[idx+1:]
	}
	return true
}

// FilterURLs returns the subset of urls that pass Allowed, preserving order.
func (c *Classifier) FilterURLs(urls []string) []string {
	kept := make([]string, 0, len(urls))
	for _, u := range urls {
		if c.Allowed(u) {
			kept = append(kept, u)
		}
	}
	return kept
}
