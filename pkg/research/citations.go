package research

import "net/url"

// AssignCitations walks findings in insertion order and gives every distinct
// source URL a small positive ID, starting at 1. IDs are stable: once a URL
// has one it is never reassigned, so re-running over the same sequence yields
// an identical mapping.
func AssignCitations(findings []Finding) (map[string]int, []Citation) {
	ids := make(map[string]int)
	var citations []Citation
	for _, f := range findings {
		if f.Source == "" {
			continue
		}
		if _, ok := ids[f.Source]; ok {
			continue
		}
		id := len(citations) + 1
		ids[f.Source] = id
		citations = append(citations, Citation{
			ID:    id,
			URL:   f.Source,
			Title: displayTitle(f.Source),
		})
	}
	return ids, citations
}

// BuildCitations returns only the ordered bibliography.
func BuildCitations(findings []Finding) []Citation {
	_, citations := AssignCitations(findings)
	return citations
}

// displayTitle derives a citation title from the URL's hostname, falling
// back to the raw string when it does not parse.
func displayTitle(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
