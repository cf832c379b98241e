package splitter

import (
	"github.com/tmc/langchaingo/textsplitter"
)

// Splitter chunks long finding texts before they are embedded and archived.
type Splitter struct {
	chunkSize int
	splitter  textsplitter.TextSplitter
}

// NewRecursiveCharacter creates a recursive character splitter with the given
// chunk size and overlap.
func NewRecursiveCharacter(chunkSize, chunkOverlap int) *Splitter {
	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)
	return &Splitter{chunkSize: chunkSize, splitter: ts}
}

// SplitText splits text into chunks. Texts already within one chunk pass
// through untouched.
func (s *Splitter) SplitText(text string) ([]string, error) {
	if len(text) <= s.chunkSize {
		return []string{text}, nil
	}
	return s.splitter.SplitText(text)
}
