// Package extract turns fetched or rendered HTML into plain article text
// plus title and author metadata.
package extract

// Extractor defines a minimal interface for content extraction strategies.
// Implementations must be deterministic: the same input yields the same
// Document.
type Extractor interface {
	Extract(input []byte, pageURL string) Document
}

// HeuristicExtractor ranks content selectors first and falls back to a
// text-density scan. See Enhanced.
type HeuristicExtractor struct{}

func (HeuristicExtractor) Extract(input []byte, pageURL string) Document {
	return Enhanced(input, pageURL)
}
