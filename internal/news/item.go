// Package news defines the article and news-item models shared across the
// backend, plus strict JSON decoding for both.
package news

import "time"

// Source identifies the outlet an item came from and the bias call made for
// its coverage.
type Source struct {
	URL             string `json:"url"`
	Name            string `json:"name"`
	Bias            string `json:"bias"`
	BiasExplanation string `json:"bias_explanation,omitempty"`
}

// Item is one processed news item as stored in the global namespace. Heading
// and summary come from the classifier; LastUpdated orders duplicates during
// deduplication, with the older item losing.
type Item struct {
	Heading     string    `json:"heading"`
	Summary     string    `json:"summary"`
	Source      Source    `json:"source"`
	LastUpdated time.Time `json:"last_updated"`
	ModelUsed   string    `json:"model_used,omitempty"`
}

// Analysis is the classifier output for one article. It rides along on raw
// payloads that were classified upstream.
type Analysis struct {
	Heading         string `json:"heading"`
	Summary         string `json:"summary"`
	Bias            string `json:"bias"`
	BiasExplanation string `json:"bias_explanation,omitempty"`
	ModelUsed       string `json:"model_used,omitempty"`
}

// Article is a raw upstream article before classification.
type Article struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	URL         string     `json:"url"`
	SourceName  string     `json:"source_name"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Analysis    *Analysis  `json:"analysis,omitempty"`
}
