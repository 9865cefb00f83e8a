package knowledge

import "time"

// Knowledge is a url/content pair attached to data instances. URLs are
// globally unique; re-attaching existing knowledge links rather than
// duplicates.
type Knowledge struct {
	ID          string                 `json:"id"`
	URL         string                 `json:"url,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Content     string                 `json:"content"`
	ContentHash string                 `json:"content_hash"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Embedding   []float32              `json:"-"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Match is a knowledge entry scored by a semantic search.
type Match struct {
	Knowledge
	Similarity float64 `json:"similarity"`
}
