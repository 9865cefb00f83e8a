package image

import "time"

// Image is an attached image reference. URLs are globally unique.
type Image struct {
	ID        string                 `json:"id"`
	ImageURL  string                 `json:"image_url"`
	AltText   string                 `json:"alt_text,omitempty"`
	URLHash   string                 `json:"url_hash"`
	StorePath string                 `json:"store_path,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
