package instance

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Category buckets submitted content by the skill it feeds.
type Category string

const (
	CategorySocial   Category = "social"
	CategoryTrivia   Category = "trivia"
	CategoryScience  Category = "science"
	CategoryCode     Category = "code"
	CategoryTrenches Category = "trenches"
	CategoryGeneral  Category = "general"
)

// Valid reports whether the category is known.
func (c Category) Valid() bool {
	switch c {
	case CategorySocial, CategoryTrivia, CategoryScience, CategoryCode, CategoryTrenches, CategoryGeneral:
		return true
	}
	return false
}

// ContentTypes accepted for a data instance.
var ContentTypes = map[string]bool{
	"text":     true,
	"markdown": true,
	"json":     true,
	"url":      true,
	"file":     true,
}

// DataInstance is a record of user-submitted content attached to a pet.
type DataInstance struct {
	ID          string                 `json:"id"`
	PetID       string                 `json:"pet_id"`
	Content     string                 `json:"content"`
	ContentType string                 `json:"content_type"`
	ContentHash string                 `json:"content_hash"`
	Category    Category               `json:"category"`
	Tags        []string               `json:"tags"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// HashContent returns the first 16 hex characters of sha256(content),
// used for content-level deduplication.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}
