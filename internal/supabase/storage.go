// Package supabase talks to the Supabase Storage API. Scraped images are
// mirrored into a bucket so the app does not hotlink third-party hosts.
package supabase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

// DefaultBucket is where mirrored images land.
const DefaultBucket = "pet-images"

// maxImageBytes caps a single mirrored download.
const maxImageBytes = 10 << 20

// Client is a minimal Supabase Storage client over the REST API.
type Client struct {
	baseURL string
	key     string
	bucket  string
	http    *http.Client
	log     *logging.Logger
}

// Config holds Supabase connection settings.
type Config struct {
	URL    string
	Key    string
	Bucket string
}

// New returns a Client, or nil when the config is incomplete. A nil
// Client is safe to call; operations report ErrNotConfigured.
func New(cfg Config, log *logging.Logger) *Client {
	if cfg.URL == "" || cfg.Key == "" {
		return nil
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if log == nil {
		log = logging.NewDefault("supabase")
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		key:     cfg.Key,
		bucket:  cfg.Bucket,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// ErrNotConfigured is returned when storage credentials are absent.
var ErrNotConfigured = fmt.Errorf("supabase storage not configured")

// Upload writes data to the bucket at objectPath and returns the public URL.
// Existing objects are overwritten.
func (c *Client) Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}

	target := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("apikey", c.key)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("supabase upload: status %d: %s", resp.StatusCode, string(body))
	}
	return c.PublicURL(objectPath), nil
}

// PublicURL returns the public serving URL for an object in the bucket.
func (c *Client) PublicURL(objectPath string) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, objectPath)
}

// MirrorImage downloads imageURL and uploads a copy into the bucket.
// The object path is derived from the URL hash so repeated mirrors of
// the same image overwrite in place.
func (c *Client) MirrorImage(ctx context.Context, imageURL string) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectPath := HashURL(imageURL) + extensionFor(imageURL, contentType)
	storeURL, err := c.Upload(ctx, objectPath, contentType, data)
	if err != nil {
		return "", err
	}
	c.log.WithFields(map[string]interface{}{
		"source": imageURL,
		"object": objectPath,
		"bytes":  len(data),
	}).Debug("mirrored image")
	return storeURL, nil
}

// HashURL returns the stable object-name hash for a source URL.
func HashURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:])[:16]
}

func extensionFor(imageURL, contentType string) string {
	if ext := path.Ext(imageURL); ext != "" && len(ext) <= 5 && !strings.ContainsAny(ext, "?&") {
		return ext
	}
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	}
	return ""
}
