// Package scraper fetches web pages and extracts the text and images
// used to build knowledge records.
package scraper

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apperr "github.com/Arthur-Jacobina/datagotchi/internal/errors"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

const userAgent = "datagotchi-scraper/1.0"

// maxImages bounds how many images a single page contributes.
const maxImages = 10

// Page is the extracted content of a scraped URL.
type Page struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Text    string  `json:"text"`
	Images  []Image `json:"images"`
	FetchMS int64   `json:"fetch_ms"`
}

// Image is a single image reference found on a page.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Scraper fetches and parses HTML pages.
type Scraper struct {
	client *http.Client
	log    *logging.Logger
}

// New returns a Scraper with the given request timeout.
func New(timeout time.Duration, log *logging.Logger) *Scraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logging.NewDefault("scraper")
	}
	return &Scraper{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		log: log,
	}
}

// NormalizeURL validates a target URL and rewrites known mirrors.
// x.com pages are fetched through twitter.com, which serves the same
// markup without the interstitial. Invalid URLs are unprocessable so
// callers report them as client errors, not fetch failures.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apperr.Unprocessable(fmt.Sprintf("invalid url %q", raw))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", apperr.Unprocessable(fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return "", apperr.Unprocessable(fmt.Sprintf("url %q has no host", raw))
	}
	host := strings.ToLower(u.Host)
	if host == "x.com" || host == "www.x.com" {
		u.Host = "twitter.com"
	}
	return u.String(), nil
}

// Scrape fetches the URL and extracts title, readable text and images.
// Transient failures are retried once.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (Page, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return Page{}, err
	}

	start := time.Now()
	body, err := s.fetch(ctx, target)
	if err != nil {
		s.log.WithError(err).WithField("url", target).Debug("first fetch failed, retrying")
		body, err = s.fetch(ctx, target)
		if err != nil {
			return Page{}, fmt.Errorf("fetch %s: %w", target, err)
		}
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Page{}, fmt.Errorf("parse %s: %w", target, err)
	}

	page := Page{
		URL:     target,
		Title:   extractTitle(doc),
		Text:    extractText(doc),
		Images:  extractImages(doc, target),
		FetchMS: time.Since(start).Milliseconds(),
	}
	s.log.WithFields(map[string]interface{}{
		"url":    target,
		"chars":  len(page.Text),
		"images": len(page.Images),
	}).Info("scraped page")
	return page, nil
}

func (s *Scraper) fetch(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func extractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func extractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer, header, iframe").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	var parts []string
	root.Find("h1, h2, h3, p, li, blockquote").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return strings.Join(strings.Fields(root.Text()), " ")
	}
	return strings.Join(parts, "\n\n")
}

func extractImages(doc *goquery.Document, pageURL string) []Image {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var images []Image
	doc.Find("img[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}
		ref, err := url.Parse(src)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			return true
		}
		seen[abs] = true
		alt, _ := sel.Attr("alt")
		images = append(images, Image{URL: abs, Alt: strings.TrimSpace(alt)})
		return len(images) < maxImages
	})
	return images
}
