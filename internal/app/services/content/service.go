// Package content manages data instances and their knowledge and image
// attachments: the material a pet is fed.
package content

import (
	"context"
	"strings"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/image"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/instance"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/knowledge"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage"
	"github.com/Arthur-Jacobina/datagotchi/internal/embeddings"
	apperr "github.com/Arthur-Jacobina/datagotchi/internal/errors"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
	"github.com/Arthur-Jacobina/datagotchi/internal/scraper"
	"github.com/Arthur-Jacobina/datagotchi/internal/supabase"
)

const (
	// DefaultLimit is the page size when the caller does not specify one.
	DefaultLimit = 100
	// MaxLimit bounds instance pagination.
	MaxLimit = 1000
)

// PageFetcher populates url-only knowledge items. *scraper.Scraper satisfies it.
type PageFetcher interface {
	Scrape(ctx context.Context, url string) (scraper.Page, error)
}

// ImageMirror copies attached images into durable storage.
// *supabase.Client satisfies it.
type ImageMirror interface {
	MirrorImage(ctx context.Context, imageURL string) (string, error)
}

// Service provides instance, knowledge and image operations.
type Service struct {
	instances storage.InstanceStore
	know      storage.KnowledgeStore
	images    storage.ImageStore
	pets      storage.PetStore

	fetcher  PageFetcher
	embedder embeddings.Embedder
	mirror   ImageMirror
	log      *logging.Logger
}

// New constructs a content service. Fetcher, embedder and mirror are all
// optional; without them url-only knowledge is stored empty, embeddings are
// skipped and images are hotlinked.
func New(instances storage.InstanceStore, know storage.KnowledgeStore, images storage.ImageStore, pets storage.PetStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("content")
	}
	return &Service{instances: instances, know: know, images: images, pets: pets, log: log}
}

// AttachFetcher wires the page scraper used to populate url-only knowledge.
func (s *Service) AttachFetcher(f PageFetcher) { s.fetcher = f }

// AttachEmbedder wires the embedder used on knowledge writes.
func (s *Service) AttachEmbedder(e embeddings.Embedder) { s.embedder = e }

// AttachMirror wires the image mirror.
func (s *Service) AttachMirror(m ImageMirror) { s.mirror = m }

// KnowledgeInput is one knowledge item in an attach request.
type KnowledgeInput struct {
	URL      string                 `json:"url,omitempty"`
	Title    string                 `json:"title,omitempty"`
	Content  string                 `json:"content,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ImageInput is one image reference in an attach request.
type ImageInput struct {
	ImageURL string                 `json:"image_url"`
	AltText  string                 `json:"alt_text,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CreateInstanceInput is the request to feed a pet a new data instance,
// optionally with knowledge and image attachments in the same call.
type CreateInstanceInput struct {
	Content     string                 `json:"content"`
	ContentType string                 `json:"content_type,omitempty"`
	Category    instance.Category      `json:"category,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Knowledge   []KnowledgeInput       `json:"knowledge,omitempty"`
	Images      []ImageInput           `json:"images,omitempty"`
}

// InstanceDetail is an instance with its attachments inlined.
type InstanceDetail struct {
	instance.DataInstance
	Knowledge []knowledge.Knowledge `json:"knowledge"`
	Images    []image.Image         `json:"images"`
}

// CreateInstance feeds a pet: stores the instance and attaches any knowledge
// and images supplied with it. Attachment inputs are validated before
// anything is written.
func (s *Service) CreateInstance(ctx context.Context, petID string, in CreateInstanceInput) (InstanceDetail, error) {
	if strings.TrimSpace(in.Content) == "" {
		return InstanceDetail{}, apperr.Validation("content is required")
	}
	if in.ContentType == "" {
		in.ContentType = "text"
	}
	if !instance.ContentTypes[in.ContentType] {
		return InstanceDetail{}, apperr.Validation("invalid content_type: " + in.ContentType)
	}
	if in.Category == "" {
		in.Category = instance.CategoryGeneral
	}
	if !in.Category.Valid() {
		return InstanceDetail{}, apperr.Validation("invalid category: " + string(in.Category))
	}
	if err := validateKnowledgeInputs(in.Knowledge); err != nil {
		return InstanceDetail{}, err
	}
	if err := validateImageInputs(in.Images); err != nil {
		return InstanceDetail{}, err
	}
	if _, err := s.pets.GetPet(ctx, petID); err != nil {
		return InstanceDetail{}, apperr.NotFound("pet")
	}

	inst, err := s.instances.CreateInstance(ctx, instance.DataInstance{
		PetID:       petID,
		Content:     in.Content,
		ContentType: in.ContentType,
		ContentHash: instance.HashContent(in.Content),
		Category:    in.Category,
		Tags:        in.Tags,
		Metadata:    in.Metadata,
	})
	if err != nil {
		return InstanceDetail{}, apperr.Internal("create instance", err)
	}

	know, err := s.attachKnowledge(ctx, inst.ID, in.Knowledge)
	if err != nil {
		return InstanceDetail{}, err
	}
	imgs, err := s.attachImages(ctx, inst.ID, in.Images)
	if err != nil {
		return InstanceDetail{}, err
	}

	s.log.WithFields(map[string]interface{}{
		"instance":  inst.ID,
		"pet":       petID,
		"knowledge": len(know),
		"images":    len(imgs),
	}).Info("instance created")
	return InstanceDetail{DataInstance: inst, Knowledge: know, Images: imgs}, nil
}

// GetInstance returns an instance with its attachments.
func (s *Service) GetInstance(ctx context.Context, id string) (InstanceDetail, error) {
	inst, err := s.instances.GetInstance(ctx, id)
	if err != nil {
		return InstanceDetail{}, apperr.NotFound("data instance")
	}
	know, err := s.know.ListInstanceKnowledge(ctx, id)
	if err != nil {
		return InstanceDetail{}, apperr.Internal("list knowledge", err)
	}
	imgs, err := s.images.ListInstanceImages(ctx, id)
	if err != nil {
		return InstanceDetail{}, apperr.Internal("list images", err)
	}
	if know == nil {
		know = []knowledge.Knowledge{}
	}
	if imgs == nil {
		imgs = []image.Image{}
	}
	return InstanceDetail{DataInstance: inst, Knowledge: know, Images: imgs}, nil
}

// ListInstances pages through a pet's instances, newest first. Listing an
// unknown pet returns an empty page.
func (s *Service) ListInstances(ctx context.Context, petID string, limit, offset int) ([]instance.DataInstance, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return nil, apperr.Unprocessable("limit must be between 1 and 1000")
	}
	if offset < 0 {
		return nil, apperr.Unprocessable("offset must not be negative")
	}

	list, err := s.instances.ListInstancesByPet(ctx, petID, limit, offset)
	if err != nil {
		return nil, apperr.Internal("list instances", err)
	}
	if list == nil {
		list = []instance.DataInstance{}
	}
	return list, nil
}

// AttachKnowledge validates and attaches a batch of knowledge items to an
// existing instance.
func (s *Service) AttachKnowledge(ctx context.Context, instanceID string, items []KnowledgeInput) ([]knowledge.Knowledge, error) {
	if _, err := s.instances.GetInstance(ctx, instanceID); err != nil {
		return nil, apperr.NotFound("data instance")
	}
	if len(items) == 0 {
		return nil, apperr.Validation("at least one knowledge item is required")
	}
	if err := validateKnowledgeInputs(items); err != nil {
		return nil, err
	}
	return s.attachKnowledge(ctx, instanceID, items)
}

// AttachImages validates and attaches a batch of image references.
func (s *Service) AttachImages(ctx context.Context, instanceID string, items []ImageInput) ([]image.Image, error) {
	if _, err := s.instances.GetInstance(ctx, instanceID); err != nil {
		return nil, apperr.NotFound("data instance")
	}
	if len(items) == 0 {
		return nil, apperr.Validation("at least one image is required")
	}
	if err := validateImageInputs(items); err != nil {
		return nil, err
	}
	return s.attachImages(ctx, instanceID, items)
}

// ListInstanceKnowledge lists an instance's knowledge attachments.
func (s *Service) ListInstanceKnowledge(ctx context.Context, instanceID string) ([]knowledge.Knowledge, error) {
	list, err := s.know.ListInstanceKnowledge(ctx, instanceID)
	if err != nil {
		return nil, apperr.Internal("list knowledge", err)
	}
	if list == nil {
		list = []knowledge.Knowledge{}
	}
	return list, nil
}

// ListPetKnowledge lists distinct knowledge reachable from a pet's instances.
func (s *Service) ListPetKnowledge(ctx context.Context, petID string, limit int) ([]knowledge.Knowledge, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return nil, apperr.Unprocessable("limit must be between 1 and 1000")
	}
	list, err := s.know.ListPetKnowledge(ctx, petID, limit)
	if err != nil {
		return nil, apperr.Internal("list knowledge", err)
	}
	if list == nil {
		list = []knowledge.Knowledge{}
	}
	return list, nil
}

// ListInstanceImages lists an instance's image attachments.
func (s *Service) ListInstanceImages(ctx context.Context, instanceID string) ([]image.Image, error) {
	list, err := s.images.ListInstanceImages(ctx, instanceID)
	if err != nil {
		return nil, apperr.Internal("list images", err)
	}
	if list == nil {
		list = []image.Image{}
	}
	return list, nil
}

func validateKnowledgeInputs(items []KnowledgeInput) error {
	for i, item := range items {
		if strings.TrimSpace(item.URL) == "" && strings.TrimSpace(item.Content) == "" {
			return apperr.Validation("knowledge item must have a url or content").WithDetails("index", i)
		}
	}
	return nil
}

func validateImageInputs(items []ImageInput) error {
	for i, item := range items {
		if strings.TrimSpace(item.ImageURL) == "" {
			return apperr.Validation("image_url is required").WithDetails("index", i)
		}
	}
	return nil
}

// attachKnowledge upserts each item by url and links it to the instance.
// Inputs must already be validated.
func (s *Service) attachKnowledge(ctx context.Context, instanceID string, items []KnowledgeInput) ([]knowledge.Knowledge, error) {
	result := []knowledge.Knowledge{}
	for _, item := range items {
		k := knowledge.Knowledge{
			URL:      strings.TrimSpace(item.URL),
			Title:    strings.TrimSpace(item.Title),
			Content:  item.Content,
			Metadata: item.Metadata,
		}

		// A url with no content gets populated by the scraper. Scrape
		// failures degrade to storing the bare url.
		if k.URL != "" && strings.TrimSpace(k.Content) == "" && s.fetcher != nil {
			page, err := s.fetcher.Scrape(ctx, k.URL)
			if err != nil {
				s.log.WithError(err).WithField("url", k.URL).Warn("knowledge scrape failed")
			} else {
				k.Content = page.Text
				if k.Title == "" {
					k.Title = page.Title
				}
			}
		}
		k.ContentHash = instance.HashContent(k.Content)

		if s.embedder != nil && strings.TrimSpace(k.Content) != "" {
			vec, err := s.embedder.Embed(ctx, k.Content)
			if err != nil {
				s.log.WithError(err).WithField("url", k.URL).Warn("embedding failed")
			} else {
				k.Embedding = vec
			}
		}

		stored, err := s.know.UpsertKnowledge(ctx, k)
		if err != nil {
			return nil, apperr.Internal("store knowledge", err)
		}
		if err := s.know.LinkKnowledge(ctx, instanceID, stored.ID); err != nil {
			return nil, apperr.Internal("link knowledge", err)
		}
		result = append(result, stored)
	}
	return result, nil
}

// attachImages upserts each image by url and links it to the instance.
func (s *Service) attachImages(ctx context.Context, instanceID string, items []ImageInput) ([]image.Image, error) {
	result := []image.Image{}
	for _, item := range items {
		img := image.Image{
			ImageURL: strings.TrimSpace(item.ImageURL),
			AltText:  strings.TrimSpace(item.AltText),
			Metadata: item.Metadata,
			URLHash:  supabase.HashURL(strings.TrimSpace(item.ImageURL)),
		}

		if s.mirror != nil {
			storePath, err := s.mirror.MirrorImage(ctx, img.ImageURL)
			if err != nil {
				s.log.WithError(err).WithField("url", img.ImageURL).Warn("image mirror failed")
			} else {
				img.StorePath = storePath
			}
		}

		stored, err := s.images.UpsertImage(ctx, img)
		if err != nil {
			return nil, apperr.Internal("store image", err)
		}
		if err := s.images.LinkImage(ctx, instanceID, stored.ID); err != nil {
			return nil, apperr.Internal("link image", err)
		}
		result = append(result, stored)
	}
	return result, nil
}
