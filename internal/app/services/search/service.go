// Package search queries a pet's accumulated data with full-text matching
// and embedding similarity.
package search

import (
	"context"
	"strings"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/instance"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/knowledge"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage"
	"github.com/Arthur-Jacobina/datagotchi/internal/embeddings"
	apperr "github.com/Arthur-Jacobina/datagotchi/internal/errors"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

const (
	// DefaultLimit is the result count when the caller does not specify one.
	DefaultLimit = 20
	// MaxLimit bounds semantic search results.
	MaxLimit = 100
	// DefaultThreshold is the minimum similarity when none is given.
	DefaultThreshold = 0.7
)

// Scope restricts a search. The zero value searches globally.
type Scope struct {
	PetID  string
	Wallet string
}

// Results groups full-text matches by kind.
type Results struct {
	DataInstances []instance.DataInstance `json:"datainstances"`
	Knowledge     []knowledge.Knowledge   `json:"knowledge"`
}

// Service runs searches over instances and knowledge.
type Service struct {
	instances storage.InstanceStore
	know      storage.KnowledgeStore
	pets      storage.PetStore
	embedder  embeddings.Embedder
	log       *logging.Logger
}

// New constructs a search service. The embedder is optional; without it
// semantic search reports unavailable.
func New(instances storage.InstanceStore, know storage.KnowledgeStore, pets storage.PetStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("search")
	}
	return &Service{instances: instances, know: know, pets: pets, log: log}
}

// AttachEmbedder wires the query embedder for semantic search.
func (s *Service) AttachEmbedder(e embeddings.Embedder) { s.embedder = e }

// FullText runs a substring search over instance content and knowledge.
// Unknown scopes return empty results.
func (s *Service) FullText(ctx context.Context, scope Scope, query string, limit int) (Results, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Results{}, apperr.Validation("query is required")
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return Results{}, apperr.Unprocessable("limit must be between 1 and 100")
	}

	petIDs, err := s.resolveScope(ctx, scope)
	if err != nil {
		return Results{}, err
	}

	results := Results{DataInstances: []instance.DataInstance{}, Knowledge: []knowledge.Knowledge{}}
	if petIDs != nil && len(petIDs) == 0 {
		return results, nil
	}

	insts, err := s.instances.SearchInstances(ctx, petIDs, query, limit)
	if err != nil {
		return Results{}, apperr.Internal("search instances", err)
	}
	know, err := s.know.SearchKnowledge(ctx, petIDs, query, limit)
	if err != nil {
		return Results{}, apperr.Internal("search knowledge", err)
	}
	if insts != nil {
		results.DataInstances = insts
	}
	if know != nil {
		results.Knowledge = know
	}
	return results, nil
}

// Semantic embeds the query and returns knowledge ranked by cosine
// similarity, filtered by the threshold.
func (s *Service) Semantic(ctx context.Context, scope Scope, query string, limit int, threshold float64) ([]knowledge.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("query is required")
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return nil, apperr.Unprocessable("limit must be between 1 and 100")
	}
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, apperr.Unprocessable("similarity_threshold must be between 0 and 1")
	}
	if s.embedder == nil {
		return nil, apperr.Unavailable("semantic search is not configured")
	}

	petIDs, err := s.resolveScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	if petIDs != nil && len(petIDs) == 0 {
		return []knowledge.Match{}, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperr.Internal("embed query", err)
	}

	matches, err := s.know.SemanticSearch(ctx, storage.SemanticQuery{
		PetIDs:    petIDs,
		Embedding: vec,
		Limit:     limit,
		Threshold: threshold,
	})
	if err != nil {
		return nil, apperr.Internal("semantic search", err)
	}
	if matches == nil {
		matches = []knowledge.Match{}
	}
	s.log.Debugf("semantic search %q returned %d matches", query, len(matches))
	return matches, nil
}

// resolveScope turns a pet or wallet scope into a pet-id filter. nil means
// unscoped; an empty non-nil slice matches nothing.
func (s *Service) resolveScope(ctx context.Context, scope Scope) ([]string, error) {
	switch {
	case scope.PetID != "":
		if _, err := s.pets.GetPet(ctx, scope.PetID); err != nil {
			return []string{}, nil
		}
		return []string{scope.PetID}, nil
	case scope.Wallet != "":
		list, err := s.pets.ListPetsByOwner(ctx, scope.Wallet)
		if err != nil {
			return nil, apperr.Internal("list pets", err)
		}
		ids := make([]string, len(list))
		for i, p := range list {
			ids[i] = p.ID
		}
		return ids, nil
	default:
		return nil, nil
	}
}
