package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/image"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/instance"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/knowledge"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/profile"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/reward"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage"
	"github.com/Arthur-Jacobina/datagotchi/internal/embeddings"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development without a database.
type Store struct {
	mu sync.RWMutex

	profiles     map[string]profile.Profile // keyed by wallet
	sessions     map[string]profile.Session // keyed by token hash
	sessionHash  map[string]string          // session id -> token hash
	pets         map[string]pet.Pet
	instances    map[string]instance.DataInstance
	know         map[string]knowledge.Knowledge
	knowByURL    map[string]string
	instKnow     map[string][]string
	images       map[string]image.Image
	imagesByURL  map[string]string
	instImages   map[string][]string
	achievements map[string]reward.Achievement
	achByCode    map[string]string
	unlocks      map[string]map[string]time.Time // petID -> achievementID -> unlocked at
	events       map[string][]reward.SkillEvent
}

var _ storage.ProfileStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)
var _ storage.PetStore = (*Store)(nil)
var _ storage.InstanceStore = (*Store)(nil)
var _ storage.KnowledgeStore = (*Store)(nil)
var _ storage.ImageStore = (*Store)(nil)
var _ storage.RewardStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		profiles:     make(map[string]profile.Profile),
		sessions:     make(map[string]profile.Session),
		sessionHash:  make(map[string]string),
		pets:         make(map[string]pet.Pet),
		instances:    make(map[string]instance.DataInstance),
		know:         make(map[string]knowledge.Knowledge),
		knowByURL:    make(map[string]string),
		instKnow:     make(map[string][]string),
		images:       make(map[string]image.Image),
		imagesByURL:  make(map[string]string),
		instImages:   make(map[string][]string),
		achievements: make(map[string]reward.Achievement),
		achByCode:    make(map[string]string),
		unlocks:      make(map[string]map[string]time.Time),
		events:       make(map[string][]reward.SkillEvent),
	}
}

// ProfileStore implementation ------------------------------------------------

func (s *Store) CreateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.WalletAddress]; exists {
		return profile.Profile{}, fmt.Errorf("profile %s already exists", p.WalletAddress)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.profiles[p.WalletAddress] = p
	return p, nil
}

func (s *Store) GetProfile(_ context.Context, wallet string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[wallet]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.profiles[p.WalletAddress]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.profiles[p.WalletAddress] = p
	return p, nil
}

func (s *Store) AddPoints(_ context.Context, wallet string, delta int) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[wallet]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	p.Points += delta
	if p.Points < 0 {
		p.Points = 0
	}
	p.UpdatedAt = time.Now().UTC()
	s.profiles[wallet] = p
	return p, nil
}

// SessionStore implementation ------------------------------------------------

func (s *Store) UpdateNonce(_ context.Context, wallet, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[wallet]
	if !ok {
		return storage.ErrNotFound
	}
	p.Nonce = nonce
	p.UpdatedAt = time.Now().UTC()
	s.profiles[wallet] = p
	return nil
}

func (s *Store) CreateSession(_ context.Context, sess profile.Session) (profile.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.LastSeenAt = now
	s.sessions[sess.TokenHash] = sess
	s.sessionHash[sess.ID] = sess.TokenHash
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(_ context.Context, tokenHash string) (profile.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return profile.Session{}, storage.ErrNotFound
	}
	return sess, nil
}

func (s *Store) TouchSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.sessionHash[id]
	if !ok {
		return storage.ErrNotFound
	}
	sess := s.sessions[hash]
	sess.LastSeenAt = time.Now().UTC()
	s.sessions[hash] = sess
	return nil
}

func (s *Store) DeleteSession(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.sessions, tokenHash)
	delete(s.sessionHash, sess.ID)
	return nil
}

// PetStore implementation ----------------------------------------------------

func (s *Store) CreatePet(_ context.Context, p pet.Pet) (pet.Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.pets[p.ID] = p
	return p, nil
}

func (s *Store) GetPet(_ context.Context, id string) (pet.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pets[id]
	if !ok {
		return pet.Pet{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListPetsByOwner(_ context.Context, wallet string) ([]pet.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []pet.Pet
	for _, p := range s.pets {
		if p.OwnerWallet == wallet {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) UpdatePet(_ context.Context, p pet.Pet) (pet.Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.pets[p.ID]
	if !ok {
		return pet.Pet{}, storage.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.pets[p.ID] = p
	return p, nil
}

// InstanceStore implementation -----------------------------------------------

func (s *Store) CreateInstance(_ context.Context, inst instance.DataInstance) (instance.DataInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	inst.CreatedAt = time.Now().UTC()
	s.instances[inst.ID] = inst
	return inst, nil
}

func (s *Store) GetInstance(_ context.Context, id string) (instance.DataInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[id]
	if !ok {
		return instance.DataInstance{}, storage.ErrNotFound
	}
	return inst, nil
}

func (s *Store) ListInstancesByPet(_ context.Context, petID string, limit, offset int) ([]instance.DataInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []instance.DataInstance
	for _, inst := range s.instances {
		if inst.PetID == petID {
			all = append(all, inst)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, limit, offset), nil
}

func (s *Store) CountInstancesByPets(_ context.Context, petIDs []string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := toSet(petIDs)
	count := 0
	for _, inst := range s.instances {
		if wanted[inst.PetID] {
			count++
		}
	}
	return count, nil
}

func (s *Store) SearchInstances(_ context.Context, petIDs []string, query string, limit int) ([]instance.DataInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := toSet(petIDs)
	needle := strings.ToLower(query)

	var matches []instance.DataInstance
	for _, inst := range s.instances {
		if petIDs != nil && !wanted[inst.PetID] {
			continue
		}
		if strings.Contains(strings.ToLower(inst.Content), needle) {
			matches = append(matches, inst)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// KnowledgeStore implementation ----------------------------------------------

func (s *Store) UpsertKnowledge(_ context.Context, k knowledge.Knowledge) (knowledge.Knowledge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k.URL != "" {
		if id, exists := s.knowByURL[k.URL]; exists {
			existing := s.know[id]
			existing.Title = k.Title
			existing.Content = k.Content
			existing.ContentHash = k.ContentHash
			existing.Metadata = k.Metadata
			if len(k.Embedding) > 0 {
				existing.Embedding = k.Embedding
			}
			s.know[id] = existing
			return existing, nil
		}
	}

	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	k.CreatedAt = time.Now().UTC()
	s.know[k.ID] = k
	if k.URL != "" {
		s.knowByURL[k.URL] = k.ID
	}
	return k, nil
}

func (s *Store) LinkKnowledge(_ context.Context, instanceID, knowledgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.know[knowledgeID]; !ok {
		return storage.ErrNotFound
	}
	for _, id := range s.instKnow[instanceID] {
		if id == knowledgeID {
			return nil
		}
	}
	s.instKnow[instanceID] = append(s.instKnow[instanceID], knowledgeID)
	return nil
}

func (s *Store) ListInstanceKnowledge(_ context.Context, instanceID string) ([]knowledge.Knowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]knowledge.Knowledge, 0, len(s.instKnow[instanceID]))
	for _, id := range s.instKnow[instanceID] {
		result = append(result, s.know[id])
	}
	return result, nil
}

func (s *Store) ListPetKnowledge(_ context.Context, petID string, limit int) ([]knowledge.Knowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var result []knowledge.Knowledge
	for instID, knowIDs := range s.instKnow {
		inst, ok := s.instances[instID]
		if !ok || inst.PetID != petID {
			continue
		}
		for _, id := range knowIDs {
			if !seen[id] {
				seen[id] = true
				result = append(result, s.know[id])
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SearchKnowledge(_ context.Context, petIDs []string, query string, limit int) ([]knowledge.Knowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	allowed := s.knowledgeScopeLocked(petIDs)

	var matches []knowledge.Knowledge
	for id, k := range s.know {
		if allowed != nil && !allowed[id] {
			continue
		}
		if strings.Contains(strings.ToLower(k.Content), needle) || strings.Contains(strings.ToLower(k.Title), needle) {
			matches = append(matches, k)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) SemanticSearch(_ context.Context, q storage.SemanticQuery) ([]knowledge.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := s.knowledgeScopeLocked(q.PetIDs)

	var matches []knowledge.Match
	for id, k := range s.know {
		if allowed != nil && !allowed[id] {
			continue
		}
		if len(k.Embedding) == 0 {
			continue
		}
		similarity := embeddings.Cosine(q.Embedding, k.Embedding)
		if similarity < q.Threshold {
			continue
		}
		matches = append(matches, knowledge.Match{Knowledge: k, Similarity: similarity})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

// knowledgeScopeLocked resolves the knowledge IDs reachable from the given
// pets. A nil petIDs means global scope (nil map).
func (s *Store) knowledgeScopeLocked(petIDs []string) map[string]bool {
	if petIDs == nil {
		return nil
	}
	wanted := toSet(petIDs)
	allowed := make(map[string]bool)
	for instID, knowIDs := range s.instKnow {
		inst, ok := s.instances[instID]
		if !ok || !wanted[inst.PetID] {
			continue
		}
		for _, id := range knowIDs {
			allowed[id] = true
		}
	}
	return allowed
}

// ImageStore implementation --------------------------------------------------

func (s *Store) UpsertImage(_ context.Context, img image.Image) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, exists := s.imagesByURL[img.ImageURL]; exists {
		existing := s.images[id]
		if img.AltText != "" {
			existing.AltText = img.AltText
		}
		if img.Metadata != nil {
			existing.Metadata = img.Metadata
		}
		s.images[id] = existing
		return existing, nil
	}

	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	img.CreatedAt = time.Now().UTC()
	s.images[img.ID] = img
	s.imagesByURL[img.ImageURL] = img.ID
	return img, nil
}

func (s *Store) LinkImage(_ context.Context, instanceID, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[imageID]; !ok {
		return storage.ErrNotFound
	}
	for _, id := range s.instImages[instanceID] {
		if id == imageID {
			return nil
		}
	}
	s.instImages[instanceID] = append(s.instImages[instanceID], imageID)
	return nil
}

func (s *Store) ListInstanceImages(_ context.Context, instanceID string) ([]image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]image.Image, 0, len(s.instImages[instanceID]))
	for _, id := range s.instImages[instanceID] {
		result = append(result, s.images[id])
	}
	return result, nil
}

// RewardStore implementation -------------------------------------------------

func (s *Store) UpsertAchievement(_ context.Context, a reward.Achievement) (reward.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, exists := s.achByCode[a.Code]; exists {
		a.ID = id
		a.CreatedAt = s.achievements[id].CreatedAt
		s.achievements[id] = a
		return a, nil
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	s.achievements[a.ID] = a
	s.achByCode[a.Code] = a.ID
	return a, nil
}

func (s *Store) ListAchievements(_ context.Context) ([]reward.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]reward.Achievement, 0, len(s.achievements))
	for _, a := range s.achievements {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Code < result[j].Code
	})
	return result, nil
}

func (s *Store) UnlockAchievement(_ context.Context, petID, achievementID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.achievements[achievementID]; !ok {
		return false, storage.ErrNotFound
	}
	if s.unlocks[petID] == nil {
		s.unlocks[petID] = make(map[string]time.Time)
	}
	if _, already := s.unlocks[petID][achievementID]; already {
		return false, nil
	}
	s.unlocks[petID][achievementID] = time.Now().UTC()
	return true, nil
}

func (s *Store) ListPetAchievements(_ context.Context, petID string) ([]reward.Unlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []reward.Unlock
	for achID, at := range s.unlocks[petID] {
		result = append(result, reward.Unlock{
			Achievement: s.achievements[achID],
			PetID:       petID,
			UnlockedAt:  at,
		})
	}
	// newest first, matching the persisted ordering
	sort.Slice(result, func(i, j int) bool {
		return result[i].UnlockedAt.After(result[j].UnlockedAt)
	})
	return result, nil
}

func (s *Store) CreateSkillEvent(_ context.Context, ev reward.SkillEvent) (reward.SkillEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.events[ev.PetID] = append(s.events[ev.PetID], ev)
	return ev, nil
}

func (s *Store) ListSkillEvents(_ context.Context, petID string, limit, offset int) ([]reward.SkillEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]reward.SkillEvent, len(s.events[petID]))
	copy(all, s.events[petID])
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, limit, offset), nil
}

func (s *Store) CountGameEventsSince(_ context.Context, petID, game string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, ev := range s.events[petID] {
		if ev.Game == game && !ev.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// Helpers ---------------------------------------------------------------------

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}
