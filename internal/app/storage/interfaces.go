package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/image"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/instance"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/knowledge"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/profile"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/reward"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ProfileStore persists wallet-keyed user profiles.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	GetProfile(ctx context.Context, wallet string) (profile.Profile, error)
	UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	AddPoints(ctx context.Context, wallet string, delta int) (profile.Profile, error)
}

// SessionStore persists auth nonces and issued sessions.
type SessionStore interface {
	UpdateNonce(ctx context.Context, wallet, nonce string) error
	CreateSession(ctx context.Context, s profile.Session) (profile.Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (profile.Session, error)
	TouchSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, tokenHash string) error
}

// PetStore persists pets.
type PetStore interface {
	CreatePet(ctx context.Context, p pet.Pet) (pet.Pet, error)
	GetPet(ctx context.Context, id string) (pet.Pet, error)
	ListPetsByOwner(ctx context.Context, wallet string) ([]pet.Pet, error)
	UpdatePet(ctx context.Context, p pet.Pet) (pet.Pet, error)
}

// InstanceStore persists data instances.
type InstanceStore interface {
	CreateInstance(ctx context.Context, inst instance.DataInstance) (instance.DataInstance, error)
	GetInstance(ctx context.Context, id string) (instance.DataInstance, error)
	ListInstancesByPet(ctx context.Context, petID string, limit, offset int) ([]instance.DataInstance, error)
	CountInstancesByPets(ctx context.Context, petIDs []string) (int, error)
	SearchInstances(ctx context.Context, petIDs []string, query string, limit int) ([]instance.DataInstance, error)
}

// SemanticQuery scopes an embedding similarity search. A nil PetIDs slice
// searches globally; an empty non-nil slice matches nothing.
type SemanticQuery struct {
	PetIDs    []string
	Embedding []float32
	Limit     int
	Threshold float64
}

// KnowledgeStore persists knowledge entries and their instance links.
type KnowledgeStore interface {
	UpsertKnowledge(ctx context.Context, k knowledge.Knowledge) (knowledge.Knowledge, error)
	LinkKnowledge(ctx context.Context, instanceID, knowledgeID string) error
	ListInstanceKnowledge(ctx context.Context, instanceID string) ([]knowledge.Knowledge, error)
	ListPetKnowledge(ctx context.Context, petID string, limit int) ([]knowledge.Knowledge, error)
	SearchKnowledge(ctx context.Context, petIDs []string, query string, limit int) ([]knowledge.Knowledge, error)
	SemanticSearch(ctx context.Context, q SemanticQuery) ([]knowledge.Match, error)
}

// ImageStore persists image references and their instance links.
type ImageStore interface {
	UpsertImage(ctx context.Context, img image.Image) (image.Image, error)
	LinkImage(ctx context.Context, instanceID, imageID string) error
	ListInstanceImages(ctx context.Context, instanceID string) ([]image.Image, error)
}

// RewardStore persists achievements, unlocks and skill events.
type RewardStore interface {
	UpsertAchievement(ctx context.Context, a reward.Achievement) (reward.Achievement, error)
	ListAchievements(ctx context.Context) ([]reward.Achievement, error)
	UnlockAchievement(ctx context.Context, petID, achievementID string) (bool, error)
	ListPetAchievements(ctx context.Context, petID string) ([]reward.Unlock, error)
	CreateSkillEvent(ctx context.Context, ev reward.SkillEvent) (reward.SkillEvent, error)
	ListSkillEvents(ctx context.Context, petID string, limit, offset int) ([]reward.SkillEvent, error)
	CountGameEventsSince(ctx context.Context, petID, game string, since time.Time) (int, error)
}
