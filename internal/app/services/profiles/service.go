// Package profiles manages wallet-keyed user profiles.
package profiles

import (
	"context"
	"strings"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/profile"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage"
	apperr "github.com/Arthur-Jacobina/datagotchi/internal/errors"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

// Service provides profile lookups and aggregate statistics.
type Service struct {
	profiles  storage.ProfileStore
	pets      storage.PetStore
	instances storage.InstanceStore
	log       *logging.Logger
}

// New constructs a profiles service.
func New(profiles storage.ProfileStore, pets storage.PetStore, instances storage.InstanceStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("profiles")
	}
	return &Service{profiles: profiles, pets: pets, instances: instances, log: log}
}

// Get returns the profile for a wallet address.
func (s *Service) Get(ctx context.Context, wallet string) (profile.Profile, error) {
	prof, err := s.profiles.GetProfile(ctx, wallet)
	if err != nil {
		return profile.Profile{}, apperr.NotFound("user")
	}
	return prof, nil
}

// GetOrCreate returns the profile, creating it on first sight.
func (s *Service) GetOrCreate(ctx context.Context, wallet string) (profile.Profile, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return profile.Profile{}, apperr.Validation("wallet address is required")
	}
	if prof, err := s.profiles.GetProfile(ctx, wallet); err == nil {
		return prof, nil
	}
	prof, err := s.profiles.CreateProfile(ctx, profile.Profile{WalletAddress: wallet})
	if err != nil {
		return profile.Profile{}, apperr.Internal("create profile", err)
	}
	s.log.Infof("profile created for wallet %s", wallet)
	return prof, nil
}

// UpdateUsername sets the display name on a profile.
func (s *Service) UpdateUsername(ctx context.Context, wallet, username string) (profile.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return profile.Profile{}, apperr.Validation("username is required")
	}
	if len(username) > 64 {
		return profile.Profile{}, apperr.Validation("username must be at most 64 characters")
	}

	prof, err := s.profiles.GetProfile(ctx, wallet)
	if err != nil {
		return profile.Profile{}, apperr.NotFound("user")
	}
	prof.Username = username

	updated, err := s.profiles.UpdateProfile(ctx, prof)
	if err != nil {
		return profile.Profile{}, apperr.Internal("update profile", err)
	}
	return updated, nil
}

// Statistics aggregates a user's pets, data volume and point balance.
type Statistics struct {
	Wallet        string    `json:"wallet_address"`
	Username      string    `json:"username,omitempty"`
	Points        int       `json:"points"`
	PetCount      int       `json:"pet_count"`
	InstanceCount int       `json:"instance_count"`
	Pets          []pet.Pet `json:"pets"`
}

// Statistics returns aggregate counts for a wallet. An unknown wallet yields
// zeroed statistics rather than an error, matching list semantics.
func (s *Service) Statistics(ctx context.Context, wallet string) (Statistics, error) {
	stats := Statistics{Wallet: wallet, Pets: []pet.Pet{}}

	if prof, err := s.profiles.GetProfile(ctx, wallet); err == nil {
		stats.Username = prof.Username
		stats.Points = prof.Points
	}

	petList, err := s.pets.ListPetsByOwner(ctx, wallet)
	if err != nil {
		return Statistics{}, apperr.Internal("list pets", err)
	}
	if petList != nil {
		stats.Pets = petList
	}
	stats.PetCount = len(petList)

	if len(petList) > 0 {
		ids := make([]string, len(petList))
		for i, p := range petList {
			ids[i] = p.ID
		}
		count, err := s.instances.CountInstancesByPets(ctx, ids)
		if err != nil {
			return Statistics{}, apperr.Internal("count instances", err)
		}
		stats.InstanceCount = count
	}
	return stats, nil
}
