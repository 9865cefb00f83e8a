// Package pets manages pet creation, lookup and export.
package pets

import (
	"context"
	"strings"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/image"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/instance"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/knowledge"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/profile"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage"
	apperr "github.com/Arthur-Jacobina/datagotchi/internal/errors"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

// exportBatch is the page size used when walking a pet's instances.
const exportBatch = 500

// Service provides pet operations.
type Service struct {
	pets      storage.PetStore
	profiles  storage.ProfileStore
	instances storage.InstanceStore
	know      storage.KnowledgeStore
	images    storage.ImageStore
	log       *logging.Logger
}

// New constructs a pets service.
func New(pets storage.PetStore, profiles storage.ProfileStore, instances storage.InstanceStore, know storage.KnowledgeStore, images storage.ImageStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("pets")
	}
	return &Service{pets: pets, profiles: profiles, instances: instances, know: know, images: images, log: log}
}

// Create registers a new pet for a wallet. The owning profile is created on
// first sight so a fresh wallet can adopt immediately.
func (s *Service) Create(ctx context.Context, p pet.Pet) (pet.Pet, error) {
	p.OwnerWallet = strings.TrimSpace(p.OwnerWallet)
	p.Name = strings.TrimSpace(p.Name)
	if p.OwnerWallet == "" {
		return pet.Pet{}, apperr.Validation("owner wallet is required")
	}
	if p.Name == "" {
		return pet.Pet{}, apperr.Validation("name is required")
	}
	if p.Rarity == "" {
		p.Rarity = pet.RarityCommon
	}
	if !p.Rarity.Valid() {
		return pet.Pet{}, apperr.Validation("invalid rarity: " + string(p.Rarity))
	}

	if _, err := s.profiles.GetProfile(ctx, p.OwnerWallet); err != nil {
		if _, err := s.profiles.CreateProfile(ctx, profile.Profile{WalletAddress: p.OwnerWallet}); err != nil {
			return pet.Pet{}, apperr.Internal("create profile", err)
		}
	}

	created, err := s.pets.CreatePet(ctx, p)
	if err != nil {
		return pet.Pet{}, apperr.Internal("create pet", err)
	}
	s.log.Infof("pet %s (%s) created for wallet %s", created.ID, created.Name, created.OwnerWallet)
	return created, nil
}

// Get returns a pet by id.
func (s *Service) Get(ctx context.Context, id string) (pet.Pet, error) {
	p, err := s.pets.GetPet(ctx, id)
	if err != nil {
		return pet.Pet{}, apperr.NotFound("pet")
	}
	return p, nil
}

// List returns a wallet's pets, newest first.
func (s *Service) List(ctx context.Context, wallet string) ([]pet.Pet, error) {
	list, err := s.pets.ListPetsByOwner(ctx, wallet)
	if err != nil {
		return nil, apperr.Internal("list pets", err)
	}
	if list == nil {
		list = []pet.Pet{}
	}
	return list, nil
}

// ExportedInstance is a data instance with its attachments inlined.
type ExportedInstance struct {
	instance.DataInstance
	Knowledge []knowledge.Knowledge `json:"knowledge"`
	Images    []image.Image         `json:"images"`
}

// Export is the full dump of a pet and everything fed to it.
type Export struct {
	Pet       pet.Pet            `json:"pet"`
	Instances []ExportedInstance `json:"instances"`
}

// Export returns the pet with all instances, knowledge and images nested.
func (s *Service) Export(ctx context.Context, id string) (Export, error) {
	p, err := s.pets.GetPet(ctx, id)
	if err != nil {
		return Export{}, apperr.NotFound("pet")
	}

	out := Export{Pet: p, Instances: []ExportedInstance{}}
	for offset := 0; ; offset += exportBatch {
		page, err := s.instances.ListInstancesByPet(ctx, id, exportBatch, offset)
		if err != nil {
			return Export{}, apperr.Internal("list instances", err)
		}
		for _, inst := range page {
			know, err := s.know.ListInstanceKnowledge(ctx, inst.ID)
			if err != nil {
				return Export{}, apperr.Internal("list knowledge", err)
			}
			imgs, err := s.images.ListInstanceImages(ctx, inst.ID)
			if err != nil {
				return Export{}, apperr.Internal("list images", err)
			}
			if know == nil {
				know = []knowledge.Knowledge{}
			}
			if imgs == nil {
				imgs = []image.Image{}
			}
			out.Instances = append(out.Instances, ExportedInstance{DataInstance: inst, Knowledge: know, Images: imgs})
		}
		if len(page) < exportBatch {
			break
		}
	}
	return out, nil
}
