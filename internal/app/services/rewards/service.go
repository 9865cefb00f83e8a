// Package rewards runs the points economy: minigame results, skill events,
// daily streaks and achievement unlocks.
package rewards

import (
	"context"
	"time"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/reward"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage"
	"github.com/Arthur-Jacobina/datagotchi/internal/config"
	apperr "github.com/Arthur-Jacobina/datagotchi/internal/errors"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

// eventsMaxLimit bounds skill event pagination.
const eventsMaxLimit = 1000

// Service applies reward rules to game results.
type Service struct {
	pets     storage.PetStore
	profiles storage.ProfileStore
	store    storage.RewardStore
	rules    *config.RewardRules
	log      *logging.Logger

	now func() time.Time
}

// New constructs a rewards service. Nil rules fall back to the defaults.
func New(pets storage.PetStore, profiles storage.ProfileStore, store storage.RewardStore, rules *config.RewardRules, log *logging.Logger) *Service {
	if rules == nil {
		rules = config.DefaultRewardRules()
	}
	if log == nil {
		log = logging.NewDefault("rewards")
	}
	return &Service{pets: pets, profiles: profiles, store: store, rules: rules, log: log, now: time.Now}
}

// SyncRules upserts the configured achievements into the store. Called once
// at startup so listings and unlock checks see the current catalogue.
func (s *Service) SyncRules(ctx context.Context) error {
	for _, rule := range s.rules.Achievements {
		_, err := s.store.UpsertAchievement(ctx, reward.Achievement{
			Code:        rule.Code,
			Name:        rule.Name,
			Description: rule.Description,
			Rarity:      pet.Rarity(rule.Rarity),
			Points:      rule.Points,
			Skill:       rule.Skill,
			Threshold:   rule.Threshold,
		})
		if err != nil {
			return apperr.Internal("sync achievement "+rule.Code, err)
		}
	}
	s.log.Infof("synced %d achievements", len(s.rules.Achievements))
	return nil
}

// GameResult is the reported outcome of one minigame round.
type GameResult struct {
	Won   bool `json:"won"`
	Score int  `json:"score,omitempty"`
}

// RecordGameResult applies a minigame result for a pet owned by wallet:
// appends a skill event, bumps the trained skill and the owner's points,
// advances the daily streak and unlocks newly earned achievements. Losses
// are logged as zero-delta events and award nothing.
func (s *Service) RecordGameResult(ctx context.Context, wallet, petID, game string, result GameResult) (reward.GameOutcome, error) {
	rule, ok := s.rules.Games[game]
	if !ok {
		return reward.GameOutcome{}, apperr.NotFound("game")
	}

	p, err := s.pets.GetPet(ctx, petID)
	if err != nil {
		return reward.GameOutcome{}, apperr.NotFound("pet")
	}
	if wallet != "" && p.OwnerWallet != wallet {
		return reward.GameOutcome{}, apperr.Forbidden("pet belongs to another wallet")
	}

	now := s.now().UTC()
	dayStart := now.Truncate(24 * time.Hour)

	delta := 0
	points := 0
	if result.Won {
		played, err := s.store.CountGameEventsSince(ctx, petID, game, dayStart)
		if err != nil {
			return reward.GameOutcome{}, apperr.Internal("count events", err)
		}
		if rule.MaxPerDay > 0 && played >= rule.MaxPerDay {
			return reward.GameOutcome{}, apperr.RateLimitExceeded(rule.MaxPerDay, "day")
		}
		delta = rule.SkillPerWin
		points = rule.PointsPerWin
	}

	event, err := s.store.CreateSkillEvent(ctx, reward.SkillEvent{
		PetID: petID,
		Skill: pet.Skill(rule.Skill),
		Delta: delta,
		Game:  game,
	})
	if err != nil {
		return reward.GameOutcome{}, apperr.Internal("record event", err)
	}

	outcome := reward.GameOutcome{Event: event, NewUnlocks: []reward.Unlock{}}
	if !result.Won {
		outcome.Pet = p
		return outcome, nil
	}

	p.AddSkill(pet.Skill(rule.Skill), delta)
	outcome.StreakExtended = s.advanceStreak(&p, now)
	p.LastFedAt = now

	updated, err := s.pets.UpdatePet(ctx, p)
	if err != nil {
		return reward.GameOutcome{}, apperr.Internal("update pet", err)
	}
	outcome.Pet = updated

	if _, err := s.profiles.AddPoints(ctx, p.OwnerWallet, points); err != nil {
		return reward.GameOutcome{}, apperr.Internal("award points", err)
	}
	outcome.PointsAwarded = points

	unlocks, err := s.checkUnlocks(ctx, updated)
	if err != nil {
		return reward.GameOutcome{}, err
	}
	outcome.NewUnlocks = unlocks

	s.log.WithFields(map[string]interface{}{
		"pet":     petID,
		"game":    game,
		"skill":   rule.Skill,
		"points":  points,
		"unlocks": len(unlocks),
	}).Info("game result recorded")
	return outcome, nil
}

// advanceStreak bumps the streak at most once per UTC day and resets it
// after a missed day. Reports whether the streak grew.
func (s *Service) advanceStreak(p *pet.Pet, now time.Time) bool {
	today := now.Truncate(24 * time.Hour)
	if p.LastFedAt.IsZero() {
		p.Streak = 1
		return true
	}
	last := p.LastFedAt.UTC().Truncate(24 * time.Hour)
	switch {
	case last.Equal(today):
		return false
	case last.Equal(today.AddDate(0, 0, -1)):
		p.Streak++
		return true
	default:
		p.Streak = 1
		return true
	}
}

// checkUnlocks awards every achievement whose threshold the pet now meets.
// The store makes unlocking idempotent; only new unlocks earn points.
func (s *Service) checkUnlocks(ctx context.Context, p pet.Pet) ([]reward.Unlock, error) {
	achievements, err := s.store.ListAchievements(ctx)
	if err != nil {
		return nil, apperr.Internal("list achievements", err)
	}

	unlocks := []reward.Unlock{}
	for _, a := range achievements {
		if !s.thresholdMet(p, a) {
			continue
		}
		isNew, err := s.store.UnlockAchievement(ctx, p.ID, a.ID)
		if err != nil {
			return nil, apperr.Internal("unlock achievement", err)
		}
		if !isNew {
			continue
		}
		if a.Points > 0 {
			if _, err := s.profiles.AddPoints(ctx, p.OwnerWallet, a.Points); err != nil {
				return nil, apperr.Internal("award achievement points", err)
			}
		}
		unlocks = append(unlocks, reward.Unlock{Achievement: a, PetID: p.ID, UnlockedAt: s.now().UTC()})
		s.log.Infof("pet %s unlocked %s", p.ID, a.Code)
	}
	return unlocks, nil
}

func (s *Service) thresholdMet(p pet.Pet, a reward.Achievement) bool {
	if a.Skill == "any" {
		for _, skill := range pet.Skills {
			if p.SkillValue(skill) >= a.Threshold {
				return true
			}
		}
		return false
	}
	return p.SkillValue(pet.Skill(a.Skill)) >= a.Threshold
}

// ListAchievements returns the full achievement catalogue.
func (s *Service) ListAchievements(ctx context.Context) ([]reward.Achievement, error) {
	list, err := s.store.ListAchievements(ctx)
	if err != nil {
		return nil, apperr.Internal("list achievements", err)
	}
	if list == nil {
		list = []reward.Achievement{}
	}
	return list, nil
}

// PetAchievements returns a pet's unlocks, newest first.
func (s *Service) PetAchievements(ctx context.Context, petID string) ([]reward.Unlock, error) {
	list, err := s.store.ListPetAchievements(ctx, petID)
	if err != nil {
		return nil, apperr.Internal("list pet achievements", err)
	}
	if list == nil {
		list = []reward.Unlock{}
	}
	return list, nil
}

// PetEvents pages through a pet's skill event log.
func (s *Service) PetEvents(ctx context.Context, petID string, limit, offset int) ([]reward.SkillEvent, error) {
	if limit == 0 {
		limit = 100
	}
	if limit < 1 || limit > eventsMaxLimit {
		return nil, apperr.Unprocessable("limit must be between 1 and 1000")
	}
	if offset < 0 {
		return nil, apperr.Unprocessable("offset must not be negative")
	}
	list, err := s.store.ListSkillEvents(ctx, petID, limit, offset)
	if err != nil {
		return nil, apperr.Internal("list events", err)
	}
	if list == nil {
		list = []reward.SkillEvent{}
	}
	return list, nil
}
