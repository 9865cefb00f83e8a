package reward

import (
	"time"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
)

// Achievement is an unlockable badge with a point bounty.
type Achievement struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Rarity      pet.Rarity `json:"rarity"`
	Points      int        `json:"points"`
	Skill       string     `json:"skill"`
	Threshold   int        `json:"threshold"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Unlock records an achievement earned by a pet.
type Unlock struct {
	Achievement
	PetID      string    `json:"pet_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// SkillEvent is an append-only record of a skill change.
type SkillEvent struct {
	ID        string    `json:"id"`
	PetID     string    `json:"pet_id"`
	Skill     pet.Skill `json:"skill"`
	Delta     int       `json:"delta"`
	Game      string    `json:"game,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GameOutcome summarises what a recorded minigame result changed.
type GameOutcome struct {
	Pet            pet.Pet    `json:"pet"`
	Event          SkillEvent `json:"event"`
	PointsAwarded  int        `json:"points_awarded"`
	StreakExtended bool       `json:"streak_extended"`
	NewUnlocks     []Unlock   `json:"new_unlocks"`
}
