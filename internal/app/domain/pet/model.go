package pet

import "time"

// Rarity is the pet rarity tier stored as the rarity_t enum.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Valid reports whether the rarity is a known tier.
func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// Skill names a trainable pet attribute.
type Skill string

const (
	SkillSocial   Skill = "social"
	SkillTrivia   Skill = "trivia"
	SkillScience  Skill = "science"
	SkillCode     Skill = "code"
	SkillTrenches Skill = "trenches"
)

// Skills lists every trainable skill.
var Skills = []Skill{SkillSocial, SkillTrivia, SkillScience, SkillCode, SkillTrenches}

// Valid reports whether the skill is known.
func (s Skill) Valid() bool {
	for _, known := range Skills {
		if s == known {
			return true
		}
	}
	return false
}

// Pet is a user-owned game entity with rarity and skill stats.
type Pet struct {
	ID          string    `json:"id"`
	OwnerWallet string    `json:"owner_wallet"`
	Name        string    `json:"name"`
	Rarity      Rarity    `json:"rarity"`
	Social      int       `json:"social"`
	Trivia      int       `json:"trivia"`
	Science     int       `json:"science"`
	Code        int       `json:"code"`
	Trenches    int       `json:"trenches"`
	Streak      int       `json:"streak"`
	LastFedAt   time.Time `json:"last_fed_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SkillValue returns the current value of the named skill.
func (p Pet) SkillValue(s Skill) int {
	switch s {
	case SkillSocial:
		return p.Social
	case SkillTrivia:
		return p.Trivia
	case SkillScience:
		return p.Science
	case SkillCode:
		return p.Code
	case SkillTrenches:
		return p.Trenches
	}
	return 0
}

// AddSkill raises the named skill, clamping at zero.
func (p *Pet) AddSkill(s Skill, delta int) {
	apply := func(v int) int {
		v += delta
		if v < 0 {
			return 0
		}
		return v
	}
	switch s {
	case SkillSocial:
		p.Social = apply(p.Social)
	case SkillTrivia:
		p.Trivia = apply(p.Trivia)
	case SkillScience:
		p.Science = apply(p.Science)
	case SkillCode:
		p.Code = apply(p.Code)
	case SkillTrenches:
		p.Trenches = apply(p.Trenches)
	}
}
