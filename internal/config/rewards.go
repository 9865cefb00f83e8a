package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GameRule maps a minigame to the skill it trains and its point payouts.
type GameRule struct {
	Skill        string `yaml:"skill"`
	PointsPerWin int    `yaml:"points_per_win"`
	SkillPerWin  int    `yaml:"skill_per_win"`
	MaxPerDay    int    `yaml:"max_per_day"`
}

// AchievementRule declares an achievement unlocked at a skill threshold.
type AchievementRule struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Rarity      string `yaml:"rarity"`
	Points      int    `yaml:"points"`
	Skill       string `yaml:"skill"`
	Threshold   int    `yaml:"threshold"`
}

// RewardRules is the full reward configuration.
type RewardRules struct {
	Games        map[string]GameRule `yaml:"games"`
	Achievements []AchievementRule   `yaml:"achievements"`
}

// LoadRewardRules reads the rules file, falling back to built-in defaults
// when the file is absent.
func LoadRewardRules(path string) (*RewardRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRewardRules(), nil
		}
		return nil, fmt.Errorf("read rewards config: %w", err)
	}

	var rules RewardRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rewards config: %w", err)
	}

	for game, rule := range rules.Games {
		if rule.Skill == "" {
			return nil, fmt.Errorf("game %s: skill is required", game)
		}
	}

	return &rules, nil
}

// DefaultRewardRules returns the compiled-in reward configuration.
func DefaultRewardRules() *RewardRules {
	return &RewardRules{
		Games: map[string]GameRule{
			"trivia-rush":  {Skill: "trivia", PointsPerWin: 10, SkillPerWin: 2, MaxPerDay: 20},
			"code-golf":    {Skill: "code", PointsPerWin: 15, SkillPerWin: 3, MaxPerDay: 10},
			"lab-quiz":     {Skill: "science", PointsPerWin: 10, SkillPerWin: 2, MaxPerDay: 20},
			"word-party":   {Skill: "social", PointsPerWin: 5, SkillPerWin: 1, MaxPerDay: 30},
			"market-maker": {Skill: "trenches", PointsPerWin: 20, SkillPerWin: 3, MaxPerDay: 10},
		},
		Achievements: []AchievementRule{
			{Code: "first-steps", Name: "First Steps", Description: "Reach 10 in any skill", Rarity: "common", Points: 25, Skill: "any", Threshold: 10},
			{Code: "trivia-buff", Name: "Trivia Buff", Description: "Reach 50 trivia", Rarity: "uncommon", Points: 50, Skill: "trivia", Threshold: 50},
			{Code: "code-wizard", Name: "Code Wizard", Description: "Reach 50 code", Rarity: "rare", Points: 75, Skill: "code", Threshold: 50},
			{Code: "mad-scientist", Name: "Mad Scientist", Description: "Reach 100 science", Rarity: "epic", Points: 150, Skill: "science", Threshold: 100},
			{Code: "degen-legend", Name: "Degen Legend", Description: "Reach 200 trenches", Rarity: "legendary", Points: 500, Skill: "trenches", Threshold: 200},
		},
	}
}
