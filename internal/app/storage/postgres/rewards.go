package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/reward"
)

const achievementColumns = `id, code, name, COALESCE(description, ''), rarity, points, skill, threshold, created_at`

func scanAchievement(row interface{ Scan(...interface{}) error }) (reward.Achievement, error) {
	var a reward.Achievement
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &a.Rarity,
		&a.Points, &a.Skill, &a.Threshold, &a.CreatedAt)
	return a, err
}

func (s *Store) UpsertAchievement(ctx context.Context, a reward.Achievement) (reward.Achievement, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO achievements (id, code, name, description, rarity, points, skill, threshold, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    rarity = EXCLUDED.rarity,
		    points = EXCLUDED.points,
		    skill = EXCLUDED.skill,
		    threshold = EXCLUDED.threshold
		RETURNING `+achievementColumns,
		a.ID, a.Code, a.Name, a.Description, a.Rarity, a.Points, a.Skill, a.Threshold, a.CreatedAt)

	return scanAchievement(row)
}

func (s *Store) ListAchievements(ctx context.Context) ([]reward.Achievement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+achievementColumns+` FROM achievements ORDER BY points, code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reward.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// UnlockAchievement records an unlock and reports whether it was new.
func (s *Store) UnlockAchievement(ctx context.Context, petID, achievementID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pet_achievements (pet_id, achievement_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, petID, achievementID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListPetAchievements(ctx context.Context, petID string) ([]reward.Unlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.code, a.name, COALESCE(a.description, ''), a.rarity, a.points, a.skill, a.threshold, a.created_at,
		       pa.unlocked_at
		FROM achievements a
		JOIN pet_achievements pa ON pa.achievement_id = a.id
		WHERE pa.pet_id = $1
		ORDER BY pa.unlocked_at DESC
	`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reward.Unlock
	for rows.Next() {
		var u reward.Unlock
		err := rows.Scan(&u.ID, &u.Code, &u.Name, &u.Description, &u.Rarity,
			&u.Points, &u.Skill, &u.Threshold, &u.CreatedAt, &u.UnlockedAt)
		if err != nil {
			return nil, err
		}
		u.PetID = petID
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) CreateSkillEvent(ctx context.Context, ev reward.SkillEvent) (reward.SkillEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skill_events (id, pet_id, skill, delta, game, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`, ev.ID, ev.PetID, ev.Skill, ev.Delta, ev.Game, ev.CreatedAt)
	if err != nil {
		return reward.SkillEvent{}, err
	}
	return ev, nil
}

func (s *Store) ListSkillEvents(ctx context.Context, petID string, limit, offset int) ([]reward.SkillEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pet_id, skill, delta, COALESCE(game, ''), created_at
		FROM skill_events
		WHERE pet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, petID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reward.SkillEvent
	for rows.Next() {
		var ev reward.SkillEvent
		if err := rows.Scan(&ev.ID, &ev.PetID, &ev.Skill, &ev.Delta, &ev.Game, &ev.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func (s *Store) CountGameEventsSince(ctx context.Context, petID, game string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM skill_events
		WHERE pet_id = $1 AND game = $2 AND created_at >= $3
	`, petID, game, since).Scan(&count)
	return count, err
}
