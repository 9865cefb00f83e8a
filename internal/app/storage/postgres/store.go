// Package postgres implements the storage interfaces on PostgreSQL with the
// pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/pet"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/profile"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.ProfileStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)
var _ storage.PetStore = (*Store)(nil)
var _ storage.InstanceStore = (*Store)(nil)
var _ storage.KnowledgeStore = (*Store)(nil)
var _ storage.ImageStore = (*Store)(nil)
var _ storage.RewardStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database and applies migrations.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return New(db), nil
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func marshalMetadata(metadata map[string]interface{}) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(metadata)
}

func unmarshalMetadata(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

// vectorLiteral renders a float32 slice as a pgvector input literal.
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// parseVector parses a pgvector text representation back to float32s.
func parseVector(text string) []float32 {
	text = strings.Trim(strings.TrimSpace(text), "[]")
	if text == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil
		}
		vec = append(vec, float32(f))
	}
	return vec
}

// --- ProfileStore -----------------------------------------------------------

func (s *Store) CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, wallet_address, username, nonce, points, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
	`, p.ID, p.WalletAddress, p.Username, p.Nonce, p.Points, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, wallet string) (profile.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, wallet_address, COALESCE(username, ''), nonce, points, created_at, updated_at
		FROM profiles
		WHERE wallet_address = $1
	`, wallet)

	var p profile.Profile
	if err := row.Scan(&p.ID, &p.WalletAddress, &p.Username, &p.Nonce, &p.Points, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return profile.Profile{}, notFound(err)
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	p.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET username = NULLIF($2, ''), points = $3, updated_at = $4
		WHERE wallet_address = $1
	`, p.WalletAddress, p.Username, p.Points, p.UpdatedAt)
	if err != nil {
		return profile.Profile{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return profile.Profile{}, storage.ErrNotFound
	}
	return s.GetProfile(ctx, p.WalletAddress)
}

func (s *Store) AddPoints(ctx context.Context, wallet string, delta int) (profile.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE profiles
		SET points = GREATEST(points + $2, 0), updated_at = NOW()
		WHERE wallet_address = $1
		RETURNING id, wallet_address, COALESCE(username, ''), nonce, points, created_at, updated_at
	`, wallet, delta)

	var p profile.Profile
	if err := row.Scan(&p.ID, &p.WalletAddress, &p.Username, &p.Nonce, &p.Points, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return profile.Profile{}, notFound(err)
	}
	return p, nil
}

// --- SessionStore -----------------------------------------------------------

func (s *Store) UpdateNonce(ctx context.Context, wallet, nonce string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET nonce = $2, updated_at = NOW() WHERE wallet_address = $1
	`, wallet, nonce)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, sess profile.Session) (profile.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.LastSeenAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, wallet_address, token_hash, expires_at, last_seen_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sess.ID, sess.WalletAddress, sess.TokenHash, sess.ExpiresAt, sess.LastSeenAt, sess.CreatedAt)
	if err != nil {
		return profile.Session{}, err
	}
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (profile.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, wallet_address, token_hash, expires_at, last_seen_at, created_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)

	var sess profile.Session
	if err := row.Scan(&sess.ID, &sess.WalletAddress, &sess.TokenHash, &sess.ExpiresAt, &sess.LastSeenAt, &sess.CreatedAt); err != nil {
		return profile.Session{}, notFound(err)
	}
	return sess, nil
}

func (s *Store) TouchSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_seen_at = NOW() WHERE id = $1
	`, id)
	return err
}

func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- PetStore ---------------------------------------------------------------

const petColumns = `id, owner_wallet, name, rarity, social, trivia, science, code, trenches, streak, last_fed_at, created_at, updated_at`

func scanPet(row interface{ Scan(...interface{}) error }) (pet.Pet, error) {
	var (
		p         pet.Pet
		lastFedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.OwnerWallet, &p.Name, &p.Rarity, &p.Social, &p.Trivia,
		&p.Science, &p.Code, &p.Trenches, &p.Streak, &lastFedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return pet.Pet{}, err
	}
	if lastFedAt.Valid {
		p.LastFedAt = lastFedAt.Time
	}
	return p, nil
}

func (s *Store) CreatePet(ctx context.Context, p pet.Pet) (pet.Pet, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	var lastFedAt interface{}
	if !p.LastFedAt.IsZero() {
		lastFedAt = p.LastFedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pets (`+petColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, p.ID, p.OwnerWallet, p.Name, p.Rarity, p.Social, p.Trivia, p.Science, p.Code,
		p.Trenches, p.Streak, lastFedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return pet.Pet{}, err
	}
	return p, nil
}

func (s *Store) GetPet(ctx context.Context, id string) (pet.Pet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+petColumns+` FROM pets WHERE id = $1
	`, id)
	p, err := scanPet(row)
	if err != nil {
		return pet.Pet{}, notFound(err)
	}
	return p, nil
}

func (s *Store) ListPetsByOwner(ctx context.Context, wallet string) ([]pet.Pet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+petColumns+` FROM pets WHERE owner_wallet = $1 ORDER BY created_at DESC
	`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []pet.Pet
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) UpdatePet(ctx context.Context, p pet.Pet) (pet.Pet, error) {
	p.UpdatedAt = time.Now().UTC()

	var lastFedAt interface{}
	if !p.LastFedAt.IsZero() {
		lastFedAt = p.LastFedAt
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE pets
		SET name = $2, rarity = $3, social = $4, trivia = $5, science = $6,
		    code = $7, trenches = $8, streak = $9, last_fed_at = $10, updated_at = $11
		WHERE id = $1
	`, p.ID, p.Name, p.Rarity, p.Social, p.Trivia, p.Science, p.Code, p.Trenches,
		p.Streak, lastFedAt, p.UpdatedAt)
	if err != nil {
		return pet.Pet{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return pet.Pet{}, storage.ErrNotFound
	}
	return s.GetPet(ctx, p.ID)
}

// petScopeClause builds a WHERE fragment restricting to the given pets.
// Returns an empty clause for global (nil) scope.
func petScopeClause(column string, petIDs []string, args *[]interface{}) string {
	if petIDs == nil {
		return ""
	}
	*args = append(*args, pq.Array(petIDs))
	return fmt.Sprintf(" AND %s = ANY($%d::uuid[])", column, len(*args))
}
