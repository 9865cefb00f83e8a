package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/image"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/instance"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/domain/knowledge"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage"
)

// --- InstanceStore ----------------------------------------------------------

const instanceColumns = `id, pet_id, content, content_type, content_hash, category, tags, metadata, created_at`

func scanInstance(row interface{ Scan(...interface{}) error }) (instance.DataInstance, error) {
	var (
		inst        instance.DataInstance
		tags        pq.StringArray
		metadataRaw []byte
	)
	err := row.Scan(&inst.ID, &inst.PetID, &inst.Content, &inst.ContentType,
		&inst.ContentHash, &inst.Category, &tags, &metadataRaw, &inst.CreatedAt)
	if err != nil {
		return instance.DataInstance{}, err
	}
	inst.Tags = []string(tags)
	inst.Metadata = unmarshalMetadata(metadataRaw)
	return inst, nil
}

func (s *Store) CreateInstance(ctx context.Context, inst instance.DataInstance) (instance.DataInstance, error) {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	inst.CreatedAt = time.Now().UTC()

	metadataJSON, err := marshalMetadata(inst.Metadata)
	if err != nil {
		return instance.DataInstance{}, err
	}
	if inst.Tags == nil {
		inst.Tags = []string{}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO datainstances (`+instanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, inst.ID, inst.PetID, inst.Content, inst.ContentType, inst.ContentHash,
		inst.Category, pq.Array(inst.Tags), metadataJSON, inst.CreatedAt)
	if err != nil {
		return instance.DataInstance{}, err
	}
	return inst, nil
}

func (s *Store) GetInstance(ctx context.Context, id string) (instance.DataInstance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+instanceColumns+` FROM datainstances WHERE id = $1
	`, id)
	inst, err := scanInstance(row)
	if err != nil {
		return instance.DataInstance{}, notFound(err)
	}
	return inst, nil
}

func (s *Store) ListInstancesByPet(ctx context.Context, petID string, limit, offset int) ([]instance.DataInstance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+instanceColumns+`
		FROM datainstances
		WHERE pet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, petID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInstances(rows)
}

func (s *Store) CountInstancesByPets(ctx context.Context, petIDs []string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM datainstances WHERE pet_id = ANY($1::uuid[])
	`, pq.Array(petIDs)).Scan(&count)
	return count, err
}

func (s *Store) SearchInstances(ctx context.Context, petIDs []string, query string, limit int) ([]instance.DataInstance, error) {
	args := []interface{}{"%" + query + "%"}
	scope := petScopeClause("pet_id", petIDs, &args)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+instanceColumns+`
		FROM datainstances
		WHERE content ILIKE $1`+scope+`
		ORDER BY created_at DESC
		LIMIT $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInstances(rows)
}

func collectInstances(rows *sql.Rows) ([]instance.DataInstance, error) {
	var result []instance.DataInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, rows.Err()
}

// --- KnowledgeStore ---------------------------------------------------------

const knowledgeColumns = `id, COALESCE(url, ''), COALESCE(title, ''), content, content_hash, metadata, COALESCE(embedding::text, ''), created_at`

func scanKnowledge(row interface{ Scan(...interface{}) error }) (knowledge.Knowledge, error) {
	var (
		k           knowledge.Knowledge
		metadataRaw []byte
		vectorText  string
	)
	err := row.Scan(&k.ID, &k.URL, &k.Title, &k.Content, &k.ContentHash,
		&metadataRaw, &vectorText, &k.CreatedAt)
	if err != nil {
		return knowledge.Knowledge{}, err
	}
	k.Metadata = unmarshalMetadata(metadataRaw)
	k.Embedding = parseVector(vectorText)
	return k, nil
}

func (s *Store) UpsertKnowledge(ctx context.Context, k knowledge.Knowledge) (knowledge.Knowledge, error) {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	k.CreatedAt = time.Now().UTC()

	metadataJSON, err := marshalMetadata(k.Metadata)
	if err != nil {
		return knowledge.Knowledge{}, err
	}

	var embedding interface{}
	if len(k.Embedding) > 0 {
		embedding = vectorLiteral(k.Embedding)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO knowledge (id, url, title, content, content_hash, metadata, embedding, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7::vector, $8)
		ON CONFLICT (url) DO UPDATE
		SET title = EXCLUDED.title,
		    content = EXCLUDED.content,
		    content_hash = EXCLUDED.content_hash,
		    metadata = EXCLUDED.metadata,
		    embedding = COALESCE(EXCLUDED.embedding, knowledge.embedding)
		RETURNING `+knowledgeColumns,
		k.ID, k.URL, k.Title, k.Content, k.ContentHash, metadataJSON, embedding, k.CreatedAt)

	return scanKnowledge(row)
}

func (s *Store) LinkKnowledge(ctx context.Context, instanceID, knowledgeID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO datainstance_knowledge (datainstance_id, knowledge_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, instanceID, knowledgeID)
	return err
}

func (s *Store) ListInstanceKnowledge(ctx context.Context, instanceID string) ([]knowledge.Knowledge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedKnowledgeColumns("k")+`
		FROM knowledge k
		JOIN datainstance_knowledge dk ON dk.knowledge_id = k.id
		WHERE dk.datainstance_id = $1
		ORDER BY dk.created_at
	`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectKnowledge(rows)
}

func (s *Store) ListPetKnowledge(ctx context.Context, petID string, limit int) ([]knowledge.Knowledge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (k.id) `+prefixedKnowledgeColumns("k")+`
		FROM knowledge k
		JOIN datainstance_knowledge dk ON dk.knowledge_id = k.id
		JOIN datainstances di ON di.id = dk.datainstance_id
		WHERE di.pet_id = $1
		ORDER BY k.id, k.created_at DESC
		LIMIT $2
	`, petID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectKnowledge(rows)
}

func (s *Store) SearchKnowledge(ctx context.Context, petIDs []string, query string, limit int) ([]knowledge.Knowledge, error) {
	args := []interface{}{"%" + query + "%"}
	scope := ""
	if petIDs != nil {
		args = append(args, pq.Array(petIDs))
		scope = `
		AND k.id IN (
			SELECT dk.knowledge_id
			FROM datainstance_knowledge dk
			JOIN datainstances di ON di.id = dk.datainstance_id
			WHERE di.pet_id = ANY($2::uuid[])
		)`
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedKnowledgeColumns("k")+`
		FROM knowledge k
		WHERE (k.content ILIKE $1 OR k.title ILIKE $1)`+scope+`
		ORDER BY k.created_at DESC
		LIMIT $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectKnowledge(rows)
}

func (s *Store) SemanticSearch(ctx context.Context, q storage.SemanticQuery) ([]knowledge.Match, error) {
	args := []interface{}{vectorLiteral(q.Embedding), q.Threshold}
	scope := ""
	if q.PetIDs != nil {
		args = append(args, pq.Array(q.PetIDs))
		scope = `
		AND k.id IN (
			SELECT dk.knowledge_id
			FROM datainstance_knowledge dk
			JOIN datainstances di ON di.id = dk.datainstance_id
			WHERE di.pet_id = ANY($3::uuid[])
		)`
	}
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedKnowledgeColumns("k")+`,
		       1 - (k.embedding <=> $1::vector) AS similarity
		FROM knowledge k
		WHERE k.embedding IS NOT NULL
		  AND 1 - (k.embedding <=> $1::vector) >= $2`+scope+`
		ORDER BY k.embedding <=> $1::vector
		LIMIT $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []knowledge.Match
	for rows.Next() {
		var (
			m           knowledge.Match
			metadataRaw []byte
			vectorText  string
		)
		err := rows.Scan(&m.ID, &m.URL, &m.Title, &m.Content, &m.ContentHash,
			&metadataRaw, &vectorText, &m.CreatedAt, &m.Similarity)
		if err != nil {
			return nil, err
		}
		m.Metadata = unmarshalMetadata(metadataRaw)
		m.Embedding = parseVector(vectorText)
		result = append(result, m)
	}
	return result, rows.Err()
}

func prefixedKnowledgeColumns(alias string) string {
	return alias + `.id, COALESCE(` + alias + `.url, ''), COALESCE(` + alias + `.title, ''), ` +
		alias + `.content, ` + alias + `.content_hash, ` + alias + `.metadata, COALESCE(` +
		alias + `.embedding::text, ''), ` + alias + `.created_at`
}

func collectKnowledge(rows *sql.Rows) ([]knowledge.Knowledge, error) {
	var result []knowledge.Knowledge
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	return result, rows.Err()
}

// --- ImageStore -------------------------------------------------------------

func (s *Store) UpsertImage(ctx context.Context, img image.Image) (image.Image, error) {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	img.CreatedAt = time.Now().UTC()

	metadataJSON, err := marshalMetadata(img.Metadata)
	if err != nil {
		return image.Image{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO images (id, image_url, alt_text, url_hash, store_path, metadata, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7)
		ON CONFLICT (image_url) DO UPDATE
		SET alt_text = COALESCE(EXCLUDED.alt_text, images.alt_text),
		    store_path = COALESCE(EXCLUDED.store_path, images.store_path),
		    metadata = EXCLUDED.metadata
		RETURNING id, image_url, COALESCE(alt_text, ''), url_hash, COALESCE(store_path, ''), metadata, created_at
	`, img.ID, img.ImageURL, img.AltText, img.URLHash, img.StorePath, metadataJSON, img.CreatedAt)

	var (
		out         image.Image
		metadataRaw []byte
	)
	if err := row.Scan(&out.ID, &out.ImageURL, &out.AltText, &out.URLHash, &out.StorePath, &metadataRaw, &out.CreatedAt); err != nil {
		return image.Image{}, err
	}
	out.Metadata = unmarshalMetadata(metadataRaw)
	return out, nil
}

func (s *Store) LinkImage(ctx context.Context, instanceID, imageID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO datainstance_images (datainstance_id, image_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, instanceID, imageID)
	return err
}

func (s *Store) ListInstanceImages(ctx context.Context, instanceID string) ([]image.Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.image_url, COALESCE(i.alt_text, ''), i.url_hash, COALESCE(i.store_path, ''), i.metadata, i.created_at
		FROM images i
		JOIN datainstance_images dimg ON dimg.image_id = i.id
		WHERE dimg.datainstance_id = $1
		ORDER BY dimg.created_at
	`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []image.Image
	for rows.Next() {
		var (
			img         image.Image
			metadataRaw []byte
		)
		if err := rows.Scan(&img.ID, &img.ImageURL, &img.AltText, &img.URLHash, &img.StorePath, &metadataRaw, &img.CreatedAt); err != nil {
			return nil, err
		}
		img.Metadata = unmarshalMetadata(metadataRaw)
		result = append(result, img)
	}
	return result, rows.Err()
}

