package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"jaco-backend/internal/models"
)

const memoryColumns = `id, user_id, source_chat_id, content, category, confidence, embedding, created_at`

type MemoryRepo struct {
	pool *pgxpool.Pool
}

func NewMemoryRepo(pool *pgxpool.Pool) *MemoryRepo {
	return &MemoryRepo{pool: pool}
}

func scanMemory(row pgx.Row) (*models.Memory, error) {
	m := &models.Memory{}
	var embedding []byte
	if err := row.Scan(&m.ID, &m.UserID, &m.SourceChatID, &m.Content, &m.Category, &m.Confidence, &embedding, &m.CreatedAt); err != nil {
		return nil, err
	}
	if len(embedding) > 0 {
		if err := json.Unmarshal(embedding, &m.Embedding); err != nil {
			return nil, errors.Wrapf(err, "decode embedding of memory %s", m.ID)
		}
	}
	return m, nil
}

func (r *MemoryRepo) Create(ctx context.Context, m *models.Memory) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	var embedding []byte
	if len(m.Embedding) > 0 {
		embedding, _ = json.Marshal(m.Embedding)
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO memories (id, user_id, source_chat_id, content, category, confidence, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		m.ID, m.UserID, m.SourceChatID, m.Content, m.Category, m.Confidence, embedding,
	).Scan(&m.CreatedAt)
	return errors.Wrap(err, "insert memory")
}

func (r *MemoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Memory, error) {
	m, err := scanMemory(r.pool.QueryRow(ctx, "SELECT "+memoryColumns+" FROM memories WHERE id = $1", id))
	if err != nil {
		return nil, errors.Wrapf(err, "get memory %s", id)
	}
	return m, nil
}

// ListByUser returns the user's newest memories first, at most limit of them.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Memory, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+memoryColumns+" FROM memories WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2",
		userID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list memories")
	}
	defer rows.Close()

	memories := []*models.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan memory")
		}
		memories = append(memories, m)
	}
	return memories, errors.Wrap(rows.Err(), "list memories")
}

func (r *MemoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM memories WHERE id = $1", id)
	if err != nil {
		return errors.Wrapf(err, "delete memory %s", id)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(pgx.ErrNoRows, "delete memory %s", id)
	}
	return nil
}
