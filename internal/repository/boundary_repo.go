package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"jaco-backend/internal/models"
)

type BoundaryRepo struct {
	pool *pgxpool.Pool
}

func NewBoundaryRepo(pool *pgxpool.Pool) *BoundaryRepo {
	return &BoundaryRepo{pool: pool}
}

// CreateSplit stores the chat a split produced and its boundary in one
// transaction. Rows that already exist under the same ids are kept, so
// replaying a committed split is a no-op.
func (r *BoundaryRepo) CreateSplit(ctx context.Context, chat *models.Chat, b *models.TopicBoundary) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.SplitTimestamp.IsZero() {
		b.SplitTimestamp = time.Now().UTC()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin topic split")
	}
	defer tx.Rollback(ctx)

	if err := insertChat(ctx, tx, chat); err != nil {
		return err
	}
	b.NewChatID = chat.ID

	_, err = tx.Exec(ctx,
		`INSERT INTO topic_boundaries
		(id, original_chat_id, new_chat_id, triggering_message, old_topic, new_topic, confidence, split_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO NOTHING`,
		b.ID, b.OriginalChatID, b.NewChatID, b.TriggeringMessage, b.OldTopic, b.NewTopic, b.Confidence, b.SplitTimestamp,
	)
	if err != nil {
		return errors.Wrap(err, "insert topic boundary")
	}

	return errors.Wrap(tx.Commit(ctx), "commit topic split")
}

// ListByChat returns boundaries where chatID is either side of the split.
func (r *BoundaryRepo) ListByChat(ctx context.Context, chatID uuid.UUID) ([]*models.TopicBoundary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, original_chat_id, new_chat_id, triggering_message, old_topic, new_topic, confidence, split_timestamp
		FROM topic_boundaries WHERE original_chat_id = $1 OR new_chat_id = $1
		ORDER BY split_timestamp ASC`,
		chatID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list topic boundaries")
	}
	defer rows.Close()

	boundaries := []*models.TopicBoundary{}
	for rows.Next() {
		b := &models.TopicBoundary{}
		if err := rows.Scan(&b.ID, &b.OriginalChatID, &b.NewChatID, &b.TriggeringMessage,
			&b.OldTopic, &b.NewTopic, &b.Confidence, &b.SplitTimestamp); err != nil {
			return nil, errors.Wrap(err, "scan topic boundary")
		}
		boundaries = append(boundaries, b)
	}
	return boundaries, errors.Wrap(rows.Err(), "list topic boundaries")
}
