package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"jaco-backend/internal/models"
)

// ErrSideChatClosed is returned when a write needs an open side chat and
// the row has already been combined or discarded.
var ErrSideChatClosed = errors.New("side chat is not open")

const sideChatColumns = `id, chat_id, user_id, step_number, original_step_content,
	combined_step_content, status, created_at, updated_at`

type SideChatRepo struct {
	pool *pgxpool.Pool
}

func NewSideChatRepo(pool *pgxpool.Pool) *SideChatRepo {
	return &SideChatRepo{pool: pool}
}

func scanSideChat(row pgx.Row) (*models.SideChat, error) {
	sc := &models.SideChat{}
	err := row.Scan(
		&sc.ID, &sc.ChatID, &sc.UserID, &sc.StepNumber, &sc.OriginalStepContent,
		&sc.CombinedStepContent, &sc.Status, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (r *SideChatRepo) Create(ctx context.Context, sc *models.SideChat) error {
	sc.ID = uuid.New()
	if sc.Status == "" {
		sc.Status = models.SideChatOpen
	}

	query := `INSERT INTO side_chats (id, chat_id, user_id, step_number, original_step_content, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		sc.ID, sc.ChatID, sc.UserID, sc.StepNumber, sc.OriginalStepContent, sc.Status,
	).Scan(&sc.CreatedAt, &sc.UpdatedAt)
	return errors.Wrap(err, "insert side chat")
}

// GetByID returns the side chat with its messages in insertion order.
func (r *SideChatRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SideChat, error) {
	sc, err := scanSideChat(r.pool.QueryRow(ctx, "SELECT "+sideChatColumns+" FROM side_chats WHERE id = $1", id))
	if err != nil {
		return nil, errors.Wrapf(err, "get side chat %s", id)
	}

	sc.Messages, err = r.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// ListByChat returns the user's side chats for a parent chat, oldest first.
func (r *SideChatRepo) ListByChat(ctx context.Context, chatID, userID uuid.UUID) ([]*models.SideChat, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+sideChatColumns+" FROM side_chats WHERE chat_id = $1 AND user_id = $2 ORDER BY created_at ASC, id ASC",
		chatID, userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list side chats")
	}
	defer rows.Close()

	var list []*models.SideChat
	for rows.Next() {
		sc, err := scanSideChat(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan side chat")
		}
		list = append(list, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list side chats")
	}
	rows.Close()

	for _, sc := range list {
		if sc.Messages, err = r.ListMessages(ctx, sc.ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *SideChatRepo) ListMessages(ctx context.Context, sideChatID uuid.UUID) ([]models.SideChatMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, side_chat_id, role, content, ordering, created_at
		FROM side_chat_messages WHERE side_chat_id = $1 ORDER BY ordering ASC`,
		sideChatID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list side chat messages")
	}
	defer rows.Close()

	messages := []models.SideChatMessage{}
	for rows.Next() {
		var m models.SideChatMessage
		if err := rows.Scan(&m.ID, &m.SideChatID, &m.Role, &m.Content, &m.Ordering, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan side chat message")
		}
		messages = append(messages, m)
	}
	return messages, errors.Wrap(rows.Err(), "list side chat messages")
}

// AddMessage appends m with the next ordering value. The side chat row is
// locked for the duration so concurrent appends get distinct orderings.
func (r *SideChatRepo) AddMessage(ctx context.Context, m *models.SideChatMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin add message")
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, "SELECT status FROM side_chats WHERE id = $1 FOR UPDATE", m.SideChatID).Scan(&status)
	if err != nil {
		return errors.Wrapf(err, "lock side chat %s", m.SideChatID)
	}
	if status != models.SideChatOpen {
		return ErrSideChatClosed
	}

	m.ID = uuid.New()
	err = tx.QueryRow(ctx,
		`INSERT INTO side_chat_messages (id, side_chat_id, role, content, ordering)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(ordering) + 1, 0) FROM side_chat_messages WHERE side_chat_id = $2))
		RETURNING ordering, created_at`,
		m.ID, m.SideChatID, m.Role, m.Content,
	).Scan(&m.Ordering, &m.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert side chat message")
	}

	if _, err := tx.Exec(ctx, "UPDATE side_chats SET updated_at = NOW() WHERE id = $1", m.SideChatID); err != nil {
		return errors.Wrap(err, "touch side chat")
	}

	return errors.Wrap(tx.Commit(ctx), "commit add message")
}

// Close moves an open side chat to status. It returns ErrSideChatClosed if
// the side chat exists but is no longer open.
func (r *SideChatRepo) Close(ctx context.Context, id uuid.UUID, status string, combined *string) (*models.SideChat, error) {
	sc, err := scanSideChat(r.pool.QueryRow(ctx,
		`UPDATE side_chats SET status = $2, combined_step_content = COALESCE($3, combined_step_content), updated_at = NOW()
		WHERE id = $1 AND status = 'open'
		RETURNING `+sideChatColumns,
		id, status, combined,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if qErr := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM side_chats WHERE id = $1)", id).Scan(&exists); qErr != nil {
			return nil, errors.Wrap(qErr, "check side chat")
		}
		if exists {
			return nil, ErrSideChatClosed
		}
		return nil, errors.Wrapf(err, "close side chat %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "close side chat %s", id)
	}

	sc.Messages, err = r.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Delete removes the side chat's messages and then the side chat itself.
func (r *SideChatRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin delete side chat")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM side_chat_messages WHERE side_chat_id = $1", id); err != nil {
		return errors.Wrap(err, "delete side chat messages")
	}
	tag, err := tx.Exec(ctx, "DELETE FROM side_chats WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "delete side chat")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(pgx.ErrNoRows, "delete side chat %s", id)
	}
	return errors.Wrap(tx.Commit(ctx), "commit delete side chat")
}

// DiscardIdle marks open side chats not updated since before as discarded.
func (r *SideChatRepo) DiscardIdle(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE side_chats SET status = 'discarded', updated_at = NOW() WHERE status = 'open' AND updated_at < $1",
		before,
	)
	if err != nil {
		return 0, errors.Wrap(err, "discard idle side chats")
	}
	return tag.RowsAffected(), nil
}
