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

const chatColumns = `id, user_id, title, messages, jaco_meta, message_embeddings, parent_chat_id, created_at, updated_at`

// ChatRepo stores the slice of a chat that step mode and topic tracking
// need: its metadata, a transcript and a window of message embeddings.
type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func scanChat(row pgx.Row) (*models.Chat, error) {
	c := &models.Chat{Meta: models.DefaultJacoMeta()}
	err := row.Scan(
		&c.ID, &c.UserID, &c.Title, &c.Messages, &c.Meta, &c.MessageEmbeddings,
		&c.ParentChatID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// insertChat writes a new chat row inside tx. An existing row with the same
// id is left untouched.
func insertChat(ctx context.Context, tx pgx.Tx, c *models.Chat) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Messages == nil {
		c.Messages = []models.ChatMessage{}
	}
	if c.MessageEmbeddings == nil {
		c.MessageEmbeddings = [][]float32{}
	}

	messages, _ := json.Marshal(c.Messages)
	meta, _ := json.Marshal(c.Meta)
	embeddings, _ := json.Marshal(c.MessageEmbeddings)

	_, err := tx.Exec(ctx,
		`INSERT INTO chats (id, user_id, title, messages, jaco_meta, message_embeddings, parent_chat_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
		c.ID, c.UserID, c.Title, messages, meta, embeddings, c.ParentChatID,
	)
	return errors.Wrap(err, "insert chat")
}

func (r *ChatRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	c, err := scanChat(r.pool.QueryRow(ctx, "SELECT "+chatColumns+" FROM chats WHERE id = $1", id))
	if err != nil {
		return nil, errors.Wrapf(err, "get chat %s", id)
	}
	return c, nil
}

// GetOrCreate returns the chat, registering an empty one for userID the
// first time an id is seen.
func (r *ChatRepo) GetOrCreate(ctx context.Context, id, userID uuid.UUID) (*models.Chat, error) {
	meta, _ := json.Marshal(models.DefaultJacoMeta())
	_, err := r.pool.Exec(ctx,
		"INSERT INTO chats (id, user_id, jaco_meta) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING",
		id, userID, meta,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "register chat %s", id)
	}
	return r.GetByID(ctx, id)
}

func (r *ChatRepo) UpdateMeta(ctx context.Context, id uuid.UUID, meta models.JacoMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "encode chat meta")
	}
	_, err = r.pool.Exec(ctx, "UPDATE chats SET jaco_meta = $1, updated_at = NOW() WHERE id = $2", data, id)
	return errors.Wrapf(err, "update chat meta %s", id)
}

func (r *ChatRepo) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	_, err := r.pool.Exec(ctx, "UPDATE chats SET title = $1, updated_at = NOW() WHERE id = $2", title, id)
	return errors.Wrapf(err, "update chat title %s", id)
}

// AppendMessage adds msg to the transcript and, when embedding is non-nil,
// pushes it onto the embedding history trimmed to the last keep entries.
func (r *ChatRepo) AppendMessage(ctx context.Context, id uuid.UUID, msg models.ChatMessage, embedding []float32, keep int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin append message")
	}
	defer tx.Rollback(ctx)

	var messages []models.ChatMessage
	var embeddings [][]float32
	err = tx.QueryRow(ctx, "SELECT messages, message_embeddings FROM chats WHERE id = $1 FOR UPDATE", id).
		Scan(&messages, &embeddings)
	if err != nil {
		return errors.Wrapf(err, "lock chat %s", id)
	}

	messages = append(messages, msg)
	if embedding != nil {
		embeddings = append(embeddings, embedding)
		if keep > 0 && len(embeddings) > keep {
			embeddings = embeddings[len(embeddings)-keep:]
		}
	}
	if embeddings == nil {
		embeddings = [][]float32{}
	}

	msgData, _ := json.Marshal(messages)
	embData, _ := json.Marshal(embeddings)
	_, err = tx.Exec(ctx,
		"UPDATE chats SET messages = $1, message_embeddings = $2, updated_at = NOW() WHERE id = $3",
		msgData, embData, id,
	)
	if err != nil {
		return errors.Wrapf(err, "append message to chat %s", id)
	}
	return errors.Wrap(tx.Commit(ctx), "commit append message")
}
