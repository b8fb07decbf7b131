package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, chat_id, message, is_from_from_customer, is_viewed, created_at, updated_at`

func scanMessage(row pgx.Row) (ChatMessage, error) {
	var m ChatMessage
	err := row.Scan(&m.ID, &m.ChatID, &m.Message, &m.IsFromFromCustomer, &m.IsViewed, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

type CreateChatMessageParams struct {
	ChatID             int64
	Message            string
	IsFromFromCustomer bool
}

const createChatMessage = `
INSERT INTO chat_messages (chat_id, message, is_from_from_customer)
VALUES ($1, $2, $3)
RETURNING ` + messageColumns

// CreateChatMessage stores a message. created_at is assigned by the database.
func (q *Queries) CreateChatMessage(ctx context.Context, arg CreateChatMessageParams) (ChatMessage, error) {
	return scanMessage(q.db.QueryRow(ctx, createChatMessage, arg.ChatID, arg.Message, arg.IsFromFromCustomer))
}

type ListChatMessagesParams struct {
	ChatID int64
	Limit  int32
	Offset int32
}

const listChatMessages = `
SELECT ` + messageColumns + `
FROM chat_messages
WHERE chat_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`

// ListChatMessages returns a page of the chat's messages, newest first.
func (q *Queries) ListChatMessages(ctx context.Context, arg ListChatMessagesParams) ([]ChatMessage, error) {
	rows, err := q.db.Query(ctx, listChatMessages, arg.ChatID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMessage)
}

const countChatMessages = `SELECT count(*) FROM chat_messages WHERE chat_id = $1`

func (q *Queries) CountChatMessages(ctx context.Context, chatID int64) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countChatMessages, chatID).Scan(&n)
	return n, err
}

type MarkMessagesViewedParams struct {
	ChatID int64

	// IsFromFromCustomer selects the direction of the messages to mark.
	IsFromFromCustomer bool

	// Before excludes messages created at or after this instant.
	Before time.Time
}

const markMessagesViewed = `
UPDATE chat_messages
SET is_viewed = TRUE, updated_at = now()
WHERE chat_id = $1
  AND is_from_from_customer = $2
  AND is_viewed = FALSE
  AND created_at < $3`

// MarkMessagesViewed flags unread messages of one direction and returns how many changed.
func (q *Queries) MarkMessagesViewed(ctx context.Context, arg MarkMessagesViewedParams) (int64, error) {
	tag, err := q.db.Exec(ctx, markMessagesViewed, arg.ChatID, arg.IsFromFromCustomer, arg.Before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
