package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const chatColumns = `id, from_customer_id, to_customer_id, created_at`

func scanChat(row pgx.Row) (Chat, error) {
	var c Chat
	err := row.Scan(&c.ID, &c.FromCustomerID, &c.ToCustomerID, &c.CreatedAt)
	return c, err
}

const findChat = `
SELECT ` + chatColumns + ` FROM chats
WHERE (from_customer_id = $1 AND to_customer_id = $2)
   OR (from_customer_id = $2 AND to_customer_id = $1)`

// FindChat returns the chat between a and b regardless of who started it.
func (q *Queries) FindChat(ctx context.Context, a, b int64) (Chat, error) {
	return scanChat(q.db.QueryRow(ctx, findChat, a, b))
}

const insertChat = `
INSERT INTO chats (from_customer_id, to_customer_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
RETURNING ` + chatColumns

// GetOrCreateChat returns the chat between from and to, creating it with from as
// the initiator when none exists. Concurrent first contacts from both sides
// converge on a single row: the losing insert hits the pair index, returns no
// row, and the winner is read back.
func (q *Queries) GetOrCreateChat(ctx context.Context, from, to int64) (Chat, error) {
	chat, err := q.FindChat(ctx, from, to)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Chat{}, fmt.Errorf("find chat: %w", err)
	}

	chat, err = scanChat(q.db.QueryRow(ctx, insertChat, from, to))
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Chat{}, fmt.Errorf("insert chat: %w", err)
	}

	chat, err = q.FindChat(ctx, from, to)
	if err != nil {
		return Chat{}, fmt.Errorf("re-read chat after conflict: %w", err)
	}
	return chat, nil
}

const listChats = `
SELECT c.id, c.from_customer_id, c.to_customer_id,
       other.id, other.name,
       last.message, last.is_from_from_customer, last.created_at,
       received.is_viewed
FROM chats c
JOIN customers other
  ON other.id = CASE WHEN c.from_customer_id = $1 THEN c.to_customer_id ELSE c.from_customer_id END
LEFT JOIN LATERAL (
    SELECT m.message, m.is_from_from_customer, m.created_at
    FROM chat_messages m
    WHERE m.chat_id = c.id
    ORDER BY m.created_at DESC, m.id DESC
    LIMIT 1
) last ON TRUE
LEFT JOIN LATERAL (
    SELECT m.is_viewed
    FROM chat_messages m
    WHERE m.chat_id = c.id
      AND m.is_from_from_customer = (c.from_customer_id <> $1)
    ORDER BY m.created_at DESC, m.id DESC
    LIMIT 1
) received ON TRUE
WHERE c.from_customer_id = $1 OR c.to_customer_id = $1
ORDER BY last.created_at DESC NULLS LAST, c.id DESC
LIMIT $2 OFFSET $3`

type ListChatsParams struct {
	CustomerID int64
	Limit      int32
	Offset     int32
}

// ListChats returns the customer's chats, those with messages first (newest first).
func (q *Queries) ListChats(ctx context.Context, arg ListChatsParams) ([]ChatSummary, error) {
	rows, err := q.db.Query(ctx, listChats, arg.CustomerID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (ChatSummary, error) {
		var s ChatSummary
		err := row.Scan(
			&s.ChatID, &s.FromCustomerID, &s.ToCustomerID,
			&s.WithCustomerID, &s.WithCustomerName,
			&s.LastMessage, &s.LastIsFromFromCustomer, &s.LastCreatedAt,
			&s.LastReceivedViewed,
		)
		return s, err
	})
}

const countChats = `SELECT count(*) FROM chats WHERE from_customer_id = $1 OR to_customer_id = $1`

func (q *Queries) CountChats(ctx context.Context, customerID int64) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countChats, customerID).Scan(&n)
	return n, err
}
