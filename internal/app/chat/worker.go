/*
Package chat contains the real-time chat subsystem: frame validation and
persistence, the per-connection WebSocket session, the session manager and
the chat history queries.

This file defines the Worker, which turns a raw inbound frame into a stored
message and the record that is fanned out to both participants.
*/
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flipside/internal/app/db"
	"flipside/internal/pkg/metrics"
)

// Client facing validation messages, sent back verbatim as text frames.
const (
	ReasonNotJSON       = "Not a JSON"
	ReasonNoRecipient   = "No to_customer_id in data"
	ReasonNoMessage     = "No message in data"
	ReasonNoChat        = "No chat found"
	ReasonInternalError = "Internal error"
)

// ValidationError is a frame the client can correct. It never ends the session.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// Store is the persistence the chat subsystem needs. *db.Queries implements it.
type Store interface {
	GetCustomerByID(ctx context.Context, id int64) (db.Customer, error)
	IsBlocked(ctx context.Context, a, b int64) (bool, error)
	FindChat(ctx context.Context, a, b int64) (db.Chat, error)
	GetOrCreateChat(ctx context.Context, from, to int64) (db.Chat, error)
	CreateChatMessage(ctx context.Context, arg db.CreateChatMessageParams) (db.ChatMessage, error)
	ListChats(ctx context.Context, arg db.ListChatsParams) ([]db.ChatSummary, error)
	CountChats(ctx context.Context, customerID int64) (int64, error)
	ListChatMessages(ctx context.Context, arg db.ListChatMessagesParams) ([]db.ChatMessage, error)
	CountChatMessages(ctx context.Context, chatID int64) (int64, error)
	MarkMessagesViewed(ctx context.Context, arg db.MarkMessagesViewedParams) (int64, error)
}

// Inbound is a validated frame ready to be persisted.
type Inbound struct {
	Chat               db.Chat
	SenderID           int64
	RecipientID        int64
	Message            string
	IsFromFromCustomer bool
}

// Record is the enriched message delivered to sender and recipient.
type Record struct {
	Message        string `json:"message"`
	ToCustomerID   int64  `json:"to_customer_id"`
	CreatedAt      string `json:"created_at"`
	FromCustomerID int64  `json:"from_customer_id"`
	ID             int64  `json:"id"`
}

// Worker handles the frames of one channel type.
type Worker interface {
	// ChannelType names the channel family, e.g. "chat" for ws_chat_<id>.
	ChannelType() string

	// Validate returns a *ValidationError for frames the client must fix and
	// any other error for infrastructure failures.
	Validate(ctx context.Context, raw []byte, senderID int64) (*Inbound, error)

	// PersistAndEnrich stores the message and returns the record to deliver.
	PersistAndEnrich(ctx context.Context, in *Inbound) (Record, error)
}

// ChatWorker implements Worker for one-to-one customer chats.
type ChatWorker struct {
	store Store
}

func NewChatWorker(store Store) *ChatWorker {
	return &ChatWorker{store: store}
}

func (w *ChatWorker) ChannelType() string {
	return "chat"
}

func (w *ChatWorker) Validate(ctx context.Context, raw []byte, senderID int64) (*Inbound, error) {
	data, ok := decodeFrame(raw)
	if !ok {
		return nil, invalid(ReasonNotJSON)
	}

	recipientID, ok := customerID(data["to_customer_id"])
	if !ok {
		return nil, invalid(ReasonNoRecipient)
	}

	message, _ := data["message"].(string)
	if message == "" {
		return nil, invalid(ReasonNoMessage)
	}

	chat, err := w.resolveChat(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}

	return &Inbound{
		Chat:               chat,
		SenderID:           senderID,
		RecipientID:        recipientID,
		Message:            message,
		IsFromFromCustomer: chat.FromCustomerID == senderID,
	}, nil
}

// resolveChat finds the chat between sender and recipient, creating it with the
// sender as initiator on first contact.
func (w *ChatWorker) resolveChat(ctx context.Context, senderID, recipientID int64) (db.Chat, error) {
	if recipientID == senderID {
		return db.Chat{}, invalid(ReasonNoChat)
	}

	if _, err := w.store.GetCustomerByID(ctx, recipientID); err != nil {
		if db.IsNotFound(err) {
			return db.Chat{}, invalid(ReasonNoChat)
		}
		return db.Chat{}, fmt.Errorf("load recipient: %w", err)
	}

	blocked, err := w.store.IsBlocked(ctx, senderID, recipientID)
	if err != nil {
		return db.Chat{}, fmt.Errorf("check relation: %w", err)
	}
	if blocked {
		return db.Chat{}, invalid(ReasonNoChat)
	}

	chat, err := w.store.GetOrCreateChat(ctx, senderID, recipientID)
	if err != nil {
		// The recipient was deleted between the lookup and the insert.
		if db.IsForeignKeyViolation(err) {
			return db.Chat{}, invalid(ReasonNoChat)
		}
		return db.Chat{}, err
	}
	return chat, nil
}

func (w *ChatWorker) PersistAndEnrich(ctx context.Context, in *Inbound) (Record, error) {
	stored, err := w.store.CreateChatMessage(ctx, db.CreateChatMessageParams{
		ChatID:             in.Chat.ID,
		Message:            in.Message,
		IsFromFromCustomer: in.IsFromFromCustomer,
	})
	if err != nil {
		return Record{}, fmt.Errorf("store message: %w", err)
	}

	metrics.ChatMessagesPersisted.Inc()

	return Record{
		Message:        stored.Message,
		ToCustomerID:   in.RecipientID,
		CreatedAt:      FormatTime(stored.CreatedAt),
		FromCustomerID: in.SenderID,
		ID:             stored.ID,
	}, nil
}

// FormatTime renders a store timestamp the way every chat payload carries it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// decodeFrame parses a frame into a JSON object. A frame holding a JSON string
// whose content is itself a JSON object is unwrapped once.
func decodeFrame(raw []byte) (map[string]any, bool) {
	v, err := decodeJSON(raw)
	if err != nil {
		return nil, false
	}

	if s, isString := v.(string); isString {
		if v, err = decodeJSON([]byte(s)); err != nil {
			return nil, false
		}
	}

	data, ok := v.(map[string]any)
	return data, ok
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

// customerID accepts a positive integer, either as a JSON number or a numeric string.
func customerID(v any) (int64, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, false
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
