package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"flipside/internal/app/db"
	"flipside/internal/pkg/errs"
	"flipside/internal/pkg/logx"
)

const (
	// DefaultPageLimit applies when a request gives no limit.
	DefaultPageLimit = 50

	// MaxPageLimit caps the page size a request can ask for.
	MaxPageLimit = 100
)

// PageParams selects a window of a list.
type PageParams struct {
	Limit  int32
	Offset int32
}

// Normalize clamps the parameters into the accepted range.
func (p PageParams) Normalize() PageParams {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Page is one window of a list plus the size of the whole list.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

// MessageView is a stored message as either participant sees it.
type MessageView struct {
	ID             int64  `json:"id"`
	Message        string `json:"message"`
	CreatedAt      string `json:"created_at"`
	FromCustomerID int64  `json:"from_customer_id"`
	ToCustomerID   int64  `json:"to_customer_id"`
	IsViewed       bool   `json:"is_viewed"`
}

// ChatView is one entry of a customer's chat list.
type ChatView struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	WithCustomerID int64  `json:"with_customer_id"`

	// ViewedAllMessages is the is_viewed flag of the newest message the other
	// party sent, null when they sent none.
	ViewedAllMessages *bool `json:"viewed_all_messages"`

	LastMessage          *string `json:"last_message,omitempty"`
	LastMessageSenderID  *int64  `json:"last_message_sender_id,omitempty"`
	LastMessageCreatedAt *string `json:"last_message_created_at,omitempty"`
}

// Participants resolves sender and recipient of a message of chat. The result
// depends only on the chat and the flag, never on who is looking.
func Participants(chat db.Chat, isFromFromCustomer bool) (from, to int64) {
	if isFromFromCustomer {
		return chat.FromCustomerID, chat.ToCustomerID
	}
	return chat.ToCustomerID, chat.FromCustomerID
}

// History serves the read side of chats over HTTP.
type History struct {
	store  Store
	logger zerolog.Logger
}

func NewHistory(store Store) *History {
	return &History{
		store:  store,
		logger: logx.Component("chat_history"),
	}
}

// ListChats returns the viewer's chats, those with messages first (newest first).
func (h *History) ListChats(ctx context.Context, viewerID int64, params PageParams) (*Page[ChatView], *errs.CustomError) {
	params = params.Normalize()

	total, err := h.store.CountChats(ctx, viewerID)
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	summaries, err := h.store.ListChats(ctx, db.ListChatsParams{
		CustomerID: viewerID,
		Limit:      params.Limit,
		Offset:     params.Offset,
	})
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	items := make([]ChatView, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, chatView(s))
	}

	return &Page[ChatView]{Items: items, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

func chatView(s db.ChatSummary) ChatView {
	v := ChatView{
		ID:             s.ChatID,
		Name:           s.WithCustomerName,
		WithCustomerID: s.WithCustomerID,
	}

	if s.LastReceivedViewed.Valid {
		viewed := s.LastReceivedViewed.Bool
		v.ViewedAllMessages = &viewed
	}

	if s.LastMessage.Valid {
		message := s.LastMessage.String
		sender, _ := Participants(db.Chat{FromCustomerID: s.FromCustomerID, ToCustomerID: s.ToCustomerID}, s.LastIsFromFromCustomer.Bool)
		createdAt := FormatTime(s.LastCreatedAt.Time)

		v.LastMessage = &message
		v.LastMessageSenderID = &sender
		v.LastMessageCreatedAt = &createdAt
	}

	return v
}

// Messages returns the messages between viewer and other, newest first.
func (h *History) Messages(ctx context.Context, viewerID, otherID int64, params PageParams) (*Page[MessageView], *errs.CustomError) {
	params = params.Normalize()

	chat, cerr := h.findChat(ctx, viewerID, otherID)
	if cerr != nil {
		return nil, cerr
	}

	total, err := h.store.CountChatMessages(ctx, chat.ID)
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	messages, err := h.store.ListChatMessages(ctx, db.ListChatMessagesParams{
		ChatID: chat.ID,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	items := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		from, to := Participants(chat, m.IsFromFromCustomer)
		items = append(items, MessageView{
			ID:             m.ID,
			Message:        m.Message,
			CreatedAt:      FormatTime(m.CreatedAt),
			FromCustomerID: from,
			ToCustomerID:   to,
			IsViewed:       m.IsViewed,
		})
	}

	return &Page[MessageView]{Items: items, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

// MarkViewed flags as viewed the messages addressed to the viewer that were
// created before now, and returns how many changed.
func (h *History) MarkViewed(ctx context.Context, viewerID, otherID int64, now time.Time) (int64, *errs.CustomError) {
	chat, cerr := h.findChat(ctx, viewerID, otherID)
	if cerr != nil {
		return 0, cerr
	}

	// Messages to the viewer were sent by the other side of the chat.
	fromFromCustomer := chat.FromCustomerID != viewerID

	n, err := h.store.MarkMessagesViewed(ctx, db.MarkMessagesViewedParams{
		ChatID:             chat.ID,
		IsFromFromCustomer: fromFromCustomer,
		Before:             now,
	})
	if err != nil {
		return 0, errs.NewError(errs.ErrUnknown, err)
	}

	h.logger.Debug().Int64("chat_id", chat.ID).Int64("viewer_id", viewerID).Int64("marked", n).Msg("Messages marked viewed")
	return n, nil
}

func (h *History) findChat(ctx context.Context, viewerID, otherID int64) (db.Chat, *errs.CustomError) {
	chat, err := h.store.FindChat(ctx, viewerID, otherID)
	if err != nil {
		if db.IsNotFound(err) {
			return db.Chat{}, errs.NewError(errs.ErrNotFound)
		}
		return db.Chat{}, errs.NewError(errs.ErrUnknown, err)
	}
	return chat, nil
}
