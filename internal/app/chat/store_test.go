package chat

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"flipside/internal/app/db"
)

// memStore is an in-memory Store with the same single-chat-per-pair and
// foreign key behaviour as the Postgres schema.
type memStore struct {
	mu        sync.Mutex
	customers map[int64]db.Customer
	blocked   map[[2]int64]bool
	chats     []db.Chat
	messages  []db.ChatMessage
	summaries []db.ChatSummary
	clock     time.Time

	// createCalls counts chat inserts that created a row.
	createCalls int

	// failWith, when set, is returned by every call.
	failWith error
}

func newMemStore(customerIDs ...int64) *memStore {
	s := &memStore{
		customers: map[int64]db.Customer{},
		blocked:   map[[2]int64]bool{},
		clock:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, id := range customerIDs {
		s.customers[id] = db.Customer{ID: id, Name: "customer"}
	}
	return s
}

func (s *memStore) block(from, to int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[[2]int64{from, to}] = true
}

func (s *memStore) storedMessages() []db.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]db.ChatMessage(nil), s.messages...)
}

func (s *memStore) allChats() []db.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]db.Chat(nil), s.chats...)
}

func (s *memStore) GetCustomerByID(_ context.Context, id int64) (db.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return db.Customer{}, s.failWith
	}
	c, ok := s.customers[id]
	if !ok {
		return db.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *memStore) IsBlocked(_ context.Context, a, b int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	return s.blocked[[2]int64{a, b}] || s.blocked[[2]int64{b, a}], nil
}

func (s *memStore) findLocked(a, b int64) (db.Chat, bool) {
	for _, c := range s.chats {
		if (c.FromCustomerID == a && c.ToCustomerID == b) || (c.FromCustomerID == b && c.ToCustomerID == a) {
			return c, true
		}
	}
	return db.Chat{}, false
}

func (s *memStore) FindChat(_ context.Context, a, b int64) (db.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return db.Chat{}, s.failWith
	}
	c, ok := s.findLocked(a, b)
	if !ok {
		return db.Chat{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *memStore) GetOrCreateChat(_ context.Context, from, to int64) (db.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return db.Chat{}, s.failWith
	}
	if c, ok := s.findLocked(from, to); ok {
		return c, nil
	}
	if _, ok := s.customers[to]; !ok {
		return db.Chat{}, &pgconn.PgError{Code: "23503"}
	}
	c := db.Chat{
		ID:             int64(len(s.chats) + 1),
		FromCustomerID: from,
		ToCustomerID:   to,
		CreatedAt:      s.clock,
	}
	s.chats = append(s.chats, c)
	s.createCalls++
	return c, nil
}

func (s *memStore) CreateChatMessage(_ context.Context, arg db.CreateChatMessageParams) (db.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return db.ChatMessage{}, s.failWith
	}
	s.clock = s.clock.Add(time.Second)
	m := db.ChatMessage{
		ID:                 int64(len(s.messages) + 1),
		ChatID:             arg.ChatID,
		Message:            arg.Message,
		IsFromFromCustomer: arg.IsFromFromCustomer,
		CreatedAt:          s.clock,
		UpdatedAt:          s.clock,
	}
	s.messages = append(s.messages, m)
	return m, nil
}

func (s *memStore) ListChats(_ context.Context, arg db.ListChatsParams) ([]db.ChatSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.summaries, nil
}

func (s *memStore) CountChats(_ context.Context, _ int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	return int64(len(s.summaries)), nil
}

func (s *memStore) ListChatMessages(_ context.Context, arg db.ListChatMessagesParams) ([]db.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	var out []db.ChatMessage
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ChatID == arg.ChatID {
			out = append(out, s.messages[i])
		}
	}
	start := min(int(arg.Offset), len(out))
	end := min(start+int(arg.Limit), len(out))
	return out[start:end], nil
}

func (s *memStore) CountChatMessages(_ context.Context, chatID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.ChatID == chatID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) MarkMessagesViewed(_ context.Context, arg db.MarkMessagesViewedParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ChatID == arg.ChatID && m.IsFromFromCustomer == arg.IsFromFromCustomer && !m.IsViewed && m.CreatedAt.Before(arg.Before) {
			m.IsViewed = true
			n++
		}
	}
	return n, nil
}
