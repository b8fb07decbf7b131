package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipside/internal/app/db"
	"flipside/internal/pkg/errs"
)

func TestParticipants(t *testing.T) {
	chat := db.Chat{ID: 1, FromCustomerID: 10, ToCustomerID: 20}

	from, to := Participants(chat, true)
	assert.Equal(t, [2]int64{10, 20}, [2]int64{from, to})

	from, to = Participants(chat, false)
	assert.Equal(t, [2]int64{20, 10}, [2]int64{from, to})
}

func TestPageParams_Normalize(t *testing.T) {
	assert.Equal(t, PageParams{Limit: DefaultPageLimit}, PageParams{}.Normalize())
	assert.Equal(t, PageParams{Limit: MaxPageLimit, Offset: 0}, PageParams{Limit: 1000, Offset: -3}.Normalize())
	assert.Equal(t, PageParams{Limit: 5, Offset: 10}, PageParams{Limit: 5, Offset: 10}.Normalize())
}

// seedConversation stores a chat started by 1 with one message each way.
func seedConversation(t *testing.T, store *memStore) {
	t.Helper()
	ctx := context.Background()
	worker := NewChatWorker(store)

	for _, frame := range []struct {
		sender int64
		raw    string
	}{
		{1, `{"to_customer_id":2,"message":"hi"}`},
		{2, `{"to_customer_id":1,"message":"hello"}`},
	} {
		in, err := worker.Validate(ctx, []byte(frame.raw), frame.sender)
		require.NoError(t, err)
		_, err = worker.PersistAndEnrich(ctx, in)
		require.NoError(t, err)
	}
}

func TestHistory_MessagesSameForBothViewers(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(1, 2)
	seedConversation(t, store)
	history := NewHistory(store)

	fromOne, cerr := history.Messages(ctx, 1, 2, PageParams{})
	require.Nil(t, cerr)
	fromTwo, cerr := history.Messages(ctx, 2, 1, PageParams{})
	require.Nil(t, cerr)

	assert.Equal(t, fromOne.Items, fromTwo.Items)
	require.Len(t, fromOne.Items, 2)
	assert.Equal(t, int64(2), fromOne.Total)

	// Newest first.
	assert.Equal(t, "hello", fromOne.Items[0].Message)
	assert.Equal(t, int64(2), fromOne.Items[0].FromCustomerID)
	assert.Equal(t, int64(1), fromOne.Items[0].ToCustomerID)
	assert.Equal(t, "hi", fromOne.Items[1].Message)
	assert.Equal(t, int64(1), fromOne.Items[1].FromCustomerID)
	assert.Equal(t, int64(2), fromOne.Items[1].ToCustomerID)
}

func TestHistory_MessagesPagination(t *testing.T) {
	store := newMemStore(1, 2)
	seedConversation(t, store)

	page, cerr := NewHistory(store).Messages(context.Background(), 1, 2, PageParams{Limit: 1, Offset: 1})
	require.Nil(t, cerr)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "hi", page.Items[0].Message)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, int32(1), page.Limit)
	assert.Equal(t, int32(1), page.Offset)
}

func TestHistory_NoChat(t *testing.T) {
	ctx := context.Background()
	history := NewHistory(newMemStore(1, 2))

	_, cerr := history.Messages(ctx, 1, 2, PageParams{})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrNotFound, cerr.Code)

	_, cerr = history.MarkViewed(ctx, 1, 2, time.Now())
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrNotFound, cerr.Code)
}

func TestHistory_StoreFailure(t *testing.T) {
	store := newMemStore(1, 2)
	store.failWith = errors.New("db down")

	_, cerr := NewHistory(store).Messages(context.Background(), 1, 2, PageParams{})
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrUnknown, cerr.Code)
}

func TestHistory_MarkViewedOnlyIncoming(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(1, 2)
	seedConversation(t, store)
	history := NewHistory(store)

	// Customer 2 views: only "hi" (sent by 1) is addressed to them.
	n, cerr := history.MarkViewed(ctx, 2, 1, store.clock.Add(time.Hour))
	require.Nil(t, cerr)
	assert.Equal(t, int64(1), n)

	for _, m := range store.storedMessages() {
		assert.Equal(t, m.Message == "hi", m.IsViewed, m.Message)
	}

	// Marking again changes nothing.
	n, cerr = history.MarkViewed(ctx, 2, 1, store.clock.Add(time.Hour))
	require.Nil(t, cerr)
	assert.Zero(t, n)
}

func TestHistory_MarkViewedBeforeNow(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(1, 2)
	seedConversation(t, store)

	// "hello" was stored after this instant.
	cutoff := store.storedMessages()[1].CreatedAt

	n, cerr := NewHistory(store).MarkViewed(ctx, 1, 2, cutoff)
	require.Nil(t, cerr)
	assert.Zero(t, n)
}

func TestHistory_ListChats(t *testing.T) {
	store := newMemStore(1, 2, 3)
	last := time.Date(2024, 3, 2, 8, 30, 0, 0, time.FixedZone("CET", 3600))
	store.summaries = []db.ChatSummary{
		{
			ChatID: 7, FromCustomerID: 2, ToCustomerID: 1,
			WithCustomerID: 2, WithCustomerName: "Bea",
			LastMessage:            pgtype.Text{String: "see you", Valid: true},
			LastIsFromFromCustomer: pgtype.Bool{Bool: false, Valid: true},
			LastCreatedAt:          pgtype.Timestamptz{Time: last, Valid: true},
			LastReceivedViewed:     pgtype.Bool{Bool: true, Valid: true},
		},
		{
			ChatID: 8, FromCustomerID: 1, ToCustomerID: 3,
			WithCustomerID: 3, WithCustomerName: "Cal",
		},
	}

	page, cerr := NewHistory(store).ListChats(context.Background(), 1, PageParams{})
	require.Nil(t, cerr)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.Total)

	first := page.Items[0]
	assert.Equal(t, int64(7), first.ID)
	assert.Equal(t, "Bea", first.Name)
	require.NotNil(t, first.LastMessage)
	assert.Equal(t, "see you", *first.LastMessage)
	require.NotNil(t, first.LastMessageSenderID)
	assert.Equal(t, int64(1), *first.LastMessageSenderID, "flag false means the chat's to side sent it")
	require.NotNil(t, first.LastMessageCreatedAt)
	assert.Equal(t, "2024-03-02T07:30:00Z", *first.LastMessageCreatedAt)
	require.NotNil(t, first.ViewedAllMessages)
	assert.True(t, *first.ViewedAllMessages)

	second := page.Items[1]
	assert.Nil(t, second.LastMessage)
	assert.Nil(t, second.LastMessageSenderID)
	assert.Nil(t, second.ViewedAllMessages)
}
