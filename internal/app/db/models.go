package db

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// RelationLike and RelationBlock are the values of customer_relations.relation.
const (
	RelationLike  = "like"
	RelationBlock = "block"
)

type User struct {
	ID          int64
	Email       string
	PhoneNumber string
	LastLogin   pgtype.Timestamptz
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Customer is the profile owned by a user. It is the principal of the chat subsystem.
type Customer struct {
	ID         int64
	UserID     int64
	Name       string
	ZipCode    string
	Bio        pgtype.Text
	Occupation pgtype.Text
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CustomerPhoto struct {
	ID         int64
	CustomerID int64
	ObjectKey  string
	CreatedAt  time.Time
}

// Chat links two customers. FromCustomerID is whoever sent the first message.
type Chat struct {
	ID             int64
	FromCustomerID int64
	ToCustomerID   int64
	CreatedAt      time.Time
}

type ChatMessage struct {
	ID                 int64
	ChatID             int64
	Message            string
	IsFromFromCustomer bool
	IsViewed           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ChatSummary is one row of a customer's chat list.
type ChatSummary struct {
	ChatID           int64
	FromCustomerID   int64
	ToCustomerID     int64
	WithCustomerID   int64
	WithCustomerName string

	// Last message of the chat, invalid when the chat has no messages.
	LastMessage            pgtype.Text
	LastIsFromFromCustomer pgtype.Bool
	LastCreatedAt          pgtype.Timestamptz

	// is_viewed of the newest message sent by the other party.
	LastReceivedViewed pgtype.Bool
}
