package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `id, user_id, name, zip_code, bio, occupation, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.ZipCode, &c.Bio, &c.Occupation, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getCustomerByID = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

func (q *Queries) GetCustomerByID(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomerByID, id))
}

const getCustomerByUserID = `SELECT ` + customerColumns + ` FROM customers WHERE user_id = $1`

func (q *Queries) GetCustomerByUserID(ctx context.Context, userID int64) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomerByUserID, userID))
}

type CreateCustomerParams struct {
	UserID     int64
	Name       string
	ZipCode    string
	Bio        pgtype.Text
	Occupation pgtype.Text
}

const createCustomer = `
INSERT INTO customers (user_id, name, zip_code, bio, occupation)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + customerColumns

// CreateCustomer inserts the profile of a user. A second profile fails with a unique violation.
func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, createCustomer, arg.UserID, arg.Name, arg.ZipCode, arg.Bio, arg.Occupation))
}

type SetRelationParams struct {
	FromCustomerID int64
	ToCustomerID   int64
	Relation       string
}

const setRelation = `
INSERT INTO customer_relations (from_customer_id, to_customer_id, relation)
VALUES ($1, $2, $3)
ON CONFLICT (from_customer_id, to_customer_id) DO UPDATE SET relation = EXCLUDED.relation`

// SetRelation records how FromCustomerID reacted to ToCustomerID, replacing any previous reaction.
func (q *Queries) SetRelation(ctx context.Context, arg SetRelationParams) error {
	_, err := q.db.Exec(ctx, setRelation, arg.FromCustomerID, arg.ToCustomerID, arg.Relation)
	return err
}

const isBlocked = `
SELECT EXISTS (
    SELECT 1 FROM customer_relations
    WHERE relation = 'block'
      AND ((from_customer_id = $1 AND to_customer_id = $2)
        OR (from_customer_id = $2 AND to_customer_id = $1))
)`

// IsBlocked reports whether either customer blocked the other.
func (q *Queries) IsBlocked(ctx context.Context, a, b int64) (bool, error) {
	var blocked bool
	err := q.db.QueryRow(ctx, isBlocked, a, b).Scan(&blocked)
	return blocked, err
}

type CreateCustomerPhotoParams struct {
	CustomerID int64
	ObjectKey  string
}

const createCustomerPhoto = `
INSERT INTO customer_photos (customer_id, object_key)
VALUES ($1, $2)
RETURNING id, customer_id, object_key, created_at`

func (q *Queries) CreateCustomerPhoto(ctx context.Context, arg CreateCustomerPhotoParams) (CustomerPhoto, error) {
	var p CustomerPhoto
	err := q.db.QueryRow(ctx, createCustomerPhoto, arg.CustomerID, arg.ObjectKey).
		Scan(&p.ID, &p.CustomerID, &p.ObjectKey, &p.CreatedAt)
	return p, err
}

const listCustomerPhotos = `
SELECT id, customer_id, object_key, created_at
FROM customer_photos
WHERE customer_id = $1
ORDER BY created_at, id`

func (q *Queries) ListCustomerPhotos(ctx context.Context, customerID int64) ([]CustomerPhoto, error) {
	rows, err := q.db.Query(ctx, listCustomerPhotos, customerID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (CustomerPhoto, error) {
		var p CustomerPhoto
		err := row.Scan(&p.ID, &p.CustomerID, &p.ObjectKey, &p.CreatedAt)
		return p, err
	})
}

type DeleteCustomerPhotoParams struct {
	ID         int64
	CustomerID int64
}

const deleteCustomerPhoto = `
DELETE FROM customer_photos
WHERE id = $1 AND customer_id = $2
RETURNING id, customer_id, object_key, created_at`

// DeleteCustomerPhoto removes a photo of the customer. Photos of other customers
// are never matched, so they read as not found.
func (q *Queries) DeleteCustomerPhoto(ctx context.Context, arg DeleteCustomerPhotoParams) (CustomerPhoto, error) {
	var p CustomerPhoto
	err := q.db.QueryRow(ctx, deleteCustomerPhoto, arg.ID, arg.CustomerID).
		Scan(&p.ID, &p.CustomerID, &p.ObjectKey, &p.CreatedAt)
	return p, err
}
