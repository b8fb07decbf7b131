package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, phone_number, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PhoneNumber, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByPhone = `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1`

func (q *Queries) GetUserByPhone(ctx context.Context, phoneNumber string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByPhone, phoneNumber))
}

const userExistsByEmail = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`

func (q *Queries) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, userExistsByEmail, email).Scan(&exists)
	return exists, err
}

const userExistsByPhone = `SELECT EXISTS (SELECT 1 FROM users WHERE phone_number = $1)`

func (q *Queries) UserExistsByPhone(ctx context.Context, phoneNumber string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, userExistsByPhone, phoneNumber).Scan(&exists)
	return exists, err
}

type CreateUserParams struct {
	Email       string
	PhoneNumber string
}

const createUser = `INSERT INTO users (email, phone_number) VALUES ($1, $2) RETURNING ` + userColumns

// CreateUser inserts a user. A duplicate email or phone fails with a unique violation.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser, arg.Email, arg.PhoneNumber))
}

const updateLastLogin = `UPDATE users SET last_login = now(), updated_at = now() WHERE id = $1`

func (q *Queries) UpdateLastLogin(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, updateLastLogin, id)
	return err
}
