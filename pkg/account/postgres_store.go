package account

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed users.sql
var Schema string

const uniqueViolation = "23505"

// PostgresStore implements Store on the users table
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL user store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the users table if it does not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create users schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	now := time.Now().UTC()
	user := User{
		ID:             uuid.New(),
		Email:          strings.TrimSpace(params.Email),
		Name:           params.Name,
		CreatedAt:      now,
		LastModifiedAt: now,
	}

	_, err := s.pool.Exec(ctx,
		"INSERT INTO users (id, email, name, created_at, last_modified_at) VALUES ($1, $2, $3, $4, $5)",
		user.ID, user.Email, user.Name, user.CreatedAt, user.LastModifiedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT id, email, name, created_at, last_modified_at FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (User, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT id, email, name, created_at, last_modified_at FROM users WHERE LOWER(email) = $1",
		normalizeEmail(email))
	return scanUser(row)
}

func (s *PostgresStore) UpdateEmail(ctx context.Context, id uuid.UUID, email string) (User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET email = $2, last_modified_at = $3
		WHERE id = $1
		RETURNING id, email, name, created_at, last_modified_at
	`, id, strings.TrimSpace(email), time.Now().UTC())

	user, err := scanUser(row)
	if err != nil && isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	return user, err
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.LastModifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
