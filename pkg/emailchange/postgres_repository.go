package emailchange

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var Schema string

const (
	uniqueViolation          = "23505"
	accountIdentifierUnique  = "email_change_requests_account_identifier_key"
	emailChangeSelectColumns = `id, account_identifier, selector, hashed_token, requested_at, expires_at, new_email,
		attempts, old_email_selector, old_email_hashed_token, confirmed_by_new_email, confirmed_by_old_email`
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresEmailChangeRepository stores requests in the email_change_requests table.
// The unique constraint on account_identifier makes concurrent inserts for one
// account fail with ErrDuplicateRequest.
type PostgresEmailChangeRepository struct {
	db     DBTX
	lookup AccountLookup
}

// NewPostgresEmailChangeRepository creates a new PostgreSQL repository
func NewPostgresEmailChangeRepository(db DBTX, lookup AccountLookup) *PostgresEmailChangeRepository {
	return &PostgresEmailChangeRepository{db: db, lookup: lookup}
}

// Migrate creates the table and indexes if they do not exist
func (r *PostgresEmailChangeRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create email change schema: %w", err)
	}
	return nil
}

func (r *PostgresEmailChangeRepository) FindBySelector(ctx context.Context, selector string) (*EmailChangeRequest, error) {
	return r.findOne(ctx, "selector", selector)
}

func (r *PostgresEmailChangeRepository) FindByAccount(ctx context.Context, accountIdentifier string) (*EmailChangeRequest, error) {
	return r.findOne(ctx, "account_identifier", accountIdentifier)
}

func (r *PostgresEmailChangeRepository) FindByOldEmailSelector(ctx context.Context, selector string) (*EmailChangeRequest, error) {
	return r.findOne(ctx, "old_email_selector", selector)
}

func (r *PostgresEmailChangeRepository) findOne(ctx context.Context, column, value string) (*EmailChangeRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM email_change_requests WHERE %s = $1", emailChangeSelectColumns, column)

	request, err := scanEmailChangeRequest(r.db.QueryRow(ctx, query, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		slog.Error("Failed to query email change request", "column", column, "error", err)
		return nil, fmt.Errorf("failed to query email change request: %w", err)
	}
	return request, nil
}

func scanEmailChangeRequest(row pgx.Row) (*EmailChangeRequest, error) {
	var (
		request             EmailChangeRequest
		oldEmailSelector    *string
		oldEmailHashedToken *string
	)
	err := row.Scan(
		&request.ID,
		&request.AccountIdentifier,
		&request.Selector,
		&request.HashedToken,
		&request.RequestedAt,
		&request.ExpiresAt,
		&request.NewEmail,
		&request.Attempts,
		&oldEmailSelector,
		&oldEmailHashedToken,
		&request.ConfirmedByNewEmail,
		&request.ConfirmedByOldEmail,
	)
	if err != nil {
		return nil, err
	}
	if oldEmailSelector != nil {
		request.OldEmailSelector = *oldEmailSelector
	}
	if oldEmailHashedToken != nil {
		request.OldEmailHashedToken = *oldEmailHashedToken
	}
	return &request, nil
}

// Save inserts the request or updates its mutable columns when the selector exists
func (r *PostgresEmailChangeRepository) Save(ctx context.Context, request *EmailChangeRequest) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO email_change_requests (
			id, account_identifier, selector, hashed_token, requested_at, expires_at, new_email,
			attempts, old_email_selector, old_email_hashed_token, confirmed_by_new_email, confirmed_by_old_email
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (selector) DO UPDATE SET
			attempts = EXCLUDED.attempts,
			old_email_selector = EXCLUDED.old_email_selector,
			old_email_hashed_token = EXCLUDED.old_email_hashed_token,
			confirmed_by_new_email = EXCLUDED.confirmed_by_new_email,
			confirmed_by_old_email = EXCLUDED.confirmed_by_old_email
	`,
		request.ID,
		request.AccountIdentifier,
		request.Selector,
		request.HashedToken,
		request.RequestedAt,
		request.ExpiresAt,
		request.NewEmail,
		request.Attempts,
		nullString(request.OldEmailSelector),
		nullString(request.OldEmailHashedToken),
		request.ConfirmedByNewEmail,
		request.ConfirmedByOldEmail,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == accountIdentifierUnique {
			slog.Info("Concurrent email change request rejected", "account", request.AccountIdentifier)
			return ErrDuplicateRequest
		}
		return fmt.Errorf("failed to save email change request: %w", err)
	}
	return nil
}

func (r *PostgresEmailChangeRepository) Delete(ctx context.Context, request *EmailChangeRequest) error {
	if _, err := r.db.Exec(ctx, "DELETE FROM email_change_requests WHERE selector = $1", request.Selector); err != nil {
		return fmt.Errorf("failed to delete email change request: %w", err)
	}
	return nil
}

func (r *PostgresEmailChangeRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM email_change_requests WHERE expires_at <= $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired email change requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresEmailChangeRepository) CountExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM email_change_requests WHERE expires_at <= $1", cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count expired email change requests: %w", err)
	}
	return count, nil
}

func (r *PostgresEmailChangeRepository) GetAccount(ctx context.Context, request *EmailChangeRequest) (Account, error) {
	return lookupAccount(ctx, r.lookup, request)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
