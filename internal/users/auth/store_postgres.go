// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/giftlist/internal/platform/database/schema"
	"github.com/taibuivan/giftlist/internal/platform/dberr"
	"github.com/taibuivan/giftlist/internal/platform/postgres"
)

// # Postgres Store

// PostgresPool is the pool surface the store needs. Satisfied by
// *pgxpool.Pool and pgxmock.PgxPoolIface.
type PostgresPool interface {
	postgres.DBTX
	postgres.Beginner
}

// PostgresStore implements [Store] on PostgreSQL.
//
// Outside a transaction db is the pool and pool is set; inside [WithinTx] db
// is the pgx.Tx and pool is nil, so nested scopes reuse the outer transaction.
type PostgresStore struct {
	db   postgres.DBTX
	pool postgres.Beginner
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store backed by pool.
func NewPostgresStore(pool PostgresPool) *PostgresStore {
	return &PostgresStore{db: pool, pool: pool}
}

func (store *PostgresStore) Users() UserRepository { return postgresUsers{db: store.db} }

func (store *PostgresStore) Sessions() SessionRepository { return postgresSessions{db: store.db} }

func (store *PostgresStore) PasswordResets() PasswordResetRepository {
	return postgresResets{db: store.db}
}

func (store *PostgresStore) EmailVerifications() EmailVerificationRepository {
	return postgresVerifications{db: store.db}
}

// WithinTx implements [Store].
func (store *PostgresStore) WithinTx(ctx context.Context, fn func(context.Context, Store) error) error {
	if store.pool == nil {
		return fn(ctx, store)
	}

	return postgres.WithTx(ctx, store.pool, func(txCtx context.Context, tx postgres.DBTX) error {
		return fn(txCtx, &PostgresStore{db: tx})
	})
}

// notFound maps pgx.ErrNoRows to dberr.ErrNotFound and wraps everything else.
func notFound(err error, tag string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return dberr.ErrNotFound
	}
	return fmt.Errorf("%s: %w", tag, err)
}

// # Queries

var (
	account = schema.UserAccount
	session = schema.UserSession
	reset   = schema.UserPasswordReset
	verify  = schema.UserEmailVerification

	userSelect = fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s`,
		account.ID, account.Username, account.Email, account.Password, account.EmailVerified,
		account.TOTPRegistered, account.RecoveryCode, account.CreatedAt, account.UpdatedAt,
		account.Table)

	sessionWithUserQuery = fmt.Sprintf(`
		SELECT s.%s, s.%s, s.%s, s.%s, a.%s, a.%s, a.%s, a.%s, a.%s
		FROM %s s
		INNER JOIN %s a ON a.%s = s.%s
		WHERE s.%s = $1`,
		session.ID, session.UserID, session.ExpiresAt, session.TwoFactorVerified,
		account.ID, account.Email, account.Username, account.EmailVerified, account.TOTPRegistered,
		session.Table, account.Table, account.ID, session.UserID, session.ID)

	resetWithUserQuery = fmt.Sprintf(`
		SELECT r.%s, r.%s, r.%s, r.%s, r.%s, r.%s, a.%s, a.%s, a.%s, a.%s, a.%s
		FROM %s r
		INNER JOIN %s a ON a.%s = r.%s
		WHERE r.%s = $1`,
		reset.ID, reset.UserID, reset.Email, reset.Code, reset.ExpiresAt, reset.EmailVerified,
		account.ID, account.Email, account.Username, account.EmailVerified, account.TOTPRegistered,
		reset.Table, account.Table, account.ID, reset.UserID, reset.ID)

	// The unique userid constraint turns the upsert into an atomic supersede.
	resetReplaceQuery = fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (%s) DO UPDATE
		SET %s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = EXCLUDED.%s,
		    %s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = now()`,
		reset.Table, reset.ID, reset.UserID, reset.Email, reset.Code, reset.ExpiresAt, reset.EmailVerified,
		reset.UserID,
		reset.ID, reset.ID, reset.Email, reset.Email, reset.Code, reset.Code,
		reset.ExpiresAt, reset.ExpiresAt, reset.EmailVerified, reset.EmailVerified, reset.CreatedAt)

	verificationReplaceQuery = fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (%s) DO UPDATE
		SET %s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = EXCLUDED.%s,
		    %s = EXCLUDED.%s, %s = now()`,
		verify.Table, verify.ID, verify.UserID, verify.Email, verify.Code, verify.ExpiresAt,
		verify.UserID,
		verify.ID, verify.ID, verify.Email, verify.Email, verify.Code, verify.Code,
		verify.ExpiresAt, verify.ExpiresAt, verify.CreatedAt)
)

// # User Repository

type postgresUsers struct {
	db postgres.DBTX
}

/*
Create persists a new user record into the users.account table.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: apperr Conflict on a duplicate email, or connectivity errors
*/
func (repository postgresUsers) Create(context context.Context, user *User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.Table, account.ID, account.Username, account.Email, account.Password,
		account.EmailVerified, account.TOTPRegistered, account.RecoveryCode, account.CreatedAt, account.UpdatedAt)

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.db.Exec(context, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.EmailVerified,
		user.RegisteredTOTP,
		user.RecoveryCode,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if dberr.IsConflict(err) {
			return dberr.Wrap(err, "creating the account")
		}
		return fmt.Errorf("postgres_user_repo_create_failed: %w", err)
	}

	return nil
}

func (repository postgresUsers) findOne(context context.Context, column, value, tag string) (*User, error) {
	query := userSelect + fmt.Sprintf(" WHERE %s = $1", column)

	user := &User{}
	err := repository.db.QueryRow(context, query, value).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.EmailVerified,
		&user.RegisteredTOTP,
		&user.RecoveryCode,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, tag)
	}

	return user, nil
}

func (repository postgresUsers) FindByID(context context.Context, id string) (*User, error) {
	return repository.findOne(context, account.ID, id, "postgres_user_repo_find_by_id_failed")
}

func (repository postgresUsers) FindByEmail(context context.Context, email string) (*User, error) {
	return repository.findOne(context, account.Email, email, "postgres_user_repo_find_by_email_failed")
}

func (repository postgresUsers) EmailExists(context context.Context, email string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, account.Table, account.Email)

	var exists bool
	if err := repository.db.QueryRow(context, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres_user_repo_email_exists_failed: %w", err)
	}

	return exists, nil
}

func (repository postgresUsers) UpdatePassword(context context.Context, userID, passwordHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = now() WHERE %s = $1`,
		account.Table, account.Password, account.UpdatedAt, account.ID)

	if _, err := repository.db.Exec(context, query, userID, passwordHash); err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}

	return nil
}

/*
UpdateEmailAndSetVerified stores a confirmed email address.

Description: COALESCE keeps the current username when none is supplied, so
both variants are a single statement.

Parameters:
  - context: context.Context
  - userID: string
  - email: string
  - username: string (empty keeps the current one)

Returns:
  - error: Execution errors
*/
func (repository postgresUsers) UpdateEmailAndSetVerified(context context.Context, userID, email, username string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = TRUE, %s = COALESCE(NULLIF($3, ''), %s), %s = now()
		WHERE %s = $1`,
		account.Table, account.Email, account.EmailVerified, account.Username, account.Username,
		account.UpdatedAt, account.ID)

	if _, err := repository.db.Exec(context, query, userID, email, username); err != nil {
		return fmt.Errorf("postgres_user_repo_update_email_failed: %w", err)
	}

	return nil
}

func (repository postgresUsers) UpdateRecoveryCode(context context.Context, userID string, sealed []byte) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = now() WHERE %s = $1`,
		account.Table, account.RecoveryCode, account.UpdatedAt, account.ID)

	if _, err := repository.db.Exec(context, query, userID, sealed); err != nil {
		return fmt.Errorf("postgres_user_repo_update_recovery_code_failed: %w", err)
	}

	return nil
}

func (repository postgresUsers) ClearTOTP(context context.Context, userID string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = FALSE, %s = now() WHERE %s = $1`,
		account.Table, account.TOTPRegistered, account.UpdatedAt, account.ID)

	if _, err := repository.db.Exec(context, query, userID); err != nil {
		return fmt.Errorf("postgres_user_repo_clear_totp_failed: %w", err)
	}

	return nil
}

// # Session Repository

type postgresSessions struct {
	db postgres.DBTX
}

func (repository postgresSessions) Create(context context.Context, record *Session) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s) VALUES ($1, $2, $3, $4)`,
		session.Table, session.ID, session.UserID, session.ExpiresAt, session.TwoFactorVerified)

	_, err := repository.db.Exec(context, query, record.ID, record.UserID, record.ExpiresAt, record.TwoFactorVerified)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindWithUser resolves a session and its owner in a single round trip.

Parameters:
  - context: context.Context
  - id: string (hex SHA-256 of the token)

Returns:
  - *Session, *UserView: Joined pair
  - error: dberr.ErrNotFound or execution errors
*/
func (repository postgresSessions) FindWithUser(context context.Context, id string) (*Session, *UserView, error) {
	record := &Session{}
	user := &UserView{}

	err := repository.db.QueryRow(context, sessionWithUserQuery, id).Scan(
		&record.ID,
		&record.UserID,
		&record.ExpiresAt,
		&record.TwoFactorVerified,
		&user.ID,
		&user.Email,
		&user.Username,
		&user.EmailVerified,
		&user.RegisteredTOTP,
	)
	if err != nil {
		return nil, nil, notFound(err, "postgres_session_repo_find_failed")
	}

	return record, user, nil
}

func (repository postgresSessions) UpdateExpiry(context context.Context, id string, expiresAt time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`, session.Table, session.ExpiresAt, session.ID)

	if _, err := repository.db.Exec(context, query, id, expiresAt); err != nil {
		return fmt.Errorf("postgres_session_repo_update_expiry_failed: %w", err)
	}

	return nil
}

func (repository postgresSessions) SetTwoFactorVerified(context context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = TRUE WHERE %s = $1`, session.Table, session.TwoFactorVerified, session.ID)

	if _, err := repository.db.Exec(context, query, id); err != nil {
		return fmt.Errorf("postgres_session_repo_set_2fa_failed: %w", err)
	}

	return nil
}

func (repository postgresSessions) Delete(context context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, session.Table, session.ID)

	if _, err := repository.db.Exec(context, query, id); err != nil {
		return fmt.Errorf("postgres_session_repo_delete_failed: %w", err)
	}

	return nil
}

func (repository postgresSessions) DeleteByUser(context context.Context, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, session.Table, session.UserID)

	if _, err := repository.db.Exec(context, query, userID); err != nil {
		return fmt.Errorf("postgres_session_repo_delete_by_user_failed: %w", err)
	}

	return nil
}

// # Password Reset Repository

type postgresResets struct {
	db postgres.DBTX
}

func (repository postgresResets) Replace(context context.Context, record *PasswordResetSession) error {
	_, err := repository.db.Exec(context, resetReplaceQuery,
		record.ID,
		record.UserID,
		record.Email,
		record.Code,
		record.ExpiresAt,
		record.EmailVerified,
	)
	if err != nil {
		return fmt.Errorf("postgres_reset_repo_replace_failed: %w", err)
	}

	return nil
}

func (repository postgresResets) FindWithUser(context context.Context, id string) (*PasswordResetSession, *UserView, error) {
	record := &PasswordResetSession{}
	user := &UserView{}

	err := repository.db.QueryRow(context, resetWithUserQuery, id).Scan(
		&record.ID,
		&record.UserID,
		&record.Email,
		&record.Code,
		&record.ExpiresAt,
		&record.EmailVerified,
		&user.ID,
		&user.Email,
		&user.Username,
		&user.EmailVerified,
		&user.RegisteredTOTP,
	)
	if err != nil {
		return nil, nil, notFound(err, "postgres_reset_repo_find_failed")
	}

	return record, user, nil
}

func (repository postgresResets) SetEmailVerified(context context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = TRUE WHERE %s = $1`, reset.Table, reset.EmailVerified, reset.ID)

	if _, err := repository.db.Exec(context, query, id); err != nil {
		return fmt.Errorf("postgres_reset_repo_set_verified_failed: %w", err)
	}

	return nil
}

func (repository postgresResets) Delete(context context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, reset.Table, reset.ID)

	if _, err := repository.db.Exec(context, query, id); err != nil {
		return fmt.Errorf("postgres_reset_repo_delete_failed: %w", err)
	}

	return nil
}

func (repository postgresResets) DeleteByUser(context context.Context, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, reset.Table, reset.UserID)

	if _, err := repository.db.Exec(context, query, userID); err != nil {
		return fmt.Errorf("postgres_reset_repo_delete_by_user_failed: %w", err)
	}

	return nil
}

// # Email Verification Repository

type postgresVerifications struct {
	db postgres.DBTX
}

func (repository postgresVerifications) Replace(context context.Context, request *EmailVerificationRequest) error {
	_, err := repository.db.Exec(context, verificationReplaceQuery,
		request.ID,
		request.UserID,
		request.Email,
		request.Code,
		request.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_verification_repo_replace_failed: %w", err)
	}

	return nil
}

func (repository postgresVerifications) FindForUser(context context.Context, userID, id string) (*EmailVerificationRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s = $2`,
		verify.ID, verify.UserID, verify.Email, verify.Code, verify.ExpiresAt,
		verify.Table, verify.ID, verify.UserID)

	request := &EmailVerificationRequest{}
	err := repository.db.QueryRow(context, query, id, userID).Scan(
		&request.ID,
		&request.UserID,
		&request.Email,
		&request.Code,
		&request.ExpiresAt,
	)
	if err != nil {
		return nil, notFound(err, "postgres_verification_repo_find_failed")
	}

	return request, nil
}

func (repository postgresVerifications) DeleteByUser(context context.Context, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, verify.Table, verify.UserID)

	if _, err := repository.db.Exec(context, query, userID); err != nil {
		return fmt.Errorf("postgres_verification_repo_delete_failed: %w", err)
	}

	return nil
}
