// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

// PostgreSQL implementations of the auth storage contracts.
//
// # Architecture
//
// Repositories here are strictly separated from domain logic. They implement
// domain-defined interfaces (e.g., [AccountRepository]) using the
// [pgxpool.Pool] connection manager.
//
// # err Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tocsimulator/tocsim/internal/platform/apperr"
	"github.com/tocsimulator/tocsim/internal/platform/dberr"
)

// # Account Repository

// PostgresAccountRepository implements the AccountRepository interface using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

/*
Create persists a new account record into the users.account table.

Description: Deep-persists account metadata, ensuring timestamps are initialized
if not provided. The unique constraint on email backs the service-level
duplicate pre-check against concurrent registrations.

Parameters:
  - context: context.Context
  - account: *Account (Entity to persist)

Returns:
  - error: apperr.Conflict on a duplicate email, or connectivity errors
*/
func (repository *PostgresAccountRepository) Create(context context.Context, account *Account) error {
	const query = `
		INSERT INTO users.account (
			id, email, username, firstname, lastname, passwordhash, isactive, isemailverified, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		account.ID,
		account.Email,
		account.Username,
		account.FirstName,
		account.LastName,
		account.PasswordHash,
		account.IsActive,
		account.IsEmailVerified,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("Email is already registered")
		}
		return fmt.Errorf("postgres_account_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByEmail retrieves an account record by its unique email address.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Account: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresAccountRepository) FindByEmail(context context.Context, email string) (*Account, error) {
	const query = `
		SELECT id, email, username, firstname, lastname, passwordhash, isactive, isemailverified, createdat, updatedat
		FROM users.account
		WHERE email = $1`

	account := &Account{}
	err := repository.pool.QueryRow(context, query, email).Scan(
		&account.ID,
		&account.Email,
		&account.Username,
		&account.FirstName,
		&account.LastName,
		&account.PasswordHash,
		&account.IsActive,
		&account.IsEmailVerified,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_email_failed: %w", err)
	}

	return account, nil
}

/*
FindByID retrieves an account record by its unique ID.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *Account: Hydrated account entity
  - error: Not found or execution errors
*/
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*Account, error) {
	const query = `
		SELECT id, email, username, firstname, lastname, passwordhash, isactive, isemailverified, createdat, updatedat
		FROM users.account
		WHERE id = $1`

	account := &Account{}
	err := repository.pool.QueryRow(context, query, id).Scan(
		&account.ID,
		&account.Email,
		&account.Username,
		&account.FirstName,
		&account.LastName,
		&account.PasswordHash,
		&account.IsActive,
		&account.IsEmailVerified,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_id_failed: %w", err)
	}

	return account, nil
}

/*
Activate flips the account to active and email-verified in one statement.

Parameters:
  - context: context.Context
  - accountID: string

Returns:
  - error: Database errors
*/
func (repository *PostgresAccountRepository) Activate(context context.Context, accountID string) error {
	const query = `
		UPDATE users.account
		SET isactive = TRUE, isemailverified = TRUE, updatedat = $2
		WHERE id = $1`

	_, err := repository.pool.Exec(context, query, accountID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_activate_failed: %w", err)
	}
	return nil
}

/*
Delete removes the account and all of its verification codes.

Description: The cascade is explicit — codes are removed first, then the
account row, inside a single transaction. No FK ON DELETE trigger is relied
upon, so the dependency order is visible right here.

Parameters:
  - context: context.Context
  - accountID: string

Returns:
  - error: Transaction failures
*/
func (repository *PostgresAccountRepository) Delete(context context.Context, accountID string) error {
	tx, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_delete_begin_failed: %w", err)
	}
	defer func() { _ = tx.Rollback(context) }()

	// Children first: verification codes reference the account.
	if _, err := tx.Exec(context, "DELETE FROM users.verificationcode WHERE accountid = $1", accountID); err != nil {
		return fmt.Errorf("postgres_account_repo_delete_codes_failed: %w", err)
	}

	if _, err := tx.Exec(context, "DELETE FROM users.account WHERE id = $1", accountID); err != nil {
		return fmt.Errorf("postgres_account_repo_delete_failed: %w", err)
	}

	if err := tx.Commit(context); err != nil {
		return fmt.Errorf("postgres_account_repo_delete_commit_failed: %w", err)
	}

	return nil
}

// # Verification Code Repository

// PostgresCodeRepository implements the VerificationCodeRepository interface.
type PostgresCodeRepository struct {
	pool *pgxpool.Pool
}

// NewCodeRepository creates a new PostgreSQL implementation of VerificationCodeRepository.
func NewCodeRepository(pool *pgxpool.Pool) *PostgresCodeRepository {
	return &PostgresCodeRepository{pool: pool}
}

/*
Create persists a freshly minted verification code.

Parameters:
  - context: context.Context
  - code: *VerificationCode

Returns:
  - error: Storage failures
*/
func (repository *PostgresCodeRepository) Create(context context.Context, code *VerificationCode) error {
	const query = `
		INSERT INTO users.verificationcode (
			id, accountid, code, isused, expiresat, createdat
		) VALUES ($1, $2, $3, $4, $5, $6)`

	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		code.ID,
		code.AccountID,
		code.Code,
		code.IsUsed,
		code.ExpiresAt,
		code.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_code_repo_create_failed: %w", err)
	}

	return nil
}

/*
Consume atomically marks the most recent matching unused, unexpired code as used.

Description: A single conditional UPDATE over a sub-select. The sub-select
picks the newest candidate row; the outer isused = FALSE guard is the
compare-and-set that makes concurrent consumption exactly-once. Zero rows
affected means the code was wrong, expired, or already used — the three
cases are deliberately indistinguishable to the caller.

Parameters:
  - context: context.Context
  - accountID: string
  - code: string

Returns:
  - error: apperr.BadRequest when no row matched, or execution errors
*/
func (repository *PostgresCodeRepository) Consume(context context.Context, accountID, code string) error {
	const query = `
		UPDATE users.verificationcode
		SET isused = TRUE
		WHERE id = (
			SELECT id FROM users.verificationcode
			WHERE accountid = $1 AND code = $2 AND isused = FALSE AND expiresat > NOW()
			ORDER BY createdat DESC
			LIMIT 1
		) AND isused = FALSE`

	tag, err := repository.pool.Exec(context, query, accountID, code)
	if err != nil {
		return fmt.Errorf("postgres_code_repo_consume_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.BadRequest("INVALID_CODE", "Invalid or expired verification code")
	}

	return nil
}
