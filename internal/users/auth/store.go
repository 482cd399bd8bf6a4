// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

package auth

import (
	"context"
	"time"
)

// # Account Data Access

// AccountRepository defines the data access contract for user accounts.
type AccountRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Account: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*Account, error)

	/*
		FindByEmail returns the account with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *Account: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*Account, error)

	/*
		Create persists a brand-new account to the storage.

		The database enforces email uniqueness; a duplicate surfaces as a
		Conflict error regardless of any pre-check racing.

		Parameters:
		  - context: context.Context
		  - account: *Account

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, account *Account) error

	/*
		Activate flips isactive and isemailverified to true in one statement.

		Parameters:
		  - context: context.Context
		  - accountID: string

		Returns:
		  - error: Persistence failures
	*/
	Activate(context context.Context, accountID string) error

	/*
		Delete removes the account and its verification codes in a single
		transaction (codes first, then the account row).

		Used as the compensating action when verification-code delivery fails
		during registration.

		Parameters:
		  - context: context.Context
		  - accountID: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, accountID string) error
}

// # Verification Code Data Access

// VerificationCodeRepository defines the data access contract for
// email verification codes.
type VerificationCodeRepository interface {

	/*
		Create persists a freshly minted verification code.

		Parameters:
		  - context: context.Context
		  - code: *VerificationCode

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, code *VerificationCode) error

	/*
		Consume atomically marks the most recent matching unused, unexpired
		code for the account as used.

		The update is a single conditional statement so that two concurrent
		attempts with the same code can never both succeed.

		Parameters:
		  - context: context.Context
		  - accountID: string
		  - code: string (the literal characters the user typed)

		Returns:
		  - error: apperr.BadRequest when no code matched (invalid, expired,
		    or already used — deliberately indistinguishable), otherwise
		    persistence failures
	*/
	Consume(context context.Context, accountID, code string) error
}

// # Volatile Credential Access

// RefreshTokenRepository defines the contract for the volatile refresh-token
// credential store (Redis).
//
// Tokens are stored by their SHA-256 hash; the raw value exists only in the
// client's cookie.
type RefreshTokenRepository interface {

	/*
		Set stores a refresh-token hash for an account with the given TTL.

		Parameters:
		  - context: context.Context
		  - tokenHash: string
		  - accountID: string
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, tokenHash string, accountID string, ttl time.Duration) error

	/*
		Get retrieves the accountID associated with a refresh-token hash.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - string: AccountID
		  - error: apperr.Unauthorized when the token is unknown or expired
	*/
	Get(context context.Context, tokenHash string) (string, error)

	/*
		Delete removes a refresh-token hash after rotation or logout.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, tokenHash string) error
}
