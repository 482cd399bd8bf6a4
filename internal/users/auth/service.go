// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

/*
Package auth implements the core identity and access management (IAM) system.

It handles registration with mandatory email verification, secure password
hashing, and credential lifecycle management via JWT and Refresh tokens
(stored in Redis).

Architecture:

  - Service: Orchestrates business logic (Register, VerifyEmail, Login).
  - Repository: Abstracted interfaces for Postgres (Accounts, Codes) and Redis (Tokens).
  - Security: Leverages Bcrypt hashing and RSA-signed JWTs.

The package ensures that no credential is ever issued to an account whose
email has not been verified.
*/
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tocsimulator/tocsim/internal/platform/apperr"
	"github.com/tocsimulator/tocsim/internal/platform/ctxutil"
	"github.com/tocsimulator/tocsim/internal/platform/sec"
	"github.com/tocsimulator/tocsim/pkg/uuid"
)

// # Contracts & Types

// TokenProvider defines the contract for generating security tokens.
type TokenProvider interface {
	// GenerateAccessToken creates a signed JWT string for the given account.
	//
	// # Parameters
	//   - userID: The ID of the account.
	//   - email: The email of the account.
	//   - username: The username of the account.
	//   - timeToLive: The duration before the token expires.
	//
	// # Returns
	//   - A signed JWT string, or an err if signing fails.
	GenerateAccessToken(userID, email, username string, timeToLive time.Duration) (string, error)
}

// Notifier defines the contract for delivering verification codes.
//
// Implementations report success as a boolean and never surface provider
// error details; the service decides how to react to a failed delivery.
type Notifier interface {
	SendVerification(context context.Context, email, displayName, code string) bool
}

// Service implements account authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, verification,
// or login logic must be reviewed by the security team.
type Service struct {
	accountRepository AccountRepository
	codeRepository    VerificationCodeRepository
	tokenRepository   RefreshTokenRepository
	tokenProvider     TokenProvider
	notifier          Notifier
}

// NewService constructs a new auth [Service] with necessary dependencies.
func NewService(
	accountRepo AccountRepository,
	codeRepo VerificationCodeRepository,
	tokenRepo RefreshTokenRepository,
	tokenProv TokenProvider,
	notifier Notifier,
) *Service {
	return &Service{
		accountRepository: accountRepo,
		codeRepository:    codeRepo,
		tokenRepository:   tokenRepo,
		tokenProvider:     tokenProv,
		notifier:          notifier,
	}
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

/*
Register creates an inactive account and mails it a verification code.

Description: Hashes the password, persists the account with isactive=false,
mints a time-boxed code, and delivers it via the Notifier. If delivery fails,
the freshly created account is rolled back (compensating delete) so the user
can re-register with the same email immediately.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *Account: Created entity (inactive)
  - err: Conflict (if email exists), DeliveryFailed, or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*Account, error) {

	// Verify email uniqueness. Return a client-safe Conflict err.
	// The database unique constraint backs this check against races.
	_, err := service.accountRepository.FindByEmail(context, input.Email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// Prevent storing plain-text passwords. Default cost is used for balance
	// between security and CPU utilization during registration spikes.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Construct the new Account entity. Time-sortable ID to prevent PG index fragmentation.
	account := &Account{
		ID:              uuid.New(),
		Email:           input.Email,
		Username:        input.Username,
		FirstName:       input.FirstName,
		LastName:        input.LastName,
		PasswordHash:    hashedPassword,
		IsActive:        false,
		IsEmailVerified: false,
	}

	// Persist the account to the database
	if err := service.accountRepository.Create(context, account); err != nil {
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	// Mint and persist the verification code
	code, err := newVerificationCode(account.ID, time.Now())
	if err != nil {
		_ = service.accountRepository.Delete(context, account.ID)
		return nil, fmt.Errorf("auth_service_code_mint_failed: %w", err)
	}

	if err := service.codeRepository.Create(context, code); err != nil {
		_ = service.accountRepository.Delete(context, account.ID)
		return nil, fmt.Errorf("auth_service_code_store_failed: %w", err)
	}

	// Deliver the code. An account whose owner never received a code is
	// unreachable dead weight, so a failed delivery rolls everything back.
	if !service.notifier.SendVerification(context, account.Email, account.DisplayName(), code.Code) {
		if err := service.accountRepository.Delete(context, account.ID); err != nil {
			ctxutil.GetLogger(context).ErrorContext(context, "auth_register_rollback_failed",
				slog.String("account_id", account.ID),
				slog.Any("error", err),
			)
		}
		return nil, apperr.DeliveryFailed("Failed to send verification email. Please try again.")
	}

	ctxutil.GetLogger(context).InfoContext(context, "auth_account_registered",
		slog.String("account_id", account.ID),
	)

	return account, nil
}

// # Verification Flow

// Credential represents a successfully issued token pair.
type Credential struct {
	AccessToken           string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	Account               *Account
}

/*
VerifyEmail consumes a verification code and activates the account.

Description: Resolves the account by email, atomically marks the most recent
matching unused, unexpired code as used (exactly-once under concurrency),
flips the account to active+verified, and issues the first credential pair.

A code that is wrong, expired, or already used produces the same error:
the caller cannot distinguish the three cases.

Parameters:
  - context: context.Context
  - email: string
  - code: string

Returns:
  - *Credential: Access + refresh token pair with the account summary
  - err: NotFound, BadRequest (code rejected), or storage failures
*/
func (service *Service) VerifyEmail(context context.Context, email, code string) (*Credential, error) {

	// Resolve the account first. A missing account is a plain NotFound.
	account, err := service.accountRepository.FindByEmail(context, email)
	if err != nil {
		return nil, err
	}

	// Atomic consume: the repository guarantees at most one caller wins.
	if err := service.codeRepository.Consume(context, account.ID, code); err != nil {
		return nil, err
	}

	// Activate the account (idempotent if already active).
	if err := service.accountRepository.Activate(context, account.ID); err != nil {
		return nil, fmt.Errorf("auth_service_activate_failed: %w", err)
	}
	account.IsActive = true
	account.IsEmailVerified = true

	ctxutil.GetLogger(context).InfoContext(context, "auth_account_verified",
		slog.String("account_id", account.ID),
	)

	// First credential pair: the user is logged in right after verifying.
	return service.issueCredential(context, account)
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
}

/*
Login validates account credentials and issues security tokens.

Description: Verifies identity with a constant-time password comparison and
rejects accounts that have not completed email verification.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *Credential: Transport-ready token pair
  - err: Unauthorized, Forbidden (unverified), or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*Credential, error) {

	// If (err != nil) the account does not exist. Generic message to prevent enumeration.
	account, err := service.accountRepository.FindByEmail(context, input.Email)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	// Verify password hash using constant-time comparison in bcrypt to prevent timing attacks
	if !sec.CheckPasswordHash(input.Password, account.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	// Inactive accounts hold no credential-issuing privileges whatsoever.
	if !account.IsActive {
		return nil, apperr.Forbidden("Email not verified. Please verify your email first.")
	}

	return service.issueCredential(context, account)
}

/*
Refresh implements the Refresh Token Rotation mechanism.

Description: Verifies the existing refresh token, deletes it to prevent reuse
(replay attack mitigation), and issues a fresh pair of rotated tokens.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - *Credential: New token pair
  - err: Unauthorized or storage failures
*/
func (service *Service) Refresh(context context.Context, refreshToken string) (*Credential, error) {

	// Hash the incoming refresh token to look it up
	tokenHash := sec.HashToken(refreshToken)
	accountID, err := service.tokenRepository.Get(context, tokenHash)

	// If (err != nil) the token is either expired, already rotated, or completely invalid.
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}

	// Rotation: remove the old token to prevent replay attacks
	if err := service.tokenRepository.Delete(context, tokenHash); err != nil {
		return nil, fmt.Errorf("auth_service_refresh_rotate_failed: %w", err)
	}

	// Fetch the account associated with this token
	account, err := service.accountRepository.FindByID(context, accountID)
	if err != nil {
		return nil, apperr.Unauthorized("Account not found or suspended")
	}

	// An account deactivated after login must not be able to refresh.
	if !account.IsActive {
		return nil, apperr.Forbidden("Email not verified. Please verify your email first.")
	}

	return service.issueCredential(context, account)
}

/*
Logout permanently revokes the caller's refresh token.

Description: Ensures that a tracked refresh token can never be used again.
Unknown or already-revoked tokens are treated as success (idempotent).

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - err: Revocation failures
*/
func (service *Service) Logout(context context.Context, refreshToken string) error {

	// Hash the refresh token
	tokenHash := sec.HashToken(refreshToken)

	// If the token is already gone, logout is still a success (idempotent operation).
	if err := service.tokenRepository.Delete(context, tokenHash); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	return nil
}

// # Credential Issuing

// issueCredential generates the access/refresh token pair for an active account.
func (service *Service) issueCredential(context context.Context, account *Account) (*Credential, error) {

	// Generate short-lived Access Token
	accessToken, err := service.tokenProvider.GenerateAccessToken(account.ID, account.Email, account.Username, AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	// Generate long-lived Refresh Token
	refreshToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	// Persist the hashed refresh token with its TTL
	expiresAt := time.Now().Add(RefreshTokenTTL)
	if err := service.tokenRepository.Set(context, sec.HashToken(refreshToken), account.ID, RefreshTokenTTL); err != nil {
		return nil, fmt.Errorf("auth_service_credential_store_failed: %w", err)
	}

	return &Credential{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: expiresAt,
		Account:               account,
	}, nil
}
