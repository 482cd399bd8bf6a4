// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

/*
Package auth implements the user identity and account lifecycle layer.

It defines the core domain entities (Account, VerificationCode) and logic for
registration, email verification, and credential issuing.

# Architecture

This layer is the "Truth" of the system. Entities defined here have no external
dependencies and encapsulate all business rules related to user identity.

# Lifecycle

An account is created inactive. It becomes active exactly once: when its
owner consumes a valid verification code. No credential-issuing operation
ever succeeds for an inactive account.
*/
package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/tocsimulator/tocsim/pkg/uuid"
)

// # Domain Entities

// Account represents a registered member of the TOC Simulator platform.
type Account struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	PasswordHash    string    `json:"-"` // Explicitly omitted from JSON for security.
	IsActive        bool      `json:"is_active"`
	IsEmailVerified bool      `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DisplayName returns the human-readable name used in emails and share metadata.
func (account *Account) DisplayName() string {
	return account.FirstName + " " + account.LastName
}

// VerificationCode is a time-boxed, single-use code mailed to an account's
// email address. Rows are kept after use as an audit trail; they are removed
// only when the owning account is deleted.
type VerificationCode struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Code      string    `json:"-"` // Never serialized; delivered via email only.
	IsUsed    bool      `json:"is_used"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the code's validity window has passed.
func (code *VerificationCode) IsExpired(now time.Time) bool {
	return !now.Before(code.ExpiresAt)
}

// AccountSummary is the client-facing projection of an account, returned
// alongside issued credentials.
type AccountSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Summary builds the client-facing projection of the account.
func (account *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:        account.ID,
		Email:     account.Email,
		Username:  account.Username,
		FirstName: account.FirstName,
		LastName:  account.LastName,
	}
}

// # Code Generation

// newVerificationCode mints a fresh code for the account, drawn uniformly
// from [CodeAlphabet] using crypto/rand.
func newVerificationCode(accountID string, now time.Time) (*VerificationCode, error) {
	chars := make([]byte, CodeLength)
	alphabetSize := big.NewInt(int64(len(CodeAlphabet)))

	for i := range chars {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return nil, fmt.Errorf("auth_code_generation_failed: %w", err)
		}
		chars[i] = CodeAlphabet[n.Int64()]
	}

	return &VerificationCode{
		ID:        uuid.New(),
		AccountID: accountID,
		Code:      string(chars),
		IsUsed:    false,
		ExpiresAt: now.Add(CodeTTL),
		CreatedAt: now,
	}, nil
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail           = "email"
	FieldUsername        = "username"
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldPassword        = "password"
	FieldPasswordConfirm = "password_confirm"
	FieldCode            = "code"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
	FieldUser            = "user"
	FieldMessage         = "message"
)
