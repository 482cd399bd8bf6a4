// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

package auth

import "time"

// # Authentication Constraints

const (
	// AccessTokenTTL is the duration a JWT access token remains valid.
	// We keep it short (15m) to minimize the impact of a leaked token.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL is the duration a refresh token remains valid.
	// Long-lived (30 days) to provide a good user experience.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// RefreshTokenLength is the byte length of the random secure token.
	RefreshTokenLength = 32

	// CodeTTL is the duration an email verification code remains valid.
	// The verification email states the same window.
	CodeTTL = 10 * time.Minute

	// CodeLength is the number of characters in a verification code.
	CodeLength = 6

	// CodeAlphabet is the character set codes are drawn from. Ambiguous
	// glyphs (0/O, 1/I) are excluded so codes survive manual typing.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)
