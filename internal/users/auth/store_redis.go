// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tocsimulator/tocsim/internal/platform/apperr"
	"github.com/tocsimulator/tocsim/internal/platform/constants"
)

// # Refresh Token Repository

// RedisRefreshTokenRepository implements RefreshTokenRepository using Redis.
//
// Keys carry the token's SHA-256 hash, never the raw token, so a Redis dump
// alone cannot be replayed against the API.
type RedisRefreshTokenRepository struct {
	client *redis.Client
}

// NewRefreshTokenRepository creates a new Redis-backed RefreshTokenRepository.
func NewRefreshTokenRepository(client *redis.Client) *RedisRefreshTokenRepository {
	return &RedisRefreshTokenRepository{client: client}
}

/*
Set stores a refresh-token hash with its associated accountID and TTL.

Parameters:
  - context: context.Context
  - tokenHash: string
  - accountID: string
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (repository *RedisRefreshTokenRepository) Set(context context.Context, tokenHash string, accountID string, ttl time.Duration) error {

	// Use constants for key prefix
	key := fmt.Sprintf("%s%s", constants.RedisPrefixRefreshToken, tokenHash)

	// Set the token with TTL so revocation is automatic on expiry
	if err := repository.client.Set(context, key, accountID, ttl).Err(); err != nil {
		return fmt.Errorf("redis_refresh_token_set_failed: %w", err)
	}

	// Return nil on success
	return nil
}

/*
Get retrieves the accountID for a given token hash.

Description: Returns apperr.Unauthorized if the token is absent or expired.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - string: Original AccountID
  - error: apperr.Unauthorized or connectivity errors
*/
func (repository *RedisRefreshTokenRepository) Get(context context.Context, tokenHash string) (string, error) {

	// Use constants for key prefix
	key := fmt.Sprintf("%s%s", constants.RedisPrefixRefreshToken, tokenHash)

	// Get the token from Redis
	accountID, err := repository.client.Get(context, key).Result()

	// Handle errors
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.Unauthorized("Refresh token is invalid or expired")
		}
		return "", fmt.Errorf("redis_refresh_token_get_failed: %w", err)
	}

	// Return the accountID
	return accountID, nil
}

/*
Delete removes the token hash from Redis.

Description: Deleting a missing key is a no-op in Redis, which makes logout
idempotent for free.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - error: Deletion failures
*/
func (repository *RedisRefreshTokenRepository) Delete(context context.Context, tokenHash string) error {

	// Use constants for key prefix
	key := fmt.Sprintf("%s%s", constants.RedisPrefixRefreshToken, tokenHash)

	// Delete the token from Redis
	if err := repository.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_refresh_token_delete_failed: %w", err)
	}

	// Return nil on success
	return nil
}
