// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

package simulation

import (
	"context"
	"time"
)

// SessionRepository is the storage contract for automaton sessions.
//
// List, Statistics and lookups by public ID are owner-agnostic only where the
// method says so; everything else is scoped to a single owner at the SQL
// level so that filtering can never be forgotten in a service method.
type SessionRepository interface {
	List(context context.Context, ownerID string, filter Filter, limit, offset int) ([]*Session, int, error)
	// ListRecent returns sessions last accessed at or after the cutoff,
	// most recently accessed first.
	ListRecent(context context.Context, ownerID string, since time.Time, limit, offset int) ([]*Session, int, error)
	FindByPublicID(context context.Context, publicID string) (*Session, error)
	Create(context context.Context, session *Session) error
	Update(context context.Context, session *Session) error
	// Delete removes the session and its runs in one transaction (runs first).
	Delete(context context.Context, sessionID string) error
	TouchLastAccessed(context context.Context, sessionID string) error
	Statistics(context context.Context, ownerID string) (*Statistics, error)
	// OwnerSummary resolves the owner's public identity for the shared view.
	OwnerSummary(context context.Context, ownerID string) (*Owner, error)
}

// RunRepository is the storage contract for immutable run records.
type RunRepository interface {
	Create(context context.Context, run *Run) error
	ListByOwner(context context.Context, ownerID string, limit, offset int) ([]*Run, int, error)
	// ListBySession returns the newest runs of one session, up to limit.
	ListBySession(context context.Context, sessionID string, limit int) ([]*Run, error)
}
