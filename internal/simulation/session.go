// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

// Package simulation holds automata session storage and sharing.
//
// A Session is a named automaton definition owned by one account; a Run is an
// immutable record of one execution of that automaton against an input string.
// The simulator itself runs client-side — this service never executes
// automata, it only stores definitions and results.
package simulation

import (
	"encoding/json"
	"time"

	"github.com/tocsimulator/tocsim/internal/platform/validate"
)

// AutomataType enumerates the kinds of machines a session can hold.
type AutomataType string

const (
	TypeDFA   AutomataType = "DFA"
	TypeNFA   AutomataType = "NFA"
	TypeTM    AutomataType = "TM"
	TypeRegex AutomataType = "REGEX"
)

// AutomataTypes lists all valid machine kinds, in display order.
var AutomataTypes = []string{string(TypeDFA), string(TypeNFA), string(TypeTM), string(TypeRegex)}

// Session represents a stored automaton definition.
//
// ID is the internal UUIDv7 primary key; PublicID is a random UUIDv4 used in
// every URL so that share links never expose creation-time ordering.
type Session struct {
	ID             string         `json:"-"`
	PublicID       string         `json:"id"`
	OwnerID        string         `json:"-"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	AutomataType   AutomataType   `json:"automata_type"`
	Payload        map[string]any `json:"payload"`
	IsShared       bool           `json:"is_shared"`
	IsFavorite     bool           `json:"is_favorite"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`

	// RunCount is a derived column, populated only by list queries.
	RunCount int `json:"run_count"`
}

// SessionDetail is the response shape for a single session, embedding its
// most recent runs.
type SessionDetail struct {
	*Session
	Runs []*Run `json:"runs"`
}

// Run is an immutable record of one automaton execution. Rows are never
// updated or individually deleted; they disappear only with their session.
type Run struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"-"`
	SessionPublicID string          `json:"session_id"`
	InputString     string          `json:"input_string"`
	Accepted        bool            `json:"accepted"`
	ExecutionTimeMS int             `json:"execution_time_ms"`
	Trace           json.RawMessage `json:"trace"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Filter holds the parameters for a paginated session search.
type Filter struct {
	Type     string // exact automata type match
	Favorite *bool  // nil means "don't filter"
	Query    string // substring search over name and description
	OrderBy  string // created|updated|name; empty means last-accessed first
}

// Statistics summarizes an owner's session collection.
type Statistics struct {
	Total     int `json:"total_sessions"`
	Favorites int `json:"favorite_sessions"`
	Shared    int `json:"shared_sessions"`
	Recent    int `json:"recent_sessions"` // created within the last 7 days
}

// Owner is the public-facing identity of a session owner, shown on the
// shared view. It never carries the email address.
type Owner struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SharedView is the response shape for the public share endpoint.
type SharedView struct {
	Session  *Session `json:"session"`
	SharedBy *Owner   `json:"shared_by"`
	IsOwner  bool     `json:"is_owner"`
}

// # Payload Validation

// ValidatePayload checks an automaton payload independently of storage.
//
// Every payload needs a non-empty states list. On creation the client must
// also send the transitions and alphabet keys (they may be empty — an
// automaton under construction is fine, a structurally absent one is not).
func ValidatePayload(payload map[string]any, creating bool) error {
	validator := &validate.Validator{}

	states, hasStates := payload[FieldStates]
	validator.Custom(FieldStates, !hasStates || countElements(states) == 0, "At least one state is required")

	if creating {
		_, hasTransitions := payload[FieldTransitions]
		validator.Custom(FieldTransitions, !hasTransitions, "This field is required")

		_, hasAlphabet := payload[FieldAlphabet]
		validator.Custom(FieldAlphabet, !hasAlphabet, "This field is required")
	}

	return validator.Err()
}

// countElements returns the length of a decoded JSON list, or 0 for anything
// that is not a list.
func countElements(value any) int {
	list, ok := value.([]any)
	if !ok {
		return 0
	}
	return len(list)
}

// # Field Identifiers

const (
	FieldName         = "name"
	FieldDescription  = "description"
	FieldAutomataType = "automata_type"
	FieldPayload      = "payload"
	FieldStates       = "states"
	FieldTransitions  = "transitions"
	FieldAlphabet     = "alphabet"
	FieldInputString  = "input_string"

	// MaxInputStringLength bounds the input string stored with a run.
	MaxInputStringLength = 1000
	// MaxNameLength bounds the session name.
	MaxNameLength = 255
	// RecentRunsLimit caps the runs embedded in a session detail response.
	RecentRunsLimit = 10
	// DefaultRecentDays is the lookback window for the recent-sessions list.
	DefaultRecentDays = 7
)
