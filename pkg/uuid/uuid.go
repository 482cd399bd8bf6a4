// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

/*
Package uuid provides unique identifiers for the platform.

It wraps the standard UUID library to generate Version 7 values for primary
keys (time-sortable, B-tree friendly in PostgreSQL) and Version 4 values for
public share identifiers, where ordering must NOT leak creation time.

Advantages:

  - Sortable: V7 is naturally ordered by creation time (millisecond precision).
  - Friendly: Prevents index fragmentation in PostgreSQL (B-tree optimal).
  - Opaque: V4 carries no timestamp, safe to expose in share URLs.
*/
package uuid

import "github.com/google/uuid"

// # Generators

// New generates a new UUIDv7 string.
func New() string {

	// Create a new version 7 UUID (time-sortable)
	id, err := uuid.NewV7()

	// entropy failure is an unrecoverable system-level error
	if err != nil {
		panic("uuid: failed to generate UUID: " + err.Error())
	}

	// Convert the UUID to a string
	return id.String()
}

// Random generates a new UUIDv4 string.
//
// Used for externally visible identifiers (public session IDs) where the
// embedded V7 timestamp would leak creation time.
func Random() string {
	return uuid.New().String()
}
