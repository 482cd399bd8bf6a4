// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	private := &Session{ID: "s1", PublicID: "pub-1", OwnerID: "owner-1"}
	shared := &Session{ID: "s2", PublicID: "pub-2", OwnerID: "owner-1", IsShared: true}

	allOps := []Operation{OpRead, OpUpdate, OpDelete, OpShare}

	tests := []struct {
		name    string
		actorID string
		session *Session
		op      Operation
		allowed bool
	}{
		{"owner_reads_private", "owner-1", private, OpRead, true},
		{"owner_updates_private", "owner-1", private, OpUpdate, true},
		{"owner_deletes_private", "owner-1", private, OpDelete, true},
		{"owner_shares_private", "owner-1", private, OpShare, true},

		{"stranger_reads_private", "other-1", private, OpRead, false},
		{"stranger_updates_private", "other-1", private, OpUpdate, false},
		{"anonymous_reads_private", "", private, OpRead, false},

		{"stranger_reads_shared", "other-1", shared, OpRead, true},
		{"anonymous_reads_shared", "", shared, OpRead, true},

		{"stranger_updates_shared", "other-1", shared, OpUpdate, false},
		{"stranger_deletes_shared", "other-1", shared, OpDelete, false},
		{"stranger_shares_shared", "other-1", shared, OpShare, false},
		{"anonymous_updates_shared", "", shared, OpUpdate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Authorize(tt.actorID, tt.session, tt.op)
			assert.Equal(t, tt.allowed, decision.Allowed)
		})
	}

	// An empty actor ID never matches an owner, even a hypothetical empty one.
	t.Run("empty_owner_never_matches_anonymous", func(t *testing.T) {
		orphan := &Session{ID: "s3", OwnerID: ""}
		for _, op := range allOps {
			assert.False(t, Authorize("", orphan, op).Allowed)
		}
	})
}
