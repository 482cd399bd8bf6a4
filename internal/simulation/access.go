// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

package simulation

// Operation enumerates the actions an actor can attempt on a session.
type Operation string

const (
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpShare  Operation = "share"
)

// Decision is the outcome of an authorization check. Reason is for logs and
// error messages, never for branching.
type Decision struct {
	Allowed bool
	Reason  string
}

// Authorize decides whether an actor may perform an operation on a session.
//
// Rules, in order:
//  1. The owner may do anything.
//  2. A shared session may be read by anyone, including anonymous actors
//     (actorID == "").
//  3. Everything else is denied.
//
// All session access paths must flow through this function — handlers and
// services never compare OwnerID directly.
func Authorize(actorID string, session *Session, op Operation) Decision {
	if actorID != "" && actorID == session.OwnerID {
		return Decision{Allowed: true, Reason: "owner"}
	}

	if session.IsShared && op == OpRead {
		return Decision{Allowed: true, Reason: "shared read"}
	}

	return Decision{Allowed: false, Reason: "not owner"}
}
