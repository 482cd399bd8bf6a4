// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/tocsimulator/tocsim/internal/platform/apperr"
	"github.com/tocsimulator/tocsim/internal/platform/dberr"
	"github.com/tocsimulator/tocsim/internal/platform/validate"
	"github.com/tocsimulator/tocsim/pkg/uuid"
)

type Service struct {
	sessions SessionRepository
	runs     RunRepository
	logger   *slog.Logger
}

func NewService(sessions SessionRepository, runs RunRepository, logger *slog.Logger) *Service {
	return &Service{
		sessions: sessions,
		runs:     runs,
		logger:   logger,
	}
}

// resolve fetches a session by public ID and authorizes the operation.
//
// A denied read is reported as NotFound so private sessions are not
// observable; a denied write on a readable session is a plain Forbidden.
func (service *Service) resolve(context context.Context, actorID, publicID string, op Operation) (*Session, error) {
	session, err := service.sessions.FindByPublicID(context, publicID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, apperr.NotFound("Session")
		}
		return nil, err
	}

	if decision := Authorize(actorID, session, op); !decision.Allowed {
		if readable := Authorize(actorID, session, OpRead); !readable.Allowed {
			return nil, apperr.NotFound("Session")
		}
		return nil, apperr.Forbidden("You do not have permission to modify this session")
	}

	return session, nil
}

// # Session CRUD

func (service *Service) List(context context.Context, ownerID string, filter Filter, limit, offset int) ([]*Session, int, error) {
	return service.sessions.List(context, ownerID, filter, limit, offset)
}

func (service *Service) Get(context context.Context, actorID, publicID string) (*SessionDetail, error) {
	session, err := service.resolve(context, actorID, publicID, OpRead)
	if err != nil {
		return nil, err
	}

	// Opening a session counts as using it, but only for its owner:
	// last-accessed drives the owner's default list ordering.
	if actorID == session.OwnerID {
		if err := service.sessions.TouchLastAccessed(context, session.ID); err == nil {
			session.LastAccessedAt = time.Now()
		}
	}

	runs, err := service.runs.ListBySession(context, session.ID, RecentRunsLimit)
	if err != nil {
		return nil, err
	}

	return &SessionDetail{Session: session, Runs: runs}, nil
}

// ListRecent returns the actor's sessions used within the lookback window,
// most recently accessed first.
func (service *Service) ListRecent(context context.Context, ownerID string, days, limit, offset int) ([]*Session, int, error) {
	if days <= 0 {
		days = DefaultRecentDays
	}
	since := time.Now().AddDate(0, 0, -days)
	return service.sessions.ListRecent(context, ownerID, since, limit, offset)
}

type CreateInput struct {
	Name         string
	Description  string
	AutomataType string
	Payload      map[string]any
}

func (service *Service) Create(context context.Context, ownerID string, input CreateInput) (*Session, error) {
	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).
		MaxLen(FieldName, input.Name, MaxNameLength).
		Required(FieldAutomataType, input.AutomataType).
		OneOf(FieldAutomataType, input.AutomataType, AutomataTypes...).
		Custom(FieldPayload, input.Payload == nil, "This field is required")

	if err := validator.Err(); err != nil {
		return nil, err
	}

	if err := ValidatePayload(input.Payload, true); err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:             uuid.New(),
		PublicID:       uuid.Random(),
		OwnerID:        ownerID,
		Name:           input.Name,
		Description:    input.Description,
		AutomataType:   AutomataType(input.AutomataType),
		Payload:        input.Payload,
		IsShared:       false,
		IsFavorite:     false,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}

	if err := service.sessions.Create(context, session); err != nil {
		return nil, err
	}

	service.logger.Info("session_created",
		slog.String("session_id", session.PublicID),
		slog.String("owner_id", ownerID),
		slog.String("type", input.AutomataType),
	)
	return session, nil
}

type UpdateInput struct {
	Name         *string
	Description  *string
	AutomataType *string
	Payload      map[string]any
}

func (service *Service) Update(context context.Context, actorID, publicID string, input UpdateInput) (*Session, error) {
	session, err := service.resolve(context, actorID, publicID, OpUpdate)
	if err != nil {
		return nil, err
	}

	// Collect the changed field set for the audit log.
	var changed []string

	if input.Name != nil && *input.Name != session.Name {
		validator := &validate.Validator{}
		validator.Required(FieldName, *input.Name).MaxLen(FieldName, *input.Name, MaxNameLength)
		if err := validator.Err(); err != nil {
			return nil, err
		}
		session.Name = *input.Name
		changed = append(changed, FieldName)
	}

	if input.Description != nil && *input.Description != session.Description {
		session.Description = *input.Description
		changed = append(changed, FieldDescription)
	}

	if input.AutomataType != nil && *input.AutomataType != string(session.AutomataType) {
		validator := &validate.Validator{}
		validator.OneOf(FieldAutomataType, *input.AutomataType, AutomataTypes...)
		if err := validator.Err(); err != nil {
			return nil, err
		}
		session.AutomataType = AutomataType(*input.AutomataType)
		changed = append(changed, FieldAutomataType)
	}

	if input.Payload != nil {
		if err := ValidatePayload(input.Payload, false); err != nil {
			return nil, err
		}
		session.Payload = input.Payload
		changed = append(changed, FieldPayload)
	}

	if len(changed) == 0 {
		return session, nil
	}

	if err := service.sessions.Update(context, session); err != nil {
		return nil, err
	}

	service.logger.Info("session_updated",
		slog.String("session_id", session.PublicID),
		slog.Any("changed_fields", changed),
	)
	return session, nil
}

func (service *Service) Delete(context context.Context, actorID, publicID string) error {
	session, err := service.resolve(context, actorID, publicID, OpDelete)
	if err != nil {
		return err
	}

	if err := service.sessions.Delete(context, session.ID); err != nil {
		return err
	}

	service.logger.Warn("session_deleted",
		slog.String("session_id", session.PublicID),
		slog.String("owner_id", session.OwnerID),
	)
	return nil
}

// # Duplication

// Duplicate clones a readable session into the actor's own collection.
// The copy gets a fresh public ID and starts unshared and unfavorited,
// regardless of the source's flags.
func (service *Service) Duplicate(context context.Context, actorID, publicID, name string) (*Session, error) {
	source, err := service.resolve(context, actorID, publicID, OpRead)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = source.Name + " (Copy)"
	}

	now := time.Now()
	copySession := &Session{
		ID:             uuid.New(),
		PublicID:       uuid.Random(),
		OwnerID:        actorID,
		Name:           name,
		Description:    source.Description,
		AutomataType:   source.AutomataType,
		Payload:        source.Payload,
		IsShared:       false,
		IsFavorite:     false,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}

	if err := service.sessions.Create(context, copySession); err != nil {
		return nil, err
	}

	service.logger.Info("session_duplicated",
		slog.String("source_id", source.PublicID),
		slog.String("session_id", copySession.PublicID),
	)
	return copySession, nil
}

// # Runs

type SaveRunInput struct {
	InputString     string
	Accepted        bool
	ExecutionTimeMS int
	Trace           json.RawMessage
}

func (service *Service) SaveRun(context context.Context, actorID, publicID string, input SaveRunInput) (*Run, error) {
	session, err := service.resolve(context, actorID, publicID, OpUpdate)
	if err != nil {
		return nil, err
	}

	validator := &validate.Validator{}
	validator.MaxLen(FieldInputString, input.InputString, MaxInputStringLength).
		Custom("execution_time_ms", input.ExecutionTimeMS < 0, "Must not be negative")

	if err := validator.Err(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:              uuid.New(),
		SessionID:       session.ID,
		SessionPublicID: session.PublicID,
		InputString:     input.InputString,
		Accepted:        input.Accepted,
		ExecutionTimeMS: input.ExecutionTimeMS,
		Trace:           input.Trace,
		CreatedAt:       time.Now(),
	}

	if err := service.runs.Create(context, run); err != nil {
		return nil, err
	}

	// Running the automaton counts as using the session.
	_ = service.sessions.TouchLastAccessed(context, session.ID)

	return run, nil
}

func (service *Service) ListRuns(context context.Context, ownerID string, limit, offset int) ([]*Run, int, error) {
	return service.runs.ListByOwner(context, ownerID, limit, offset)
}

// # Flags & Sharing

func (service *Service) ToggleFavorite(context context.Context, actorID, publicID string) (*Session, error) {
	session, err := service.resolve(context, actorID, publicID, OpUpdate)
	if err != nil {
		return nil, err
	}

	session.IsFavorite = !session.IsFavorite
	if err := service.sessions.Update(context, session); err != nil {
		return nil, err
	}

	return session, nil
}

func (service *Service) EnableSharing(context context.Context, actorID, publicID string) (*Session, error) {
	return service.setShared(context, actorID, publicID, true)
}

func (service *Service) DisableSharing(context context.Context, actorID, publicID string) (*Session, error) {
	return service.setShared(context, actorID, publicID, false)
}

func (service *Service) setShared(context context.Context, actorID, publicID string, shared bool) (*Session, error) {
	session, err := service.resolve(context, actorID, publicID, OpShare)
	if err != nil {
		return nil, err
	}

	if session.IsShared != shared {
		session.IsShared = shared
		if err := service.sessions.Update(context, session); err != nil {
			return nil, err
		}

		service.logger.Info("session_sharing_changed",
			slog.String("session_id", session.PublicID),
			slog.Bool("is_shared", shared),
		)
	}

	return session, nil
}

// # Public Sharing & Statistics

// GetShared serves the public share path. Only sessions with sharing enabled
// are visible here; everything else is NotFound, so the existence of a
// private session cannot be probed through this endpoint.
func (service *Service) GetShared(context context.Context, actorID, publicID string) (*SharedView, error) {
	session, err := service.sessions.FindByPublicID(context, publicID)
	if err != nil {
		// Only a genuine miss becomes a 404. Storage failures keep their
		// own classification so outages are not reported as missing data.
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, apperr.NotFound("Shared session")
		}
		return nil, err
	}

	if !session.IsShared {
		return nil, apperr.NotFound("Shared session")
	}

	sharedBy, err := service.sessions.OwnerSummary(context, session.OwnerID)
	if err != nil {
		return nil, err
	}

	return &SharedView{
		Session:  session,
		SharedBy: sharedBy,
		IsOwner:  actorID != "" && actorID == session.OwnerID,
	}, nil
}

func (service *Service) Statistics(context context.Context, ownerID string) (*Statistics, error) {
	return service.sessions.Statistics(context, ownerID)
}
