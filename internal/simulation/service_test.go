// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

package simulation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tocsimulator/tocsim/internal/platform/apperr"
	"github.com/tocsimulator/tocsim/internal/platform/dberr"
)

// # In-Memory Fakes

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*Session // keyed by internal ID
	findErr  error               // injected FindByPublicID failure
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*Session)}
}

func (repo *fakeSessionRepo) put(session *Session) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	copied := *session
	repo.sessions[session.ID] = &copied
}

func (repo *fakeSessionRepo) List(_ context.Context, ownerID string, _ Filter, _, _ int) ([]*Session, int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var result []*Session
	for _, session := range repo.sessions {
		if session.OwnerID == ownerID {
			copied := *session
			result = append(result, &copied)
		}
	}
	return result, len(result), nil
}

func (repo *fakeSessionRepo) ListRecent(_ context.Context, ownerID string, since time.Time, _, _ int) ([]*Session, int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var result []*Session
	for _, session := range repo.sessions {
		if session.OwnerID == ownerID && !session.LastAccessedAt.Before(since) {
			copied := *session
			result = append(result, &copied)
		}
	}
	return result, len(result), nil
}

func (repo *fakeSessionRepo) FindByPublicID(_ context.Context, publicID string) (*Session, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.findErr != nil {
		return nil, repo.findErr
	}
	for _, session := range repo.sessions {
		if session.PublicID == publicID {
			copied := *session
			return &copied, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (repo *fakeSessionRepo) Create(_ context.Context, session *Session) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, existing := range repo.sessions {
		if existing.OwnerID == session.OwnerID && existing.Name == session.Name {
			return apperr.Conflict("You already have a session with this name")
		}
	}
	copied := *session
	repo.sessions[session.ID] = &copied
	return nil
}

func (repo *fakeSessionRepo) Update(_ context.Context, session *Session) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.sessions[session.ID]; !ok {
		return dberr.ErrNotFound
	}
	copied := *session
	copied.UpdatedAt = time.Now()
	repo.sessions[session.ID] = &copied
	return nil
}

func (repo *fakeSessionRepo) Delete(_ context.Context, sessionID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.sessions[sessionID]; !ok {
		return dberr.ErrNotFound
	}
	delete(repo.sessions, sessionID)
	return nil
}

func (repo *fakeSessionRepo) TouchLastAccessed(_ context.Context, sessionID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if session, ok := repo.sessions[sessionID]; ok {
		session.LastAccessedAt = time.Now()
	}
	return nil
}

func (repo *fakeSessionRepo) Statistics(_ context.Context, ownerID string) (*Statistics, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	stats := &Statistics{}
	for _, session := range repo.sessions {
		if session.OwnerID != ownerID {
			continue
		}
		stats.Total++
		if session.IsFavorite {
			stats.Favorites++
		}
		if session.IsShared {
			stats.Shared++
		}
	}
	return stats, nil
}

func (repo *fakeSessionRepo) OwnerSummary(_ context.Context, _ string) (*Owner, error) {
	return &Owner{Username: "ada", FirstName: "Ada", LastName: "Lovelace"}, nil
}

type fakeRunRepo struct {
	mu   sync.Mutex
	runs []*Run
}

func (repo *fakeRunRepo) Create(_ context.Context, run *Run) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	copied := *run
	repo.runs = append(repo.runs, &copied)
	return nil
}

func (repo *fakeRunRepo) ListByOwner(_ context.Context, _ string, _, _ int) ([]*Run, int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return repo.runs, len(repo.runs), nil
}

func (repo *fakeRunRepo) ListBySession(_ context.Context, sessionID string, limit int) ([]*Run, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var result []*Run
	for _, run := range repo.runs {
		if run.SessionID == sessionID {
			copied := *run
			result = append(result, &copied)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// # Fixture

func newTestService() (*Service, *fakeSessionRepo, *fakeRunRepo) {
	sessions := newFakeSessionRepo()
	runs := &fakeRunRepo{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewService(sessions, runs, logger), sessions, runs
}

func seedSession(repo *fakeSessionRepo, ownerID string, shared bool) *Session {
	session := &Session{
		ID:           "sess-" + ownerID,
		PublicID:     "pub-" + ownerID,
		OwnerID:      ownerID,
		Name:         "Binary Divisibility DFA",
		AutomataType: TypeDFA,
		Payload:      validPayload(),
		IsShared:     shared,
		IsFavorite:   true,
	}
	repo.put(session)
	return session
}

// # Access Masking

func TestGet_PrivateSessionHiddenFromNonOwner(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", false)

	_, err := service.Get(context.Background(), "other-1", seeded.PublicID)
	require.Error(t, err)

	// A denied read and a missing session must be indistinguishable.
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "NOT_FOUND", ae.Code)
	assert.Equal(t, "Session not found", ae.Message)

	_, missingErr := service.Get(context.Background(), "other-1", "no-such-public-id")
	assert.Equal(t, "NOT_FOUND", apperr.As(missingErr).Code)
	assert.Equal(t, ae.Message, missingErr.Error())
}

func TestUpdate_SharedSessionForbiddenForNonOwner(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", true)

	name := "Hijacked"
	_, err := service.Update(context.Background(), "other-1", seeded.PublicID, UpdateInput{Name: &name})
	require.Error(t, err)

	// The session is readable, so the denial is explicit here.
	assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)
}

func TestDelete_SharedSessionForbiddenForNonOwner(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", true)

	err := service.Delete(context.Background(), "other-1", seeded.PublicID)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperr.As(err).Code)

	// Still there.
	_, err = sessions.FindByPublicID(context.Background(), seeded.PublicID)
	assert.NoError(t, err)
}

// # CRUD

func TestCreate_ValidatesInput(t *testing.T) {
	service, _, _ := newTestService()

	tests := []struct {
		name  string
		input CreateInput
	}{
		{"missing_name", CreateInput{AutomataType: "DFA", Payload: validPayload()}},
		{"unknown_type", CreateInput{Name: "x", AutomataType: "PDA", Payload: validPayload()}},
		{"nil_payload", CreateInput{Name: "x", AutomataType: "DFA"}},
		{"name_too_long", CreateInput{Name: strings.Repeat("a", MaxNameLength+1), AutomataType: "DFA", Payload: validPayload()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(context.Background(), "owner-1", tt.input)
			require.Error(t, err)
			assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
		})
	}
}

func TestCreate_StartsPrivate(t *testing.T) {
	service, _, _ := newTestService()

	session, err := service.Create(context.Background(), "owner-1", CreateInput{
		Name:         "Even Zeros",
		AutomataType: "NFA",
		Payload:      validPayload(),
	})
	require.NoError(t, err)

	assert.False(t, session.IsShared)
	assert.False(t, session.IsFavorite)
	assert.NotEmpty(t, session.PublicID)
	assert.NotEqual(t, session.ID, session.PublicID)
}

func TestCreate_DuplicateNameConflicts(t *testing.T) {
	service, _, _ := newTestService()

	input := CreateInput{Name: "Even Zeros", AutomataType: "DFA", Payload: validPayload()}
	_, err := service.Create(context.Background(), "owner-1", input)
	require.NoError(t, err)

	_, err = service.Create(context.Background(), "owner-1", input)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)

	// A different owner may reuse the name.
	_, err = service.Create(context.Background(), "owner-2", input)
	assert.NoError(t, err)
}

func TestCreate_ConcurrentSameNameOneWins(t *testing.T) {
	service, _, _ := newTestService()
	input := CreateInput{Name: "Even Zeros", AutomataType: "DFA", Payload: validPayload()}

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Create(context.Background(), "owner-1", input)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		if ae := apperr.As(err); ae != nil && ae.Code == "CONFLICT" {
			conflicts++
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
}

func TestUpdate_PartialPatch(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", false)

	description := "Accepts strings with an even number of zeros"
	updated, err := service.Update(context.Background(), "owner-1", seeded.PublicID, UpdateInput{
		Description: &description,
	})
	require.NoError(t, err)

	// Only the patched field changes.
	assert.Equal(t, description, updated.Description)
	assert.Equal(t, seeded.Name, updated.Name)
	assert.Equal(t, seeded.AutomataType, updated.AutomataType)
}

func TestUpdate_NoopSkipsStorage(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", false)

	sameName := seeded.Name
	updated, err := service.Update(context.Background(), "owner-1", seeded.PublicID, UpdateInput{Name: &sameName})
	require.NoError(t, err)

	stored, err := sessions.FindByPublicID(context.Background(), seeded.PublicID)
	require.NoError(t, err)
	assert.Equal(t, stored.UpdatedAt, updated.UpdatedAt)
}

func TestUpdate_RejectsInvalidPayload(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", false)

	_, err := service.Update(context.Background(), "owner-1", seeded.PublicID, UpdateInput{
		Payload: map[string]any{"states": []any{}},
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
}

// # Duplication

func TestDuplicate_OwnCopyStartsClean(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", true) // shared + favorite source

	copied, err := service.Duplicate(context.Background(), "owner-2", seeded.PublicID, "")
	require.NoError(t, err)

	assert.Equal(t, "owner-2", copied.OwnerID)
	assert.Equal(t, seeded.Name+" (Copy)", copied.Name)
	assert.NotEqual(t, seeded.PublicID, copied.PublicID)
	assert.False(t, copied.IsShared)
	assert.False(t, copied.IsFavorite)
	assert.Equal(t, seeded.Payload, copied.Payload)
}

func TestDuplicate_PrivateSessionNotVisible(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", false)

	_, err := service.Duplicate(context.Background(), "other-1", seeded.PublicID, "")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
}

// # Runs

func TestSaveRun_RecordsAndTouches(t *testing.T) {
	service, sessions, runs := newTestService()
	seeded := seedSession(sessions, "owner-1", false)

	run, err := service.SaveRun(context.Background(), "owner-1", seeded.PublicID, SaveRunInput{
		InputString:     "0101",
		Accepted:        true,
		ExecutionTimeMS: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, seeded.PublicID, run.SessionPublicID)
	assert.Len(t, runs.runs, 1)

	stored, err := sessions.FindByPublicID(context.Background(), seeded.PublicID)
	require.NoError(t, err)
	assert.False(t, stored.LastAccessedAt.IsZero())
}

func TestSaveRun_RejectsOversizeInput(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", false)

	_, err := service.SaveRun(context.Background(), "owner-1", seeded.PublicID, SaveRunInput{
		InputString: strings.Repeat("0", MaxInputStringLength+1),
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
}

func TestSaveRun_RejectsNegativeDuration(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", false)

	_, err := service.SaveRun(context.Background(), "owner-1", seeded.PublicID, SaveRunInput{
		InputString:     "01",
		ExecutionTimeMS: -1,
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
}

// # Flags & Sharing

func TestToggleFavorite_Flips(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", false) // seeded favorite=true

	toggled, err := service.ToggleFavorite(context.Background(), "owner-1", seeded.PublicID)
	require.NoError(t, err)
	assert.False(t, toggled.IsFavorite)

	toggled, err = service.ToggleFavorite(context.Background(), "owner-1", seeded.PublicID)
	require.NoError(t, err)
	assert.True(t, toggled.IsFavorite)
}

func TestSharing_EnableDisable(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", false)

	shared, err := service.EnableSharing(context.Background(), "owner-1", seeded.PublicID)
	require.NoError(t, err)
	assert.True(t, shared.IsShared)

	// Enabling twice is a no-op, not an error.
	shared, err = service.EnableSharing(context.Background(), "owner-1", seeded.PublicID)
	require.NoError(t, err)
	assert.True(t, shared.IsShared)

	unshared, err := service.DisableSharing(context.Background(), "owner-1", seeded.PublicID)
	require.NoError(t, err)
	assert.False(t, unshared.IsShared)
}

// # Public Share View

func TestGetShared_MasksPrivateAndMissingIdentically(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", false)

	_, privateErr := service.GetShared(context.Background(), "", seeded.PublicID)
	require.Error(t, privateErr)

	_, missingErr := service.GetShared(context.Background(), "", "no-such-public-id")
	require.Error(t, missingErr)

	// Same code and same message: existence must not leak.
	assert.Equal(t, apperr.As(missingErr).Code, apperr.As(privateErr).Code)
	assert.Equal(t, missingErr.Error(), privateErr.Error())
	assert.Equal(t, "Shared session not found", privateErr.Error())
}

func TestGetShared_PropagatesStorageFailures(t *testing.T) {
	service, sessions, _ := newTestService()
	sessions.findErr = apperr.Internal(errors.New("connection refused"))

	_, err := service.GetShared(context.Background(), "", "pub-anything")
	require.Error(t, err)

	// A database outage must surface as 5xx, never as a missing session.
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "INTERNAL_ERROR", ae.Code)
}

func TestGetShared_AnonymousAndOwnerViews(t *testing.T) {
	service, sessions, _ := newTestService()
	seeded := seedSession(sessions, "owner-1", true)

	view, err := service.GetShared(context.Background(), "", seeded.PublicID)
	require.NoError(t, err)
	assert.False(t, view.IsOwner)
	require.NotNil(t, view.SharedBy)
	assert.Equal(t, "ada", view.SharedBy.Username)
	assert.Equal(t, "Ada", view.SharedBy.FirstName)
	assert.Equal(t, "Lovelace", view.SharedBy.LastName)

	ownerView, err := service.GetShared(context.Background(), "owner-1", seeded.PublicID)
	require.NoError(t, err)
	assert.True(t, ownerView.IsOwner)
}

func TestGet_EmbedsRecentRuns(t *testing.T) {
	service, sessions, runs := newTestService()
	seeded := seedSession(sessions, "owner-1", false)

	for i := 0; i < 3; i++ {
		require.NoError(t, runs.Create(context.Background(), &Run{
			ID:              "run-" + strconv.Itoa(i),
			SessionID:       seeded.ID,
			SessionPublicID: seeded.PublicID,
			InputString:     "01",
		}))
	}

	detail, err := service.Get(context.Background(), "owner-1", seeded.PublicID)
	require.NoError(t, err)

	assert.Equal(t, seeded.PublicID, detail.PublicID)
	assert.Len(t, detail.Runs, 3)
}

func TestListRecent_FiltersByWindow(t *testing.T) {
	service, sessions, _ := newTestService()

	sessions.put(&Session{
		ID: "sess-fresh", PublicID: "pub-fresh", OwnerID: "owner-1",
		Name: "Fresh", LastAccessedAt: time.Now(),
	})
	sessions.put(&Session{
		ID: "sess-stale", PublicID: "pub-stale", OwnerID: "owner-1",
		Name: "Stale", LastAccessedAt: time.Now().AddDate(0, 0, -30),
	})

	// days <= 0 falls back to the default 7-day window.
	list, total, err := service.ListRecent(context.Background(), "owner-1", 0, 20, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "pub-fresh", list[0].PublicID)

	// A wider window picks the stale session back up.
	_, total, err = service.ListRecent(context.Background(), "owner-1", 60, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestStatistics_ScopedToOwner(t *testing.T) {
	service, sessions, _ := newTestService()
	seedSession(sessions, "owner-1", true)
	seedSession(sessions, "owner-2", false)

	stats, err := service.Statistics(context.Background(), "owner-1")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Shared)
	assert.Equal(t, 1, stats.Favorites)
}
