// Copyright (c) 2026 TOC Simulator. All rights reserved.
// Author: dev@tocsimulator.com

package simulation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tocsimulator/tocsim/internal/platform/ctxutil"
	"github.com/tocsimulator/tocsim/internal/platform/middleware"
	requestutil "github.com/tocsimulator/tocsim/internal/platform/request"
	"github.com/tocsimulator/tocsim/internal/platform/respond"
	"github.com/tocsimulator/tocsim/internal/platform/validate"
	"github.com/tocsimulator/tocsim/pkg/pagination"
	"github.com/tocsimulator/tocsim/pkg/pointer"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (handler *Handler) RegisterRoutes(router chi.Router) {
	// Public: shared sessions are readable by anonymous visitors.
	router.Get("/shared/{publicID}", handler.getShared)

	// Everything else needs a verified, logged-in account.
	router.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth)

		authed.Get("/sessions", handler.listSessions)
		authed.Post("/sessions", handler.createSession)
		authed.Get("/sessions/recent", handler.recentSessions)
		authed.Get("/sessions/statistics", handler.statistics)

		authed.Get("/sessions/{publicID}", handler.getSession)
		authed.Patch("/sessions/{publicID}", handler.updateSession)
		authed.Delete("/sessions/{publicID}", handler.deleteSession)

		authed.Post("/sessions/{publicID}/duplicate", handler.duplicateSession)
		authed.Post("/sessions/{publicID}/runs", handler.saveRun)
		authed.Post("/sessions/{publicID}/favorite", handler.toggleFavorite)
		authed.Post("/sessions/{publicID}/share", handler.enableSharing)
		authed.Delete("/sessions/{publicID}/share", handler.disableSharing)

		authed.Get("/runs", handler.listRuns)
	})
}

func (handler *Handler) listSessions(writer http.ResponseWriter, request *http.Request) {
	ownerID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	paginationParams := pagination.FromRequest(request)
	queryValues := request.URL.Query()

	filter := Filter{
		Type:    queryValues.Get("type"),
		Query:   queryValues.Get("q"),
		OrderBy: queryValues.Get("order_by"),
	}
	if raw := queryValues.Get("favorite"); raw != "" {
		filter.Favorite = pointer.To(raw == "true")
	}

	sessions, total, err := handler.service.List(request.Context(), ownerID, filter, paginationParams.Limit, paginationParams.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, sessions, pagination.NewMeta(paginationParams.Page, paginationParams.Limit, total))
}

func (handler *Handler) recentSessions(writer http.ResponseWriter, request *http.Request) {
	ownerID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	paginationParams := pagination.FromRequest(request)

	// Invalid or absent "days" falls back to the default window.
	days, _ := strconv.Atoi(request.URL.Query().Get("days"))

	sessions, total, err := handler.service.ListRecent(request.Context(), ownerID, days, paginationParams.Limit, paginationParams.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, sessions, pagination.NewMeta(paginationParams.Page, paginationParams.Limit, total))
}

func (handler *Handler) getSession(writer http.ResponseWriter, request *http.Request) {
	actorID := ctxutil.ActorID(request.Context())
	publicID := requestutil.Param(request, "publicID")

	session, err := handler.service.Get(request.Context(), actorID, publicID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, session)
}

type createSessionRequest struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	AutomataType string         `json:"automata_type"`
	Payload      map[string]any `json:"payload"`
}

func (handler *Handler) createSession(writer http.ResponseWriter, request *http.Request) {
	ownerID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input createSessionRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.service.Create(request.Context(), ownerID, CreateInput{
		Name:         input.Name,
		Description:  input.Description,
		AutomataType: input.AutomataType,
		Payload:      input.Payload,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, session)
}

type updateSessionRequest struct {
	Name         *string        `json:"name"`
	Description  *string        `json:"description"`
	AutomataType *string        `json:"automata_type"`
	Payload      map[string]any `json:"payload"`
}

func (handler *Handler) updateSession(writer http.ResponseWriter, request *http.Request) {
	actorID := ctxutil.ActorID(request.Context())
	publicID := requestutil.Param(request, "publicID")

	var input updateSessionRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.service.Update(request.Context(), actorID, publicID, UpdateInput{
		Name:         input.Name,
		Description:  input.Description,
		AutomataType: input.AutomataType,
		Payload:      input.Payload,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, session)
}

func (handler *Handler) deleteSession(writer http.ResponseWriter, request *http.Request) {
	actorID := ctxutil.ActorID(request.Context())
	publicID := requestutil.Param(request, "publicID")

	if err := handler.service.Delete(request.Context(), actorID, publicID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

type duplicateSessionRequest struct {
	Name string `json:"name"`
}

func (handler *Handler) duplicateSession(writer http.ResponseWriter, request *http.Request) {
	actorID := ctxutil.ActorID(request.Context())
	publicID := requestutil.Param(request, "publicID")

	// Body is optional: an empty or absent name falls back to "<original> (Copy)".
	var input duplicateSessionRequest
	_ = json.NewDecoder(request.Body).Decode(&input)

	session, err := handler.service.Duplicate(request.Context(), actorID, publicID, input.Name)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, session)
}

type saveRunRequest struct {
	InputString     string          `json:"input_string"`
	Accepted        bool            `json:"accepted"`
	ExecutionTimeMS int             `json:"execution_time_ms"`
	Trace           json.RawMessage `json:"trace"`
}

func (handler *Handler) saveRun(writer http.ResponseWriter, request *http.Request) {
	actorID := ctxutil.ActorID(request.Context())
	publicID := requestutil.Param(request, "publicID")

	var input saveRunRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	run, err := handler.service.SaveRun(request.Context(), actorID, publicID, SaveRunInput{
		InputString:     input.InputString,
		Accepted:        input.Accepted,
		ExecutionTimeMS: input.ExecutionTimeMS,
		Trace:           input.Trace,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, run)
}

func (handler *Handler) toggleFavorite(writer http.ResponseWriter, request *http.Request) {
	actorID := ctxutil.ActorID(request.Context())
	publicID := requestutil.Param(request, "publicID")

	session, err := handler.service.ToggleFavorite(request.Context(), actorID, publicID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, session)
}

func (handler *Handler) enableSharing(writer http.ResponseWriter, request *http.Request) {
	actorID := ctxutil.ActorID(request.Context())
	publicID := requestutil.Param(request, "publicID")

	session, err := handler.service.EnableSharing(request.Context(), actorID, publicID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, session)
}

func (handler *Handler) disableSharing(writer http.ResponseWriter, request *http.Request) {
	actorID := ctxutil.ActorID(request.Context())
	publicID := requestutil.Param(request, "publicID")

	session, err := handler.service.DisableSharing(request.Context(), actorID, publicID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, session)
}

func (handler *Handler) getShared(writer http.ResponseWriter, request *http.Request) {
	// ActorID is "" for anonymous visitors; the service handles both.
	actorID := ctxutil.ActorID(request.Context())
	publicID := requestutil.Param(request, "publicID")

	validator := &validate.Validator{}
	validator.UUID("publicID", publicID)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	view, err := handler.service.GetShared(request.Context(), actorID, publicID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, view)
}

func (handler *Handler) statistics(writer http.ResponseWriter, request *http.Request) {
	ownerID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	stats, err := handler.service.Statistics(request.Context(), ownerID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, stats)
}

func (handler *Handler) listRuns(writer http.ResponseWriter, request *http.Request) {
	ownerID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	paginationParams := pagination.FromRequest(request)
	runs, total, err := handler.service.ListRuns(request.Context(), ownerID, paginationParams.Limit, paginationParams.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, runs, pagination.NewMeta(paginationParams.Page, paginationParams.Limit, total))
}
