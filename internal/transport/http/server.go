// Package http implements the HTTP transport layer for the service.
// It handles incoming requests, decodes them, calls the appropriate service
// methods, and encodes the responses.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/errwatch/issue-lifecycle-service/internal/apperrors"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/internal/service"
	"github.com/errwatch/issue-lifecycle-service/internal/validation"
	"github.com/errwatch/issue-lifecycle-service/pkg/api"
	"github.com/errwatch/issue-lifecycle-service/pkg/logger/sl"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Identity headers set by the upstream auth proxy. The engine trusts them;
// authentication itself happens before requests reach this service.
const (
	actorIDHeader            = "X-Actor-ID"
	authorizedProjectsHeader = "X-Authorized-Projects"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	log          *slog.Logger
	groupService service.GroupService
}

// NewServer creates a new instance of the HTTP server.
func NewServer(log *slog.Logger, gs service.GroupService) *Server {
	return &Server{
		log:          log,
		groupService: gs,
	}
}

// Routes sets up the router with all middleware and API endpoints.
func (s *Server) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(s.requestID)
	mux.Use(s.logRequest)
	mux.Use(s.metricsMiddleware)

	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/health", s.GetHealth)

	mux.Put("/api/projects/{projectID}/issues", s.PutProjectIssues)
	mux.Delete("/api/projects/{projectID}/issues", s.DeleteProjectIssues)

	return mux
}

func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PutProjectIssues applies a bulk mutation to the selected issues of a project.
func (s *Server) PutProjectIssues(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.PutProjectIssues"

	projectID, err := s.projectID(r)
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	actor, err := s.actor(r)
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	sel, err := s.selection(r)
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	var req mutateIssuesRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	resp, err := s.groupService.Mutate(r.Context(), actor, projectID, sel, toMutation(req))
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	s.respond(w, http.StatusOK, resp)
}

// DeleteProjectIssues schedules the selected issues for deletion.
func (s *Server) DeleteProjectIssues(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.DeleteProjectIssues"

	projectID, err := s.projectID(r)
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	actor, err := s.actor(r)
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	sel, err := s.selection(r)
	if err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	if _, err := s.groupService.Delete(r.Context(), actor, projectID, sel); err != nil {
		s.handleServiceError(w, r, op, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) projectID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "projectID")

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid project id '%s'", apperrors.ErrValidation, raw)
	}

	return id, nil
}

func (s *Server) actor(r *http.Request) (service.Actor, error) {
	var actor service.Actor

	if raw := r.Header.Get(actorIDHeader); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return actor, fmt.Errorf("%w: invalid actor id '%s'", apperrors.ErrValidation, raw)
		}

		actor.UserID = id
	}

	for _, part := range strings.Split(r.Header.Get(authorizedProjectsHeader), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return actor, fmt.Errorf("%w: invalid authorized project '%s'", apperrors.ErrValidation, part)
		}

		actor.AuthorizedProjects = append(actor.AuthorizedProjects, id)
	}

	return actor, nil
}

func (s *Server) selection(r *http.Request) (service.Selection, error) {
	query := r.URL.Query()

	sel := service.Selection{
		Query: query.Get("query"),
		Sort:  query.Get("sort"),
	}

	for _, raw := range query["id"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return sel, fmt.Errorf("%w: invalid issue id '%s'", apperrors.ErrValidation, raw)
		}

		sel.IDs = append(sel.IDs, id)
	}

	if len(sel.IDs) > 0 && sel.Query != "" {
		return sel, fmt.Errorf("%w: 'id' and 'query' cannot be combined", apperrors.ErrValidation)
	}

	return sel, nil
}

func toMutation(req mutateIssuesRequest) service.Mutation {
	m := service.Mutation{
		IsBookmarked: req.IsBookmarked,
		IsSubscribed: req.IsSubscribed,
		IsPublic:     req.IsPublic,
		HasSeen:      req.HasSeen,
		AssignedTo:   req.AssignedTo,
		Merge:        req.Merge,
		Discard:      req.Discard,
	}

	if req.Status != nil {
		sc := &service.StatusChange{Status: domain.GroupStatus(*req.Status)}

		if d := req.StatusDetails; d != nil {
			sc.InNextRelease = d.InNextRelease
			sc.InRelease = d.InRelease

			if d.InCommit != nil {
				sc.InCommit = &api.CommitRef{
					Commit:     d.InCommit.Commit,
					Repository: d.InCommit.Repository,
				}
			}

			sc.IgnoreDuration = d.IgnoreDuration
			sc.IgnoreCount = d.IgnoreCount
			sc.IgnoreWindow = d.IgnoreWindow
			sc.IgnoreUserCount = d.IgnoreUserCount
			sc.IgnoreUserWindow = d.IgnoreUserWindow
		}

		m.Status = sc
	}

	return m
}

// respond is a helper function to encode data to JSON and write it to the response.
// It centralizes setting the Content-Type header and writing the status code.
func (s *Server) respond(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.log.Error("failed to encode response", sl.Err(err))
		}
	}
}

// respondAPIError formats and sends a structured error response.
func (s *Server) respondAPIError(w http.ResponseWriter, code int, apiCode api.ErrorCode, message string) {
	var errResp api.ErrorResponse
	errResp.Error.Code = apiCode
	errResp.Error.Message = message

	s.respond(w, code, errResp)
}

// decodeAndValidate is a helper that deserializes a JSON request body into a
// struct and then runs validation checks on it.
func (s *Server) decodeAndValidate(r *http.Request, v interface{}) error {
	if err := s.decode(r.Body, v); err != nil {
		return err
	}

	if err := validation.ValidateStruct(v); err != nil {
		return err
	}

	return nil
}

func (s *Server) decode(body io.ReadCloser, v interface{}) error {
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidRequest, err)
	}

	return nil
}

// handleServiceError provides centralized error handling for all HTTP handlers.
// It logs the internal error and maps it to a user-friendly HTTP response.
func (s *Server) handleServiceError(w http.ResponseWriter, _ *http.Request, op string, err error) {
	log := s.log.With(slog.String("op", op))
	log.Error("service error occurred", sl.Err(err))

	var validationErr *validation.ValidationError

	switch {
	case errors.As(err, &validationErr):
		s.respondAPIError(w, http.StatusBadRequest, api.VALIDATION, validationErr.Error())
	case errors.Is(err, apperrors.ErrInvalidRequest):
		s.respondAPIError(w, http.StatusBadRequest, api.VALIDATION, "invalid request body")
	case errors.Is(err, apperrors.ErrExclusiveMutation):
		s.respondAPIError(w, http.StatusBadRequest, api.VALIDATION, apperrors.ErrExclusiveMutation.Error())
	case errors.Is(err, apperrors.ErrMergeNotEnough):
		s.respondAPIError(w, http.StatusBadRequest, api.VALIDATION, apperrors.ErrMergeNotEnough.Error())
	case errors.Is(err, apperrors.ErrNoRelease):
		s.respondAPIError(w, http.StatusBadRequest, api.VALIDATION, apperrors.ErrNoRelease.Error())
	case errors.Is(err, apperrors.ErrValidation):
		s.respondAPIError(w, http.StatusBadRequest, api.VALIDATION, err.Error())
	case errors.Is(err, apperrors.ErrPermission):
		s.respondAPIError(w, http.StatusForbidden, api.PERMISSION, "permission denied")
	case errors.Is(err, apperrors.ErrNotFound):
		s.respondAPIError(w, http.StatusNotFound, api.NOTFOUND, "resource not found")
	default:
		s.respondAPIError(w, http.StatusInternalServerError, api.INTERNAL, "internal server error")
	}
}
