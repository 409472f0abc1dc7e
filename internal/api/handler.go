// Package api exposes the reminder service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mayurbt12/reminder-service/internal/domain"
	"github.com/mayurbt12/reminder-service/internal/lifecycle"
	"github.com/mayurbt12/reminder-service/internal/service"
	"github.com/mayurbt12/reminder-service/internal/store"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// Service is the subset of the reminder service the handler needs.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (domain.Reminder, error)
	Get(ctx context.Context, ownerID, id string) (domain.Reminder, error)
	Update(ctx context.Context, ownerID, id string, changes lifecycle.Changes) (domain.Reminder, error)
	Delete(ctx context.Context, ownerID, id string) error
	List(ctx context.Context, ownerID string, in service.ListInput) ([]domain.Reminder, error)
	Search(ctx context.Context, ownerID, query string) ([]domain.Reminder, error)
	CheckDue(ctx context.Context, ownerID string, asOf time.Time) ([]domain.Reminder, error)
	Stats(ctx context.Context, ownerID string) (store.Counts, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	svc Service
	db  HealthChecker
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/" && r.Method == http.MethodGet:
		h.root(w, r)

	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/reminders" && r.Method == http.MethodPost:
		h.createReminder(w, r)

	case path == "/reminders" && r.Method == http.MethodGet:
		h.listReminders(w, r)

	case path == "/reminders/due/now" && r.Method == http.MethodGet:
		h.checkDue(w, r)

	case path == "/reminders/search" && r.Method == http.MethodGet:
		h.searchReminders(w, r)

	case strings.HasPrefix(path, "/reminders/stats/") && r.Method == http.MethodGet:
		h.stats(w, r)

	case strings.HasPrefix(path, "/reminders/") && r.Method == http.MethodGet:
		h.getReminder(w, r)

	case strings.HasPrefix(path, "/reminders/") && r.Method == http.MethodPut:
		h.updateReminder(w, r)

	case strings.HasPrefix(path, "/reminders/") && r.Method == http.MethodDelete:
		h.deleteReminder(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "reminder-service",
		"status":  "running",
	})
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) createReminder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := validateCreateReminder(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput{
		OwnerID:       req.UserMobile,
		DestinationID: req.DestinationMobile,
		Title:         req.Title,
		Description:   req.Description,
		DueAt:         req.DueAt,
		Priority:      req.Priority,
		Context:       req.Context,
		Recurrence:    req.Recurrence,
	})
	if err != nil {
		writeServiceError(w, "create reminder", err)
		return
	}

	writeJSON(w, http.StatusCreated, toReminderResponse(created))
}

func (h *Handler) listReminders(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("user_mobile")
	if err := validateMobile("user_mobile", owner); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reminders, err := h.svc.List(r.Context(), owner, service.ListInput{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeServiceError(w, "list reminders", err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(reminders))
}

func (h *Handler) checkDue(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("user_mobile")
	if err := validateMobile("user_mobile", owner); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Optional reference instant; defaults to now.
	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of: must be an RFC3339 timestamp")
			return
		}
		asOf = t
	}

	due, err := h.svc.CheckDue(r.Context(), owner, asOf)
	if err != nil {
		writeServiceError(w, "check due", err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(due))
}

func (h *Handler) searchReminders(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("user_mobile")
	if err := validateMobile("user_mobile", owner); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query().Get("q")
	results, err := h.svc.Search(r.Context(), owner, query)
	if err != nil {
		writeServiceError(w, "search reminders", err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(results))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	// Path: /reminders/stats/{user_mobile}
	owner := strings.TrimPrefix(r.URL.Path, "/reminders/stats/")
	if err := validateMobile("user_mobile", owner); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	counts, err := h.svc.Stats(r.Context(), owner)
	if err != nil {
		writeServiceError(w, "stats", err)
		return
	}

	writeJSON(w, http.StatusOK, toStatsResponse(owner, counts))
}

func (h *Handler) getReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := reminderID(w, r)
	if !ok {
		return
	}
	owner := r.URL.Query().Get("user_mobile")
	if err := validateMobile("user_mobile", owner); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reminder, err := h.svc.Get(r.Context(), owner, id)
	if err != nil {
		writeServiceError(w, "get reminder", err)
		return
	}

	writeJSON(w, http.StatusOK, toReminderResponse(reminder))
}

func (h *Handler) updateReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := reminderID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req UpdateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := validateUpdateReminder(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	changes := lifecycle.Changes{
		Title:         req.Title,
		Description:   req.Description,
		DueAt:         req.DueAt,
		DestinationID: req.DestinationMobile,
		Context:       req.Context,
	}
	if req.Priority != nil {
		p := domain.Priority(*req.Priority)
		changes.Priority = &p
	}
	if req.Status != nil {
		s := domain.Status(*req.Status)
		if !s.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		changes.Status = &s
	}

	updated, err := h.svc.Update(r.Context(), req.UserMobile, id, changes)
	if err != nil {
		writeServiceError(w, "update reminder", err)
		return
	}

	writeJSON(w, http.StatusOK, toReminderResponse(updated))
}

func (h *Handler) deleteReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := reminderID(w, r)
	if !ok {
		return
	}
	owner := r.URL.Query().Get("user_mobile")
	if err := validateMobile("user_mobile", owner); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), owner, id); err != nil {
		writeServiceError(w, "delete reminder", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// reminderID extracts the ID from /reminders/{id} paths.
func reminderID(w http.ResponseWriter, r *http.Request) (string, bool) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "reminders" || parts[1] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return "", false
	}
	return parts[1], true
}

// writeServiceError maps service and store errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var verr service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, service.ErrOwnerLimit):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "reminder not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "conflicting concurrent update, retry")
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("api: %s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
