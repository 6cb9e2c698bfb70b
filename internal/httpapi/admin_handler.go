package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"ops_gateway/internal/auth"
	"ops_gateway/internal/config"
	"ops_gateway/internal/models"
	"ops_gateway/internal/storage"
	"ops_gateway/internal/utils"
)

// AdminAuthHandler serves the admin authentication endpoints
type AdminAuthHandler struct {
	store auth.AdminStore
	cfg   *config.Config
}

// NewAdminAuthHandler creates an admin auth handler backed by the given store
func NewAdminAuthHandler(store auth.AdminStore, cfg *config.Config) *AdminAuthHandler {
	return &AdminAuthHandler{
		store: store,
		cfg:   cfg,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	TokenType string `json:"token_type"`
}

// Login exchanges admin email/password credentials for a session JWT
func (h *AdminAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	token, expiresAt, err := auth.GenerateAdminJWTWithPassword(r.Context(), req.Email, req.Password, h.store, h.cfg)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		apiLogger.Error("Admin login failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	_ = utils.RespondWithJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		TokenType: "Bearer",
	})
}

// runListResponse is the envelope for GET /admin/runs
type runListResponse struct {
	Runs   []*models.RunRecord `json:"runs"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// handleAdminRuns serves run history with optional query filters:
// action, provider, status, api_key_id, limit, offset.
func (d *Dependencies) handleAdminRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	filter := storage.RunFilter{
		Action:   q.Get("action"),
		Provider: q.Get("provider"),
		Status:   q.Get("status"),
	}

	if raw := q.Get("api_key_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid 'api_key_id' parameter")
			return
		}
		filter.APIKeyID = id
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid 'limit' parameter")
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid 'offset' parameter")
			return
		}
		filter.Offset = offset
	}

	runs, err := d.Runs.List(r.Context(), filter)
	if err != nil {
		apiLogger.Error("Failed to list runs", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	total, err := d.Runs.Count(r.Context(), filter)
	if err != nil {
		apiLogger.Error("Failed to count runs", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if runs == nil {
		runs = []*models.RunRecord{}
	}

	_ = utils.RespondWithJSON(w, http.StatusOK, runListResponse{
		Runs:   runs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// pipelineStats reports depth and dead letter backlog for one queue
type pipelineStats struct {
	QueueLength     int `json:"queue_length"`
	DeadLetterCount int `json:"dead_letter_count"`
}

// queueStatsResponse is the envelope for GET /admin/stats
type queueStatsResponse struct {
	Runs          *pipelineStats `json:"runs,omitempty"`
	Notifications *pipelineStats `json:"notifications,omitempty"`
}

// handleAdminStats reports the backlog of the async pipelines so
// operators can spot a stalled worker or a filling dead letter queue.
func (d *Dependencies) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var resp queueStatsResponse

	if d.RunWorker != nil {
		length, err := d.RunWorker.QueueLength(r.Context())
		if err != nil {
			apiLogger.Error("Failed to read run queue length", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		parked, err := d.RunWorker.DeadLetterItems(r.Context(), 0)
		if err != nil {
			apiLogger.Error("Failed to list run dead letters", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		resp.Runs = &pipelineStats{QueueLength: length, DeadLetterCount: len(parked)}
	}

	if d.NotifyWorker != nil {
		length, err := d.NotifyWorker.QueueLength(r.Context())
		if err != nil {
			apiLogger.Error("Failed to read notify queue length", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		parked, err := d.NotifyWorker.DeadLetterItems(r.Context(), 0)
		if err != nil {
			apiLogger.Error("Failed to list notify dead letters", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		resp.Notifications = &pipelineStats{QueueLength: length, DeadLetterCount: len(parked)}
	}

	_ = utils.RespondWithJSON(w, http.StatusOK, resp)
}
