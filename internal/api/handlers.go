package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tripwire24/tw-experiment-engine/internal/model"
	"github.com/tripwire24/tw-experiment-engine/internal/session"
	"github.com/tripwire24/tw-experiment-engine/internal/store"
	"github.com/tripwire24/tw-experiment-engine/internal/views"
)

const maxRequestBodySize = 1 << 20 // 1MB

type AppDeps struct {
	Store   *store.Store
	Session *session.Provider
	Token   string
}

// NewAppHandler returns the HTTP API over the experiment store. Everything
// except /health requires the local bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/boards", handleListBoards(deps))
		r.Post("/boards", handleCreateBoard(deps))
		r.Patch("/boards/{id}", handleUpdateBoard(deps))

		r.Get("/experiments", handleListExperiments(deps))
		r.Post("/experiments", handleCreateExperiment(deps))
		r.Get("/experiments/{id}", handleGetExperiment(deps))
		r.Patch("/experiments/{id}", handleUpdateExperiment(deps))
		r.Delete("/experiments/{id}", handleDeleteExperiment(deps))
		r.Patch("/experiments/{id}/status", handleUpdateStatus(deps))
		r.Post("/experiments/{id}/archive", handleArchiveExperiment(deps))
		r.Post("/experiments/{id}/complete", handleCompleteExperiment(deps))
		r.Post("/experiments/{id}/comments", handleAddComment(deps))

		r.Get("/analytics", handleAnalytics(deps))

		r.Get("/profile", handleGetProfile(deps))
		r.Patch("/profile", handlePatchProfile(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleListBoards(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		boards := deps.Store.Boards()
		if boards == nil {
			boards = []model.Board{}
		}
		writeJSON(w, boards)
	}
}

type boardRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func handleCreateBoard(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req boardRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id, err := deps.Store.AddBoard(req.Name, req.Description)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]string{"id": id})
	}
}

func handleUpdateBoard(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req boardRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := deps.Store.UpdateBoard(id, req.Name, req.Description); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleListExperiments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		experiments := deps.Store.Experiments()
		q := r.URL.Query()
		if board := q.Get("board"); board != "" {
			experiments = views.ForBoard(experiments, board)
		}
		filter := views.VaultFilter{
			Search: q.Get("search"),
			Status: q.Get("status"),
			Result: q.Get("result"),
			Market: q.Get("market"),
			Type:   q.Get("type"),
		}
		experiments = filter.Apply(experiments)
		if experiments == nil {
			experiments = []model.Experiment{}
		}
		writeJSON(w, experiments)
	}
}

type experimentRequest struct {
	BoardID       string   `json:"board_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	ICEImpact     int      `json:"ice_impact"`
	ICEConfidence int      `json:"ice_confidence"`
	ICEEase       int      `json:"ice_ease"`
	Market        string   `json:"market"`
	Type          string   `json:"type"`
	Tags          []string `json:"tags"`
}

func handleCreateExperiment(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req experimentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		exp, err := deps.Store.AddExperiment(store.Draft{
			BoardID:       req.BoardID,
			Title:         req.Title,
			Description:   req.Description,
			Status:        model.Status(req.Status),
			ICEImpact:     req.ICEImpact,
			ICEConfidence: req.ICEConfidence,
			ICEEase:       req.ICEEase,
			Market:        req.Market,
			Type:          req.Type,
			Tags:          req.Tags,
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, exp)
	}
}

func handleGetExperiment(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		exp, ok := deps.Store.Experiment(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "experiment not found")
			return
		}
		writeJSON(w, exp)
	}
}

func handleUpdateExperiment(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		exp, ok := deps.Store.Experiment(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "experiment not found")
			return
		}

		// Decode over the current record so omitted fields keep their values.
		if !decodeBody(w, r, &exp) {
			return
		}
		exp.ID = id

		if err := deps.Store.UpdateExperiment(exp); err != nil {
			writeStoreError(w, err)
			return
		}
		updated, _ := deps.Store.Experiment(id)
		writeJSON(w, updated)
	}
}

func handleDeleteExperiment(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, ok := deps.Store.Experiment(id); !ok {
			httpError(w, http.StatusNotFound, "not_found", "experiment not found")
			return
		}
		deps.Store.DeleteExperiment(id)
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleUpdateStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Status string `json:"status"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if _, ok := deps.Store.Experiment(id); !ok {
			httpError(w, http.StatusNotFound, "not_found", "experiment not found")
			return
		}
		if err := deps.Store.UpdateStatus(id, model.Status(req.Status)); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func handleArchiveExperiment(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, ok := deps.Store.Experiment(id); !ok {
			httpError(w, http.StatusNotFound, "not_found", "experiment not found")
			return
		}
		if err := deps.Store.ArchiveExperiment(id); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "archived"})
	}
}

func handleCompleteExperiment(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, ok := deps.Store.Experiment(id); !ok {
			httpError(w, http.StatusNotFound, "not_found", "experiment not found")
			return
		}
		if err := deps.Store.CompleteExperiment(id); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "completed"})
	}
}

func handleAddComment(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Text string `json:"text"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if _, ok := deps.Store.Experiment(id); !ok {
			httpError(w, http.StatusNotFound, "not_found", "experiment not found")
			return
		}
		if err := deps.Store.AddComment(id, req.Text); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, map[string]string{"status": "created"})
	}
}

func handleAnalytics(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		experiments := deps.Store.Experiments()
		if board := r.URL.Query().Get("board"); board != "" {
			experiments = views.ForBoard(experiments, board)
		}
		writeJSON(w, views.Compute(experiments))
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prof := deps.Session.Profile()
		if prof == nil {
			httpError(w, http.StatusNotFound, "not_found", "no active session")
			return
		}
		writeJSON(w, prof)
	}
}

type profileRequest struct {
	FullName     *string `json:"full_name"`
	AvatarURL    *string `json:"avatar_url"`
	Bio          *string `json:"bio"`
	LinkedInURL  *string `json:"linkedin_url"`
	ContactEmail *string `json:"contact_email"`
}

func handlePatchProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req profileRequest
		if !decodeBody(w, r, &req) {
			return
		}
		update := session.ProfileUpdate{
			FullName:     req.FullName,
			AvatarURL:    req.AvatarURL,
			Bio:          req.Bio,
			LinkedInURL:  req.LinkedInURL,
			ContactEmail: req.ContactEmail,
		}
		if err := deps.Session.UpdateProfile(r.Context(), update, nil); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update profile: %v", err)
			return
		}
		writeJSON(w, deps.Session.Profile())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrLocked):
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
	case store.IsValidation(err):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
