package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"commentwatch/internal/common"
	"commentwatch/internal/config"
	"commentwatch/internal/queue"
	"commentwatch/internal/redis"
	"commentwatch/internal/service"
	"commentwatch/internal/store"
	"commentwatch/internal/validation"
)

type Handlers struct {
	Service *service.Service
	Store   store.Store
	Queue   *queue.Queue
	Redis   *redis.Service
	Config  config.Config
}

func (h *Handlers) Routers(r chi.Router) {
	r.Group(func(r chi.Router) {
		// Submissions spawn background work; cap them per client IP.
		r.Use(httprate.LimitByIP(h.Config.SubmitRateLimit, time.Minute))
		r.Post("/api/submit", h.submit)
	})

	r.Get("/api/status/{id}", h.status)

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request) {
	var req validation.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if validationErrs := validation.ValidateSubmit(req); len(validationErrs) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   "validation failed",
			"details": validationErrs,
		})
		return
	}

	j, err := h.Service.Submit(r.Context(), req.VideoURL, req.Phrases, req.Email)
	if err != nil {
		slog.Error("failed to submit job", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"request_id": j.ID,
		"status":     string(j.Status),
		"message":    "Request submitted successfully",
	})
}

func (h *Handlers) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	j, err := h.Service.Status(r.Context(), id)
	if err != nil {
		if common.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Request not found")
			return
		}
		slog.Error("failed to read job status", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(j); err != nil {
		slog.Warn("encode job", "err", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
