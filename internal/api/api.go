// Package api serves the coordinator-facing HTTP surface: lock status, cancellation and campaign history.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shiftfill/outreach/internal/entities"
	"github.com/shiftfill/outreach/internal/lock"
	"github.com/shiftfill/outreach/internal/services"
	log "github.com/sirupsen/logrus"
)

const maxCancelBodySize = 1 << 16

type LockStatusReader interface {
	Status(ctx context.Context, openingID string) (lock.Status, error)
	Forget(openingID string)
}

type CampaignCanceller interface {
	Cancel(ctx context.Context, openingID, reason string) error
}

type CampaignHistory interface {
	GetByOpening(ctx context.Context, openingID string) ([]entities.CampaignRecord, error)
}

type Deps struct {
	Locks     LockStatusReader
	Campaigns CampaignCanceller
	// History is optional; without it the campaigns route answers 404.
	History CampaignHistory
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/openings/{id}", func(r chi.Router) {
		r.Get("/lock", handleLockStatus(deps))
		r.Post("/cancel", handleCancel(deps))
		if deps.History != nil {
			r.Get("/campaigns", handleCampaigns(deps))
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func handleLockStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := deps.Locks.Status(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			log.Errorf("failed to read lock status: %v", err)
			httpError(w, http.StatusInternalServerError, "failed to read lock status")
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func handleCancel(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		openingID := chi.URLParam(r, "id")

		var req CancelRequest
		if r.ContentLength != 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxCancelBodySize)
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
				return
			}
		}
		if req.Reason == "" {
			req.Reason = "cancelled by coordinator"
		}

		err := deps.Campaigns.Cancel(r.Context(), openingID, req.Reason)
		if errors.Is(err, services.ErrNoCampaign) {
			httpError(w, http.StatusNotFound, "no running campaign for opening %s", openingID)
			return
		}
		if err != nil {
			log.Errorf("failed to cancel campaign for opening %s: %v", openingID, err)
			httpError(w, http.StatusInternalServerError, "failed to cancel campaign")
			return
		}

		deps.Locks.Forget(openingID)
		w.WriteHeader(http.StatusAccepted)
	}
}

func handleCampaigns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := deps.History.GetByOpening(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			log.Errorf("failed to read campaigns: %v", err)
			httpError(w, http.StatusInternalServerError, "failed to read campaigns")
			return
		}
		if len(records) == 0 {
			httpError(w, http.StatusNotFound, "no campaigns for opening %s", chi.URLParam(r, "id"))
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warnf("failed to write response: %v", err)
	}
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]any{"error": fmt.Sprintf(format, args...)})
}
