// Package handler implements the indexing trigger endpoints. Each request
// runs to completion before it is answered; a run is not cancelled when the
// client disconnects.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/report"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/logger"
)

// Runner is the engine API exposed over HTTP.
type Runner interface {
	RunFullReplacement(ctx context.Context, stage model.DataStage) (report.Report, error)
	RunFullReplacementByType(ctx context.Context, stage model.DataStage, contentType model.ContentType) (report.Report, error)
	RunFullReplacementAutoRelease(ctx context.Context, stage model.DataStage) (report.Report, error)
	RunIncrementalUpdate(ctx context.Context, stage model.DataStage) (report.Report, error)
	RunIncrementalUpdateByType(ctx context.Context, stage model.DataStage, contentType model.ContentType) (report.Report, error)
	RunIncrementalUpdateAutoRelease(ctx context.Context, stage model.DataStage) (report.Report, error)
}

// RunLister lists recorded runs, newest first.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

type Handler struct {
	runner Runner
	runs   RunLister
	logger *slog.Logger
}

// New creates a Handler. runs may be nil when no journal is configured.
func New(runner Runner, runs RunLister) *Handler {
	return &Handler{
		runner: runner,
		runs:   runs,
		logger: slog.Default().With("component", "indexing-handler"),
	}
}

// FullReplacement handles POST /indexing.
func (h *Handler) FullReplacement(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.runner.RunFullReplacement)
}

// FullReplacementByType handles POST /indexing/categories/{category}.
func (h *Handler) FullReplacementByType(w http.ResponseWriter, r *http.Request) {
	category := model.ContentType(r.PathValue("category"))
	h.trigger(w, r, func(ctx context.Context, stage model.DataStage) (report.Report, error) {
		return h.runner.RunFullReplacementByType(ctx, stage, category)
	})
}

// FullReplacementAutoRelease handles POST /indexing/autorelease.
func (h *Handler) FullReplacementAutoRelease(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.runner.RunFullReplacementAutoRelease)
}

// IncrementalUpdate handles PUT /indexing.
func (h *Handler) IncrementalUpdate(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.runner.RunIncrementalUpdate)
}

// IncrementalUpdateByType handles PUT /indexing/categories/{category}.
func (h *Handler) IncrementalUpdateByType(w http.ResponseWriter, r *http.Request) {
	category := model.ContentType(r.PathValue("category"))
	h.trigger(w, r, func(ctx context.Context, stage model.DataStage) (report.Report, error) {
		return h.runner.RunIncrementalUpdateByType(ctx, stage, category)
	})
}

// IncrementalUpdateAutoRelease handles PUT /indexing/autorelease.
func (h *Handler) IncrementalUpdateAutoRelease(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.runner.RunIncrementalUpdateAutoRelease)
}

// ListRuns handles GET /indexing/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"runs": []journal.Entry{}, "count": 0})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			h.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	runs, err := h.runs.Recent(r.Context(), limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list runs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []journal.Entry{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

type runFunc func(ctx context.Context, stage model.DataStage) (report.Report, error)

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request, run runFunc) {
	stage, err := model.ParseDataStage(r.URL.Query().Get("databaseScope"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := context.WithoutCancel(r.Context())
	rep, err := run(ctx, stage)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		logger.FromContext(ctx).Warn("run not performed", "path", r.URL.Path, "status", status, "error", err)
		h.writeError(w, status, err.Error())
		return
	}
	if !rep.Successful() {
		h.writeJSON(w, http.StatusInternalServerError, rep)
		return
	}
	h.writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
