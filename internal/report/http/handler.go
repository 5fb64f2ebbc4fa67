// Package reporthttp exposes profit reports over HTTP.
package reporthttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/truemargin/truemargin/internal/platform/httpx"
	"github.com/truemargin/truemargin/internal/profit"
	"github.com/truemargin/truemargin/internal/shared"
)

const requestTimeout = 60 * time.Second

// ReportService resolves and refreshes profit reports.
type ReportService interface {
	Get(ctx context.Context, accountID, storeID int64, rng shared.DateRange) (*profit.Report, error)
	Refresh(ctx context.Context, accountID, storeID int64, rng shared.DateRange) (*profit.Report, error)
	Authorize(ctx context.Context, accountID, storeID int64) error
	Invalidate(ctx context.Context, accountID, storeID int64) error
}

// Enqueuer schedules a background refresh instead of computing inline.
type Enqueuer interface {
	EnqueueRefresh(ctx context.Context, storeID int64, rng shared.DateRange) (string, error)
}

// Handler serves the profit report endpoints.
type Handler struct {
	logger   *slog.Logger
	service  ReportService
	enqueuer Enqueuer
	validate *validator.Validate
}

// NewHandler constructs the report HTTP handler. enqueuer may be nil; refresh
// requests then compute inline.
func NewHandler(logger *slog.Logger, service ReportService, enqueuer Enqueuer) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		enqueuer: enqueuer,
		validate: validator.New(),
	}
}

// MountRoutes registers the report endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/stores/{storeID}/profit", h.handleGet)
	r.Post("/stores/{storeID}/profit/refresh", h.handleRefresh)
	r.Post("/stores/{storeID}/snapshots/invalidate", h.handleInvalidate)
}

type reportQuery struct {
	From string `validate:"required,datetime=2006-01-02"`
	To   string `validate:"required,datetime=2006-01-02"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	accountID, storeID, rng, err := h.parseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.service.Get(ctx, accountID, storeID, rng)
	if err != nil {
		h.logFailure(r, "get report", storeID, err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	accountID, storeID, rng, err := h.parseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if h.enqueuer != nil {
		// Ownership must be settled before the task exists: the worker
		// refreshes whatever store the payload names.
		if err := h.service.Authorize(r.Context(), accountID, storeID); err != nil {
			h.logFailure(r, "authorize refresh", storeID, err)
			httpx.RespondError(w, err)
			return
		}
		taskID, err := h.enqueuer.EnqueueRefresh(r.Context(), storeID, rng)
		if err != nil {
			h.logFailure(r, "enqueue refresh", storeID, err)
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.service.Refresh(ctx, accountID, storeID, rng)
	if err != nil {
		h.logFailure(r, "refresh report", storeID, err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	accountID, storeID, err := h.parseIdentity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := h.service.Invalidate(r.Context(), accountID, storeID); err != nil {
		h.logFailure(r, "invalidate snapshots", storeID, err)
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseIdentity extracts and validates the caller account and store id.
func (h *Handler) parseIdentity(r *http.Request) (accountID, storeID int64, err error) {
	accountID, err = strconv.ParseInt(r.Header.Get("X-Account-ID"), 10, 64)
	if err != nil || accountID <= 0 {
		return 0, 0, fmt.Errorf("%w: missing account identity", httpx.ErrValidation)
	}

	storeID, err = strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
	if err != nil || storeID <= 0 {
		return 0, 0, fmt.Errorf("%w: invalid store id", httpx.ErrValidation)
	}
	return accountID, storeID, nil
}

// parseRequest is parseIdentity plus the validated date range used by the
// report endpoints.
func (h *Handler) parseRequest(r *http.Request) (accountID, storeID int64, rng shared.DateRange, err error) {
	accountID, storeID, err = h.parseIdentity(r)
	if err != nil {
		return 0, 0, shared.DateRange{}, err
	}

	query := reportQuery{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
	if err := h.validate.Struct(query); err != nil {
		return 0, 0, shared.DateRange{}, fmt.Errorf("%w: from and to must be YYYY-MM-DD", httpx.ErrValidation)
	}
	rng, err = shared.ParseDateRange(query.From, query.To)
	if err != nil {
		return 0, 0, shared.DateRange{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return accountID, storeID, rng, nil
}

func (h *Handler) logFailure(r *http.Request, op string, storeID int64, err error) {
	if h.logger == nil {
		return
	}
	h.logger.Error(op,
		slog.Int64("store_id", storeID),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
}
