package booking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"catnanny-backend/internal/cache"
	"catnanny-backend/internal/dates"
	"catnanny-backend/internal/httpx"
	"catnanny-backend/internal/middleware"
	"catnanny-backend/internal/transport"
	"catnanny-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

const calendarCacheKey = "calendar:events"

type Handler struct {
	service  *Service
	val      *validation.Validator
	log      *slog.Logger
	cache    cache.Cache
	cacheTTL time.Duration
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger, c cache.Cache, cacheTTL time.Duration) *Handler {
	return &Handler{
		service:  service,
		val:      val,
		log:      log,
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("booking create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("booking create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	b, err := h.service.Create(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, dates.ErrInvalidDate):
			log.Warn("booking create: invalid date")
			transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
		case errors.Is(err, ErrPastDate):
			log.Warn("booking create: date in the past")
			transport.WriteError(w, http.StatusBadRequest, ErrPastDate.Error(), nil)
		case errors.Is(err, ErrRangeTooLong):
			log.Warn("booking create: range too long")
			transport.WriteError(w, http.StatusBadRequest, ErrRangeTooLong.Error(), nil)
		default:
			log.Error("booking create: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("booking create: ok",
		slog.String("booking_id", b.ID),
		slog.String("service", b.Service),
		slog.Int("dates", len(b.Dates)),
	)
	transport.WriteJSON(w, http.StatusCreated, b)
}

// Calendar serves the public availability view: approved bookings expanded
// into all-day events, cached briefly.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	if h.cache != nil {
		if payload, ok, err := h.cache.Get(r.Context(), calendarCacheKey); err == nil && ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(payload)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	events, err := h.service.CalendarEvents(ctx)
	if err != nil {
		log.Error("booking calendar: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if h.cache != nil {
		if payload, err := json.Marshal(events); err == nil {
			_ = h.cache.Set(r.Context(), calendarCacheKey, payload, h.cacheTTL)
		}
	}

	transport.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("booking get: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	b, err := h.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("booking get: not found", slog.String("booking_id", id))
			transport.WriteError(w, http.StatusNotFound, "booking not found", nil)
			return
		}
		log.Error("booking get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 20, 100)
	if err != nil {
		log.Warn("admin bookings list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	filter := ListFilter{Status: strings.TrimSpace(r.URL.Query().Get("status"))}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.ListAdmin(ctx, filter, limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		log.Error("admin bookings list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin bookings list: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

// AdminUpdate is the PATCH endpoint: status transitions run through the
// lifecycle (with their emails and deposit side effects), date and note
// edits are plain field updates.
func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin booking update: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req AdminUpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin booking update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("admin booking update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	b, err := h.service.ApplyAdminUpdate(ctx, id, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			log.Warn("admin booking update: not found", slog.String("booking_id", id))
			transport.WriteError(w, http.StatusNotFound, "booking not found", nil)
		case errors.Is(err, ErrInvalidTransition):
			log.Warn("admin booking update: invalid transition", slog.String("booking_id", id))
			transport.WriteError(w, http.StatusConflict, ErrInvalidTransition.Error(), nil)
		case errors.Is(err, dates.ErrInvalidDate):
			log.Warn("admin booking update: invalid date")
			transport.WriteError(w, http.StatusBadRequest, "invalid date", nil)
		default:
			log.Error("admin booking update: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	h.invalidateCalendar(r)

	log.Info("admin booking update: ok", slog.String("booking_id", id), slog.String("status", b.Status))
	transport.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin booking delete: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin booking delete: not found", slog.String("booking_id", id))
			transport.WriteError(w, http.StatusNotFound, "booking not found", nil)
			return
		}
		log.Error("admin booking delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	h.invalidateCalendar(r)

	log.Info("admin booking delete: ok", slog.String("booking_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// SweepExpired backs POST /admin/check-expired-deposits for both the cron
// caller and the on-demand admin button.
func (h *Handler) SweepExpired(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	cancelled, err := h.service.SweepExpiredDeposits(ctx)
	if err != nil {
		log.Error("deposit sweep: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	if len(cancelled) > 0 {
		h.invalidateCalendar(r)
	}

	log.Info("deposit sweep: ok", slog.Int("cancelled", len(cancelled)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cancelledCount":    len(cancelled),
		"cancelledBookings": cancelled,
	})
}

// ListExpired is the dry-run GET variant of the sweep endpoint.
func (h *Handler) ListExpired(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	expired, err := h.service.FindExpiredDeposits(ctx)
	if err != nil {
		log.Error("deposit sweep dry run: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"expiredCount":    len(expired),
		"expiredBookings": expired,
	})
}

func (h *Handler) invalidateCalendar(r *http.Request) {
	if h.cache != nil {
		_ = h.cache.Delete(r.Context(), calendarCacheKey)
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
