package admin

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"catnanny-backend/internal/auth"
	"catnanny-backend/internal/booking"
	"catnanny-backend/internal/config"
	"catnanny-backend/internal/httpx"
	"catnanny-backend/internal/message"
	"catnanny-backend/internal/middleware"
	"catnanny-backend/internal/transport"
	"catnanny-backend/internal/validation"
)

const recentActivityLimit = 15

type Handler struct {
	cfg      *config.Config
	manager  *auth.Manager
	bookings *booking.Service
	messages *message.Service
	val      *validation.Validator
	log      *slog.Logger
}

func NewHandler(cfg *config.Config, manager *auth.Manager, bookings *booking.Service, messages *message.Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		manager:  manager,
		bookings: bookings,
		messages: messages,
		val:      val,
		log:      log,
	}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req LoginRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin login: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	if (h.cfg.AdminPassword == "" && h.cfg.AdminPasswordHash == "") || h.cfg.JWTSecret == "" {
		log.Warn("admin login: not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
		return
	}

	if req.Username != h.cfg.AdminUser || !auth.VerifyAdminPassword(h.cfg.AdminPasswordHash, h.cfg.AdminPassword, req.Password) {
		log.Warn("admin login: invalid credentials", slog.String("username", req.Username))
		transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	if err := h.issueCookies(w); err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}
	log.Info("admin login: ok", slog.String("username", req.Username))
	transport.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	if h.cfg.JWTSecret == "" {
		log.Warn("admin refresh: not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
		return
	}

	refreshCookie, err := r.Cookie("catnanny_refresh")
	if err != nil || refreshCookie.Value == "" {
		log.Warn("admin refresh: missing refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}

	claims, err := h.manager.Parse(refreshCookie.Value)
	if err != nil || claims.Role != "admin" {
		log.Warn("admin refresh: invalid refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	if err := h.issueCookies(w); err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}
	log.Info("admin refresh: ok")
	transport.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	clearAuthCookies(w, h.cfg.CookieSecure)
	log.Info("admin logout: ok")
	transport.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

type StatsResponse struct {
	Messages    int64 `json:"messages"`
	Bookings    int64 `json:"bookings"`
	NewBookings int64 `json:"newBookings"`
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	messages, err := h.messages.CountAll(ctx)
	if err != nil {
		log.Error("admin stats: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	bookings, err := h.bookings.CountAll(ctx)
	if err != nil {
		log.Error("admin stats: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	pending, err := h.bookings.CountPending(ctx)
	if err != nil {
		log.Error("admin stats: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, StatsResponse{
		Messages:    messages,
		Bookings:    bookings,
		NewBookings: pending,
	})
}

type ActivityItem struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecentActivity merges the latest bookings and messages into a single
// newest-first feed for the dashboard.
func (h *Handler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	recentBookings, err := h.bookings.ListRecent(ctx, recentActivityLimit)
	if err != nil {
		log.Error("admin recent activity: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	recentMessages, err := h.messages.ListRecent(ctx, recentActivityLimit)
	if err != nil {
		log.Error("admin recent activity: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	items := make([]ActivityItem, 0, len(recentBookings)+len(recentMessages))
	for _, b := range recentBookings {
		items = append(items, ActivityItem{
			Type:      "booking",
			ID:        b.ID,
			Title:     b.Name,
			Status:    b.Status,
			CreatedAt: b.CreatedAt,
		})
	}
	for _, m := range recentMessages {
		items = append(items, ActivityItem{
			Type:      "message",
			ID:        m.ID,
			Title:     m.Name,
			Status:    m.Status,
			CreatedAt: m.CreatedAt,
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if len(items) > recentActivityLimit {
		items = items[:recentActivityLimit]
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) issueCookies(w http.ResponseWriter) error {
	accessToken, err := h.manager.NewAccessToken("admin")
	if err != nil {
		return err
	}
	refreshToken, err := h.manager.NewRefreshToken("admin")
	if err != nil {
		return err
	}
	setAuthCookies(w, accessToken, refreshToken, h.manager.AccessTTL, h.manager.RefreshTTL, h.cfg.CookieSecure)
	return nil
}

func setAuthCookies(w http.ResponseWriter, access, refresh string, accessTTL, refreshTTL time.Duration, secure bool) {
	accessCookie := &http.Cookie{
		Name:     "catnanny_access",
		Value:    access,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(accessTTL.Seconds()),
	}
	// Scoped to /api, not /api/admin, so the /api/v1/admin/refresh route
	// sees the cookie too.
	refreshCookie := &http.Cookie{
		Name:     "catnanny_refresh",
		Value:    refresh,
		Path:     "/api",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(refreshTTL.Seconds()),
	}
	http.SetCookie(w, accessCookie)
	http.SetCookie(w, refreshCookie)
}

func clearAuthCookies(w http.ResponseWriter, secure bool) {
	expire := time.Now().Add(-1 * time.Hour)
	accessCookie := &http.Cookie{
		Name:     "catnanny_access",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expire,
		MaxAge:   -1,
	}
	refreshCookie := &http.Cookie{
		Name:     "catnanny_refresh",
		Value:    "",
		Path:     "/api",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expire,
		MaxAge:   -1,
	}
	http.SetCookie(w, accessCookie)
	http.SetCookie(w, refreshCookie)
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
