package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"catnanny-backend/internal/booking"
	"catnanny-backend/internal/httpx"
	"catnanny-backend/internal/middleware"
	"catnanny-backend/internal/transport"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const webhookMaxBodyBytes = 65536

type Handler struct {
	bookings      *booking.Service
	webhookSecret string
	log           *slog.Logger
}

func NewHandler(bookings *booking.Service, webhookSecret string, log *slog.Logger) *Handler {
	return &Handler{
		bookings:      bookings,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

type depositRequest struct {
	BookingID string `json:"bookingId"`
}

// CreateDeposit regenerates the hosted checkout link for an approved
// booking, typically after the customer lost the original email.
func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req depositRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil || req.BookingID == "" {
		log.Warn("deposit session: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	b, err := h.bookings.CreateDepositSession(ctx, req.BookingID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrNotFound):
			log.Warn("deposit session: booking not found", slog.String("booking_id", req.BookingID))
			transport.WriteError(w, http.StatusNotFound, "booking not found", nil)
		case errors.Is(err, booking.ErrNotApproved):
			log.Warn("deposit session: booking not approved", slog.String("booking_id", req.BookingID))
			transport.WriteError(w, http.StatusConflict, booking.ErrNotApproved.Error(), nil)
		default:
			log.Error("deposit session: failed", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "payment session failed", nil)
		}
		return
	}

	log.Info("deposit session: ok",
		slog.String("booking_id", b.ID),
		slog.Int64("amount_cents", b.Deposit.AmountCents),
	)
	transport.WriteJSON(w, http.StatusOK, map[string]string{"url": b.Deposit.URL})
}

// Webhook receives Stripe events. The signature check is the only
// authentication, so an unverifiable payload is rejected outright.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxBodyBytes))
	if err != nil {
		log.Warn("payment webhook: body read failed")
		transport.WriteError(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		log.Warn("payment webhook: signature verification failed", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "invalid signature", nil)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleSessionCompleted(r.Context(), log, event)
	case "checkout.session.expired":
		// The sweeper owns expiry; the event is only logged.
		log.Info("payment webhook: session expired", slog.String("event_id", event.ID))
	default:
		log.Info("payment webhook: ignored event", slog.String("type", string(event.Type)))
	}

	transport.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) handleSessionCompleted(ctx context.Context, log *slog.Logger, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		log.Error("payment webhook: bad session payload", slog.String("event_id", event.ID))
		return
	}

	paymentIntentID := ""
	if session.PaymentIntent != nil {
		paymentIntentID = session.PaymentIntent.ID
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	b, err := h.bookings.ConfirmDeposit(ctx, session.ID, paymentIntentID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			log.Warn("payment webhook: unknown session", slog.String("session_id", session.ID))
			return
		}
		log.Error("payment webhook: confirm failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	log.Info("payment webhook: deposit confirmed",
		slog.String("booking_id", b.ID),
		slog.String("session_id", session.ID),
	)
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
