package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"catnanny-backend/internal/booking"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeProvider builds hosted Checkout sessions for booking deposits.
type StripeProvider struct {
	api           *client.API
	publicBaseURL string
}

// NewStripeProvider returns nil when no secret key is configured; the
// booking service treats a nil provider as payments disabled.
func NewStripeProvider(secretKey, publicBaseURL string) *StripeProvider {
	if strings.TrimSpace(secretKey) == "" {
		return nil
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{
		api:           api,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (p *StripeProvider) CreateDepositSession(ctx context.Context, b booking.Booking, amountCents int64, expiresAt time.Time) (booking.CheckoutSession, error) {
	if p == nil {
		return booking.CheckoutSession{}, errors.New("payments are not configured")
	}

	days := len(b.Dates)
	if days < 1 {
		days = 1
	}
	label := fmt.Sprintf("Cat Sitting Service (%d day(s)) - deposit", days)

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(label),
					},
					UnitAmount: stripe.Int64(amountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.publicBaseURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(p.publicBaseURL + "/payment-cancelled"),
		// Stripe caps session lifetime at 24 hours; the deposit deadline
		// stays inside that ceiling.
		ExpiresAt: stripe.Int64(expiresAt.Unix()),
	}
	params.Context = ctx
	params.AddMetadata("bookingId", b.ID)
	params.AddMetadata("type", "deposit")

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return booking.CheckoutSession{}, fmt.Errorf("stripe create session: %w", err)
	}
	return booking.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}
