package booking

import "time"

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusDeclined  = "declined"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"

	DepositPending = "pending"
	DepositPaid    = "paid"
	DepositExpired = "expired"

	ServiceStandardVisit  = "Standard Visit"
	ServiceExtendedVisit  = "Extended Visit"
	ServiceVetAppointment = "Vet Appointment"

	// PricePerDayCents is the authoritative rate; client-quoted totals are
	// display-only and recomputed from this at approval.
	PricePerDayCents int64 = 2500

	// DepositWindow stays under the payment provider's 24-hour checkout
	// session ceiling.
	DepositWindow = 23 * time.Hour

	ExpiredDepositReason = "deposit not paid within 23 hours"
)

var validStatuses = map[string]struct{}{
	StatusPending:   {},
	StatusApproved:  {},
	StatusDeclined:  {},
	StatusCancelled: {},
	StatusCompleted: {},
}

var terminalStatuses = map[string]struct{}{
	StatusDeclined:  {},
	StatusCancelled: {},
	StatusCompleted: {},
}

var validServices = map[string]struct{}{
	ServiceStandardVisit:  {},
	ServiceExtendedVisit:  {},
	ServiceVetAppointment: {},
}

func IsValidStatus(value string) bool {
	_, ok := validStatuses[value]
	return ok
}

func IsTerminalStatus(value string) bool {
	_, ok := terminalStatuses[value]
	return ok
}

func IsValidService(value string) bool {
	_, ok := validServices[value]
	return ok
}

type Deposit struct {
	AmountCents           int64      `bson:"amountCents" json:"amountCents"`
	TotalCents            int64      `bson:"totalCents" json:"totalCents"`
	Currency              string     `bson:"currency" json:"currency"`
	StripeSessionID       string     `bson:"stripeSessionId" json:"stripeSessionId"`
	URL                   string     `bson:"url" json:"url"`
	Status                string     `bson:"status" json:"status"`
	Deadline              time.Time  `bson:"deadline" json:"deadline"`
	PaidAt                *time.Time `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	StripePaymentIntentID string     `bson:"stripePaymentIntentId,omitempty" json:"stripePaymentIntentId,omitempty"`
	CreatedAt             time.Time  `bson:"createdAt" json:"createdAt"`
}

type Booking struct {
	ID                 string     `bson:"_id,omitempty" json:"id"`
	Name               string     `bson:"name" json:"name"`
	Email              string     `bson:"email" json:"email"`
	Phone              string     `bson:"phone" json:"phone"`
	Address            string     `bson:"address" json:"address"`
	Instructions       string     `bson:"instructions,omitempty" json:"instructions,omitempty"`
	Dates              []string   `bson:"dates" json:"dates"`
	Notes              string     `bson:"notes,omitempty" json:"notes,omitempty"`
	Service            string     `bson:"service" json:"service"`
	CatCount           int        `bson:"catCount" json:"catCount"`
	QuotedPriceCents   int64      `bson:"quotedPriceCents" json:"quotedPriceCents"`
	Status             string     `bson:"status" json:"status"`
	Deposit            *Deposit   `bson:"deposit,omitempty" json:"deposit,omitempty"`
	CancelledAt        *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CancellationReason string     `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	CreatedAt          time.Time  `bson:"createdAt" json:"createdAt"`
}

// TotalCents is the authoritative price: $25 per requested date, minimum
// one day. The span between dates does not matter, only the count.
func (b Booking) TotalCents() int64 {
	days := len(b.Dates)
	if days < 1 {
		days = 1
	}
	return PricePerDayCents * int64(days)
}

type CreateRequest struct {
	Name             string   `json:"name" validate:"required,max=100"`
	Email            string   `json:"email" validate:"required,email,max=100"`
	Phone            string   `json:"phone" validate:"required,phone"`
	Address          string   `json:"address" validate:"required,max=200"`
	Instructions     string   `json:"instructions" validate:"max=1000"`
	Dates            []string `json:"dates" validate:"required,min=1,dive,required"`
	Notes            string   `json:"notes" validate:"max=500"`
	Service          string   `json:"service" validate:"required,oneof='Standard Visit' 'Extended Visit' 'Vet Appointment'"`
	CatCount         int      `json:"catCount" validate:"required,gte=1,lte=10"`
	QuotedPriceCents int64    `json:"quotedPriceCents" validate:"gte=0"`
}

type AdminUpdateRequest struct {
	Status *string  `json:"status" validate:"omitempty,oneof=pending approved declined cancelled completed"`
	Dates  []string `json:"dates" validate:"omitempty,min=1,dive,required"`
	Notes  *string  `json:"notes" validate:"omitempty,max=500"`
}

type ListFilter struct {
	Status string
}
