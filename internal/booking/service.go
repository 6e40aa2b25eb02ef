package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"catnanny-backend/internal/dates"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const MaxRangeDays = 30

var (
	ErrNotFound          = errors.New("booking not found")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPastDate          = errors.New("booking cannot include past dates")
	ErrRangeTooLong      = errors.New("booking cannot span more than 30 days")
	ErrNotApproved       = errors.New("booking is not approved")
)

var errCheckoutDisabled = errors.New("checkout provider not configured")

// Notifier sends transactional email. Every send is best-effort: failures
// are logged and never fail the operation that triggered them.
type Notifier interface {
	SendBookingApproval(ctx context.Context, b Booking, checkoutURL string) (string, error)
	SendBookingDecline(ctx context.Context, b Booking) (string, error)
	SendBookingCancellation(ctx context.Context, b Booking) (string, error)
	SendBookingAlert(ctx context.Context, b Booking) (string, error)
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutProvider creates a hosted payment page for the deposit amount.
type CheckoutProvider interface {
	CreateDepositSession(ctx context.Context, b Booking, amountCents int64, expiresAt time.Time) (CheckoutSession, error)
}

type Service struct {
	repo     Repository
	location *time.Location
	notifier Notifier
	checkout CheckoutProvider
	log      *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, location *time.Location, notifier Notifier, checkout CheckoutProvider, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		location: location,
		notifier: notifier,
		checkout: checkout,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Booking, error) {
	normalized, err := dates.NormalizeAll(req.Dates)
	if err != nil {
		return Booking{}, err
	}

	now := s.now()
	for _, d := range normalized {
		past, err := dates.IsPast(d, s.location, now)
		if err != nil {
			return Booking{}, err
		}
		if past {
			return Booking{}, ErrPastDate
		}
	}

	span, err := dates.SpanDays(normalized, s.location)
	if err != nil {
		return Booking{}, err
	}
	if span > MaxRangeDays {
		return Booking{}, ErrRangeTooLong
	}

	b := Booking{
		ID:               primitive.NewObjectID().Hex(),
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		Instructions:     req.Instructions,
		Dates:            normalized,
		Notes:            req.Notes,
		Service:          req.Service,
		CatCount:         req.CatCount,
		QuotedPriceCents: req.QuotedPriceCents,
		Status:           StatusPending,
		CreatedAt:        now.In(s.location),
	}

	if err := s.repo.Insert(ctx, b); err != nil {
		return Booking{}, err
	}

	if s.notifier != nil {
		if _, err := s.notifier.SendBookingAlert(ctx, b); err != nil {
			s.log.Warn("booking create: admin alert failed",
				slog.String("booking_id", b.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return b, nil
}

func (s *Service) Get(ctx context.Context, id string) (Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}
	return b, nil
}

func (s *Service) ListAdmin(ctx context.Context, filter ListFilter, limit, offset int64) ([]Booking, int64, error) {
	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, 0, ErrInvalidStatus
	}
	items, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Approve flips pending -> approved atomically, then runs the deposit and
// email side effects best-effort: a checkout or mail failure leaves the
// booking approved without a deposit and is only visible in the logs.
func (s *Service) Approve(ctx context.Context, id string) (Booking, error) {
	b, applied, err := s.repo.UpdateStatusFrom(ctx, id, StatusPending, StatusApproved)
	if err != nil {
		return Booking{}, err
	}
	if !applied {
		if _, err := s.Get(ctx, id); err != nil {
			return Booking{}, err
		}
		return Booking{}, ErrInvalidTransition
	}

	b, depErr := s.attachDeposit(ctx, b)
	if depErr != nil {
		s.log.Warn("booking approve: deposit session failed",
			slog.String("booking_id", b.ID),
			slog.String("error", depErr.Error()),
		)
		return b, nil
	}

	if s.notifier != nil {
		if _, err := s.notifier.SendBookingApproval(ctx, b, b.Deposit.URL); err != nil {
			s.log.Warn("booking approve: approval email failed",
				slog.String("booking_id", b.ID),
				slog.String("email", b.Email),
				slog.String("error", err.Error()),
			)
		}
	}

	return b, nil
}

// Decline is idempotent: a booking that is already declined is left alone
// and no second email goes out.
func (s *Service) Decline(ctx context.Context, id string) (Booking, error) {
	b, applied, err := s.repo.UpdateStatusFrom(ctx, id, StatusPending, StatusDeclined)
	if err != nil {
		return Booking{}, err
	}
	if !applied {
		current, err := s.Get(ctx, id)
		if err != nil {
			return Booking{}, err
		}
		if current.Status == StatusDeclined {
			return current, nil
		}
		return Booking{}, ErrInvalidTransition
	}

	if s.notifier != nil {
		if _, err := s.notifier.SendBookingDecline(ctx, b); err != nil {
			s.log.Warn("booking decline: decline email failed",
				slog.String("booking_id", b.ID),
				slog.String("email", b.Email),
				slog.String("error", err.Error()),
			)
		}
	}

	return b, nil
}

// ApplyAdminUpdate handles the admin PATCH: detail edits first (so a
// subsequent approval email carries them), then the status change with its
// side effects. Setting the status a booking already has is a no-op.
func (s *Service) ApplyAdminUpdate(ctx context.Context, id string, req AdminUpdateRequest) (Booking, error) {
	if len(req.Dates) > 0 || req.Notes != nil {
		normalized, err := dates.NormalizeAll(req.Dates)
		if err != nil {
			return Booking{}, err
		}
		if _, err := s.repo.UpdateDetails(ctx, id, normalized, req.Notes); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				// The conditional update misses both unknown ids and
				// terminal bookings; a lookup tells them apart.
				if _, getErr := s.Get(ctx, id); getErr != nil {
					return Booking{}, getErr
				}
				return Booking{}, ErrInvalidTransition
			}
			return Booking{}, err
		}
	}

	if req.Status == nil {
		return s.Get(ctx, id)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if current.Status == *req.Status {
		return current, nil
	}

	switch *req.Status {
	case StatusApproved:
		return s.Approve(ctx, id)
	case StatusDeclined:
		return s.Decline(ctx, id)
	default:
		updated, applied, err := s.repo.SetStatusIfNotTerminal(ctx, id, *req.Status)
		if err != nil {
			return Booking{}, err
		}
		if !applied {
			return Booking{}, ErrInvalidTransition
		}
		return updated, nil
	}
}

// CreateDepositSession builds (or rebuilds) the hosted checkout session for
// an approved booking and persists the deposit sub-document.
func (s *Service) CreateDepositSession(ctx context.Context, id string) (Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if b.Status != StatusApproved {
		return Booking{}, ErrNotApproved
	}
	return s.attachDeposit(ctx, b)
}

func (s *Service) attachDeposit(ctx context.Context, b Booking) (Booking, error) {
	if s.checkout == nil {
		return b, errCheckoutDisabled
	}

	total := b.TotalCents()
	amount := total / 2
	now := s.now()
	deadline := now.Add(DepositWindow)

	session, err := s.checkout.CreateDepositSession(ctx, b, amount, deadline)
	if err != nil {
		return b, err
	}

	dep := Deposit{
		AmountCents:     amount,
		TotalCents:      total,
		Currency:        "USD",
		StripeSessionID: session.ID,
		URL:             session.URL,
		Status:          DepositPending,
		Deadline:        deadline,
		CreatedAt:       now.In(s.location),
	}

	updated, err := s.repo.AttachDeposit(ctx, b.ID, dep)
	if err != nil {
		return b, err
	}
	return updated, nil
}

// ConfirmDeposit settles the deposit matched by the checkout session id.
// Redelivered webhooks find the deposit already paid and change nothing,
// including paidAt.
func (s *Service) ConfirmDeposit(ctx context.Context, sessionID, paymentIntentID string) (Booking, error) {
	b, applied, err := s.repo.MarkDepositPaid(ctx, sessionID, paymentIntentID, s.now().In(s.location))
	if err != nil {
		return Booking{}, err
	}
	if applied {
		return b, nil
	}

	current, err := s.repo.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}
	// Already paid, or the booking was cancelled before confirmation landed.
	// Either way the stored state wins.
	return current, nil
}

// SweepExpiredDeposits cancels approved bookings whose deposit deadline
// passed unpaid. Each candidate is handled independently; the conditional
// update makes overlapping sweeps harmless.
func (s *Service) SweepExpiredDeposits(ctx context.Context) ([]Booking, error) {
	now := s.now().In(s.location)
	expired, err := s.repo.FindExpiredDeposits(ctx, now)
	if err != nil {
		return nil, err
	}

	cancelled := make([]Booking, 0, len(expired))
	for _, candidate := range expired {
		updated, applied, err := s.repo.CancelExpired(ctx, candidate.ID, now)
		if err != nil {
			s.log.Error("deposit sweep: cancel failed",
				slog.String("booking_id", candidate.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !applied {
			continue
		}

		if s.notifier != nil {
			if _, err := s.notifier.SendBookingCancellation(ctx, updated); err != nil {
				s.log.Warn("deposit sweep: cancellation email failed",
					slog.String("booking_id", updated.ID),
					slog.String("email", updated.Email),
					slog.String("error", err.Error()),
				)
			}
		}

		cancelled = append(cancelled, updated)
	}

	return cancelled, nil
}

// FindExpiredDeposits is the read-only dry run behind the admin GET.
func (s *Service) FindExpiredDeposits(ctx context.Context) ([]Booking, error) {
	return s.repo.FindExpiredDeposits(ctx, s.now().In(s.location))
}

func (s *Service) ListRecent(ctx context.Context, limit int64) ([]Booking, error) {
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) CountAll(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx, ListFilter{})
}

func (s *Service) CountPending(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx, ListFilter{Status: StatusPending})
}
