package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type fakeRepo struct {
	bookings map[string]Booking
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{bookings: make(map[string]Booking)}
}

func cloneBooking(b Booking) Booking {
	out := b
	if b.Deposit != nil {
		dep := *b.Deposit
		out.Deposit = &dep
	}
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		out.CancelledAt = &at
	}
	return out
}

func (r *fakeRepo) Insert(ctx context.Context, b Booking) error {
	r.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return Booking{}, mongo.ErrNoDocuments
	}
	return cloneBooking(b), nil
}

func (r *fakeRepo) GetBySessionID(ctx context.Context, sessionID string) (Booking, error) {
	for _, b := range r.bookings {
		if b.Deposit != nil && b.Deposit.StripeSessionID == sessionID {
			return cloneBooking(b), nil
		}
	}
	return Booking{}, mongo.ErrNoDocuments
}

func (r *fakeRepo) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Booking, error) {
	items := r.all(filter)
	if offset >= int64(len(items)) {
		return nil, nil
	}
	items = items[offset:]
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items, nil
}

func (r *fakeRepo) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return int64(len(r.all(filter))), nil
}

func (r *fakeRepo) ListApproved(ctx context.Context) ([]Booking, error) {
	return r.all(ListFilter{Status: StatusApproved}), nil
}

func (r *fakeRepo) ListRecent(ctx context.Context, limit int64) ([]Booking, error) {
	items := r.all(ListFilter{})
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.bookings[id]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(r.bookings, id)
	return nil
}

func (r *fakeRepo) UpdateStatusFrom(ctx context.Context, id, from, to string) (Booking, bool, error) {
	b, ok := r.bookings[id]
	if !ok || b.Status != from {
		return Booking{}, false, nil
	}
	b.Status = to
	r.bookings[id] = b
	return cloneBooking(b), true, nil
}

func (r *fakeRepo) SetStatusIfNotTerminal(ctx context.Context, id, status string) (Booking, bool, error) {
	b, ok := r.bookings[id]
	if !ok || IsTerminalStatus(b.Status) {
		return Booking{}, false, nil
	}
	b.Status = status
	r.bookings[id] = b
	return cloneBooking(b), true, nil
}

func (r *fakeRepo) UpdateDetails(ctx context.Context, id string, dates []string, notes *string) (Booking, error) {
	b, ok := r.bookings[id]
	if !ok || IsTerminalStatus(b.Status) {
		return Booking{}, mongo.ErrNoDocuments
	}
	if len(dates) > 0 {
		b.Dates = dates
	}
	if notes != nil {
		b.Notes = *notes
	}
	r.bookings[id] = b
	return cloneBooking(b), nil
}

func (r *fakeRepo) AttachDeposit(ctx context.Context, id string, dep Deposit) (Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return Booking{}, mongo.ErrNoDocuments
	}
	b.Deposit = &dep
	r.bookings[id] = b
	return cloneBooking(b), nil
}

func (r *fakeRepo) MarkDepositPaid(ctx context.Context, sessionID, paymentIntentID string, now time.Time) (Booking, bool, error) {
	for id, b := range r.bookings {
		if b.Deposit == nil || b.Deposit.StripeSessionID != sessionID || b.Deposit.Status != DepositPending || b.Status != StatusApproved {
			continue
		}
		dep := *b.Deposit
		dep.Status = DepositPaid
		dep.PaidAt = &now
		dep.StripePaymentIntentID = paymentIntentID
		b.Deposit = &dep
		r.bookings[id] = b
		return cloneBooking(b), true, nil
	}
	return Booking{}, false, nil
}

func isExpired(b Booking, now time.Time) bool {
	return b.Status == StatusApproved &&
		b.Deposit != nil &&
		b.Deposit.Status == DepositPending &&
		b.Deposit.Deadline.Before(now)
}

func (r *fakeRepo) FindExpiredDeposits(ctx context.Context, now time.Time) ([]Booking, error) {
	var out []Booking
	for _, b := range r.bookings {
		if isExpired(b, now) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) CancelExpired(ctx context.Context, id string, now time.Time) (Booking, bool, error) {
	b, ok := r.bookings[id]
	if !ok || !isExpired(b, now) {
		return Booking{}, false, nil
	}
	dep := *b.Deposit
	dep.Status = DepositExpired
	b.Deposit = &dep
	b.Status = StatusCancelled
	at := now
	b.CancelledAt = &at
	b.CancellationReason = ExpiredDepositReason
	r.bookings[id] = b
	return cloneBooking(b), true, nil
}

func (r *fakeRepo) all(filter ListFilter) []Booking {
	var out []Booking
	for _, b := range r.bookings {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeNotifier struct {
	approvals     int
	declines      int
	cancellations int
	alerts        int
	lastCheckout  string
	fail          bool
}

func (n *fakeNotifier) SendBookingApproval(ctx context.Context, b Booking, checkoutURL string) (string, error) {
	if n.fail {
		return "", errors.New("mail failed")
	}
	n.approvals++
	n.lastCheckout = checkoutURL
	return "msg-approval", nil
}

func (n *fakeNotifier) SendBookingDecline(ctx context.Context, b Booking) (string, error) {
	if n.fail {
		return "", errors.New("mail failed")
	}
	n.declines++
	return "msg-decline", nil
}

func (n *fakeNotifier) SendBookingCancellation(ctx context.Context, b Booking) (string, error) {
	if n.fail {
		return "", errors.New("mail failed")
	}
	n.cancellations++
	return "msg-cancellation", nil
}

func (n *fakeNotifier) SendBookingAlert(ctx context.Context, b Booking) (string, error) {
	if n.fail {
		return "", errors.New("mail failed")
	}
	n.alerts++
	return "msg-alert", nil
}

type fakeCheckout struct {
	sessions    int
	lastAmount  int64
	lastExpires time.Time
	fail        bool
}

func (c *fakeCheckout) CreateDepositSession(ctx context.Context, b Booking, amountCents int64, expiresAt time.Time) (CheckoutSession, error) {
	if c.fail {
		return CheckoutSession{}, errors.New("checkout unavailable")
	}
	c.sessions++
	c.lastAmount = amountCents
	c.lastExpires = expiresAt
	id := fmt.Sprintf("cs_test_%d", c.sessions)
	return CheckoutSession{ID: id, URL: "https://checkout.example.com/" + id}, nil
}

type testEnv struct {
	service  *Service
	repo     *fakeRepo
	notifier *fakeNotifier
	checkout *fakeCheckout
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:     newFakeRepo(),
		notifier: &fakeNotifier{},
		checkout: &fakeCheckout{},
		now:      time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
	env.service = NewService(env.repo, time.UTC, env.notifier, env.checkout, slog.New(slog.NewTextHandler(io.Discard, nil)))
	env.service.now = func() time.Time { return env.now }
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func validCreateRequest(dates ...string) CreateRequest {
	return CreateRequest{
		Name:     "Dana Whitfield",
		Email:    "dana@example.com",
		Phone:    "+1 416 555 0188",
		Address:  "12 Birchmount Rd, Toronto",
		Dates:    dates,
		Service:  ServiceStandardVisit,
		CatCount: 2,
	}
}

func TestCreateStoresPendingBooking(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10", "2026-09-11"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != StatusPending {
		t.Fatalf("status = %q, want %q", b.Status, StatusPending)
	}
	if b.ID == "" {
		t.Fatalf("expected generated id")
	}
	if env.notifier.alerts != 1 {
		t.Fatalf("admin alerts = %d, want 1", env.notifier.alerts)
	}

	stored, err := env.repo.GetByID(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != StatusPending {
		t.Fatalf("stored status = %q, want %q", stored.Status, StatusPending)
	}
}

func TestCreateNormalizesSlashDates(t *testing.T) {
	env := newTestEnv(t)

	b, err := env.service.Create(context.Background(), validCreateRequest("09/10/2026", "2026-09-11"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Dates[0] != "2026-09-10" || b.Dates[1] != "2026-09-11" {
		t.Fatalf("dates = %v, want canonical form", b.Dates)
	}
}

func TestCreateRejectsPastDate(t *testing.T) {
	env := newTestEnv(t)

	// Today is never past, yesterday is.
	if _, err := env.service.Create(context.Background(), validCreateRequest("2026-09-01")); err != nil {
		t.Fatalf("Create with today: %v", err)
	}
	_, err := env.service.Create(context.Background(), validCreateRequest("2026-08-31"))
	if !errors.Is(err, ErrPastDate) {
		t.Fatalf("err = %v, want ErrPastDate", err)
	}
}

func TestCreateRejectsLongRange(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10", "2026-10-20"))
	if !errors.Is(err, ErrRangeTooLong) {
		t.Fatalf("err = %v, want ErrRangeTooLong", err)
	}
}

func TestCreateMailFailureDoesNotFailBooking(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.fail = true

	b, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.repo.GetByID(context.Background(), b.ID); err != nil {
		t.Fatalf("booking not stored: %v", err)
	}
}

func TestApproveAttachesDepositAndSendsEmail(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10", "2026-09-11"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	approved, err := env.service.Approve(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("status = %q, want %q", approved.Status, StatusApproved)
	}
	if approved.Deposit == nil {
		t.Fatalf("expected deposit")
	}
	if approved.Deposit.TotalCents != 5000 {
		t.Fatalf("total = %d, want 5000", approved.Deposit.TotalCents)
	}
	if approved.Deposit.AmountCents != 2500 {
		t.Fatalf("deposit = %d, want 2500", approved.Deposit.AmountCents)
	}
	if approved.Deposit.Status != DepositPending {
		t.Fatalf("deposit status = %q, want %q", approved.Deposit.Status, DepositPending)
	}

	wantDeadline := env.now.Add(DepositWindow)
	if !approved.Deposit.Deadline.Equal(wantDeadline) {
		t.Fatalf("deadline = %v, want %v", approved.Deposit.Deadline, wantDeadline)
	}
	if !env.checkout.lastExpires.Equal(wantDeadline) {
		t.Fatalf("checkout expiry = %v, want %v", env.checkout.lastExpires, wantDeadline)
	}

	if env.notifier.approvals != 1 {
		t.Fatalf("approval emails = %d, want 1", env.notifier.approvals)
	}
	if env.notifier.lastCheckout != approved.Deposit.URL {
		t.Fatalf("email checkout url = %q, want %q", env.notifier.lastCheckout, approved.Deposit.URL)
	}
}

func TestApprovePriceIgnoresClientQuote(t *testing.T) {
	env := newTestEnv(t)

	req := validCreateRequest("2026-09-10", "2026-09-11", "2026-09-12")
	req.QuotedPriceCents = 100 // client claims $1
	created, err := env.service.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	approved, err := env.service.Approve(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Deposit.TotalCents != 7500 {
		t.Fatalf("total = %d, want 7500", approved.Deposit.TotalCents)
	}
	if approved.Deposit.AmountCents != 3750 {
		t.Fatalf("deposit = %d, want 3750", approved.Deposit.AmountCents)
	}
}

func TestApproveRejectsNonPending(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.service.Decline(context.Background(), created.ID); err != nil {
		t.Fatalf("Decline: %v", err)
	}

	_, err = env.service.Approve(context.Background(), created.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestApproveUnknownBooking(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Approve(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApproveSurvivesCheckoutFailure(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.fail = true

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	approved, err := env.service.Approve(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("status = %q, want %q", approved.Status, StatusApproved)
	}
	if approved.Deposit != nil {
		t.Fatalf("deposit should not be attached when checkout fails")
	}
	if env.notifier.approvals != 0 {
		t.Fatalf("approval emails = %d, want 0", env.notifier.approvals)
	}
}

func TestApproveWithoutCheckoutProvider(t *testing.T) {
	env := newTestEnv(t)
	env.service.checkout = nil

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	approved, err := env.service.Approve(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("status = %q, want %q", approved.Status, StatusApproved)
	}
	if approved.Deposit != nil {
		t.Fatalf("deposit should not be attached without a payment provider")
	}
	if env.notifier.approvals != 0 {
		t.Fatalf("approval emails = %d, want 0", env.notifier.approvals)
	}
}

func TestDeclineIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := env.service.Decline(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("first Decline: %v", err)
	}
	second, err := env.service.Decline(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("second Decline: %v", err)
	}
	if first.Status != StatusDeclined || second.Status != StatusDeclined {
		t.Fatalf("statuses = %q, %q, want declined", first.Status, second.Status)
	}
	if env.notifier.declines != 1 {
		t.Fatalf("decline emails = %d, want exactly 1", env.notifier.declines)
	}
}

func TestApplyAdminUpdateSameStatusIsNoOp(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.service.Approve(context.Background(), created.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	status := StatusApproved
	updated, err := env.service.ApplyAdminUpdate(context.Background(), created.ID, AdminUpdateRequest{Status: &status})
	if err != nil {
		t.Fatalf("ApplyAdminUpdate: %v", err)
	}
	if updated.Status != StatusApproved {
		t.Fatalf("status = %q, want %q", updated.Status, StatusApproved)
	}
	if env.checkout.sessions != 1 {
		t.Fatalf("checkout sessions = %d, want 1 (no new session on no-op)", env.checkout.sessions)
	}
	if env.notifier.approvals != 1 {
		t.Fatalf("approval emails = %d, want 1", env.notifier.approvals)
	}
}

func TestApplyAdminUpdateRejectsTerminalTransition(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.service.Decline(context.Background(), created.ID); err != nil {
		t.Fatalf("Decline: %v", err)
	}

	status := StatusCompleted
	_, err = env.service.ApplyAdminUpdate(context.Background(), created.ID, AdminUpdateRequest{Status: &status})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestApplyAdminUpdateEditsDetails(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	notes := "two feedings per day"
	updated, err := env.service.ApplyAdminUpdate(context.Background(), created.ID, AdminUpdateRequest{
		Dates: []string{"09/12/2026", "09/13/2026"},
		Notes: &notes,
	})
	if err != nil {
		t.Fatalf("ApplyAdminUpdate: %v", err)
	}
	if len(updated.Dates) != 2 || updated.Dates[0] != "2026-09-12" {
		t.Fatalf("dates = %v, want normalized 2026-09-12, 2026-09-13", updated.Dates)
	}
	if updated.Notes != notes {
		t.Fatalf("notes = %q, want %q", updated.Notes, notes)
	}
	if updated.Status != StatusPending {
		t.Fatalf("status changed unexpectedly to %q", updated.Status)
	}
}

func TestApplyAdminUpdateRejectsEditsOnTerminal(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.service.Decline(context.Background(), created.ID); err != nil {
		t.Fatalf("Decline: %v", err)
	}

	_, err = env.service.ApplyAdminUpdate(context.Background(), created.ID, AdminUpdateRequest{
		Dates: []string{"2026-12-01"},
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	stored, err := env.service.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.Dates) != 1 || stored.Dates[0] != "2026-09-10" {
		t.Fatalf("dates = %v, want original 2026-09-10", stored.Dates)
	}

	_, err = env.service.ApplyAdminUpdate(context.Background(), primitive.NewObjectID().Hex(), AdminUpdateRequest{
		Dates: []string{"2026-12-01"},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateDepositSessionRequiresApproved(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = env.service.CreateDepositSession(context.Background(), created.ID)
	if !errors.Is(err, ErrNotApproved) {
		t.Fatalf("err = %v, want ErrNotApproved", err)
	}
}

func TestConfirmDepositMarksPaid(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10", "2026-09-11"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	approved, err := env.service.Approve(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	env.advance(2 * time.Hour)
	paid, err := env.service.ConfirmDeposit(context.Background(), approved.Deposit.StripeSessionID, "pi_123")
	if err != nil {
		t.Fatalf("ConfirmDeposit: %v", err)
	}
	if paid.Deposit.Status != DepositPaid {
		t.Fatalf("deposit status = %q, want %q", paid.Deposit.Status, DepositPaid)
	}
	if paid.Deposit.PaidAt == nil || !paid.Deposit.PaidAt.Equal(env.now) {
		t.Fatalf("paidAt = %v, want %v", paid.Deposit.PaidAt, env.now)
	}
	if paid.Deposit.StripePaymentIntentID != "pi_123" {
		t.Fatalf("payment intent = %q, want pi_123", paid.Deposit.StripePaymentIntentID)
	}
}

func TestConfirmDepositRedeliveryLeavesPaidAt(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	approved, err := env.service.Approve(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	env.advance(time.Hour)
	first, err := env.service.ConfirmDeposit(context.Background(), approved.Deposit.StripeSessionID, "pi_123")
	if err != nil {
		t.Fatalf("first ConfirmDeposit: %v", err)
	}
	firstPaidAt := *first.Deposit.PaidAt

	env.advance(3 * time.Hour)
	second, err := env.service.ConfirmDeposit(context.Background(), approved.Deposit.StripeSessionID, "pi_123")
	if err != nil {
		t.Fatalf("second ConfirmDeposit: %v", err)
	}
	if second.Deposit.Status != DepositPaid {
		t.Fatalf("deposit status = %q, want %q", second.Deposit.Status, DepositPaid)
	}
	if !second.Deposit.PaidAt.Equal(firstPaidAt) {
		t.Fatalf("paidAt changed on redelivery: %v -> %v", firstPaidAt, second.Deposit.PaidAt)
	}
}

func TestConfirmDepositUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.ConfirmDeposit(context.Background(), "cs_missing", "pi_x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSweepCancelsUnpaidAfterDeadline(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.service.Approve(context.Background(), created.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// 24 hours later the 23-hour window has passed.
	env.advance(24 * time.Hour)
	cancelled, err := env.service.SweepExpiredDeposits(context.Background())
	if err != nil {
		t.Fatalf("SweepExpiredDeposits: %v", err)
	}
	if len(cancelled) != 1 {
		t.Fatalf("cancelled = %d, want 1", len(cancelled))
	}

	b := cancelled[0]
	if b.Status != StatusCancelled {
		t.Fatalf("status = %q, want %q", b.Status, StatusCancelled)
	}
	if b.Deposit.Status != DepositExpired {
		t.Fatalf("deposit status = %q, want %q", b.Deposit.Status, DepositExpired)
	}
	if b.CancellationReason != ExpiredDepositReason {
		t.Fatalf("reason = %q, want %q", b.CancellationReason, ExpiredDepositReason)
	}
	if b.CancelledAt == nil {
		t.Fatalf("cancelledAt not set")
	}
	if env.notifier.cancellations != 1 {
		t.Fatalf("cancellation emails = %d, want 1", env.notifier.cancellations)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.service.Approve(context.Background(), created.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	env.advance(24 * time.Hour)
	if _, err := env.service.SweepExpiredDeposits(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	again, err := env.service.SweepExpiredDeposits(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second sweep cancelled %d bookings, want 0", len(again))
	}
	if env.notifier.cancellations != 1 {
		t.Fatalf("cancellation emails = %d, want exactly 1", env.notifier.cancellations)
	}
}

func TestSweepSkipsPaidDeposits(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	approved, err := env.service.Approve(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := env.service.ConfirmDeposit(context.Background(), approved.Deposit.StripeSessionID, "pi_1"); err != nil {
		t.Fatalf("ConfirmDeposit: %v", err)
	}

	env.advance(48 * time.Hour)
	cancelled, err := env.service.SweepExpiredDeposits(context.Background())
	if err != nil {
		t.Fatalf("SweepExpiredDeposits: %v", err)
	}
	if len(cancelled) != 0 {
		t.Fatalf("cancelled = %d, want 0", len(cancelled))
	}

	b, err := env.service.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.Status != StatusApproved || b.Deposit.Status != DepositPaid {
		t.Fatalf("booking = %q/%q, want approved/paid", b.Status, b.Deposit.Status)
	}
}

func TestSweepBeforeDeadlineDoesNothing(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.service.Approve(context.Background(), created.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	env.advance(22 * time.Hour)
	cancelled, err := env.service.SweepExpiredDeposits(context.Background())
	if err != nil {
		t.Fatalf("SweepExpiredDeposits: %v", err)
	}
	if len(cancelled) != 0 {
		t.Fatalf("cancelled = %d, want 0 before the deadline", len(cancelled))
	}
}

func TestConfirmAfterCancellationKeepsCancelled(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	approved, err := env.service.Approve(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	env.advance(24 * time.Hour)
	if _, err := env.service.SweepExpiredDeposits(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	// A late webhook for the expired session must not resurrect the booking.
	b, err := env.service.ConfirmDeposit(context.Background(), approved.Deposit.StripeSessionID, "pi_late")
	if err != nil {
		t.Fatalf("ConfirmDeposit: %v", err)
	}
	if b.Status != StatusCancelled {
		t.Fatalf("status = %q, want %q", b.Status, StatusCancelled)
	}
	if b.Deposit.Status != DepositExpired {
		t.Fatalf("deposit status = %q, want %q", b.Deposit.Status, DepositExpired)
	}
}

func TestConfirmDepositSkipsManuallyCancelledBooking(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	approved, err := env.service.Approve(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	status := StatusCancelled
	if _, err := env.service.ApplyAdminUpdate(context.Background(), created.ID, AdminUpdateRequest{Status: &status}); err != nil {
		t.Fatalf("ApplyAdminUpdate: %v", err)
	}

	// The session is still live on Stripe's side, but the booking was
	// cancelled first. The deposit must stay unpaid.
	b, err := env.service.ConfirmDeposit(context.Background(), approved.Deposit.StripeSessionID, "pi_after_cancel")
	if err != nil {
		t.Fatalf("ConfirmDeposit: %v", err)
	}
	if b.Status != StatusCancelled {
		t.Fatalf("status = %q, want %q", b.Status, StatusCancelled)
	}
	if b.Deposit.Status != DepositPending {
		t.Fatalf("deposit status = %q, want %q", b.Deposit.Status, DepositPending)
	}
	if b.Deposit.PaidAt != nil {
		t.Fatalf("paidAt should stay unset")
	}
}

func TestListAdminFiltersByStatus(t *testing.T) {
	env := newTestEnv(t)

	a, err := env.service.Create(context.Background(), validCreateRequest("2026-09-10"))
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if _, err := env.service.Create(context.Background(), validCreateRequest("2026-09-12")); err != nil {
		t.Fatalf("Create b: %v", err)
	}
	if _, err := env.service.Approve(context.Background(), a.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	items, total, err := env.service.ListAdmin(context.Background(), ListFilter{Status: StatusApproved}, 20, 0)
	if err != nil {
		t.Fatalf("ListAdmin: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("total = %d, items = %d, want 1/1", total, len(items))
	}
	if items[0].ID != a.ID {
		t.Fatalf("item = %q, want %q", items[0].ID, a.ID)
	}

	if _, _, err := env.service.ListAdmin(context.Background(), ListFilter{Status: "bogus"}, 20, 0); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestDeleteUnknownBooking(t *testing.T) {
	env := newTestEnv(t)

	if err := env.service.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
