package message

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

type fakeRepo struct {
	messages map[string]Message
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{messages: make(map[string]Message)}
}

func (r *fakeRepo) Insert(ctx context.Context, m Message) error {
	r.messages[m.ID] = m
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (Message, error) {
	m, ok := r.messages[id]
	if !ok {
		return Message{}, mongo.ErrNoDocuments
	}
	return m, nil
}

func (r *fakeRepo) List(ctx context.Context, limit, offset int64) ([]Message, error) {
	items := r.sorted()
	if offset >= int64(len(items)) {
		return nil, nil
	}
	items = items[offset:]
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items, nil
}

func (r *fakeRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(r.messages)), nil
}

func (r *fakeRepo) ListRecent(ctx context.Context, limit int64) ([]Message, error) {
	return r.List(ctx, limit, 0)
}

func (r *fakeRepo) SetStatus(ctx context.Context, id, status string) (Message, error) {
	m, ok := r.messages[id]
	if !ok {
		return Message{}, mongo.ErrNoDocuments
	}
	m.Status = status
	r.messages[id] = m
	return m, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.messages[id]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(r.messages, id)
	return nil
}

func (r *fakeRepo) sorted() []Message {
	out := make([]Message, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

type fakeNotifier struct {
	sent int
	fail bool
}

func (n *fakeNotifier) SendContactNotification(ctx context.Context, m Message) (string, error) {
	if n.fail {
		return "", errors.New("mail failed")
	}
	n.sent++
	return "msg-contact", nil
}

func newTestService(repo *fakeRepo, notifier *fakeNotifier) *Service {
	s := NewService(repo, notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	calls := 0
	s.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}
	return s
}

func TestCreateStoresUnreadAndNotifies(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	s := newTestService(repo, notifier)

	m, err := s.Create(context.Background(), CreateRequest{
		Name:    "Priya Raman",
		Email:   "priya@example.com",
		Subject: "Holiday visits",
		Message: "Are you available over the December holidays?",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.Status != StatusUnread {
		t.Fatalf("status = %q, want %q", m.Status, StatusUnread)
	}
	if m.ID == "" {
		t.Fatalf("expected generated id")
	}
	if notifier.sent != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.sent)
	}
}

func TestCreateMailFailureDoesNotFailMessage(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{fail: true}
	s := newTestService(repo, notifier)

	m, err := s.Create(context.Background(), CreateRequest{
		Name:    "Priya Raman",
		Email:   "priya@example.com",
		Message: "hello",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), m.ID); err != nil {
		t.Fatalf("message not stored: %v", err)
	}
}

func TestListPaginatesNewestFirst(t *testing.T) {
	repo := newFakeRepo()
	s := newTestService(repo, &fakeNotifier{})

	for i := 0; i < 5; i++ {
		if _, err := s.Create(context.Background(), CreateRequest{
			Name:    "Sender",
			Email:   "sender@example.com",
			Message: "hi",
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	page1, total, err := s.List(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("List page 1: %v", err)
	}
	if total != 5 || len(page1) != 2 {
		t.Fatalf("total = %d, page = %d items, want 5/2", total, len(page1))
	}

	page3, _, err := s.List(context.Background(), 3, 2)
	if err != nil {
		t.Fatalf("List page 3: %v", err)
	}
	if len(page3) != 1 {
		t.Fatalf("page 3 = %d items, want 1", len(page3))
	}

	if !page1[0].CreatedAt.After(page1[1].CreatedAt) {
		t.Fatalf("expected newest-first ordering")
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	s := newTestService(repo, &fakeNotifier{})

	created, err := s.Create(context.Background(), CreateRequest{
		Name:    "Sender",
		Email:   "sender@example.com",
		Message: "hi",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := s.MarkRead(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("first MarkRead: %v", err)
	}
	second, err := s.MarkRead(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if first.Status != StatusRead || second.Status != StatusRead {
		t.Fatalf("statuses = %q, %q, want read", first.Status, second.Status)
	}
}

func TestMarkReadUnknownMessage(t *testing.T) {
	s := newTestService(newFakeRepo(), &fakeNotifier{})

	if _, err := s.MarkRead(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteUnknownMessage(t *testing.T) {
	s := newTestService(newFakeRepo(), &fakeNotifier{})

	if err := s.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
