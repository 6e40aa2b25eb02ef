package message

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrNotFound = errors.New("message not found")

// Notifier forwards a contact message to the site owner. Best-effort, same
// as booking mail.
type Notifier interface {
	SendContactNotification(ctx context.Context, m Message) (string, error)
}

type Service struct {
	repo     Repository
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Message, error) {
	m := Message{
		ID:        primitive.NewObjectID().Hex(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Subject:   req.Subject,
		Body:      req.Message,
		Status:    StatusUnread,
		CreatedAt: s.now(),
	}

	if err := s.repo.Insert(ctx, m); err != nil {
		return Message{}, err
	}

	if s.notifier != nil {
		if _, err := s.notifier.SendContactNotification(ctx, m); err != nil {
			s.log.Warn("message create: owner notification failed",
				slog.String("message_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return m, nil
}

func (s *Service) List(ctx context.Context, page, limit int64) ([]Message, int64, error) {
	offset := (page - 1) * limit
	items, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// MarkRead is idempotent: marking an already-read message succeeds and
// changes nothing.
func (s *Service) MarkRead(ctx context.Context, id string) (Message, error) {
	m, err := s.repo.SetStatus(ctx, id, StatusRead)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}
	return m, nil
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

func (s *Service) ListRecent(ctx context.Context, limit int64) ([]Message, error) {
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) CountAll(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
