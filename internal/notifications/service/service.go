package service

import (
	"context"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/notifications/domain"
	"github.com/clytar/clytar-backend/internal/notifications/repository"
	usersdomain "github.com/clytar/clytar-backend/internal/users/domain"
)

const (
	StageBroadcast = "broadcast"
	StageFeedback  = "submit_feedback"

	maxMessageLen = 2000
)

// UserLookup resolves broadcast recipients.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*usersdomain.User, error)
}

type Service struct {
	repo   repository.Repository
	users  UserLookup
	policy *bluemonday.Policy
	log    *zap.Logger
}

func NewService(repo repository.Repository, users UserLookup, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		users:  users,
		policy: bluemonday.StrictPolicy(),
		log:    log,
	}
}

// clean strips markup and surrounding whitespace. Entities escaped by the
// policy are decoded again since messages are rendered as plain text.
func (s *Service) clean(msg string) string {
	out := html.UnescapeString(s.policy.Sanitize(msg))
	return strings.TrimSpace(out)
}

func (s *Service) message(stage, raw string) (string, error) {
	msg := s.clean(raw)
	if msg == "" {
		return "", apperr.Missing(stage, "message")
	}
	if r := []rune(msg); len(r) > maxMessageLen {
		return "", apperr.Invalid(stage, "message", string(r[:32])+"...")
	}
	return msg, nil
}

// Broadcast sends a notification to one user or, with domain.RecipientAll,
// to everyone. Admin only.
func (s *Service) Broadcast(ctx context.Context, actor *usersdomain.User, recipient, message string) (*domain.Notification, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, &apperr.ForbiddenError{Capability: StageBroadcast}
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, apperr.Missing(StageBroadcast, "recipient_id")
	}
	if recipient != domain.RecipientAll {
		if _, err := s.users.GetByID(ctx, recipient); err != nil {
			return nil, apperr.WithStage(err, StageBroadcast)
		}
	}
	msg, err := s.message(StageBroadcast, message)
	if err != nil {
		return nil, err
	}

	n := &domain.Notification{SenderID: actor.ID, RecipientID: recipient, Message: msg}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	s.log.Info("notification sent",
		zap.String("notification_id", n.ID),
		zap.String("recipient_id", recipient),
		zap.String("actor_id", actor.ID),
	)
	return n, nil
}

// ListFor returns the notifications visible to userID, newest first.
func (s *Service) ListFor(ctx context.Context, userID string) ([]domain.Notification, error) {
	list, err := s.repo.ListNotificationsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return list, nil
}

func (s *Service) SubmitFeedback(ctx context.Context, userID, email, message string) (*domain.Feedback, error) {
	msg, err := s.message(StageFeedback, message)
	if err != nil {
		return nil, err
	}
	f := &domain.Feedback{
		UserID:  userID,
		Email:   usersdomain.NormalizeEmail(email),
		Message: msg,
	}
	if err := s.repo.CreateFeedback(ctx, f); err != nil {
		return nil, err
	}
	s.log.Debug("feedback received", zap.String("feedback_id", f.ID), zap.String("user_id", userID))
	return f, nil
}

// ListFeedback is admin only.
func (s *Service) ListFeedback(ctx context.Context, actor *usersdomain.User) ([]domain.Feedback, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, &apperr.ForbiddenError{Capability: "list_feedback"}
	}
	list, err := s.repo.ListFeedback(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Feedback{}
	}
	return list, nil
}
