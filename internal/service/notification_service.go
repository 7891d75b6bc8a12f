package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
)

// Publisher pushes a stored notification to live listeners.
type Publisher interface {
	PublishNotification(ctx context.Context, n *models.Notification) error
}

// NotificationService appends to and reads per-user notification logs.
type NotificationService struct {
	repo      repository.NotificationRepository
	publisher Publisher
	flags     *featureflags.Manager
	now       func() time.Time
}

// NotificationList is a recipient's log with its unread count.
type NotificationList struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unread_count"`
}

func NewNotificationService(
	repo repository.NotificationRepository,
	publisher Publisher,
	flags *featureflags.Manager,
) *NotificationService {
	return &NotificationService{
		repo:      repo,
		publisher: publisher,
		flags:     flags,
		now:       time.Now,
	}
}

// Notify appends a notification for recipient and, when realtime
// notifications are enabled for them, publishes it.
func (s *NotificationService) Notify(ctx context.Context, recipient string, kind models.NotificationType, message string, blogID *string) (*models.Notification, error) {
	n := &models.Notification{
		User:      recipient,
		Type:      kind,
		Message:   message,
		BlogID:    blogID,
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.repo.Append(ctx, n); err != nil {
		return nil, err
	}

	realtime := "off"
	if s.publisher != nil && s.flags.Enabled(featureflags.RealtimeNotifications, recipient) {
		realtime = "ok"
		if err := s.publisher.PublishNotification(ctx, n); err != nil {
			realtime = "error"
			observability.GlobalLogger.WarnContext(ctx, "failed to publish notification",
				slog.String("recipient", recipient),
				slog.String("notification_id", strconv.FormatUint(uint64(n.ID), 10)),
				slog.String("error", err.Error()))
		}
	}
	observability.NotificationsDelivered.WithLabelValues(string(kind), realtime).Inc()
	return n, nil
}

// List returns the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, username string) (*NotificationList, error) {
	items, err := s.repo.ListByUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	unread, err := s.repo.UnreadCount(ctx, username)
	if err != nil {
		return nil, err
	}
	return &NotificationList{Notifications: items, UnreadCount: unread}, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, username string) error {
	_, err := s.repo.MarkAllRead(ctx, username)
	return err
}

func (s *NotificationService) ClearAll(ctx context.Context, username string) error {
	_, err := s.repo.ClearAll(ctx, username)
	return err
}

func (s *NotificationService) UnreadCount(ctx context.Context, username string) (int64, error) {
	return s.repo.UnreadCount(ctx, username)
}

// notifyQuietly is used after a mutation has committed. A failed
// notification is logged and never undoes the mutation.
func notifyQuietly(ctx context.Context, s *NotificationService, recipient string, kind models.NotificationType, message string, blogID *string) {
	if s == nil {
		return
	}
	if _, err := s.Notify(ctx, recipient, kind, message, blogID); err != nil {
		observability.GlobalLogger.ErrorContext(ctx, "failed to append notification",
			slog.String("recipient", recipient),
			slog.String("type", string(kind)),
			slog.String("error", err.Error()))
	}
}
