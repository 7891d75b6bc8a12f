package repository

import (
	"context"
	"log/slog"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// NotificationRepository defines persistence operations for the capped
// per-user notification log.
type NotificationRepository interface {
	Append(ctx context.Context, n *models.Notification) (int64, error)
	ListByUser(ctx context.Context, username string) ([]models.Notification, error)
	MarkAllRead(ctx context.Context, username string) (int64, error)
	ClearAll(ctx context.Context, username string) (int64, error)
	UnreadCount(ctx context.Context, username string) (int64, error)
}

type notificationRepository struct {
	db        *gorm.DB
	retention int
	logger    *observability.RepoLogger
}

// NewNotificationRepository returns a repository keeping models.NotificationRetention entries per user.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{
		db:        db,
		retention: models.NotificationRetention,
		logger:    observability.NewRepoLogger("notifications"),
	}
}

// Append inserts n and evicts everything beyond the newest entries for the
// recipient in the same transaction. It returns the number evicted.
func (r *notificationRepository) Append(ctx context.Context, n *models.Notification) (int64, error) {
	defer observability.TrackQuery("append", "notifications")()

	var pruned int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(n).Error; err != nil {
			return err
		}

		var keep []uint
		if err := tx.Model(&models.Notification{}).
			Where("user_name = ?", n.User).
			Order("created_at DESC, id DESC").
			Limit(r.retention).
			Pluck("id", &keep).Error; err != nil {
			return err
		}

		res := tx.Where("user_name = ? AND id NOT IN ?", n.User, keep).Delete(&models.Notification{})
		if res.Error != nil {
			return res.Error
		}
		pruned = res.RowsAffected
		return nil
	})
	if err != nil {
		r.logger.Error(ctx, "append", err, slog.String("user_name", n.User))
		return 0, storageError(err)
	}

	if pruned > 0 {
		observability.NotificationsPruned.Add(float64(pruned))
	}
	cache.InvalidateUnread(ctx, n.User)
	return pruned, nil
}

// ListByUser returns the recipient's notifications, newest first.
func (r *notificationRepository) ListByUser(ctx context.Context, username string) ([]models.Notification, error) {
	var items []models.Notification
	if err := r.db.WithContext(ctx).
		Where("user_name = ?", username).
		Order("created_at DESC, id DESC").
		Find(&items).Error; err != nil {
		return nil, storageError(err)
	}
	return items, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, username string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_name = ? AND read = ?", username, false).
		Update("read", true)
	if res.Error != nil {
		return 0, storageError(res.Error)
	}
	cache.InvalidateUnread(ctx, username)
	return res.RowsAffected, nil
}

func (r *notificationRepository) ClearAll(ctx context.Context, username string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_name = ?", username).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, storageError(res.Error)
	}
	cache.InvalidateUnread(ctx, username)
	r.logger.Write(ctx, "clear", slog.String("user_name", username), slog.Int64("count", res.RowsAffected))
	return res.RowsAffected, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, username string) (int64, error) {
	var count int64
	err := cache.Aside(ctx, cache.UnreadCountKey(username), &count, cache.UnreadCountTTL, func() error {
		if err := r.db.WithContext(ctx).Model(&models.Notification{}).
			Where("user_name = ? AND read = ?", username, false).
			Count(&count).Error; err != nil {
			return storageError(err)
		}
		return nil
	})
	return count, err
}
