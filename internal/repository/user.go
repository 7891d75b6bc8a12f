// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"log/slog"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Exists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	MergePersonalInfo(ctx context.Context, username string, fields map[string]string) (models.PersonalInfo, error)
	DeleteCascade(ctx context.Context, username string) ([]string, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}

type userRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, logger: observability.NewRepoLogger("users")}
}

// GetByUsername returns nil, nil when no such user exists.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	defer observability.TrackQuery("select", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageError(err)
	}
	return &user, nil
}

func (r *userRepository) Exists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, storageError(err)
	}
	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("insert", "users")()

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewDuplicateUsernameError(user.Username)
		}
		r.logger.Error(ctx, "create", err, slog.String("username", user.Username))
		return storageError(err)
	}
	r.logger.Write(ctx, "create", slog.String("username", user.Username))
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return storageError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", username)
	}
	r.logger.Write(ctx, "update_password", slog.String("username", username))
	return nil
}

// MergePersonalInfo merges fields into the stored profile inside one
// transaction and returns the merged map.
func (r *userRepository) MergePersonalInfo(ctx context.Context, username string, fields map[string]string) (models.PersonalInfo, error) {
	var merged models.PersonalInfo
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", username)
			}
			return err
		}
		user.PersonalInfo = user.PersonalInfo.Merge(fields)
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		merged = user.PersonalInfo
		return nil
	})
	if err != nil {
		return nil, storageError(err)
	}
	r.logger.Write(ctx, "merge_personal_info", slog.String("username", username), slog.Int("fields", len(fields)))
	return merged, nil
}

// DeleteCascade removes the user's posts, follow edges in both directions,
// notifications and the user row in one transaction. It returns the IDs of
// the deleted posts.
func (r *userRepository) DeleteCascade(ctx context.Context, username string) ([]string, error) {
	ctx, span := observability.StartRepoSpan(ctx, r.db.Dialector.Name(), "delete_cascade", "users")
	defer span.End()

	var postIDs []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("author = ?", username).Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("author = ?", username).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		if err := tx.Where("follower = ? OR following = ?", username, username).Delete(&models.Follow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_name = ?", username).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		res := tx.Where("username = ?", username).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", username)
		}
		return nil
	})
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, storageError(err)
	}
	r.logger.Write(ctx, "delete_cascade", slog.String("username", username), slog.Int("posts", len(postIDs)))
	return postIDs, nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	q := r.db.WithContext(ctx).Order("username ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, storageError(err)
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, storageError(err)
	}
	return count, nil
}
