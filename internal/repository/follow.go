package repository

import (
	"context"
	"log/slog"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowCounts is the pair of counters shown on a profile.
type FollowCounts struct {
	Followers int64 `json:"followers_count"`
	Following int64 `json:"following_count"`
}

// FollowRepository defines persistence operations for follow edges.
type FollowRepository interface {
	Exists(ctx context.Context, follower, following string) (bool, error)
	Toggle(ctx context.Context, follower, following string) (bool, error)
	CreateIfAbsent(ctx context.Context, follower, following string) (bool, error)
	Counts(ctx context.Context, username string) (FollowCounts, error)
	ListFollowing(ctx context.Context, username string) ([]string, error)
	ListFollowers(ctx context.Context, username string) ([]string, error)
}

type followRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewFollowRepository returns a new FollowRepository implementation.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db, logger: observability.NewRepoLogger("follows")}
}

func (r *followRepository) Exists(ctx context.Context, follower, following string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower = ? AND following = ?", follower, following).
		Count(&count).Error; err != nil {
		return false, storageError(err)
	}
	return count > 0, nil
}

// Toggle removes the edge if present, otherwise creates it. It returns true
// when the edge now exists.
func (r *followRepository) Toggle(ctx context.Context, follower, following string) (bool, error) {
	defer observability.TrackQuery("toggle", "follows")()

	var followed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower = ? AND following = ?", follower, following).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			followed = false
			return nil
		}
		if err := tx.Create(&models.Follow{Follower: follower, Following: following}).Error; err != nil {
			return err
		}
		followed = true
		return nil
	})
	if err != nil {
		// A concurrent toggle inserted the same edge first.
		if isUniqueViolation(err) {
			return true, nil
		}
		return false, storageError(err)
	}

	cache.InvalidateFollowCounts(ctx, follower, following)
	r.logger.Write(ctx, "toggle", slog.String("follower", follower), slog.String("following", following), slog.Bool("followed", followed))
	return followed, nil
}

// CreateIfAbsent inserts the edge unless it already exists.
func (r *followRepository) CreateIfAbsent(ctx context.Context, follower, following string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{Follower: follower, Following: following})
	if res.Error != nil {
		return false, storageError(res.Error)
	}
	if res.RowsAffected > 0 {
		cache.InvalidateFollowCounts(ctx, follower, following)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) Counts(ctx context.Context, username string) (FollowCounts, error) {
	var counts FollowCounts
	err := cache.Aside(ctx, cache.FollowCountsKey(username), &counts, cache.FollowCountsTTL, func() error {
		db := r.db.WithContext(ctx)
		if err := db.Model(&models.Follow{}).Where("following = ?", username).Count(&counts.Followers).Error; err != nil {
			return storageError(err)
		}
		if err := db.Model(&models.Follow{}).Where("follower = ?", username).Count(&counts.Following).Error; err != nil {
			return storageError(err)
		}
		return nil
	})
	return counts, err
}

func (r *followRepository) ListFollowing(ctx context.Context, username string) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower = ?", username).
		Order("following ASC").
		Pluck("following", &names).Error; err != nil {
		return nil, storageError(err)
	}
	return names, nil
}

func (r *followRepository) ListFollowers(ctx context.Context, username string) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("following = ?", username).
		Order("follower ASC").
		Pluck("follower", &names).Error; err != nil {
		return nil, storageError(err)
	}
	return names, nil
}
