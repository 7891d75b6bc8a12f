package repository

import (
	"context"
	"errors"
	"log/slog"

	"inkwell/internal/cache"
	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines persistence operations for blog posts.
type PostRepository interface {
	Save(ctx context.Context, post *models.Post) error
	CreateIfAbsent(ctx context.Context, post *models.Post) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context) ([]models.Post, error)
	ListByAuthor(ctx context.Context, author string) ([]models.Post, error)
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	Mutate(ctx context.Context, id string, fn func(*models.Post) error) (*models.Post, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type postRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, logger: observability.NewRepoLogger("blogs")}
}

// Save inserts the post or, when its slug already exists, overwrites the
// existing row with every column of post.
func (r *postRepository) Save(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("upsert", "blogs")()

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(post).Error
	if err != nil {
		r.logger.Error(ctx, "save", err, slog.String("id", post.ID))
		return storageError(err)
	}
	cache.InvalidatePost(ctx, post.ID)
	r.logger.Write(ctx, "save", slog.String("id", post.ID), slog.String("author", post.Author))
	return nil
}

// CreateIfAbsent inserts the post unless its ID is taken and reports whether it was inserted.
func (r *postRepository) CreateIfAbsent(ctx context.Context, post *models.Post) (bool, error) {
	defer observability.TrackQuery("insert", "blogs")()

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(post)
	if res.Error != nil {
		return false, storageError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		defer observability.TrackQuery("select", "blogs")()
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return storageError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	post.Normalize()
	return &post, nil
}

// List returns every post, newest first.
func (r *postRepository) List(ctx context.Context) ([]models.Post, error) {
	defer observability.TrackQuery("select", "blogs")()

	var posts []models.Post
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, storageError(err)
	}
	return posts, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, author string) ([]models.Post, error) {
	var posts []models.Post
	if err := r.db.WithContext(ctx).
		Where("author = ?", author).
		Order("created_at DESC").
		Find(&posts).Error; err != nil {
		return nil, storageError(err)
	}
	return posts, nil
}

// ExistingIDs reports which of ids are already stored.
func (r *postRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}
	var found []string
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, storageError(err)
	}
	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}

// Mutate loads the post, applies fn and writes it back in one transaction.
// On PostgreSQL the row is locked for the duration, so concurrent likes and
// comments on the same post cannot lose updates.
func (r *postRepository) Mutate(ctx context.Context, id string, fn func(*models.Post) error) (*models.Post, error) {
	ctx, span := observability.StartRepoSpan(ctx, r.db.Dialector.Name(), "mutate", "blogs")
	defer span.End()
	defer observability.TrackQuery("mutate", "blogs")()

	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if database.IsPostgres(tx) {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.Where("id = ?", id).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return err
		}
		if err := fn(&post); err != nil {
			return err
		}
		return tx.Save(&post).Error
	})
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, storageError(err)
	}
	cache.InvalidatePost(ctx, id)
	return &post, nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return storageError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidatePost(ctx, id)
	r.logger.Write(ctx, "delete", slog.String("id", id))
	return nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&count).Error; err != nil {
		return 0, storageError(err)
	}
	return count, nil
}
