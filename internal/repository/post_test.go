package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPost(id, author string, created time.Time) *models.Post {
	p := &models.Post{ID: id, Title: id, Author: author, CreatedAt: created}
	p.SetContent("some words here")
	return p
}

func TestPostRepository_SaveAndGet(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	p := newPost("hello-world", "alice", time.Now())
	p.Tags = []string{"go", "web"}
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.GetByID(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "web"}, got.Tags)
	assert.Equal(t, 3, got.WordCount)
	assert.Equal(t, []string{}, got.LikedBy)
	assert.Equal(t, []models.Comment{}, got.Comments)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestPostRepository_SaveOverwritesSlugCollision(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.Post{ID: "hello", Title: "Hello", Content: "first", Author: "alice"}))
	require.NoError(t, repo.Save(ctx, &models.Post{ID: "hello", Title: "Hello!", Content: "second", Author: "bob"}))

	got, err := repo.GetByID(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)
	assert.Equal(t, "bob", got.Author)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestPostRepository_CreateIfAbsent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	inserted, err := repo.CreateIfAbsent(ctx, newPost("p1", "alice", time.Now()))
	require.NoError(t, err)
	assert.True(t, inserted)

	again := newPost("p1", "alice", time.Now())
	again.Content = "changed"
	inserted, err = repo.CreateIfAbsent(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "some words here", got.Content)
}

func TestPostRepository_ListOrdersNewestFirst(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, newPost("old", "alice", base)))
	require.NoError(t, repo.Save(ctx, newPost("newest", "bob", base.Add(2*time.Hour))))
	require.NoError(t, repo.Save(ctx, newPost("middle", "alice", base.Add(time.Hour))))

	posts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "newest", posts[0].ID)
	assert.Equal(t, "middle", posts[1].ID)
	assert.Equal(t, "old", posts[2].ID)

	mine, err := repo.ListByAuthor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "middle", mine[0].ID)

	existing, err := repo.ExistingIDs(ctx, []string{"old", "nope"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"old": true}, existing)
}

func TestPostRepository_MutateKeepsLikesConsistent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, newPost("p", "alice", time.Now())))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Mutate(ctx, "p", func(p *models.Post) error {
				p.ToggleLike(fmt.Sprintf("user%d", i))
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, got.LikedBy, 10)
	assert.Equal(t, 10, got.Likes)
}

func TestPostRepository_MutateErrors(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, newPost("p", "alice", time.Now())))

	_, err := repo.Mutate(ctx, "missing", func(*models.Post) error { return nil })
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	_, err = repo.Mutate(ctx, "p", func(*models.Post) error { return models.NewForbiddenError("no") })
	assert.True(t, models.HasCode(err, models.CodeForbidden))
}

func TestPostRepository_LegacyCounterRepairedOnRead(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, newPost("p", "alice", time.Now())))

	// Simulate a row whose counter drifted from liked_by.
	require.NoError(t, db.Exec(`UPDATE blogs SET likes = 9, liked_by = '["bob","bob"]' WHERE id = 'p'`).Error)

	got, err := repo.GetByID(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.LikedBy)
	assert.Equal(t, 1, got.Likes)
}

func TestPostRepository_Delete(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, newPost("p", "alice", time.Now())))

	require.NoError(t, repo.Delete(ctx, "p"))
	assert.True(t, models.HasCode(repo.Delete(ctx, "p"), models.CodeNotFound))
}
