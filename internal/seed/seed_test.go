package seed

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallOptions() Options {
	return Options{
		NumUsers:    6,
		NumPosts:    10,
		MaxLikes:    3,
		MaxComments: 2,
		FollowRatio: 0.5,
		Seed:        42,
		MinCost:     true,
	}
}

func TestSeeder_Run(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	res, err := NewSeeder(db, smallOptions()).Run(ctx)
	require.NoError(t, err)
	require.Len(t, res.Users, 6)
	assert.Equal(t, 10, res.Posts)

	posts, err := repository.NewPostRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 10)

	likes := 0
	for _, p := range posts {
		assert.Positive(t, p.WordCount)
		assert.GreaterOrEqual(t, p.ReadingTime, 1)
		assert.Equal(t, len(p.LikedBy), p.Likes)
		assert.NotContains(t, p.LikedBy, p.Author, "authors never like their own posts")
		likes += p.Likes
	}
	assert.Equal(t, res.Likes, likes)

	var follows []models.Follow
	require.NoError(t, db.Find(&follows).Error)
	assert.Len(t, follows, res.Follows)
	for _, f := range follows {
		assert.NotEqual(t, f.Follower, f.Following)
	}

	var notices int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&notices).Error)
	assert.Equal(t, int64(res.Follows+res.Likes+res.Comments), notices)
	assert.Equal(t, notices, res.Notifications)
}

func TestSeeder_UsersCanLogIn(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	usernames, err := NewSeeder(db, smallOptions()).SeedUsers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, usernames, 2)

	identity := service.NewIdentityService(
		repository.NewUserRepository(db),
		repository.NewPostRepository(db),
		repository.NewFollowRepository(db),
		nil,
	)
	user, err := identity.Authenticate(ctx, usernames[0], DefaultPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, user.PersonalInfo["name"])
}

func TestSeeder_ClearAll(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()
	s := NewSeeder(db, smallOptions())

	_, err := s.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, s.ClearAll())

	for _, model := range []any{&models.User{}, &models.Post{}, &models.Follow{}, &models.Notification{}} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T", model)
	}
}

func TestSeeder_NoUsersNoPosts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	opts := smallOptions()
	opts.NumUsers = 0

	res, err := NewSeeder(db, opts).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Users)
	assert.Zero(t, res.Posts)
}
