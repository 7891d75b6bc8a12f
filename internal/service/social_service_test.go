package service

import (
	"context"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSocialService(notes *notificationRepoStub) *SocialService {
	edges := map[[2]string]bool{}
	follows := &followRepoStub{toggleFn: func(_ context.Context, a, b string) (bool, error) {
		key := [2]string{a, b}
		edges[key] = !edges[key]
		return edges[key], nil
	}}
	users := memUsers(map[string]string{"alice": "x", "bob": "x"})
	return NewSocialService(follows, users, NewNotificationService(notes, nil, allFlagsOn))
}

func TestSocialService_ToggleFollow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	notes := &notificationRepoStub{}
	svc := newSocialService(notes)

	res, err := svc.ToggleFollow(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.FollowActionFollowed, res.Action)
	assert.Equal(t, "Successfully followed bob!", res.Message)

	res, err = svc.ToggleFollow(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.FollowActionUnfollowed, res.Action)

	sent := notes.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "bob", sent[0].User)
	assert.Equal(t, models.NotificationFollow, sent[0].Type)
	assert.Equal(t, "alice started following you", sent[0].Message)
	assert.Nil(t, sent[0].BlogID)
}

func TestSocialService_ToggleFollow_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newSocialService(&notificationRepoStub{})

	_, err := svc.ToggleFollow(ctx, "alice", "alice")
	assertAppErrorCode(t, err, models.CodeSelfFollow)

	_, err = svc.ToggleFollow(ctx, "alice", "ghost")
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestSocialService_EdgeCounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	follows := &followRepoStub{countsFn: func(_ context.Context, username string) (repository.FollowCounts, error) {
		if username == "alice" {
			return repository.FollowCounts{Followers: 3, Following: 1}, nil
		}
		return repository.FollowCounts{}, nil
	}}
	svc := NewSocialService(follows, memUsers(nil), NewNotificationService(&notificationRepoStub{}, nil, allFlagsOn))

	followers, err := svc.FollowersCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), followers)

	following, err := svc.FollowingCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), following)

	following, err = svc.FollowingCount(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, following)
}
