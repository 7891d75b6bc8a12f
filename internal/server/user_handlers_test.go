package server

import (
	"context"
	"net/http"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleFollow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "secret1")
	env.register(t, "bob", "secret2")

	status, body := env.call(t, http.MethodPost, "/api/users/alice/follow", alice, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeSelfFollow, errorCode(t, body))

	status, body = env.call(t, http.MethodPost, "/api/users/ghost/follow", alice, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.call(t, http.MethodPost, "/api/users/bob/follow", alice, nil)
	require.Equal(t, http.StatusOK, status)
	result := decode[map[string]any](t, body)
	assert.Equal(t, models.FollowActionFollowed, result["action"])
	assert.Equal(t, "Successfully followed bob!", result["message"])
	assert.Equal(t, float64(1), result["followers_count"])

	status, body = env.call(t, http.MethodGet, "/api/users/bob", alice, nil)
	require.Equal(t, http.StatusOK, status)
	profile := decode[map[string]any](t, body)
	assert.Equal(t, true, profile["is_following"])
	assert.Equal(t, float64(1), profile["followers_count"])

	status, body = env.call(t, http.MethodGet, "/api/users/alice/following", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"bob"}, decode[[]string](t, body))

	status, body = env.call(t, http.MethodPost, "/api/users/bob/follow", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.FollowActionUnfollowed, decode[map[string]any](t, body)["action"])

	bobToken := env.login(t, "bob", "secret2")
	_, body = env.call(t, http.MethodGet, "/api/notifications", bobToken, nil)
	list := decode[service.NotificationList](t, body)
	require.Len(t, list.Notifications, 1, "only the follow transition notifies")
	assert.Equal(t, "alice started following you", list.Notifications[0].Message)
}

func TestUserListings(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "secret1")
	bob := env.register(t, "bob", "secret2")
	createPost(t, env, alice, "First Post", "one two three", "")
	createPost(t, env, bob, "Bob Writes", "four five", "")

	status, _ := env.call(t, http.MethodPost, "/api/users/alice/follow", bob, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := env.call(t, http.MethodGet, "/api/users/alice/posts", bob, nil)
	require.Equal(t, http.StatusOK, status)
	posts := decode[[]service.PostView](t, body)
	require.Len(t, posts, 1)
	assert.Equal(t, "first-post", posts[0].ID)
	assert.True(t, posts[0].IsFollowing)

	status, body = env.call(t, http.MethodGet, "/api/users/alice/followers", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"bob"}, decode[[]string](t, body))
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	status, body := e.call(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, status, string(body))
	return decode[tokenResponse](t, body).Token
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "secret1")

	status, body := env.call(t, http.MethodPut, "/api/users/me", alice,
		map[string]string{"bio": "writer", "github": "alice"})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = env.call(t, http.MethodPut, "/api/users/me", alice,
		map[string]string{"bio": "editor", "pronouns": "they/them"})
	require.Equal(t, http.StatusOK, status)

	status, body = env.call(t, http.MethodGet, "/api/users/me", alice, nil)
	require.Equal(t, http.StatusOK, status)
	profile := decode[service.Profile](t, body)
	assert.Equal(t, models.PersonalInfo{"bio": "editor", "github": "alice", "pronouns": "they/them"}, profile.PersonalInfo)
	assert.Empty(t, profile.Posts)

	status, _ = env.call(t, http.MethodPut, "/api/users/me", alice, map[string]any{"age": 30})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.call(t, http.MethodGet, "/api/users/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "secret1")

	status, body := env.call(t, http.MethodPut, "/api/users/me/password", alice,
		map[string]string{"current_password": "wrong!", "new_password": "another1"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, models.CodeInvalidCredentials, errorCode(t, body))

	status, body = env.call(t, http.MethodPut, "/api/users/me/password", alice,
		map[string]string{"current_password": "secret1", "new_password": "abc"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeWeakPassword, errorCode(t, body))

	status, body = env.call(t, http.MethodPut, "/api/users/me/password", alice,
		map[string]string{"current_password": "", "new_password": "another1"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, models.CodeInvalidCredentials, errorCode(t, body))

	status, body = env.call(t, http.MethodPut, "/api/users/me/password", alice,
		map[string]string{"current_password": "secret1", "new_password": ""})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeWeakPassword, errorCode(t, body))

	status, _ = env.call(t, http.MethodPut, "/api/users/me/password", alice,
		map[string]string{"current_password": "secret1", "new_password": "another1"})
	require.Equal(t, http.StatusOK, status)

	env.login(t, "alice", "another1")
}

func TestDeleteMyAccount(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "secret1")
	bob := env.register(t, "bob", "secret2")
	createPost(t, env, alice, "Alice Post", "content", "")
	env.call(t, http.MethodPost, "/api/users/bob/follow", alice, nil)
	env.call(t, http.MethodPost, "/api/users/alice/follow", bob, nil)
	env.call(t, http.MethodPost, "/api/drafts", alice, map[string]string{"title": "wip"})

	status, body := env.call(t, http.MethodDelete, "/api/users/me", alice,
		map[string]string{"password": "wrong!"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, models.CodeInvalidCredentials, errorCode(t, body))

	status, _ = env.call(t, http.MethodDelete, "/api/users/me", alice,
		map[string]string{"password": "secret1"})
	require.Equal(t, http.StatusOK, status)

	ctx := context.Background()
	exists, err := env.server.userRepo.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	posts, err := env.server.postRepo.ListByAuthor(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, posts)

	counts, err := env.server.followRepo.Counts(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, counts.Followers)
	assert.Zero(t, counts.Following)

	left, err := env.server.drafts.ListByAuthor(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, left)

	status, _ = env.call(t, http.MethodGet, "/api/users/me", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "the session is revoked with the account")
}
