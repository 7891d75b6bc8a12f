package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.PublishUser(context.Background(), "alice", "payload"))
	assert.NoError(t, n.PublishNotification(context.Background(), &models.Notification{User: "alice"}))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notifications:user:alice", UserChannel("alice"))
}

func TestNotifier_PublishNotificationReachesSubscriber(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type received struct{ user, payload string }
	got := make(chan received, 1)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(user, payload string) {
		got <- received{user, payload}
	}))

	blog := "hello-world"
	require.NoError(t, n.PublishNotification(ctx, &models.Notification{
		ID: 7, User: "alice", Type: models.NotificationLike, Message: "bob liked your post 'Hello'", BlogID: &blog,
	}))

	select {
	case r := <-got:
		assert.Equal(t, "alice", r.user)
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.payload), &ev))
		assert.Equal(t, "notification", ev["type"])
		note := ev["notification"].(map[string]any)
		assert.Equal(t, "7", note["id"])
		assert.Equal(t, "hello-world", note["blog_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not receive the notification")
	}
}
