package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepository_AppendCapsAtRetention(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < models.NotificationRetention+5; i++ {
		_, err := repo.Append(ctx, &models.Notification{
			User:      "alice",
			Type:      models.NotificationFollow,
			Message:   fmt.Sprintf("n%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := repo.Append(ctx, &models.Notification{User: "bob", Type: models.NotificationLike, Message: "other"})
	require.NoError(t, err)

	items, err := repo.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, models.NotificationRetention)
	assert.Equal(t, fmt.Sprintf("n%d", models.NotificationRetention+4), items[0].Message, "newest first")
	assert.Equal(t, "n5", items[len(items)-1].Message, "oldest five evicted")

	others, err := repo.ListByUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, others, 1, "the cap is per recipient")
}

func TestNotificationRepository_SameTimestampOrdersByID(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for _, msg := range []string{"first", "second"} {
		_, err := repo.Append(ctx, &models.Notification{User: "alice", Type: models.NotificationLike, Message: msg, CreatedAt: at})
		require.NoError(t, err)
	}

	items, err := repo.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "second", items[0].Message)
}

func TestNotificationRepository_ReadAndClear(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	blog := "hello-world"
	for i := 0; i < 3; i++ {
		_, err := repo.Append(ctx, &models.Notification{User: "alice", Type: models.NotificationComment, Message: "c", BlogID: &blog})
		require.NoError(t, err)
	}

	unread, err := repo.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)

	marked, err := repo.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 3, marked)

	unread, err = repo.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, unread)

	items, err := repo.ListByUser(ctx, "alice")
	require.NoError(t, err)
	for _, n := range items {
		assert.True(t, n.Read)
		require.NotNil(t, n.BlogID)
		assert.Equal(t, blog, *n.BlogID)
	}

	cleared, err := repo.ClearAll(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 3, cleared)

	items, err = repo.ListByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, items)
}
