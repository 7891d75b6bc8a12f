package cache

import (
	"context"
	"fmt"
	"time"
)

// Key formats for cached entities.
const (
	PostKeyPrefix        = "post:%s"
	FollowCountsPrefix   = "follow_counts:%s"
	UnreadCountKeyPrefix = "notifications:unread:%s"
)

// TTLs for cached entities.
const (
	PostTTL         = 30 * time.Minute
	FollowCountsTTL = 5 * time.Minute
	UnreadCountTTL  = 2 * time.Minute
)

// PostKey is the cache key of a post by slug.
func PostKey(postID string) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// FollowCountsKey is the cache key of a user's follower/following counts.
func FollowCountsKey(username string) string {
	return fmt.Sprintf(FollowCountsPrefix, username)
}

// UnreadCountKey is the cache key of a user's unread notification count.
func UnreadCountKey(username string) string {
	return fmt.Sprintf(UnreadCountKeyPrefix, username)
}

// Invalidate drops a key; a missing client or key is not an error.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidatePost drops the cached copy of a post.
func InvalidatePost(ctx context.Context, postID string) {
	Invalidate(ctx, PostKey(postID))
}

// InvalidateFollowCounts drops cached counts for both ends of a follow edge.
func InvalidateFollowCounts(ctx context.Context, usernames ...string) {
	for _, u := range usernames {
		Invalidate(ctx, FollowCountsKey(u))
	}
}

// InvalidateUnread drops a user's cached unread count.
func InvalidateUnread(ctx context.Context, username string) {
	Invalidate(ctx, UnreadCountKey(username))
}
