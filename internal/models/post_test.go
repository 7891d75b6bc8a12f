package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello, World!", "hello-world"},
		{"What is Go?", "what-is-go"},
		{"v1.2 Release Notes", "v12-release-notes"},
		{"Already-slugged", "already-slugged"},
		{"Two  Spaces", "two--spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.title))
		})
	}
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"go", "web dev", "db"}, ParseTags(" go, web dev ,, db ,"))
	assert.Equal(t, []string{}, ParseTags(""))
	assert.Equal(t, []string{}, ParseTags(" , "))
}

func TestReadingTime(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 1},
		{2, 1},
		{199, 1},
		{400, 2},
		{1099, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReadingTime(tt.words), "words=%d", tt.words)
	}
}

func TestPost_SetContent(t *testing.T) {
	p := &Post{}
	p.SetContent("Hello,\tWorld!\n")
	assert.Equal(t, 2, p.WordCount)
	assert.Equal(t, 1, p.ReadingTime)
}

func TestPost_ToggleLike(t *testing.T) {
	p := &Post{LikedBy: []string{"bob"}, Likes: 1}

	added := p.ToggleLike("alice")
	assert.True(t, added)
	assert.Equal(t, []string{"bob", "alice"}, p.LikedBy)
	assert.Equal(t, 2, p.Likes)

	added = p.ToggleLike("alice")
	assert.False(t, added)
	assert.Equal(t, []string{"bob"}, p.LikedBy)
	assert.Equal(t, 1, p.Likes)
	assert.Equal(t, len(p.LikedBy), p.Likes)
}

func TestPost_NormalizeRepairsDrift(t *testing.T) {
	p := &Post{LikedBy: []string{"a", "b", "a", ""}, Likes: 7}
	p.Normalize()
	assert.Equal(t, []string{"a", "b"}, p.LikedBy)
	assert.Equal(t, 2, p.Likes)
	assert.NotNil(t, p.Tags)
	assert.NotNil(t, p.Comments)
}

func TestPost_AddComment(t *testing.T) {
	p := &Post{}
	now := time.Date(2024, 3, 9, 14, 5, 59, 0, time.UTC)
	c := p.AddComment("bob", "nice", now)
	assert.Equal(t, "2024-03-09 14:05", c.CreatedAt)
	require.Len(t, p.Comments, 1)
	assert.Equal(t, c, p.Comments[0])
}

func TestNotificationMessages(t *testing.T) {
	short := &Post{Title: "Hello, World!"}
	long := &Post{Title: "An Extremely Long Title That Goes On And On"}

	assert.Equal(t, "bob liked your post 'Hello, World!'", LikeMessage("bob", short))
	assert.Equal(t, "bob liked your post 'An Extremely Long Title That G...'", LikeMessage("bob", long))
	assert.Equal(t, "bob commented on your post 'Hello, World!'", CommentMessage("bob", short))
	assert.Equal(t, "bob started following you", FollowMessage("bob"))
}

func TestNotification_IDRendersAsString(t *testing.T) {
	blog := "hello-world"
	raw, err := json.Marshal(Notification{ID: 42, Type: NotificationLike, BlogID: &blog})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"42"`)
	assert.Contains(t, string(raw), `"blog_id":"hello-world"`)
}
