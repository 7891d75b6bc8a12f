package models

import (
	"fmt"
	"time"
)

// NotificationRetention is the number of notifications kept per recipient.
const NotificationRetention = 50

// NotificationType enumerates the events that produce notifications.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
)

// Notification is one entry in a recipient's log. The ID is rendered as a
// string in JSON.
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id,string"`
	User      string           `gorm:"column:user_name;size:80;not null;index:idx_notifications_user_created" json:"-"`
	Type      NotificationType `gorm:"size:50;not null" json:"type"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	BlogID    *string          `gorm:"size:200" json:"blog_id"`
	CreatedAt time.Time        `gorm:"index:idx_notifications_user_created" json:"created_at"`
	Read      bool             `gorm:"default:false" json:"read"`
}

// TableName specifies the table name for GORM
func (Notification) TableName() string {
	return "notifications"
}

// LikeMessage is the text sent to a post author when someone likes the post.
func LikeMessage(liker string, post *Post) string {
	return fmt.Sprintf("%s liked your post '%s'", liker, post.ShortTitle())
}

// CommentMessage is the text sent to a post author on a new comment.
func CommentMessage(commenter string, post *Post) string {
	return fmt.Sprintf("%s commented on your post '%s'", commenter, post.ShortTitle())
}

// FollowMessage is the text sent to a newly followed user.
func FollowMessage(follower string) string {
	return fmt.Sprintf("%s started following you", follower)
}
