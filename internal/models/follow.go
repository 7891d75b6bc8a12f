package models

import "time"

// Follow is a directed edge: Follower follows Following.
type Follow struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Follower  string    `gorm:"size:80;not null;uniqueIndex:idx_follows_edge" json:"follower"`
	Following string    `gorm:"size:80;not null;uniqueIndex:idx_follows_edge;index" json:"following"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}

// Follow toggle outcomes.
const (
	FollowActionFollowed   = "followed"
	FollowActionUnfollowed = "unfollowed"
)
