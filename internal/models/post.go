// Package models contains data structures for the application's domain models.
package models

import (
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"
)

// CommentTimeLayout is the minute-resolution timestamp stored on comments.
const CommentTimeLayout = "2006-01-02 15:04"

const wordsPerMinute = 200

// Comment is an entry in a post's embedded comment list.
type Comment struct {
	Author    string `json:"author"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// Post represents a blog post. Tags, LikedBy and Comments are persisted as
// JSON text columns.
type Post struct {
	ID          string     `gorm:"primaryKey;size:200" json:"id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	Author      string     `gorm:"size:80;not null;index" json:"author"`
	Tags        []string   `gorm:"type:text;serializer:json" json:"tags"`
	WordCount   int        `gorm:"default:0" json:"word_count"`
	ReadingTime int        `gorm:"default:1" json:"reading_time"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false" json:"updated_at,omitempty"`
	Likes       int        `gorm:"default:0" json:"likes"`
	LikedBy     []string   `gorm:"type:text;serializer:json" json:"liked_by"`
	Comments    []Comment  `gorm:"type:text;serializer:json" json:"comments"`
}

// TableName keeps the table name used by every earlier revision.
func (Post) TableName() string {
	return "blogs"
}

// Slugify derives a post ID from its title: lower-case, spaces become
// hyphens, and . , ? ! are dropped. Distinct titles may collide.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = strings.ReplaceAll(slug, " ", "-")
	return strings.NewReplacer(".", "", ",", "", "?", "", "!", "").Replace(slug)
}

// ParseTags splits comma-separated tag text, trimming blanks.
func ParseTags(csv string) []string {
	tags := []string{}
	for _, tag := range strings.Split(csv, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// CountWords counts whitespace-separated tokens.
func CountWords(content string) int {
	return len(strings.Fields(content))
}

// ReadingTime returns whole minutes at 200 words per minute, never less than one.
func ReadingTime(wordCount int) int {
	return max(1, wordCount/wordsPerMinute)
}

// SetContent stores content and recomputes the derived counters.
func (p *Post) SetContent(content string) {
	p.Content = content
	p.WordCount = CountWords(content)
	p.ReadingTime = ReadingTime(p.WordCount)
}

// Normalize repairs nil collections, drops duplicate likers and makes the
// like counter agree with liked_by.
func (p *Post) Normalize() {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
	seen := make(map[string]struct{}, len(p.LikedBy))
	likedBy := make([]string, 0, len(p.LikedBy))
	for _, u := range p.LikedBy {
		if _, dup := seen[u]; dup || u == "" {
			continue
		}
		seen[u] = struct{}{}
		likedBy = append(likedBy, u)
	}
	p.LikedBy = likedBy
	p.Likes = len(p.LikedBy)
}

// BeforeSave keeps the stored like counter consistent with liked_by.
func (p *Post) BeforeSave(_ *gorm.DB) error {
	p.Normalize()
	return nil
}

// AfterFind repairs rows written before liked_by became authoritative.
func (p *Post) AfterFind(_ *gorm.DB) error {
	p.Normalize()
	return nil
}

// IsLikedBy reports whether username is in liked_by.
func (p *Post) IsLikedBy(username string) bool {
	return slices.Contains(p.LikedBy, username)
}

// ToggleLike adds or removes username from liked_by and returns true when
// the like was added.
func (p *Post) ToggleLike(username string) bool {
	p.Normalize()
	liked := true
	if i := slices.Index(p.LikedBy, username); i >= 0 {
		p.LikedBy = slices.Delete(p.LikedBy, i, i+1)
		liked = false
	} else {
		p.LikedBy = append(p.LikedBy, username)
	}
	p.Likes = len(p.LikedBy)
	return liked
}

// AddComment appends a comment stamped at now.
func (p *Post) AddComment(author, text string, now time.Time) Comment {
	c := Comment{Author: author, Text: text, CreatedAt: now.Format(CommentTimeLayout)}
	p.Comments = append(p.Comments, c)
	return c
}

// ShortTitle truncates the title to 30 characters for notification text.
func (p *Post) ShortTitle() string {
	runes := []rune(p.Title)
	if len(runes) > 30 {
		return string(runes[:30]) + "..."
	}
	return p.Title
}
