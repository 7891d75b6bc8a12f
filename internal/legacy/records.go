// Package legacy imports the flat-file data directory written by earlier
// revisions of the blog into the relational store.
package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/models"
)

// User record shapes found in users.json.
const (
	// "alice": "secret1"
	UserVersionPlain = iota
	// "alice": {"password": "...", "personal_info": {...}}
	UserVersionStructured
)

// Post record shapes found under blogs/.
const (
	// Only a likes counter; liked_by absent.
	PostVersionCounter = iota
	// liked_by present and authoritative.
	PostVersionLikedBy
)

// stringList decodes a JSON array of strings, a JSON-encoded array inside
// a string, or comma-separated text.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var out []string
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
		*l = out
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.HasPrefix(strings.TrimSpace(s), "[") {
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			*l = out
			return nil
		}
	}
	*l = models.ParseTags(s)
	return nil
}

// commentList accepts comments as an array or as JSON text.
type commentList []models.Comment

func (l *commentList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*l = nil
			return nil
		}
		data = []byte(s)
	}
	var out []models.Comment
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*l = out
	return nil
}

// legacyTime parses the isoformat() timestamps written by earlier revisions.
type legacyTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	models.CommentTimeLayout,
}

func (t *legacyTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// UpgradeUser converts one users.json entry into the canonical user. The
// credential is not rehashed, so the first successful login rewrites it as
// bcrypt. Raw passwords are tagged as plaintext: a string-only record always
// holds one, and a structured "password" holds one unless it is a werkzeug
// hash. "password_hash" is kept as found.
func UpgradeUser(username string, raw json.RawMessage) (*models.User, int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, 0, fmt.Errorf("user %q: empty record", username)
	}

	if raw[0] == '"' {
		var password string
		if err := json.Unmarshal(raw, &password); err != nil {
			return nil, 0, fmt.Errorf("user %q: %w", username, err)
		}
		if password == "" {
			return nil, 0, fmt.Errorf("user %q: empty credential", username)
		}
		return &models.User{
			Username:     username,
			PasswordHash: models.TagPlaintext(password),
			PersonalInfo: models.PersonalInfo{},
		}, UserVersionPlain, nil
	}

	var rec struct {
		Password     string         `json:"password"`
		PasswordHash string         `json:"password_hash"`
		PersonalInfo map[string]any `json:"personal_info"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, 0, fmt.Errorf("user %q: %w", username, err)
	}
	credential := rec.PasswordHash
	switch {
	case rec.Password == "":
	case models.IsWerkzeugHash(rec.Password):
		credential = rec.Password
	default:
		credential = models.TagPlaintext(rec.Password)
	}
	if credential == "" {
		return nil, 0, fmt.Errorf("user %q: no credential", username)
	}

	info := models.PersonalInfo{}
	for k, v := range rec.PersonalInfo {
		switch val := v.(type) {
		case nil:
			info[k] = ""
		case string:
			info[k] = val
		default:
			info[k] = fmt.Sprint(val)
		}
	}
	return &models.User{
		Username:     username,
		PasswordHash: credential,
		PersonalInfo: info,
	}, UserVersionStructured, nil
}

type blogRecord struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Author      string      `json:"author"`
	Tags        stringList  `json:"tags"`
	WordCount   int         `json:"word_count"`
	ReadingTime int         `json:"reading_time"`
	CreatedAt   legacyTime  `json:"created_at"`
	UpdatedAt   *legacyTime `json:"updated_at"`
	Likes       int         `json:"likes"`
	LikedBy     *stringList `json:"liked_by"`
	Comments    commentList `json:"comments"`
}

// UpgradePost converts one decoded blog file into the canonical post.
// fallbackID is used when the record carries no id; fallbackTime when it
// has no creation time. liked_by always wins over the counter: a
// counter-only record keeps no likes because the likers are unknown.
func UpgradePost(data []byte, fallbackID string, fallbackTime time.Time) (*models.Post, int, error) {
	var rec blogRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, 0, fmt.Errorf("blog %q: %w", fallbackID, err)
	}
	if rec.Title == "" || rec.Author == "" {
		return nil, 0, fmt.Errorf("blog %q: missing title or author", fallbackID)
	}

	version := PostVersionLikedBy
	var likedBy []string
	if rec.LikedBy == nil {
		version = PostVersionCounter
		likedBy = []string{}
	} else {
		likedBy = *rec.LikedBy
	}

	id := rec.ID
	if id == "" {
		id = fallbackID
	}
	created := rec.CreatedAt.Time
	if created.IsZero() {
		created = fallbackTime.UTC()
	}

	post := &models.Post{
		ID:        id,
		Title:     rec.Title,
		Author:    rec.Author,
		Tags:      rec.Tags,
		CreatedAt: created,
		LikedBy:   likedBy,
		Comments:  rec.Comments,
	}
	if rec.UpdatedAt != nil && !rec.UpdatedAt.IsZero() {
		updated := rec.UpdatedAt.Time
		post.UpdatedAt = &updated
	}
	post.SetContent(rec.Content)
	post.Normalize()
	return post, version, nil
}

type notificationRecord struct {
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	BlogID    *string    `json:"blog_id"`
	CreatedAt legacyTime `json:"created_at"`
	Read      bool       `json:"read"`
}

// UpgradeNotification converts one notifications.json entry.
func UpgradeNotification(recipient string, raw json.RawMessage, fallbackTime time.Time) (*models.Notification, error) {
	var rec notificationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("notification for %q: %w", recipient, err)
	}
	kind := models.NotificationType(rec.Type)
	switch kind {
	case models.NotificationLike, models.NotificationComment, models.NotificationFollow:
	default:
		return nil, fmt.Errorf("notification for %q: unknown type %q", recipient, rec.Type)
	}
	created := rec.CreatedAt.Time
	if created.IsZero() {
		created = fallbackTime.UTC()
	}
	if rec.BlogID != nil && *rec.BlogID == "" {
		rec.BlogID = nil
	}
	return &models.Notification{
		User:      recipient,
		Type:      kind,
		Message:   rec.Message,
		BlogID:    rec.BlogID,
		CreatedAt: created,
		Read:      rec.Read,
	}, nil
}
