package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// PersonalInfoFields lists the profile keys the profile form edits.
// The map itself is open; any other key is kept as-is.
var PersonalInfoFields = []string{
	"name", "signature", "address", "phone", "dob", "email", "bio",
	"facebook", "twitter", "instagram", "youtube", "github", "linkedin",
	"profile_image",
}

// PersonalInfo is the open profile sub-document stored as JSON text.
type PersonalInfo map[string]string

// Merge copies every key of fields into p, keeping keys that fields omits.
func (p PersonalInfo) Merge(fields map[string]string) PersonalInfo {
	out := make(PersonalInfo, len(p)+len(fields))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// User represents an account. Username is the public key used by posts,
// follows and notifications.
type User struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Username     string       `gorm:"size:80;uniqueIndex;not null" json:"username"`
	PasswordHash string       `gorm:"column:password_hash;size:255;not null" json:"-"`
	PersonalInfo PersonalInfo `gorm:"type:text;serializer:json" json:"personal_info"`
	CreatedAt    time.Time    `json:"created_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// BeforeSave keeps personal_info a JSON object instead of null.
func (u *User) BeforeSave(_ *gorm.DB) error {
	if u.PersonalInfo == nil {
		u.PersonalInfo = PersonalInfo{}
	}
	return nil
}

// Credential schemes found in stored password_hash values, oldest first.
const (
	CredentialPlaintext = iota
	CredentialWerkzeug
	CredentialBcrypt
)

// plaintextTag marks a stored credential known to be a raw password.
const plaintextTag = "plain$"

// TagPlaintext stores password as an explicitly raw credential, so a raw
// password that happens to look like a hash is never classified as one.
func TagPlaintext(password string) string {
	return plaintextTag + password
}

// PlaintextValue returns the raw password held by a plaintext credential.
func PlaintextValue(stored string) string {
	return strings.TrimPrefix(stored, plaintextTag)
}

// IsWerkzeugHash reports whether stored uses werkzeug's method$salt$hash form.
func IsWerkzeugHash(stored string) bool {
	return strings.HasPrefix(stored, "pbkdf2:") || strings.HasPrefix(stored, "scrypt:")
}

// CredentialVersion classifies a stored credential. Rows written by the
// earliest revisions hold the raw password, later ones hold werkzeug
// "pbkdf2:" or "scrypt:" hashes, and current rows hold bcrypt. Untagged
// values are classified by prefix.
func CredentialVersion(stored string) int {
	switch {
	case strings.HasPrefix(stored, plaintextTag):
		return CredentialPlaintext
	case strings.HasPrefix(stored, "$2a$"), strings.HasPrefix(stored, "$2b$"), strings.HasPrefix(stored, "$2y$"):
		return CredentialBcrypt
	case IsWerkzeugHash(stored):
		return CredentialWerkzeug
	default:
		return CredentialPlaintext
	}
}

// NeedsCredentialUpgrade reports whether the stored credential predates bcrypt.
func (u *User) NeedsCredentialUpgrade() bool {
	return CredentialVersion(u.PasswordHash) != CredentialBcrypt
}
