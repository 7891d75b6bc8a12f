package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialVersion(t *testing.T) {
	tests := []struct {
		stored string
		want   int
	}{
		{"secret1", CredentialPlaintext},
		{"", CredentialPlaintext},
		{"pbkdf2:sha256:260000$abc$def", CredentialWerkzeug},
		{"scrypt:32768:8:1$abc$def", CredentialWerkzeug},
		{"$2a$10$abcdefghijklmnopqrstuv", CredentialBcrypt},
		{"$2b$12$abcdefghijklmnopqrstuv", CredentialBcrypt},
		{TagPlaintext("secret1"), CredentialPlaintext},
		{TagPlaintext("$2a$10$abcdefghijklmnopqrstuv"), CredentialPlaintext},
		{TagPlaintext("pbkdf2:sha256:1$a$b"), CredentialPlaintext},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CredentialVersion(tt.stored), tt.stored)
	}
}

func TestPersonalInfo_Merge(t *testing.T) {
	base := PersonalInfo{"name": "Alice", "bio": "old"}
	merged := base.Merge(map[string]string{"bio": "new", "mastodon": "@alice"})

	assert.Equal(t, PersonalInfo{"name": "Alice", "bio": "new", "mastodon": "@alice"}, merged)
	assert.Equal(t, "old", base["bio"], "merge must not mutate the receiver")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewMissingFieldError("title"), http.StatusBadRequest},
		{NewWeakPasswordError(6), http.StatusBadRequest},
		{NewDuplicateUsernameError("alice"), http.StatusConflict},
		{NewInvalidCredentialsError(), http.StatusUnauthorized},
		{NewNotFoundError("Post", "x"), http.StatusNotFound},
		{NewForbiddenError("no"), http.StatusForbidden},
		{NewSelfFollowError(), http.StatusBadRequest},
		{NewEmptyCommentError(), http.StatusBadRequest},
		{NewStorageUnavailableError(errors.New("disk")), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", NewNotFoundError("User", "bob")), http.StatusNotFound},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("ctx: %w", NewSelfFollowError())
	assert.True(t, HasCode(err, CodeSelfFollow))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(errors.New("x"), CodeSelfFollow))
}
