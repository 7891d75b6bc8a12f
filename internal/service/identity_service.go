package service

import (
	"context"
	"log/slog"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// DraftRemover deletes every draft owned by an author.
type DraftRemover interface {
	DeleteByAuthor(ctx context.Context, author string) (int, error)
}

// IdentityService handles accounts, credentials and profiles.
type IdentityService struct {
	userRepo   repository.UserRepository
	postRepo   repository.PostRepository
	followRepo repository.FollowRepository
	drafts     DraftRemover
}

// Profile is the signed-in user's own profile page.
type Profile struct {
	Username     string                  `json:"username"`
	PersonalInfo models.PersonalInfo     `json:"personal_info"`
	Posts        []models.Post           `json:"posts"`
	Counts       repository.FollowCounts `json:"counts"`
	CreatedAt    string                  `json:"created_at,omitempty"`
}

// PublicProfile is what anyone can see about a user.
type PublicProfile struct {
	Username     string                  `json:"username"`
	PersonalInfo models.PersonalInfo     `json:"personal_info"`
	Counts       repository.FollowCounts `json:"counts"`
}

func NewIdentityService(
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	followRepo repository.FollowRepository,
	drafts DraftRemover,
) *IdentityService {
	return &IdentityService{
		userRepo:   userRepo,
		postRepo:   postRepo,
		followRepo: followRepo,
		drafts:     drafts,
	}
}

// Register creates an account with a bcrypt credential.
func (s *IdentityService) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, models.NewMissingFieldError()
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.Exists(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewDuplicateUsernameError(username)
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     username,
		PasswordHash: hashed,
		PersonalInfo: models.PersonalInfo{},
	}
	// A concurrent registration can still win the race; Create maps the
	// unique violation to DuplicateUsername.
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials. A legacy plaintext or werkzeug
// credential is rewritten as bcrypt after the first successful login.
func (s *IdentityService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, models.NewInvalidCredentialsError()
	}
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !verifyCredential(user.PasswordHash, password) {
		return nil, models.NewInvalidCredentialsError()
	}

	if user.NeedsCredentialUpgrade() {
		s.upgradeCredential(ctx, user, password)
	}
	return user, nil
}

func (s *IdentityService) upgradeCredential(ctx context.Context, user *models.User, password string) {
	span, ctx := observability.NewSpan(ctx, "identity.upgrade_credential")
	defer span.End()
	span.AddAttributes(attribute.Int("credential.version", models.CredentialVersion(user.PasswordHash)))

	hashed, err := hashPassword(password)
	if err == nil {
		err = s.userRepo.UpdatePassword(ctx, user.Username, hashed)
	}
	if err != nil {
		span.SetError(err)
		// The login itself succeeded; the next one retries the upgrade.
		observability.GlobalLogger.WarnContext(ctx, "credential upgrade failed",
			slog.String("username", user.Username),
			slog.String("error", err.Error()))
		return
	}
	user.PasswordHash = hashed
	observability.GlobalLogger.InfoContext(ctx, "upgraded legacy credential",
		slog.String("username", user.Username))
}

// UpdatePersonalInfo merges fields into the stored profile.
func (s *IdentityService) UpdatePersonalInfo(ctx context.Context, username string, fields map[string]string) (models.PersonalInfo, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	return s.userRepo.MergePersonalInfo(ctx, username, fields)
}

// ChangePassword replaces the credential after checking the current one.
func (s *IdentityService) ChangePassword(ctx context.Context, username, current, next string) error {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil || !verifyCredential(user.PasswordHash, current) {
		return models.NewInvalidCredentialsError()
	}
	if err := validation.ValidatePassword(next); err != nil {
		return err
	}
	hashed, err := hashPassword(next)
	if err != nil {
		return err
	}
	return s.userRepo.UpdatePassword(ctx, username, hashed)
}

// DeleteAccount removes the user with their posts, follow edges,
// notifications and drafts.
func (s *IdentityService) DeleteAccount(ctx context.Context, username, password string) error {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil || !verifyCredential(user.PasswordHash, password) {
		return models.NewInvalidCredentialsError()
	}

	// Neighbours' counters change with the edges; collect them first.
	following, err := s.followRepo.ListFollowing(ctx, username)
	if err != nil {
		return err
	}
	followers, err := s.followRepo.ListFollowers(ctx, username)
	if err != nil {
		return err
	}

	postIDs, err := s.userRepo.DeleteCascade(ctx, username)
	if err != nil {
		return err
	}

	for _, id := range postIDs {
		cache.InvalidatePost(ctx, id)
	}
	cache.InvalidateFollowCounts(ctx, append(append([]string{username}, following...), followers...)...)
	cache.InvalidateUnread(ctx, username)

	if s.drafts != nil {
		if n, err := s.drafts.DeleteByAuthor(ctx, username); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to remove drafts of deleted account",
				slog.String("username", username),
				slog.String("error", err.Error()))
		} else if n > 0 {
			observability.GlobalLogger.InfoContext(ctx, "removed drafts of deleted account",
				slog.String("username", username),
				slog.Int("drafts", n))
		}
	}
	return nil
}

// UserInfo returns the user's personal info, or an empty map for an
// unknown user.
func (s *IdentityService) UserInfo(ctx context.Context, username string) (models.PersonalInfo, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PersonalInfo == nil {
		return models.PersonalInfo{}, nil
	}
	return user.PersonalInfo, nil
}

// PublicProfile returns personal info and follow counts for any user.
func (s *IdentityService) PublicProfile(ctx context.Context, username string) (*PublicProfile, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	counts, err := s.followRepo.Counts(ctx, username)
	if err != nil {
		return nil, err
	}
	info := user.PersonalInfo
	if info == nil {
		info = models.PersonalInfo{}
	}
	return &PublicProfile{Username: user.Username, PersonalInfo: info, Counts: counts}, nil
}

// Profile returns the user's own profile with their posts.
func (s *IdentityService) Profile(ctx context.Context, username string) (*Profile, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	posts, err := s.postRepo.ListByAuthor(ctx, username)
	if err != nil {
		return nil, err
	}
	counts, err := s.followRepo.Counts(ctx, username)
	if err != nil {
		return nil, err
	}
	info := user.PersonalInfo
	if info == nil {
		info = models.PersonalInfo{}
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return &Profile{
		Username:     user.Username,
		PersonalInfo: info,
		Posts:        posts,
		Counts:       counts,
		CreatedAt:    user.CreatedAt.Format(models.CommentTimeLayout),
	}, nil
}
