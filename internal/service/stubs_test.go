package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByUsernameFn     func(context.Context, string) (*models.User, error)
	existsFn            func(context.Context, string) (bool, error)
	createFn            func(context.Context, *models.User) error
	updatePasswordFn    func(context.Context, string, string) error
	mergePersonalInfoFn func(context.Context, string, map[string]string) (models.PersonalInfo, error)
	deleteCascadeFn     func(context.Context, string) ([]string, error)
	listFn              func(context.Context, int, int) ([]models.User, error)
}

var _ repository.UserRepository = (*userRepoStub)(nil)

func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if s.getByUsernameFn == nil {
		return nil, nil
	}
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Exists(ctx context.Context, username string) (bool, error) {
	if s.existsFn == nil {
		return false, nil
	}
	return s.existsFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, user)
}
func (s *userRepoStub) UpdatePassword(ctx context.Context, username, hash string) error {
	if s.updatePasswordFn == nil {
		return nil
	}
	return s.updatePasswordFn(ctx, username, hash)
}
func (s *userRepoStub) MergePersonalInfo(ctx context.Context, username string, fields map[string]string) (models.PersonalInfo, error) {
	if s.mergePersonalInfoFn == nil {
		return models.PersonalInfo(fields), nil
	}
	return s.mergePersonalInfoFn(ctx, username, fields)
}
func (s *userRepoStub) DeleteCascade(ctx context.Context, username string) ([]string, error) {
	if s.deleteCascadeFn == nil {
		return nil, nil
	}
	return s.deleteCascadeFn(ctx, username)
}
func (s *userRepoStub) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}
func (s *userRepoStub) Count(context.Context) (int64, error) { return 0, nil }

// memUsers returns a stub backed by a map of username to stored credential.
func memUsers(creds map[string]string) *userRepoStub {
	var mu sync.Mutex
	users := map[string]*models.User{}
	for name, hash := range creds {
		users[name] = &models.User{Username: name, PasswordHash: hash, PersonalInfo: models.PersonalInfo{}}
	}
	return &userRepoStub{
		getByUsernameFn: func(_ context.Context, name string) (*models.User, error) {
			mu.Lock()
			defer mu.Unlock()
			u, ok := users[name]
			if !ok {
				return nil, nil
			}
			cp := *u
			return &cp, nil
		},
		existsFn: func(_ context.Context, name string) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			_, ok := users[name]
			return ok, nil
		},
		createFn: func(_ context.Context, u *models.User) error {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := users[u.Username]; ok {
				return models.NewDuplicateUsernameError(u.Username)
			}
			cp := *u
			users[u.Username] = &cp
			return nil
		},
		updatePasswordFn: func(_ context.Context, name, hash string) error {
			mu.Lock()
			defer mu.Unlock()
			u, ok := users[name]
			if !ok {
				return models.NewNotFoundError("User", name)
			}
			u.PasswordHash = hash
			return nil
		},
		deleteCascadeFn: func(_ context.Context, name string) ([]string, error) {
			mu.Lock()
			defer mu.Unlock()
			delete(users, name)
			return nil, nil
		},
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	saveFn           func(context.Context, *models.Post) error
	createIfAbsentFn func(context.Context, *models.Post) (bool, error)
	getByIDFn        func(context.Context, string) (*models.Post, error)
	listFn           func(context.Context) ([]models.Post, error)
	listByAuthorFn   func(context.Context, string) ([]models.Post, error)
	mutateFn         func(context.Context, string, func(*models.Post) error) (*models.Post, error)
	deleteFn         func(context.Context, string) error
}

var _ repository.PostRepository = (*postRepoStub)(nil)

func (s *postRepoStub) Save(ctx context.Context, p *models.Post) error {
	if s.saveFn == nil {
		return nil
	}
	return s.saveFn(ctx, p)
}
func (s *postRepoStub) CreateIfAbsent(ctx context.Context, p *models.Post) (bool, error) {
	if s.createIfAbsentFn == nil {
		return true, nil
	}
	return s.createIfAbsentFn(ctx, p)
}
func (s *postRepoStub) GetByID(ctx context.Context, id string) (*models.Post, error) {
	if s.getByIDFn == nil {
		return nil, models.NewNotFoundError("Post", id)
	}
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context) ([]models.Post, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, author string) ([]models.Post, error) {
	if s.listByAuthorFn == nil {
		return nil, nil
	}
	return s.listByAuthorFn(ctx, author)
}
func (s *postRepoStub) ExistingIDs(context.Context, []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}
func (s *postRepoStub) Mutate(ctx context.Context, id string, fn func(*models.Post) error) (*models.Post, error) {
	if s.mutateFn == nil {
		return nil, models.NewNotFoundError("Post", id)
	}
	return s.mutateFn(ctx, id, fn)
}
func (s *postRepoStub) Delete(ctx context.Context, id string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) Count(context.Context) (int64, error) { return 0, nil }

// singlePost returns a stub holding one post that Mutate and GetByID operate on.
func singlePost(p *models.Post) *postRepoStub {
	var mu sync.Mutex
	return &postRepoStub{
		getByIDFn: func(_ context.Context, id string) (*models.Post, error) {
			if id != p.ID {
				return nil, models.NewNotFoundError("Post", id)
			}
			cp := *p
			return &cp, nil
		},
		mutateFn: func(_ context.Context, id string, fn func(*models.Post) error) (*models.Post, error) {
			mu.Lock()
			defer mu.Unlock()
			if id != p.ID {
				return nil, models.NewNotFoundError("Post", id)
			}
			cp := *p
			cp.LikedBy = append([]string(nil), p.LikedBy...)
			cp.Comments = append([]models.Comment(nil), p.Comments...)
			if err := fn(&cp); err != nil {
				return nil, err
			}
			cp.Normalize()
			*p = cp
			out := cp
			return &out, nil
		},
	}
}

// followRepoStub is a stub for repository.FollowRepository.
type followRepoStub struct {
	toggleFn        func(context.Context, string, string) (bool, error)
	countsFn        func(context.Context, string) (repository.FollowCounts, error)
	listFollowingFn func(context.Context, string) ([]string, error)
	listFollowersFn func(context.Context, string) ([]string, error)
}

var _ repository.FollowRepository = (*followRepoStub)(nil)

func (s *followRepoStub) Exists(context.Context, string, string) (bool, error) { return false, nil }
func (s *followRepoStub) Toggle(ctx context.Context, follower, following string) (bool, error) {
	if s.toggleFn == nil {
		return true, nil
	}
	return s.toggleFn(ctx, follower, following)
}
func (s *followRepoStub) CreateIfAbsent(context.Context, string, string) (bool, error) {
	return true, nil
}
func (s *followRepoStub) Counts(ctx context.Context, username string) (repository.FollowCounts, error) {
	if s.countsFn == nil {
		return repository.FollowCounts{}, nil
	}
	return s.countsFn(ctx, username)
}
func (s *followRepoStub) ListFollowing(ctx context.Context, username string) ([]string, error) {
	if s.listFollowingFn == nil {
		return nil, nil
	}
	return s.listFollowingFn(ctx, username)
}
func (s *followRepoStub) ListFollowers(ctx context.Context, username string) ([]string, error) {
	if s.listFollowersFn == nil {
		return nil, nil
	}
	return s.listFollowersFn(ctx, username)
}

// notificationRepoStub records appended notifications.
type notificationRepoStub struct {
	mu        sync.Mutex
	appended  []models.Notification
	appendErr error
	unread    int64
}

var _ repository.NotificationRepository = (*notificationRepoStub)(nil)

func (s *notificationRepoStub) Append(_ context.Context, n *models.Notification) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return 0, s.appendErr
	}
	n.ID = uint(len(s.appended) + 1)
	s.appended = append(s.appended, *n)
	return 0, nil
}
func (s *notificationRepoStub) ListByUser(_ context.Context, username string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for i := len(s.appended) - 1; i >= 0; i-- {
		if s.appended[i].User == username {
			out = append(out, s.appended[i])
		}
	}
	return out, nil
}
func (s *notificationRepoStub) MarkAllRead(context.Context, string) (int64, error) { return 0, nil }
func (s *notificationRepoStub) ClearAll(context.Context, string) (int64, error)    { return 0, nil }
func (s *notificationRepoStub) UnreadCount(context.Context, string) (int64, error) {
	return s.unread, nil
}

func (s *notificationRepoStub) sent() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.appended...)
}

// publisherStub records published notifications.
type publisherStub struct {
	mu        sync.Mutex
	published []models.Notification
	err       error
}

func (p *publisherStub) PublishNotification(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, *n)
	return nil
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
