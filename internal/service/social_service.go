package service

import (
	"context"
	"fmt"

	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
)

// SocialService manages follow edges.
type SocialService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	notifier   *NotificationService
}

// FollowResult is the outcome of ToggleFollow.
type FollowResult struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

func NewSocialService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	notifier *NotificationService,
) *SocialService {
	return &SocialService{followRepo: followRepo, userRepo: userRepo, notifier: notifier}
}

// ToggleFollow follows target, or unfollows when the edge already exists.
// Only a new follow notifies the target.
func (s *SocialService) ToggleFollow(ctx context.Context, follower, target string) (*FollowResult, error) {
	if follower == target {
		return nil, models.NewSelfFollowError()
	}
	exists, err := s.userRepo.Exists(ctx, target)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("User", target)
	}

	followed, err := s.followRepo.Toggle(ctx, follower, target)
	if err != nil {
		return nil, err
	}
	if !followed {
		observability.SocialEvents.WithLabelValues("unfollow").Inc()
		return &FollowResult{
			Action:  models.FollowActionUnfollowed,
			Message: fmt.Sprintf("Unfollowed %s", target),
		}, nil
	}

	observability.SocialEvents.WithLabelValues("follow").Inc()
	notifyQuietly(ctx, s.notifier, target, models.NotificationFollow, models.FollowMessage(follower), nil)
	return &FollowResult{
		Action:  models.FollowActionFollowed,
		Message: fmt.Sprintf("Successfully followed %s!", target),
	}, nil
}

func (s *SocialService) Counts(ctx context.Context, username string) (repository.FollowCounts, error) {
	return s.followRepo.Counts(ctx, username)
}

func (s *SocialService) FollowersCount(ctx context.Context, username string) (int64, error) {
	counts, err := s.followRepo.Counts(ctx, username)
	return counts.Followers, err
}

func (s *SocialService) FollowingCount(ctx context.Context, username string) (int64, error) {
	counts, err := s.followRepo.Counts(ctx, username)
	return counts.Following, err
}

// Following returns the usernames username follows.
func (s *SocialService) Following(ctx context.Context, username string) ([]string, error) {
	return s.followRepo.ListFollowing(ctx, username)
}

func (s *SocialService) Followers(ctx context.Context, username string) ([]string, error) {
	return s.followRepo.ListFollowers(ctx, username)
}
