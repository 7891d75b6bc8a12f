// Package seed populates a database with demo data for development and
// testing. Posts, likes, comments and follows go through the services so
// derived fields and notifications match what the API would produce.
package seed

import (
	"context"
	"fmt"
	"log"
	"strings"

	"inkwell/internal/database"
	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account shares.
const DefaultPassword = "password123"

// Options configuration for the seeder
type Options struct {
	NumUsers int
	NumPosts int
	// MaxLikes and MaxComments bound the engagement generated per post.
	MaxLikes    int
	MaxComments int
	// FollowRatio is the chance that any user follows any other user.
	FollowRatio float64
	// Seed makes the generated content reproducible. Zero picks a random seed.
	Seed int64
	// MinCost hashes the shared password with bcrypt.MinCost.
	MinCost bool
}

// DefaultOptions returns the options used by cmd/seed when no flags are given.
func DefaultOptions() Options {
	return Options{
		NumUsers:    20,
		NumPosts:    60,
		MaxLikes:    8,
		MaxComments: 4,
		FollowRatio: 0.25,
	}
}

// Result summarizes one seeding run.
type Result struct {
	Users         []string
	Posts         int
	Likes         int
	Comments      int
	Follows       int
	Notifications int64
}

// Seeder writes demo data through the repositories and services.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	faker   *gofakeit.Faker
	users   repository.UserRepository
	posts   *service.PostService
	social  *service.SocialService
	notices repository.NotificationRepository
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	flags := featureflags.NewManager("")
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	followRepo := repository.NewFollowRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	notifier := service.NewNotificationService(notificationRepo, nil, flags)

	return &Seeder{
		db:      db,
		opts:    opts,
		faker:   gofakeit.New(opts.Seed),
		users:   userRepo,
		posts:   service.NewPostService(postRepo, userRepo, followRepo, notifier, flags),
		social:  service.NewSocialService(followRepo, userRepo, notifier),
		notices: notificationRepo,
	}
}

// ClearAll removes every row from the schema-managed tables.
func (s *Seeder) ClearAll() error {
	log.Println("🧹 Clearing existing data...")
	tables := database.PersistentModels()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(tables[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", tables[i], err)
		}
	}
	return nil
}

// Run seeds users, follows, posts and engagement in that order.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	usernames, err := s.SeedUsers(ctx, s.opts.NumUsers)
	if err != nil {
		return nil, err
	}
	res := &Result{Users: usernames}

	if res.Follows, err = s.SeedFollows(ctx, usernames); err != nil {
		return nil, err
	}
	if err := s.SeedPosts(ctx, usernames, s.opts.NumPosts, res); err != nil {
		return nil, err
	}

	for _, u := range usernames {
		n, err := s.notices.UnreadCount(ctx, u)
		if err != nil {
			return nil, err
		}
		res.Notifications += n
	}
	return res, nil
}

// SeedUsers creates n accounts sharing DefaultPassword. The password is
// hashed once and reused.
func (s *Seeder) SeedUsers(ctx context.Context, n int) ([]string, error) {
	cost := bcrypt.DefaultCost
	if s.opts.MinCost {
		cost = bcrypt.MinCost
	}
	hash, err := service.HashPasswordWithCost(DefaultPassword, cost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	seen := make(map[string]bool, n)
	usernames := make([]string, 0, n)
	for attempts := 0; len(usernames) < n && attempts < n*10; attempts++ {
		username := strings.ToLower(s.faker.Username())
		if seen[username] || validation.ValidateUsername(username) != nil {
			continue
		}
		seen[username] = true

		exists, err := s.users.Exists(ctx, username)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		user := &models.User{
			Username:     username,
			PasswordHash: hash,
			PersonalInfo: models.PersonalInfo{
				"name":     s.faker.Name(),
				"bio":      s.faker.Sentence(8),
				"location": s.faker.City(),
				"website":  s.faker.URL(),
			},
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		usernames = append(usernames, username)
	}
	log.Printf("👤 Created %d users", len(usernames))
	return usernames, nil
}

// SeedFollows makes each user follow each other user with probability
// FollowRatio.
func (s *Seeder) SeedFollows(ctx context.Context, usernames []string) (int, error) {
	follows := 0
	for _, follower := range usernames {
		for _, target := range usernames {
			if follower == target || s.faker.Float64() >= s.opts.FollowRatio {
				continue
			}
			if _, err := s.social.ToggleFollow(ctx, follower, target); err != nil {
				return follows, fmt.Errorf("follow %s -> %s: %w", follower, target, err)
			}
			follows++
		}
	}
	log.Printf("🤝 Created %d follows", follows)
	return follows, nil
}

// SeedPosts creates n posts by random authors and adds likes and comments
// from other users.
func (s *Seeder) SeedPosts(ctx context.Context, usernames []string, n int, res *Result) error {
	if len(usernames) == 0 {
		return nil
	}

	for i := 0; i < n; i++ {
		author := usernames[s.faker.Number(0, len(usernames)-1)]
		post, err := s.posts.Create(ctx, service.CreatePostInput{
			Author:  author,
			Title:   fmt.Sprintf("%s %d", strings.TrimSuffix(s.faker.Sentence(4), "."), i+1),
			Content: s.faker.Paragraph(s.faker.Number(1, 4), 4, 12, "\n\n"),
			Tags:    strings.Join([]string{s.faker.Hobby(), s.faker.Word()}, ","),
		})
		if err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		res.Posts++

		for _, liker := range s.pick(usernames, author, s.opts.MaxLikes) {
			if _, err := s.posts.ToggleLike(ctx, post.ID, liker); err != nil {
				return fmt.Errorf("like %s: %w", post.ID, err)
			}
			res.Likes++
		}
		for _, commenter := range s.pick(usernames, author, s.opts.MaxComments) {
			if _, err := s.posts.AddComment(ctx, post.ID, commenter, s.faker.Sentence(s.faker.Number(3, 12))); err != nil {
				return fmt.Errorf("comment on %s: %w", post.ID, err)
			}
			res.Comments++
		}
	}
	log.Printf("📝 Created %d posts, %d likes, %d comments", res.Posts, res.Likes, res.Comments)
	return nil
}

// pick returns up to max distinct users other than exclude.
func (s *Seeder) pick(usernames []string, exclude string, max int) []string {
	if max <= 0 {
		return nil
	}
	others := make([]string, 0, len(usernames))
	for _, u := range usernames {
		if u != exclude {
			others = append(others, u)
		}
	}
	s.faker.ShuffleStrings(others)
	count := s.faker.Number(0, max)
	if count > len(others) {
		count = len(others)
	}
	return others[:count]
}
