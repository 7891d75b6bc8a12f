// Command main runs the database seeder for Inkwell.
package main

import (
	"context"
	"flag"
	"log"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()

	// Parse command line flags
	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create")
	numPosts := flag.Int("posts", defaults.NumPosts, "Number of posts to create")
	maxLikes := flag.Int("max-likes", defaults.MaxLikes, "Maximum likes per post")
	maxComments := flag.Int("max-comments", defaults.MaxComments, "Maximum comments per post")
	followRatio := flag.Float64("follow-ratio", defaults.FollowRatio, "Chance that a user follows another user")
	fakerSeed := flag.Int64("seed", 0, "Seed for reproducible content (0 = random)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d posts, clean=%v\n", *numUsers, *numPosts, *shouldClean)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		MaxLikes:    *maxLikes,
		MaxComments: *maxComments,
		FollowRatio: *followRatio,
		Seed:        *fakerSeed,
	})

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	res, err := s.Run(context.Background())
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d users, %d posts, %d follows, %d notifications.",
		len(res.Users), res.Posts, res.Follows, res.Notifications)
	log.Printf("📧 All test users have the password: %s", seed.DefaultPassword)
}
