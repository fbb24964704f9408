// Command main runs the database seeder for socialapp.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"socialapp/internal/config"
	"socialapp/internal/database"
	"socialapp/internal/repository"
	"socialapp/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	maxLikes := flag.Int("likes", 20, "Maximum likes per post")
	maxComments := flag.Int("comments", 5, "Maximum comments per post")
	shouldClean := flag.Bool("clean", true, "Drop posts and users before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one from the clock)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Printf("Target: %d users, %d posts, clean=%v\n", *numUsers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client, db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	if *shouldClean {
		for _, name := range []string{database.PostsCollection, database.UsersCollection} {
			if err := db.Collection(name).Drop(ctx); err != nil {
				log.Fatalf("❌ Cleanup of %s failed: %v", name, err)
			}
		}
	}
	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("❌ Index creation failed: %v", err)
	}

	s := seed.NewSeeder(repository.NewPostRepository(db), repository.NewUserRepository(db), seed.Options{
		NumUsers:           *numUsers,
		NumPosts:           *numPosts,
		MaxLikesPerPost:    *maxLikes,
		MaxCommentsPerPost: *maxComments,
		Seed:               *randSeed,
	})
	res, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d users, %d posts, %d likes, %d comments.",
		len(res.Users), len(res.Posts), res.Likes, res.Comments)
}
