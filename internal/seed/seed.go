// Package seed provides helpers to create demo data for development and
// testing. Everything is written through the service layer so seeded likes
// and comments keep the same invariants as live traffic.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"socialapp/internal/models"
	"socialapp/internal/observability"
	"socialapp/internal/repository"
	"socialapp/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// Options configures the seeder.
type Options struct {
	NumUsers           int
	NumPosts           int
	MaxLikesPerPost    int
	MaxCommentsPerPost int
	// MaxDays spreads post and comment dates over the past N days.
	MaxDays int
	// Seed makes runs reproducible when non-zero.
	Seed int64
}

// Seeder creates users, posts, likes and comments.
type Seeder struct {
	opts     Options
	rng      *rand.Rand
	faker    *gofakeit.Faker
	users    *service.UserService
	posts    *service.PostService
	likes    *service.LikeService
	comments *service.CommentService
}

// Result summarizes a seeding run.
type Result struct {
	Users    []*models.User
	Posts    []*models.Post
	Likes    int
	Comments int
}

// NewSeeder wires a seeder over the given stores. Notifications are not
// published while seeding.
func NewSeeder(postRepo repository.PostRepository, userRepo repository.UserRepository, opts Options) *Seeder {
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}

	directory := service.NewUserDirectory(userRepo, nil)
	return &Seeder{
		opts:     opts,
		rng:      rand.New(rand.NewSource(opts.Seed)),
		faker:    gofakeit.New(opts.Seed),
		users:    service.NewUserService(userRepo, directory, postRepo),
		posts:    service.NewPostService(postRepo, directory, nil, 0),
		likes:    service.NewLikeService(postRepo, directory, nil),
		comments: service.NewCommentService(postRepo, directory, nil),
	}
}

// Run seeds users first, then posts with engagement from random users.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	for i := 0; i < s.opts.NumUsers; i++ {
		user, err := s.users.CreateUser(ctx, service.CreateUserInput{
			SubjectID: "seed|" + s.faker.UUID(),
			UserName:  s.userName(i),
			UserEmail: fmt.Sprintf("seed%d.%s", i, s.faker.Email()),
		})
		if err != nil {
			return res, fmt.Errorf("seed user %d: %w", i, err)
		}
		res.Users = append(res.Users, user)
	}
	if len(res.Users) == 0 {
		return res, nil
	}

	for i := 0; i < s.opts.NumPosts; i++ {
		author := res.Users[s.rng.Intn(len(res.Users))]
		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			SubjectID: author.UserID,
			Body:      s.faker.Paragraph(1, 3, 12, " "),
		})
		if err != nil {
			return res, fmt.Errorf("seed post %d: %w", i, err)
		}
		res.Posts = append(res.Posts, post)

		likes, err := s.seedLikes(ctx, post, res.Users)
		if err != nil {
			return res, err
		}
		res.Likes += likes

		comments, err := s.seedComments(ctx, post, res.Users)
		if err != nil {
			return res, err
		}
		res.Comments += comments
	}

	observability.Logger.InfoContext(ctx, "seeding complete",
		slog.Int("users", len(res.Users)),
		slog.Int("posts", len(res.Posts)),
		slog.Int("likes", res.Likes),
		slog.Int("comments", res.Comments),
	)
	return res, nil
}

func (s *Seeder) seedLikes(ctx context.Context, post *models.Post, users []*models.User) (int, error) {
	if s.opts.MaxLikesPerPost <= 0 {
		return 0, nil
	}
	n := s.rng.Intn(min(s.opts.MaxLikesPerPost, len(users)) + 1)
	var likes int
	for _, idx := range s.rng.Perm(len(users))[:n] {
		count, err := s.likes.Like(ctx, post.ID, users[idx].UserID)
		if err != nil {
			return likes, fmt.Errorf("seed like on %s: %w", post.ID.Hex(), err)
		}
		likes = count
	}
	return likes, nil
}

func (s *Seeder) seedComments(ctx context.Context, post *models.Post, users []*models.User) (int, error) {
	if s.opts.MaxCommentsPerPost <= 0 {
		return 0, nil
	}
	n := s.rng.Intn(s.opts.MaxCommentsPerPost + 1)
	for i := 0; i < n; i++ {
		commenter := users[s.rng.Intn(len(users))]
		_, err := s.comments.AddComment(ctx, service.AddCommentInput{
			SubjectID: commenter.UserID,
			PostID:    post.ID,
			Body:      s.faker.Sentence(s.rng.Intn(10) + 3),
			Date:      s.pastDate(),
		})
		if err != nil {
			return i, fmt.Errorf("seed comment on %s: %w", post.ID.Hex(), err)
		}
	}
	return n, nil
}

// userName builds a unique handle that satisfies the user name rules.
func (s *Seeder) userName(i int) string {
	base := strings.ToLower(s.faker.FirstName() + "." + s.faker.LastName())
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.':
			return r
		default:
			return -1
		}
	}, base)
	suffix := fmt.Sprintf("%d", i)
	if maxBase := 30 - len(suffix); len(base) > maxBase {
		base = base[:maxBase]
	}
	return base + suffix
}

func (s *Seeder) pastDate() time.Time {
	back := time.Duration(s.rng.Int63n(int64(s.opts.MaxDays) * int64(24*time.Hour)))
	return time.Now().UTC().Add(-back)
}
