// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sort"
	"strings"
	"sync"
	"time"

	"socialapp/internal/models"
	"socialapp/internal/repository"
	"socialapp/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	_ repository.PostRepository = (*PostStore)(nil)
	_ repository.UserRepository = (*UserStore)(nil)
	_ storage.BlobStore         = (*BlobStore)(nil)
)

// PostStore is an in-memory post repository. Every method holds the store
// mutex for its whole duration, which gives the same single-document
// atomicity the Mongo repository gets from conditional updates.
type PostStore struct {
	mu    sync.Mutex
	posts map[bson.ObjectID]*models.Post
}

// NewPostStore creates an empty in-memory post store.
func NewPostStore() *PostStore {
	return &PostStore{posts: make(map[bson.ObjectID]*models.Post)}
}

// Snapshot returns a copy of the stored post, or nil.
func (s *PostStore) Snapshot(id bson.ObjectID) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil
	}
	return clonePost(p)
}

// Create stores a copy of post, assigning an id when missing.
func (s *PostStore) Create(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post.ID.IsZero() {
		post.ID = bson.NewObjectID()
	}
	if post.Likers == nil {
		post.Likers = []models.Liker{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	post.Likes = len(post.Likers)
	now := time.Now().UTC()
	post.CreatedAt, post.UpdatedAt = now, now
	s.posts[post.ID] = clonePost(post)
	return nil
}

// GetByID returns a copy of the post or a not-found error.
func (s *PostStore) GetByID(_ context.Context, id bson.ObjectID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, models.NewNotFoundError("Post", id.Hex())
	}
	return clonePost(p), nil
}

// List returns posts newest first.
func (s *PostStore) List(_ context.Context, limit, offset int64) ([]*models.Post, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sorted(func(*models.Post) bool { return true })
	total := int64(len(all))
	if offset >= total {
		return []*models.Post{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// ListByUserID returns the subject's posts newest first.
func (s *PostStore) ListByUserID(_ context.Context, userID string) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(p *models.Post) bool { return p.UserID == userID }), nil
}

// ListByUserName returns posts carrying the display name newest first.
func (s *PostStore) ListByUserName(_ context.Context, userName string) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(p *models.Post) bool { return p.UserName == userName }), nil
}

func (s *PostStore) sorted(keep func(*models.Post) bool) []*models.Post {
	out := make([]*models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if keep(p) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}

// Delete removes the post and returns what was stored.
func (s *PostStore) Delete(_ context.Context, id bson.ObjectID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, models.NewNotFoundError("Post", id.Hex())
	}
	delete(s.posts, id)
	return p, nil
}

// AddLiker appends liker when the subject is not yet in the roster.
func (s *PostStore) AddLiker(_ context.Context, postID bson.ObjectID, liker models.Liker) (models.LikeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return models.LikeOutcome{}, models.NewNotFoundError("Post", postID.Hex())
	}
	if p.HasLiker(liker.UserID) {
		return models.LikeOutcome{Likes: p.Likes, AuthorID: p.UserID}, nil
	}
	p.Likers = append(p.Likers, liker)
	p.Likes++
	return models.LikeOutcome{Likes: p.Likes, Applied: true, AuthorID: p.UserID}, nil
}

// RemoveLiker removes the subject from the roster when present.
func (s *PostStore) RemoveLiker(_ context.Context, postID bson.ObjectID, userID string) (models.LikeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return models.LikeOutcome{}, models.NewNotFoundError("Post", postID.Hex())
	}
	var removed bool
	p.Likers, removed = without(p.Likers, userID)
	if !removed {
		return models.LikeOutcome{Likes: p.Likes, AuthorID: p.UserID}, nil
	}
	p.Likes--
	return models.LikeOutcome{Likes: p.Likes, Applied: true, AuthorID: p.UserID}, nil
}

// AddComment appends comment to the post.
func (s *PostStore) AddComment(_ context.Context, postID bson.ObjectID, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return models.NewNotFoundError("Post", postID.Hex())
	}
	if comment.ID.IsZero() {
		comment.ID = bson.NewObjectID()
	}
	if comment.Likers == nil {
		comment.Likers = []models.Liker{}
	}
	comment.Likes = len(comment.Likers)
	p.Comments = append(p.Comments, cloneComment(*comment))
	return nil
}

// RemoveComment deletes the comment and reports whether it existed.
func (s *PostStore) RemoveComment(_ context.Context, postID, commentID bson.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return false, models.NewNotFoundError("Post", postID.Hex())
	}
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			p.Comments = append(p.Comments[:i], p.Comments[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// ListComments returns the post's comments in insertion order.
func (s *PostStore) ListComments(_ context.Context, postID bson.ObjectID) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return nil, models.NewNotFoundError("Post", postID.Hex())
	}
	return clonePost(p).Comments, nil
}

// AddCommentLiker appends liker to the comment roster when absent.
func (s *PostStore) AddCommentLiker(_ context.Context, postID, commentID bson.ObjectID, liker models.Liker) (models.LikeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.comment(postID, commentID)
	if err != nil {
		return models.LikeOutcome{}, err
	}
	if c.HasLiker(liker.UserID) {
		return models.LikeOutcome{Likes: c.Likes, AuthorID: c.UserID}, nil
	}
	c.Likers = append(c.Likers, liker)
	c.Likes++
	return models.LikeOutcome{Likes: c.Likes, Applied: true, AuthorID: c.UserID}, nil
}

// RemoveCommentLiker removes the subject from the comment roster when present.
func (s *PostStore) RemoveCommentLiker(_ context.Context, postID, commentID bson.ObjectID, userID string) (models.LikeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.comment(postID, commentID)
	if err != nil {
		return models.LikeOutcome{}, err
	}
	var removed bool
	c.Likers, removed = without(c.Likers, userID)
	if !removed {
		return models.LikeOutcome{Likes: c.Likes, AuthorID: c.UserID}, nil
	}
	c.Likes--
	return models.LikeOutcome{Likes: c.Likes, Applied: true, AuthorID: c.UserID}, nil
}

func (s *PostStore) comment(postID, commentID bson.ObjectID) (*models.Comment, error) {
	p, ok := s.posts[postID]
	if !ok {
		return nil, models.NewNotFoundError("Post", postID.Hex())
	}
	c := p.FindComment(commentID)
	if c == nil {
		return nil, models.NewNotFoundError("Comment", commentID.Hex())
	}
	return c, nil
}

// RecentLikes mirrors the aggregation pipeline: posts by authorID in
// creation order, each with its n newest liker names, newest first.
func (s *PostStore) RecentLikes(_ context.Context, authorID string, n int) ([]models.LikeDigest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []*models.Post
	for _, p := range s.posts {
		if p.UserID == authorID {
			owned = append(owned, p)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].ID.Hex() < owned[j].ID.Hex()
	})

	digests := make([]models.LikeDigest, 0, len(owned))
	for _, p := range owned {
		names := p.LikerNames()
		start := len(names) - n
		if start < 0 {
			start = 0
		}
		recent := make([]string, 0, len(names)-start)
		for i := len(names) - 1; i >= start; i-- {
			recent = append(recent, names[i])
		}
		digests = append(digests, models.LikeDigest{
			PostID:           p.ID.Hex(),
			Body:             p.Body,
			RecentLikerNames: recent,
			LikeNamesCount:   len(names),
		})
	}
	return digests, nil
}

func without(likers []models.Liker, userID string) ([]models.Liker, bool) {
	for i, l := range likers {
		if l.UserID == userID {
			return append(likers[:i:i], likers[i+1:]...), true
		}
	}
	return likers, false
}

func clonePost(p *models.Post) *models.Post {
	cp := *p
	cp.Likers = append([]models.Liker{}, p.Likers...)
	cp.Comments = make([]models.Comment, 0, len(p.Comments))
	for _, c := range p.Comments {
		cp.Comments = append(cp.Comments, cloneComment(c))
	}
	return &cp
}

func cloneComment(c models.Comment) models.Comment {
	c.Likers = append([]models.Liker{}, c.Likers...)
	return c
}

// UserStore is an in-memory User Directory.
type UserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

// NewUserStore creates a user store seeded with users.
func NewUserStore(users ...models.User) *UserStore {
	s := &UserStore{users: make(map[string]models.User)}
	for _, u := range users {
		s.users[u.UserID] = u
	}
	return s
}

// Create stores user, rejecting duplicate ids, names and emails.
func (s *UserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.UserID == user.UserID || u.UserName == user.UserName ||
			strings.EqualFold(u.UserEmail, user.UserEmail) {
			return models.NewConflictError("User already exists")
		}
	}
	s.users[user.UserID] = *user
	return nil
}

// GetByUserID looks a user up by subject id.
func (s *UserStore) GetByUserID(_ context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, models.NewNotFoundError("User", userID)
	}
	return &u, nil
}

// GetByUserName looks a user up by display name.
func (s *UserStore) GetByUserName(_ context.Context, userName string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.UserName == userName {
			return &u, nil
		}
	}
	return nil, models.NewNotFoundError("User", userName)
}

// UserNameExists reports whether a display name is taken.
func (s *UserStore) UserNameExists(ctx context.Context, userName string) (bool, error) {
	_, err := s.GetByUserName(ctx, userName)
	if models.IsCode(err, models.CodeNotFound) {
		return false, nil
	}
	return err == nil, err
}

// BlobStore is an in-memory blob store. DeleteErr, when set, is returned by
// Delete to exercise best-effort cleanup paths.
type BlobStore struct {
	mu        sync.Mutex
	objects   map[string]storage.Blob
	DeleteErr error
}

// NewBlobStore creates an empty in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]storage.Blob)}
}

// Put stores a copy of data.
func (b *BlobStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = storage.Blob{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

// Get returns the object or storage.ErrNotFound.
func (b *BlobStore) Get(_ context.Context, key string) (*storage.Blob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &obj, nil
}

// Delete removes the object. Missing keys are not an error.
func (b *BlobStore) Delete(_ context.Context, key string) error {
	if b.DeleteErr != nil {
		return b.DeleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// Len returns the number of stored objects.
func (b *BlobStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
