package service

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"socialapp/internal/models"
	"socialapp/internal/repository"
)

const maxUserNameLen = 30

var userNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// UserService provisions users and serves profiles.
type UserService struct {
	users *UserDirectory
	repo  repository.UserRepository
	posts repository.PostRepository
}

// CreateUserInput is the directory record requested for SubjectID.
type CreateUserInput struct {
	SubjectID string
	UserName  string
	UserEmail string
}

// Profile is a user together with their posts.
type Profile struct {
	User  *models.User   `json:"user"`
	Posts []*models.Post `json:"posts"`
}

// NewUserService creates a UserService.
func NewUserService(repo repository.UserRepository, users *UserDirectory, posts repository.PostRepository) *UserService {
	return &UserService{users: users, repo: repo, posts: posts}
}

// CreateUser provisions the directory record for the signed-in subject.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if in.SubjectID == "" {
		return nil, models.NewForbiddenError("Sign in to create a user")
	}

	name := strings.TrimSpace(in.UserName)
	if name == "" {
		return nil, models.NewValidationError("User name is required")
	}
	if len(name) > maxUserNameLen {
		return nil, models.NewValidationError("User name too long (max 30 characters)")
	}
	if !userNamePattern.MatchString(name) {
		return nil, models.NewValidationError("User name may only contain letters, digits, '.', '_' and '-'")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(in.UserEmail))
	if err != nil {
		return nil, models.NewValidationError("A valid email is required")
	}

	user := &models.User{
		UserID:    in.SubjectID,
		UserName:  name,
		UserEmail: strings.ToLower(addr.Address),
		Date:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UserNameAvailable reports whether userName is free.
func (s *UserService) UserNameAvailable(ctx context.Context, userName string) (bool, error) {
	if strings.TrimSpace(userName) == "" {
		return false, models.NewValidationError("User name is required")
	}
	exists, err := s.repo.UserNameExists(ctx, userName)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Profile returns the signed-in subject's record and posts.
func (s *UserService) Profile(ctx context.Context, subjectID string) (*Profile, error) {
	if subjectID == "" {
		return nil, models.NewForbiddenError("Sign in to view your profile")
	}
	user, err := s.users.Lookup(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListByUserID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	markLikeable(subjectID, posts...)
	return &Profile{User: user, Posts: nonNilPosts(posts)}, nil
}
