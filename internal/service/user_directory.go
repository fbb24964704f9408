package service

import (
	"context"

	"socialapp/internal/cache"
	"socialapp/internal/models"
	"socialapp/internal/repository"
)

// UserDirectory resolves subject ids to users through a Redis cache-aside.
// Users are not updated after provisioning, so cached entries only expire.
type UserDirectory struct {
	users repository.UserRepository
	cache *cache.Cache
}

// NewUserDirectory reads users through c. A nil c disables caching.
func NewUserDirectory(users repository.UserRepository, c *cache.Cache) *UserDirectory {
	return &UserDirectory{users: users, cache: c}
}

// Lookup returns the user for subjectID or a not-found error.
func (d *UserDirectory) Lookup(ctx context.Context, subjectID string) (*models.User, error) {
	var user models.User
	err := d.cache.Aside(ctx, cache.UserKey(subjectID), &user, cache.UserTTL, func() error {
		u, err := d.users.GetByUserID(ctx, subjectID)
		if err != nil {
			return err
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DisplayName returns the user name recorded for subjectID.
func (d *UserDirectory) DisplayName(ctx context.Context, subjectID string) (string, error) {
	u, err := d.Lookup(ctx, subjectID)
	if err != nil {
		return "", err
	}
	return u.UserName, nil
}

// requireDisplayName resolves the acting subject's name. A verified subject
// without a directory record is a referential-integrity failure.
func (d *UserDirectory) requireDisplayName(ctx context.Context, subjectID string) (string, error) {
	name, err := d.DisplayName(ctx, subjectID)
	if models.IsCode(err, models.CodeNotFound) {
		return "", models.NewIntegrityError("No user record for the signed-in subject")
	}
	return name, err
}
