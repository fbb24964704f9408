package repository

import (
	"context"
	"errors"
	"fmt"

	"socialapp/internal/database"
	"socialapp/internal/models"
	"socialapp/internal/observability"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UserRepository defines the interface for User Directory operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	UserNameExists(ctx context.Context, userName string) (bool, error)
}

type userRepository struct {
	users *mongo.Collection
	log   *observability.RepoLogger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		users: db.Collection(database.UsersCollection),
		log:   observability.NewRepoLogger(database.UsersCollection),
	}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackStore("create", database.UsersCollection)()

	_, err := r.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return models.NewConflictError("User already exists")
	}
	if err != nil {
		r.log.LogError(ctx, err, "create")
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	defer observability.TrackStore("get", database.UsersCollection)()
	return r.findOne(ctx, bson.M{"userId": userID}, userID)
}

func (r *userRepository) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	defer observability.TrackStore("get_by_name", database.UsersCollection)()
	return r.findOne(ctx, bson.M{"userName": userName}, userName)
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M, key string) (*models.User, error) {
	var user models.User
	err := r.users.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.NewNotFoundError("User", key)
	}
	if err != nil {
		r.log.LogError(ctx, err, "get")
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) UserNameExists(ctx context.Context, userName string) (bool, error) {
	defer observability.TrackStore("name_exists", database.UsersCollection)()

	n, err := r.users.CountDocuments(ctx, bson.M{"userName": userName}, options.Count().SetLimit(1))
	if err != nil {
		r.log.LogError(ctx, err, "name_exists")
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}
