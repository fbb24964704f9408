// Package repository provides data access layer implementations for the application.
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

// PostRepository defines the interface for post data operations.
//
// AddLiker, RemoveLiker and their comment counterparts are conditional
// single-document updates: the membership test and the mutation of the count
// and roster happen in one store operation, so concurrent callers can never
// double count or leave the count and roster out of step.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id bson.ObjectID) (*models.Post, error)
	List(ctx context.Context, limit, offset int64) ([]*models.Post, int64, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.Post, error)
	ListByUserName(ctx context.Context, userName string) ([]*models.Post, error)
	Delete(ctx context.Context, id bson.ObjectID) (*models.Post, error)

	AddLiker(ctx context.Context, postID bson.ObjectID, liker models.Liker) (models.LikeOutcome, error)
	RemoveLiker(ctx context.Context, postID bson.ObjectID, userID string) (models.LikeOutcome, error)

	AddComment(ctx context.Context, postID bson.ObjectID, comment *models.Comment) error
	RemoveComment(ctx context.Context, postID, commentID bson.ObjectID) (bool, error)
	ListComments(ctx context.Context, postID bson.ObjectID) ([]models.Comment, error)
	AddCommentLiker(ctx context.Context, postID, commentID bson.ObjectID, liker models.Liker) (models.LikeOutcome, error)
	RemoveCommentLiker(ctx context.Context, postID, commentID bson.ObjectID, userID string) (models.LikeOutcome, error)

	RecentLikes(ctx context.Context, authorID string, n int) ([]models.LikeDigest, error)
}

// postRepository implements PostRepository
type postRepository struct {
	posts *mongo.Collection
	log   *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *mongo.Database) PostRepository {
	return &postRepository{
		posts: db.Collection(database.PostsCollection),
		log:   observability.NewRepoLogger(database.PostsCollection),
	}
}

// likeState is the projection read back after a roster mutation.
type likeState struct {
	UserID string `bson:"userId"`
	Likes  int    `bson:"likes"`
}

var likeStateProjection = bson.M{"userId": 1, "likes": 1}

func postNotFound(id bson.ObjectID) error {
	return models.NewNotFoundError("Post", id.Hex())
}

func commentNotFound(id bson.ObjectID) error {
	return models.NewNotFoundError("Comment", id.Hex())
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackStore("create", database.PostsCollection)()

	if post.ID.IsZero() {
		post.ID = bson.NewObjectID()
	}
	// Empty arrays rather than null so $size and $push always apply.
	if post.Likers == nil {
		post.Likers = []models.Liker{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	post.Likes = len(post.Likers)

	if _, err := r.posts.InsertOne(ctx, post); err != nil {
		r.log.LogError(ctx, err, "create")
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id bson.ObjectID) (*models.Post, error) {
	defer observability.TrackStore("get", database.PostsCollection)()

	var post models.Post
	err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, postNotFound(id)
	}
	if err != nil {
		r.log.LogError(ctx, err, "get")
		return nil, fmt.Errorf("find post: %w", err)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int64) ([]*models.Post, int64, error) {
	defer observability.TrackStore("list", database.PostsCollection)()

	total, err := r.posts.CountDocuments(ctx, bson.M{})
	if err != nil {
		r.log.LogError(ctx, err, "count")
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(offset).
		SetLimit(limit)
	posts, err := r.find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Post, error) {
	defer observability.TrackStore("list_by_user", database.PostsCollection)()
	return r.find(ctx, bson.M{"userId": userID}, newestFirst())
}

func (r *postRepository) ListByUserName(ctx context.Context, userName string) ([]*models.Post, error) {
	defer observability.TrackStore("list_by_user_name", database.PostsCollection)()
	return r.find(ctx, bson.M{"userName": userName}, newestFirst())
}

func newestFirst() *options.FindOptionsBuilder {
	return options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
}

func (r *postRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*models.Post, error) {
	cursor, err := r.posts.Find(ctx, filter, opts)
	if err != nil {
		r.log.LogError(ctx, err, "find")
		return nil, fmt.Errorf("find posts: %w", err)
	}
	posts := make([]*models.Post, 0)
	if err := cursor.All(ctx, &posts); err != nil {
		r.log.LogError(ctx, err, "decode")
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

func (r *postRepository) Delete(ctx context.Context, id bson.ObjectID) (*models.Post, error) {
	defer observability.TrackStore("delete", database.PostsCollection)()

	var post models.Post
	err := r.posts.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, postNotFound(id)
	}
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return nil, fmt.Errorf("delete post: %w", err)
	}
	return &post, nil
}

func (r *postRepository) AddLiker(ctx context.Context, postID bson.ObjectID, liker models.Liker) (models.LikeOutcome, error) {
	defer observability.TrackStore("add_liker", database.PostsCollection)()

	filter := bson.M{
		"_id":           postID,
		"likers.userId": bson.M{"$ne": liker.UserID},
	}
	update := bson.M{
		"$inc":         bson.M{"likes": 1},
		"$push":        bson.M{"likers": liker},
		"$currentDate": bson.M{"updatedAt": true},
	}
	return r.mutateRoster(ctx, "add_liker", postID, filter, update)
}

func (r *postRepository) RemoveLiker(ctx context.Context, postID bson.ObjectID, userID string) (models.LikeOutcome, error) {
	defer observability.TrackStore("remove_liker", database.PostsCollection)()

	filter := bson.M{
		"_id":           postID,
		"likers.userId": userID,
	}
	// Pulling by subject id removes the id and its display name together.
	update := bson.M{
		"$inc":         bson.M{"likes": -1},
		"$pull":        bson.M{"likers": bson.M{"userId": userID}},
		"$currentDate": bson.M{"updatedAt": true},
	}
	return r.mutateRoster(ctx, "remove_liker", postID, filter, update)
}

// mutateRoster applies a conditional roster update. When the condition does
// not hold the post is re-read to tell a missing post from a no-op.
func (r *postRepository) mutateRoster(ctx context.Context, op string, postID bson.ObjectID, filter, update bson.M) (models.LikeOutcome, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(likeStateProjection)

	var state likeState
	err := r.posts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&state)
	if err == nil {
		r.log.LogUpdate(ctx, op, true)
		return models.LikeOutcome{Likes: state.Likes, Applied: true, AuthorID: state.UserID}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		r.log.LogError(ctx, err, op)
		return models.LikeOutcome{}, fmt.Errorf("%s: %w", op, err)
	}

	err = r.posts.FindOne(ctx, bson.M{"_id": postID},
		options.FindOne().SetProjection(likeStateProjection)).Decode(&state)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.LikeOutcome{}, postNotFound(postID)
	}
	if err != nil {
		r.log.LogError(ctx, err, op)
		return models.LikeOutcome{}, fmt.Errorf("%s: %w", op, err)
	}
	r.log.LogUpdate(ctx, op, false)
	return models.LikeOutcome{Likes: state.Likes, AuthorID: state.UserID}, nil
}

func (r *postRepository) AddComment(ctx context.Context, postID bson.ObjectID, comment *models.Comment) error {
	defer observability.TrackStore("add_comment", database.PostsCollection)()

	if comment.ID.IsZero() {
		comment.ID = bson.NewObjectID()
	}
	if comment.Likers == nil {
		comment.Likers = []models.Liker{}
	}
	comment.Likes = len(comment.Likers)

	res, err := r.posts.UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{
			"$push":        bson.M{"comments": comment},
			"$currentDate": bson.M{"updatedAt": true},
		})
	if err != nil {
		r.log.LogError(ctx, err, "add_comment")
		return fmt.Errorf("add comment: %w", err)
	}
	if res.MatchedCount == 0 {
		return postNotFound(postID)
	}
	r.log.LogUpdate(ctx, "add_comment", true)
	return nil
}

func (r *postRepository) RemoveComment(ctx context.Context, postID, commentID bson.ObjectID) (bool, error) {
	defer observability.TrackStore("remove_comment", database.PostsCollection)()

	res, err := r.posts.UpdateOne(ctx,
		bson.M{"_id": postID, "comments.id": commentID},
		bson.M{
			"$pull":        bson.M{"comments": bson.M{"id": commentID}},
			"$currentDate": bson.M{"updatedAt": true},
		})
	if err != nil {
		r.log.LogError(ctx, err, "remove_comment")
		return false, fmt.Errorf("remove comment: %w", err)
	}
	if res.MatchedCount > 0 {
		r.log.LogUpdate(ctx, "remove_comment", true)
		return true, nil
	}

	exists, err := r.exists(ctx, postID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, postNotFound(postID)
	}
	r.log.LogUpdate(ctx, "remove_comment", false)
	return false, nil
}

func (r *postRepository) ListComments(ctx context.Context, postID bson.ObjectID) ([]models.Comment, error) {
	defer observability.TrackStore("list_comments", database.PostsCollection)()

	var doc struct {
		Comments []models.Comment `bson:"comments"`
	}
	err := r.posts.FindOne(ctx, bson.M{"_id": postID},
		options.FindOne().SetProjection(bson.M{"comments": 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, postNotFound(postID)
	}
	if err != nil {
		r.log.LogError(ctx, err, "list_comments")
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if doc.Comments == nil {
		return []models.Comment{}, nil
	}
	return doc.Comments, nil
}

func (r *postRepository) AddCommentLiker(ctx context.Context, postID, commentID bson.ObjectID, liker models.Liker) (models.LikeOutcome, error) {
	defer observability.TrackStore("add_comment_liker", database.PostsCollection)()

	filter, update := addCommentLikerQuery(postID, commentID, liker)
	return r.mutateCommentRoster(ctx, "add_comment_liker", postID, commentID, filter, update)
}

func (r *postRepository) RemoveCommentLiker(ctx context.Context, postID, commentID bson.ObjectID, userID string) (models.LikeOutcome, error) {
	defer observability.TrackStore("remove_comment_liker", database.PostsCollection)()

	filter, update := removeCommentLikerQuery(postID, commentID, userID)
	return r.mutateCommentRoster(ctx, "remove_comment_liker", postID, commentID, filter, update)
}

// addCommentLikerQuery matches the comment only while liker is absent from
// its roster; $elemMatch binds the positional $ to that same comment.
func addCommentLikerQuery(postID, commentID bson.ObjectID, liker models.Liker) (filter, update bson.M) {
	filter = bson.M{
		"_id": postID,
		"comments": bson.M{"$elemMatch": bson.M{
			"id":            commentID,
			"likers.userId": bson.M{"$ne": liker.UserID},
		}},
	}
	update = bson.M{
		"$inc":  bson.M{"comments.$.likes": 1},
		"$push": bson.M{"comments.$.likers": liker},
	}
	return filter, update
}

// removeCommentLikerQuery matches the comment only while userID is in its
// roster, and pulls the whole {userId, userName} pair.
func removeCommentLikerQuery(postID, commentID bson.ObjectID, userID string) (filter, update bson.M) {
	filter = bson.M{
		"_id": postID,
		"comments": bson.M{"$elemMatch": bson.M{
			"id":            commentID,
			"likers.userId": userID,
		}},
	}
	update = bson.M{
		"$inc":  bson.M{"comments.$.likes": -1},
		"$pull": bson.M{"comments.$.likers": bson.M{"userId": userID}},
	}
	return filter, update
}

func (r *postRepository) mutateCommentRoster(ctx context.Context, op string, postID, commentID bson.ObjectID, filter, update bson.M) (models.LikeOutcome, error) {
	var doc struct {
		Comments []models.Comment `bson:"comments"`
	}
	projection := bson.M{"comments": 1}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(projection)

	applied := true
	err := r.posts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		applied = false
		err = r.posts.FindOne(ctx, bson.M{"_id": postID},
			options.FindOne().SetProjection(projection)).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.LikeOutcome{}, postNotFound(postID)
		}
	}
	if err != nil {
		r.log.LogError(ctx, err, op)
		return models.LikeOutcome{}, fmt.Errorf("%s: %w", op, err)
	}

	post := models.Post{Comments: doc.Comments}
	comment := post.FindComment(commentID)
	if comment == nil {
		return models.LikeOutcome{}, commentNotFound(commentID)
	}
	r.log.LogUpdate(ctx, op, applied)
	return models.LikeOutcome{Likes: comment.Likes, Applied: applied, AuthorID: comment.UserID}, nil
}

func (r *postRepository) exists(ctx context.Context, id bson.ObjectID) (bool, error) {
	n, err := r.posts.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		r.log.LogError(ctx, err, "exists")
		return false, fmt.Errorf("count post: %w", err)
	}
	return n > 0, nil
}

func (r *postRepository) RecentLikes(ctx context.Context, authorID string, n int) ([]models.LikeDigest, error) {
	defer observability.TrackStore("recent_likes", database.PostsCollection)()

	cursor, err := r.posts.Aggregate(ctx, RecentLikesPipeline(authorID, n))
	if err != nil {
		r.log.LogError(ctx, err, "recent_likes")
		return nil, fmt.Errorf("aggregate recent likes: %w", err)
	}
	digests := make([]models.LikeDigest, 0)
	if err := cursor.All(ctx, &digests); err != nil {
		r.log.LogError(ctx, err, "recent_likes")
		return nil, fmt.Errorf("decode recent likes: %w", err)
	}
	return digests, nil
}

// RecentLikesPipeline builds the read-only aggregation behind the like
// digest: every post by authorID in creation order, each with its total
// like count and the display names of its n most recent likers, newest first.
func RecentLikesPipeline(authorID string, n int) mongo.Pipeline {
	likers := bson.M{"$ifNull": bson.A{"$likers", bson.A{}}}
	names := bson.M{"$ifNull": bson.A{"$likers.userName", bson.A{}}}

	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": authorID}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: bson.M{"$toString": "$_id"}},
			{Key: "body", Value: 1},
			{Key: "likeNamesCount", Value: bson.M{"$size": likers}},
			{Key: "recentLikerNames", Value: bson.M{
				"$reverseArray": bson.M{"$slice": bson.A{names, -n}},
			}},
		}}},
	}
}
