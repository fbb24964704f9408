package models

import "time"

// User is a User Directory record keyed by the identity provider's subject id.
// UserName is denormalized into posts, comments and like rosters; renames are
// not propagated.
type User struct {
	UserID    string    `bson:"userId" json:"userId"`
	UserName  string    `bson:"userName" json:"userName"`
	UserEmail string    `bson:"userEmail" json:"userEmail"`
	Date      time.Time `bson:"date" json:"date"`
}

// LikeDigest is the derived "who recently liked your post" record. It is
// computed on read and never stored.
type LikeDigest struct {
	PostID           string   `bson:"_id" json:"postId"`
	Body             string   `bson:"body" json:"body"`
	RecentLikerNames []string `bson:"recentLikerNames" json:"recentLikerNames"`
	LikeNamesCount   int      `bson:"likeNamesCount" json:"likeNamesCount"`
}
