// Package models contains data structures for the application's domain models.
package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Liker is one entry of a like roster. Keeping the subject id and its display
// name in the same element makes the id/name correspondence structural.
type Liker struct {
	UserID   string `bson:"userId" json:"userId"`
	UserName string `bson:"userName" json:"userName"`
}

// Post is a post document. Likers is stored in append order, newest last.
type Post struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string        `bson:"userId" json:"userId"`
	UserName  string        `bson:"userName" json:"userName"`
	Body      string        `bson:"body" json:"body"`
	ImageID   string        `bson:"imageId,omitempty" json:"imageId,omitempty"`
	Date      time.Time     `bson:"date" json:"date"`
	Likes     int           `bson:"likes" json:"likes"`
	Likers    []Liker       `bson:"likers" json:"likers"`
	Comments  []Comment     `bson:"comments" json:"comments"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt" json:"updatedAt"`

	// CanLike is computed for the requesting viewer and never persisted.
	CanLike bool `bson:"-" json:"canLike"`
}

// Comment is embedded in its parent post. Its ID is unique within the post.
type Comment struct {
	ID       bson.ObjectID `bson:"id" json:"id"`
	UserID   string        `bson:"userId" json:"userId"`
	UserName string        `bson:"userName" json:"userName"`
	Body     string        `bson:"body" json:"body"`
	Date     time.Time     `bson:"date" json:"date"`
	Likes    int           `bson:"likes" json:"likes"`
	Likers   []Liker       `bson:"likers" json:"likers"`
}

// LikerIDs returns the subject ids of the roster in append order.
func (p *Post) LikerIDs() []string {
	return likerIDs(p.Likers)
}

// LikerNames returns the display names of the roster in append order.
func (p *Post) LikerNames() []string {
	names := make([]string, 0, len(p.Likers))
	for _, l := range p.Likers {
		names = append(names, l.UserName)
	}
	return names
}

// HasLiker reports whether subjectID is in the roster.
func (p *Post) HasLiker(subjectID string) bool {
	return hasLiker(p.Likers, subjectID)
}

// FindComment returns the comment with the given id, or nil.
func (p *Post) FindComment(id bson.ObjectID) *Comment {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return &p.Comments[i]
		}
	}
	return nil
}

// HasLiker reports whether subjectID is in the comment roster.
func (c *Comment) HasLiker(subjectID string) bool {
	return hasLiker(c.Likers, subjectID)
}

// LikerIDs returns the subject ids of the comment roster in append order.
func (c *Comment) LikerIDs() []string {
	return likerIDs(c.Likers)
}

// CheckInvariants verifies the roster and comment invariants of a post:
// the like count matches the roster length, no subject appears twice and
// comment ids are unique within the post.
func (p *Post) CheckInvariants() error {
	if err := checkRoster("post", p.Likes, p.Likers); err != nil {
		return err
	}
	seen := make(map[bson.ObjectID]struct{}, len(p.Comments))
	for i := range p.Comments {
		c := &p.Comments[i]
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("duplicate comment id %s", c.ID.Hex())
		}
		seen[c.ID] = struct{}{}
		if err := checkRoster("comment "+c.ID.Hex(), c.Likes, c.Likers); err != nil {
			return err
		}
	}
	return nil
}

func checkRoster(owner string, count int, likers []Liker) error {
	if count != len(likers) {
		return fmt.Errorf("%s: like count %d does not match roster length %d", owner, count, len(likers))
	}
	seen := make(map[string]struct{}, len(likers))
	for _, l := range likers {
		if _, dup := seen[l.UserID]; dup {
			return fmt.Errorf("%s: subject %q liked more than once", owner, l.UserID)
		}
		seen[l.UserID] = struct{}{}
	}
	return nil
}

func likerIDs(likers []Liker) []string {
	ids := make([]string, 0, len(likers))
	for _, l := range likers {
		ids = append(ids, l.UserID)
	}
	return ids
}

func hasLiker(likers []Liker, subjectID string) bool {
	if subjectID == "" {
		return false
	}
	for _, l := range likers {
		if l.UserID == subjectID {
			return true
		}
	}
	return false
}

// LikeOutcome is the result of a conditional roster mutation.
type LikeOutcome struct {
	Likes   int  `json:"likes"`
	Applied bool `json:"-"`
	// AuthorID is the owner of the liked content, used for notifications.
	AuthorID string `json:"-"`
}

// PostPage is one page of the home feed.
type PostPage struct {
	Posts       []*Post `json:"posts"`
	TotalPosts  int64   `json:"totalPosts"`
	TotalPages  int64   `json:"totalPages"`
	CurrentPage int64   `json:"currentPage"`
}
