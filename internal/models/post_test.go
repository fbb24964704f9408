package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestPost_RosterViews(t *testing.T) {
	p := &Post{
		Likes: 2,
		Likers: []Liker{
			{UserID: "u1", UserName: "Ann"},
			{UserID: "u2", UserName: "Bob"},
		},
	}

	assert.Equal(t, []string{"u1", "u2"}, p.LikerIDs())
	assert.Equal(t, []string{"Ann", "Bob"}, p.LikerNames())
	assert.True(t, p.HasLiker("u2"))
	assert.False(t, p.HasLiker("u3"))
	assert.False(t, p.HasLiker(""))
}

func TestPost_CheckInvariants(t *testing.T) {
	cid := bson.NewObjectID()

	tests := []struct {
		name    string
		post    Post
		wantErr bool
	}{
		{"empty post", Post{}, false},
		{"count matches roster", Post{Likes: 1, Likers: []Liker{{UserID: "u1", UserName: "Ann"}}}, false},
		{"count drift", Post{Likes: 2, Likers: []Liker{{UserID: "u1", UserName: "Ann"}}}, true},
		{"duplicate subject", Post{Likes: 2, Likers: []Liker{{UserID: "u1"}, {UserID: "u1"}}}, true},
		{"duplicate comment id", Post{Comments: []Comment{{ID: cid}, {ID: cid}}}, true},
		{"comment roster drift", Post{Comments: []Comment{{ID: cid, Likes: 1}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.post.CheckInvariants()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPost_FindComment(t *testing.T) {
	cid := bson.NewObjectID()
	p := &Post{Comments: []Comment{{ID: cid, Body: "hi", Likers: []Liker{{UserID: "u1"}}, Likes: 1}}}

	c := p.FindComment(cid)
	if assert.NotNil(t, c) {
		assert.Equal(t, "hi", c.Body)
		assert.True(t, c.HasLiker("u1"))
		assert.Equal(t, []string{"u1"}, c.LikerIDs())
	}
	assert.Nil(t, p.FindComment(bson.NewObjectID()))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 400, StatusFor(NewValidationError("bad")))
	assert.Equal(t, 403, StatusFor(NewForbiddenError("no")))
	assert.Equal(t, 404, StatusFor(NewNotFoundError("Post", "x")))
	assert.Equal(t, 409, StatusFor(NewConflictError("dup")))
	assert.Equal(t, 500, StatusFor(NewIntegrityError("orphan")))
	assert.Equal(t, 500, StatusFor(errors.New("boom")))
}

func TestIsCode_Wrapped(t *testing.T) {
	err := NewInternalError(errors.New("store down"))
	wrapped := errors.Join(errors.New("context"), err)

	assert.True(t, IsCode(wrapped, CodeInternal))
	assert.False(t, IsCode(wrapped, CodeNotFound))
	assert.Contains(t, err.Error(), "store down")
}
