package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefSet_AddIsIdempotent(t *testing.T) {
	var s RefSet
	assert.True(t, s.Add("a"))
	assert.True(t, s.Add("b"))
	assert.False(t, s.Add("a"))
	assert.False(t, s.Add(""))
	assert.Equal(t, RefSet{"a", "b"}, s)
}

func TestRefSet_RemoveExactMatch(t *testing.T) {
	s := RefSet{"a", "ab", "b"}
	assert.True(t, s.Remove("a"))
	assert.Equal(t, RefSet{"ab", "b"}, s)
	assert.False(t, s.Remove("a"))
	assert.False(t, s.Contains("a"))
	assert.True(t, s.Contains("ab"))
}

func TestRefSet_AddRemoveRestores(t *testing.T) {
	s := RefSet{"x", "y"}
	before := s.Clone()
	s.Add("z")
	s.Remove("z")
	assert.Equal(t, before, s)
}

func TestRefSet_CloneIsIndependent(t *testing.T) {
	s := RefSet{"a"}
	c := s.Clone()
	c.Add("b")
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, c.Len())
	assert.NotNil(t, RefSet(nil).Clone())
}

func TestPost_RemoveComment(t *testing.T) {
	p := &Post{Comments: []Comment{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}}}
	i := p.FindComment("c2")
	assert.Equal(t, 1, i)
	p.RemoveComment(i)
	assert.Equal(t, []string{"c1", "c3"}, []string{p.Comments[0].ID, p.Comments[1].ID})
	assert.Equal(t, -1, p.FindComment("c2"))
}

func TestUser_CloneIsDeep(t *testing.T) {
	u := &User{ID: "u1", Avatar: &MediaRef{ObjectID: "o", URL: "http://x"}, Followers: RefSet{"u2"}}
	c := u.Clone()
	c.Followers.Add("u3")
	c.Avatar.URL = "changed"
	assert.Equal(t, RefSet{"u2"}, u.Followers)
	assert.Equal(t, "http://x", u.Avatar.URL)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, CodeNotFound, ErrorCode(NewNotFoundError("User", "x")))
	assert.True(t, IsNotFound(NewNotFoundError("Post", "y")))
	assert.Equal(t, "", ErrorCode(assert.AnError))
	assert.Equal(t, CodeUpstream, ErrorCode(NewUpstreamError("media storage", assert.AnError)))
}
