// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// MaxBioLength is the longest bio a profile may carry, in characters.
const MaxBioLength = 150

// MediaRef points at an object held by the media upload service.
type MediaRef struct {
	ObjectID string `json:"object_id" bson:"object_id"`
	URL      string `json:"url" bson:"url"`
}

// User is an account together with its relationship lists. The lists are
// embedded in the record, the same way the document store keeps them.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id" bson:"_id"`
	Name      string    `gorm:"not null" json:"name" bson:"name"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username" bson:"username"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email" bson:"email"`
	Password  string    `gorm:"not null" json:"-" bson:"password"`
	Avatar    *MediaRef `gorm:"type:text;serializer:json" json:"avatar,omitempty" bson:"avatar,omitempty"`
	Bio       string    `gorm:"size:150" json:"bio" bson:"bio"`
	Posts     RefSet    `gorm:"type:text;serializer:json" json:"posts" bson:"posts"`
	Followers RefSet    `gorm:"type:text;serializer:json" json:"followers" bson:"followers"`
	Following RefSet    `gorm:"type:text;serializer:json" json:"following" bson:"following"`
	Bookmarks RefSet    `gorm:"type:text;serializer:json" json:"bookmarks" bson:"bookmarks"`
	Version   int64     `gorm:"not null;default:1" json:"-" bson:"version"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NormalizeEmail trims and lowercases an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EnsureSets replaces nil relationship lists with empty ones so they encode as [] rather than null.
func (u *User) EnsureSets() {
	if u.Posts == nil {
		u.Posts = RefSet{}
	}
	if u.Followers == nil {
		u.Followers = RefSet{}
	}
	if u.Following == nil {
		u.Following = RefSet{}
	}
	if u.Bookmarks == nil {
		u.Bookmarks = RefSet{}
	}
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Avatar != nil {
		avatar := *u.Avatar
		out.Avatar = &avatar
	}
	out.Posts = u.Posts.Clone()
	out.Followers = u.Followers.Clone()
	out.Following = u.Following.Clone()
	out.Bookmarks = u.Bookmarks.Clone()
	return &out
}

// Summary returns the compact form used when a user is referenced from another record.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Avatar:   u.Avatar,
	}
}
