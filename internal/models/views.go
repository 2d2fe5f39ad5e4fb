package models

import "time"

// UserSummary is the resolved form of a user reference.
type UserSummary struct {
	ID       string    `json:"id"`
	Username string    `json:"username,omitempty"`
	Name     string    `json:"name,omitempty"`
	Avatar   *MediaRef `json:"avatar,omitempty"`
}

// PostSummary is the resolved form of a post reference inside a profile.
type PostSummary struct {
	ID            string     `json:"id"`
	Caption       string     `json:"caption"`
	Media         []MediaRef `json:"media"`
	LikesCount    int        `json:"likes_count"`
	CommentsCount int        `json:"comments_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CommentView is a comment with its author resolved.
type CommentView struct {
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	Author    UserSummary `json:"author"`
	CreatedAt time.Time   `json:"created_at"`
}

// PostView is a post with every user reference resolved.
type PostView struct {
	ID        string        `json:"id"`
	Author    UserSummary   `json:"author"`
	Caption   string        `json:"caption"`
	Media     []MediaRef    `json:"media"`
	Likes     []UserSummary `json:"likes"`
	Comments  []CommentView `json:"comments"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ProfileView is a user with relationship and post references resolved.
// Bookmarks stay as ids; the bookmark listing resolves them in full.
type ProfileView struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Username  string        `json:"username"`
	Email     string        `json:"email"`
	Bio       string        `json:"bio"`
	Avatar    *MediaRef     `json:"avatar,omitempty"`
	Posts     []PostSummary `json:"posts"`
	Followers []UserSummary `json:"followers"`
	Following []UserSummary `json:"following"`
	Bookmarks RefSet        `json:"bookmarks"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PublicProfile is what other users see of a profile: no email, no bookmarks.
type PublicProfile struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Username  string        `json:"username"`
	Bio       string        `json:"bio"`
	Avatar    *MediaRef     `json:"avatar,omitempty"`
	Posts     []PostSummary `json:"posts"`
	Followers []UserSummary `json:"followers"`
	Following []UserSummary `json:"following"`
	CreatedAt time.Time     `json:"created_at"`
}

// Public drops the owner-only fields of p.
func (p *ProfileView) Public() *PublicProfile {
	if p == nil {
		return nil
	}
	return &PublicProfile{
		ID:        p.ID,
		Name:      p.Name,
		Username:  p.Username,
		Bio:       p.Bio,
		Avatar:    p.Avatar,
		Posts:     p.Posts,
		Followers: p.Followers,
		Following: p.Following,
		CreatedAt: p.CreatedAt,
	}
}
