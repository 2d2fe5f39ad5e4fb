package models

import "time"

// Comment is embedded in its post and never edited after creation.
type Comment struct {
	ID        string    `json:"id" bson:"id"`
	Text      string    `json:"text" bson:"text"`
	AuthorID  string    `json:"author_id" bson:"author_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Post is a media post with its likes and comments embedded.
type Post struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id" bson:"_id"`
	AuthorID  string     `gorm:"type:varchar(36);not null;index" json:"author_id" bson:"author_id"`
	Caption   string     `gorm:"type:text;not null" json:"caption" bson:"caption"`
	Media     []MediaRef `gorm:"type:text;serializer:json" json:"media" bson:"media"`
	Likes     RefSet     `gorm:"type:text;serializer:json" json:"likes" bson:"likes"`
	Comments  []Comment  `gorm:"type:text;serializer:json" json:"comments" bson:"comments"`
	Version   int64      `gorm:"not null;default:1" json:"-" bson:"version"`
	CreatedAt time.Time  `gorm:"index" json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

// EnsureSets replaces nil lists with empty ones.
func (p *Post) EnsureSets() {
	if p.Media == nil {
		p.Media = []MediaRef{}
	}
	if p.Likes == nil {
		p.Likes = RefSet{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
}

// Clone returns a deep copy of the post.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	out := *p
	out.Media = append([]MediaRef{}, p.Media...)
	out.Likes = p.Likes.Clone()
	out.Comments = append([]Comment{}, p.Comments...)
	return &out
}

// FindComment returns the index of the comment with the given id, or -1.
func (p *Post) FindComment(id string) int {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return i
		}
	}
	return -1
}

// RemoveComment drops the comment at index i.
func (p *Post) RemoveComment(i int) {
	p.Comments = append(p.Comments[:i:i], p.Comments[i+1:]...)
}

// ObjectIDs lists the storage object ids of the post's media.
func (p *Post) ObjectIDs() []string {
	ids := make([]string, 0, len(p.Media))
	for _, m := range p.Media {
		ids = append(ids, m.ObjectID)
	}
	return ids
}
