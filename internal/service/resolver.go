// Package service holds the identity, relationship, post, comment, and
// bookmark operations. Handlers call services; services call repositories
// and the media uploader.
package service

import (
	"context"

	"lumen/internal/models"
	"lumen/internal/repository"
)

// Resolver turns stored records into views by fetching every referenced
// record with one batch read per collection. References to records that no
// longer exist are dropped.
type Resolver struct {
	users repository.UserRepository
	posts repository.PostRepository
}

func NewResolver(users repository.UserRepository, posts repository.PostRepository) *Resolver {
	return &Resolver{users: users, posts: posts}
}

func (r *Resolver) Profile(ctx context.Context, user *models.User) (*models.ProfileView, error) {
	views, err := r.Profiles(ctx, []*models.User{user})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (r *Resolver) Profiles(ctx context.Context, users []*models.User) ([]*models.ProfileView, error) {
	var userIDs, postIDs []string
	for _, u := range users {
		userIDs = append(userIDs, u.Followers...)
		userIDs = append(userIDs, u.Following...)
		postIDs = append(postIDs, u.Posts...)
	}

	people, err := r.userMap(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	posts, err := r.postMap(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	views := make([]*models.ProfileView, 0, len(users))
	for _, u := range users {
		view := &models.ProfileView{
			ID:        u.ID,
			Name:      u.Name,
			Username:  u.Username,
			Email:     u.Email,
			Bio:       u.Bio,
			Avatar:    u.Avatar,
			Posts:     []models.PostSummary{},
			Followers: summaries(u.Followers, people),
			Following: summaries(u.Following, people),
			Bookmarks: u.Bookmarks.Clone(),
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		}
		for _, id := range u.Posts {
			p, ok := posts[id]
			if !ok {
				continue
			}
			view.Posts = append(view.Posts, models.PostSummary{
				ID:            p.ID,
				Caption:       p.Caption,
				Media:         append([]models.MediaRef{}, p.Media...),
				LikesCount:    p.Likes.Len(),
				CommentsCount: len(p.Comments),
				CreatedAt:     p.CreatedAt,
			})
		}
		views = append(views, view)
	}
	return views, nil
}

func (r *Resolver) Post(ctx context.Context, post *models.Post) (*models.PostView, error) {
	views, err := r.Posts(ctx, []*models.Post{post})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (r *Resolver) Posts(ctx context.Context, posts []*models.Post) ([]*models.PostView, error) {
	var userIDs []string
	for _, p := range posts {
		userIDs = append(userIDs, p.AuthorID)
		userIDs = append(userIDs, p.Likes...)
		for _, c := range p.Comments {
			userIDs = append(userIDs, c.AuthorID)
		}
	}

	people, err := r.userMap(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	views := make([]*models.PostView, 0, len(posts))
	for _, p := range posts {
		view := &models.PostView{
			ID:        p.ID,
			Author:    summaryOrID(p.AuthorID, people),
			Caption:   p.Caption,
			Media:     append([]models.MediaRef{}, p.Media...),
			Likes:     summaries(p.Likes, people),
			Comments:  make([]models.CommentView, 0, len(p.Comments)),
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		}
		for _, c := range p.Comments {
			view.Comments = append(view.Comments, models.CommentView{
				ID:        c.ID,
				Text:      c.Text,
				Author:    summaryOrID(c.AuthorID, people),
				CreatedAt: c.CreatedAt,
			})
		}
		views = append(views, view)
	}
	return views, nil
}

func (r *Resolver) userMap(ctx context.Context, ids []string) (map[string]*models.User, error) {
	ids = unique(ids)
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := r.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *Resolver) postMap(ctx context.Context, ids []string) (map[string]*models.Post, error) {
	ids = unique(ids)
	out := make(map[string]*models.Post, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	posts, err := r.posts.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		out[p.ID] = p
	}
	return out, nil
}

func summaries(ids models.RefSet, people map[string]*models.User) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := people[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out
}

// summaryOrID keeps a reference that must always render, such as an author.
func summaryOrID(id string, people map[string]*models.User) models.UserSummary {
	if u, ok := people[id]; ok {
		return u.Summary()
	}
	return models.UserSummary{ID: id}
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
