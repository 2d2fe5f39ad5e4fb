// Package seed populates a store with demo accounts, media posts, and the
// relationships between them. Everything is created through the services,
// so seeded data passes the same validation and media pipeline as real
// traffic. Intended for development only.
package seed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"lumen/internal/media"
	"lumen/internal/models"
	"lumen/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"
)

// DefaultPassword is given to every seeded account unless overridden.
const DefaultPassword = "password123"

// Options control how much data a Seeder creates.
type Options struct {
	Users int
	Posts int
	// MaxMediaPerPost caps the images generated for one post.
	MaxMediaPerPost int
	// AvatarRatio is the share of users, in [0,1], that get an avatar.
	AvatarRatio float64
	Password    string
	TempDir     string
	// RandSeed fixes the generated content; zero means time-based.
	RandSeed int64
}

// Result summarizes what a run created.
type Result struct {
	Users     []*models.ProfileView
	Posts     []*models.PostView
	Follows   int
	Likes     int
	Comments  int
	Bookmarks int
}

// Seeder builds demo data on top of the application services.
type Seeder struct {
	svc    *service.Services
	opts   Options
	faker  *gofakeit.Faker
	logger *zap.Logger
}

// NewSeeder applies defaults to opts and binds it to svc.
func NewSeeder(svc *service.Services, opts Options, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.MaxMediaPerPost <= 0 {
		opts.MaxMediaPerPost = 3
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.RandSeed == 0 {
		opts.RandSeed = time.Now().UnixNano()
	}
	return &Seeder{
		svc:    svc,
		opts:   opts,
		faker:  gofakeit.New(opts.RandSeed),
		logger: logger,
	}
}

// Run creates users, then posts, then follows, likes, comments, and bookmarks.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	users, err := s.createUsers(ctx)
	if err != nil {
		return res, err
	}
	res.Users = users
	if len(users) == 0 {
		return res, nil
	}

	posts, err := s.createPosts(ctx, users)
	if err != nil {
		return res, err
	}
	res.Posts = posts

	if res.Follows, err = s.createFollows(ctx, users); err != nil {
		return res, err
	}
	if err := s.createEngagement(ctx, users, posts, res); err != nil {
		return res, err
	}

	s.logger.Info("seed complete",
		zap.Int("users", len(res.Users)),
		zap.Int("posts", len(res.Posts)),
		zap.Int("follows", res.Follows),
		zap.Int("likes", res.Likes),
		zap.Int("comments", res.Comments),
		zap.Int("bookmarks", res.Bookmarks))
	return res, nil
}

func (s *Seeder) createUsers(ctx context.Context) ([]*models.ProfileView, error) {
	users := make([]*models.ProfileView, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		first, last := s.faker.FirstName(), s.faker.LastName()
		username := makeUsername(first, last, i)

		reg, err := s.svc.Users.Register(ctx, service.RegisterInput{
			Name:     truncate(first+" "+last, 50),
			Username: username,
			Email:    username + "@lumen.test",
			Password: s.opts.Password,
		})
		if err != nil {
			return users, fmt.Errorf("register %s: %w", username, err)
		}

		bio := truncate(s.faker.Sentence(s.faker.Number(4, 14)), 150)
		profile, err := s.svc.Users.UpdateProfile(ctx, service.UpdateProfileInput{UserID: reg.User.ID, Bio: &bio})
		if err != nil {
			return users, fmt.Errorf("bio for %s: %w", username, err)
		}

		if s.faker.Float64Range(0, 1) < s.opts.AvatarRatio {
			file, err := s.writeImage("avatar.png", s.faker.ImagePng(96, 96))
			if err != nil {
				return users, err
			}
			if profile, err = s.svc.Users.SetAvatar(ctx, reg.User.ID, file); err != nil {
				return users, fmt.Errorf("avatar for %s: %w", username, err)
			}
		}
		users = append(users, profile)
	}
	return users, nil
}

func (s *Seeder) createPosts(ctx context.Context, users []*models.ProfileView) ([]*models.PostView, error) {
	posts := make([]*models.PostView, 0, s.opts.Posts)
	for i := 0; i < s.opts.Posts; i++ {
		author := users[s.faker.Number(0, len(users)-1)]

		count := s.faker.Number(1, s.opts.MaxMediaPerPost)
		files := make([]media.LocalFile, 0, count)
		for j := 0; j < count; j++ {
			file, err := s.writeImage(fmt.Sprintf("photo-%d.jpg", j+1), s.faker.ImageJpeg(320, 320))
			if err != nil {
				media.RemoveLocal(s.logger, files...)
				return posts, err
			}
			files = append(files, file)
		}

		post, err := s.svc.Posts.CreatePost(ctx, service.CreatePostInput{
			AuthorID: author.ID,
			Caption:  s.faker.Sentence(s.faker.Number(3, 16)),
			Files:    files,
		})
		if err != nil {
			return posts, fmt.Errorf("post %d by %s: %w", i+1, author.Username, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// createFollows has every user follow up to three others.
func (s *Seeder) createFollows(ctx context.Context, users []*models.ProfileView) (int, error) {
	follows := 0
	for _, u := range users {
		for _, target := range pick(s.faker, users, s.faker.Number(0, 3)) {
			if target.ID == u.ID {
				continue
			}
			if _, err := s.svc.Follows.Follow(ctx, u.ID, target.ID); err != nil {
				return follows, fmt.Errorf("%s follows %s: %w", u.Username, target.Username, err)
			}
			follows++
		}
	}
	return follows, nil
}

func (s *Seeder) createEngagement(ctx context.Context, users []*models.ProfileView, posts []*models.PostView, res *Result) error {
	for _, p := range posts {
		for _, u := range pick(s.faker, users, s.faker.Number(0, 5)) {
			if _, err := s.svc.Posts.Like(ctx, u.ID, p.ID); err != nil {
				return fmt.Errorf("like %s: %w", p.ID, err)
			}
			res.Likes++
		}
		for _, u := range pick(s.faker, users, s.faker.Number(0, 3)) {
			_, _, err := s.svc.Comments.AddComment(ctx, service.AddCommentInput{
				UserID: u.ID,
				PostID: p.ID,
				Text:   s.faker.Sentence(s.faker.Number(2, 12)),
			})
			if err != nil {
				return fmt.Errorf("comment on %s: %w", p.ID, err)
			}
			res.Comments++
		}
	}

	if len(posts) == 0 {
		return nil
	}
	for _, u := range users {
		for _, p := range pick(s.faker, posts, s.faker.Number(0, 2)) {
			if _, err := s.svc.Bookmarks.Add(ctx, u.ID, p.ID); err != nil {
				return fmt.Errorf("bookmark %s: %w", p.ID, err)
			}
			res.Bookmarks++
		}
	}
	return nil
}

// pick returns up to n distinct elements of items in random order.
func pick[T any](f *gofakeit.Faker, items []T, n int) []T {
	if n > len(items) {
		n = len(items)
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	f.ShuffleInts(idx)
	out := make([]T, 0, n)
	for _, i := range idx[:n] {
		out = append(out, items[i])
	}
	return out
}

func (s *Seeder) writeImage(name string, data []byte) (media.LocalFile, error) {
	if err := os.MkdirAll(s.opts.TempDir, 0o750); err != nil {
		return media.LocalFile{}, fmt.Errorf("seed temp dir: %w", err)
	}
	f, err := os.CreateTemp(s.opts.TempDir, "seed-*-"+name)
	if err != nil {
		return media.LocalFile{}, fmt.Errorf("seed temp file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(f.Name())
		return media.LocalFile{}, fmt.Errorf("seed temp file: %w", err)
	}
	contentType := "image/jpeg"
	if strings.HasSuffix(name, ".png") {
		contentType = "image/png"
	}
	return media.LocalFile{
		Path:        f.Name(),
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// makeUsername turns a generated name into a unique, valid handle.
func makeUsername(first, last string, n int) string {
	keep := func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToLower(r)
		}
		return -1
	}
	base := strings.Map(keep, first) + "." + strings.Map(keep, last)
	base = strings.Trim(base, ".")
	if base == "" {
		base = "user"
	}
	return truncate(base, 24) + fmt.Sprintf("%d", n+1)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
