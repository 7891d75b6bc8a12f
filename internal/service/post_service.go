package service

import (
	"context"
	"strings"
	"time"

	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

type PostService struct {
	postRepo   repository.PostRepository
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	notifier   *NotificationService
	flags      *featureflags.Manager
	now        func() time.Time
}

type CreatePostInput struct {
	Author  string
	Title   string
	Content string
	Tags    string
	// SaveLocal builds the post without storing it; the client keeps it
	// until a later sync.
	SaveLocal bool
}

type UpdatePostInput struct {
	ID      string
	Editor  string
	Title   string
	Content string
	Tags    string
}

// LocalPost is a post kept in a client's local storage.
type LocalPost struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// PostView is a post decorated for a particular viewer.
type PostView struct {
	models.Post
	AuthorInfo  models.PersonalInfo `json:"author_info"`
	IsFollowing bool                `json:"is_following"`
	UserLiked   bool                `json:"user_liked"`
}

// LikeResult is the outcome of ToggleLike.
type LikeResult struct {
	Likes   int    `json:"likes"`
	Liked   bool   `json:"liked"`
	Message string `json:"message"`
}

// ShareInfo is the payload used by share dialogs.
type ShareInfo struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	notifier *NotificationService,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{
		postRepo:   postRepo,
		userRepo:   userRepo,
		followRepo: followRepo,
		notifier:   notifier,
		flags:      flags,
		now:        time.Now,
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Create stores a new post keyed by the slug of its title. A post whose
// title slugs to an existing id replaces that post.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if blank(in.Title) || blank(in.Content) {
		return nil, models.NewMissingFieldError()
	}
	id := models.Slugify(in.Title)
	if strings.Trim(id, "-") == "" {
		return nil, models.NewValidationError("Title must contain at least one letter or digit")
	}

	post := &models.Post{
		ID:        id,
		Title:     in.Title,
		Author:    in.Author,
		Tags:      models.ParseTags(in.Tags),
		CreatedAt: s.now().UTC(),
		LikedBy:   []string{},
		Comments:  []models.Comment{},
	}
	post.SetContent(in.Content)

	if in.SaveLocal {
		if !s.flags.Enabled(featureflags.LocalSync, in.Author) {
			return nil, models.NewForbiddenError("Local saving is disabled")
		}
		return post, nil
	}

	if err := s.postRepo.Save(ctx, post); err != nil {
		return nil, err
	}
	observability.SocialEvents.WithLabelValues("post").Inc()
	return post, nil
}

// Update rewrites title, content and tags. Only the author may edit.
func (s *PostService) Update(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	return s.postRepo.Mutate(ctx, in.ID, func(p *models.Post) error {
		if p.Author != in.Editor {
			return models.NewForbiddenError("You can only edit your own posts")
		}
		if blank(in.Title) || blank(in.Content) {
			return models.NewMissingFieldError()
		}
		p.Title = in.Title
		p.Tags = models.ParseTags(in.Tags)
		p.SetContent(in.Content)
		now := s.now().UTC()
		p.UpdatedAt = &now
		return nil
	})
}

// Delete removes a post. Only the author may delete.
func (s *PostService) Delete(ctx context.Context, id, requester string) error {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if post.Author != requester {
		return models.NewForbiddenError("You can only delete your own posts")
	}
	return s.postRepo.Delete(ctx, id)
}

// ToggleLike likes or unlikes the post for username. The author is
// notified only when someone else adds a like.
func (s *PostService) ToggleLike(ctx context.Context, id, username string) (*LikeResult, error) {
	span, ctx := observability.NewSpan(ctx, "post.toggle_like")
	defer span.End()
	span.AddAttributes(attribute.String("post.id", id))

	var liked bool
	post, err := s.postRepo.Mutate(ctx, id, func(p *models.Post) error {
		liked = p.ToggleLike(username)
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	res := &LikeResult{Likes: post.Likes, Liked: liked, Message: "Like removed"}
	if !liked {
		observability.SocialEvents.WithLabelValues("unlike").Inc()
		return res, nil
	}
	res.Message = "Post liked!"
	observability.SocialEvents.WithLabelValues("like").Inc()
	if post.Author != username {
		notifyQuietly(ctx, s.notifier, post.Author, models.NotificationLike, models.LikeMessage(username, post), &post.ID)
	}
	return res, nil
}

// AddComment appends a comment and notifies the author unless they wrote it.
func (s *PostService) AddComment(ctx context.Context, id, author, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewEmptyCommentError()
	}

	var comment models.Comment
	post, err := s.postRepo.Mutate(ctx, id, func(p *models.Post) error {
		comment = p.AddComment(author, text, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.SocialEvents.WithLabelValues("comment").Inc()
	if post.Author != author {
		notifyQuietly(ctx, s.notifier, post.Author, models.NotificationComment, models.CommentMessage(author, post), &post.ID)
	}
	return &comment, nil
}

// List returns every post, newest first, decorated for viewer. An empty
// viewer is anonymous.
func (s *PostService) List(ctx context.Context, viewer string) ([]PostView, error) {
	posts, err := s.postRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, posts, viewer)
}

func (s *PostService) ListByAuthor(ctx context.Context, author, viewer string) ([]PostView, error) {
	posts, err := s.postRepo.ListByAuthor(ctx, author)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, posts, viewer)
}

func (s *PostService) Get(ctx context.Context, id, viewer string) (*PostView, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.decorate(ctx, []models.Post{*post}, viewer)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *PostService) decorate(ctx context.Context, posts []models.Post, viewer string) ([]PostView, error) {
	following := map[string]bool{}
	if viewer != "" {
		names, err := s.followRepo.ListFollowing(ctx, viewer)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			following[n] = true
		}
	}

	authors := map[string]models.PersonalInfo{}
	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		info, ok := authors[p.Author]
		if !ok {
			user, err := s.userRepo.GetByUsername(ctx, p.Author)
			if err != nil {
				return nil, err
			}
			info = models.PersonalInfo{}
			if user != nil && user.PersonalInfo != nil {
				info = user.PersonalInfo
			}
			authors[p.Author] = info
		}
		p.Normalize()
		views = append(views, PostView{
			Post:        p,
			AuthorInfo:  info,
			IsFollowing: following[p.Author],
			UserLiked:   viewer != "" && p.IsLikedBy(viewer),
		})
	}
	return views, nil
}

func (s *PostService) Comments(ctx context.Context, id string) ([]models.Comment, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return post.Comments, nil
}

// Share builds share text for a post; baseURL ends with a slash.
func (s *PostService) Share(ctx context.Context, id, baseURL string) (*ShareInfo, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &ShareInfo{
		Title: post.Title,
		URL:   baseURL + "blog/" + post.ID,
		Text:  "Check out this blog post: " + post.Title,
	}, nil
}

// SyncLocal stores the user's locally kept posts that the server does not
// have yet and returns how many were stored. Posts by other authors are
// ignored.
func (s *PostService) SyncLocal(ctx context.Context, user string, local []LocalPost) (int, error) {
	if !s.flags.Enabled(featureflags.LocalSync, user) {
		return 0, models.NewForbiddenError("Local sync is disabled")
	}

	synced := 0
	for _, lp := range local {
		if lp.Author != user || blank(lp.Title) || blank(lp.Content) {
			continue
		}
		id := lp.ID
		if id == "" {
			id = models.Slugify(lp.Title)
		}
		created := lp.CreatedAt
		if created.IsZero() {
			created = s.now()
		}
		post := &models.Post{
			ID:        id,
			Title:     lp.Title,
			Author:    user,
			Tags:      lp.Tags,
			CreatedAt: created.UTC(),
			LikedBy:   []string{},
			Comments:  []models.Comment{},
		}
		post.SetContent(lp.Content)

		inserted, err := s.postRepo.CreateIfAbsent(ctx, post)
		if err != nil {
			return synced, err
		}
		if inserted {
			synced++
		}
	}
	return synced, nil
}
