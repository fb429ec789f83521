package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"driftwood/internal/domain"
	"driftwood/internal/gateway"
	"driftwood/internal/store"
)

const deployBadgeURL = "https://api.netlify.com/api/v1/badges/%s/deploy-status"

var ErrNoSite = errors.New("no site selected")

type PostService struct {
	gw     Gateway
	proc   *gateway.Processor
	posts  *store.PostStore
	sites  *store.SiteStore
	nav    *Navigator
	images ImageChecker
	logger *slog.Logger
}

// NewPostService wires the post workflows. images may be nil to skip the
// header-image check.
func NewPostService(
	gw Gateway,
	proc *gateway.Processor,
	posts *store.PostStore,
	sites *store.SiteStore,
	nav *Navigator,
	images ImageChecker,
	logger *slog.Logger,
) *PostService {
	return &PostService{
		gw:     gw,
		proc:   proc,
		posts:  posts,
		sites:  sites,
		nav:    nav,
		images: images,
		logger: logger.With("workflow", "posts"),
	}
}

// BeginCreate enters the new-post flow with an empty draft.
func (s *PostService) BeginCreate() error {
	return s.nav.Go(domain.PageCreatePost)
}

// LoadPostList replaces the post list with the backend's list for siteID.
func (s *PostService) LoadPostList(ctx context.Context, siteID string) error {
	const op = "load posts"
	if siteID == "" {
		return invalid(op, domain.ErrMissingSiteID)
	}
	ticket := s.posts.BeginList()

	env, err := gateway.Call[[]domain.Post](ctx, s.gw, s.proc, gateway.CmdGetPostList, gateway.SiteIDArgs(siteID))
	if err != nil {
		return classify(ctx, op, err)
	}
	if ctx.Err() != nil {
		return aborted(ctx, op)
	}
	if !s.posts.ApplyList(ticket, siteID, env.Body) {
		s.logger.Debug("discarding stale post list", "site_id", siteID)
		return nil
	}
	s.logger.Debug("post list updated", "site_id", siteID, "count", len(env.Body))
	return nil
}

// LoadPostDetail selects the post and seeds the editor draft from it. A reply
// that arrives after the user moved on is dropped.
func (s *PostService) LoadPostDetail(ctx context.Context, siteID string, postID domain.PostID) error {
	const op = "load post"
	if siteID == "" {
		return invalid(op, domain.ErrMissingSiteID)
	}
	if postID.IsZero() {
		return invalid(op, domain.ErrMissingPostID)
	}
	ticket := s.posts.BeginDetail()

	env, err := gateway.Call[domain.Post](ctx, s.gw, s.proc, gateway.CmdGetPostDetails, gateway.PostDetailArgs(siteID, postID))
	if err != nil {
		return classify(ctx, op, err)
	}
	if ctx.Err() != nil {
		return aborted(ctx, op)
	}
	if !s.posts.ApplyDetail(ticket, env.Body) {
		s.logger.Debug("discarding stale post detail", "site_id", siteID, "post_id", postID)
	}
	return nil
}

// OpenPost navigates to the editor and loads the post into it.
func (s *PostService) OpenPost(ctx context.Context, siteID string, postID domain.PostID) error {
	if err := s.nav.Go(domain.PageEditPost); err != nil {
		return err
	}
	return s.LoadPostDetail(ctx, siteID, postID)
}

// SaveDraft saves the editor draft.
func (s *PostService) SaveDraft(ctx context.Context) error {
	return s.SavePost(ctx, s.posts.Draft())
}

// SavePost creates post when it has no id yet and updates it otherwise.
func (s *PostService) SavePost(ctx context.Context, post domain.Post) error {
	op := "update post"
	cmd := gateway.CmdUpdatePost
	if post.IsNew() {
		op = "create post"
		cmd = gateway.CmdCreatePost
	}

	site, err := s.siteFor(post.SiteID)
	if err != nil {
		return invalid(op, err)
	}
	post.SiteID = site.ID
	if err := post.Validate(); err != nil {
		return invalid(op, err)
	}
	if post.Image != "" && s.images != nil {
		if err := s.images.Check(ctx, post.Image); err != nil {
			if ctx.Err() != nil {
				return aborted(ctx, op)
			}
			return invalid(op, err)
		}
	}

	args, err := gateway.PostArgs(post, site)
	if err != nil {
		return invalid(op, err)
	}
	if _, err := gateway.Call[json.RawMessage](ctx, s.gw, s.proc, cmd, args); err != nil {
		return classify(ctx, op, err)
	}
	if ctx.Err() != nil {
		return aborted(ctx, op)
	}
	s.logger.Info("post saved", "site_id", site.ID, "post_id", post.PostID, "created", post.IsNew())

	if post.IsNew() {
		// the backend assigns the id; the refreshed list is where the post
		// shows up
		s.posts.ClearSelected()
		if err := s.nav.Go(domain.PagePosts); err != nil {
			return err
		}
	} else if sel, ok := s.posts.Selected(); ok && sel.PostID == post.PostID {
		s.posts.Select(post)
	}
	return s.LoadPostList(ctx, site.ID)
}

// DeletePost removes a post and returns to that site's post list.
func (s *PostService) DeletePost(ctx context.Context, siteID, postName string) error {
	const op = "delete post"
	if siteID == "" {
		return invalid(op, domain.ErrMissingSiteID)
	}
	if postName == "" {
		return invalid(op, errors.New("post name is required"))
	}

	if _, err := gateway.Call[json.RawMessage](ctx, s.gw, s.proc, gateway.CmdDeletePost, gateway.DeletePostArgs(siteID, postName)); err != nil {
		return classify(ctx, op, err)
	}
	if ctx.Err() != nil {
		return aborted(ctx, op)
	}
	s.logger.Info("post deleted", "site_id", siteID, "post", postName)

	s.posts.ClearSelected()
	if err := s.nav.Go(domain.PagePosts); err != nil {
		return err
	}
	return s.LoadPostList(ctx, siteID)
}

// LoadDashboard fetches the post count and recent posts of siteID. Nothing
// is stored unless both succeed.
func (s *PostService) LoadDashboard(ctx context.Context, siteID string) error {
	const op = "load dashboard"
	if siteID == "" {
		return invalid(op, domain.ErrMissingSiteID)
	}
	ticket := s.posts.BeginDashboard()

	count, err := gateway.Call[int](ctx, s.gw, s.proc, gateway.CmdGetPostCount, gateway.SiteIDArgs(siteID))
	if err != nil {
		return classify(ctx, op, err)
	}
	recent, err := gateway.Call[[]domain.Post](ctx, s.gw, s.proc, gateway.CmdGetRecentPosts, gateway.SiteIDArgs(siteID))
	if err != nil {
		return classify(ctx, op, err)
	}
	if ctx.Err() != nil {
		return aborted(ctx, op)
	}

	s.posts.ApplyDashboard(ticket, domain.Dashboard{
		SiteID:      siteID,
		PostCount:   count.Body,
		RecentPosts: recent.Body,
		BadgeURL:    DeployBadgeURL(siteID),
	})
	return nil
}

func DeployBadgeURL(siteID string) string {
	return fmt.Sprintf(deployBadgeURL, siteID)
}

// siteFor resolves the site record sent along with a post.
func (s *PostService) siteFor(siteID string) (domain.Site, error) {
	if siteID == "" {
		sel, ok := s.sites.Selected()
		if !ok {
			return domain.Site{}, ErrNoSite
		}
		return sel, nil
	}
	sites := s.sites.Sites()
	if i := domain.IndexSite(sites, siteID); i >= 0 {
		return sites[i], nil
	}
	return domain.Site{}, fmt.Errorf("site %q is not loaded", siteID)
}
