package service

import (
	"log/slog"

	"driftwood/internal/domain"
	"driftwood/internal/store"
)

// Navigator moves between pages. It owns the two side effects navigation
// has on the post selection.
type Navigator struct {
	pages  *store.PageStore
	posts  *store.PostStore
	logger *slog.Logger
}

func NewNavigator(pages *store.PageStore, posts *store.PostStore, logger *slog.Logger) *Navigator {
	return &Navigator{
		pages:  pages,
		posts:  posts,
		logger: logger.With("workflow", "navigation"),
	}
}

func (n *Navigator) Current() domain.Page {
	return n.pages.Current()
}

// Go switches to page. Entering the create flow always clears the post
// selection; leaving the editor drops any pending post-detail load.
func (n *Navigator) Go(page domain.Page) error {
	if page == domain.PageCreatePost {
		n.posts.ClearForCreate()
	}
	prev, err := n.pages.Set(page)
	if err != nil {
		return invalid("navigate", err)
	}
	if prev == domain.PageEditPost && page != domain.PageEditPost {
		n.posts.Invalidate()
	}
	n.logger.Debug("navigated", "from", prev, "to", page)
	return nil
}
