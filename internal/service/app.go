package service

import (
	"log/slog"

	"driftwood/internal/gateway"
	"driftwood/internal/store"
)

// App is the client core: one set of stores and the workflows that mutate
// them. Build it once per process.
type App struct {
	Sites   *store.SiteStore
	Posts   *store.PostStore
	Pages   *store.PageStore
	Session *store.SessionStore

	Nav       *Navigator
	SiteFlows *SiteService
	PostFlows *PostService
	Auth      *AuthService
}

// NewApp wires the stores to gw. images may be nil. strict makes store
// invariant violations panic.
func NewApp(gw Gateway, images ImageChecker, logger *slog.Logger, strict bool) *App {
	proc := gateway.NewProcessor(logger.With("component", "envelope"))
	inv := store.NewInvariants(strict, logger.With("component", "store"))

	sites := store.NewSiteStore(inv)
	posts := store.NewPostStore()
	pages := store.NewPageStore()
	session := store.NewSessionStore()
	nav := NewNavigator(pages, posts, logger)

	return &App{
		Sites:     sites,
		Posts:     posts,
		Pages:     pages,
		Session:   session,
		Nav:       nav,
		SiteFlows: NewSiteService(gw, proc, sites, logger),
		PostFlows: NewPostService(gw, proc, posts, sites, nav, images, logger),
		Auth:      NewAuthService(gw, proc, session, logger),
	}
}
