package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"driftwood/internal/domain"
	"driftwood/internal/gateway"
	"driftwood/internal/store"
)

type SiteService struct {
	gw     Gateway
	proc   *gateway.Processor
	sites  *store.SiteStore
	logger *slog.Logger
	loads  singleflight.Group
}

func NewSiteService(
	gw Gateway,
	proc *gateway.Processor,
	sites *store.SiteStore,
	logger *slog.Logger,
) *SiteService {
	return &SiteService{
		gw:     gw,
		proc:   proc,
		sites:  sites,
		logger: logger.With("workflow", "sites"),
	}
}

// LoadSites fetches the site list once per session. Later calls are no-ops
// until RefreshSites is used; concurrent callers share the in-flight request
// (and therefore the first caller's context).
func (s *SiteService) LoadSites(ctx context.Context) error {
	if s.sites.Loaded() {
		return nil
	}
	shared, err := s.load(ctx)
	if shared && isAbort(err) && ctx.Err() == nil {
		// the leader's context ended, not ours
		s.logger.Debug("retrying site load after leader abort", "error", err)
		_, err = s.load(ctx)
	}
	return err
}

// load runs one shared list request. Concurrent callers join the in-flight
// request and see its result.
func (s *SiteService) load(ctx context.Context) (bool, error) {
	_, err, shared := s.loads.Do("list", func() (any, error) {
		if s.sites.Loaded() {
			return nil, nil
		}
		return nil, s.fetch(ctx, "load sites", gateway.CmdListSites, gateway.NoArgs(), store.ApplyLoad)
	})
	if shared {
		s.logger.Debug("joined in-flight site load")
	}
	return shared, err
}

// RefreshSites re-fetches the list regardless of the load guard and
// reconciles the selection against it.
func (s *SiteService) RefreshSites(ctx context.Context) error {
	return s.fetch(ctx, "refresh sites", gateway.CmdRefreshSites, gateway.RefreshArgs(true), store.ApplyRefresh)
}

func (s *SiteService) fetch(ctx context.Context, op string, cmd gateway.Command, args gateway.Args, mode store.ApplyMode) error {
	ticket := s.sites.Begin()

	env, err := gateway.Call[[]domain.Site](ctx, s.gw, s.proc, cmd, args)
	if err != nil {
		s.logger.Warn("site list request failed", "command", cmd, "error", err)
		return classify(ctx, op, err)
	}
	if ctx.Err() != nil {
		return aborted(ctx, op)
	}

	if !s.sites.Apply(ticket, env.Body, mode) {
		s.logger.Debug("discarding stale site list", "command", cmd)
		return nil
	}

	s.logger.Info("site list updated", "command", cmd, "count", len(env.Body))
	return nil
}

// SelectSite makes site the active one. It must be an entry of the current
// list; anything else is refused as a state error.
func (s *SiteService) SelectSite(site domain.Site) error {
	if s.sites.Loaded() && domain.IndexSite(s.sites.Sites(), site.ID) < 0 {
		return &Error{Kind: KindState, Op: "select site", Message: fmt.Sprintf("site %q is not in the list", site.ID)}
	}
	s.sites.SetSelected(site)
	return nil
}

// SiteDetails returns the extended record of one site without touching the
// store.
func (s *SiteService) SiteDetails(ctx context.Context, siteID string) (domain.Site, error) {
	const op = "get site details"
	if siteID == "" {
		return domain.Site{}, invalid(op, domain.ErrMissingSiteID)
	}
	env, err := gateway.Call[domain.Site](ctx, s.gw, s.proc, gateway.CmdGetSiteDetails, gateway.SiteIDArgs(siteID))
	if err != nil {
		return domain.Site{}, classify(ctx, op, err)
	}
	return env.Body, nil
}

func (s *SiteService) CreateSite(ctx context.Context, site domain.NewSite) error {
	const op = "create site"
	if err := site.Validate(); err != nil {
		return invalid(op, err)
	}
	args, err := gateway.NewSiteArgs(site)
	if err != nil {
		return invalid(op, err)
	}

	if _, err := gateway.Call[json.RawMessage](ctx, s.gw, s.proc, gateway.CmdCreateSite, args); err != nil {
		return classify(ctx, op, err)
	}
	s.logger.Info("site created", "name", site.SiteName)

	return s.refreshAfter(ctx, op)
}

func (s *SiteService) UpdateSite(ctx context.Context, site domain.Site) error {
	const op = "update site"
	if err := site.Validate(); err != nil {
		return invalid(op, err)
	}
	args, err := gateway.UpdateSiteArgs(site)
	if err != nil {
		return invalid(op, err)
	}

	if _, err := gateway.Call[json.RawMessage](ctx, s.gw, s.proc, gateway.CmdUpdateSite, args); err != nil {
		return classify(ctx, op, err)
	}
	s.logger.Info("site updated", "site_id", site.ID)

	return s.refreshAfter(ctx, op)
}

func (s *SiteService) DeleteSite(ctx context.Context, siteID string) error {
	const op = "delete site"
	if siteID == "" {
		return invalid(op, domain.ErrMissingSiteID)
	}

	if _, err := gateway.Call[json.RawMessage](ctx, s.gw, s.proc, gateway.CmdDeleteSite, gateway.SiteIDArgs(siteID)); err != nil {
		return classify(ctx, op, err)
	}
	if ctx.Err() != nil {
		return aborted(ctx, op)
	}
	s.sites.Forget(siteID)
	s.logger.Info("site deleted", "site_id", siteID)

	return s.refreshAfter(ctx, op)
}

// DeploySite triggers a deployment and returns the backend's status message.
func (s *SiteService) DeploySite(ctx context.Context, siteID string) (string, error) {
	const op = "deploy site"
	if siteID == "" {
		return "", invalid(op, domain.ErrMissingSiteID)
	}
	env, err := gateway.Call[json.RawMessage](ctx, s.gw, s.proc, gateway.CmdDeploySite, gateway.SiteIDArgs(siteID))
	if err != nil {
		return "", classify(ctx, op, err)
	}
	s.logger.Info("site deployed", "site_id", siteID, "message", env.Message)
	return env.Message, nil
}

// refreshAfter pulls the backend's view of the list after a successful
// mutation; the list is never patched locally.
func (s *SiteService) refreshAfter(ctx context.Context, op string) error {
	err := s.RefreshSites(ctx)
	if err == nil {
		return nil
	}
	var opErr *Error
	if errors.As(err, &opErr) {
		opErr.Op = op + ": " + opErr.Op
	}
	return err
}
