package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"driftwood/internal/domain"
	"driftwood/internal/gateway"
	"driftwood/internal/service/mocks"
)

type SiteServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	gw  *mocks.MockGateway
	app *App
}

func (s *SiteServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.app, s.gw, _ = newTestApp(s.ctrl)
}

func (s *SiteServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSiteServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SiteServiceTestSuite))
}

func (s *SiteServiceTestSuite) load(sites ...domain.Site) {
	s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdListSites, gateway.NoArgs()).Return(ok(sites), nil)
	s.Require().NoError(s.app.SiteFlows.LoadSites(context.Background()))
}

func (s *SiteServiceTestSuite) selectedID() string {
	sel, ok := s.app.Sites.Selected()
	if !ok {
		return ""
	}
	return sel.ID
}

func (s *SiteServiceTestSuite) TestLoadSites_OnlyOnce() {
	s.gw.EXPECT().
		Invoke(gomock.Any(), gateway.CmdListSites, gateway.NoArgs()).
		Return(ok([]domain.Site{siteBeta, siteAlpha}), nil).
		Times(1)

	ctx := context.Background()
	s.NoError(s.app.SiteFlows.LoadSites(ctx))
	s.NoError(s.app.SiteFlows.LoadSites(ctx))

	s.Equal([]domain.Site{siteAlpha, siteBeta}, s.app.Sites.Sites())
	s.Equal("a", s.selectedID())
}

func (s *SiteServiceTestSuite) TestLoadSites_Empty() {
	s.load()

	s.True(s.app.Sites.Loaded())
	s.Empty(s.app.Sites.Sites())
	s.Equal("", s.selectedID())
}

func (s *SiteServiceTestSuite) TestLoadSites_TransportFailureLeavesStore() {
	s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdListSites, gomock.Any()).Return(nil, errors.New("connection refused"))

	err := s.app.SiteFlows.LoadSites(context.Background())

	s.ErrorIs(err, ErrTransport)
	s.False(s.app.Sites.Loaded())
}

func (s *SiteServiceTestSuite) TestLoadSites_MalformedIsTransport() {
	s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdListSites, gomock.Any()).Return(json.RawMessage(`{"result":true}`), nil)

	err := s.app.SiteFlows.LoadSites(context.Background())

	s.ErrorIs(err, ErrTransport)
	s.False(s.app.Sites.Loaded())
}

func (s *SiteServiceTestSuite) TestRefreshSites_KeepsSelection() {
	s.load(siteAlpha, siteBeta)
	s.Require().NoError(s.app.SiteFlows.SelectSite(siteBeta))

	s.gw.EXPECT().
		Invoke(gomock.Any(), gateway.CmdRefreshSites, gateway.RefreshArgs(true)).
		Return(ok([]domain.Site{siteGamma, siteBeta, siteAlpha}), nil)

	s.NoError(s.app.SiteFlows.RefreshSites(context.Background()))
	s.Equal("b", s.selectedID())
	s.Len(s.app.Sites.Sites(), 3)
}

func (s *SiteServiceTestSuite) TestRefreshSites_FallsBackToFirst() {
	s.load(siteAlpha, siteBeta)
	s.Require().NoError(s.app.SiteFlows.SelectSite(siteBeta))

	s.gw.EXPECT().
		Invoke(gomock.Any(), gateway.CmdRefreshSites, gomock.Any()).
		Return(ok([]domain.Site{siteGamma, siteAlpha}), nil)

	s.NoError(s.app.SiteFlows.RefreshSites(context.Background()))
	s.Equal("a", s.selectedID())
}

func (s *SiteServiceTestSuite) TestRefreshSites_StaleCompletionIgnored() {
	s.load(siteAlpha)
	ctx := context.Background()

	// the first refresh is overtaken by a second one that completes before it
	first := s.gw.EXPECT().
		Invoke(gomock.Any(), gateway.CmdRefreshSites, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ gateway.Command, _ gateway.Args) (json.RawMessage, error) {
			s.Require().NoError(s.app.SiteFlows.RefreshSites(ctx))
			return ok([]domain.Site{siteAlpha}), nil
		})
	s.gw.EXPECT().
		Invoke(gomock.Any(), gateway.CmdRefreshSites, gomock.Any()).
		Return(ok([]domain.Site{siteAlpha, siteBeta, siteGamma}), nil).
		After(first)

	s.NoError(s.app.SiteFlows.RefreshSites(ctx))
	s.Len(s.app.Sites.Sites(), 3)
}

func (s *SiteServiceTestSuite) TestSelectSite_UnknownIsStateError() {
	s.load(siteAlpha)

	err := s.app.SiteFlows.SelectSite(siteGamma)

	s.ErrorIs(err, ErrState)
	s.Equal("a", s.selectedID())
	_, shown := Notify(err)
	s.False(shown)
}

func (s *SiteServiceTestSuite) TestCreateSite_AppearsAfterRefresh() {
	s.load(siteAlpha)
	created := domain.Site{ID: "n", Name: "news", Domain: "news.example.com"}

	form := domain.NewSite{SiteName: "news", CustomDomain: "news.example.com"}
	withTemplate := form
	withTemplate.Template = domain.DefaultTemplate
	args, err := gateway.NewSiteArgs(withTemplate)
	s.Require().NoError(err)

	gomock.InOrder(
		s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdCreateSite, args).Return(ok(nil), nil),
		s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdRefreshSites, gomock.Any()).Return(ok([]domain.Site{siteAlpha, created}), nil),
	)

	s.NoError(s.app.SiteFlows.CreateSite(context.Background(), form))
	s.Equal([]domain.Site{siteAlpha, created}, s.app.Sites.Sites())
	s.Equal("a", s.selectedID())
}

func (s *SiteServiceTestSuite) TestCreateSite_InvalidNameNeverCallsBackend() {
	err := s.app.SiteFlows.CreateSite(context.Background(), domain.NewSite{SiteName: "not valid!"})

	s.ErrorIs(err, ErrValidation)
	s.ErrorIs(err, domain.ErrInvalidSiteName)
}

func (s *SiteServiceTestSuite) TestCreateSite_ApplicationErrorMessage() {
	s.load(siteAlpha)
	s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdCreateSite, gomock.Any()).Return(failed(409, "site name already taken"), nil)

	err := s.app.SiteFlows.CreateSite(context.Background(), domain.NewSite{SiteName: "alpha"})

	s.ErrorIs(err, ErrApplication)
	notice, shown := Notify(err)
	s.True(shown)
	s.Equal(LevelError, notice.Level)
	s.Equal("site name already taken", notice.Message)
	s.Equal([]domain.Site{siteAlpha}, s.app.Sites.Sites())
}

func (s *SiteServiceTestSuite) TestUpdateSite_RefreshesList() {
	s.load(siteAlpha, siteBeta)
	renamed := siteBeta
	renamed.Name = "beta-two"
	args, err := gateway.UpdateSiteArgs(renamed)
	s.Require().NoError(err)

	gomock.InOrder(
		s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdUpdateSite, args).Return(ok(nil), nil),
		s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdRefreshSites, gomock.Any()).Return(ok([]domain.Site{siteAlpha, renamed}), nil),
	)

	s.NoError(s.app.SiteFlows.UpdateSite(context.Background(), renamed))
	s.Equal("beta-two", s.app.Sites.Sites()[1].Name)
}

func (s *SiteServiceTestSuite) TestDeleteSite_FailedRefreshFallsBackToRemaining() {
	s.load(siteAlpha, siteBeta)

	gomock.InOrder(
		s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdDeleteSite, gateway.SiteIDArgs("a")).Return(ok(nil), nil),
		s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdRefreshSites, gomock.Any()).Return(nil, errors.New("timeout")),
	)

	err := s.app.SiteFlows.DeleteSite(context.Background(), "a")

	s.ErrorIs(err, ErrTransport)
	var opErr *Error
	s.Require().ErrorAs(err, &opErr)
	s.Equal("delete site: refresh sites", opErr.Op)
	s.Equal("b", s.selectedID())
	_, shown := Notify(err)
	s.True(shown)
}

func (s *SiteServiceTestSuite) TestDeleteSite_RefreshStillListingDeletedSite() {
	s.load(siteAlpha, siteBeta)

	gomock.InOrder(
		s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdDeleteSite, gateway.SiteIDArgs("a")).Return(ok(nil), nil),
		s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdRefreshSites, gomock.Any()).Return(ok([]domain.Site{siteAlpha, siteBeta}), nil),
	)

	s.NoError(s.app.SiteFlows.DeleteSite(context.Background(), "a"))
	s.Equal("b", s.selectedID())
}

func (s *SiteServiceTestSuite) TestRefreshSites_TransportDeadlineIsShown() {
	s.load(siteAlpha)
	s.gw.EXPECT().
		Invoke(gomock.Any(), gateway.CmdRefreshSites, gomock.Any()).
		Return(nil, fmt.Errorf("backend call: %w", context.DeadlineExceeded))

	err := s.app.SiteFlows.RefreshSites(context.Background())

	s.ErrorIs(err, ErrTransport)
	_, shown := Notify(err)
	s.True(shown)
}

func (s *SiteServiceTestSuite) TestDeleteSite_RefreshPicksRemaining() {
	s.load(siteAlpha, siteBeta)

	gomock.InOrder(
		s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdDeleteSite, gateway.SiteIDArgs("a")).Return(ok(nil), nil),
		s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdRefreshSites, gomock.Any()).Return(ok([]domain.Site{siteBeta}), nil),
	)

	s.NoError(s.app.SiteFlows.DeleteSite(context.Background(), "a"))
	s.Equal("b", s.selectedID())
}

func (s *SiteServiceTestSuite) TestDeleteSite_FailureKeepsState() {
	s.load(siteAlpha, siteBeta)
	s.gw.EXPECT().Invoke(gomock.Any(), gateway.CmdDeleteSite, gomock.Any()).Return(failed(404, "site not found"), nil)

	err := s.app.SiteFlows.DeleteSite(context.Background(), "a")

	s.ErrorIs(err, ErrApplication)
	s.Equal("a", s.selectedID())
	s.Len(s.app.Sites.Sites(), 2)
}

func (s *SiteServiceTestSuite) TestDeploySite_ReturnsMessage() {
	s.gw.EXPECT().
		Invoke(gomock.Any(), gateway.CmdDeploySite, gateway.SiteIDArgs("a")).
		Return(json.RawMessage(`{"result":true,"status":200,"message":"deploy started"}`), nil)

	msg, err := s.app.SiteFlows.DeploySite(context.Background(), "a")

	s.NoError(err)
	s.Equal("deploy started", msg)
}

func (s *SiteServiceTestSuite) TestSiteDetails() {
	s.gw.EXPECT().
		Invoke(gomock.Any(), gateway.CmdGetSiteDetails, gateway.SiteIDArgs("b")).
		Return(ok(siteBeta), nil)

	site, err := s.app.SiteFlows.SiteDetails(context.Background(), "b")

	s.NoError(err)
	s.Equal(siteBeta, site)
	s.False(s.app.Sites.Loaded())
}

func (s *SiteServiceTestSuite) TestLoadSites_ConcurrentCallersShareOneRequest() {
	const callers = 20
	started := make(chan struct{})
	release := make(chan struct{})

	s.gw.EXPECT().
		Invoke(gomock.Any(), gateway.CmdListSites, gateway.NoArgs()).
		DoAndReturn(func(context.Context, gateway.Command, gateway.Args) (json.RawMessage, error) {
			close(started)
			<-release
			return ok([]domain.Site{siteBeta, siteAlpha}), nil
		}).
		Times(1)

	errs := make(chan error, callers)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- s.app.SiteFlows.LoadSites(context.Background())
	}()
	<-started

	for range callers - 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.app.SiteFlows.LoadSites(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	s.Equal("a", s.selectedID())
	s.Len(s.app.Sites.Sites(), 2)
}

func (s *SiteServiceTestSuite) TestLoadSites_JoinedCallerRetriesAfterLeaderAbort() {
	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan struct{})

	gomock.InOrder(
		s.gw.EXPECT().
			Invoke(gomock.Any(), gateway.CmdListSites, gateway.NoArgs()).
			DoAndReturn(func(ctx context.Context, _ gateway.Command, _ gateway.Args) (json.RawMessage, error) {
				close(started)
				<-ctx.Done()
				return nil, ctx.Err()
			}),
		s.gw.EXPECT().
			Invoke(gomock.Any(), gateway.CmdListSites, gateway.NoArgs()).
			Return(ok([]domain.Site{siteAlpha}), nil),
	)

	leaderErr := make(chan error, 1)
	go func() { leaderErr <- s.app.SiteFlows.LoadSites(leaderCtx) }()
	<-started

	followerErr := make(chan error, 1)
	go func() { followerErr <- s.app.SiteFlows.LoadSites(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-leaderErr
	s.ErrorIs(err, context.Canceled)
	_, shown := Notify(err)
	s.False(shown)

	s.NoError(<-followerErr)
	s.True(s.app.Sites.Loaded())
	s.Equal("a", s.selectedID())
}

func (s *SiteServiceTestSuite) TestLoadSites_AbortDropsResult() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.gw.EXPECT().
		Invoke(gomock.Any(), gateway.CmdListSites, gomock.Any()).
		DoAndReturn(func(context.Context, gateway.Command, gateway.Args) (json.RawMessage, error) {
			cancel()
			return ok([]domain.Site{siteAlpha}), nil
		})

	err := s.app.SiteFlows.LoadSites(ctx)

	s.ErrorIs(err, context.Canceled)
	s.False(s.app.Sites.Loaded())
	_, shown := Notify(err)
	s.False(shown)
}
