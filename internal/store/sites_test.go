package store

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"

	"driftwood/internal/domain"
)

type SiteStoreTestSuite struct {
	suite.Suite
	store *SiteStore
}

func (s *SiteStoreTestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.store = NewSiteStore(NewInvariants(true, logger))
}

func TestSiteStoreTestSuite(t *testing.T) {
	suite.Run(t, new(SiteStoreTestSuite))
}

func (s *SiteStoreTestSuite) selectedID() string {
	sel, ok := s.store.Selected()
	if !ok {
		return ""
	}
	return sel.ID
}

func (s *SiteStoreTestSuite) TestApplyLoad_SelectsFirstSorted() {
	t := s.store.Begin()
	ok := s.store.Apply(t, []domain.Site{{ID: "1", Name: "Beta"}, {ID: "2", Name: "Alpha"}}, ApplyLoad)

	s.True(ok)
	s.True(s.store.Loaded())
	s.Equal("2", s.selectedID())
	sites := s.store.Sites()
	s.Equal("Alpha", sites[0].Name)
	s.Equal("Beta", sites[1].Name)
}

func (s *SiteStoreTestSuite) TestApplyLoad_EmptyListHasNoSelection() {
	s.store.Apply(s.store.Begin(), nil, ApplyLoad)

	s.True(s.store.Loaded())
	s.Empty(s.store.Sites())
	s.Equal("", s.selectedID())
}

func (s *SiteStoreTestSuite) TestApplyRefresh_KeepsSurvivingSelection() {
	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "2", Name: "Alpha"}, {ID: "1", Name: "Beta"}}, ApplyLoad)
	s.store.SetSelected(domain.Site{ID: "1", Name: "Beta"})

	s.store.Apply(s.store.Begin(), []domain.Site{
		{ID: "3", Name: "Aardvark"},
		{ID: "1", Name: "Beta", URL: "https://beta.example"},
	}, ApplyRefresh)

	sel, ok := s.store.Selected()
	s.True(ok)
	s.Equal("1", sel.ID)
	s.Equal("https://beta.example", sel.URL)
}

func (s *SiteStoreTestSuite) TestApplyRefresh_FallsBackToFirst() {
	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "2", Name: "Alpha"}, {ID: "1", Name: "Beta"}}, ApplyLoad)
	s.store.SetSelected(domain.Site{ID: "1", Name: "Beta"})

	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "4", Name: "zeta"}, {ID: "3", Name: "Gamma"}}, ApplyRefresh)

	s.Equal("3", s.selectedID())
}

func (s *SiteStoreTestSuite) TestApplyRefresh_WithoutPriorSelection() {
	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "1", Name: "b"}, {ID: "2", Name: "a"}}, ApplyRefresh)

	s.Equal("2", s.selectedID())
}

func (s *SiteStoreTestSuite) TestApply_IgnoresStaleCompletion() {
	older := s.store.Begin()
	newer := s.store.Begin()

	s.True(s.store.Apply(newer, []domain.Site{{ID: "new", Name: "new"}}, ApplyRefresh))
	s.False(s.store.Apply(older, []domain.Site{{ID: "old", Name: "old"}}, ApplyLoad))

	s.Equal("new", s.selectedID())
	s.Len(s.store.Sites(), 1)
}

func (s *SiteStoreTestSuite) TestForget_MovesSelectionToRemainingSite() {
	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}, ApplyLoad)

	s.store.Forget("1")

	s.Equal("2", s.selectedID())
	// the list itself only changes on refresh
	s.Len(s.store.Sites(), 2)
}

func (s *SiteStoreTestSuite) TestForget_UnselectedKeepsSelection() {
	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}, ApplyLoad)

	s.store.Forget("2")

	s.Equal("1", s.selectedID())
}

func (s *SiteStoreTestSuite) TestForget_OnlySiteClearsSelection() {
	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "1", Name: "a"}}, ApplyLoad)

	s.NotPanics(func() { s.store.Forget("1") })

	s.Equal("", s.selectedID())

	s.store.Apply(s.store.Begin(), nil, ApplyRefresh)
	s.Empty(s.store.Sites())
}

func (s *SiteStoreTestSuite) TestForget_RefreshPicksNewFirstWithoutDeleted() {
	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}, ApplyLoad)
	s.store.Forget("1")

	// the backend still lists the deleted site and a new one sorts first
	s.store.Apply(s.store.Begin(), []domain.Site{
		{ID: "1", Name: "a"},
		{ID: "2", Name: "b"},
		{ID: "0", Name: "0-new"},
	}, ApplyRefresh)

	s.Equal("0", s.selectedID())
}

func (s *SiteStoreTestSuite) TestForget_DeletedOnlyEntryIsStillSelected() {
	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}, ApplyLoad)
	s.store.Forget("1")

	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "1", Name: "a"}}, ApplyRefresh)

	s.Equal("1", s.selectedID())
}

func (s *SiteStoreTestSuite) TestSetSelected_DanglingPanicsWhenStrict() {
	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "1", Name: "a"}}, ApplyLoad)

	s.PanicsWithError("state invariant violated: selected site \"ghost\" is not in the site list", func() {
		s.store.SetSelected(domain.Site{ID: "ghost"})
	})
}

func (s *SiteStoreTestSuite) TestSetSelected_DanglingLoggedWhenLenient() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	store := NewSiteStore(NewInvariants(false, logger))
	store.Apply(store.Begin(), []domain.Site{{ID: "1", Name: "a"}}, ApplyLoad)

	s.NotPanics(func() {
		store.SetSelected(domain.Site{ID: "ghost"})
	})
}

func (s *SiteStoreTestSuite) TestCheck_NilSelectionOnLoadedListPanics() {
	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}, ApplyLoad)

	s.PanicsWithError("state invariant violated: no site selected from a list of 2", func() {
		s.store.mu.Lock()
		defer s.store.mu.Unlock()
		s.store.selected = nil
		s.store.check()
	})
}

func (s *SiteStoreTestSuite) TestSitesReturnsCopy() {
	s.store.Apply(s.store.Begin(), []domain.Site{{ID: "1", Name: "a"}}, ApplyLoad)

	sites := s.store.Sites()
	sites[0].Name = "mutated"

	s.Equal("a", s.store.Sites()[0].Name)
}
