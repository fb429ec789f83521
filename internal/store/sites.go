package store

import (
	"sync"

	"driftwood/internal/domain"
)

type ApplyMode int

const (
	// ApplyLoad selects the first site of the sorted list.
	ApplyLoad ApplyMode = iota
	// ApplyRefresh keeps the previous selection when it survived the refresh
	// and falls back to the first site otherwise.
	ApplyRefresh
)

type SiteStore struct {
	mu       sync.RWMutex
	sites    []domain.Site
	selected *domain.Site
	loaded   bool
	issued   uint64
	applied  uint64
	inv      *Invariants

	// set by Forget until the next applied list
	deleted  string
	fallback bool
}

func NewSiteStore(inv *Invariants) *SiteStore {
	return &SiteStore{inv: inv}
}

func (s *SiteStore) Sites() []domain.Site {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Site, len(s.sites))
	copy(out, s.sites)
	return out
}

func (s *SiteStore) Selected() (domain.Site, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return domain.Site{}, false
	}
	return *s.selected, true
}

func (s *SiteStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// SetSelected assigns the selection directly. The site must come from the
// current list.
func (s *SiteStore) SetSelected(site domain.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = &site
	s.check()
}

// Forget records a site the backend has confirmed deleted. The list itself
// waits for the next refresh; a selection on id moves to the first other
// site, and the next applied list picks its default without reselecting id.
func (s *SiteStore) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleted = id
	if s.selected != nil && s.selected.ID == id {
		s.selected = nil
		s.fallback = true
		if i := firstExcept(s.sites, id); i >= 0 {
			sel := s.sites[i]
			s.selected = &sel
		}
	}
	s.check()
}

// Begin issues a ticket for a list request about to be sent.
func (s *SiteStore) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return Ticket(s.issued)
}

// Apply replaces the list wholesale with the result of the request holding t.
// A completion older than one already applied is ignored and Apply reports
// false.
func (s *SiteStore) Apply(t Ticket, sites []domain.Site, mode ApplyMode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if uint64(t) <= s.applied {
		return false
	}
	s.applied = uint64(t)

	sorted := make([]domain.Site, len(sites))
	copy(sorted, sites)
	domain.SortSites(sorted)

	var prevID string
	if mode == ApplyRefresh && s.selected != nil && !s.fallback {
		prevID = s.selected.ID
	}

	s.sites = sorted
	s.loaded = true
	s.selected = nil

	if len(sorted) > 0 {
		idx := -1
		if prevID != "" {
			idx = domain.IndexSite(sorted, prevID)
		}
		if idx < 0 {
			idx = max(firstExcept(sorted, s.deleted), 0)
		}
		sel := sorted[idx]
		s.selected = &sel
	}
	s.deleted = ""
	s.fallback = false

	s.check()
	return true
}

// firstExcept returns the index of the first site whose id is not id, or -1.
func firstExcept(sites []domain.Site, id string) int {
	for i, site := range sites {
		if site.ID != id {
			return i
		}
	}
	return -1
}

// check must be called with the lock held. A loaded list with any site
// other than a pending deletion always has a selection from that list.
func (s *SiteStore) check() {
	if !s.loaded || len(s.sites) == 0 {
		return
	}
	if s.selected == nil {
		if firstExcept(s.sites, s.deleted) >= 0 {
			s.inv.Violated("no site selected from a list of %d", len(s.sites))
		}
		return
	}
	if domain.IndexSite(s.sites, s.selected.ID) < 0 {
		s.inv.Violated("selected site %q is not in the site list", s.selected.ID)
	}
}
