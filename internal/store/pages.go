package store

import (
	"fmt"
	"sync"

	"driftwood/internal/domain"
)

type PageStore struct {
	mu      sync.RWMutex
	current domain.Page
}

func NewPageStore() *PageStore {
	return &PageStore{current: domain.PageDashboard}
}

func (s *PageStore) Current() domain.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set switches page and returns the page that was current before.
func (s *PageStore) Set(page domain.Page) (domain.Page, error) {
	if !page.Valid() {
		return s.Current(), fmt.Errorf("invalid page %d", int(page))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current
	s.current = page
	return prev, nil
}
