package store

import (
	"sync"

	"driftwood/internal/domain"
)

// PostStore holds the post list of a site, the selected post and the draft the
// editor mirrors. Detail loads are tied to a generation that moves whenever
// the selection changes, so a late reply for a post the user already left is
// dropped.
type PostStore struct {
	mu sync.RWMutex

	posts    []domain.Post
	postsFor string
	listSeq  uint64

	selected  *domain.Post
	draft     domain.Post
	detailSeq uint64

	dashboard domain.Dashboard
	dashSeq   uint64
}

func NewPostStore() *PostStore {
	return &PostStore{}
}

func (s *PostStore) Posts() (siteID string, posts []domain.Post) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = p.Clone()
	}
	return s.postsFor, out
}

func (s *PostStore) Selected() (domain.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return domain.Post{}, false
	}
	return s.selected.Clone(), true
}

func (s *PostStore) Draft() domain.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft.Clone()
}

func (s *PostStore) Dashboard() domain.Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.dashboard
	d.RecentPosts = make([]domain.Post, len(s.dashboard.RecentPosts))
	copy(d.RecentPosts, s.dashboard.RecentPosts)
	return d
}

// ClearForCreate empties the selection and the draft. Entering the create
// flow must go through here.
func (s *PostStore) ClearForCreate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	s.draft = domain.Post{}
	s.detailSeq++
}

// ClearSelected drops the selection and invalidates pending detail loads.
func (s *PostStore) ClearSelected() {
	s.ClearForCreate()
}

// Select makes post the selection and seeds the draft from it.
func (s *PostStore) Select(post domain.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := post.Clone()
	s.selected = &sel
	s.draft = post.Clone()
	s.detailSeq++
}

// Invalidate drops any pending detail load without touching the selection.
func (s *PostStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailSeq++
}

func (s *PostStore) BeginDetail() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailSeq++
	return Ticket(s.detailSeq)
}

// ApplyDetail selects post if no newer detail load or selection change has
// happened since t was issued.
func (s *PostStore) ApplyDetail(t Ticket, post domain.Post) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(t) != s.detailSeq {
		return false
	}
	sel := post.Clone()
	s.selected = &sel
	s.draft = post.Clone()
	return true
}

func (s *PostStore) BeginList() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listSeq++
	return Ticket(s.listSeq)
}

// ApplyList replaces the list wholesale if t is the latest list request.
func (s *PostStore) ApplyList(t Ticket, siteID string, posts []domain.Post) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(t) != s.listSeq {
		return false
	}
	s.postsFor = siteID
	s.posts = make([]domain.Post, len(posts))
	for i, p := range posts {
		s.posts[i] = p.Clone()
	}
	return true
}

func (s *PostStore) BeginDashboard() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashSeq++
	return Ticket(s.dashSeq)
}

func (s *PostStore) ApplyDashboard(t Ticket, d domain.Dashboard) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(t) != s.dashSeq {
		return false
	}
	s.dashboard = d
	return true
}

// UpdateDraft applies fn to the draft. Tag edits should use AddTag and
// RemoveTag.
func (s *PostStore) UpdateDraft(fn func(*domain.Post)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.draft)
}

// AddTag adds tag to the draft; an existing tag is a no-op.
func (s *PostStore) AddTag(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Tags.Add(tag)
}

func (s *PostStore) RemoveTag(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Tags.Remove(tag)
}
