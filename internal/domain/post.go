package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMissingTitle  = errors.New("title is required")
	ErrMissingSite   = errors.New("post must belong to a site")
	ErrMissingPostID = errors.New("post id is required")
)

// PostID is assigned by the backend, which sends it either as a number or a
// string. The zero value (and "0") means the post has not been persisted yet.
type PostID string

func (id PostID) IsZero() bool {
	return id == "" || id == "0"
}

func (id PostID) String() string {
	return string(id)
}

func (id PostID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("0"), nil
	}
	// only canonical integers go out bare; "007" or "+5" would not be valid JSON
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *PostID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode post id: %w", err)
		}
		*id = PostID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode post id: %w", err)
	}
	*id = PostID(n.String())
	return nil
}

type Post struct {
	PostID    PostID `json:"post_id"`
	SiteID    string `json:"site_id"`
	Title     string `json:"title"`
	Tags      TagSet `json:"tags"`
	Date      string `json:"date"`
	Image     string `json:"image"`
	Filename  string `json:"filename"`
	Excerpt   string `json:"excerpt"`
	Content   string `json:"content"`
	Published bool   `json:"published"`
}

// IsNew reports whether saving the post creates it rather than updating it.
func (p Post) IsNew() bool {
	return p.PostID.IsZero()
}

func (p Post) Validate() error {
	if p.SiteID == "" {
		return ErrMissingSite
	}
	if strings.TrimSpace(p.Title) == "" {
		return ErrMissingTitle
	}
	return nil
}

// Clone returns a copy that shares no tag storage with p.
func (p Post) Clone() Post {
	p.Tags = p.Tags.Clone()
	return p
}

// TagSet keeps tags unique while preserving insertion order for rendering.
type TagSet struct {
	values []string
}

func NewTagSet(tags ...string) TagSet {
	var s TagSet
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// Add inserts tag and reports whether the set changed. Blank and duplicate
// tags are ignored.
func (s *TagSet) Add(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" || s.Contains(tag) {
		return false
	}
	s.values = append(s.values, tag)
	return true
}

func (s *TagSet) Remove(tag string) bool {
	for i, v := range s.values {
		if v == tag {
			s.values = append(s.values[:i:i], s.values[i+1:]...)
			return true
		}
	}
	return false
}

func (s TagSet) Contains(tag string) bool {
	for _, v := range s.values {
		if v == tag {
			return true
		}
	}
	return false
}

func (s TagSet) Len() int {
	return len(s.values)
}

func (s TagSet) Values() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

func (s TagSet) Clone() TagSet {
	if s.values == nil {
		return TagSet{}
	}
	return TagSet{values: s.Values()}
}

func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

func (s *TagSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}
	*s = NewTagSet(raw...)
	return nil
}
