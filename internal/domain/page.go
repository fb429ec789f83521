package domain

import "fmt"

// Page is the screen currently shown by the presentation layer.
type Page int

const (
	PageDashboard Page = iota
	PagePosts
	PageEditPost
	PageCreatePost
	PageSettings
	PageProfile
)

var pageNames = [...]string{
	PageDashboard:  "Dashboard",
	PagePosts:      "Posts",
	PageEditPost:   "Edit Post",
	PageCreatePost: "Create Post",
	PageSettings:   "Settings",
	PageProfile:    "Profile",
}

func (p Page) String() string {
	if p < 0 || int(p) >= len(pageNames) {
		return fmt.Sprintf("Page(%d)", int(p))
	}
	return pageNames[p]
}

func (p Page) Valid() bool {
	return p >= PageDashboard && p <= PageProfile
}

func ParsePage(name string) (Page, error) {
	for i, n := range pageNames {
		if n == name {
			return Page(i), nil
		}
	}
	return PageDashboard, fmt.Errorf("unknown page %q", name)
}
