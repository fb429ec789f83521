package domain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	MaxSiteNameLength = 37
	MaxDomainLength   = 253
	DefaultTemplate   = "default"
)

var siteNamePattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,37}$`)

var (
	ErrInvalidSiteName = errors.New("site name may only contain letters, digits and dashes (1-37 characters)")
	ErrDomainTooLong   = fmt.Errorf("custom domain must be at most %d characters", MaxDomainLength)
	ErrMissingSiteID   = errors.New("site id is required")
)

type Site struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Domain        string  `json:"domain"`
	FaviconFile   string  `json:"favicon_file"`
	SSL           bool    `json:"ssl"`
	URL           string  `json:"url"`
	ScreenshotURL *string `json:"screenshot_url,omitempty"`
}

func (s Site) Validate() error {
	if s.ID == "" {
		return ErrMissingSiteID
	}
	if err := ValidateSiteName(s.Name); err != nil {
		return err
	}
	if len(s.Domain) > MaxDomainLength {
		return ErrDomainTooLong
	}
	return nil
}

// NewSite is the payload of the create-site form.
type NewSite struct {
	SiteName        string `json:"site_name"`
	CustomDomain    string `json:"custom_domain"`
	FaviconFile     string `json:"favicon_file"`
	Template        string `json:"template"`
	PasswordEnabled bool   `json:"password_enabled"`
	Password        string `json:"password"`
	RSSEnabled      bool   `json:"rss_enabled"`
	GithubEnabled   bool   `json:"github_enabled"`
	GithubURL       string `json:"github_url"`
}

// Validate checks the form limits and fills in the default template.
func (n *NewSite) Validate() error {
	if err := ValidateSiteName(n.SiteName); err != nil {
		return err
	}
	if len(n.CustomDomain) > MaxDomainLength {
		return ErrDomainTooLong
	}
	if strings.TrimSpace(n.Template) == "" {
		n.Template = DefaultTemplate
	}
	if n.PasswordEnabled && n.Password == "" {
		return errors.New("password is required when password protection is enabled")
	}
	if n.GithubEnabled && n.GithubURL == "" {
		return errors.New("github url is required when github is enabled")
	}
	return nil
}

func ValidateSiteName(name string) error {
	if !siteNamePattern.MatchString(name) {
		return ErrInvalidSiteName
	}
	return nil
}

// SortSites orders sites by name, ignoring case. Ties fall back to id so the
// order is total.
func SortSites(sites []Site) {
	sort.SliceStable(sites, func(i, j int) bool {
		a, b := strings.ToLower(sites[i].Name), strings.ToLower(sites[j].Name)
		if a != b {
			return a < b
		}
		return sites[i].ID < sites[j].ID
	})
}

func IndexSite(sites []Site, id string) int {
	for i, s := range sites {
		if s.ID == id {
			return i
		}
	}
	return -1
}
