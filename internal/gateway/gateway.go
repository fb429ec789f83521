// Package gateway is the single boundary between the client core and the
// backend. Every request is a command name plus arguments and every reply is
// an envelope; see envelope.go for how replies are judged.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"driftwood/internal/domain"
)

// Gateway performs one atomic round trip. A non-nil error means the call
// itself failed and no envelope is available.
type Gateway interface {
	Invoke(ctx context.Context, command Command, args Args) (json.RawMessage, error)
}

type Command string

const (
	CmdListSites      Command = "list_sites"
	CmdRefreshSites   Command = "refresh_sites"
	CmdRefreshSite    Command = "refresh_site"
	CmdGetSiteDetails Command = "get_site_details"
	CmdCreateSite     Command = "create_site"
	CmdUpdateSite     Command = "update_site"
	CmdDeleteSite     Command = "delete_site"
	CmdDeploySite     Command = "deploy_site"
	CmdGetPostCount   Command = "get_post_count"
	CmdGetRecentPosts Command = "get_recent_posts"
	CmdGetPostList    Command = "get_post_list"
	CmdGetPostDetails Command = "get_post_details"
	CmdCreatePost     Command = "create_post"
	CmdUpdatePost     Command = "update_post"
	CmdDeletePost     Command = "delete_post"
	CmdLogin          Command = "netlify_login"
	CmdLogout         Command = "netlify_logout"
	CmdCheckToken     Command = "check_token"
)

// commands with a typed body on success
var bodyCommands = map[Command]bool{
	CmdListSites:      true,
	CmdRefreshSites:   true,
	CmdRefreshSite:    true,
	CmdGetSiteDetails: true,
	CmdGetPostCount:   true,
	CmdGetRecentPosts: true,
	CmdGetPostList:    true,
	CmdGetPostDetails: true,
	CmdCheckToken:     true,
}

// ExpectsBody reports whether a successful envelope for c must carry a body.
func (c Command) ExpectsBody() bool {
	return bodyCommands[c]
}

func (c Command) String() string {
	return string(c)
}

// Args is the argument bundle of a command. Records cross the boundary as
// JSON strings, which is what the backend deserializes.
type Args map[string]any

func NoArgs() Args {
	return Args{}
}

func SiteIDArgs(siteID string) Args {
	return Args{"siteId": siteID}
}

func RefreshArgs(returnSite bool) Args {
	return Args{"returnSite": returnSite}
}

func PostDetailArgs(siteID string, postID domain.PostID) Args {
	return Args{"siteId": siteID, "postId": postID}
}

func DeletePostArgs(siteID, postName string) Args {
	return Args{"siteId": siteID, "postName": postName}
}

func NewSiteArgs(site domain.NewSite) (Args, error) {
	data, err := json.Marshal(site)
	if err != nil {
		return nil, fmt.Errorf("marshal new site: %w", err)
	}
	return Args{"newSite": string(data)}, nil
}

func UpdateSiteArgs(site domain.Site) (Args, error) {
	data, err := json.Marshal(site)
	if err != nil {
		return nil, fmt.Errorf("marshal site: %w", err)
	}
	return Args{"site": string(data)}, nil
}

func PostArgs(post domain.Post, site domain.Site) (Args, error) {
	postData, err := json.Marshal(post)
	if err != nil {
		return nil, fmt.Errorf("marshal post: %w", err)
	}
	siteData, err := json.Marshal(site)
	if err != nil {
		return nil, fmt.Errorf("marshal site: %w", err)
	}
	return Args{"postData": string(postData), "siteData": string(siteData)}, nil
}
