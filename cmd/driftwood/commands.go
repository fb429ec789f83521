package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"text/tabwriter"

	"driftwood/internal/config"
	"driftwood/internal/domain"
	"driftwood/internal/scheduler"
	"driftwood/internal/service"
	"driftwood/internal/storage/journal"
)

var errUsage = errors.New("usage")

type cli struct {
	app     *service.App
	journal *journal.Store // nil when the journal is disabled
	refresh config.RefreshConfig
	logger  *slog.Logger
	out     io.Writer
}

type command struct {
	name  string
	usage string
	desc  string
	nargs int
	run   func(c *cli, ctx context.Context, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"sites", "sites", "list sites", 0, (*cli).sites},
		{"site", "site <site>", "show site details", 1, (*cli).site},
		{"create-site", "create-site <name> [domain]", "create a site", -1, (*cli).createSite},
		{"update-site", "update-site <site> <name> [domain]", "rename a site or change its domain", -1, (*cli).updateSite},
		{"delete-site", "delete-site <site>", "delete a site", 1, (*cli).deleteSite},
		{"deploy", "deploy <site>", "deploy a site", 1, (*cli).deploy},
		{"dashboard", "dashboard <site>", "show post count and recent posts", 1, (*cli).dashboard},
		{"posts", "posts <site>", "list the posts of a site", 1, (*cli).posts},
		{"post", "post <site> <post>", "show one post", 2, (*cli).post},
		{"create-post", "create-post <site> <title> [content]", "create a post", -1, (*cli).createPost},
		{"delete-post", "delete-post <site> <name>", "delete a post", 2, (*cli).deletePost},
		{"login", "login", "log in to the deployment provider", 0, (*cli).login},
		{"logout", "logout", "log out of the deployment provider", 0, (*cli).logout},
		{"status", "status", "check the provider session", 0, (*cli).status},
		{"journal", "journal [n]", "show the last n gateway calls", -1, (*cli).showJournal},
		{"watch", "watch", "refresh sites periodically until interrupted", 0, (*cli).watch},
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		if cmd.nargs >= 0 && len(args)-1 != cmd.nargs {
			return fmt.Errorf("%w: driftwood %s", errUsage, cmd.usage)
		}
		return cmd.run(c, ctx, args[1:])
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func (c *cli) table() *tabwriter.Writer {
	return tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
}

func (c *cli) sites(ctx context.Context, _ []string) error {
	if err := c.app.SiteFlows.LoadSites(ctx); err != nil {
		return err
	}
	c.printSites()
	return nil
}

func (c *cli) printSites() {
	selected, _ := c.app.Sites.Selected()
	w := c.table()
	fmt.Fprintln(w, "\tID\tNAME\tDOMAIN\tURL")
	for _, s := range c.app.Sites.Sites() {
		mark := ""
		if s.ID == selected.ID {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, s.ID, s.Name, s.Domain, s.URL)
	}
	w.Flush()
}

func (c *cli) site(ctx context.Context, args []string) error {
	s, err := c.app.SiteFlows.SiteDetails(ctx, args[0])
	if err != nil {
		return err
	}
	w := c.table()
	fmt.Fprintf(w, "id\t%s\n", s.ID)
	fmt.Fprintf(w, "name\t%s\n", s.Name)
	fmt.Fprintf(w, "domain\t%s\n", s.Domain)
	fmt.Fprintf(w, "url\t%s\n", s.URL)
	fmt.Fprintf(w, "ssl\t%t\n", s.SSL)
	fmt.Fprintf(w, "badge\t%s\n", service.DeployBadgeURL(s.ID))
	return w.Flush()
}

func (c *cli) createSite(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: driftwood create-site <name> [domain]", errUsage)
	}
	form := domain.NewSite{SiteName: args[0]}
	if len(args) == 2 {
		form.CustomDomain = args[1]
	}
	if err := c.app.SiteFlows.CreateSite(ctx, form); err != nil {
		return err
	}
	c.printSites()
	return nil
}

func (c *cli) updateSite(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: driftwood update-site <site> <name> [domain]", errUsage)
	}
	site, err := c.app.SiteFlows.SiteDetails(ctx, args[0])
	if err != nil {
		return err
	}
	site.Name = args[1]
	if len(args) == 3 {
		site.Domain = args[2]
	}
	if err := c.app.SiteFlows.UpdateSite(ctx, site); err != nil {
		return err
	}
	c.printSites()
	return nil
}

func (c *cli) deleteSite(ctx context.Context, args []string) error {
	if err := c.app.SiteFlows.DeleteSite(ctx, args[0]); err != nil {
		return err
	}
	c.printSites()
	return nil
}

func (c *cli) deploy(ctx context.Context, args []string) error {
	msg, err := c.app.SiteFlows.DeploySite(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, msg)
	return nil
}

func (c *cli) dashboard(ctx context.Context, args []string) error {
	if err := c.app.PostFlows.LoadDashboard(ctx, args[0]); err != nil {
		return err
	}
	d := c.app.Posts.Dashboard()
	fmt.Fprintf(c.out, "posts: %d\nbadge: %s\n\n", d.PostCount, d.BadgeURL)
	c.printPosts(d.RecentPosts)
	return nil
}

func (c *cli) posts(ctx context.Context, args []string) error {
	if err := c.app.PostFlows.LoadPostList(ctx, args[0]); err != nil {
		return err
	}
	_, posts := c.app.Posts.Posts()
	c.printPosts(posts)
	return nil
}

func (c *cli) printPosts(posts []domain.Post) {
	w := c.table()
	fmt.Fprintln(w, "ID\tDATE\tTITLE\tTAGS\tPUBLISHED")
	for _, p := range posts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%t\n", p.PostID, p.Date, p.Title, p.Tags.Values(), p.Published)
	}
	w.Flush()
}

func (c *cli) post(ctx context.Context, args []string) error {
	if err := c.app.PostFlows.OpenPost(ctx, args[0], domain.PostID(args[1])); err != nil {
		return err
	}
	p, ok := c.app.Posts.Selected()
	if !ok {
		return nil
	}
	fmt.Fprintf(c.out, "%s\n%s | %v\n\n%s\n", p.Title, p.Date, p.Tags.Values(), p.Content)
	return nil
}

// createPost goes through the editor draft the same way the create page
// does.
func (c *cli) createPost(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: driftwood create-post <site> <title> [content]", errUsage)
	}
	if err := c.app.SiteFlows.LoadSites(ctx); err != nil {
		return err
	}
	if err := c.app.PostFlows.BeginCreate(); err != nil {
		return err
	}
	c.app.Posts.UpdateDraft(func(p *domain.Post) {
		p.SiteID = args[0]
		p.Title = args[1]
		if len(args) == 3 {
			p.Content = args[2]
		}
	})
	if err := c.app.PostFlows.SaveDraft(ctx); err != nil {
		return err
	}
	_, posts := c.app.Posts.Posts()
	c.printPosts(posts)
	return nil
}

func (c *cli) deletePost(ctx context.Context, args []string) error {
	if err := c.app.PostFlows.DeletePost(ctx, args[0], args[1]); err != nil {
		return err
	}
	_, posts := c.app.Posts.Posts()
	c.printPosts(posts)
	return nil
}

func (c *cli) login(ctx context.Context, _ []string) error {
	if err := c.app.Auth.Login(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "logged in")
	return nil
}

func (c *cli) logout(ctx context.Context, _ []string) error {
	if err := c.app.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "logged out")
	return nil
}

func (c *cli) status(ctx context.Context, _ []string) error {
	valid, err := c.app.Auth.CheckToken(ctx)
	if err != nil {
		return err
	}
	if valid {
		fmt.Fprintln(c.out, "session valid")
	} else {
		fmt.Fprintln(c.out, "not logged in")
	}
	return nil
}

func (c *cli) showJournal(ctx context.Context, args []string) error {
	if c.journal == nil {
		return errors.New("journal is disabled, set journal.enabled in the config")
	}
	limit := 20
	if len(args) > 1 {
		return fmt.Errorf("%w: driftwood journal [n]", errUsage)
	}
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: journal size must be a positive number", errUsage)
		}
		limit = n
	}

	records, err := c.journal.Recent(ctx, limit)
	if err != nil {
		return err
	}
	w := c.table()
	fmt.Fprintln(w, "CALLED AT\tCOMMAND\tRESULT\tSTATUS\tDURATION\tMESSAGE")
	for _, r := range records {
		msg := r.Message
		if r.Transport != "" {
			msg = "transport: " + r.Transport
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\t%s\n",
			r.CalledAt.Local().Format("2006-01-02 15:04:05"), r.Command, r.Result, r.Status, r.Duration, msg)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return c.printFailures(ctx, records)
}

// printFailures sums up failed calls per command across the whole journal,
// for the commands shown above.
func (c *cli) printFailures(ctx context.Context, records []domain.CallRecord) error {
	seen := make(map[string]bool)
	var cmds []string
	for _, r := range records {
		if !seen[r.Command] {
			seen[r.Command] = true
			cmds = append(cmds, r.Command)
		}
	}
	if len(cmds) == 0 {
		return nil
	}
	slices.Sort(cmds)

	fmt.Fprintln(c.out)
	w := c.table()
	fmt.Fprintln(w, "COMMAND\tFAILURES")
	for _, cmd := range cmds {
		n, err := c.journal.Failures(ctx, cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\n", cmd, n)
	}
	return w.Flush()
}

func (c *cli) watch(ctx context.Context, _ []string) error {
	if err := c.app.SiteFlows.LoadSites(ctx); err != nil {
		return err
	}
	c.printSites()

	var tokens scheduler.TokenChecker
	if c.refresh.CheckToken {
		tokens = c.app.Auth
	}
	sched := scheduler.NewScheduler(c.app.SiteFlows, tokens, c.refresh.Interval, c.logger)

	err := sched.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
