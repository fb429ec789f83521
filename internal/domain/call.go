package domain

import "time"

// CallRecord describes one round trip across the command boundary.
type CallRecord struct {
	ID        int64         `db:"id"`
	Command   string        `db:"command"`
	Result    bool          `db:"result"`
	Status    int           `db:"status"`
	Message   string        `db:"message"`
	Transport string        `db:"transport_error"` // empty unless the call itself failed
	Duration  time.Duration `db:"duration_ns"`
	CalledAt  time.Time     `db:"called_at"`
}

// Failed reports whether the call did not produce a successful envelope.
func (c CallRecord) Failed() bool {
	return c.Transport != "" || !c.Result
}

// Dashboard holds the per-site figures shown on the landing page.
type Dashboard struct {
	SiteID      string
	PostCount   int
	RecentPosts []Post
	BadgeURL    string
}
