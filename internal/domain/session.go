package domain

import "time"

// Session is one compute session ("server" on the wire). The empty
// name denotes the account's default session.
type Session struct {
	Account string
	Name    string

	// Pending holds the transition the session is in ("spawn", "stop",
	// ...), or "" when the session is settled.
	Pending string

	// Ready is the hub's explicit readiness signal. Older hubs omit it
	// and imply readiness through a non-empty URL instead.
	Ready *bool
	URL   string

	Started      *time.Time
	LastActivity *time.Time
}

func (s Session) IsDefault() bool {
	return s.Name == ""
}

// IsReady reports whether the session is fully started. The explicit
// ready field wins when present; otherwise a non-empty URL is the
// legacy readiness signal.
func (s Session) IsReady() bool {
	if s.Ready != nil {
		return *s.Ready
	}
	return s.URL != ""
}
