package domain

import "time"

// Account is one hub user as reported by the control-plane API. All
// fields are rebuilt from the API on every run; nothing is persisted.
type Account struct {
	Name         string
	Admin        bool
	Created      *time.Time
	LastActivity *time.Time

	// Sessions maps session name to session, with "" for the default
	// session. It is nil when the hub predates per-session models; the
	// legacy fields below then describe the single default session.
	Sessions map[string]Session

	// Legacy flat fields, meaningful only when Sessions is nil.
	ServerURL string
	Pending   string
}

// SessionSet returns the account's sessions, synthesizing a single
// default-session entry from the legacy flat fields when the hub did
// not provide a session map. The synthesized entry exists only while
// the legacy server URL is set, matching the old "running" signal.
func (a Account) SessionSet() map[string]Session {
	if a.Sessions != nil {
		return a.Sessions
	}
	if a.ServerURL == "" {
		return nil
	}
	return map[string]Session{
		"": {
			Account:      a.Name,
			Pending:      a.Pending,
			URL:          a.ServerURL,
			LastActivity: a.LastActivity,
		},
	}
}
