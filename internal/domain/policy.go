package domain

import (
	"fmt"
	"time"
)

// CullParams are the per-run policy knobs. They are built once at
// startup and never mutated.
type CullParams struct {
	// InactiveLimit is the idle duration at which a session or account
	// becomes cull-eligible. Equality culls.
	InactiveLimit time.Duration

	// MaxAge is the absolute lifetime ceiling. Zero disables the age
	// check entirely.
	MaxAge time.Duration

	CullDefaultSessions bool
	CullNamedSessions   bool
	CullAdminAccounts   bool
}

type Reason string

const (
	ReasonInactive Reason = "inactive-timeout"
	ReasonMaxAge   Reason = "max-age"
)

// Verdict is the outcome of evaluating one record against CullParams.
// It exists for the caller's logging; nothing stores it.
type Verdict struct {
	Cull   bool
	Reason Reason

	// Pending is set when the session was mid-transition and therefore
	// skipped without evaluating timestamps.
	Pending bool

	// Unexpected is set when the session was neither pending nor ready,
	// a state the hub should not report for a listed session.
	Unexpected bool

	// Age and Inactive are the computed durations, nil when the hub did
	// not report the underlying timestamp.
	Age      *time.Duration
	Inactive *time.Duration
}

// SessionVerdict decides whether a session should be culled at `now`.
// The category flag (default vs named) gates both the inactivity check
// and the max-age override.
func SessionVerdict(now time.Time, sess Session, params CullParams) Verdict {
	if sess.Pending != "" {
		return Verdict{Pending: true}
	}
	if !sess.IsReady() {
		return Verdict{Unexpected: true}
	}

	age := durationSince(now, sess.Started)
	inactive := durationSince(now, sess.LastActivity)
	if inactive == nil {
		// No recorded activity: inactive since start.
		inactive = age
	}

	verdict := Verdict{Age: age, Inactive: inactive}

	eligible := params.CullNamedSessions
	if sess.IsDefault() {
		eligible = params.CullDefaultSessions
	}
	if !eligible {
		return verdict
	}

	return decide(verdict, params)
}

// AccountVerdict decides whether an account should be culled at `now`.
// It is pure over the account record itself; the caller is responsible
// for the session-aliveness barrier that precedes it.
func AccountVerdict(now time.Time, acct Account, params CullParams) Verdict {
	age := durationSince(now, acct.Created)
	inactive := durationSince(now, acct.LastActivity)
	if inactive == nil {
		inactive = age
	}

	verdict := Verdict{Age: age, Inactive: inactive}

	if acct.Admin && !params.CullAdminAccounts {
		return verdict
	}

	return decide(verdict, params)
}

func decide(verdict Verdict, params CullParams) Verdict {
	if verdict.Inactive != nil && *verdict.Inactive >= params.InactiveLimit {
		verdict.Cull = true
		verdict.Reason = ReasonInactive
		return verdict
	}
	if params.MaxAge > 0 && verdict.Age != nil && *verdict.Age >= params.MaxAge {
		verdict.Cull = true
		verdict.Reason = ReasonMaxAge
	}
	return verdict
}

func durationSince(now time.Time, t *time.Time) *time.Duration {
	if t == nil {
		return nil
	}
	d := now.Sub(*t)
	return &d
}

// FormatDuration renders a duration as HH:MM:SS for log lines, or
// "unknown" when the underlying timestamp was absent.
func FormatDuration(d *time.Duration) string {
	if d == nil {
		return "unknown"
	}
	seconds := int(d.Seconds())
	hours := seconds / 3600
	seconds %= 3600
	minutes := seconds / 60
	seconds %= 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
