package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/hubcull/internal/domain"
	"github.com/bnema/hubcull/internal/ports"
)

// Settings hold everything one reconciliation run needs beyond the
// policy itself. Built once at startup, never mutated.
type Settings struct {
	Params domain.CullParams

	// CullAccounts enables account deletion once all of an account's
	// sessions are stopped.
	CullAccounts bool

	// RemoveNamedSessions removes culled named sessions entirely
	// instead of merely stopping them.
	RemoveNamedSessions bool

	// APIPageSize is the page-size hint for the account listing, 0 for
	// the server default.
	APIPageSize int
}

// Culler drives one reconciliation run against the hub: list accounts,
// cull idle sessions, then cull accounts left without live sessions.
type Culler struct {
	hub      ports.HubClient
	settings Settings
	clock    ports.Clock
	log      zerolog.Logger
}

func NewCuller(hub ports.HubClient, settings Settings, logger zerolog.Logger, clock ports.Clock) *Culler {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Culler{
		hub:      hub,
		settings: settings,
		clock:    clock,
		log:      logger,
	}
}

// Report aggregates one run's outcome. Failures carry the per-account
// errors that were isolated from their siblings.
type Report struct {
	AccountsSeen   int
	SessionsCulled int
	AccountsCulled int
	Failures       []AccountFailure
}

type AccountFailure struct {
	Account string
	Err     error
}

type accountOutcome struct {
	sessionsCulled int
	accountCulled  bool
}

// Run executes one full reconciliation. A listing failure aborts the
// run and is returned; per-account failures are collected into the
// report instead. The hub's capability is probed once and held for the
// whole run.
func (c *Culler) Run(ctx context.Context) (Report, error) {
	version, err := c.hub.Version(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("probe hub version: %w", err)
	}
	stateFilter := supportsStateFilter(version)
	c.log.Debug().
		Str("version", version).
		Bool("state_filter", stateFilter).
		Msg("hub capability")

	now := c.clock.Now()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report Report
		seen   = map[string]struct{}{}
	)

	schedule := func(acct domain.Account) {
		report.AccountsSeen++
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := c.reconcileAccount(ctx, now, acct)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.log.Error().Err(err).Str("account", acct.Name).Msg("account reconciliation failed")
				report.Failures = append(report.Failures, AccountFailure{Account: acct.Name, Err: err})
				return
			}
			report.SessionsCulled += outcome.sessionsCulled
			if outcome.accountCulled {
				report.AccountsCulled++
			}
		}()
	}

	// Accounts with only inactive sessions are excluded by the "ready"
	// filter, so when account culling is on they need a pass of their
	// own.
	if stateFilter && c.settings.CullAccounts {
		seq := c.hub.ListAccounts(ports.ListOptions{State: "inactive", PageSize: c.settings.APIPageSize})
		inactive := 0
		for {
			acct, ok, err := seq.Next(ctx)
			if err != nil {
				wg.Wait()
				return report, fmt.Errorf("list inactive accounts: %w", err)
			}
			if !ok {
				break
			}
			inactive++
			seen[acct.Name] = struct{}{}
			schedule(acct)
		}
		c.log.Debug().Int("accounts", inactive).Msg("listed accounts with inactive sessions")
	}

	opts := ports.ListOptions{PageSize: c.settings.APIPageSize}
	if stateFilter {
		opts.State = "ready"
	}
	seq := c.hub.ListAccounts(opts)
	for {
		acct, ok, err := seq.Next(ctx)
		if err != nil {
			wg.Wait()
			return report, fmt.Errorf("list accounts: %w", err)
		}
		if !ok {
			break
		}
		if _, dup := seen[acct.Name]; dup {
			continue
		}
		schedule(acct)
	}

	wg.Wait()

	c.log.Info().
		Int("accounts", report.AccountsSeen).
		Int("sessions_culled", report.SessionsCulled).
		Int("accounts_culled", report.AccountsCulled).
		Int("failures", len(report.Failures)).
		Msg("cull run complete")

	return report, nil
}

// reconcileAccount culls the account's sessions, then the account
// itself when enabled. Session reconciliation is a hard barrier: the
// account decision only happens after every session reported back.
func (c *Culler) reconcileAccount(ctx context.Context, now time.Time, acct domain.Account) (accountOutcome, error) {
	alive, culled, err := c.reconcileSessions(ctx, now, acct)
	if err != nil {
		return accountOutcome{}, err
	}

	outcome := accountOutcome{sessionsCulled: culled}

	if !c.settings.CullAccounts {
		return outcome, nil
	}

	if alive > 0 {
		c.log.Debug().
			Str("account", acct.Name).
			Int("alive", alive).
			Msg("not culling account with live sessions")
		return outcome, nil
	}

	verdict := domain.AccountVerdict(now, acct, c.settings.Params)
	if !verdict.Cull {
		c.log.Debug().
			Str("account", acct.Name).
			Str("age", domain.FormatDuration(verdict.Age)).
			Str("inactive", domain.FormatDuration(verdict.Inactive)).
			Msg("not culling account")
		return outcome, nil
	}

	c.log.Info().
		Str("account", acct.Name).
		Str("reason", string(verdict.Reason)).
		Str("age", domain.FormatDuration(verdict.Age)).
		Str("inactive", domain.FormatDuration(verdict.Inactive)).
		Msg("culling account")

	if err := c.hub.DeleteAccount(ctx, acct.Name); err != nil {
		return outcome, fmt.Errorf("delete account %s: %w", acct.Name, err)
	}
	outcome.accountCulled = true

	return outcome, nil
}

// reconcileSessions evaluates all of the account's sessions
// concurrently, bounded only by the global request gate. It returns
// how many sessions are still alive and how many were stopped. Any
// session failure fails the whole account.
func (c *Culler) reconcileSessions(ctx context.Context, now time.Time, acct domain.Account) (alive, culled int, err error) {
	sessions := acct.SessionSet()
	if len(sessions) == 0 {
		return 0, 0, nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		joinErr error
	)

	for name, sess := range sessions {
		wg.Add(1)
		go func(name string, sess domain.Session) {
			defer wg.Done()
			stopped, sessErr := c.reconcileSession(ctx, now, acct, name, sess)

			mu.Lock()
			defer mu.Unlock()
			if sessErr != nil {
				joinErr = errors.Join(joinErr, sessErr)
				return
			}
			if stopped {
				culled++
			} else {
				alive++
			}
		}(name, sess)
	}
	wg.Wait()

	if joinErr != nil {
		return 0, 0, joinErr
	}
	return alive, culled, nil
}

// reconcileSession evaluates one session and issues the termination
// request on a cull verdict. It reports stopped=true only when the hub
// confirmed the stop; an accepted-but-still-stopping response keeps
// the session counted as alive.
func (c *Culler) reconcileSession(ctx context.Context, now time.Time, acct domain.Account, name string, sess domain.Session) (bool, error) {
	logName := acct.Name
	if name != "" {
		logName = acct.Name + "/" + name
	}

	verdict := domain.SessionVerdict(now, sess, c.settings.Params)
	if verdict.Pending {
		c.log.Warn().
			Str("session", logName).
			Str("pending", sess.Pending).
			Msg("not culling pending session")
		return false, nil
	}
	if verdict.Unexpected {
		c.log.Warn().
			Str("session", logName).
			Msg("not culling session that is neither pending nor ready")
		return false, nil
	}
	if !verdict.Cull {
		c.log.Debug().
			Str("session", logName).
			Str("age", domain.FormatDuration(verdict.Age)).
			Str("inactive", domain.FormatDuration(verdict.Inactive)).
			Msg("not culling session")
		return false, nil
	}

	c.log.Info().
		Str("session", logName).
		Str("reason", string(verdict.Reason)).
		Str("age", domain.FormatDuration(verdict.Age)).
		Str("inactive", domain.FormatDuration(verdict.Inactive)).
		Msg("culling session")

	remove := c.settings.RemoveNamedSessions && name != ""
	stopped, err := c.hub.StopSession(ctx, acct.Name, name, remove)
	if err != nil {
		return false, fmt.Errorf("stop session %s: %w", logName, err)
	}
	if !stopped {
		c.log.Warn().Str("session", logName).Msg("session is slow to stop")
	}
	return stopped, nil
}
