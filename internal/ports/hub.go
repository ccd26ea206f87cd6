package ports

import (
	"context"

	"github.com/bnema/hubcull/internal/domain"
)

// ListOptions narrow an account listing. State is a server-side filter
// ("ready" or "inactive"); the empty string lists everything. PageSize
// is a hint for the hub's page size, 0 meaning the server default.
type ListOptions struct {
	State    string
	PageSize int
}

// AccountSeq is a lazy, finite sequence of account records. Next
// returns ok=false once the sequence is exhausted; a page-fetch
// failure surfaces as an error and ends the sequence.
type AccountSeq interface {
	Next(ctx context.Context) (account domain.Account, ok bool, err error)
}

// HubClient is the control-plane API surface the culler consumes.
type HubClient interface {
	// Version probes the hub and returns its reported version string.
	Version(ctx context.Context) (string, error)

	// ListAccounts starts a fresh paginated listing. No request is
	// issued until the first Next call, which is also where
	// cancellation applies.
	ListAccounts(opts ListOptions) AccountSeq

	// StopSession stops the named session ("" for the default session),
	// removing a named session entirely when remove is set. It reports
	// stopped=false without error when the hub accepted the request but
	// has not finished stopping the session.
	StopSession(ctx context.Context, account, session string, remove bool) (stopped bool, err error)

	// DeleteAccount removes the account. Only valid once all of its
	// sessions are stopped.
	DeleteAccount(ctx context.Context, account string) error
}
