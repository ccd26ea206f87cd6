package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func allSessionsParams(limit time.Duration) CullParams {
	return CullParams{
		InactiveLimit:       limit,
		CullDefaultSessions: true,
		CullNamedSessions:   true,
		CullAdminAccounts:   true,
	}
}

func readySession(name string, started, lastActivity time.Time) Session {
	ready := true
	return Session{
		Account:      "alice",
		Name:         name,
		Ready:        &ready,
		URL:          "/user/alice/" + name,
		Started:      &started,
		LastActivity: &lastActivity,
	}
}

func TestSessionVerdictCullsAtExactInactiveLimit(t *testing.T) {
	t.Parallel()

	sess := readySession("", testNow.Add(-time.Hour), testNow.Add(-300*time.Second))

	verdict := SessionVerdict(testNow, sess, allSessionsParams(300*time.Second))
	assert.True(t, verdict.Cull)
	assert.Equal(t, ReasonInactive, verdict.Reason)
}

func TestSessionVerdictBelowInactiveLimit(t *testing.T) {
	t.Parallel()

	sess := readySession("", testNow.Add(-time.Hour), testNow.Add(-299*time.Second))

	verdict := SessionVerdict(testNow, sess, allSessionsParams(300*time.Second))
	assert.False(t, verdict.Cull)
	require.NotNil(t, verdict.Inactive)
	assert.Equal(t, 299*time.Second, *verdict.Inactive)
}

func TestSessionVerdictNeverCullsPending(t *testing.T) {
	t.Parallel()

	sess := readySession("", testNow.Add(-24*time.Hour), testNow.Add(-24*time.Hour))
	sess.Pending = "stop"

	verdict := SessionVerdict(testNow, sess, allSessionsParams(time.Second))
	assert.False(t, verdict.Cull)
	assert.True(t, verdict.Pending)
}

func TestSessionVerdictNotReadyNotPendingIsUnexpected(t *testing.T) {
	t.Parallel()

	notReady := false
	sess := Session{Account: "alice", Ready: &notReady}

	verdict := SessionVerdict(testNow, sess, allSessionsParams(time.Second))
	assert.False(t, verdict.Cull)
	assert.True(t, verdict.Unexpected)
}

func TestSessionVerdictLegacyURLImpliesReady(t *testing.T) {
	t.Parallel()

	started := testNow.Add(-time.Hour)
	sess := Session{
		Account:      "alice",
		URL:          "/user/alice/",
		Started:      &started,
		LastActivity: &started,
	}

	verdict := SessionVerdict(testNow, sess, allSessionsParams(300*time.Second))
	assert.True(t, verdict.Cull)
}

func TestSessionVerdictFallsBackToAgeWithoutActivity(t *testing.T) {
	t.Parallel()

	started := testNow.Add(-10 * time.Minute)
	ready := true
	sess := Session{Account: "alice", Ready: &ready, Started: &started}

	verdict := SessionVerdict(testNow, sess, allSessionsParams(300*time.Second))
	assert.True(t, verdict.Cull)
	require.NotNil(t, verdict.Inactive)
	assert.Equal(t, 10*time.Minute, *verdict.Inactive)
}

func TestSessionVerdictNoTimestampsNoCull(t *testing.T) {
	t.Parallel()

	ready := true
	sess := Session{Account: "alice", Ready: &ready}

	verdict := SessionVerdict(testNow, sess, allSessionsParams(time.Second))
	assert.False(t, verdict.Cull)
	assert.Nil(t, verdict.Inactive)
}

func TestSessionVerdictDefaultCategoryDisabled(t *testing.T) {
	t.Parallel()

	params := allSessionsParams(300 * time.Second)
	params.CullDefaultSessions = false

	sess := readySession("", testNow.Add(-time.Hour), testNow.Add(-time.Hour))

	verdict := SessionVerdict(testNow, sess, params)
	assert.False(t, verdict.Cull)
}

func TestSessionVerdictNamedCategoryDisabled(t *testing.T) {
	t.Parallel()

	params := allSessionsParams(300 * time.Second)
	params.CullNamedSessions = false

	sess := readySession("lab", testNow.Add(-time.Hour), testNow.Add(-time.Hour))

	verdict := SessionVerdict(testNow, sess, params)
	assert.False(t, verdict.Cull)
}

func TestSessionVerdictMaxAgeOverridesActivity(t *testing.T) {
	t.Parallel()

	params := allSessionsParams(300 * time.Second)
	params.MaxAge = time.Hour

	// Recently active, but past the lifetime ceiling.
	sess := readySession("", testNow.Add(-2*time.Hour), testNow.Add(-time.Minute))

	verdict := SessionVerdict(testNow, sess, params)
	assert.True(t, verdict.Cull)
	assert.Equal(t, ReasonMaxAge, verdict.Reason)
}

func TestSessionVerdictMaxAgeRespectsCategoryGate(t *testing.T) {
	t.Parallel()

	params := allSessionsParams(300 * time.Second)
	params.MaxAge = time.Hour
	params.CullNamedSessions = false

	sess := readySession("lab", testNow.Add(-2*time.Hour), testNow.Add(-time.Minute))

	verdict := SessionVerdict(testNow, sess, params)
	assert.False(t, verdict.Cull)
}

func TestSessionVerdictMaxAgeDisabledByZero(t *testing.T) {
	t.Parallel()

	params := allSessionsParams(300 * time.Second)

	sess := readySession("", testNow.Add(-1000*time.Hour), testNow.Add(-time.Minute))

	verdict := SessionVerdict(testNow, sess, params)
	assert.False(t, verdict.Cull)
}

func TestAccountVerdictCullsInactiveAccount(t *testing.T) {
	t.Parallel()

	created := testNow.Add(-48 * time.Hour)
	lastActivity := testNow.Add(-time.Hour)
	acct := Account{Name: "alice", Created: &created, LastActivity: &lastActivity}

	verdict := AccountVerdict(testNow, acct, allSessionsParams(300*time.Second))
	assert.True(t, verdict.Cull)
	assert.Equal(t, ReasonInactive, verdict.Reason)
}

func TestAccountVerdictSparesAdminWhenDisabled(t *testing.T) {
	t.Parallel()

	params := allSessionsParams(300 * time.Second)
	params.CullAdminAccounts = false

	created := testNow.Add(-48 * time.Hour)
	lastActivity := testNow.Add(-time.Hour)
	acct := Account{Name: "root", Admin: true, Created: &created, LastActivity: &lastActivity}

	verdict := AccountVerdict(testNow, acct, params)
	assert.False(t, verdict.Cull)
}

func TestAccountVerdictMaxAgeOverride(t *testing.T) {
	t.Parallel()

	params := allSessionsParams(300 * time.Second)
	params.MaxAge = 24 * time.Hour

	created := testNow.Add(-48 * time.Hour)
	lastActivity := testNow.Add(-time.Minute)
	acct := Account{Name: "alice", Created: &created, LastActivity: &lastActivity}

	verdict := AccountVerdict(testNow, acct, params)
	assert.True(t, verdict.Cull)
	assert.Equal(t, ReasonMaxAge, verdict.Reason)
}

func TestAccountVerdictFallsBackToCreatedWithoutActivity(t *testing.T) {
	t.Parallel()

	created := testNow.Add(-time.Hour)
	acct := Account{Name: "alice", Created: &created}

	verdict := AccountVerdict(testNow, acct, allSessionsParams(300*time.Second))
	assert.True(t, verdict.Cull)
	require.NotNil(t, verdict.Inactive)
	assert.Equal(t, time.Hour, *verdict.Inactive)
}

func TestAccountVerdictNoTimestampsNoCull(t *testing.T) {
	t.Parallel()

	verdict := AccountVerdict(testNow, Account{Name: "alice"}, allSessionsParams(time.Second))
	assert.False(t, verdict.Cull)
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	d := 2*time.Hour + 3*time.Minute + 4*time.Second
	assert.Equal(t, "02:03:04", FormatDuration(&d))
	assert.Equal(t, "unknown", FormatDuration(nil))
}
