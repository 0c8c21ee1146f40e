// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package guard_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/doorman-auth/doorman/internal/auth/authtest"
	"github.com/doorman-auth/doorman/internal/email"
	"github.com/doorman-auth/doorman/internal/web"
	"github.com/doorman-auth/doorman/pkg/client"
	"github.com/doorman-auth/doorman/pkg/guard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// fakeSource answers CurrentUser with whatever is queued. A call blocks
// until an answer arrives on its channel.
type fakeSource struct {
	mu      sync.Mutex
	user    *client.User
	err     error
	gates   []chan struct{}
	calls   atomic.Int32
	blocked bool
}

func (f *fakeSource) set(u *client.User, err error) {
	f.mu.Lock()
	f.user, f.err = u, err
	f.mu.Unlock()
}

func (f *fakeSource) waiting() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.gates)
}

func (f *fakeSource) CurrentUser(context.Context) (*client.User, error) {
	f.calls.Add(1)
	f.mu.Lock()
	var gate chan struct{}
	if f.blocked {
		gate = make(chan struct{})
		f.gates = append(f.gates, gate)
	}
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user, f.err
}

var (
	alice = &client.User{ID: 1, Username: "alice"}
	root  = &client.User{ID: 2, Username: "root", IsAdmin: true}
)

func TestDecide(t *testing.T) {
	loading := guard.Snapshot{}
	anon := guard.Snapshot{State: guard.Anonymous}
	member := guard.Snapshot{State: guard.Authenticated, User: alice}
	admin := guard.Snapshot{State: guard.Authenticated, User: root}

	tests := []struct {
		name string
		tier guard.Tier
		snap guard.Snapshot
		want guard.Outcome
	}{
		{"public while loading", guard.Public, loading, guard.Render},
		{"public anonymous", guard.Public, anon, guard.Render},
		{"protected while loading", guard.Protected, loading, guard.ShowLoading},
		{"protected anonymous", guard.Protected, anon, guard.RedirectToLogin},
		{"protected member", guard.Protected, member, guard.Render},
		{"admin while loading", guard.Admin, loading, guard.ShowLoading},
		{"admin anonymous", guard.Admin, anon, guard.RedirectToLogin},
		{"admin member", guard.Admin, member, guard.Deny},
		{"admin admin", guard.Admin, admin, guard.Render},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guard.Decide(tt.tier, tt.snap))
		})
	}
}

func TestGuardStartsLoading(t *testing.T) {
	g := guard.New(&fakeSource{}, guard.ViewRoutes())

	assert.Equal(t, guard.Loading, g.Snapshot().State)
	assert.Equal(t, guard.ShowLoading, g.Check(guard.HomePath))
	assert.Equal(t, guard.Render, g.Check(guard.LoginPath))
}

func TestNavigate(t *testing.T) {
	src := &fakeSource{}
	g := guard.New(src, guard.ViewRoutes())
	ctx := context.Background()

	assert.Equal(t, guard.RedirectToLogin, g.Navigate(ctx, guard.HomePath))
	assert.Equal(t, guard.Render, g.Navigate(ctx, guard.LoginPath))

	src.set(alice, nil)
	assert.Equal(t, guard.Render, g.Navigate(ctx, guard.HomePath))
	assert.Equal(t, guard.RedirectHome, g.Navigate(ctx, guard.LoginPath))
	assert.Equal(t, guard.Render, g.Navigate(ctx, guard.VerifyPath))
	assert.Equal(t, int32(5), src.calls.Load(), "every navigation re-checks")

	// Session revoked elsewhere.
	src.set(nil, nil)
	assert.Equal(t, guard.RedirectToLogin, g.Navigate(ctx, guard.HomePath))
}

func TestRefreshErrorIsAnonymous(t *testing.T) {
	boom := errors.New("network down")
	src := &fakeSource{}
	src.set(alice, boom)
	g := guard.New(src, guard.ViewRoutes())

	snap := g.Refresh(context.Background())
	assert.Equal(t, guard.Anonymous, snap.State)
	assert.Nil(t, snap.User)
	assert.ErrorIs(t, snap.Err, boom)
	assert.Equal(t, guard.RedirectToLogin, g.Check(guard.HomePath))
}

func TestStaleRefreshDoesNotOverrideNewer(t *testing.T) {
	src := &fakeSource{blocked: true}
	src.set(alice, nil)
	g := guard.New(src, guard.ViewRoutes())
	ctx := context.Background()

	older := make(chan guard.Snapshot)
	go func() { older <- g.Refresh(ctx) }()
	require.Eventually(t, func() bool { return src.waiting() == 1 }, time.Second, time.Millisecond)

	newer := make(chan guard.Snapshot)
	go func() { newer <- g.Refresh(ctx) }()
	require.Eventually(t, func() bool { return src.waiting() == 2 }, time.Second, time.Millisecond)

	// The session ends between the two requests. The newer request sees
	// that; the older one still carries the signed-in answer.
	src.mu.Lock()
	gates := src.gates
	src.user = nil
	src.mu.Unlock()

	close(gates[1])
	got := <-newer
	assert.Equal(t, guard.Anonymous, got.State)

	src.set(alice, nil)
	close(gates[0])
	got = <-older
	assert.Equal(t, guard.Anonymous, got.State, "stale answer must be discarded")
	assert.Equal(t, guard.Anonymous, g.Snapshot().State)
}

func TestReset(t *testing.T) {
	src := &fakeSource{}
	src.set(alice, nil)
	g := guard.New(src, guard.ViewRoutes())

	g.Refresh(context.Background())
	require.Equal(t, guard.Authenticated, g.Snapshot().State)

	g.Reset()
	assert.Equal(t, guard.Loading, g.Snapshot().State)
}

func TestWatchStopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	src.set(alice, nil)
	g := guard.New(src, guard.ViewRoutes())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Watch(ctx, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return g.Snapshot().State == guard.Authenticated }, time.Second, time.Millisecond)
	cancel()
	<-done
}

type discardMailer struct{}

func (discardMailer) Send(context.Context, email.Message) error { return nil }

func TestGuardWithAPIClient(t *testing.T) {
	store := authtest.NewStore()
	authn, accounts, sessions, tokens := store.Services()
	srv, err := web.New(web.Deps{
		Authenticator: authn,
		Accounts:      accounts,
		Sessions:      sessions,
		Tokens:        tokens,
		Mailer:        discardMailer{},
		Logger:        slog.New(slog.DiscardHandler),
	}, web.Options{})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c, err := client.New(ts.URL)
	require.NoError(t, err)
	g := guard.New(c, guard.ViewRoutes())
	ctx := context.Background()

	assert.Equal(t, guard.RedirectToLogin, g.Navigate(ctx, guard.HomePath))

	_, err = c.Register(ctx, "alice", "alice@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, guard.Render, g.Navigate(ctx, guard.HomePath))
	assert.Equal(t, "alice", g.Snapshot().User.Username)

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, guard.RedirectToLogin, g.Navigate(ctx, guard.HomePath))
}
