// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package guard mirrors the server's access rules on the client so that
// protected views are never shown before the session is known.
//
// A Guard holds the last known session state. It starts Loading and moves
// to Anonymous or Authenticated after each Refresh. Refreshes may overlap;
// only the most recently started one is allowed to update the state.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/doorman-auth/doorman/internal/access"
	"github.com/doorman-auth/doorman/pkg/client"
)

// State is the client's knowledge of its session.
type State int

// Session states.
const (
	Loading State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is the session state at a point in time.
type Snapshot struct {
	State State
	// User is set when State is Authenticated.
	User *client.User
	// Err is the failure of the last refresh, if any. A failed refresh
	// leaves the client Anonymous.
	Err error
}

// Outcome is what the view layer should do for a navigation.
type Outcome int

// Navigation outcomes.
const (
	// ShowLoading renders a placeholder until the session resolves.
	ShowLoading Outcome = iota
	// Render shows the requested view.
	Render
	// RedirectToLogin sends the user to the login view.
	RedirectToLogin
	// Deny shows a forbidden view to a signed-in user without privilege.
	Deny
	// RedirectHome sends a signed-in user away from the login view.
	RedirectHome
)

func (o Outcome) String() string {
	switch o {
	case ShowLoading:
		return "show_loading"
	case Render:
		return "render"
	case RedirectToLogin:
		return "redirect_to_login"
	case Deny:
		return "deny"
	case RedirectHome:
		return "redirect_home"
	default:
		return "unknown"
	}
}

// Tier is the access requirement of a view.
type Tier = access.Tier

// View tiers.
const (
	Protected = access.Protected
	Public    = access.Public
	Admin     = access.Admin
)

// Policy maps view paths to tiers.
type Policy = access.Policy

// Decide maps a route tier and session snapshot to an outcome. Public
// routes render without waiting for the session.
func Decide(tier Tier, snap Snapshot) Outcome {
	if tier == Public {
		return Render
	}
	if snap.State == Loading {
		return ShowLoading
	}

	subject := access.Anonymous
	if snap.State == Authenticated && snap.User != nil {
		subject = access.Subject{Authenticated: true, Admin: snap.User.IsAdmin}
	}
	switch access.Decide(tier, subject) {
	case access.Allow:
		return Render
	case access.Forbidden:
		return Deny
	default:
		return RedirectToLogin
	}
}

// Client view paths.
const (
	HomePath          = "/"
	LoginPath         = "/auth"
	VerifyPath        = "/auth/verify"
	ForgotPath        = "/forgot-password"
	ResetPasswordPath = "/auth/reset-password"
)

// ViewRoutes returns the access table of the client views. Unlisted views
// are protected.
func ViewRoutes() *Policy {
	p, err := access.NewPolicy(map[string]Tier{
		HomePath:          Protected,
		LoginPath:         Public,
		VerifyPath:        Public,
		ForgotPath:        Public,
		ResetPasswordPath: Public,
	})
	if err != nil {
		panic(err) // static table
	}
	return p
}

// SessionSource resolves the current user. It returns nil without error
// when there is no session. *client.Client implements it.
type SessionSource interface {
	CurrentUser(ctx context.Context) (*client.User, error)
}

// Routes classifies client view paths.
type Routes interface {
	Classify(path string) Tier
}

// Guard gates client navigation.
type Guard struct {
	source SessionSource
	routes Routes

	mu      sync.Mutex
	snap    Snapshot
	started uint64 // generation of the newest refresh
	applied uint64 // generation whose answer is in snap
}

// New creates a Guard in the Loading state.
func New(source SessionSource, routes Routes) *Guard {
	return &Guard{source: source, routes: routes}
}

// Snapshot returns the current session state.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap
}

// Refresh re-resolves the session. Call it on navigation and when the
// view regains visibility. An answer that arrives after a newer refresh
// has started is discarded, and the newer state is returned instead.
func (g *Guard) Refresh(ctx context.Context) Snapshot {
	g.mu.Lock()
	g.started++
	gen := g.started
	g.mu.Unlock()

	user, err := g.source.CurrentUser(ctx)
	next := Snapshot{State: Anonymous, Err: err}
	if err == nil && user != nil {
		next = Snapshot{State: Authenticated, User: user}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen > g.applied && gen == g.started {
		g.snap = next
		g.applied = gen
	}
	return g.snap
}

// Check decides path against the current snapshot without refreshing.
func (g *Guard) Check(path string) Outcome {
	return g.decide(path, g.Snapshot())
}

// Navigate refreshes the session and decides path.
func (g *Guard) Navigate(ctx context.Context, path string) Outcome {
	return g.decide(path, g.Refresh(ctx))
}

func (g *Guard) decide(path string, snap Snapshot) Outcome {
	if path == LoginPath && snap.State == Authenticated {
		return RedirectHome
	}
	return Decide(g.routes.Classify(path), snap)
}

// Watch refreshes on every tick until ctx is cancelled.
func (g *Guard) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Refresh(ctx)
		}
	}
}

// Reset returns the guard to Loading, as after a sign-out elsewhere.
// Refreshes already in flight are discarded.
func (g *Guard) Reset() {
	g.mu.Lock()
	g.started++
	g.applied = g.started
	g.snap = Snapshot{}
	g.mu.Unlock()
}
