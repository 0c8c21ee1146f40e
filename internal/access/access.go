// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package access decides which requests may proceed.
//
// Routes are classified by exact path into one of three tiers. A path that
// is not listed is Protected, so new endpoints are closed by default.
// Prefix matching is never used: "/api/login/extra" is not public just
// because "/api/login" is.
package access

import (
	"maps"
	"slices"

	"github.com/samber/oops"
)

// Tier is the access requirement of a route.
type Tier int

// Route tiers.
const (
	// Protected requires an authenticated session.
	Protected Tier = iota
	// Public requires nothing.
	Public
	// Admin requires an authenticated session belonging to an admin.
	Admin
)

func (t Tier) String() string {
	switch t {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// Decision is the outcome of checking a request against its tier.
type Decision int

// Decisions.
const (
	Allow Decision = iota
	// Unauthenticated means no valid session; the server answers 401.
	Unauthenticated
	// Forbidden means a valid session without the required privilege; the
	// server answers 403.
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Subject is what the gate knows about the caller.
type Subject struct {
	Authenticated bool
	Admin         bool
}

// Anonymous is the subject of a request without a valid session.
var Anonymous = Subject{}

// Decide applies tier to subject.
func Decide(tier Tier, s Subject) Decision {
	switch tier {
	case Public:
		return Allow
	case Admin:
		if !s.Authenticated {
			return Unauthenticated
		}
		if !s.Admin {
			return Forbidden
		}
		return Allow
	default:
		if !s.Authenticated {
			return Unauthenticated
		}
		return Allow
	}
}

// Policy maps exact request paths to tiers. A Policy is immutable after
// construction and safe for concurrent use.
type Policy struct {
	routes map[string]Tier
}

// NewPolicy creates a policy from an explicit route table. Paths must be
// absolute and non-empty.
func NewPolicy(routes map[string]Tier) (*Policy, error) {
	for path, tier := range routes {
		if path == "" || path[0] != '/' {
			return nil, oops.Code("ACCESS_INVALID_ROUTE").
				With("path", path).
				Errorf("route path must start with /")
		}
		if tier != Public && tier != Protected && tier != Admin {
			return nil, oops.Code("ACCESS_INVALID_ROUTE").
				With("path", path).
				With("tier", int(tier)).
				Errorf("unknown tier")
		}
	}
	return &Policy{routes: maps.Clone(routes)}, nil
}

// API routes.
const (
	PathRegister       = "/api/register"
	PathLogin          = "/api/login"
	PathMagicLink      = "/api/magic-link"
	PathVerify         = "/api/verify"
	PathForgotPassword = "/api/forgot-password"
	PathResetPassword  = "/api/reset-password"
	PathLogout         = "/api/logout"
	PathUser           = "/api/user"
	PathAdminStats     = "/api/admin/stats"
)

// DefaultRoutes returns the route table of the API.
func DefaultRoutes() map[string]Tier {
	return map[string]Tier{
		PathRegister:       Public,
		PathLogin:          Public,
		PathMagicLink:      Public,
		PathVerify:         Public,
		PathForgotPassword: Public,
		PathResetPassword:  Public,
		PathLogout:         Public,
		PathUser:           Protected,
		PathAdminStats:     Admin,
	}
}

// DefaultPolicy returns the policy for DefaultRoutes.
func DefaultPolicy() *Policy {
	return &Policy{routes: DefaultRoutes()}
}

// Classify returns the tier of path. Unlisted paths are Protected.
func (p *Policy) Classify(path string) Tier {
	if tier, ok := p.routes[path]; ok {
		return tier
	}
	return Protected
}

// Check classifies path and decides for s.
func (p *Policy) Check(path string, s Subject) Decision {
	return Decide(p.Classify(path), s)
}

// PublicPaths returns the public paths in sorted order.
func (p *Policy) PublicPaths() []string {
	var out []string
	for path, tier := range p.routes {
		if tier == Public {
			out = append(out, path)
		}
	}
	slices.Sort(out)
	return out
}
