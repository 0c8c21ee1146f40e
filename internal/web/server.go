// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package web is the HTTP gateway: the auth endpoints, the session cookie
// and the access gate in front of every route.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/propagation"

	"github.com/doorman-auth/doorman/internal/access"
	"github.com/doorman-auth/doorman/internal/auth"
	"github.com/doorman-auth/doorman/internal/email"
	"github.com/doorman-auth/doorman/internal/observability"
)

// Deps are the collaborators of the gateway. Metrics may be nil.
type Deps struct {
	Authenticator *auth.Authenticator
	Accounts      *auth.AccountService
	Sessions      *auth.SessionAuthority
	Tokens        *auth.TokenService
	Mailer        email.Sender
	Policy        *access.Policy
	Metrics       *observability.Metrics
	Logger        *slog.Logger
}

// Options tune the gateway.
type Options struct {
	// CookieName names the session cookie. Empty selects "session".
	CookieName string
	// SecureCookie sets the Secure attribute; enabled in production.
	SecureCookie bool
	// PublicURL is the origin used in emailed links. Empty derives it from
	// the request.
	PublicURL string
	// VerifyPath is the client route that handles emailed links.
	VerifyPath string
	// ReadHeaderTimeout bounds header reads on the listener.
	ReadHeaderTimeout time.Duration
	// Propagator extracts incoming trace context. Nil selects W3C Trace
	// Context.
	Propagator propagation.TextMapPropagator
}

// Server is the HTTP gateway.
type Server struct {
	echo    *echo.Echo
	deps    Deps
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New wires routes and middleware.
func New(deps Deps, opts Options) (*Server, error) {
	switch {
	case deps.Authenticator == nil:
		return nil, oops.Code("WEB_INVALID_DEPS").Errorf("authenticator is required")
	case deps.Accounts == nil:
		return nil, oops.Code("WEB_INVALID_DEPS").Errorf("account service is required")
	case deps.Sessions == nil:
		return nil, oops.Code("WEB_INVALID_DEPS").Errorf("session authority is required")
	case deps.Tokens == nil:
		return nil, oops.Code("WEB_INVALID_DEPS").Errorf("token service is required")
	case deps.Mailer == nil:
		return nil, oops.Code("WEB_INVALID_DEPS").Errorf("mailer is required")
	}
	if deps.Policy == nil {
		deps.Policy = access.DefaultPolicy()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.CookieName == "" {
		opts.CookieName = "session"
	}
	if opts.VerifyPath == "" {
		opts.VerifyPath = "/auth/verify"
	}
	if opts.Propagator == nil {
		opts.Propagator = propagation.TraceContext{}
	}

	s := &Server{
		echo:    echo.New(),
		deps:    deps,
		opts:    opts,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = s.handleError
	e.Server.ReadHeaderTimeout = opts.ReadHeaderTimeout

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: s.bindRequestID,
	}))
	e.Use(s.traceRequest)
	e.Use(s.accessLog)
	// Inside accessLog so a recovered panic is logged and counted as a 500.
	e.Use(middleware.Recover())
	e.Use(s.gate)

	api := e.Group("/api")
	api.POST("/register", s.register)
	api.POST("/login", s.login)
	api.POST("/magic-link", s.requestMagicLink)
	api.GET("/verify", s.verify)
	api.POST("/forgot-password", s.forgotPassword)
	api.POST("/reset-password", s.resetPassword)
	api.POST("/logout", s.logout)
	api.GET("/user", s.currentUser)
	api.GET("/admin/stats", s.adminStats)

	return s, nil
}

// Handler returns the gateway as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr and blocks until the server stops. A clean
// Shutdown returns nil.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server starting", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return oops.Code("HTTP_SERVE_FAILED").With("addr", addr).Wrap(err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}
