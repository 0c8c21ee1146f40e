// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/doorman-auth/doorman/internal/access"
	"github.com/doorman-auth/doorman/internal/auth"
	"github.com/doorman-auth/doorman/internal/logging"
)

// Keys in the echo context.
const (
	ctxUser    = "doorman.user"
	ctxSession = "doorman.session"
)

// bindRequestID makes the echo request id visible to context-aware logging.
func (s *Server) bindRequestID(c echo.Context, id string) {
	req := c.Request()
	c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
}

var tracer = otel.Tracer("github.com/doorman-auth/doorman/internal/web")

// traceRequest continues an incoming W3C trace, or starts one, and puts the
// span in the request context so logs carry its ids.
func (s *Server) traceRequest(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := s.opts.Propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := tracer.Start(ctx, req.Method+" "+routeOf(c), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.SetRequest(req.WithContext(ctx))

		err := next(c)
		if err != nil {
			span.RecordError(err)
		}
		if status := c.Response().Status; status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		return err
	}
}

func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}

// accessLog logs and counts every request after it completes.
func (s *Server) accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// Let the error handler write the status before it is read.
			c.Error(err)
		}

		req := c.Request()
		status := c.Response().Status
		elapsed := time.Since(start)

		s.metrics.HTTPRequest(routeOf(c), req.Method, status, elapsed)

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(req.Context(), level, "http request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"duration", elapsed,
			"remote_ip", c.RealIP(),
		)
		return nil
	}
}

// gate resolves the session of every non-public request and applies the
// access policy. Public routes resolve the session lazily in their handler.
func (s *Server) gate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tier := s.deps.Policy.Classify(c.Request().URL.Path)
		if tier == access.Public {
			return next(c)
		}

		user, err := s.resolveUser(c)
		if err != nil {
			return err
		}

		switch access.Decide(tier, access.SubjectOf(user)) {
		case access.Unauthenticated:
			return c.JSON(http.StatusUnauthorized, MessageResponse{Message: msgUnauthorized})
		case access.Forbidden:
			return c.JSON(http.StatusForbidden, MessageResponse{Message: msgForbidden})
		default:
			return next(c)
		}
	}
}

// resolveUser returns the session user of c, or nil for an anonymous
// request. The result is cached on c.
func (s *Server) resolveUser(c echo.Context) (*auth.User, error) {
	if u, ok := c.Get(ctxUser).(*auth.User); ok {
		return u, nil
	}

	user, session, err := s.deps.Sessions.CurrentUser(c.Request().Context(), s.sessionToken(c))
	if err != nil {
		return nil, err
	}
	if user != nil {
		c.Set(ctxUser, user)
		c.Set(ctxSession, session)
		req := c.Request()
		c.SetRequest(req.WithContext(access.WithUser(req.Context(), user)))
	}
	return user, nil
}
