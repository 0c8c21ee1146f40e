// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"

	"github.com/doorman-auth/doorman/internal/auth"
	"github.com/doorman-auth/doorman/internal/email"
	"github.com/doorman-auth/doorman/internal/observability"
	"github.com/doorman-auth/doorman/pkg/errutil"
)

// Value of the verify endpoint's type parameter for reset links.
const verifyTypeReset = "reset-password"

// bindAndValidate decodes the JSON body into dst and validates it.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return oops.Code("REQUEST_INVALID").Wrap(err)
	}
	return c.Validate(dst)
}

func (s *Server) establish(c echo.Context, user *auth.User) error {
	req := c.Request()
	_, token, err := s.deps.Sessions.Establish(req.Context(), user, auth.ClientInfo{
		UserAgent: req.UserAgent(),
		IPAddress: c.RealIP(),
	})
	if err != nil {
		return err
	}
	s.setSessionCookie(c, token)
	return nil
}

func (s *Server) register(c echo.Context) error {
	var in registerRequest
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}

	user, err := s.deps.Accounts.Register(c.Request().Context(), auth.RegisterInput{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
	})
	switch {
	case errors.Is(err, auth.ErrUsernameTaken):
		return c.String(http.StatusBadRequest, msgUsernameTaken)
	case errors.Is(err, auth.ErrEmailTaken):
		return c.JSON(http.StatusBadRequest, MessageResponse{Message: msgEmailTaken})
	case err != nil:
		return err
	}

	if err := s.establish(c, user); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newUserResponse(user))
}

func (s *Server) login(c echo.Context) error {
	var in loginRequest
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}

	user, ok, err := s.authenticate(c.Request().Context(), auth.PasswordMethod{Username: in.Username, Password: in.Password})
	if err != nil {
		return err
	}
	if !ok {
		return c.NoContent(http.StatusUnauthorized)
	}

	if err := s.establish(c, user); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResponse(user))
}

// authenticate runs m and records the outcome. ok is false for a rejected
// proof; err is set only when a dependency failed.
func (s *Server) authenticate(ctx context.Context, m auth.Method) (*auth.User, bool, error) {
	user, err := s.deps.Authenticator.Authenticate(ctx, m)
	if f, rejected := auth.AsFailure(err); rejected {
		s.metrics.AuthAttempt(m.Name(), observability.OutcomeRejected)
		s.logger.InfoContext(ctx, "authentication rejected", "method", f.Method, "reason", string(f.Reason))
		return nil, false, nil
	}
	if err != nil {
		s.metrics.AuthAttempt(m.Name(), observability.OutcomeError)
		return nil, false, err
	}
	s.metrics.AuthAttempt(m.Name(), observability.OutcomeSuccess)
	return user, true, nil
}

func (s *Server) requestMagicLink(c echo.Context) error {
	var in emailRequest
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, tok, err := s.deps.Accounts.RequestMagicLink(ctx, in.Email)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "magic link request failed", err)
		return c.JSON(http.StatusInternalServerError, MessageResponse{Message: msgMagicLinkFailed})
	}
	s.metrics.TokenIssued(string(tok.Kind))

	msg, err := s.linkMessage(c, tok, "", user.Email, email.MagicLinkMessage)
	if err == nil {
		err = s.deps.Mailer.Send(ctx, msg)
	}
	if err != nil {
		s.metrics.EmailFailed(string(tok.Kind))
		errutil.LogErrorContext(ctx, s.logger, "magic link email failed", err)
		return c.JSON(http.StatusInternalServerError, MessageResponse{Message: msgMagicLinkEmail})
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgMagicLinkSent})
}

func (s *Server) verify(c echo.Context) error {
	token := c.QueryParam("token")
	ctx := c.Request().Context()

	if c.QueryParam("type") == verifyTypeReset {
		_, err := s.deps.Tokens.ValidatePasswordReset(ctx, token)
		if errors.Is(err, auth.ErrInvalidToken) {
			return c.JSON(http.StatusBadRequest, MessageResponse{Message: msgInvalidToken})
		}
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, MessageResponse{Message: msgTokenValid, Token: token})
	}

	user, ok, err := s.authenticate(ctx, auth.MagicLinkMethod{Token: token})
	if err != nil {
		return err
	}
	if !ok {
		return c.JSON(http.StatusBadRequest, MessageResponse{Message: msgInvalidToken})
	}
	s.metrics.TokenConsumed(string(auth.TokenMagicLink))

	if err := s.establish(c, user); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResponse(user))
}

func (s *Server) forgotPassword(c echo.Context) error {
	var in emailRequest
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, tok, err := s.deps.Accounts.RequestPasswordReset(ctx, in.Email)
	if err != nil {
		return err
	}
	if tok != nil {
		s.metrics.TokenIssued(string(tok.Kind))
		msg, err := s.linkMessage(c, tok, verifyTypeReset, user.Email, email.PasswordResetMessage)
		if err == nil {
			err = s.deps.Mailer.Send(ctx, msg)
		}
		if err != nil {
			// Delivery failures must not reveal that the account exists.
			s.metrics.EmailFailed(string(tok.Kind))
			errutil.LogErrorContext(ctx, s.logger, "password reset email failed", err)
		}
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgForgotPassword})
}

func (s *Server) resetPassword(c echo.Context) error {
	var in resetRequest
	if err := bindAndValidate(c, &in); err != nil {
		return err
	}

	err := s.deps.Accounts.ResetPassword(c.Request().Context(), in.Token, in.Password)
	if errors.Is(err, auth.ErrInvalidToken) {
		return c.JSON(http.StatusBadRequest, MessageResponse{Message: msgInvalidResetToken})
	}
	if err != nil {
		return err
	}
	s.metrics.TokenConsumed(string(auth.TokenPasswordReset))
	return c.JSON(http.StatusOK, MessageResponse{Message: msgPasswordReset})
}

func (s *Server) logout(c echo.Context) error {
	if err := s.deps.Sessions.Destroy(c.Request().Context(), s.sessionToken(c)); err != nil {
		return err
	}
	s.clearSessionCookie(c)
	return c.NoContent(http.StatusOK)
}

func (s *Server) currentUser(c echo.Context) error {
	user, err := s.resolveUser(c)
	if err != nil {
		return err
	}
	if user == nil {
		return c.NoContent(http.StatusUnauthorized)
	}
	return c.JSON(http.StatusOK, newUserResponse(user))
}

func (s *Server) adminStats(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := s.deps.Accounts.Counts(ctx)
	if err != nil {
		return err
	}
	active, err := s.deps.Sessions.ActiveSessions(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatsResponse{
		Message:        msgAdminStats,
		Users:          counts.Users,
		Admins:         counts.Admins,
		ActiveSessions: active,
	})
}

type renderFunc func(to, link, expiry string) (email.Message, error)

// linkMessage renders the email carrying tok as a verification link.
func (s *Server) linkMessage(c echo.Context, tok *auth.Token, linkType, to string, render renderFunc) (email.Message, error) {
	origin := s.opts.PublicURL
	if origin == "" {
		origin = c.Scheme() + "://" + c.Request().Host
	}
	link, err := email.VerifyURL(origin, s.opts.VerifyPath, tok.Value, linkType)
	if err != nil {
		return email.Message{}, err
	}
	return render(to, link, humanDuration(tok.Kind))
}

func humanDuration(kind auth.TokenKind) string {
	if kind == auth.TokenPasswordReset {
		return "1 hour"
	}
	return "15 minutes"
}
