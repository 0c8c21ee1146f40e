// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/doorman-auth/doorman/pkg/errutil"
)

// Codes answered with 400 and the error's own message.
var badRequestCodes = map[string]bool{
	"REQUEST_INVALID":       true,
	"USER_INVALID_USERNAME": true,
	"USER_INVALID_EMAIL":    true,
	"AUTH_EMPTY_PASSWORD":   true,
}

// handleError is the echo HTTPErrorHandler. Client messages are fixed
// strings; error detail goes to the log only.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := s.classify(err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(c.Request().Context(), s.logger, "request failed", err)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, body)
	}
	if werr != nil {
		s.logger.WarnContext(c.Request().Context(), "write error response", "error", werr)
	}
}

func (s *Server) classify(err error) (int, MessageResponse) {
	code := errutil.Code(err)
	var he *echo.HTTPError

	switch {
	case code == "REQUEST_INVALID" && errors.As(err, &he):
		return http.StatusBadRequest, MessageResponse{Message: "Invalid request body"}
	case badRequestCodes[code]:
		return http.StatusBadRequest, MessageResponse{Message: err.Error()}
	case errors.As(err, &he):
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, MessageResponse{Message: msg}
	default:
		return http.StatusInternalServerError, MessageResponse{Message: msgInternal}
	}
}
