// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package email

import (
	"bytes"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"

	"github.com/samber/oops"
)

// Subjects of the auth emails.
const (
	MagicLinkSubject     = "Your Magic Login Link"
	PasswordResetSubject = "Reset Your Password"
)

var magicLinkHTML = htmltemplate.Must(htmltemplate.New("magic_link").Parse(`<div>
  <h1>Welcome back!</h1>
  <p>Click the button below to login to your account:</p>
  <a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background-color: #0070f3; color: white; text-decoration: none; border-radius: 5px;">Login to Your Account</a>
  <p style="margin-top: 24px; color: #666;">This link expires in {{.Expiry}}. If you didn't request this login link, you can safely ignore this email.</p>
</div>`))

var magicLinkText = texttemplate.Must(texttemplate.New("magic_link").Parse(
	"Click this link to login: {{.Link}}\n\nThis link expires in {{.Expiry}}.\n"))

var resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(`<div>
  <h1>Reset your password</h1>
  <p>Click the button below to choose a new password:</p>
  <a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background-color: #0070f3; color: white; text-decoration: none; border-radius: 5px;">Reset Password</a>
  <p style="margin-top: 24px; color: #666;">This link expires in {{.Expiry}}. If you didn't request a password reset, you can safely ignore this email.</p>
</div>`))

var resetText = texttemplate.Must(texttemplate.New("reset").Parse(
	"Reset your password: {{.Link}}\n\nThis link expires in {{.Expiry}}.\n"))

type linkData struct {
	Link   string
	Expiry string
}

// VerifyURL builds the client verification link for token. A non-empty
// linkType is sent as the type parameter.
func VerifyURL(publicURL, verifyPath, token, linkType string) (string, error) {
	base, err := url.Parse(publicURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", oops.Code("EMAIL_LINK_INVALID").
			With("public_url", publicURL).
			Errorf("public URL must be absolute")
	}
	u := base.JoinPath(verifyPath)
	q := url.Values{}
	q.Set("token", token)
	if linkType != "" {
		q.Set("type", linkType)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// MagicLinkMessage renders the magic-link email for link.
func MagicLinkMessage(to, link, expiry string) (Message, error) {
	return render(to, MagicLinkSubject, magicLinkText, magicLinkHTML, linkData{Link: link, Expiry: expiry})
}

// PasswordResetMessage renders the password-reset email for link.
func PasswordResetMessage(to, link, expiry string) (Message, error) {
	return render(to, PasswordResetSubject, resetText, resetHTML, linkData{Link: link, Expiry: expiry})
}

func render(to, subject string, text *texttemplate.Template, html *htmltemplate.Template, data linkData) (Message, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return Message{}, oops.Code("EMAIL_RENDER_FAILED").With("template", text.Name()).Wrap(err)
	}
	if err := html.Execute(&hb, data); err != nil {
		return Message{}, oops.Code("EMAIL_RENDER_FAILED").With("template", html.Name()).Wrap(err)
	}
	return Message{To: to, Subject: subject, TextBody: tb.String(), HTMLBody: hb.String()}, nil
}
