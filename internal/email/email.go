// Package email renders and sends account emails over SMTP or SendGrid.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

// Message is one outgoing email with a plain text and an HTML body.
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer renders the account emails and hands them to a Sender.
type Mailer struct {
	sender  Sender
	appName string
	appURL  string
}

func NewMailer(sender Sender, appName, appURL string) *Mailer {
	if appName == "" {
		appName = "TaskSync"
	}
	return &Mailer{sender: sender, appName: appName, appURL: strings.TrimRight(appURL, "/")}
}

type VerificationData struct {
	AppName         string
	UserName        string
	VerificationURL string
}

type PasswordResetData struct {
	AppName  string
	UserName string
	ResetURL string
}

// SendVerificationEmail sends an email verification email
func (m *Mailer) SendVerificationEmail(ctx context.Context, to, userName, token string) error {
	data := VerificationData{
		AppName:         m.appName,
		UserName:        displayName(userName, to),
		VerificationURL: m.link("/verify-email", token),
	}

	html, err := renderTemplate(verificationEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render verification template: %w", err)
	}
	text := fmt.Sprintf("Welcome to %s, %s!\n\nVerify your email address by opening this link:\n%s\n\nThe link expires in 24 hours.",
		data.AppName, data.UserName, data.VerificationURL)

	return m.sender.Send(ctx, Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Verify your %s account", m.appName),
		Text:    text,
		HTML:    html,
	})
}

// SendPasswordResetEmail sends a password reset email
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, userName, token string) error {
	data := PasswordResetData{
		AppName:  m.appName,
		UserName: displayName(userName, to),
		ResetURL: m.link("/reset-password", token),
	}

	html, err := renderTemplate(passwordResetEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render password reset template: %w", err)
	}
	text := fmt.Sprintf("Hi %s,\n\nReset your %s password by opening this link:\n%s\n\nThe link expires in 1 hour. If you did not ask for a reset, ignore this email.",
		data.UserName, data.AppName, data.ResetURL)

	return m.sender.Send(ctx, Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Reset your %s password", m.appName),
		Text:    text,
		HTML:    html,
	})
}

func (m *Mailer) link(path, token string) string {
	return m.appURL + path + "?token=" + url.QueryEscape(token)
}

func displayName(name, address string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return address
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const verificationEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Verify your {{.AppName}} account</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #e49e9e; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #e49e9e; color: white; text-decoration: none; border-radius: 8px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #b35c5c; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Welcome, {{.UserName}}!</h2>

    <p>Your account has been created. Verify your email address before signing in.</p>

    <p>
        <a href="{{.VerificationURL}}" class="button">Verify Email Address</a>
    </p>

    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.VerificationURL}}</p>

    <p>This verification link will expire in 24 hours.</p>

    <div class="footer">
        <p>If you didn't create an account with {{.AppName}}, you can safely ignore this email.</p>
    </div>
</body>
</html>`

const passwordResetEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Reset your {{.AppName}} password</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #e49e9e; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #e49e9e; color: white; text-decoration: none; border-radius: 8px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #b35c5c; }
        .warning { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Password Reset Request</h2>

    <p>Hi {{.UserName}},</p>

    <p>We received a request to reset your password. Click the button below to choose a new one:</p>

    <p>
        <a href="{{.ResetURL}}" class="button">Reset Password</a>
    </p>

    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.ResetURL}}</p>

    <div class="warning">
        <strong>Important:</strong> This reset link will expire in 1 hour.
    </div>

    <div class="footer">
        <p>If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.</p>
    </div>
</body>
</html>`
