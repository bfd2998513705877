package mailing

import (
	"fmt"
	"os"
)

// DefaultInviteHTML is the body used when no template file is configured.
const DefaultInviteHTML = `<p>Hello,</p>` +
	`<p>You have been invited to create a user on FlowDose.</p>` +
	`<p>Click the link below to accept the invite and set your password:</p>` +
	`<p><a href="{{ accept_url }}">Accept Invite</a></p>` +
	`<p>If you did not expect this invitation, you can ignore this email.</p>`

// InviteContent is the rendered subject and body of one invite email.
type InviteContent struct {
	Subject string
	HTML    string
}

// InviteData is the template context for an invite email.
type InviteData struct {
	InviteID  string
	Email     string
	AcceptURL string
}

func (d InviteData) vars() map[string]interface{} {
	return map[string]interface{}{
		"invite_id":  d.InviteID,
		"email":      d.Email,
		"accept_url": d.AcceptURL,
	}
}

// InviteRenderer renders invite emails from a fixed body template. The subject
// is a Liquid template too, supplied per render so it can follow config.
type InviteRenderer struct {
	templates *TemplateService
	body      string
	bodyKey   string
}

// NewInviteRenderer uses body as the HTML template; an empty body selects
// DefaultInviteHTML. The template is compiled once here so syntax errors
// surface at startup.
func NewInviteRenderer(ts *TemplateService, body string) (*InviteRenderer, error) {
	if ts == nil {
		ts = NewTemplateService()
	}
	key := "invite.html"
	if body == "" {
		body = DefaultInviteHTML
		key = "invite.default.html"
	}
	if err := ts.Parse(body); err != nil {
		return nil, fmt.Errorf("invite template: %w", err)
	}
	return &InviteRenderer{templates: ts, body: body, bodyKey: key}, nil
}

// LoadInviteRenderer reads the body template from path (if set).
func LoadInviteRenderer(ts *TemplateService, path string) (*InviteRenderer, error) {
	if path == "" {
		return NewInviteRenderer(ts, "")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read invite template: %w", err)
	}
	return NewInviteRenderer(ts, string(data))
}

// Render produces the subject and HTML body for one invite.
func (r *InviteRenderer) Render(subject string, d InviteData) (*InviteContent, error) {
	vars := d.vars()
	subj, err := r.templates.Render("", subject, vars)
	if err != nil {
		return nil, err
	}
	body, err := r.templates.Render(r.bodyKey, r.body, vars)
	if err != nil {
		return nil, err
	}
	return &InviteContent{Subject: subj, HTML: body}, nil
}
