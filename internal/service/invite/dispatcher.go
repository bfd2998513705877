package invite

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/flowdose/invite-dispatcher/internal/config"
	"github.com/flowdose/invite-dispatcher/internal/domain"
	"github.com/flowdose/invite-dispatcher/internal/mailing"
	"github.com/flowdose/invite-dispatcher/internal/service/sending"
)

// Renderer produces the invite email content.
type Renderer interface {
	Render(subject string, d mailing.InviteData) (*mailing.InviteContent, error)
}

// SettingsFunc returns mail settings as of now. It is called once per dispatch.
type SettingsFunc func() config.MailSettings

// Dispatcher composes and sends the acceptance email for one invite record.
type Dispatcher struct {
	settings SettingsFunc
	renderer Renderer
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(settings SettingsFunc, renderer Renderer) *Dispatcher {
	return &Dispatcher{settings: settings, renderer: renderer}
}

// Dispatch checks settings, renders the email and calls sender exactly once.
// Configuration problems are reported before any provider call is made.
func (d *Dispatcher) Dispatch(ctx context.Context, sender sending.Sender, rec *domain.InviteRecord) (*domain.SendResult, error) {
	var s config.MailSettings
	if d.settings != nil {
		s = d.settings()
	}

	var missing []string
	if strings.TrimSpace(s.APIKey) == "" {
		missing = append(missing, "provider credential")
	}
	if strings.TrimSpace(s.From) == "" {
		missing = append(missing, "sender address")
	}
	if len(missing) > 0 {
		return nil, &Failure{Stage: StageFetched, Kind: ErrConfig, InviteID: rec.ID,
			Detail: "missing " + strings.Join(missing, " and ")}
	}

	acceptURL, err := AcceptURL(s.AcceptBaseURL, rec.AcceptanceToken)
	if err != nil {
		return nil, &Failure{Stage: StageFetched, Kind: ErrConfig, InviteID: rec.ID, Detail: "accept base url", Cause: err}
	}

	content, err := d.renderer.Render(s.Subject, mailing.InviteData{
		InviteID:  rec.ID,
		Email:     rec.EmailAddress,
		AcceptURL: acceptURL,
	})
	if err != nil {
		return nil, &Failure{Stage: StageFetched, Kind: ErrConfig, InviteID: rec.ID, Detail: "invite template", Cause: err}
	}

	req := &domain.NotificationRequest{
		To:       rec.EmailAddress,
		From:     s.From,
		Subject:  content.Subject,
		BodyHTML: content.HTML,
		Tags:     map[string]string{"invite_id": rec.ID},
	}

	res, err := sender.Send(ctx, req)
	if err != nil {
		return nil, &Failure{Stage: StageFetched, Kind: ErrSend, InviteID: rec.ID, Cause: err}
	}
	if res == nil {
		res = &domain.SendResult{}
	}
	return res, nil
}

// AcceptURL adds token as the "token" query parameter of base, keeping any
// query parameters base already carries.
func AcceptURL(base, token string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("empty base url")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q is not absolute", base)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
