package esp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/flowdose/invite-dispatcher/internal/domain"
)

// ErrMissingAPIKey is returned by Send when the key source yields nothing.
var ErrMissingAPIKey = errors.New("resend api key not set")

// HTTPDoer is the interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResendSender sends emails through the Resend HTTP API. The API key is
// fetched from keySource on every Send so rotated keys apply immediately.
type ResendSender struct {
	baseURL   string
	keySource func() string
	client    HTTPDoer
}

// NewResendSender creates a Resend sender. A nil client means a plain
// http.Client with the given timeout.
func NewResendSender(baseURL string, keySource func() string, client HTTPDoer, timeout time.Duration) *ResendSender {
	if client == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &ResendSender{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keySource: keySource,
		client:    client,
	}
}

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type resendRequest struct {
	From    string      `json:"from"`
	To      []string    `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html"`
	Tags    []resendTag `json:"tags,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// APIError is a non-2xx reply from Resend.
type APIError struct {
	Status  int
	Name    string
	Message string
}

func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("resend: %d %s: %s", e.Status, e.Name, e.Message)
	}
	return fmt.Sprintf("resend: %d: %s", e.Status, e.Message)
}

// Send delivers a single email through Resend.
func (s *ResendSender) Send(ctx context.Context, msg *domain.NotificationRequest) (*domain.SendResult, error) {
	key := ""
	if s.keySource != nil {
		key = s.keySource()
	}
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	payload := resendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.BodyHTML,
	}
	names := make([]string, 0, len(msg.Tags))
	for name := range msg.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		payload.Tags = append(payload.Tags, resendTag{Name: name, Value: msg.Tags[name]})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal resend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resend request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read resend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var re resendError
		if json.Unmarshal(raw, &re) == nil && re.Message != "" {
			apiErr.Name = re.Name
			apiErr.Message = re.Message
		}
		return nil, apiErr
	}

	var out resendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode resend response: %w", err)
	}

	return &domain.SendResult{
		MessageID: out.ID,
		ESPType:   domain.ESPResend,
		SentAt:    time.Now(),
	}, nil
}
