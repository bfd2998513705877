package domain

import "time"

// ESPType identifies the email service provider used for sending.
type ESPType string

const (
	ESPResend ESPType = "resend"
	ESPSES    ESPType = "ses"
)

// NotificationRequest is the fully-rendered transactional email handed to a
// provider. It is built fresh for every dispatch and never stored.
type NotificationRequest struct {
	To       string            `json:"to"`
	From     string            `json:"from"`
	Subject  string            `json:"subject"`
	BodyHTML string            `json:"html"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// SendResult is returned by a provider after it accepted a message.
type SendResult struct {
	MessageID string    `json:"message_id"`
	ESPType   ESPType   `json:"esp_type"`
	SentAt    time.Time `json:"sent_at"`
}
