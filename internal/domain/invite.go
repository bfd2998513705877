package domain

// InviteCreatedEvent is the name of the domain event emitted when an admin
// invitation is created or resent.
const InviteCreatedEvent = "invite.created"

// InviteEvent is the canonical form of an inbound invite.created delivery.
// Only the invite id is guaranteed; Name is whatever the envelope carried.
type InviteEvent struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// RawRecord is an invite record exactly as the upstream record service returned
// it, keyed by column or attribute name.
type RawRecord map[string]any

// Keys returns the field names present on the record.
func (r RawRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	return keys
}

// InviteRecord is the reconciled view of an invitation. It is read-only: nothing
// in this module writes invite records back.
type InviteRecord struct {
	ID              string `json:"id"`
	EmailAddress    string `json:"email_address"`
	AcceptanceToken string `json:"-"`
}

// RawEvent is what a transport hands to the handler: the subject or channel the
// message arrived on and its undecoded body.
type RawEvent struct {
	Name string
	Body []byte
}
