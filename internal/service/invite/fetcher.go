package invite

import (
	"context"
	"sort"
	"strings"

	"github.com/flowdose/invite-dispatcher/internal/domain"
)

// FieldSynonyms lists, per logical invite field, the record keys that have
// carried it across upstream schema versions. Earlier keys win.
type FieldSynonyms struct {
	Email []string
	Token []string
}

// DefaultFieldSynonyms matches every invite schema seen so far.
func DefaultFieldSynonyms() FieldSynonyms {
	return FieldSynonyms{
		Email: []string{"user_email", "email"},
		Token: []string{"token"},
	}
}

// Fetcher looks up an invite by id and reconciles it into a domain.InviteRecord.
type Fetcher struct {
	repo   Repository
	fields FieldSynonyms
	log    Logger
}

// NewFetcher creates a fetcher over repo.
func NewFetcher(repo Repository, fields FieldSynonyms, log Logger) *Fetcher {
	return &Fetcher{repo: repo, fields: fields, log: log}
}

// Fetch returns the reconciled invite record for id.
func (f *Fetcher) Fetch(ctx context.Context, id string) (*domain.InviteRecord, error) {
	records, err := f.repo.ListInvites(ctx, ListFilter{ID: id})
	if err != nil {
		return nil, &Failure{Stage: StageResolved, Kind: ErrNotFound, InviteID: id, Detail: "query failed", Cause: err}
	}
	if len(records) == 0 {
		return nil, &Failure{Stage: StageResolved, Kind: ErrNotFound, InviteID: id}
	}
	if len(records) > 1 && f.log != nil {
		f.log.Warn("invite query returned more than one record, using the first",
			"invite_id", id, "count", len(records))
	}

	rec, err := Reconcile(records[0], f.fields)
	if err != nil {
		if fl, ok := AsFailure(err); ok {
			fl.InviteID = id
		}
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec, nil
}

// Reconcile resolves field synonyms on raw into a canonical record. A field is
// present only when it holds a non-empty string.
func Reconcile(raw domain.RawRecord, fields FieldSynonyms) (*domain.InviteRecord, error) {
	email := pick(raw, fields.Email)
	token := pick(raw, fields.Token)

	if email == "" || token == "" {
		var missing []string
		if email == "" {
			missing = append(missing, "email("+strings.Join(fields.Email, "|")+")")
		}
		if token == "" {
			missing = append(missing, "token("+strings.Join(fields.Token, "|")+")")
		}
		present := raw.Keys()
		sort.Strings(present)
		return nil, &Failure{
			Stage:  StageResolved,
			Kind:   ErrMissingFields,
			Detail: "missing " + strings.Join(missing, ", "),
			Fields: present,
		}
	}

	id, _ := raw["id"].(string)
	return &domain.InviteRecord{
		ID:              id,
		EmailAddress:    email,
		AcceptanceToken: token,
	}, nil
}

func pick(raw domain.RawRecord, keys []string) string {
	for _, k := range keys {
		var s string
		switch v := raw[k].(type) {
		case string:
			s = v
		case []byte:
			s = string(v)
		case *string:
			if v != nil {
				s = *v
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
