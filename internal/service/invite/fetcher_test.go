package invite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdose/invite-dispatcher/internal/domain"
)

func TestFetch_EmailSynonyms(t *testing.T) {
	ctx := context.Background()

	withUserEmail := newMemRepo()
	withUserEmail.put("inv_1", domain.RawRecord{"id": "inv_1", "user_email": "ops@example.com", "token": "tok-123"})

	withEmail := newMemRepo()
	withEmail.put("inv_1", domain.RawRecord{"id": "inv_1", "email": "ops@example.com", "token": "tok-123"})

	a, err := NewFetcher(withUserEmail, DefaultFieldSynonyms(), nil).Fetch(ctx, "inv_1")
	require.NoError(t, err)
	b, err := NewFetcher(withEmail, DefaultFieldSynonyms(), nil).Fetch(ctx, "inv_1")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, &domain.InviteRecord{ID: "inv_1", EmailAddress: "ops@example.com", AcceptanceToken: "tok-123"}, a)
}

func TestFetch_PrefersFirstSynonym(t *testing.T) {
	repo := newMemRepo()
	repo.put("inv_1", domain.RawRecord{"user_email": "first@example.com", "email": "second@example.com", "token": "t"})

	rec, err := NewFetcher(repo, DefaultFieldSynonyms(), nil).Fetch(context.Background(), "inv_1")
	require.NoError(t, err)
	assert.Equal(t, "first@example.com", rec.EmailAddress)
	assert.Equal(t, "inv_1", rec.ID, "id falls back to the requested id")
}

func TestFetch_EmptyPreferredFallsThrough(t *testing.T) {
	repo := newMemRepo()
	repo.put("inv_1", domain.RawRecord{"user_email": "", "email": "second@example.com", "token": "t"})

	rec, err := NewFetcher(repo, DefaultFieldSynonyms(), nil).Fetch(context.Background(), "inv_1")
	require.NoError(t, err)
	assert.Equal(t, "second@example.com", rec.EmailAddress)
}

func TestFetch_MissingFieldsListsPresentNames(t *testing.T) {
	repo := newMemRepo()
	repo.put("inv_1", domain.RawRecord{"id": "inv_1", "mail": "x@example.com", "token": "t", "accepted": false})

	_, err := NewFetcher(repo, DefaultFieldSynonyms(), nil).Fetch(context.Background(), "inv_1")
	require.ErrorIs(t, err, ErrMissingFields)

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, []string{"accepted", "id", "mail", "token"}, f.Fields)
	assert.Equal(t, "inv_1", f.InviteID)
	assert.Contains(t, f.Detail, "email(user_email|email)")
	assert.NotContains(t, f.Detail, "token(")
}

func TestFetch_MissingToken(t *testing.T) {
	repo := newMemRepo()
	repo.put("inv_1", domain.RawRecord{"email": "x@example.com", "token": nil})

	_, err := NewFetcher(repo, DefaultFieldSynonyms(), nil).Fetch(context.Background(), "inv_1")
	require.ErrorIs(t, err, ErrMissingFields)
	f, _ := AsFailure(err)
	assert.Contains(t, f.Detail, "token(token)")
	assert.Equal(t, []string{"email", "token"}, f.Fields)
}

func TestFetch_NotFound(t *testing.T) {
	_, err := NewFetcher(newMemRepo(), DefaultFieldSynonyms(), nil).Fetch(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	f, _ := AsFailure(err)
	assert.Equal(t, "missing", f.InviteID)
	assert.Equal(t, StageResolved, f.Stage)
}

func TestFetch_QueryError(t *testing.T) {
	repo := newMemRepo()
	boom := errors.New("connection refused")
	repo.err = boom

	_, err := NewFetcher(repo, DefaultFieldSynonyms(), nil).Fetch(context.Background(), "inv_1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, boom)
}

func TestFetch_MultipleRowsWarns(t *testing.T) {
	repo := newMemRepo()
	repo.put("inv_1", domain.RawRecord{"email": "a@example.com", "token": "t1"})
	repo.put("inv_1", domain.RawRecord{"email": "b@example.com", "token": "t2"})
	log := &memLogger{}

	rec, err := NewFetcher(repo, DefaultFieldSynonyms(), log).Fetch(context.Background(), "inv_1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", rec.EmailAddress)

	_, ok := log.find("WARN", "more than one record")
	assert.True(t, ok)
}

func TestReconcile_CustomSynonyms(t *testing.T) {
	fields := FieldSynonyms{Email: []string{"invitee_address"}, Token: []string{"accept_token", "token"}}
	rec, err := Reconcile(domain.RawRecord{"invitee_address": "z@example.com", "token": "legacy"}, fields)
	require.NoError(t, err)
	assert.Equal(t, "z@example.com", rec.EmailAddress)
	assert.Equal(t, "legacy", rec.AcceptanceToken)
}

func TestReconcile_ByteValues(t *testing.T) {
	rec, err := Reconcile(domain.RawRecord{"email": []byte("bytes@example.com"), "token": []byte("tok")}, DefaultFieldSynonyms())
	require.NoError(t, err)
	assert.Equal(t, "bytes@example.com", rec.EmailAddress)
	assert.Equal(t, "tok", rec.AcceptanceToken)
}
