package mailing

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteRenderer_Default(t *testing.T) {
	r, err := NewInviteRenderer(nil, "")
	require.NoError(t, err)

	content, err := r.Render("You've been invited to join FlowDose", InviteData{
		InviteID:  "inv_1",
		Email:     "ops@example.com",
		AcceptURL: "https://admin.flowdose.xyz/invite?token=tok-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "You've been invited to join FlowDose", content.Subject)
	assert.Contains(t, content.HTML, `<a href="https://admin.flowdose.xyz/invite?token=tok-1">Accept Invite</a>`)
	assert.Contains(t, content.HTML, "set your password")
}

func TestInviteRenderer_CustomTemplateAndSubject(t *testing.T) {
	r, err := NewInviteRenderer(NewTemplateService(), `<p>{{ email | email_domain }}</p><a href="{{ accept_url }}">{{ name | default: "Join" }}</a>`)
	require.NoError(t, err)

	content, err := r.Render("Invite for {{ email }}", InviteData{Email: "ops@example.com", AcceptURL: "https://x.test/i?token=t"})
	require.NoError(t, err)
	assert.Equal(t, "Invite for ops@example.com", content.Subject)
	assert.Equal(t, `<p>example.com</p><a href="https://x.test/i?token=t">Join</a>`, content.HTML)
}

func TestInviteRenderer_SyntaxErrorAtConstruction(t *testing.T) {
	_, err := NewInviteRenderer(nil, "{% if accept_url %}unterminated")
	assert.Error(t, err)
}

func TestLoadInviteRenderer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invite.html")
	require.NoError(t, os.WriteFile(path, []byte(`<a href="{{ accept_url }}">go</a>`), 0644))

	r, err := LoadInviteRenderer(nil, path)
	require.NoError(t, err)
	content, err := r.Render("s", InviteData{AcceptURL: "https://x.test"})
	require.NoError(t, err)
	assert.Equal(t, `<a href="https://x.test">go</a>`, content.HTML)

	_, err = LoadInviteRenderer(nil, filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)

	r, err = LoadInviteRenderer(nil, "")
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestTemplateService_ConcurrentRender(t *testing.T) {
	ts := NewTemplateService()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := ts.Render("greeting", "Hi {{ email | urlencode }}", map[string]interface{}{"email": "a+b@example.com"})
			assert.NoError(t, err)
			assert.Equal(t, "Hi a%2Bb%40example.com", out)
		}()
	}
	wg.Wait()
}
