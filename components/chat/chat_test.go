package chat

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/friendlychat/internal/apperror"
	"github.com/johndosdos/friendlychat/internal/feed"
	"github.com/johndosdos/friendlychat/internal/model"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestPage(t *testing.T) {
	html := render(t, Page(100))

	assert.Contains(t, html, `ws-connect="/ws"`)
	assert.Contains(t, html, `id="messages"`)
	assert.Contains(t, html, `name="content"`)
	assert.Contains(t, html, `id="submit" type="submit" hx-swap-oob="outerHTML" disabled`)
	assert.Contains(t, html, `0/100`)
	assert.Contains(t, html, `name="session_id"`)
	assert.Contains(t, html, `accept="image/*"`)
	assert.Contains(t, html, `id="sign-in"`)
	assert.Contains(t, html, `<textarea id="message" name="content"`)
	assert.NotContains(t, html, `placeholder="Message..." ws-send hx-trigger="input" hx-vals='{"type":"draft"}' hx-swap-oob`)
}

func TestMessageBody(t *testing.T) {
	tests := []struct {
		name     string
		node     feed.Node
		contains []string
		excludes []string
	}{
		{
			name:     "text_with_newlines",
			node:     feed.Node{ID: "a", Name: "Ana", Text: "one\ntwo"},
			contains: []string{`id="msg-a"`, "one<br>two", "Ana"},
			excludes: []string{"<img"},
		},
		{
			name:     "text_is_escaped",
			node:     feed.Node{ID: "a", Name: "<i>x</i>", Text: "<script>alert(1)</script>"},
			contains: []string{"&lt;script&gt;", "&lt;i&gt;"},
			excludes: []string{"<script>"},
		},
		{
			name:     "image_with_cache_buster",
			node:     feed.Node{ID: "b", ImageURL: "https://www.google.com/images/spin-32.gif?a"},
			contains: []string{`<img src="https://www.google.com/images/spin-32.gif?a&amp;`},
		},
		{
			name:     "text_wins_over_image",
			node:     feed.Node{ID: "c", Text: "hi", ImageURL: "https://cdn/x.png"},
			contains: []string{"hi"},
			excludes: []string{"<img"},
		},
		{
			name:     "empty_body",
			node:     feed.Node{ID: "d"},
			contains: []string{`<div class="message"></div>`},
		},
		{
			name:     "decorated_picture",
			node:     feed.Node{ID: "e", PicURL: "https://lh3.googleusercontent.com/a/p"},
			contains: []string{`<img src="https://lh3.googleusercontent.com/a/p?sz=150" alt="">`},
		},
		{
			name:     "no_picture",
			node:     feed.Node{ID: "f", Text: "x"},
			contains: []string{`<div class="pic"></div>`},
		},
		{
			name:     "script_urls_are_dropped",
			node:     feed.Node{ID: "g", PicURL: "javascript:alert(1)", ImageURL: "javascript:alert(2)"},
			contains: []string{string(templ.FailedSanitizationURL)},
			excludes: []string{"javascript:"},
		},
		{
			name:     "picture_url_is_escaped",
			node:     feed.Node{ID: "h", PicURL: `https://cdn.example.com/a.png?x=1&y="2"`},
			contains: []string{`src="https://cdn.example.com/a.png?x=1&amp;y=&#34;2&#34;"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := render(t, Message(tt.node))
			for _, s := range tt.contains {
				assert.Contains(t, html, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, html, s)
			}
		})
	}
}

func TestPatchFragments(t *testing.T) {
	n := feed.Node{ID: "new", Text: "x", At: time.Now()}

	assert.Contains(t, render(t, Insert(n, "old")), `hx-swap-oob="beforebegin:#msg-old"`)
	assert.Contains(t, render(t, Insert(n, "")), `hx-swap-oob="beforeend:#messages"`)
	assert.Contains(t, render(t, Replace(n)), `id="msg-new" class="message-container visible" hx-swap-oob="outerHTML"`)
	assert.Equal(t, `<div id="msg-gone" hx-swap-oob="delete"></div>`, render(t, Remove("gone")))
	assert.NotContains(t, render(t, Message(n)), "hx-swap-oob")
}

func TestIdentity(t *testing.T) {
	signedOut := render(t, Identity(nil))
	assert.Contains(t, signedOut, `<div id="user-name" hidden>`)
	assert.Contains(t, signedOut, `<a id="sign-in" href="/account/google">`)

	signedIn := render(t, Identity(&model.SessionUser{DisplayName: "Ana"}))
	assert.Contains(t, signedIn, `<div id="user-name">Ana</div>`)
	assert.Contains(t, signedIn, `<div id="user-pic"><img src="/static/images/profile_placeholder.png" alt=""></div>`)
	assert.Contains(t, signedIn, `id="sign-in" href="/account/google" hidden`)
}

func TestControls(t *testing.T) {
	assert.Contains(t, render(t, SendButton(false)), "disabled")
	assert.NotContains(t, render(t, SendButton(true)), "disabled")

	short := render(t, CharCounter(42, 100))
	assert.Contains(t, short, `class="char-counter"`)
	assert.Contains(t, short, ">42/100<")
	assert.Contains(t, render(t, CharCounter(100, 100)), `class="char-counter full"`)
	assert.Contains(t, render(t, CharCounter(130, 100)), ">130/100<")

	notice := render(t, Notice(apperror.RateLimited(10)))
	assert.Contains(t, notice, "You can only send 10 messages")
	assert.Contains(t, notice, `data-timeout="2500"`)

	assert.Contains(t, render(t, ClearDraft()), `<textarea id="message"`)
	assert.Contains(t, render(t, ClearDraft()), `hx-swap-oob="outerHTML"></textarea>`)
	assert.Contains(t, render(t, PushTokenRequest()), `id="push-token" hidden data-request="`)
	assert.Equal(t,
		`<input type="hidden" id="session-id" name="session_id" value="c1&amp;2" hx-swap-oob="outerHTML">`,
		render(t, SessionID("c1&2")))
}
