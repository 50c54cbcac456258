package handler

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/friendlychat/internal/auth"
	"github.com/johndosdos/friendlychat/internal/database"
	"github.com/johndosdos/friendlychat/internal/model"
	"github.com/johndosdos/friendlychat/internal/submission"
	ws "github.com/johndosdos/friendlychat/internal/websocket"
)

var errNoRows = errors.New("no rows in result set")

type fakeAccounts struct {
	mu        sync.Mutex
	users     map[uuid.UUID]database.User
	passwords map[uuid.UUID]string
	tokens    map[string]uuid.UUID
	devices   map[string]uuid.UUID
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		users:     make(map[uuid.UUID]database.User),
		passwords: make(map[uuid.UUID]string),
		tokens:    make(map[string]uuid.UUID),
		devices:   make(map[string]uuid.UUID),
	}
}

func (f *fakeAccounts) CreateRefreshToken(_ context.Context, arg database.CreateRefreshTokenParams) (database.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[arg.Token] = arg.UserID.Bytes
	return database.RefreshToken{Token: arg.Token, UserID: arg.UserID}, nil
}

func (f *fakeAccounts) GetUserFromRefreshTok(_ context.Context, token string) (pgtype.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return pgtype.UUID{}, errNoRows
	}
	return pgtype.UUID{Bytes: id, Valid: true}, nil
}

func (f *fakeAccounts) RevokeRefreshToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	return nil
}

func (f *fakeAccounts) GetUserById(_ context.Context, userID pgtype.UUID) (database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID.Bytes]
	if !ok {
		return database.User{}, errNoRows
	}
	return u, nil
}

func (f *fakeAccounts) GetUserWithPasswordByEmail(_ context.Context, email string) (database.GetUserWithPasswordByEmailRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.users {
		if u.Email == email {
			hash, ok := f.passwords[id]
			if !ok {
				break
			}
			return database.GetUserWithPasswordByEmailRow{
				UserID: u.UserID, Username: u.Username, Email: u.Email, HashedPassword: hash,
			}, nil
		}
	}
	return database.GetUserWithPasswordByEmailRow{}, errNoRows
}

func (f *fakeAccounts) CreateUser(_ context.Context, arg database.CreateUserParams) (database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == arg.Email {
			return database.User{}, errors.New("duplicate key value violates unique constraint")
		}
	}
	u := database.User{UserID: arg.UserID, Username: arg.Username, Email: arg.Email}
	f.users[arg.UserID.Bytes] = u
	return u, nil
}

func (f *fakeAccounts) CreatePassword(_ context.Context, arg database.CreatePasswordParams) (database.Password, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords[arg.UserID.Bytes] = arg.HashedPassword
	return database.Password{UserID: arg.UserID, HashedPassword: arg.HashedPassword}, nil
}

func (f *fakeAccounts) UpsertGoogleUser(_ context.Context, arg database.UpsertGoogleUserParams) (database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.users {
		if u.Email == arg.Email {
			u.GoogleSub = arg.GoogleSub
			f.users[id] = u
			return u, nil
		}
	}
	u := database.User{UserID: arg.UserID, Username: arg.Username, Email: arg.Email, GoogleSub: arg.GoogleSub}
	f.users[arg.UserID.Bytes] = u
	return u, nil
}

func (f *fakeAccounts) UpsertDeviceToken(_ context.Context, arg database.UpsertDeviceTokenParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices[arg.Token] = arg.UserID.Bytes
	return nil
}

func (f *fakeAccounts) ListDeviceTokensExcept(context.Context, pgtype.UUID) ([]database.DeviceToken, error) {
	return nil, nil
}

func (f *fakeAccounts) DeleteDeviceToken(context.Context, string) error { return nil }

type fakeSignOuter struct {
	users []uuid.UUID
}

func (s *fakeSignOuter) SignOut(_ context.Context, userID uuid.UUID) {
	s.users = append(s.users, userID)
}

var keys = auth.Keys{Secret: "handler-secret", Issuer: "test"}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return req
}

func TestSignupThenLogin(t *testing.T) {
	db := newFakeAccounts()

	rec := httptest.NewRecorder()
	SubmitSignupForm(db).ServeHTTP(rec, postForm("/account/signup", url.Values{
		"username":         {"Ana"},
		"email":            {"ana@example.com"},
		"password":         {"hunter22"},
		"confirm_password": {"hunter22"},
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/account/login", rec.Header().Get("HX-Redirect"))

	tests := []struct {
		name         string
		password     string
		wantRedirect string
		wantBody     string
	}{
		{name: "correct_password", password: "hunter22", wantRedirect: "/"},
		{name: "wrong_password", password: "nope", wantBody: "Invalid email or password."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			SubmitLoginForm(db, keys).ServeHTTP(rec, postForm("/account/login", url.Values{
				"email":    {"ana@example.com"},
				"password": {tt.password},
			}))

			assert.Equal(t, tt.wantRedirect, rec.Header().Get("HX-Redirect"))
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
				assert.Empty(t, rec.Result().Cookies())
				return
			}
			assert.Len(t, rec.Result().Cookies(), 2)
		})
	}
}

func TestSignupValidation(t *testing.T) {
	db := newFakeAccounts()

	tests := []struct {
		name   string
		values url.Values
		want   string
	}{
		{
			name:   "mismatch",
			values: url.Values{"username": {"a"}, "email": {"a@x"}, "password": {"p1"}, "confirm_password": {"p2"}},
			want:   "Passwords do not match!",
		},
		{
			name:   "missing_fields",
			values: url.Values{"email": {"a@x"}},
			want:   "All fields are required.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			SubmitSignupForm(db).ServeHTTP(rec, postForm("/account/signup", tt.values))
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Empty(t, db.users)
		})
	}
}

func TestLogoutSignsOutPages(t *testing.T) {
	db := newFakeAccounts()
	userID := uuid.New()
	db.tokens["tok"] = userID
	hub := &fakeSignOuter{}

	req := postForm("/account/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: "tok"})
	rec := httptest.NewRecorder()

	SubmitLogoutReq(db, hub).ServeHTTP(rec, req)

	assert.Equal(t, []uuid.UUID{userID}, hub.users)
	assert.NotContains(t, db.tokens, "tok")
	assert.Equal(t, "/", rec.Header().Get("HX-Redirect"))
}

func TestRefreshToken(t *testing.T) {
	db := newFakeAccounts()
	db.tokens["live"] = uuid.New()

	tests := []struct {
		name   string
		cookie string
		want   int
	}{
		{"live", "live", http.StatusOK},
		{"unknown", "stale", http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/account/refresh", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			RefreshToken(db, keys).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

type fakeGoogle struct {
	profile auth.GoogleProfile
	err     error
}

func (g fakeGoogle) AuthURL(state string) string {
	return "https://accounts.example/auth?state=" + state
}

func (g fakeGoogle) Exchange(context.Context, string) (auth.GoogleProfile, error) {
	return g.profile, g.err
}

func TestGoogleFlow(t *testing.T) {
	db := newFakeAccounts()
	g := fakeGoogle{profile: auth.GoogleProfile{Sub: "42", Email: "bo@example.com", Name: "Bo"}}

	rec := httptest.NewRecorder()
	ServeGoogleLogin(g).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account/google", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	var state string
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookie {
			state = c.Value
		}
	}
	require.NotEmpty(t, state)
	assert.Contains(t, rec.Header().Get("Location"), "state="+state)

	t.Run("state_mismatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/account/google/callback?state=other&code=c", nil)
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: state})
		rec := httptest.NewRecorder()
		ServeGoogleCallback(g, db, keys).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("signs_in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/account/google/callback?state="+state+"&code=c", nil)
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: state})
		rec := httptest.NewRecorder()
		ServeGoogleCallback(g, db, keys).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
		assert.Len(t, db.users, 1)
		assert.Len(t, db.tokens, 1)
	})
}

type fakeMember struct {
	key   string
	user  uuid.UUID
	files []submission.Upload
	err   error
}

func (m *fakeMember) Key() string                     { return m.key }
func (m *fakeMember) UserID() uuid.UUID               { return m.user }
func (m *fakeMember) Deliver(model.ChangeBatch) bool  { return true }
func (m *fakeMember) SetUser(*model.SessionUser) bool { return true }
func (m *fakeMember) Kick()                           {}
func (m *fakeMember) SubmitImage(_ context.Context, f submission.Upload) error {
	m.files = append(m.files, f)
	return m.err
}

type fakeLookup map[string]ws.Member

func (l fakeLookup) Lookup(_ context.Context, key string) (ws.Member, bool) {
	m, ok := l[key]
	return m, ok
}

func multipartRequest(t *testing.T, sessionID, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("session_id", sessionID))

	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	if contentType != "" {
		h["Content-Type"] = []string{contentType}
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/messages/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImageUpload(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	t.Run("hands_file_to_session", func(t *testing.T) {
		m := &fakeMember{key: "s1"}
		rec := httptest.NewRecorder()
		ServeImageUpload(fakeLookup{"s1": m}).ServeHTTP(rec, multipartRequest(t, "s1", "cat.png", "image/png", png))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, m.files, 1)
		assert.Equal(t, "cat.png", m.files[0].Filename)
		assert.Equal(t, "image/png", m.files[0].ContentType)
		assert.Equal(t, png, m.files[0].Data)
	})

	t.Run("sniffs_missing_type", func(t *testing.T) {
		m := &fakeMember{key: "s1"}
		rec := httptest.NewRecorder()
		ServeImageUpload(fakeLookup{"s1": m}).ServeHTTP(rec, multipartRequest(t, "s1", "cat", "", png))

		require.Len(t, m.files, 1)
		assert.Equal(t, "image/png", m.files[0].ContentType)
	})

	owner, other := uuid.New(), uuid.New()
	asUser := func(req *http.Request, userID uuid.UUID) *http.Request {
		return req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, userID))
	}

	callers := []struct {
		name    string
		session uuid.UUID
		caller  uuid.UUID
		want    int
	}{
		{name: "owner", session: owner, caller: owner, want: http.StatusAccepted},
		{name: "other_user", session: owner, caller: other, want: http.StatusForbidden},
		{name: "signed_out_caller", session: owner, want: http.StatusForbidden},
		{name: "signed_in_caller_signed_out_page", caller: other, want: http.StatusForbidden},
	}

	for _, tt := range callers {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMember{key: "s1", user: tt.session}
			req := multipartRequest(t, "s1", "cat.png", "image/png", png)
			if tt.caller != uuid.Nil {
				req = asUser(req, tt.caller)
			}
			rec := httptest.NewRecorder()
			ServeImageUpload(fakeLookup{"s1": m}).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want != http.StatusAccepted {
				assert.Empty(t, m.files)
			}
		})
	}

	t.Run("unknown_session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ServeImageUpload(fakeLookup{}).ServeHTTP(rec, multipartRequest(t, "nope", "cat.png", "image/png", png))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("session_closed", func(t *testing.T) {
		m := &fakeMember{key: "s1", err: context.Canceled}
		rec := httptest.NewRecorder()
		ServeImageUpload(fakeLookup{"s1": m}).ServeHTTP(rec, multipartRequest(t, "s1", "cat.png", "image/png", png))
		assert.Equal(t, http.StatusGone, rec.Code)
	})
}

func TestPushToken(t *testing.T) {
	db := newFakeAccounts()
	userID := uuid.New()

	tests := []struct {
		name   string
		user   uuid.UUID
		token  string
		want   int
		stored bool
	}{
		{name: "stores", user: userID, token: "device-1", want: http.StatusNoContent, stored: true},
		{name: "signed_out", token: "device-2", want: http.StatusUnauthorized},
		{name: "missing_token", user: userID, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := postForm("/push/token", url.Values{"token": {tt.token}})
			if tt.user != uuid.Nil {
				req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, tt.user))
			}
			rec := httptest.NewRecorder()
			ServePushToken(db).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.stored {
				assert.Equal(t, userID, db.devices[tt.token])
			}
		})
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	ServeHealthz(pinger{}, pinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ServeHealthz(pinger{}, pinger{err: errors.New("down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServeChat(t *testing.T) {
	rec := httptest.NewRecorder()
	ServeChat().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ws-connect="/ws"`)
	assert.Contains(t, rec.Body.String(), "0/100")
}
