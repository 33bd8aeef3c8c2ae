package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI mimics the auth endpoints closely enough to drive a Session.
type fakeAPI struct {
	mu       sync.Mutex
	access   map[string]bool
	refresh  map[string]bool
	seq      int
	role     string
	perms    []string
	status   int // forced status for /auth/login when non-zero
	refreshN atomic.Int32
	lastAuth atomic.Value
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		access:  map[string]bool{},
		refresh: map[string]bool{},
		role:    "editor",
		perms:   []string{"view_inquiries"},
	}
}

func (f *fakeAPI) issue() map[string]interface{} {
	f.seq++
	a, r := fmt.Sprintf("a%d", f.seq), fmt.Sprintf("r%d", f.seq)
	f.access[a] = true
	f.refresh[r] = true
	return map[string]interface{}{
		"token":                 a,
		"refreshToken":          r,
		"tokenExpiresAt":        time.Now().Add(7 * 24 * time.Hour),
		"refreshTokenExpiresAt": time.Now().Add(30 * 24 * time.Hour),
	}
}

func (f *fakeAPI) revokeAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = map[string]bool{}
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAPI) revokeRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh = map[string]bool{}
}

func writeEnv(w http.ResponseWriter, status int, data interface{}, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{"success": status < 300}
	if data != nil {
		body["data"] = data
	}
	if code != "" {
		body["error"] = code
		body["message"] = code
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	profile := map[string]interface{}{"id": "admin-1", "email": "a@x.com", "role": f.role, "permissions": f.perms}
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.lastAuth.Store(bearer)

	switch r.URL.Path {
	case "/auth/login":
		switch {
		case f.status != 0:
			writeEnv(w, f.status, nil, "forced")
		case body["password"] != "secret123":
			writeEnv(w, http.StatusUnauthorized, nil, "unauthorized")
		default:
			pair := f.issue()
			pair["admin"] = profile
			writeEnv(w, http.StatusOK, pair, "")
		}
	case "/auth/refresh":
		f.refreshN.Add(1)
		if !f.refresh[body["refreshToken"]] {
			writeEnv(w, http.StatusUnauthorized, nil, "unauthorized")
			return
		}
		delete(f.refresh, body["refreshToken"])
		writeEnv(w, http.StatusOK, f.issue(), "")
	case "/auth/logout":
		delete(f.refresh, body["refreshToken"])
		writeEnv(w, http.StatusOK, nil, "")
	case "/auth/verify":
		if !f.access[bearer] {
			writeEnv(w, http.StatusUnauthorized, nil, "unauthorized")
			return
		}
		writeEnv(w, http.StatusOK, map[string]interface{}{"admin": profile}, "")
	case "/forbidden":
		writeEnv(w, http.StatusForbidden, nil, "forbidden")
	case "/unauthorized":
		writeEnv(w, http.StatusUnauthorized, nil, "unauthorized")
	default:
		if !f.access[bearer] {
			writeEnv(w, http.StatusUnauthorized, nil, "unauthorized")
			return
		}
		echo, _ := json.Marshal(body)
		writeEnv(w, http.StatusOK, map[string]string{"echo": string(echo)}, "")
	}
}

func newTestSession(t *testing.T, opts ...Option) (*Session, *fakeAPI, *MemoryStore) {
	t.Helper()
	api := newFakeAPI()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	store := NewMemoryStore()
	opts = append([]Option{WithHTTPClient(srv.Client())}, opts...)
	return NewSession(srv.URL, store, opts...), api, store
}

func TestLogin_StoresTokensAndProfile(t *testing.T) {
	s, _, store := newTestSession(t)

	profile, err := s.Login(context.Background(), "a@x.com", "secret123", "")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", profile.ID)

	tokens, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "a1", tokens.AccessToken)
	assert.Equal(t, "r1", tokens.RefreshToken)
	assert.False(t, tokens.AccessTokenExpiresAt.IsZero())
}

func TestLogin_ErrorsMapToSentinels(t *testing.T) {
	s, api, _ := newTestSession(t)

	_, err := s.Login(context.Background(), "a@x.com", "wrong", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	api.set(func(f *fakeAPI) { f.status = http.StatusLocked })
	_, err = s.Login(context.Background(), "a@x.com", "secret123", "")
	assert.ErrorIs(t, err, ErrAccountLocked)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusLocked, apiErr.StatusCode)
}

func TestCan(t *testing.T) {
	s, api, _ := newTestSession(t)
	assert.False(t, s.Can("view_inquiries"), "no profile yet")

	_, err := s.Login(context.Background(), "a@x.com", "secret123", "")
	require.NoError(t, err)
	assert.True(t, s.Can("view_inquiries"))
	assert.False(t, s.Can("manage_admins"))

	api.set(func(f *fakeAPI) { f.role, f.perms = "super_admin", nil })
	_, err = s.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Can("manage_admins"))
}

func TestDo_RefreshesOnceAndRetries(t *testing.T) {
	s, api, store := newTestSession(t)
	_, err := s.Login(context.Background(), "a@x.com", "secret123", "")
	require.NoError(t, err)

	api.revokeAccess()

	req, err := http.NewRequest(http.MethodPost, serverURL(s)+"/inquiries", strings.NewReader(`{"note":"hi"}`))
	require.NoError(t, err)
	resp, err := s.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `note`, "body must be replayed on retry")
	assert.Equal(t, int32(1), api.refreshN.Load())

	tokens, _ := store.Load()
	assert.Equal(t, "a2", tokens.AccessToken)
	assert.Equal(t, "r2", tokens.RefreshToken)
}

func TestDo_FailedRefreshClearsSession(t *testing.T) {
	expired := 0
	s, api, store := newTestSession(t, WithOnExpired(func() { expired++ }))
	_, err := s.Login(context.Background(), "a@x.com", "secret123", "")
	require.NoError(t, err)

	api.revokeAccess()
	api.revokeRefresh()

	req, _ := http.NewRequest(http.MethodGet, serverURL(s)+"/inquiries", nil)
	_, err = s.Do(req)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(1), api.refreshN.Load(), "exactly one refresh attempt")
	assert.Equal(t, 1, expired)
	assert.Nil(t, s.Profile())

	tokens, _ := store.Load()
	assert.Nil(t, tokens)

	_, err = s.Do(req)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(1), api.refreshN.Load(), "no refresh without tokens")
}

func TestDo_DoesNotRetryForbidden(t *testing.T) {
	s, api, _ := newTestSession(t)
	_, err := s.Login(context.Background(), "a@x.com", "secret123", "")
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, serverURL(s)+"/forbidden", nil)
	resp, err := s.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, int32(0), api.refreshN.Load())
}

func TestDo_ConcurrentCallersShareOneRefresh(t *testing.T) {
	s, api, _ := newTestSession(t)
	_, err := s.Login(context.Background(), "a@x.com", "secret123", "")
	require.NoError(t, err)

	api.revokeAccess()

	var wg sync.WaitGroup
	codes := make([]int, 10)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodGet, serverURL(s)+"/inquiries", nil)
			resp, err := s.Do(req)
			if err != nil {
				return
			}
			codes[i] = resp.StatusCode
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), api.refreshN.Load())
	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "caller %d", i)
	}
}

func TestDo_LocallyExpiredTokenRefreshesFirst(t *testing.T) {
	now := time.Now()
	s, api, _ := newTestSession(t, WithClock(func() time.Time { return now }))
	_, err := s.Login(context.Background(), "a@x.com", "secret123", "")
	require.NoError(t, err)

	now = now.Add(8 * 24 * time.Hour)

	req, _ := http.NewRequest(http.MethodGet, serverURL(s)+"/inquiries", nil)
	resp, err := s.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), api.refreshN.Load())
	assert.Equal(t, "a2", api.lastAuth.Load())
}

func TestDo_NoSecondRefreshAfterProactiveRefresh(t *testing.T) {
	now := time.Now()
	s, api, store := newTestSession(t, WithClock(func() time.Time { return now }))
	_, err := s.Login(context.Background(), "a@x.com", "secret123", "")
	require.NoError(t, err)

	now = now.Add(8 * 24 * time.Hour)

	req, _ := http.NewRequest(http.MethodGet, serverURL(s)+"/unauthorized", nil)
	resp, err := s.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), api.refreshN.Load())

	tokens, _ := store.Load()
	require.NotNil(t, tokens)
	assert.Equal(t, "r2", tokens.RefreshToken)
}

func TestLogout(t *testing.T) {
	s, api, store := newTestSession(t)
	_, err := s.Login(context.Background(), "a@x.com", "secret123", "")
	require.NoError(t, err)

	require.NoError(t, s.Logout(context.Background()))

	tokens, _ := store.Load()
	assert.Nil(t, tokens)
	assert.Nil(t, s.Profile())
	api.mu.Lock()
	assert.False(t, api.refresh["r1"], "server-side refresh token revoked")
	api.mu.Unlock()

	require.NoError(t, s.Logout(context.Background()), "second logout is a no-op")
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	store := NewFileStore(path)

	tokens, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, tokens)

	want := &Tokens{AccessToken: "a", RefreshToken: "r", AccessTokenExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second)}
	require.NoError(t, store.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.True(t, want.AccessTokenExpiresAt.Equal(got.AccessTokenExpiresAt))

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	tokens, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, tokens)
}

func TestTokensExpiry(t *testing.T) {
	now := time.Now()
	tokens := &Tokens{}
	assert.False(t, tokens.AccessExpired(now), "unknown expiry counts as live")

	tokens.AccessTokenExpiresAt = now
	assert.True(t, tokens.AccessExpired(now))
	tokens.RefreshTokenExpiresAt = now.Add(time.Second)
	assert.False(t, tokens.RefreshExpired(now))
}

func serverURL(s *Session) string { return s.baseURL }
