// Package client is a Go consumer of the back-office API. A Session keeps the
// token pair, attaches the access token to requests and, when the server
// answers 401, refreshes once and retries the request once.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Profile is the admin as the server serialises it.
type Profile struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Role             string     `json:"role"`
	Permissions      []string   `json:"permissions"`
	IsActive         bool       `json:"isActive"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type Option func(*Session)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.http = c }
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithOnExpired registers a callback run after the session is cleared
// because the server rejected the refresh token.
func WithOnExpired(fn func()) Option {
	return func(s *Session) { s.onExpired = fn }
}

type Session struct {
	baseURL   string
	http      *http.Client
	store     TokenStore
	now       func() time.Time
	onExpired func()

	refreshGroup singleflight.Group

	mu      sync.RWMutex
	profile *Profile
}

func NewSession(baseURL string, store TokenStore, opts ...Option) *Session {
	s := &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login exchanges credentials for a token pair and stores it. totpCode may be
// empty for accounts without two-factor.
func (s *Session) Login(ctx context.Context, email, password, totpCode string) (*Profile, error) {
	body := map[string]string{"email": email, "password": password}
	if totpCode != "" {
		body["totpCode"] = totpCode
	}

	var result struct {
		Admin *Profile `json:"admin"`
		Tokens
	}
	if err := s.postJSON(ctx, "/auth/login", body, &result); err != nil {
		return nil, err
	}

	if err := s.store.Save(&result.Tokens); err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}
	s.setProfile(result.Admin)
	return result.Admin, nil
}

// Logout revokes the refresh token on the server and clears local state. The
// local state is cleared even when the server cannot be reached.
func (s *Session) Logout(ctx context.Context) error {
	tokens, err := s.store.Load()
	if err != nil {
		return err
	}

	var callErr error
	if tokens != nil && tokens.RefreshToken != "" {
		callErr = s.postJSON(ctx, "/auth/logout", map[string]string{"refreshToken": tokens.RefreshToken}, nil)
	}

	s.setProfile(nil)
	if err := s.store.Clear(); err != nil {
		return err
	}
	return callErr
}

// Verify asks the server who the current token belongs to and caches the
// answer for Can.
func (s *Session) Verify(ctx context.Context) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/auth/verify", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Admin *Profile `json:"admin"`
	}
	if err := decodeEnvelope(resp, &out); err != nil {
		return nil, err
	}
	s.setProfile(out.Admin)
	return out.Admin, nil
}

// Profile returns the admin from the last Login or Verify.
func (s *Session) Profile() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Can reports whether the cached profile holds perm. It is for deciding what
// to show; the server enforces permissions on every call.
func (s *Session) Can(perm string) bool {
	p := s.Profile()
	if p == nil {
		return false
	}
	return p.Role == "super_admin" || slices.Contains(p.Permissions, perm)
}

// Do sends req with the current access token. It refreshes at most once per
// call: before sending when the stored access token has expired, otherwise
// after a 401, followed by one retry. Requests with a body must be replayable (req.GetBody set, as
// http.NewRequest does for bytes and strings readers) to be retried.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	tokens, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, ErrSessionExpired
	}

	refreshed := false
	if tokens.AccessExpired(s.now()) {
		if tokens, err = s.refresh(req.Context(), tokens.AccessToken); err != nil {
			return nil, err
		}
		refreshed = true
	}

	resp, err := s.send(req, tokens.AccessToken)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || refreshed {
		return resp, err
	}

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}
	drain(resp)

	fresh, err := s.refresh(req.Context(), tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		if retry.Body, err = req.GetBody(); err != nil {
			return nil, err
		}
	}
	return s.send(retry, fresh.AccessToken)
}

func (s *Session) send(req *http.Request, accessToken string) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+accessToken)
	return s.http.Do(out)
}

// refresh rotates the pair. Concurrent callers share one round trip, and a
// caller whose stale token was already replaced gets the stored pair.
func (s *Session) refresh(ctx context.Context, staleAccess string) (*Tokens, error) {
	v, err, _ := s.refreshGroup.Do("refresh", func() (interface{}, error) {
		tokens, err := s.store.Load()
		if err != nil {
			return nil, err
		}
		if tokens == nil || tokens.RefreshToken == "" {
			return nil, ErrSessionExpired
		}
		if tokens.AccessToken != staleAccess && !tokens.AccessExpired(s.now()) {
			return tokens, nil
		}
		if tokens.RefreshExpired(s.now()) {
			return nil, s.expire()
		}

		var next Tokens
		err = s.postJSON(ctx, "/auth/refresh", map[string]string{"refreshToken": tokens.RefreshToken}, &next)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
				return nil, s.expire()
			}
			return nil, err
		}

		if err := s.store.Save(&next); err != nil {
			return nil, fmt.Errorf("failed to store tokens: %w", err)
		}
		return &next, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tokens), nil
}

func (s *Session) expire() error {
	s.setProfile(nil)
	if err := s.store.Clear(); err != nil {
		return err
	}
	if s.onExpired != nil {
		s.onExpired()
	}
	return ErrSessionExpired
}

func (s *Session) setProfile(p *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

func (s *Session) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, out)
}

// decodeEnvelope turns a non-2xx response into *APIError and otherwise
// decodes the data field into out.
func decodeEnvelope(resp *http.Response, out interface{}) error {
	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Error, Message: env.Message}
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
}
