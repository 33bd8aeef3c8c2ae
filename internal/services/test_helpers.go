package services

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/landmark/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process AdminRepository and RefreshTokenRepository.
// RecordFailedAttempt and Rotate follow the same rules as the SQL versions so
// service and handler tests exercise the real lockout and rotation behaviour.
type MemoryStore struct {
	mu     sync.Mutex
	admins map[string]*models.Admin
	tokens map[string]*models.RefreshToken
	Now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		admins: make(map[string]*models.Admin),
		tokens: make(map[string]*models.RefreshToken),
		Now:    time.Now,
	}
}

func cloneAdmin(a *models.Admin) *models.Admin {
	c := *a
	c.Permissions = slices.Clone(a.Permissions)
	if c.Permissions == nil {
		c.Permissions = []string{}
	}
	c.TwoFactorSecret = slices.Clone(a.TwoFactorSecret)
	if a.LastLogin != nil {
		t := *a.LastLogin
		c.LastLogin = &t
	}
	if a.LockoutUntil != nil {
		t := *a.LockoutUntil
		c.LockoutUntil = &t
	}
	return &c
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneAdmin(a), nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if strings.EqualFold(a.Email, strings.TrimSpace(email)) {
			return cloneAdmin(a), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MemoryStore) List(ctx context.Context, limit, offset int) ([]*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*models.Admin, 0, len(m.admins))
	for _, a := range m.admins {
		all = append(all, cloneAdmin(a))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	if offset >= len(all) {
		return []*models.Admin{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryStore) Create(ctx context.Context, admin *models.Admin) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if strings.EqualFold(a.Email, admin.Email) {
			return nil, models.ErrConflict
		}
	}
	c := cloneAdmin(admin)
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.CreatedAt = m.Now()
	c.UpdatedAt = c.CreatedAt
	m.admins[c.ID] = c
	return cloneAdmin(c), nil
}

// mutate applies fn to a stored admin under the lock.
func (m *MemoryStore) mutate(id string, fn func(a *models.Admin) error) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	a.UpdatedAt = m.Now()
	return cloneAdmin(a), nil
}

func (m *MemoryStore) UpdateProfile(ctx context.Context, id, name, email string) (*models.Admin, error) {
	return m.mutate(id, func(a *models.Admin) error {
		for otherID, other := range m.admins {
			if otherID != id && strings.EqualFold(other.Email, email) {
				return models.ErrConflict
			}
		}
		a.Name = name
		a.Email = strings.ToLower(email)
		return nil
	})
}

func (m *MemoryStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := m.mutate(id, func(a *models.Admin) error {
		a.PasswordHash = passwordHash
		return nil
	})
	return err
}

func (m *MemoryStore) SetActive(ctx context.Context, id string, active bool) error {
	_, err := m.mutate(id, func(a *models.Admin) error {
		a.IsActive = active
		return nil
	})
	return err
}

func (m *MemoryStore) RecordFailedAttempt(ctx context.Context, id string, threshold int, lockout time.Duration) (*models.Admin, error) {
	return m.mutate(id, func(a *models.Admin) error {
		now := m.Now()
		switch {
		case a.LockoutUntil != nil && !a.LockoutUntil.After(now):
			a.LoginAttempts = 1
			a.LockoutUntil = nil
		case a.LockoutUntil != nil:
			a.LoginAttempts++
			return nil
		default:
			a.LoginAttempts++
		}
		if a.LoginAttempts >= threshold {
			until := now.Add(lockout)
			a.LockoutUntil = &until
		}
		return nil
	})
}

func (m *MemoryStore) ResetFailures(ctx context.Context, id string) error {
	_, err := m.mutate(id, func(a *models.Admin) error {
		now := m.Now()
		a.LoginAttempts = 0
		a.LockoutUntil = nil
		a.LastLogin = &now
		return nil
	})
	return err
}

func (m *MemoryStore) Unlock(ctx context.Context, id string) error {
	_, err := m.mutate(id, func(a *models.Admin) error {
		a.LoginAttempts = 0
		a.LockoutUntil = nil
		return nil
	})
	return err
}

func (m *MemoryStore) SetTwoFactor(ctx context.Context, id string, secret []byte, enabled bool) error {
	_, err := m.mutate(id, func(a *models.Admin) error {
		a.TwoFactorSecret = slices.Clone(secret)
		a.TwoFactorEnabled = enabled
		return nil
	})
	return err
}

func (m *MemoryStore) CountActiveByRole(ctx context.Context, role string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.admins {
		if a.Role == role && a.IsActive {
			n++
		}
	}
	return n, nil
}

// Refresh token side

func (m *MemoryStore) insertToken(token *models.RefreshToken) error {
	if _, exists := m.tokens[token.TokenHash]; exists {
		return models.ErrConflict
	}
	if _, ok := m.admins[token.AdminID]; !ok {
		return models.ErrBadRequest
	}
	token.ID = uuid.New().String()
	token.CreatedAt = m.Now()
	c := *token
	m.tokens[token.TokenHash] = &c
	return nil
}

func (m *MemoryStore) CreateToken(ctx context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertToken(token)
}

func (m *MemoryStore) Rotate(ctx context.Context, oldHash string, next *models.RefreshToken, authorize func(ctx context.Context, adminID string) error) error {
	m.mu.Lock()
	old, ok := m.tokens[oldHash]
	if !ok || old.IsExpired(m.Now()) {
		m.mu.Unlock()
		return models.ErrTokenReplay
	}
	delete(m.tokens, oldHash)
	m.mu.Unlock()

	if authorize != nil {
		if err := authorize(ctx, old.AdminID); err != nil {
			// roll back
			m.mu.Lock()
			m.tokens[oldHash] = old
			m.mu.Unlock()
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next.AdminID = old.AdminID
	return m.insertToken(next)
}

func (m *MemoryStore) DeleteToken(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, tokenHash)
	return nil
}

func (m *MemoryStore) DeleteAllForAdmin(ctx context.Context, adminID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for hash, t := range m.tokens {
		if t.AdminID == adminID {
			delete(m.tokens, hash)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CleanupExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := m.Now()
	for hash, t := range m.tokens {
		if t.IsExpired(now) {
			delete(m.tokens, hash)
			n++
		}
	}
	return n, nil
}

// TokenCount reports how many refresh tokens an admin has on file.
func (m *MemoryStore) TokenCount(adminID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.AdminID == adminID {
			n++
		}
	}
	return n
}

// Tokens adapts the store's refresh token methods to RefreshTokenRepository.
func (m *MemoryStore) Tokens() RefreshTokenRepository {
	return memoryTokens{m}
}

type memoryTokens struct{ *MemoryStore }

func (t memoryTokens) Create(ctx context.Context, token *models.RefreshToken) error {
	return t.CreateToken(ctx, token)
}

func (t memoryTokens) Delete(ctx context.Context, tokenHash string) error {
	return t.DeleteToken(ctx, tokenHash)
}

// MockRefreshTokenRepository lets tests inject store failures.
type MockRefreshTokenRepository struct {
	CreateFunc            func(ctx context.Context, token *models.RefreshToken) error
	RotateFunc            func(ctx context.Context, oldHash string, next *models.RefreshToken, authorize func(ctx context.Context, adminID string) error) error
	DeleteFunc            func(ctx context.Context, tokenHash string) error
	DeleteAllForAdminFunc func(ctx context.Context, adminID string) (int64, error)
	CleanupExpiredFunc    func(ctx context.Context) (int64, error)
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	return nil
}

func (m *MockRefreshTokenRepository) Rotate(ctx context.Context, oldHash string, next *models.RefreshToken, authorize func(ctx context.Context, adminID string) error) error {
	if m.RotateFunc != nil {
		return m.RotateFunc(ctx, oldHash, next, authorize)
	}
	return models.ErrTokenReplay
}

func (m *MockRefreshTokenRepository) Delete(ctx context.Context, tokenHash string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tokenHash)
	}
	return nil
}

func (m *MockRefreshTokenRepository) DeleteAllForAdmin(ctx context.Context, adminID string) (int64, error) {
	if m.DeleteAllForAdminFunc != nil {
		return m.DeleteAllForAdminFunc(ctx, adminID)
	}
	return 0, nil
}

func (m *MockRefreshTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	if m.CleanupExpiredFunc != nil {
		return m.CleanupExpiredFunc(ctx)
	}
	return 0, nil
}

// MemoryInquiryStore is an in-process InquiryRepository.
type MemoryInquiryStore struct {
	mu    sync.Mutex
	items map[string]*models.Inquiry
	order []string
}

func NewMemoryInquiryStore() *MemoryInquiryStore {
	return &MemoryInquiryStore{items: make(map[string]*models.Inquiry)}
}

func cloneInquiry(i *models.Inquiry) *models.Inquiry {
	c := *i
	c.FollowUps = slices.Clone(i.FollowUps)
	if c.FollowUps == nil {
		c.FollowUps = models.FollowUps{}
	}
	return &c
}

func (s *MemoryInquiryStore) Create(ctx context.Context, inq *models.Inquiry) (*models.Inquiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneInquiry(inq)
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.items[c.ID] = c
	s.order = append(s.order, c.ID)
	return cloneInquiry(c), nil
}

func (s *MemoryInquiryStore) GetByID(ctx context.Context, id string) (*models.Inquiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.items[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneInquiry(i), nil
}

func (s *MemoryInquiryStore) List(ctx context.Context, f models.InquiryFilter) ([]*models.Inquiry, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]*models.Inquiry, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		inq, ok := s.items[s.order[i]]
		if !ok {
			continue
		}
		if (f.Status != "" && inq.Status != f.Status) ||
			(f.Priority != "" && inq.Priority != f.Priority) ||
			(f.Source != "" && inq.Source != f.Source) ||
			(f.AssignedTo != "" && (inq.AssignedTo == nil || *inq.AssignedTo != f.AssignedTo)) {
			continue
		}
		matched = append(matched, cloneInquiry(inq))
	}
	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return []*models.Inquiry{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *MemoryInquiryStore) Update(ctx context.Context, inq *models.Inquiry) (*models.Inquiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[inq.ID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cur.Status, cur.Priority, cur.Notes, cur.AssignedTo = inq.Status, inq.Priority, inq.Notes, inq.AssignedTo
	cur.UpdatedAt = time.Now()
	return cloneInquiry(cur), nil
}

func (s *MemoryInquiryStore) AddFollowUp(ctx context.Context, id string, entry models.FollowUp) (*models.Inquiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cur.FollowUps = append(cur.FollowUps, entry)
	cur.UpdatedAt = time.Now()
	return cloneInquiry(cur), nil
}

func (s *MemoryInquiryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryInquiryStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, inq := range s.items {
		counts[inq.Status]++
	}
	return counts, nil
}

// MockInquiryNotifier records or fails notifications.
type MockInquiryNotifier struct {
	NotifyNewInquiryFunc func(ctx context.Context, inq *models.Inquiry) error
}

func (m *MockInquiryNotifier) NotifyNewInquiry(ctx context.Context, inq *models.Inquiry) error {
	if m.NotifyNewInquiryFunc != nil {
		return m.NotifyNewInquiryFunc(ctx, inq)
	}
	return nil
}

// DiscardLogger is a logger for tests.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
