package services

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/landmark/internal/auth"
	"github.com/BradenHooton/landmark/internal/models"
	pkgauth "github.com/BradenHooton/landmark/pkg/auth"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "service-test-signing-secret-long-enough"

// fakeClock is shared by the service, the issuer and the store.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type authFixture struct {
	svc   *AuthService
	store *MemoryStore
	clock *fakeClock
	admin *models.Admin
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	clock := &fakeClock{now: time.Now()}

	store := NewMemoryStore()
	store.Now = clock.Now

	issuer := auth.NewTokenIssuer(testJWTSecret, 7*24*time.Hour, 30*24*time.Hour).WithClock(clock.Now)
	svc := NewAuthService(store, store.Tokens(), issuer, LockoutPolicy{
		MaxFailedAttempts: 5,
		LockoutDuration:   2 * time.Hour,
		BcryptCost:        bcrypt.MinCost,
	}, DiscardLogger(), nil)
	svc.now = clock.Now

	hash, err := pkgauth.HashPasswordWithCost("secret123", bcrypt.MinCost)
	require.NoError(t, err)

	admin, err := store.Create(context.Background(), &models.Admin{
		Name:         "A",
		Email:        "a@x.com",
		PasswordHash: hash,
		Role:         models.RoleEditor,
		Permissions:  models.DefaultPermissions(models.RoleEditor),
		IsActive:     true,
	})
	require.NoError(t, err)

	return &authFixture{svc: svc, store: store, clock: clock, admin: admin}
}

func (f *authFixture) login(password string) (*LoginResult, error) {
	return f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: password})
}

func TestAuthService_Login_Success(t *testing.T) {
	f := newAuthFixture(t)

	res, err := f.svc.Login(context.Background(), LoginInput{Email: "  A@X.com ", Password: "secret123"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, f.admin.ID, res.Admin.ID)
	assert.NotNil(t, res.Admin.LastLogin)
	assert.Equal(t, 1, f.store.TokenCount(f.admin.ID))
	assert.WithinDuration(t, f.clock.Now().Add(7*24*time.Hour), res.AccessTokenExpiresAt, time.Second)
	assert.WithinDuration(t, f.clock.Now().Add(30*24*time.Hour), res.RefreshTokenExpiresAt, time.Second)

	verified, err := f.svc.Verify(context.Background(), res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, verified.ID)
}

func TestAuthService_Login_UnknownEmailMatchesWrongPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, errUnknown := f.svc.Login(context.Background(), LoginInput{Email: "nobody@x.com", Password: "secret123"})
	_, errWrong := f.login("wrong-password1")

	assert.ErrorIs(t, errUnknown, models.ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, models.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestAuthService_Login_LocksAfterFiveFailures(t *testing.T) {
	f := newAuthFixture(t)

	for i := 0; i < 5; i++ {
		_, err := f.login("wrong-password1")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials, "attempt %d", i+1)
	}

	// correct password, still locked
	_, err := f.login("secret123")
	assert.ErrorIs(t, err, models.ErrAccountLocked)

	stored, err := f.store.GetByID(context.Background(), f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.LoginAttempts)
	require.NotNil(t, stored.LockoutUntil)
	assert.WithinDuration(t, f.clock.Now().Add(2*time.Hour), *stored.LockoutUntil, time.Second)
}

func TestAuthService_Login_LockedDoesNotCheckPassword(t *testing.T) {
	f := newAuthFixture(t)
	for i := 0; i < 5; i++ {
		_, _ = f.login("wrong-password1")
	}

	_, err := f.login("wrong-password1")
	assert.ErrorIs(t, err, models.ErrAccountLocked)

	stored, _ := f.store.GetByID(context.Background(), f.admin.ID)
	assert.Equal(t, 5, stored.LoginAttempts)
}

func TestAuthService_Login_SuccessResetsCounter(t *testing.T) {
	f := newAuthFixture(t)
	for i := 0; i < 3; i++ {
		_, _ = f.login("wrong-password1")
	}

	_, err := f.login("secret123")
	require.NoError(t, err)

	stored, _ := f.store.GetByID(context.Background(), f.admin.ID)
	assert.Equal(t, 0, stored.LoginAttempts)
	assert.Nil(t, stored.LockoutUntil)
}

func TestAuthService_Login_ExpiredLockRestartsCount(t *testing.T) {
	f := newAuthFixture(t)
	for i := 0; i < 5; i++ {
		_, _ = f.login("wrong-password1")
	}

	f.clock.Advance(2*time.Hour + time.Second)

	_, err := f.login("wrong-password1")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	stored, _ := f.store.GetByID(context.Background(), f.admin.ID)
	assert.Equal(t, 1, stored.LoginAttempts)
	assert.False(t, stored.IsLocked(f.clock.Now()))

	res, err := f.login("secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
}

func TestAuthService_Login_Disabled(t *testing.T) {
	f := newAuthFixture(t)
	_, _ = f.login("wrong-password1")
	require.NoError(t, f.store.SetActive(context.Background(), f.admin.ID, false))

	_, err := f.login("secret123")
	assert.ErrorIs(t, err, models.ErrAccountDisabled)

	stored, _ := f.store.GetByID(context.Background(), f.admin.ID)
	assert.Equal(t, 0, stored.LoginAttempts)
	assert.Equal(t, 0, f.store.TokenCount(f.admin.ID))
}

func TestAuthService_Login_StoreFailureIsNotCredentialError(t *testing.T) {
	f := newAuthFixture(t)
	f.svc.tokens = &MockRefreshTokenRepository{
		CreateFunc: func(ctx context.Context, token *models.RefreshToken) error {
			return errors.New("connection reset")
		},
	}

	_, err := f.login("secret123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthService_Verify(t *testing.T) {
	f := newAuthFixture(t)
	res, err := f.login("secret123")
	require.NoError(t, err)

	t.Run("garbage token", func(t *testing.T) {
		_, err := f.svc.Verify(context.Background(), "garbage")
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	})

	t.Run("expired token", func(t *testing.T) {
		f.clock.Advance(7*24*time.Hour + time.Minute)
		defer f.clock.Advance(-(7*24*time.Hour + time.Minute))

		_, err := f.svc.Verify(context.Background(), res.AccessToken)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	})

	t.Run("deactivated admin", func(t *testing.T) {
		require.NoError(t, f.store.SetActive(context.Background(), f.admin.ID, false))
		defer f.store.SetActive(context.Background(), f.admin.ID, true)

		_, err := f.svc.Verify(context.Background(), res.AccessToken)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	})

	t.Run("still valid", func(t *testing.T) {
		_, err := f.svc.Verify(context.Background(), res.AccessToken)
		assert.NoError(t, err)
	})
}

func TestAuthService_Refresh_Rotates(t *testing.T) {
	f := newAuthFixture(t)
	res, err := f.login("secret123")
	require.NoError(t, err)

	pair, err := f.svc.Refresh(context.Background(), res.RefreshToken, RequestMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, pair.RefreshToken)
	assert.Equal(t, 1, f.store.TokenCount(f.admin.ID))

	adminID, err := auth.NewTokenIssuer(testJWTSecret, time.Hour, time.Hour).
		WithClock(f.clock.Now).VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, adminID)

	// stale token replayed
	_, err = f.svc.Refresh(context.Background(), res.RefreshToken, RequestMeta{})
	assert.ErrorIs(t, err, models.ErrTokenReplay)

	// the rotated one still works
	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken, RequestMeta{})
	assert.NoError(t, err)
}

func TestAuthService_Refresh_ConcurrentSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	res, err := f.login("secret123")
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Refresh(context.Background(), res.RefreshToken, RequestMeta{}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, models.ErrTokenReplay)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.store.TokenCount(f.admin.ID))
}

func TestAuthService_Refresh_Rejections(t *testing.T) {
	f := newAuthFixture(t)
	res, err := f.login("secret123")
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := f.svc.Refresh(context.Background(), "", RequestMeta{})
		assert.ErrorIs(t, err, models.ErrTokenReplay)
	})

	t.Run("never issued", func(t *testing.T) {
		_, err := f.svc.Refresh(context.Background(), "made-up-token", RequestMeta{})
		assert.ErrorIs(t, err, models.ErrTokenReplay)
	})

	t.Run("inactive admin", func(t *testing.T) {
		require.NoError(t, f.store.SetActive(context.Background(), f.admin.ID, false))
		_, err := f.svc.Refresh(context.Background(), res.RefreshToken, RequestMeta{})
		assert.ErrorIs(t, err, models.ErrTokenReplay)
		require.NoError(t, f.store.SetActive(context.Background(), f.admin.ID, true))
	})

	t.Run("expired", func(t *testing.T) {
		f.clock.Advance(30*24*time.Hour + time.Minute)
		_, err := f.svc.Refresh(context.Background(), res.RefreshToken, RequestMeta{})
		assert.ErrorIs(t, err, models.ErrTokenReplay)
	})
}

func TestAuthService_Logout_Idempotent(t *testing.T) {
	f := newAuthFixture(t)
	res, err := f.login("secret123")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), res.RefreshToken, RequestMeta{}))
	assert.Equal(t, 0, f.store.TokenCount(f.admin.ID))

	assert.NoError(t, f.svc.Logout(context.Background(), res.RefreshToken, RequestMeta{}))
	assert.NoError(t, f.svc.Logout(context.Background(), "", RequestMeta{}))

	_, err = f.svc.Refresh(context.Background(), res.RefreshToken, RequestMeta{})
	assert.ErrorIs(t, err, models.ErrTokenReplay)
}

func TestAuthService_ChangePassword_RevokesSessions(t *testing.T) {
	f := newAuthFixture(t)
	res, err := f.login("secret123")
	require.NoError(t, err)

	err = f.svc.ChangePassword(context.Background(), f.admin.ID, "not-it", "newpass456", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	err = f.svc.ChangePassword(context.Background(), f.admin.ID, "secret123", "short", RequestMeta{})
	var pwErr *pkgauth.PasswordValidationError
	assert.ErrorAs(t, err, &pwErr)

	require.NoError(t, f.svc.ChangePassword(context.Background(), f.admin.ID, "secret123", "newpass456", RequestMeta{}))
	assert.Equal(t, 0, f.store.TokenCount(f.admin.ID))

	_, err = f.svc.Refresh(context.Background(), res.RefreshToken, RequestMeta{})
	assert.ErrorIs(t, err, models.ErrTokenReplay)

	_, err = f.login("newpass456")
	assert.NoError(t, err)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.store.Create(context.Background(), &models.Admin{Name: "B", Email: "b@x.com", Role: models.RoleEditor, IsActive: true})
	require.NoError(t, err)

	profile, err := f.svc.UpdateProfile(context.Background(), f.admin.ID, " Alice ", "Alice@X.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Name)
	assert.Equal(t, "alice@x.com", profile.Email)

	_, err = f.svc.UpdateProfile(context.Background(), f.admin.ID, "Alice", "b@x.com")
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = f.svc.UpdateProfile(context.Background(), f.admin.ID, "", "c@x.com")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestAuthService_TwoFactor(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.SetupTwoFactor(context.Background(), f.admin.ID)
	assert.ErrorIs(t, err, auth.ErrTOTPDisabled)

	key := make([]byte, 32)
	_, _ = rand.Read(key)
	tm, err := auth.NewTOTPManager(key, "Landmark")
	require.NoError(t, err)
	f.svc.WithTOTP(tm)

	setup, err := f.svc.SetupTwoFactor(context.Background(), f.admin.ID)
	require.NoError(t, err)

	// not enabled until confirmed
	_, err = f.login("secret123")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.EnableTwoFactor(context.Background(), f.admin.ID, "000000x"), models.ErrInvalidCredentials)

	code, err := totp.GenerateCode(setup.Secret, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.EnableTwoFactor(context.Background(), f.admin.ID, code))

	t.Run("missing code does not count as a failure", func(t *testing.T) {
		_, err := f.login("secret123")
		assert.ErrorIs(t, err, models.ErrTwoFactorRequired)

		stored, _ := f.store.GetByID(context.Background(), f.admin.ID)
		assert.Equal(t, 0, stored.LoginAttempts)
	})

	t.Run("wrong code counts as a failure", func(t *testing.T) {
		_, err := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "secret123", TOTPCode: "abcdef"})
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)

		stored, _ := f.store.GetByID(context.Background(), f.admin.ID)
		assert.Equal(t, 1, stored.LoginAttempts)
	})

	t.Run("valid code", func(t *testing.T) {
		code, err := totp.GenerateCode(setup.Secret, f.clock.Now())
		require.NoError(t, err)
		_, err = f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "secret123", TOTPCode: code})
		assert.NoError(t, err)
	})

	t.Run("disable needs password", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.DisableTwoFactor(context.Background(), f.admin.ID, "nope"), models.ErrInvalidCredentials)
		require.NoError(t, f.svc.DisableTwoFactor(context.Background(), f.admin.ID, "secret123"))

		_, err := f.login("secret123")
		assert.NoError(t, err)
	})
}
