package auth

import (
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTOTPManager(t *testing.T) *TOTPManager {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	tm, err := NewTOTPManager(key, "Landmark")
	require.NoError(t, err)
	return tm
}

func TestNewTOTPManager_InvalidKeyLength(t *testing.T) {
	for _, length := range []int{0, 16, 24, 31, 33, 64} {
		tm, err := NewTOTPManager(make([]byte, length), "Landmark")
		assert.Error(t, err)
		assert.Nil(t, tm)
		assert.Contains(t, err.Error(), "must be exactly 32 bytes")
	}
}

func TestTOTPManager_Setup(t *testing.T) {
	tm := newTestTOTPManager(t)

	setup, err := tm.Setup("a@x.com")
	require.NoError(t, err)

	assert.NotEmpty(t, setup.Secret)
	assert.True(t, strings.HasPrefix(setup.URL, "otpauth://totp/"))
	assert.Contains(t, setup.URL, "issuer=Landmark")
	assert.True(t, strings.HasPrefix(setup.QRDataURL, "data:image/png;base64,"))
	assert.NotContains(t, string(setup.Sealed), setup.Secret)

	opened, err := tm.Open(setup.Sealed)
	require.NoError(t, err)
	assert.Equal(t, setup.Secret, opened)
}

func TestTOTPManager_SealProducesFreshNonce(t *testing.T) {
	tm := newTestTOTPManager(t)

	a, err := tm.Seal("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	b, err := tm.Seal("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestTOTPManager_OpenWithWrongKey(t *testing.T) {
	sealed, err := newTestTOTPManager(t).Seal("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	_, err = newTestTOTPManager(t).Open(sealed)
	assert.Error(t, err)

	_, err = newTestTOTPManager(t).Open([]byte("short"))
	assert.Error(t, err)
}

func TestTOTPManager_Validate(t *testing.T) {
	tm := newTestTOTPManager(t)
	setup, err := tm.Setup("a@x.com")
	require.NoError(t, err)

	now := time.Now()
	code, err := totp.GenerateCode(setup.Secret, now)
	require.NoError(t, err)

	tests := []struct {
		name string
		code string
		at   time.Time
		want bool
	}{
		{"current code", code, now, true},
		{"one step of drift", code, now.Add(30 * time.Second), true},
		{"stale code", code, now.Add(5 * time.Minute), false},
		{"wrong code", "000000", now, code == "000000"},
		{"malformed", "abc", now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tm.Validate(setup.Sealed, tt.code, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
