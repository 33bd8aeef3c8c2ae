package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// ErrTOTPDisabled is returned when no encryption key was configured.
var ErrTOTPDisabled = errors.New("two-factor authentication is not configured")

var totpValidateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// TOTPManager creates, seals and checks TOTP secrets. Secrets are stored as
// nonce||ciphertext under AES-256-GCM.
type TOTPManager struct {
	encryptionKey []byte
	issuer        string
}

// TOTPSetup is what an admin needs to enrol an authenticator app.
type TOTPSetup struct {
	Sealed    []byte `json:"-"`
	Secret    string `json:"secret"`
	URL       string `json:"otpauthUrl"`
	QRDataURL string `json:"qrCode"`
}

// NewTOTPManager requires a 32-byte key.
func NewTOTPManager(encryptionKey []byte, issuer string) (*TOTPManager, error) {
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(encryptionKey))
	}
	return &TOTPManager{encryptionKey: encryptionKey, issuer: issuer}, nil
}

// Setup generates a new secret for accountName and renders its QR code.
func (tm *TOTPManager) Setup(accountName string) (*TOTPSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: accountName,
		SecretSize:  20,
		Period:      30,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	sealed, err := tm.Seal(key.Secret())
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 200)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	return &TOTPSetup{
		Sealed:    sealed,
		Secret:    key.Secret(),
		URL:       key.URL(),
		QRDataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

// Seal encrypts a base32 secret for storage.
func (tm *TOTPManager) Seal(secret string) ([]byte, error) {
	gcm, err := tm.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, []byte(secret), nil), nil
}

// Open reverses Seal.
func (tm *TOTPManager) Open(sealed []byte) (string, error) {
	gcm, err := tm.gcm()
	if err != nil {
		return "", err
	}

	if len(sealed) < gcm.NonceSize() {
		return "", fmt.Errorf("sealed secret too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return string(plaintext), nil
}

// Validate checks code against a sealed secret, allowing one step of drift.
func (tm *TOTPManager) Validate(sealed []byte, code string, now time.Time) (bool, error) {
	secret, err := tm.Open(sealed)
	if err != nil {
		return false, err
	}

	valid, err := totp.ValidateCustom(code, secret, now, totpValidateOpts)
	if err != nil {
		// malformed codes are simply wrong
		return false, nil
	}
	return valid, nil
}

func (tm *TOTPManager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(tm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
