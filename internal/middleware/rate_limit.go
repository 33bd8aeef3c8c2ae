package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/landmark/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig is a fixed window per client IP.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// LoginRateLimit throttles credential guessing on /auth/login.
func LoginRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 5, Window: time.Minute}
}

// RefreshRateLimit applies to /auth/refresh.
func RefreshRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 20, Window: time.Minute}
}

// InquiryRateLimit applies to the public lead form.
func InquiryRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 10, Window: time.Minute}
}

// GlobalRateLimit applies to every route.
func GlobalRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 100, Window: time.Minute}
}

// RateLimitByIP limits by the client address as resolved through trusted
// proxies, so a spoofed X-Forwarded-For cannot pick a fresh bucket.
func RateLimitByIP(config RateLimitConfig, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "rate limit exceeded, try again later")
		}),
	)
}
