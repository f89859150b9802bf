package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityConfig holds the response security headers
type SecurityConfig struct {
	FrameOptions          string
	ContentSecurityPolicy string // empty disables the header
	PermissionsPolicy     string // empty disables the header

	// HSTSMaxAge enables Strict-Transport-Security when positive; only
	// set it behind HTTPS.
	HSTSMaxAge     time.Duration
	HSTSSubdomains bool
	HSTSPreload    bool
}

// DefaultSecurityConfig returns the headers of the JSON and PDF endpoints.
// The printable preview replaces the CSP with its own policy.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		FrameOptions:          "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'",
		PermissionsPolicy:     "camera=(), geolocation=(), microphone=(), payment=(), usb=()",
	}
}

// Secure adds security headers to responses using default configuration
func Secure() gin.HandlerFunc {
	return SecureWithConfig(DefaultSecurityConfig())
}

// SecureWithConfig adds security headers to responses with custom configuration
func SecureWithConfig(cfg SecurityConfig) gin.HandlerFunc {
	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "no-referrer",
	}
	if cfg.FrameOptions != "" {
		headers["X-Frame-Options"] = cfg.FrameOptions
	}
	if cfg.ContentSecurityPolicy != "" {
		headers["Content-Security-Policy"] = cfg.ContentSecurityPolicy
	}
	if cfg.PermissionsPolicy != "" {
		headers["Permissions-Policy"] = cfg.PermissionsPolicy
	}
	if cfg.HSTSMaxAge > 0 {
		hsts := fmt.Sprintf("max-age=%d", int(cfg.HSTSMaxAge.Seconds()))
		if cfg.HSTSSubdomains {
			hsts += "; includeSubDomains"
		}
		if cfg.HSTSPreload {
			hsts += "; preload"
		}
		headers["Strict-Transport-Security"] = hsts
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for k, v := range headers {
			h.Set(k, v)
		}
		c.Next()
	}
}
