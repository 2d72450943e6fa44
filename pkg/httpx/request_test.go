package httpx_test

import (
	"net/http/httptest"
	"testing"

	"github.com/Shatzii/sentinel/pkg/httpx"
	"github.com/stretchr/testify/assert"
)

// Forwarding headers are only honored from trusted proxies. A client that can
// pick the IP it is accounted against can dodge every limit and ban.

func TestExtractClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	// Client tries to pick its own identity
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	config := &httpx.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8", "127.0.0.1/32"},
	}

	ip := httpx.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.10", ip, "headers from an untrusted peer must be ignored")
}

func TestExtractClientIP_TrustedProxy_UsesXForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"

	req.Header.Set("X-Forwarded-For", "203.0.113.42, 10.0.0.5")

	config := &httpx.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8"},
	}

	ip := httpx.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.42", ip)
}

func TestExtractClientIP_TrustedProxy_FallsBackToXRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"

	req.Header.Set("X-Real-IP", "203.0.113.42")

	config := &httpx.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8"},
	}

	ip := httpx.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.42", ip)
}

func TestExtractClientIP_NilConfig_UsesRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	ip := httpx.ExtractClientIP(req, nil)

	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_InvalidCIDR_Skipped(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	config := &httpx.IPConfig{
		TrustedProxies: []string{"not-a-cidr"},
	}

	ip := httpx.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_GarbageXFFEntries_SkippedForFirstValid(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"

	req.Header.Set("X-Forwarded-For", "unknown, 203.0.113.42, 10.0.0.5")

	config := &httpx.IPConfig{
		TrustedProxies: []string{"10.0.0.0/8"},
	}

	ip := httpx.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.42", ip)
}

func TestExtractClientIP_IPv6(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "[::1]:54321"

	req.Header.Set("X-Forwarded-For", "2001:db8::1")

	config := &httpx.IPConfig{
		TrustedProxies: []string{"::1/128"},
	}

	ip := httpx.ExtractClientIP(req, config)

	assert.Equal(t, "2001:db8::1", ip)
}

func TestExtractClientIP_StripsPort(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	ip := httpx.ExtractClientIP(req, &httpx.IPConfig{})

	assert.Equal(t, "203.0.113.10", ip)
}
