// Package mlog wraps lib-commons structured logging with sanitization and
// per-call wide-event accumulation for the accounting core.
package mlog

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/url"
	"regexp"
	"strings"
)

const (
	maxHeaderLength    = 256
	maxQueryLength     = 4096
	maxPathLength      = 2048
	maxCustomKeys      = 50
	maxCustomKeyLen    = 64
	maxCustomValueLen  = 1024
	maxErrorMessageLen = 500
)

const redacted = "[REDACTED]"

var sensitiveQueryParams = map[string]struct{}{
	"token":         {},
	"api_key":       {},
	"apikey":        {},
	"password":      {},
	"secret":        {},
	"authorization": {},
	"access_token":  {},
	"refresh_token": {},
	"session_id":    {},
	"jwt":           {},
	"client_secret": {},
}

// sanitizeQueryParams redacts sensitive query parameter values, preserving
// the rest of the query string structure.
func sanitizeQueryParams(raw string) string {
	if raw == "" {
		return ""
	}

	if len(raw) > maxQueryLength {
		raw = raw[:maxQueryLength]
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return "[invalid_query]"
	}

	for key := range values {
		if _, sensitive := sensitiveQueryParams[strings.ToLower(key)]; sensitive {
			values[key] = []string{redacted}
		}
	}

	return values.Encode()
}

var (
	connectionStringPattern = regexp.MustCompile(`(?i)\b(postgres|postgresql|mysql|mongodb|redis|amqp)://\S+`)
	filePathPattern         = regexp.MustCompile(`\S*\.(go|json|ya?ml|env|pem|key|crt)\b`)
	emailPattern            = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.\w+`)
	ssnPattern              = regexp.MustCompile(`\b\d{3}[-. ]\d{2}[-. ]\d{4}\b`)
	phonePattern            = regexp.MustCompile(`\b\d{3}[-. ]\d{3}[-. ]\d{4}\b`)
	creditCardPattern       = regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)
	dsnPattern              = regexp.MustCompile(`(?i)\b(dsn|driver)=\S+`)
	pemBlockPattern         = regexp.MustCompile(`-----BEGIN [^-]+-----[\s\S]*?-----END [^-]+-----`)
)

// sanitizeErrorMessage strips connection strings, file paths, PII-shaped
// patterns, and PEM blocks from an error message before it is logged.
func sanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	msg = pemBlockPattern.ReplaceAllString(msg, redacted)
	msg = connectionStringPattern.ReplaceAllString(msg, redacted)
	msg = dsnPattern.ReplaceAllString(msg, redacted)
	msg = filePathPattern.ReplaceAllString(msg, redacted)
	msg = emailPattern.ReplaceAllString(msg, redacted)
	msg = ssnPattern.ReplaceAllString(msg, redacted)
	msg = phonePattern.ReplaceAllString(msg, redacted)
	msg = creditCardPattern.ReplaceAllString(msg, redacted)

	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen] + "...[truncated]"
	}

	return msg
}

// sanitizeHeader bounds a header value's length without altering its content.
func sanitizeHeader(header string) string {
	if len(header) > maxHeaderLength {
		return header[:maxHeaderLength] + "...[truncated]"
	}

	return header
}

// sanitizePath strips control characters from a request path and bounds its length.
func sanitizePath(path string) string {
	if path == "" {
		return ""
	}

	clean := strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}

		return r
	}, path)

	if len(clean) > maxPathLength {
		clean = clean[:maxPathLength] + "...[truncated]"
	}

	return clean
}

// anonymizeIP zeroes the host portion of an IP address, preserving the
// network prefix (last octet for IPv4, last 80 bits for IPv6).
func anonymizeIP(ipStr string) string {
	if ipStr == "" {
		return ""
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "invalid"
	}

	if v4 := ip.To4(); v4 != nil {
		anon := make(net.IP, net.IPv4len)
		copy(anon, v4)
		anon[3] = 0

		return anon.String()
	}

	v6 := ip.To16()
	anon := make(net.IP, net.IPv6len)
	copy(anon, v6[:6])

	return anon.String()
}

// hashIdempotencyKey returns a stable, non-reversible fingerprint of an
// idempotency key suitable for correlating log lines without exposing the
// raw caller-supplied token.
func hashIdempotencyKey(key string) string {
	if key == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])[:16]
}
