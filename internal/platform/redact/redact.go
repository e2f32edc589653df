// Package redact sanitizes SNMP credentials and other secrets out of
// strings before they reach a log line or an HTTP error body. Spec §4.4:
// "credentials never appear in logs, even in error messages".
package redact

import (
	"regexp"
	"strings"
)

type pattern struct {
	re   *regexp.Regexp
	mask string
}

var patterns = []pattern{
	{regexp.MustCompile(`(?i)(community)\s*[:=]\s*['"]?([^'"\s]+)['"]?`), "$1=[REDACTED_COMMUNITY]"},
	{regexp.MustCompile(`(?i)(auth[_-]?(?:key|passphrase|password))\s*[:=]\s*['"]?([^'"\s]+)['"]?`), "$1=[REDACTED_AUTH]"},
	{regexp.MustCompile(`(?i)(priv[_-]?(?:key|passphrase|password))\s*[:=]\s*['"]?([^'"\s]+)['"]?`), "$1=[REDACTED_PRIV]"},
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-\.]{10,}`), "Bearer [REDACTED_TOKEN]"},
}

var sensitiveKeys = []string{
	"community", "auth_key", "authkey", "auth_passphrase", "priv_key",
	"privkey", "priv_passphrase", "password", "secret", "token",
}

// String masks every known secret pattern inside s.
func String(s string) string {
	if s == "" {
		return s
	}
	out := s
	for _, p := range patterns {
		out = p.re.ReplaceAllString(out, p.mask)
	}
	return out
}

// Error masks an error's message, preserving nothing of the original text
// for any matched secret pattern.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// IsSensitiveKey reports whether a field/key name suggests it carries a
// secret and its value should never be logged verbatim.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Fields redacts the values of any sensitive keys in a structured log/field
// map, leaving non-sensitive values untouched (still pattern-scanned).
func Fields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsSensitiveKey(k) {
			out[k] = "[REDACTED]"
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = String(s)
		} else {
			out[k] = v
		}
	}
	return out
}
