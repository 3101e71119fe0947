package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxSearchTermLogLength is the longest user search text written to logs
	MaxSearchTermLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Authorization header values: "ApiKey <base64>", "Basic <base64>", "Bearer <token>"
	authHeaderPattern = regexp.MustCompile(`(?i)\b(ApiKey|Basic|Bearer)\s+[A-Za-z0-9+/=._-]{8,}`)

	// api_key=xxx style parameters
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// user:pass@ userinfo in URLs; the host is kept
	userInfoPattern = regexp.MustCompile(`://[^/\s:@]+:[^@\s]+@`)
)

// SanitizeConnectionString removes credentials from a database DSN or a search
// backend URL. Use this before logging any address.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = userInfoPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
	return sanitized
}

// SanitizeError sanitizes error messages that might contain credentials.
// Backend transport errors can echo the request URL or headers.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = authHeaderPattern.ReplaceAllString(sanitized, "${1} "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = userInfoPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
	return sanitized
}

// SanitizeSearchTerm prepares free text typed by a user for a log field:
// control characters are flattened to spaces and the result is truncated.
func SanitizeSearchTerm(term string) string {
	if term == "" {
		return ""
	}
	flat := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, term)
	return TruncateString(strings.TrimSpace(flat), MaxSearchTermLogLength)
}

// TruncateString truncates a string to maxLen bytes and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
