package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxQuestionLogLength is the maximum length of a user question to log.
	MaxQuestionLogLength = 120
	// MaxTextLogLength is the maximum length of document text to log.
	MaxTextLogLength = 200
	// RedactedText is the replacement text for sensitive data.
	RedactedText = "[REDACTED]"
)

var (
	// Matches password-like assignments sometimes present in pasted
	// document text (config dumps, connection strings).
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass|secret|token)\s*[:=]\s*[^;&\s]+`)

	// Matches user:pass@host credentials in URLs.
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeQuestion truncates and sanitizes a user question for logging.
func SanitizeQuestion(question string) string {
	return sanitize(question, MaxQuestionLogLength)
}

// SanitizeText truncates and sanitizes document text for logging.
// Uploaded documents routinely contain credentials in pasted config;
// never log them verbatim.
func SanitizeText(text string) string {
	return sanitize(text, MaxTextLogLength)
}

func sanitize(s string, maxLen int) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\n", " ")
	s = TruncateString(s, maxLen)
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = connStringPattern.ReplaceAllString(s, "://"+RedactedText+"@"+RedactedText)
	return s
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
