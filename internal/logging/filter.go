// Package logging provides logger construction and sensitive data filtering.
// This package contains hooks and utilities for zerolog that help ensure
// secrets from recipe environment overrides are never written to log files.
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue is the replacement string for sensitive data.
const RedactedValue = "[REDACTED]"

// sensitivePatterns contains compiled regular expressions for detecting sensitive values.
// These patterns match common API key, token, and credential formats that tend
// to surface in recipe environment overrides and tool output.
var sensitivePatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // Package-level patterns for reuse
	// GitHub tokens (ghp_, gho_, ghu_, ghs_, ghr_)
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{20,}`),

	// Generic API keys (any string with api_key, apikey, api-key followed by value)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?([a-zA-Z0-9_-]{16,})["']?`),

	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_-]{20,}`),

	// Authorization headers with tokens
	regexp.MustCompile(`(?i)authorization\s*[:=]\s*["']?[a-zA-Z0-9_-]{20,}["']?`),

	// Generic secret patterns (secret, password, credential, token with values)
	regexp.MustCompile(`(?i)(secret|password|credential|passwd|pwd)\s*[:=]\s*["']?[^\s"']{8,}["']?`),

	// SSH private keys
	regexp.MustCompile(`(?i)-----BEGIN[A-Z\s]+PRIVATE KEY-----`),

	// Base64-encoded secrets that look like tokens
	regexp.MustCompile(`(?i)(token|auth)\s*[:=]\s*["']?[a-zA-Z0-9+/=]{32,}["']?`),
}

// sensitiveFieldNames contains field names whose values are always redacted.
// Matching is case-insensitive.
var sensitiveFieldNames = []string{ //nolint:gochecknoglobals // Package-level patterns for reuse
	"api_key",
	"apikey",
	"api-key",
	"auth_token",
	"authtoken",
	"auth-token",
	"password",
	"passwd",
	"secret",
	"credential",
	"credentials",
	"private_key",
	"privatekey",
	"private-key",
	"access_token",
	"accesstoken",
	"access-token",
	"refresh_token",
	"refreshtoken",
	"refresh-token",
	"bearer",
	"authorization",
	"github_token",
}

// SensitiveDataHook is a zerolog hook that flags log entries carrying
// sensitive data. Zerolog hooks cannot rewrite the message, so the hook
// marks the entry; actual redaction happens at call sites through
// SafeValue and in file output through FilteringWriter.
type SensitiveDataHook struct{}

// NewSensitiveDataHook creates a new SensitiveDataHook.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements the zerolog.Hook interface.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// ContainsSensitiveData checks if a string matches any sensitive data pattern.
func ContainsSensitiveData(s string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue replaces any sensitive pattern matches with [REDACTED].
func FilterSensitiveValue(value string) string {
	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// IsSensitiveFieldName checks if a field name indicates sensitive data.
func IsSensitiveFieldName(fieldName string) bool {
	lowerName := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveFieldNames {
		if lowerName == sensitive || strings.Contains(lowerName, sensitive) {
			return true
		}
	}
	return false
}

// RedactIfSensitive returns [REDACTED] when the field name indicates
// sensitive data, otherwise the pattern-filtered value.
func RedactIfSensitive(fieldName, value string) string {
	if IsSensitiveFieldName(fieldName) {
		return RedactedValue
	}
	return FilterSensitiveValue(value)
}

// SafeValue returns a filtered value for a field, redacting sensitive data.
//
// Usage:
//
//	logger.Info().Str("env", logging.SafeValue("github_token", v)).Msg("step environment")
func SafeValue(fieldName, value string) string {
	return RedactIfSensitive(fieldName, value)
}

// SafeEnvironment returns a copy of a step environment map with sensitive
// values redacted, suitable for logging.
func SafeEnvironment(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = RedactIfSensitive(k, v)
	}
	return out
}

// FilteringWriter wraps an io.Writer and filters sensitive data from output.
// It wraps log file writers so sensitive data is never written to disk, even
// if it appears in messages or field values.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter creates a FilteringWriter wrapping the given writer.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer, filtering sensitive data before writing.
// It returns the original length to satisfy the io.Writer contract even
// when redaction changed the byte count.
func (fw *FilteringWriter) Write(p []byte) (n int, err error) {
	filtered := FilterSensitiveValue(string(p))
	if _, err = fw.w.Write([]byte(filtered)); err != nil {
		return 0, err
	}
	return len(p), nil
}
