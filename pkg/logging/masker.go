package logging

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"
)

const maskedValue = "***MASKED***"

// Attribute names whose values are always redacted
var sensitiveFields = []string{
	"authorization", "api_key", "apikey", "token", "secret", "password", "credential",
}

var (
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)
	keyPattern    = regexp.MustCompile(`\b(?:sk|pk|key)[-_][A-Za-z0-9_-]{8,}\b`)
)

// Masker redacts credentials from log attributes and header maps
type Masker struct {
	config MaskingConfig
	fields map[string]bool
}

// NewMasker creates a new masker
func NewMasker(config MaskingConfig) *Masker {
	m := &Masker{
		config: config,
		fields: make(map[string]bool, len(sensitiveFields)+len(config.Fields)),
	}
	for _, f := range sensitiveFields {
		m.fields[f] = true
	}
	for _, f := range config.Fields {
		m.fields[strings.ToLower(f)] = true
	}
	return m
}

// MaskAttr masks sensitive data in a log attribute. Its signature matches
// slog.HandlerOptions.ReplaceAttr.
func (m *Masker) MaskAttr(_ []string, attr slog.Attr) slog.Attr {
	if !m.config.Enabled {
		return attr
	}

	if m.shouldMaskField(attr.Key) {
		return slog.String(attr.Key, maskedValue)
	}

	if attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, m.MaskString(attr.Value.String()))
	}

	return attr
}

func (m *Masker) shouldMaskField(field string) bool {
	field = strings.ToLower(field)
	if m.fields[field] {
		return true
	}
	return strings.HasSuffix(field, "_token") || strings.HasSuffix(field, "_key")
}

// MaskString redacts bearer tokens and key-shaped substrings
func (m *Masker) MaskString(s string) string {
	if !m.config.MaskAPIKeys {
		return s
	}
	s = bearerPattern.ReplaceAllString(s, "Bearer "+maskedValue)
	return keyPattern.ReplaceAllStringFunc(s, maskKey)
}

// MaskHeader returns a copy of h that is safe to log
func (m *Masker) MaskHeader(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		return http.Header{}
	}
	for name := range out {
		if m.shouldMaskField(strings.ReplaceAll(name, "-", "_")) {
			out[name] = []string{maskedValue}
		}
	}
	return out
}

// maskKey keeps the first and last two characters so keys stay recognisable
func maskKey(key string) string {
	if len(key) <= 4 {
		return "***"
	}
	return key[:2] + strings.Repeat("*", len(key)-4) + key[len(key)-2:]
}
