// Package redact strips sensitive headers and credential patterns from
// captured traffic archives and structured logs before they ever reach
// an EvidenceBundle. A secondary scan verifies nothing blocklisted
// survived; construction of the bundle fails if it did — no evidence
// bundle is ever built from unredacted content.
package redact

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sentryline/guardcore/pkg/guarderr"
)

// Sentinel is the fixed replacement string for redacted values.
const Sentinel = "[REDACTED]"

// blockedHeaders is the case-insensitive header-name blocklist.
var blockedHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"x-csrf-token":        true,
	"x-session-id":        true,
}

// headerNamePattern catches header names not in the literal blocklist
// but that look like credentials by name.
var headerNamePattern = regexp.MustCompile(`(?i)(api[-_]?key|token|secret|password|auth)`)

// bodyFieldPattern is the same name heuristic applied to JSON/form field
// names.
var bodyFieldPattern = headerNamePattern

var (
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]+`)
	jwtPattern    = regexp.MustCompile(`\b[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`)
	awsKeyPattern = regexp.MustCompile(`AKIA[0-9A-Z]{16}`)
)

// IsSensitiveHeaderName reports whether a header name is on the
// blocklist or matches the credential-name heuristic.
func IsSensitiveHeaderName(name string) bool {
	lower := strings.ToLower(name)
	if blockedHeaders[lower] {
		return true
	}
	return headerNamePattern.MatchString(name)
}

// HARHeader is the minimal shape of an HTTP Archive header entry.
type HARHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RedactHeaders returns a copy of headers with the value of every
// sensitive header replaced by Sentinel; the input slice is not modified.
func RedactHeaders(headers []HARHeader) []HARHeader {
	out := make([]HARHeader, len(headers))
	for i, h := range headers {
		out[i] = h
		if IsSensitiveHeaderName(h.Name) {
			out[i].Value = Sentinel
		}
	}
	return out
}

// RedactBody applies the body credential patterns to raw text content:
// bearer tokens, JWTs, AWS access key ids, and any JSON/form field whose
// name matches the credential heuristic. Byte length of the replacement
// need not match the original.
func RedactBody(body string) string {
	body = bearerPattern.ReplaceAllString(body, "Bearer "+Sentinel)
	body = awsKeyPattern.ReplaceAllString(body, Sentinel)
	body = jwtPattern.ReplaceAllString(body, Sentinel)
	body = redactJSONFields(body)
	return body
}

// redactJSONFields best-effort parses body as JSON and replaces the
// value of any object field whose name matches the credential heuristic.
// If body does not parse as JSON it is returned unchanged (RedactBody's
// other passes still apply to it as plain text).
func redactJSONFields(body string) string {
	var generic interface{}
	if err := json.Unmarshal([]byte(body), &generic); err != nil {
		return body
	}
	redacted := redactValue(generic)
	out, err := json.Marshal(redacted)
	if err != nil {
		return body
	}
	return string(out)
}

func redactValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if bodyFieldPattern.MatchString(k) {
				out[k] = Sentinel
			} else {
				out[k] = redactValue(val)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = redactValue(val)
		}
		return out
	default:
		return v
	}
}

// Verify scans already-redacted content for any surviving blocklisted
// header value or known credential pattern. It is the mandatory
// second-layer check: EvidenceBundle construction must fail, not merely
// warn, if Verify finds a remnant.
func Verify(headers []HARHeader, body string) error {
	for _, h := range headers {
		if IsSensitiveHeaderName(h.Name) && h.Value != Sentinel && h.Value != "" {
			return guarderr.New(guarderr.KindUnredactedEvidence, "header "+h.Name+" was not redacted")
		}
	}
	if bearerPattern.MatchString(body) {
		return guarderr.New(guarderr.KindUnredactedEvidence, "bearer token pattern survived redaction")
	}
	if awsKeyPattern.MatchString(body) {
		return guarderr.New(guarderr.KindUnredactedEvidence, "AWS access key pattern survived redaction")
	}
	if jwtPattern.MatchString(body) {
		return guarderr.New(guarderr.KindUnredactedEvidence, "JWT-shaped token survived redaction")
	}
	if hasUnredactedJSONField(body) {
		return guarderr.New(guarderr.KindUnredactedEvidence, "credential-named JSON field survived redaction")
	}
	return nil
}

func hasUnredactedJSONField(body string) bool {
	var generic interface{}
	if err := json.Unmarshal([]byte(body), &generic); err != nil {
		return false
	}
	return containsUnredactedField(generic)
}

func containsUnredactedField(v interface{}) bool {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if bodyFieldPattern.MatchString(k) {
				if s, ok := val.(string); !ok || s != Sentinel {
					return true
				}
			}
			if containsUnredactedField(val) {
				return true
			}
		}
	case []interface{}:
		for _, val := range t {
			if containsUnredactedField(val) {
				return true
			}
		}
	}
	return false
}
