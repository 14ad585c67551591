// Package canonicalize provides a deterministic, RFC 8785-flavored JSON
// encoding used everywhere a hash must be stable across writer and
// verifier: the audit chain, confirmation binding, and manifest chain all
// hash through this single path. Per the governance core's design notes,
// any deviation between two callers' canonicalization is the leading
// cause of false-positive and false-negative integrity failures, so there
// is exactly one implementation and every subsystem imports it.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// TimePrecision is the fixed fractional-second precision used when a
// time.Time is canonicalized, per the spec's "fixed fractional precision"
// requirement. Callers that embed timestamps in hashed structures should
// route them through Time() rather than relying on json.Marshal's default
// (nanosecond, locale-independent but not fixed-width) formatting.
const TimePrecision = time.Microsecond

// Time renders t as a fixed-precision, UTC, RFC3339 string suitable for
// inclusion in canonicalized records.
func Time(t time.Time) string {
	return t.UTC().Truncate(TimePrecision).Format("2006-01-02T15:04:05.000000Z")
}

// JCS returns the canonical JSON encoding of v: object keys sorted by
// UTF-8 byte order, no HTML escaping, no insignificant whitespace, and
// numbers preserved via json.Number so round-tripping through
// map[string]interface{} cannot perturb them.
func JCS(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: pre-marshal failed: %w", err)
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(intermediate))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: intermediate decode failed: %w", err)
	}

	return marshalRecursive(generic)
}

// Hash returns the raw SHA-256 digest of the canonical encoding of v;
// HashHex is the hex-string form.
func Hash(v interface{}) ([32]byte, error) {
	b, err := JCS(v)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// HashHex is Hash rendered as a lowercase hex string.
func HashHex(v interface{}) (string, error) {
	h, err := Hash(v)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h[:]), nil
}

// HashBytes hashes raw bytes directly, for callers (pkg/evidence's
// artifact digests and bundle hash) that already hold the exact bytes to
// hash rather than a value to pass through JCS.
func HashBytes(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func marshalRecursive(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case bool:
		if t {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case json.Number:
		return []byte(t.String()), nil
	case string:
		if err := enc.Encode(t); err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
	case []interface{}:
		buf.Reset()
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalRecursive(elem)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]interface{}:
		buf.Reset()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalRecursive(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')

			vb, err := marshalRecursive(t[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
	}
}
