package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RawRecord is one order or fee event as returned by the brokerage. The
// order-history endpoint has no stable schema; the same concept can arrive
// under several field names, so access goes through ordered probes.
type RawRecord map[string]any

// Envelope is one decoded page of order history. The endpoint has shipped
// three shapes over time: a bare array, an object with an "items" key, and
// an object with a "data" key whose list is sometimes nested one level
// further.
type Envelope = any

// Probe returns the value of the first candidate key that is present with a
// non-nil value. The candidate order is a contract: it encodes which field
// aliases win when the API sends more than one.
func (r RawRecord) Probe(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// ProbeString returns the first present non-nil candidate rendered as a
// trimmed string.
func (r RawRecord) ProbeString(keys ...string) (string, bool) {
	v, ok := r.Probe(keys...)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(stringify(v)), true
}

// ProbeFloat returns the first present non-nil candidate coerced to a
// float64. A present but non-numeric value reports ok=false, same as an
// absent field; callers treat both as a zero contribution.
func (r RawRecord) ProbeFloat(keys ...string) (float64, bool) {
	v, ok := r.Probe(keys...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

var numericRe = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// IsNumericString reports whether s, after trimming, is entirely numeric:
// digits with an optional single leading minus and a single decimal point.
func IsNumericString(s string) bool {
	return numericRe.MatchString(strings.TrimSpace(s))
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
