// Package extract resolves fields out of loosely-typed vendor records.
//
// The marketplace reporting API does not guarantee a stable payload shape:
// the same logical field moves between names and nesting depths depending on
// API version and tenant. Callers therefore look fields up through an ordered
// list of candidate dot-paths and take the first present, non-empty value.
package extract

import "strings"

// RawRecord is one vendor record as decoded from JSON. No schema is
// guaranteed; values may be strings, numbers, or nested maps.
type RawRecord = map[string]interface{}

// Get resolves a dot-separated path (e.g. "contactDetails.technicalContact.email")
// against a record. A missing key, a non-map intermediate node, or a malformed
// path resolves to nil, never a panic.
func Get(rec RawRecord, path string) interface{} {
	var cur interface{} = rec
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// missing reports whether a value counts as absent: nil, a blank string,
// an empty slice, or an empty map.
func missing(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	return false
}

// First returns the first non-missing value, or nil if every candidate misses.
// String values are trimmed before being returned.
func First(vals ...interface{}) interface{} {
	for _, v := range vals {
		if missing(v) {
			continue
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return v
	}
	return nil
}

// FirstString is First restricted to string results; non-string hits are
// skipped so a caller asking for text never gets a nested map back.
func FirstString(vals ...interface{}) string {
	for _, v := range vals {
		if missing(v) {
			continue
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// FirstPath resolves each candidate path in order and returns the first
// non-missing value, or nil.
func FirstPath(rec RawRecord, paths ...string) interface{} {
	for _, p := range paths {
		if v := Get(rec, p); !missing(v) {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
			return v
		}
	}
	return nil
}

// FirstPathString is FirstPath restricted to string results.
func FirstPathString(rec RawRecord, paths ...string) string {
	for _, p := range paths {
		v := Get(rec, p)
		if missing(v) {
			continue
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// EmailDomain returns the domain half of an email address, or "" when the
// input does not look like an email.
func EmailDomain(email string) string {
	at := strings.Index(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}
