// Package subdomain turns request hosts into tenant identifiers. Everything
// here is pure so it can run at the edge before any store is reachable.
package subdomain

import (
	"errors"
	"net"
	"regexp"
	"strings"
)

const (
	MinLength = 2
	MaxLength = 63
)

var (
	ErrInvalid  = errors.New("subdomain must be 2-63 lowercase letters, digits or hyphens and may not start or end with a hyphen")
	ErrReserved = errors.New("subdomain is reserved")
)

var validPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

var reserved = map[string]struct{}{
	"www": {}, "api": {}, "admin": {}, "app": {}, "mail": {}, "smtp": {}, "imap": {}, "pop": {},
	"ftp": {}, "cdn": {}, "static": {}, "assets": {}, "dashboard": {}, "portal": {}, "status": {},
	"support": {}, "help": {}, "docs": {}, "blog": {}, "dev": {}, "staging": {}, "test": {},
	"billing": {}, "auth": {}, "login": {}, "root": {}, "ns1": {}, "ns2": {},
}

// IsReserved reports whether id is kept back for infrastructure use.
func IsReserved(id string) bool {
	_, ok := reserved[strings.ToLower(id)]
	return ok
}

// Validate checks that id is usable as a tenant identifier.
func Validate(id string) error {
	if len(id) < MinLength || len(id) > MaxLength || !validPattern.MatchString(id) {
		return ErrInvalid
	}
	if IsReserved(id) {
		return ErrReserved
	}
	return nil
}

// Sanitize derives a candidate identifier from free text such as a business
// name. The result may still fail Validate (too short, reserved).
func Sanitize(s string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	out := strings.Trim(b.String(), "-")
	if len(out) > MaxLength {
		out = strings.TrimRight(out[:MaxLength], "-")
	}
	return out
}

// Extract returns the tenant identifier carried by host, if any.
//
// Hosts under localhost always yield their first label. When rootDomain is
// set, only hosts below it carry a tenant; otherwise any host with more than
// two labels does. Reserved and malformed identifiers yield nothing.
func Extract(host, rootDomain string) (string, bool) {
	host = normalizeHost(host)
	if host == "" || net.ParseIP(host) != nil {
		return "", false
	}

	labels := strings.Split(host, ".")
	var candidate string

	switch {
	case labels[len(labels)-1] == "localhost":
		if len(labels) < 2 {
			return "", false
		}
		candidate = labels[0]
	case rootDomain != "":
		root := normalizeHost(rootDomain)
		if host == root || !strings.HasSuffix(host, "."+root) {
			return "", false
		}
		prefix := strings.TrimSuffix(host, "."+root)
		candidate = strings.SplitN(prefix, ".", 2)[0]
	case len(labels) > 2:
		candidate = labels[0]
	default:
		return "", false
	}

	if Validate(candidate) != nil {
		return "", false
	}
	return candidate, true
}

func normalizeHost(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(raw); err == nil {
		raw = h
	}
	return strings.TrimSuffix(raw, ".")
}
