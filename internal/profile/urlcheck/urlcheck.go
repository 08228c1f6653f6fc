// Package urlcheck decides whether a string is an acceptable profile reference.
//
// Validate is pure and deterministic. Checks run in a fixed order and the first
// failing check decides the Reason:
//
//	EmptyInput → MalformedURL → UntrustedHost → UnsupportedPath → InsecureScheme
package urlcheck

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalDomain is the registrable domain every accepted URL must belong to.
const CanonicalDomain = "linkedin.com"

// MaxLength bounds the accepted input size.
const MaxLength = 2048

// Kind is the profile family encoded in the path prefix.
type Kind string

const (
	KindPerson  Kind = "in"
	KindCompany Kind = "company"
	KindLegacy  Kind = "pub"
)

var pathPattern = regexp.MustCompile(`^/(in|company|pub)/[\w%.-]+`)

// URL is a validated profile reference. The zero value is not valid.
type URL struct {
	raw        string
	kind       Kind
	identifier string
}

// String returns the accepted input, trimmed but otherwise unchanged.
func (u URL) String() string { return u.raw }

// Kind returns the path family of the reference.
func (u URL) Kind() Kind { return u.kind }

// Identifier returns the last non-empty path segment, e.g. "johndoe" for
// https://linkedin.com/in/johndoe/.
func (u URL) Identifier() string { return u.identifier }

// IsZero reports whether u was produced by a successful Validate.
func (u URL) IsZero() bool { return u.raw == "" }

// Validate checks candidate and returns it as a URL, or a *ValidationError.
func Validate(candidate string) (URL, error) {
	raw := strings.TrimSpace(candidate)
	if raw == "" {
		return URL{}, newError(EmptyInput, candidate)
	}
	if len(raw) > MaxLength {
		return URL{}, newError(MalformedURL, candidate)
	}

	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" || parsed.Opaque != "" {
		return URL{}, newError(MalformedURL, candidate)
	}

	if !trustedHost(parsed) {
		return URL{}, newError(UntrustedHost, candidate)
	}

	m := pathPattern.FindStringSubmatch(parsed.EscapedPath())
	if m == nil {
		return URL{}, newError(UnsupportedPath, candidate)
	}

	if parsed.Scheme != "https" {
		return URL{}, newError(InsecureScheme, candidate)
	}

	return URL{
		raw:        raw,
		kind:       Kind(m[1]),
		identifier: lastSegment(parsed.Path),
	}, nil
}

// trustedHost accepts the canonical domain and its subdomains only. Userinfo
// and explicit ports are refused since neither appears in real profile links.
func trustedHost(u *url.URL) bool {
	if u.User != nil || u.Port() != "" {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return false
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	return registrable == CanonicalDomain
}

func lastSegment(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}
