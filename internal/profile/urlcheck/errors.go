package urlcheck

import "fmt"

// Reason classifies a validation failure.
type Reason string

const (
	EmptyInput      Reason = "empty_input"
	MalformedURL    Reason = "malformed_url"
	UntrustedHost   Reason = "untrusted_host"
	UnsupportedPath Reason = "unsupported_path"
	InsecureScheme  Reason = "insecure_scheme"
)

var reasonMessages = map[Reason]string{
	EmptyInput:      "profile url is required",
	MalformedURL:    "profile url is not a valid absolute url",
	UntrustedHost:   "profile url must point to " + CanonicalDomain,
	UnsupportedPath: "profile url must start with /in/, /company/ or /pub/",
	InsecureScheme:  "profile url must use https",
}

// Message is the client-facing description of r.
func (r Reason) Message() string {
	return reasonMessages[r]
}

// ValidationError is returned by Validate.
type ValidationError struct {
	Reason Reason
	Input  string
}

func newError(reason Reason, input string) *ValidationError {
	return &ValidationError{Reason: reason, Input: input}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message())
}

// Message is the client-facing description of the failure.
func (e *ValidationError) Message() string {
	return e.Reason.Message()
}
