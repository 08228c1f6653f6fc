package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into domain errors:
//   - ErrNotFound: no record matches the lookup key
//   - ErrAlreadyUsed: a unique key (profile URL, account email) is already taken
//   - ErrUnavailable: the backing store or cache could not be reached
//
// Input validation belongs in pkg/domain-errors, not here.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
