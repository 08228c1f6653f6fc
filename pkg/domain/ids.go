package domain

import (
	"github.com/google/uuid"

	dErrors "badguys/pkg/domain-errors"
)

// Typed identifiers. Distinct types keep a profile id from being passed where
// an account id is expected; construct them with the Parse functions at trust
// boundaries and with New* inside services.
type (
	UserID    uuid.UUID
	ProfileID uuid.UUID
)

func NewUserID() UserID       { return UserID(uuid.New()) }
func NewProfileID() ProfileID { return ProfileID(uuid.New()) }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id ProfileID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParseUserID parses external input into a UserID.
// Errors: CodeInvalidInput for empty, malformed, or nil UUIDs.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseProfileID parses external input into a ProfileID.
// Errors: CodeInvalidInput for empty, malformed, or nil UUIDs.
func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID(s, "profile id")
	return ProfileID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id ProfileID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *ProfileID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
