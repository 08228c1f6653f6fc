package domain

import dErrors "badguys/pkg/domain-errors"

// Role is the access level of an actor.
// Invariant: the value is one of the roles below; role is opaque to the
// moderation core beyond the admin check.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
)

var validRoles = map[Role]bool{
	RoleAnonymous: true,
	RoleUser:      true,
	RoleAdmin:     true,
}

// ParseRole constructs a Role from external input.
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

func (r Role) IsValid() bool  { return validRoles[r] }
func (r Role) String() string { return string(r) }

// Actor is the caller of an operation. Handlers build it from the request
// context and pass it explicitly into every gated service call.
type Actor struct {
	ID    UserID
	Email string
	Role  Role
}

// Anonymous is the actor for unauthenticated callers.
func Anonymous() Actor {
	return Actor{Role: RoleAnonymous}
}

func (a Actor) IsAnonymous() bool {
	return a.Role == RoleAnonymous || a.Role == "" || a.ID.IsNil()
}

func (a Actor) IsAdmin() bool {
	return !a.IsAnonymous() && a.Role == RoleAdmin
}

// RequireAdmin returns CodeUnauthorized for anonymous actors and CodeForbidden
// for signed-in actors without the admin role.
func (a Actor) RequireAdmin() error {
	if a.IsAnonymous() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if a.Role != RoleAdmin {
		return dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	return nil
}

// RequireSignedIn returns CodeUnauthorized for anonymous actors.
func (a Actor) RequireSignedIn() error {
	if a.IsAnonymous() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return nil
}
