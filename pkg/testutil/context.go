package testutil

import (
	"net/http"

	"badguys/pkg/domain"
	"badguys/pkg/requestcontext"
)

// WithActor attaches an actor to the request context, as the auth middleware
// does for requests carrying a valid bearer token.
func WithActor(req *http.Request, actor domain.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// AdminActor returns a signed-in admin with a fresh id.
func AdminActor() domain.Actor {
	return domain.Actor{ID: domain.NewUserID(), Email: "admin@example.com", Role: domain.RoleAdmin}
}

// UserActor returns a signed-in regular user with a fresh id.
func UserActor() domain.Actor {
	return domain.Actor{ID: domain.NewUserID(), Email: "user@example.com", Role: domain.RoleUser}
}
