package audit

import "context"

// Store is an audit sink. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
}
