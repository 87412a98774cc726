package audit

import "context"

// Store is an append-only audit sink.
type Store interface {
	Append(ctx context.Context, event Event) error
}
