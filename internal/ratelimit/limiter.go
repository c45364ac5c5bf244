package ratelimit

import "context"

// Throttle enforces a minimum interval between submission rounds for a
// scope (module name), so an accidentally retriggered batch does not
// hammer the upstream system.
type Throttle interface {
	// Acquire reports whether a round may start now for the scope.
	Acquire(ctx context.Context, scope string) (bool, error)
	// Wait blocks until a round may start or the context ends.
	Wait(ctx context.Context, scope string) error
}
