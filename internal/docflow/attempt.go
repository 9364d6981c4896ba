package docflow

import (
	"context"

	"github.com/google/uuid"
)

type attemptKey struct{}

// WithAttempt marks ctx as one submission attempt. A ctx that already
// carries an attempt is returned unchanged, so a host retrying a failed
// call with the same ctx reuses its attempt.
func WithAttempt(ctx context.Context) context.Context {
	if _, ok := AttemptFrom(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, attemptKey{}, uuid.New())
}

// AttemptFrom returns the attempt carried by ctx.
func AttemptFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(attemptKey{}).(uuid.UUID)
	return id, ok
}
