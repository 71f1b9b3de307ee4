package provider

import (
	"context"
	"time"

	"github.com/binsquare/envline/dotenv"
)

// Snapshot is the content of a namespace plus what the backend knows about
// its age. UpdatedAt is zero when the backend does not track it.
type Snapshot struct {
	Pairs     []dotenv.Pair
	UpdatedAt time.Time
}

// Describer is implemented by providers that can report when a namespace
// last changed.
type Describer interface {
	Describe(ctx context.Context, ns Namespace) (Snapshot, error)
}

// PullSnapshot describes ns when p supports it and otherwise falls back to
// a plain Pull with an unknown UpdatedAt.
func PullSnapshot(ctx context.Context, p Provider, ns Namespace) (Snapshot, error) {
	if d, ok := p.(Describer); ok {
		return d.Describe(ctx, ns)
	}
	pairs, err := p.Pull(ctx, ns)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Pairs: pairs}, nil
}
