package notify

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Fanout delivers each notification to every relay concurrently and
// returns the first error.
type Fanout struct {
	relays []Relay
}

func NewFanout(relays ...Relay) *Fanout {
	return &Fanout{relays: relays}
}

func (f *Fanout) Notify(ctx context.Context, n Notification) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range f.relays {
		g.Go(func() error {
			return r.Notify(ctx, n)
		})
	}
	return g.Wait()
}
