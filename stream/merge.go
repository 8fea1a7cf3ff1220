package stream

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Merge interleaves two event sources using first-ready scheduling: whichever
// source has a pending event is drained first, ties broken in favor of the
// primary. The merged stream's Result adopts the primary's, so exactly one
// terminal signal reaches the consumer.
//
// The secondary exists for visibility, not completeness: the moment the
// primary ends, the secondary is detached and its still-buffered events are
// dropped.
func Merge(ctx context.Context, primary, secondary *Stream) *Stream {
	out := New(cap(primary.events) + cap(secondary.events))
	out.result.Adopt(primary.result)

	var g errgroup.Group
	g.Go(func() error {
		defer out.CloseSend()
		defer secondary.Close()

		p, s := primary.events, secondary.events
		for p != nil {
			// Prefer the primary when both have a pending event.
			select {
			case ev, ok := <-p:
				if !ok {
					p = nil
					continue
				}
				if err := out.Send(ctx, ev); err != nil {
					return err
				}
				continue
			default:
			}

			select {
			case ev, ok := <-p:
				if !ok {
					p = nil
					continue
				}
				if err := out.Send(ctx, ev); err != nil {
					return err
				}
			case ev, ok := <-s:
				if !ok {
					// Secondary exhausted; keep draining the primary only.
					s = nil
					continue
				}
				if err := out.Send(ctx, ev); err != nil {
					return err
				}
			}
		}
		return nil
	})

	// The forwarder's error (consumer detach or cancellation) needs no
	// surfacing: the Result settles through the primary regardless.
	go func() { _ = g.Wait() }()

	return out
}
