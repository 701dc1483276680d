// Package stream implements the small set of cold vote-stream combinators
// the streaming evaluation tier is built from. Every stream is a function
// that opens a fresh subscription per call and closes its channel when the
// context is cancelled or the stream completes.
package stream

import (
	"context"
	"sync"

	arbiter_errors "github.com/dev-sgill/arbiter/api/errors"
	"github.com/dev-sgill/arbiter/api/pdp/model"
)

// Just emits a single vote and completes.
func Just(v model.Vote) model.VoteStream {
	return func(ctx context.Context) <-chan model.Vote {
		out := make(chan model.Vote, 1)
		out <- v
		close(out)
		return out
	}
}

// Map transforms every emission of s with f.
func Map(s model.VoteStream, f func(model.Vote) model.Vote) model.VoteStream {
	return func(ctx context.Context) <-chan model.Vote {
		out := make(chan model.Vote)
		go func() {
			defer close(out)
			for v := range s(ctx) {
				select {
				case out <- f(v):
				case <-ctx.Done():
					return
				}
			}
		}()
		return out
	}
}

// CombineLatest subscribes to all streams and emits combine over the latest
// votes. Nothing is emitted until every stream has emitted at least once;
// after that, every upstream emission produces a fresh combined value. The
// slice passed to combine is a copy owned by the callee.
func CombineLatest[T any](streams []model.VoteStream, combine func([]model.Vote) T) func(ctx context.Context) <-chan T {
	return func(ctx context.Context) <-chan T {
		out := make(chan T)
		go func() {
			defer close(out)
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()

			type emission struct {
				idx  int
				vote model.Vote
			}
			mux := make(chan emission)
			var wg sync.WaitGroup
			for i, s := range streams {
				wg.Add(1)
				go func(i int, s model.VoteStream) {
					defer wg.Done()
					for v := range s(cctx) {
						select {
						case mux <- emission{idx: i, vote: v}:
						case <-cctx.Done():
							return
						}
					}
				}(i, s)
			}
			go func() {
				wg.Wait()
				close(mux)
			}()

			latest := make([]model.Vote, len(streams))
			seen := make([]bool, len(streams))
			pending := len(streams)
			for e := range mux {
				if !seen[e.idx] {
					seen[e.idx] = true
					pending--
				}
				latest[e.idx] = e.vote
				if pending > 0 {
					continue
				}
				snapshot := make([]model.Vote, len(latest))
				copy(snapshot, latest)
				select {
				case out <- combine(snapshot):
				case <-ctx.Done():
					return
				}
			}
		}()
		return out
	}
}

// SwitchMap subscribes to source and, for every emission, switches to the
// stream projected from it, cancelling the previous inner subscription.
// When source completes the last inner stream keeps running until it
// completes itself.
func SwitchMap(source model.VoteStream, project func(model.Vote) model.VoteStream) model.VoteStream {
	return func(ctx context.Context) <-chan model.Vote {
		return SwitchTo(source, func(v model.Vote) func(context.Context) <-chan model.Vote {
			return project(v)
		})(ctx)
	}
}

// SwitchTo is SwitchMap with a free projected element type, for pipelines
// whose inner streams carry something other than votes.
func SwitchTo[T any](source model.VoteStream, project func(model.Vote) func(context.Context) <-chan T) func(context.Context) <-chan T {
	return func(ctx context.Context) <-chan T {
		out := make(chan T)
		go func() {
			defer close(out)

			var innerCancel context.CancelFunc
			var innerDone chan struct{}
			defer func() {
				if innerCancel != nil {
					innerCancel()
				}
			}()

			forward := func(ictx context.Context, s func(context.Context) <-chan T, done chan struct{}) {
				defer close(done)
				for v := range s(ictx) {
					select {
					case out <- v:
					case <-ictx.Done():
						return
					}
				}
			}

			src := source(ctx)
			for {
				select {
				case <-ctx.Done():
					if innerDone != nil {
						innerCancel()
						<-innerDone
					}
					return
				case v, ok := <-src:
					if !ok {
						// Source is done, drain the active inner stream.
						if innerDone != nil {
							<-innerDone
						}
						return
					}
					if innerDone != nil {
						innerCancel()
						<-innerDone
					}
					ictx, cancel := context.WithCancel(ctx)
					innerCancel = cancel
					innerDone = make(chan struct{})
					go forward(ictx, project(v), innerDone)
				}
			}
		}()
		return out
	}
}

// First blocks until s emits once and returns that vote. The subscription
// is torn down before returning.
func First(ctx context.Context, s model.VoteStream) (model.Vote, error) {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	select {
	case v, ok := <-s(sctx):
		if !ok {
			if err := ctx.Err(); err != nil {
				return model.Vote{}, err
			}
			return model.Vote{}, arbiter_errors.ErrNoDecision
		}
		return v, nil
	case <-ctx.Done():
		return model.Vote{}, ctx.Err()
	}
}
