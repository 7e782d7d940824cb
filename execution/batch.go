package execution

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/tradegate/signal"
)

// Outcome pairs a signal with what happened to it.
type Outcome struct {
	Signal signal.Signal `json:"signal"`
	Result Result        `json:"result"`
	Err    error         `json:"-"`
}

// Run executes signals with at most workers in flight and returns one
// Outcome per signal, in input order. Signals not yet started when ctx
// is cancelled fail with ctx's error.
func (o *Orchestrator) Run(ctx context.Context, signals []signal.Signal, workers int) []Outcome {
	if workers < 1 {
		workers = 1
	}
	out := make([]Outcome, len(signals))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, sig := range signals {
		i, sig := i, sig
		out[i].Signal = sig
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			out[i].Result, out[i].Err = o.ExecuteSignal(ctx, sig)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
