package pipeline

import (
	"context"

	"github.com/conveyr/conveyr/internal/concurrency"
	"github.com/conveyr/conveyr/pkg/dataset"
)

// Sink receives every resolved batch before it is delivered to the caller,
// e.g. to feed a consumption channel alongside the stream. A non-nil error
// aborts the current run.
type Sink interface {
	Accept(ctx context.Context, b dataset.Batch) error
}

// ChannelSink forwards resolved batches to a channel.
type ChannelSink struct {
	ch chan<- dataset.Batch
}

var _ Sink = (*ChannelSink)(nil)

// NewChannelSink returns a sink feeding ch. The consumer of ch provides
// the backpressure: Accept blocks until the batch is taken or the run is
// canceled.
func NewChannelSink(ch chan<- dataset.Batch) *ChannelSink {
	return &ChannelSink{ch: ch}
}

func (s *ChannelSink) Accept(ctx context.Context, b dataset.Batch) error {
	if !concurrency.TrySendThroughChannel(ctx, b, s.ch) {
		return ctx.Err()
	}
	return nil
}
