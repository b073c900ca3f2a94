package audit

import (
	"context"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/batch"
	"streamgate/pkg/retry"

	"go.uber.org/zap"
)

// Dispatcher decouples request handlers from the audit transport: events are
// batched and delivered asynchronously with bounded retries. Audit delivery
// must never slow down or fail an artifact fetch.
type Dispatcher struct {
	sink    ports.AuditSink
	batcher *batch.Batcher
	logger  *zap.SugaredLogger
}

type eventOp struct {
	sink  ports.AuditSink
	retry retry.Config
	event domain.AuditEvent
}

func (op eventOp) Execute(ctx context.Context) error {
	return retry.Retry(ctx, op.retry, func() error {
		return op.sink.Record(ctx, op.event)
	})
}

type batchProcessor struct {
	logger *zap.SugaredLogger
}

func (p *batchProcessor) ProcessBatch(ctx context.Context, ops []batch.Operation) error {
	for _, op := range ops {
		if err := op.Execute(ctx); err != nil {
			p.logger.Warnw("audit event delivery failed", "error", err)
		}
	}
	return nil
}

func NewDispatcher(sink ports.AuditSink, batchSize int, flushInterval time.Duration, logger *zap.SugaredLogger) *Dispatcher {
	d := &Dispatcher{logger: logger}
	d.batcher = batch.NewBatcher(batchSize, flushInterval, &batchProcessor{logger: logger})
	d.sink = sink
	return d
}

func (d *Dispatcher) Record(ctx context.Context, event domain.AuditEvent) error {
	return d.batcher.Add(eventOp{
		sink: d.sink,
		retry: retry.Config{
			Enabled:      true,
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
		event: event,
	})
}

// Close flushes pending events and stops the background loop.
func (d *Dispatcher) Close(ctx context.Context) error {
	err := d.batcher.Flush(ctx)
	d.batcher.Stop()
	return err
}

var _ ports.AuditSink = (*Dispatcher)(nil)
