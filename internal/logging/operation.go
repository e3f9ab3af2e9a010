package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Operation tracks a single backend call (lookup, listing, mutation, URL mint)
// so its outcome and latency land in one log line.
type Operation struct {
	name   string
	logger *slog.Logger
	start  time.Time
	now    func() time.Time
}

// StartOperation derives a context whose logger carries the operation name and a
// fresh operation id.
func StartOperation(ctx context.Context, name string) (context.Context, *Operation) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx).With(
		slog.String("operation", name),
		slog.String("operation_id", uuid.NewString()),
	)

	op := &Operation{
		name:   name,
		logger: logger,
		start:  time.Now(),
		now:    time.Now,
	}
	return WithLogger(ctx, logger), op
}

// End logs completion. Failed operations are logged at warn level; callers decide
// whether the failure is surfaced to the user.
func (o *Operation) End(err error) {
	if o == nil {
		return
	}
	elapsed := o.now().Sub(o.start)
	if err != nil {
		o.logger.Warn("operation failed", slog.Duration("duration", elapsed), slog.String("error", err.Error()))
		return
	}
	o.logger.Debug("operation completed", slog.Duration("duration", elapsed))
}
