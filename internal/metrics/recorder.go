package metrics

import (
	"context"

	"go.uber.org/zap"
)

// Recorder counts invocations without failing the caller.
type Recorder struct {
	store  *Store
	logger *zap.Logger
}

// NewRecorder wraps store. A nil store yields a recorder that does nothing.
func NewRecorder(store *Store, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{store: store, logger: log.Named("usage")}
}

// RecordInvocation increments the count for mode, logging failures.
func (r *Recorder) RecordInvocation(ctx context.Context, mode Mode) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Increment(context.WithoutCancel(ctx), mode); err != nil {
		r.logger.Warn("failed to record invocation", zap.String("mode", string(mode)), zap.Error(err))
	}
}
