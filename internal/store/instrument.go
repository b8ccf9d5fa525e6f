package store

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
	"github.com/dropDatabas3/userdal/internal/metrics"
	"github.com/dropDatabas3/userdal/internal/observability/logger"
	"github.com/dropDatabas3/userdal/internal/reqctx"
)

// Instrument envuelve un repositorio con métricas Prometheus y logging
// estructurado. Es transparente: propaga cada resultado y error sin
// alterarlos. Se aplica una sola vez, al abrir la conexión.
func Instrument(repo repository.UserRepository, adapter string) repository.UserRepository {
	return &instrumented{repo: repo, adapter: adapter}
}

type instrumented struct {
	repo    repository.UserRepository
	adapter string
}

func (i *instrumented) observe(ctx context.Context, op string, start time.Time, err error) {
	metrics.StoreOpDuration.WithLabelValues(i.adapter, op).Observe(time.Since(start).Seconds())
	if err != nil {
		kind := repository.Kind(err)
		metrics.StoreOpErrors.WithLabelValues(i.adapter, op, kind).Inc()
		logger.From(ctx).Debug("store op failed",
			logger.Adapter(i.adapter),
			logger.Op(op),
			logger.String("kind", kind),
			logger.CorrelationID(reqctx.CorrelationID(ctx)),
			logger.Err(err),
		)
	}
}

func (i *instrumented) Create(ctx context.Context, u *repository.User) (*repository.User, error) {
	start := time.Now()
	out, err := i.repo.Create(ctx, u)
	i.observe(ctx, "create", start, err)
	return out, err
}

func (i *instrumented) Find(ctx context.Context, f repository.Filter) ([]*repository.User, error) {
	start := time.Now()
	out, err := i.repo.Find(ctx, f)
	i.observe(ctx, "find", start, err)
	return out, err
}

func (i *instrumented) Update(ctx context.Context, f repository.Filter, patch repository.Update) (*repository.UpdateOutcome, error) {
	start := time.Now()
	out, err := i.repo.Update(ctx, f, patch)
	i.observe(ctx, "update", start, err)
	return out, err
}

func (i *instrumented) Delete(ctx context.Context, f repository.Filter) (int64, error) {
	start := time.Now()
	n, err := i.repo.Delete(ctx, f)
	i.observe(ctx, "delete", start, err)
	return n, err
}

func (i *instrumented) Aggregate(ctx context.Context, p *repository.Pipeline) ([]repository.Document, error) {
	start := time.Now()
	out, err := i.repo.Aggregate(ctx, p)
	i.observe(ctx, "aggregate", start, err)
	return out, err
}

func (i *instrumented) Watch(ctx context.Context, f repository.Filter, opts repository.WatchOptions) (repository.ChangeStream, error) {
	start := time.Now()
	cs, err := i.repo.Watch(ctx, f, opts)
	i.observe(ctx, "watch", start, err)
	if err != nil {
		return nil, err
	}
	metrics.StoreOpenStreams.WithLabelValues(i.adapter).Inc()
	return &instrumentedStream{ChangeStream: cs, adapter: i.adapter}, nil
}

// instrumentedStream decrementa el gauge de streams abiertos al cerrar.
// Close admite llamadas concurrentes, igual que el stream que envuelve:
// el decremento ocurre exactamente una vez.
type instrumentedStream struct {
	repository.ChangeStream
	adapter   string
	closeOnce sync.Once
}

func (s *instrumentedStream) Close() error {
	s.closeOnce.Do(func() {
		metrics.StoreOpenStreams.WithLabelValues(s.adapter).Dec()
	})
	return s.ChangeStream.Close()
}
