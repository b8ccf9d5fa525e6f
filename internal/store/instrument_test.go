package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
	"github.com/dropDatabas3/userdal/internal/metrics"
)

type stubStream struct {
	closes atomic.Int64
}

func (s *stubStream) Next(ctx context.Context) (*repository.ChangeEvent, error) {
	return nil, repository.ErrStreamClosed
}

func (s *stubStream) Close() error {
	s.closes.Add(1)
	return nil
}

type stubRepo struct {
	repository.UserRepository
	stream *stubStream
}

func (r *stubRepo) Watch(ctx context.Context, f repository.Filter, opts repository.WatchOptions) (repository.ChangeStream, error) {
	return r.stream, nil
}

func TestInstrumentedStreamConcurrentCloseDecrementsOnce(t *testing.T) {
	const adapter = "stub-close"
	gauge := metrics.StoreOpenStreams.WithLabelValues(adapter)

	stub := &stubStream{}
	repo := Instrument(&stubRepo{stream: stub}, adapter)

	cs, err := repo.Watch(context.Background(), repository.All(), repository.WatchOptions{})
	require.NoError(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(gauge))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cs.Close()
		}()
	}
	wg.Wait()

	require.Equal(t, 0.0, testutil.ToFloat64(gauge))
	// El Close subyacente sí se propaga en cada llamada; es idempotente
	// por contrato del stream.
	require.GreaterOrEqual(t, stub.closes.Load(), int64(1))
}
