package mongo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

func TestMapErrCallerCancellationPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := mapErr(ctx, context.Canceled)
	assert.ErrorIs(t, got, context.Canceled)
	assert.False(t, repository.IsUnavailable(got))
}

func TestMapErrCallerDeadlinePassesThrough(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	got := mapErr(ctx, context.DeadlineExceeded)
	assert.ErrorIs(t, got, context.DeadlineExceeded)
	assert.False(t, repository.IsUnavailable(got))
}

func TestMapErrDriverTimeoutIsUnavailable(t *testing.T) {
	// El SetTimeout del cliente hace que un pool agotado llegue como
	// deadline exceeded aunque el caller no haya pedido ningún deadline.
	ctx := context.Background()

	got := mapErr(ctx, fmt.Errorf("timed out while checking out a connection: %w", context.DeadlineExceeded))
	require.Error(t, got)
	assert.True(t, repository.IsUnavailable(got))
	assert.NoError(t, ctx.Err())
}

func TestMapErrDefaultIsUnavailable(t *testing.T) {
	got := mapErr(context.Background(), fmt.Errorf("server selection error"))
	require.Error(t, got)
	assert.True(t, repository.IsUnavailable(got))
}

func TestMapErrNil(t *testing.T) {
	assert.NoError(t, mapErr(context.Background(), nil))
}
