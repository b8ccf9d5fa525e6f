// Package memory implementa el adapter in-memory del port de usuarios.
//
// Es el doble de pruebas determinístico: un mapa ordenado por
// inserción, contadores monotónicos para versiones y tokens de resume,
// y un único mutex que serializa todas las operaciones (linealizable
// por construcción). Sin red: ErrUnavailable, ErrTLSHandshake y
// ErrStreamInterrupted son inalcanzables salvo por inyección de fallas
// explícita (ver InjectStreamFault).
package memory

import (
	"context"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
	"github.com/dropDatabas3/userdal/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(ctx context.Context, cfg store.Config) (store.Connection, error) {
	return &conn{store: New()}, nil
}

// conn implementa store.Connection sobre un Store in-process.
type conn struct {
	store *Store
}

func (c *conn) Name() string { return "memory" }

func (c *conn) Ping(ctx context.Context) error { return nil }

func (c *conn) Close(ctx context.Context) error {
	c.store.closeAllStreams()
	return nil
}

func (c *conn) Users() repository.UserRepository { return c.store }
