// Package reqctx propaga el contexto de request (correlation ID y
// claims ya verificadas) a través de context.Context.
//
// El port de persistencia acepta estos valores solo para propagación y
// logging: nunca interpreta las claims ni toma decisiones de
// autorización. La política de autorización es responsabilidad del
// front-end que invoca.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

// Claims es el mapa opaco de claims resueltas por el colaborador de
// auth (firma y expiry ya verificados antes de llegar acá).
type Claims map[string]any

type correlationKey struct{}
type claimsKey struct{}

// NewCorrelationID genera un correlation ID nuevo.
func NewCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID inyecta el correlation ID en el contexto.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID extrae el correlation ID del contexto, o "" si no hay.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClaims inyecta las claims en el contexto.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom extrae las claims del contexto, o nil si no hay.
func ClaimsFrom(ctx context.Context) Claims {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(claimsKey{}).(Claims); ok {
		return v
	}
	return nil
}

// ClaimString retorna una claim como string, o "" si no existe o no es
// string.
func ClaimString(c Claims, key string) string {
	if c == nil {
		return ""
	}
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}
