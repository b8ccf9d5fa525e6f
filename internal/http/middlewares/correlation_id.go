package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/userdal/internal/reqctx"
)

// WithCorrelationID genera o propaga un correlation ID único por request.
// Si el cliente envía X-Correlation-ID, lo usa. Si no, genera uno nuevo.
// El ID se expone en el header de respuesta y se inyecta en el contexto,
// desde donde el port de persistencia lo propaga a sus logs.
func WithCorrelationID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := strings.TrimSpace(r.Header.Get("X-Correlation-ID"))
			if cid == "" {
				cid = reqctx.NewCorrelationID()
			}

			// Exponer en response header
			w.Header().Set("X-Correlation-ID", cid)

			// Inyectar en contexto para uso en logs/handlers
			ctx := reqctx.WithCorrelationID(r.Context(), cid)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
