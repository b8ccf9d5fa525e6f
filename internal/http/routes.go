// Package http arma el router del servicio y su ciclo de vida.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	userscontroller "github.com/dropDatabas3/userdal/internal/http/controllers/users"
	httperrors "github.com/dropDatabas3/userdal/internal/http/errors"
	"github.com/dropDatabas3/userdal/internal/http/middlewares"
	"github.com/dropDatabas3/userdal/internal/store"
)

// RouterConfig agrupa las dependencias del router.
type RouterConfig struct {
	Users *userscontroller.Controller

	// Conn para el ping de readiness.
	Conn store.Connection

	// MetricsHandler sirve /metrics (RegisterMetrics).
	MetricsHandler http.Handler

	// Auth del API. Secret vacío = sin auth (dev).
	JWTSecret []byte
	JWTIssuer string
}

// NewRouter construye el router completo del servicio.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middlewares.WithCorrelationID())
	r.Use(middlewares.WithLogging())
	r.Use(WithMetrics)

	// Probes y métricas quedan fuera del auth.
	r.Get("/readyz", readyz(cfg.Conn))
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1/users", func(r chi.Router) {
		r.Use(middlewares.WithAuth(middlewares.AuthConfig{
			Secret: cfg.JWTSecret,
			Issuer: cfg.JWTIssuer,
		}))

		r.Post("/", cfg.Users.Create)
		r.Post("/search", cfg.Users.Search)
		r.Get("/stats/genders", cfg.Users.GenderStats)
		r.Get("/events", cfg.Users.Events)
		r.Get("/download", cfg.Users.Download)
		r.Get("/{id}", cfg.Users.Get)
		r.Patch("/{id}", cfg.Users.Update)
		r.Delete("/{id}", cfg.Users.Delete)
	})

	return r
}

// readyz reporta la salud de la conexión al store.
func readyz(conn store.Connection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if conn == nil {
			httperrors.WriteError(w, http.StatusServiceUnavailable, "unavailable", "store no inicializado")
			return
		}
		if err := conn.Ping(r.Context()); err != nil {
			httperrors.WriteError(w, http.StatusServiceUnavailable, "unavailable", "store no responde")
			return
		}
		httperrors.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"adapter": conn.Name(),
		})
	}
}
