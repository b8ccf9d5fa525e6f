package middlewares

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/userdal/internal/reqctx"
)

// AuthConfig configuración del middleware de autenticación.
type AuthConfig struct {
	// Secret clave HMAC para verificar la firma (HS256).
	Secret []byte

	// Issuer esperado. Vacío deshabilita el check.
	Issuer string
}

// WithAuth verifica el bearer token del request e inyecta las claims
// verificadas en el contexto vía reqctx. El port de persistencia recibe
// las claims solo para propagación y logging: la decisión de
// autorización termina acá.
//
// Con Secret vacío el middleware es un no-op (modo dev sin auth).
func WithAuth(cfg AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		if len(cfg.Secret) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeAuthError(w, "missing bearer token")
				return
			}

			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			}
			if cfg.Issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
			}

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return cfg.Secret, nil
			}, parserOpts...)
			if err != nil {
				writeAuthError(w, "invalid token")
				return
			}

			ctx := reqctx.WithClaims(r.Context(), reqctx.Claims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("WWW-Authenticate", `Bearer realm="userdal"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
