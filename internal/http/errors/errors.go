// Package errors contiene los helpers de respuesta JSON y el mapeo de
// la taxonomía de errores del port a status HTTP.
package errors

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	CorrelationID    string `json:"correlation_id,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	cid := w.Header().Get("X-Correlation-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: desc,
		CorrelationID:    cid,
	})
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON: decodifica JSON de forma tolerante (NO falla por campos desconocidos).
// Valida Content-Type y limita el tamaño del body a 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Content-Type debe ser application/json")
		return false
	}
	// máx 1MB
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "invalid_json", "json inválido")
		return false
	}
	return true
}

// WriteStoreError mapea la taxonomía del port a status HTTP. Cada tipo
// tiene exactamente un status: los front-ends no inspeccionan mensajes.
func WriteStoreError(w http.ResponseWriter, err error) {
	kind := repository.Kind(err)
	switch kind {
	case "not_found":
		WriteError(w, http.StatusNotFound, kind, "el recurso no existe")
	case "conflict":
		WriteError(w, http.StatusConflict, kind, "conflicto de id o versión")
	case "invalid_input":
		WriteError(w, http.StatusUnprocessableEntity, kind, "entrada inválida")
	case "invalid_pipeline":
		WriteError(w, http.StatusBadRequest, kind, "pipeline de agregación inválido")
	case "unavailable":
		WriteError(w, http.StatusServiceUnavailable, kind, "almacenamiento no disponible")
	case "stream_interrupted":
		WriteError(w, http.StatusBadGateway, kind, "change stream interrumpido")
	default:
		WriteError(w, http.StatusInternalServerError, "internal", "error interno")
	}
}
