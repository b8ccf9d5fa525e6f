package repository

import "errors"

var (
	// ErrNotFound indica que un documento requerido no existe
	// (update/delete con semántica exactly-one sobre un filtro sin matches).
	ErrNotFound = errors.New("not found")

	// ErrConflict indica colisión de ID en create o mismatch de versión
	// en un update con control de concurrencia optimista.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica datos de entrada inválidos (campo desconocido,
	// mutación de un campo administrado, ID con formato inválido).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPipeline indica un stage o combinación de stages no
	// soportada por el adapter activo. No es reintentable.
	ErrInvalidPipeline = errors.New("invalid pipeline")

	// ErrUnavailable indica pool agotado, store inalcanzable o write no
	// confirmado dentro del timeout. Transitorio: el caller puede
	// reintentar con backoff, pero NO debe asumir que el write no aplicó.
	ErrUnavailable = errors.New("store unavailable")

	// ErrStreamInterrupted indica que un change stream no pudo resumirse
	// tras el único intento automático del adapter. El caller debe
	// re-establecer el watch con el último token conocido.
	ErrStreamInterrupted = errors.New("change stream interrupted")

	// ErrStreamClosed indica lectura sobre un stream ya cancelado.
	ErrStreamClosed = errors.New("change stream closed")

	// ErrTLSHandshake indica fallo de TLS mutuo al construir el adapter.
	// Fatal: no hay fallback a plaintext.
	ErrTLSHandshake = errors.New("tls handshake failed")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsUnavailable verifica si el error es ErrUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsInvalidPipeline verifica si el error es ErrInvalidPipeline.
func IsInvalidPipeline(err error) bool {
	return errors.Is(err, ErrInvalidPipeline)
}

// Kind retorna el nombre estable del tipo de error, para métricas y
// mapeo a status HTTP. Retorna "internal" si el error no pertenece a
// la taxonomía.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInvalidPipeline):
		return "invalid_pipeline"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrStreamInterrupted):
		return "stream_interrupted"
	case errors.Is(err, ErrStreamClosed):
		return "stream_closed"
	case errors.Is(err, ErrTLSHandshake):
		return "tls_handshake"
	default:
		return "internal"
	}
}
