package repository

import "context"

// ChangeKind es el tipo de mutación de un ChangeEvent.
type ChangeKind string

const (
	ChangeInserted ChangeKind = "inserted"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
)

// ResumeToken es un marcador opaco y ordenado que permite continuar un
// stream después de una interrupción sin re-entregar eventos previos.
// El formato es propio de cada adapter; el caller solo lo persiste y
// lo devuelve intacto.
type ResumeToken string

// ChangeEvent es un evento de mutación entregado por Watch, en orden
// de commit.
type ChangeEvent struct {
	Kind ChangeKind

	// Token del evento, usable como punto de resume.
	Token ResumeToken

	// ID del documento afectado. Poblado en todos los kinds.
	ID string

	// User snapshot completo. Poblado en ChangeInserted (y en
	// ChangeUpdated cuando el adapter dispone del documento completo).
	User *User

	// Patch mutaciones aplicadas. Poblado en ChangeUpdated.
	Patch Update
}

// WatchOptions opciones de Watch.
type WatchOptions struct {
	// Resume continúa el stream después del token dado en lugar de
	// arrancar en "ahora". Vacío = desde ahora.
	Resume ResumeToken
}

// ChangeStream es una secuencia lazy y cancelable de ChangeEvents.
//
// Next bloquea hasta que haya un evento, el ctx se cancele, o el
// stream termine con error. Close libera los recursos subyacentes de
// forma síncrona: después de que Close retorna, el caller no observa
// ninguna entrega más (Next retorna ErrStreamClosed, incluso si había
// eventos encolados).
type ChangeStream interface {
	Next(ctx context.Context) (*ChangeEvent, error)
	Close() error
}
