package repository

import (
	"context"
	"time"
)

// Gender del usuario. El modelo original solo distingue dos valores.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// User representa un usuario del sistema.
//
// ID es opaco, globalmente único y lo genera el adapter en Create (el
// caller puede suplirlo, pero una colisión es ErrConflict). Version
// arranca en 0 y el adapter la incrementa en exactamente 1 por cada
// update exitoso; nunca decrece.
type User struct {
	ID        string
	Name      string
	Age       int
	Email     string
	Gender    Gender
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone retorna una copia independiente del usuario.
// Los adapters retornan siempre copias: el caller es dueño del valor.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

// Nombres canónicos de campos, compartidos por Filter, Update y Pipeline.
// Los adapters traducen a su representación de wire (ej: id → _id).
const (
	FieldID        = "id"
	FieldName      = "name"
	FieldAge       = "age"
	FieldEmail     = "email"
	FieldGender    = "gender"
	FieldVersion   = "version"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// MutableFields son los campos que Update puede modificar. id, version
// y los timestamps los administra el adapter.
var MutableFields = map[string]bool{
	FieldName:   true,
	FieldAge:    true,
	FieldEmail:  true,
	FieldGender: true,
}

// Document es el resultado genérico de una agregación.
type Document map[string]any

// UpdateOutcome reporta el resultado de un Update.
type UpdateOutcome struct {
	// Matched documentos que matchearon el filtro (tras aplicar el
	// check de versión, si lo hubo).
	Matched int64

	// Modified documentos efectivamente modificados.
	Modified int64
}

// UserRepository es el port de persistencia que implementan todos los
// adapters. Los callers dependen exclusivamente de esta interfaz.
//
// Todas las operaciones aceptan cancelación vía ctx. Cancelar un write
// después de que el store lo confirmó NO lo revierte: el caller debe
// tratar la cancelación como "resultado desconocido".
type UserRepository interface {
	// Create persiste un usuario nuevo. Asigna ID (si está vacío) y
	// Version=0, y retorna la copia persistida. ErrConflict si el ID
	// suplido por el caller ya existe.
	Create(ctx context.Context, u *User) (*User, error)

	// Find retorna los usuarios que matchean el filtro, en orden de
	// inserción salvo que el filtro especifique sort. Cero matches es
	// un resultado vacío, nunca un error.
	Find(ctx context.Context, f Filter) ([]*User, error)

	// Update aplica el patch a cada documento que matchea el filtro,
	// incrementando Version en 1 por documento. Si el patch trae
	// ExpectedVersion y ningún documento matcheado la tiene, falla con
	// ErrConflict sin modificar el store. Con Filter.One() y cero
	// matches, falla con ErrNotFound.
	Update(ctx context.Context, f Filter, patch Update) (*UpdateOutcome, error)

	// Delete elimina los documentos que matchean y retorna el conteo.
	// Idempotente: cero matches retorna 0 sin error, salvo que el
	// filtro declare One(), en cuyo caso es ErrNotFound.
	Delete(ctx context.Context, f Filter) (int64, error)

	// Aggregate ejecuta el pipeline en el orden declarado. ErrInvalidPipeline
	// si el adapter no soporta algún stage o combinación.
	Aggregate(ctx context.Context, p *Pipeline) ([]Document, error)

	// Watch abre un change stream para los documentos que matchean el
	// filtro, arrancando en "ahora" salvo que opts traiga un token de
	// resume. El stream es infinito hasta que el caller lo cancela o
	// la conexión subyacente falla.
	Watch(ctx context.Context, f Filter, opts WatchOptions) (ChangeStream, error)
}
