package repository

// FieldSet es una mutación individual de campo.
type FieldSet struct {
	Field string
	Value any
}

// Update es un conjunto ordenado de mutaciones de campo (no un
// reemplazo completo), aplicado atómicamente por documento matcheado.
// Inmutable: cada método retorna una copia.
//
// El adapter administra version y updated_at; un Set sobre un campo no
// mutable (ver MutableFields) produce ErrInvalidInput en Update.
type Update struct {
	sets            []FieldSet
	expectedVersion *int64
}

// Set construye un Update con una mutación inicial.
func Set(field string, value any) Update {
	return Update{sets: []FieldSet{{Field: field, Value: value}}}
}

// Set agrega una mutación. Retorna un Update nuevo.
func (u Update) Set(field string, value any) Update {
	sets := make([]FieldSet, len(u.sets), len(u.sets)+1)
	copy(sets, u.sets)
	u.sets = append(sets, FieldSet{Field: field, Value: value})
	return u
}

// WithExpectedVersion habilita el check de concurrencia optimista:
// solo aplican los documentos cuya Version coincide. Si el filtro
// matchea documentos pero ninguno tiene esta versión, Update falla con
// ErrConflict y el store queda intacto.
//
// El check es opt-in; sin él, Update es incondicional.
func (u Update) WithExpectedVersion(v int64) Update {
	u.expectedVersion = &v
	return u
}

// Sets retorna una copia de las mutaciones, en orden de construcción.
func (u Update) Sets() []FieldSet {
	out := make([]FieldSet, len(u.sets))
	copy(out, u.sets)
	return out
}

// ExpectedVersion retorna la versión esperada, si fue fijada.
func (u Update) ExpectedVersion() (int64, bool) {
	if u.expectedVersion == nil {
		return 0, false
	}
	return *u.expectedVersion, true
}

// IsEmpty reporta si el update no tiene mutaciones.
func (u Update) IsEmpty() bool { return len(u.sets) == 0 }
