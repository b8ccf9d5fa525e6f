package repository

// Op es el operador de una condición de filtro.
type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in" // Value debe ser un slice
)

// SortDir dirección de ordenamiento.
type SortDir int

const (
	SortAsc  SortDir = 1
	SortDesc SortDir = -1
)

// Cond es una condición individual sobre un campo.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Filter es un predicado opaco sobre campos de usuario. Inmutable una
// vez construido: cada método retorna una copia, por lo que un Filter
// puede reutilizarse y compartirse entre llamadas y goroutines.
//
// Las condiciones se combinan con AND.
type Filter struct {
	conds     []Cond
	sortField string
	sortDir   SortDir
	one       bool
}

// All retorna el filtro vacío (matchea todos los documentos).
func All() Filter { return Filter{} }

// Where construye un filtro con una condición inicial.
func Where(field string, op Op, value any) Filter {
	return Filter{conds: []Cond{{Field: field, Op: op, Value: value}}}
}

// ByID construye un filtro de igualdad sobre el ID.
// No implica semántica exactly-one; usar One() para eso.
func ByID(id string) Filter {
	return Where(FieldID, OpEq, id)
}

// And agrega una condición. Retorna un filtro nuevo.
func (f Filter) And(field string, op Op, value any) Filter {
	conds := make([]Cond, len(f.conds), len(f.conds)+1)
	copy(conds, f.conds)
	f.conds = append(conds, Cond{Field: field, Op: op, Value: value})
	return f
}

// SortBy fija el orden del resultado de Find. Retorna un filtro nuevo.
func (f Filter) SortBy(field string, dir SortDir) Filter {
	f.sortField = field
	f.sortDir = dir
	return f
}

// One declara semántica exactly-one: update/delete con cero matches
// fallan con ErrNotFound en lugar de reportar conteo 0, y afectan a lo
// sumo un documento. Find no cambia de comportamiento.
func (f Filter) One() Filter {
	f.one = true
	return f
}

// Conds retorna una copia de las condiciones.
func (f Filter) Conds() []Cond {
	out := make([]Cond, len(f.conds))
	copy(out, f.conds)
	return out
}

// Sort retorna el campo y dirección de orden, si fueron fijados.
func (f Filter) Sort() (field string, dir SortDir, ok bool) {
	return f.sortField, f.sortDir, f.sortField != ""
}

// ExactlyOne reporta si el filtro declara semántica exactly-one.
func (f Filter) ExactlyOne() bool { return f.one }

// IsEmpty reporta si el filtro no tiene condiciones.
func (f Filter) IsEmpty() bool { return len(f.conds) == 0 }
