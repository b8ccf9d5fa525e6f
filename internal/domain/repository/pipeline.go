package repository

import "fmt"

// StageKind identifica el tipo de stage de agregación.
type StageKind string

const (
	StageMatch   StageKind = "match"
	StageGroup   StageKind = "group"
	StageProject StageKind = "project"
	StageSort    StageKind = "sort"
	StageLimit   StageKind = "limit"
)

// AccOp es la función de acumulación de un group.
type AccOp string

const (
	AccSum   AccOp = "sum"
	AccCount AccOp = "count"
	AccAvg   AccOp = "avg"
	AccMin   AccOp = "min"
	AccMax   AccOp = "max"
)

// Accumulator describe una salida de un stage group.
type Accumulator struct {
	// Name es el campo de salida en el documento resultante.
	Name string

	// Op función de acumulación.
	Op AccOp

	// Field campo fuente. Vacío para AccCount.
	Field string
}

// Sum acumula la suma de field bajo name.
func Sum(name, field string) Accumulator {
	return Accumulator{Name: name, Op: AccSum, Field: field}
}

// Count cuenta documentos bajo name.
func Count(name string) Accumulator {
	return Accumulator{Name: name, Op: AccCount}
}

// Avg acumula el promedio de field bajo name.
func Avg(name, field string) Accumulator {
	return Accumulator{Name: name, Op: AccAvg, Field: field}
}

// Min acumula el mínimo de field bajo name.
func Min(name, field string) Accumulator {
	return Accumulator{Name: name, Op: AccMin, Field: field}
}

// Max acumula el máximo de field bajo name.
func Max(name, field string) Accumulator {
	return Accumulator{Name: name, Op: AccMax, Field: field}
}

// Stage es un stage individual del pipeline. Solo los campos del Kind
// correspondiente están poblados.
type Stage struct {
	Kind StageKind

	Match Filter // StageMatch

	GroupKey  string        // StageGroup: campo de agrupación (sale como "_id")
	GroupAccs []Accumulator // StageGroup

	ProjectFields []string // StageProject

	SortField string  // StageSort
	SortDir   SortDir // StageSort

	Limit int // StageLimit
}

// Pipeline es una secuencia ordenada de stages de agregación. El orden
// de construcción se preserva exactamente; la validación semántica
// (qué soporta cada adapter) se difiere a Aggregate.
//
// El builder solo valida buena formación estructural: un error se
// acumula en el pipeline y los adapters lo retornan como
// ErrInvalidPipeline antes de ejecutar nada.
type Pipeline struct {
	stages []Stage
	err    error
}

// NewPipeline crea un pipeline vacío.
func NewPipeline() *Pipeline { return &Pipeline{} }

// Match agrega un stage de filtrado.
func (p *Pipeline) Match(f Filter) *Pipeline {
	p.stages = append(p.stages, Stage{Kind: StageMatch, Match: f})
	return p
}

// Group agrega un stage de agrupación por key con acumuladores.
// key no puede ser vacío y debe haber al menos un acumulador.
func (p *Pipeline) Group(key string, accs ...Accumulator) *Pipeline {
	if key == "" {
		p.fail("group: empty key")
	}
	if len(accs) == 0 {
		p.fail("group: no accumulators")
	}
	for _, a := range accs {
		if a.Name == "" {
			p.fail("group: accumulator without output name")
		}
		if a.Op != AccCount && a.Field == "" {
			p.fail(fmt.Sprintf("group: accumulator %q without source field", a.Name))
		}
	}
	p.stages = append(p.stages, Stage{Kind: StageGroup, GroupKey: key, GroupAccs: accs})
	return p
}

// Project agrega un stage de proyección a los campos dados.
func (p *Pipeline) Project(fields ...string) *Pipeline {
	if len(fields) == 0 {
		p.fail("project: no fields")
	}
	p.stages = append(p.stages, Stage{Kind: StageProject, ProjectFields: fields})
	return p
}

// Sort agrega un stage de ordenamiento.
func (p *Pipeline) Sort(field string, dir SortDir) *Pipeline {
	if field == "" {
		p.fail("sort: empty field")
	}
	p.stages = append(p.stages, Stage{Kind: StageSort, SortField: field, SortDir: dir})
	return p
}

// Limit agrega un stage de límite.
func (p *Pipeline) Limit(n int) *Pipeline {
	if n <= 0 {
		p.fail(fmt.Sprintf("limit: non-positive %d", n))
	}
	p.stages = append(p.stages, Stage{Kind: StageLimit, Limit: n})
	return p
}

// Stages retorna una copia de los stages en orden de construcción.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Err retorna el primer error estructural del builder, si lo hubo.
func (p *Pipeline) Err() error { return p.err }

func (p *Pipeline) fail(msg string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s", ErrInvalidPipeline, msg)
	}
}
