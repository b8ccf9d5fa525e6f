package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

// Aggregate evalúa el pipeline stage por stage, en el orden declarado,
// sobre un snapshot de la colección tomado bajo el lock.
//
// La salida de group se ordena por clave de agrupación para que el
// resultado sea determinístico; el store real no promete ningún orden,
// así que los callers no deben depender de él.
func (s *Store) Aggregate(ctx context.Context, p *repository.Pipeline) ([]repository.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("memory: nil pipeline: %w", repository.ErrInvalidPipeline)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	docs := make([]repository.Document, 0, len(s.order))
	for _, id := range s.order {
		docs = append(docs, userDoc(s.docs[id]))
	}
	s.mu.Unlock()

	var err error
	for _, st := range p.Stages() {
		switch st.Kind {
		case repository.StageMatch:
			docs = applyMatch(docs, st.Match)
		case repository.StageGroup:
			docs, err = applyGroup(docs, st)
			if err != nil {
				return nil, err
			}
		case repository.StageProject:
			docs = applyProject(docs, st.ProjectFields)
		case repository.StageSort:
			docs = applySort(docs, st.SortField, st.SortDir)
		case repository.StageLimit:
			if st.Limit < len(docs) {
				docs = docs[:st.Limit]
			}
		default:
			return nil, fmt.Errorf("memory: stage %q: %w", st.Kind, repository.ErrInvalidPipeline)
		}
	}

	return docs, nil
}

func applyMatch(docs []repository.Document, f repository.Filter) []repository.Document {
	conds := f.Conds()
	out := docs[:0:0]
	for _, d := range docs {
		if docMatches(conds, d) {
			out = append(out, d)
		}
	}
	return out
}

// accState acumula preservando el tipo entero mientras sea posible,
// como hace el store real con sumas de enteros.
type accState struct {
	count   int64
	sumI    int64
	sumF    float64
	isFloat bool
	present int64
	minV    any
	maxV    any
}

func (a *accState) add(v any) {
	a.count++
	if v == nil {
		return
	}
	if i, ok := toInt(v); ok && !a.isFloat {
		a.sumI += i
		a.present++
	} else if f, ok := toFloat(v); ok {
		if !a.isFloat {
			a.isFloat = true
			a.sumF = float64(a.sumI)
		}
		a.sumF += f
		a.present++
	} else {
		return // no numérico: sum/avg lo ignoran
	}
	if a.minV == nil {
		a.minV = v
		a.maxV = v
		return
	}
	if cmp, ok := compareAny(v, a.minV); ok && cmp < 0 {
		a.minV = v
	}
	if cmp, ok := compareAny(v, a.maxV); ok && cmp > 0 {
		a.maxV = v
	}
}

func (a *accState) sum() any {
	if a.isFloat {
		return a.sumF
	}
	return a.sumI
}

func (a *accState) avg() any {
	if a.present == 0 {
		return nil
	}
	if a.isFloat {
		return a.sumF / float64(a.present)
	}
	return float64(a.sumI) / float64(a.present)
}

func applyGroup(docs []repository.Document, st repository.Stage) ([]repository.Document, error) {
	type group struct {
		key  any
		accs map[string]*accState
	}

	groups := make(map[string]*group)
	var keys []string

	for _, d := range docs {
		kv := d[st.GroupKey]
		mapKey := fmt.Sprintf("%v", kv)
		g, ok := groups[mapKey]
		if !ok {
			g = &group{key: kv, accs: make(map[string]*accState)}
			for _, a := range st.GroupAccs {
				g.accs[a.Name] = &accState{}
			}
			groups[mapKey] = g
			keys = append(keys, mapKey)
		}
		for _, a := range st.GroupAccs {
			switch a.Op {
			case repository.AccCount:
				g.accs[a.Name].count++
			case repository.AccSum, repository.AccAvg, repository.AccMin, repository.AccMax:
				g.accs[a.Name].add(d[a.Field])
			default:
				return nil, fmt.Errorf("memory: accumulator %q: %w", a.Op, repository.ErrInvalidPipeline)
			}
		}
	}

	sort.Strings(keys)

	out := make([]repository.Document, 0, len(keys))
	for _, mapKey := range keys {
		g := groups[mapKey]
		doc := repository.Document{"_id": g.key}
		for _, a := range st.GroupAccs {
			acc := g.accs[a.Name]
			switch a.Op {
			case repository.AccCount:
				doc[a.Name] = acc.count
			case repository.AccSum:
				doc[a.Name] = acc.sum()
			case repository.AccAvg:
				doc[a.Name] = acc.avg()
			case repository.AccMin:
				doc[a.Name] = acc.minV
			case repository.AccMax:
				doc[a.Name] = acc.maxV
			}
		}
		out = append(out, doc)
	}

	return out, nil
}

// applyProject conserva los campos listados. "_id" se conserva siempre
// que exista, como en el store real.
func applyProject(docs []repository.Document, fields []string) []repository.Document {
	out := make([]repository.Document, 0, len(docs))
	for _, d := range docs {
		nd := repository.Document{}
		if v, ok := d["_id"]; ok {
			nd["_id"] = v
		}
		for _, f := range fields {
			if v, ok := d[f]; ok {
				nd[f] = v
			}
		}
		out = append(out, nd)
	}
	return out
}

func applySort(docs []repository.Document, field string, dir repository.SortDir) []repository.Document {
	sort.SliceStable(docs, func(i, j int) bool {
		cmp, ok := compareAny(docs[i][field], docs[j][field])
		if !ok {
			return false
		}
		if dir == repository.SortDesc {
			return cmp > 0
		}
		return cmp < 0
	})
	return docs
}
