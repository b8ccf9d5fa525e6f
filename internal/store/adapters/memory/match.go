package memory

import (
	"reflect"
	"time"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

// userDoc proyecta un usuario como Document genérico, con los nombres
// canónicos de campo. Es la representación sobre la que operan el
// matcher y el pipeline de agregación.
func userDoc(u *repository.User) repository.Document {
	return repository.Document{
		repository.FieldID:        u.ID,
		repository.FieldName:      u.Name,
		repository.FieldAge:       u.Age,
		repository.FieldEmail:     u.Email,
		repository.FieldGender:    string(u.Gender),
		repository.FieldVersion:   u.Version,
		repository.FieldCreatedAt: u.CreatedAt,
		repository.FieldUpdatedAt: u.UpdatedAt,
	}
}

// docMatches evalúa las condiciones (AND) contra un documento.
// Un campo ausente no matchea condiciones de igualdad ni de rango,
// igual que en el store real.
func docMatches(conds []repository.Cond, d repository.Document) bool {
	for _, c := range conds {
		v, ok := d[c.Field]
		if !ok {
			return false
		}
		if !condMatches(c, v) {
			return false
		}
	}
	return true
}

func condMatches(c repository.Cond, v any) bool {
	switch c.Op {
	case repository.OpEq:
		cmp, ok := compareAny(v, c.Value)
		return ok && cmp == 0
	case repository.OpGt:
		cmp, ok := compareAny(v, c.Value)
		return ok && cmp > 0
	case repository.OpGte:
		cmp, ok := compareAny(v, c.Value)
		return ok && cmp >= 0
	case repository.OpLt:
		cmp, ok := compareAny(v, c.Value)
		return ok && cmp < 0
	case repository.OpLte:
		cmp, ok := compareAny(v, c.Value)
		return ok && cmp <= 0
	case repository.OpIn:
		rv := reflect.ValueOf(c.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if cmp, ok := compareAny(v, rv.Index(i).Interface()); ok && cmp == 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// compareAny compara dos valores con coerción numérica (int/int64/
// float64/...), strings, bools y time.Time. Retorna ok=false si los
// tipos no son comparables entre sí.
func compareAny(a, b any) (int, bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		default:
			return 1, true
		}
	}

	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}

	if as, aok := toString(a); aok {
		if bs, bok := toString(b); bok {
			switch {
			case as < bs:
				return -1, true
			case as > bs:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}

	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}

	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case ab == bb:
				return 0, true
			case !ab:
				return -1, true
			default:
				return 1, true
			}
		}
		return 0, false
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// toInt reporta además si el valor es integral (para acumular sumas
// sin perder el tipo entero).
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case repository.Gender:
		return string(s), true
	default:
		return "", false
	}
}
