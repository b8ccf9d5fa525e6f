package mongo

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

// mongoUser es el documento tal como se persiste en la colección.
type mongoUser struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	Age       int                `bson:"age"`
	Email     string             `bson:"email"`
	Gender    string             `bson:"gender"`
	Version   int64              `bson:"version"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (m *mongoUser) toDomain() *repository.User {
	return &repository.User{
		ID:        m.ID.Hex(),
		Name:      m.Name,
		Age:       m.Age,
		Email:     m.Email,
		Gender:    repository.Gender(m.Gender),
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// fieldToMongo traduce el nombre canónico de campo al de wire.
func fieldToMongo(field string) string {
	if field == repository.FieldID {
		return "_id"
	}
	return field
}

func parseOID(v any) (primitive.ObjectID, error) {
	s, ok := v.(string)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("mongo: id value %T: %w", v, repository.ErrInvalidInput)
	}
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("mongo: bad id %q: %w", s, repository.ErrInvalidInput)
	}
	return oid, nil
}

// condValue traduce el valor de una condición (IDs → ObjectID).
func condValue(c repository.Cond) (any, error) {
	if c.Field != repository.FieldID {
		if g, ok := c.Value.(repository.Gender); ok {
			return string(g), nil
		}
		return c.Value, nil
	}
	if c.Op == repository.OpIn {
		vals, ok := c.Value.([]string)
		if !ok {
			return nil, fmt.Errorf("mongo: id in-set must be []string: %w", repository.ErrInvalidInput)
		}
		out := bson.A{}
		for _, s := range vals {
			oid, err := primitive.ObjectIDFromHex(s)
			if err != nil {
				return nil, fmt.Errorf("mongo: bad id %q: %w", s, repository.ErrInvalidInput)
			}
			out = append(out, oid)
		}
		return out, nil
	}
	return parseOID(c.Value)
}

var opToMongo = map[repository.Op]string{
	repository.OpGt:  "$gt",
	repository.OpGte: "$gte",
	repository.OpLt:  "$lt",
	repository.OpLte: "$lte",
	repository.OpIn:  "$in",
}

// condToBson traduce una condición individual a su documento bson.
// prefix se antepone al nombre de campo (usado por watch para matchear
// sobre fullDocument).
func condToBson(c repository.Cond, prefix string) (bson.D, error) {
	v, err := condValue(c)
	if err != nil {
		return nil, err
	}
	field := prefix + fieldToMongo(c.Field)

	if c.Op == repository.OpEq {
		return bson.D{{Key: field, Value: v}}, nil
	}
	op, ok := opToMongo[c.Op]
	if !ok {
		return nil, fmt.Errorf("mongo: unknown filter op %q: %w", c.Op, repository.ErrInvalidInput)
	}
	return bson.D{{Key: field, Value: bson.D{{Key: op, Value: v}}}}, nil
}

// filterToBson traduce un Filter completo. Condiciones múltiples se
// combinan con $and para tolerar varios operadores sobre el mismo campo.
func filterToBson(f repository.Filter) (bson.D, error) {
	return condsToBson(f.Conds(), "")
}

func condsToBson(conds []repository.Cond, prefix string) (bson.D, error) {
	switch len(conds) {
	case 0:
		return bson.D{}, nil
	case 1:
		return condToBson(conds[0], prefix)
	default:
		parts := bson.A{}
		for _, c := range conds {
			d, err := condToBson(c, prefix)
			if err != nil {
				return nil, err
			}
			parts = append(parts, d)
		}
		return bson.D{{Key: "$and", Value: parts}}, nil
	}
}

// updateToBson traduce un Update a {$set, $inc}. El adapter administra
// version (+1) y updated_at; el patch no puede tocarlos.
func updateToBson(patch repository.Update, now time.Time) (bson.D, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("mongo: empty update: %w", repository.ErrInvalidInput)
	}

	sets := bson.D{}
	for _, fs := range patch.Sets() {
		if !repository.MutableFields[fs.Field] {
			return nil, fmt.Errorf("mongo: field %q not updatable: %w", fs.Field, repository.ErrInvalidInput)
		}
		v := fs.Value
		if g, ok := v.(repository.Gender); ok {
			v = string(g)
		}
		sets = append(sets, bson.E{Key: fieldToMongo(fs.Field), Value: v})
	}
	sets = append(sets, bson.E{Key: "updated_at", Value: now})

	return bson.D{
		{Key: "$set", Value: sets},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
	}, nil
}

// pipelineToBson traduce el Pipeline preservando el orden exacto de
// stages. La validación semántica la hace el servidor; los errores de
// comando en Aggregate se mapean a ErrInvalidPipeline.
func pipelineToBson(p *repository.Pipeline) (mongo.Pipeline, error) {
	if p == nil {
		return nil, fmt.Errorf("mongo: nil pipeline: %w", repository.ErrInvalidPipeline)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}

	out := mongo.Pipeline{}
	for _, st := range p.Stages() {
		switch st.Kind {
		case repository.StageMatch:
			m, err := filterToBson(st.Match)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.D{{Key: "$match", Value: m}})

		case repository.StageGroup:
			g := bson.D{{Key: "_id", Value: "$" + fieldToMongo(st.GroupKey)}}
			for _, a := range st.GroupAccs {
				acc, err := accToBson(a)
				if err != nil {
					return nil, err
				}
				g = append(g, bson.E{Key: a.Name, Value: acc})
			}
			out = append(out, bson.D{{Key: "$group", Value: g}})

		case repository.StageProject:
			pr := bson.D{}
			for _, f := range st.ProjectFields {
				pr = append(pr, bson.E{Key: fieldToMongo(f), Value: 1})
			}
			out = append(out, bson.D{{Key: "$project", Value: pr}})

		case repository.StageSort:
			out = append(out, bson.D{{Key: "$sort", Value: bson.D{
				{Key: fieldToMongo(st.SortField), Value: int(st.SortDir)},
			}}})

		case repository.StageLimit:
			out = append(out, bson.D{{Key: "$limit", Value: st.Limit}})

		default:
			return nil, fmt.Errorf("mongo: stage %q: %w", st.Kind, repository.ErrInvalidPipeline)
		}
	}
	return out, nil
}

func accToBson(a repository.Accumulator) (bson.D, error) {
	switch a.Op {
	case repository.AccCount:
		return bson.D{{Key: "$sum", Value: 1}}, nil
	case repository.AccSum:
		return bson.D{{Key: "$sum", Value: "$" + fieldToMongo(a.Field)}}, nil
	case repository.AccAvg:
		return bson.D{{Key: "$avg", Value: "$" + fieldToMongo(a.Field)}}, nil
	case repository.AccMin:
		return bson.D{{Key: "$min", Value: "$" + fieldToMongo(a.Field)}}, nil
	case repository.AccMax:
		return bson.D{{Key: "$max", Value: "$" + fieldToMongo(a.Field)}}, nil
	default:
		return nil, fmt.Errorf("mongo: accumulator %q: %w", a.Op, repository.ErrInvalidPipeline)
	}
}

// normalizeDoc convierte los tipos bson del driver a tipos Go planos
// para que los Documents sean comparables entre adapters.
func normalizeDoc(m bson.M) repository.Document {
	out := repository.Document{}
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.A:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, normalizeValue(e))
		}
		return out
	case bson.M:
		return map[string]any(normalizeDoc(t))
	case bson.D:
		m := bson.M{}
		for _, e := range t {
			m[e.Key] = e.Value
		}
		return map[string]any(normalizeDoc(m))
	case int32:
		return int64(t)
	default:
		return v
	}
}
