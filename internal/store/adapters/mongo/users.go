package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

// Repo implementa repository.UserRepository sobre una colección mongo.
type Repo struct {
	coll *mongo.Collection
}

var _ repository.UserRepository = (*Repo)(nil)

// Create persiste un usuario nuevo con version 0. ErrConflict si el ID
// suplido ya existe (duplicate key sobre _id).
func (r *Repo) Create(ctx context.Context, u *repository.User) (*repository.User, error) {
	if u == nil {
		return nil, fmt.Errorf("mongo: nil user: %w", repository.ErrInvalidInput)
	}

	oid := primitive.NewObjectID()
	if u.ID != "" {
		var err error
		if oid, err = parseOID(u.ID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := &mongoUser{
		ID:        oid,
		Name:      u.Name,
		Age:       u.Age,
		Email:     u.Email,
		Gender:    string(u.Gender),
		Version:   0,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("mongo: id %s: %w", oid.Hex(), repository.ErrConflict)
		}
		return nil, mapErr(ctx, err)
	}

	return doc.toDomain(), nil
}

// Find retorna los matches en orden natural (inserción) salvo sort
// explícito. Cero matches es un slice vacío.
func (r *Repo) Find(ctx context.Context, f repository.Filter) ([]*repository.User, error) {
	q, err := filterToBson(f)
	if err != nil {
		return nil, err
	}

	findOpts := options.Find()
	if field, dir, ok := f.Sort(); ok {
		findOpts.SetSort(bson.D{{Key: fieldToMongo(field), Value: int(dir)}})
	}

	cur, err := r.coll.Find(ctx, q, findOpts)
	if err != nil {
		return nil, mapErr(ctx, err)
	}
	defer cur.Close(ctx)

	out := make([]*repository.User, 0)
	for cur.Next(ctx) {
		var doc mongoUser
		if err := cur.Decode(&doc); err != nil {
			return nil, mapErr(ctx, err)
		}
		out = append(out, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, mapErr(ctx, err)
	}
	return out, nil
}

// Update aplica el patch con $set + $inc de version. Con
// ExpectedVersion, el check de versión se inyecta en el filtro: cero
// matched con el filtro base no vacío es ErrConflict y el store queda
// intacto.
func (r *Repo) Update(ctx context.Context, f repository.Filter, patch repository.Update) (*repository.UpdateOutcome, error) {
	base, err := filterToBson(f)
	if err != nil {
		return nil, err
	}
	upd, err := updateToBson(patch, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	sel := base
	expected, hasVersion := patch.ExpectedVersion()
	if hasVersion {
		sel = bson.D{{Key: "$and", Value: bson.A{base, bson.D{{Key: "version", Value: expected}}}}}
	}

	var matched, modified int64
	if f.ExactlyOne() {
		res, err := r.coll.UpdateOne(ctx, sel, upd)
		if err != nil {
			return nil, mapErr(ctx, err)
		}
		matched, modified = res.MatchedCount, res.ModifiedCount
	} else {
		res, err := r.coll.UpdateMany(ctx, sel, upd)
		if err != nil {
			return nil, mapErr(ctx, err)
		}
		matched, modified = res.MatchedCount, res.ModifiedCount
	}

	if matched == 0 && (hasVersion || f.ExactlyOne()) {
		// Distinguir "no existe" de "versión stale" con un count sobre
		// el filtro base.
		n, err := r.coll.CountDocuments(ctx, base)
		if err != nil {
			return nil, mapErr(ctx, err)
		}
		if hasVersion && n > 0 {
			return nil, fmt.Errorf("mongo: version %d: %w", expected, repository.ErrConflict)
		}
		if f.ExactlyOne() && n == 0 {
			return nil, fmt.Errorf("mongo: update: %w", repository.ErrNotFound)
		}
	}

	return &repository.UpdateOutcome{Matched: matched, Modified: modified}, nil
}

// Delete elimina los matches y retorna el conteo. Idempotente salvo
// semántica One().
func (r *Repo) Delete(ctx context.Context, f repository.Filter) (int64, error) {
	q, err := filterToBson(f)
	if err != nil {
		return 0, err
	}

	var n int64
	if f.ExactlyOne() {
		res, err := r.coll.DeleteOne(ctx, q)
		if err != nil {
			return 0, mapErr(ctx, err)
		}
		n = res.DeletedCount
	} else {
		res, err := r.coll.DeleteMany(ctx, q)
		if err != nil {
			return 0, mapErr(ctx, err)
		}
		n = res.DeletedCount
	}

	if n == 0 && f.ExactlyOne() {
		return 0, fmt.Errorf("mongo: delete: %w", repository.ErrNotFound)
	}
	return n, nil
}

// Aggregate ejecuta el pipeline en el servidor con allowDiskUse. Los
// errores de comando (stage mal formado, acumulador desconocido) se
// mapean a ErrInvalidPipeline: no son reintetables.
func (r *Repo) Aggregate(ctx context.Context, p *repository.Pipeline) ([]repository.Document, error) {
	pipeline, err := pipelineToBson(p)
	if err != nil {
		return nil, err
	}

	cur, err := r.coll.Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) {
			return nil, fmt.Errorf("mongo: aggregate: %v: %w", err, repository.ErrInvalidPipeline)
		}
		return nil, mapErr(ctx, err)
	}
	defer cur.Close(ctx)

	out := make([]repository.Document, 0)
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, mapErr(ctx, err)
		}
		out = append(out, normalizeDoc(m))
	}
	if err := cur.Err(); err != nil {
		return nil, mapErr(ctx, err)
	}
	return out, nil
}

// mapErr clasifica cada fallo del driver en exactamente un tipo de la
// taxonomía. La cancelación del caller se propaga tal cual: no es un
// error del store. Ojo: el SetTimeout del cliente hace que el driver
// reporte pool agotado como deadline exceeded; eso solo cuenta como
// cancelación si el contexto del caller terminó, si no es ErrUnavailable.
func mapErr(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("mongo: %v: %w", err, repository.ErrUnavailable)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("mongo: %v: %w", err, repository.ErrConflict)
	}

	// Write concern no satisfecho: el write puede o no haber aplicado.
	var we mongo.WriteException
	if errors.As(err, &we) && we.WriteConcernError != nil {
		return fmt.Errorf("mongo: write unacknowledged: %v: %w", err, repository.ErrUnavailable)
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && bwe.WriteConcernError != nil {
		return fmt.Errorf("mongo: write unacknowledged: %v: %w", err, repository.ErrUnavailable)
	}

	// Timeouts, pool agotado, server selection, red: transitorios.
	return fmt.Errorf("mongo: %v: %w", err, repository.ErrUnavailable)
}
