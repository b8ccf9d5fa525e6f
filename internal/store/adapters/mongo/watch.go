package mongo

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
	"github.com/dropDatabas3/userdal/internal/observability/logger"
)

// Watch abre un change stream sobre la colección. El filtro se aplica
// server-side: las condiciones sobre id matchean documentKey._id (y
// por lo tanto aplican también a deletes), las demás matchean
// fullDocument y dejan pasar los deletes, que solo traen la identidad.
//
// El token de resume es el resume token nativo del server, en base64.
func (r *Repo) Watch(ctx context.Context, f repository.Filter, opts repository.WatchOptions) (repository.ChangeStream, error) {
	pipeline, err := watchPipeline(f)
	if err != nil {
		return nil, err
	}

	csOpts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	if opts.Resume != "" {
		raw, err := decodeResumeToken(opts.Resume)
		if err != nil {
			return nil, err
		}
		csOpts.SetResumeAfter(raw)
	}

	cs, err := r.coll.Watch(ctx, pipeline, csOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: watch: %v: %w", err, repository.ErrUnavailable)
	}

	return &changeStream{
		coll:     r.coll,
		cs:       cs,
		pipeline: pipeline,
		done:     make(chan struct{}),
	}, nil
}

// watchPipeline arma el $match server-side del change stream.
func watchPipeline(f repository.Filter) (mongo.Pipeline, error) {
	match := bson.D{{Key: "operationType", Value: bson.D{
		{Key: "$in", Value: bson.A{"insert", "update", "delete"}},
	}}}

	var idConds, restConds []repository.Cond
	for _, c := range f.Conds() {
		if c.Field == repository.FieldID {
			idConds = append(idConds, c)
		} else {
			restConds = append(restConds, c)
		}
	}

	if len(idConds) > 0 {
		d, err := condsToBson(idConds, "documentKey.")
		if err != nil {
			return nil, err
		}
		match = append(match, d...)
	}

	if len(restConds) > 0 {
		// Los deletes no traen fullDocument: pasan siempre y el caller
		// los correlaciona por id. Idéntico al adapter de memoria.
		d, err := condsToBson(restConds, "fullDocument.")
		if err != nil {
			return nil, err
		}
		match = append(match, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "operationType", Value: "delete"}},
			d,
		}})
	}

	return mongo.Pipeline{bson.D{{Key: "$match", Value: match}}}, nil
}

func encodeResumeToken(raw bson.Raw) repository.ResumeToken {
	return repository.ResumeToken(base64.StdEncoding.EncodeToString(raw))
}

func decodeResumeToken(t repository.ResumeToken) (bson.Raw, error) {
	b, err := base64.StdEncoding.DecodeString(string(t))
	if err != nil {
		return nil, fmt.Errorf("mongo: bad resume token: %w", repository.ErrInvalidInput)
	}
	return bson.Raw(b), nil
}

// changeDoc es la forma del documento de evento que entrega el server.
type changeDoc struct {
	OperationType string     `bson:"operationType"`
	FullDocument  *mongoUser `bson:"fullDocument"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
	UpdateDescription struct {
		UpdatedFields bson.M `bson:"updatedFields"`
	} `bson:"updateDescription"`
}

// changeStream implementa repository.ChangeStream sobre el cursor del
// driver, con un único resume automático por interrupción.
//
// Next y Close pueden llamarse desde goroutines distintas: Close
// señala done para desbloquear un Next en vuelo, y el cursor del
// server lo cierra quien lo tenga en uso en ese momento.
type changeStream struct {
	coll     *mongo.Collection
	pipeline mongo.Pipeline
	done     chan struct{}

	mu       sync.Mutex
	cs       *mongo.ChangeStream
	lastRaw  bson.Raw
	resumed  bool
	closed   bool
	inFlight bool
}

var _ repository.ChangeStream = (*changeStream)(nil)

// Next bloquea hasta el próximo evento. Ante una interrupción del
// stream reintenta una única vez reabriendo con el último token; una
// segunda interrupción consecutiva termina el stream con
// ErrStreamInterrupted.
func (c *changeStream) Next(ctx context.Context) (*repository.ChangeEvent, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, repository.ErrStreamClosed
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		closed := c.closed
		c.mu.Unlock()
		if closed {
			_ = c.cs.Close(context.Background())
		}
	}()

	// Close desbloquea un Next pendiente vía done.
	nextCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-nextCtx.Done():
		}
	}()

	for {
		if c.cs.Next(nextCtx) {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return nil, repository.ErrStreamClosed
			}
			ev, err := c.decodeCurrent()
			if err != nil {
				c.mu.Unlock()
				return nil, err
			}
			c.lastRaw = bson.Raw(c.cs.ResumeToken())
			c.resumed = false
			c.mu.Unlock()
			return ev, nil
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, repository.ErrStreamClosed
		}
		err := c.cs.Err()
		switch {
		case ctx.Err() != nil:
			c.mu.Unlock()
			return nil, ctx.Err()
		case err == nil:
			// Cursor agotado sin error: el server lo cerró.
			err = fmt.Errorf("mongo: change stream exhausted")
		}

		if c.resumed {
			c.closed = true
			c.mu.Unlock()
			return nil, fmt.Errorf("mongo: %v: %w", err, repository.ErrStreamInterrupted)
		}
		if rerr := c.resume(nextCtx, err); rerr != nil {
			c.mu.Unlock()
			return nil, rerr
		}
		c.mu.Unlock()
	}
}

// resume reabre el cursor después del último evento entregado.
// Requiere mu tomado.
func (c *changeStream) resume(ctx context.Context, cause error) error {
	logger.From(ctx).Warn("change stream interrupted, resuming",
		logger.Component("store"),
		logger.Adapter("mongo"),
		logger.Err(cause),
	)

	csOpts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	if c.lastRaw != nil {
		csOpts.SetResumeAfter(c.lastRaw)
	}

	cs, err := c.coll.Watch(ctx, c.pipeline, csOpts)
	if err != nil {
		c.closed = true
		return fmt.Errorf("mongo: resume: %v: %w", err, repository.ErrStreamInterrupted)
	}

	_ = c.cs.Close(context.Background())
	c.cs = cs
	c.resumed = true
	return nil
}

func (c *changeStream) decodeCurrent() (*repository.ChangeEvent, error) {
	var doc changeDoc
	if err := c.cs.Decode(&doc); err != nil {
		return nil, fmt.Errorf("mongo: decode change event: %v: %w", err, repository.ErrStreamInterrupted)
	}

	ev := &repository.ChangeEvent{
		Token: encodeResumeToken(bson.Raw(c.cs.ResumeToken())),
		ID:    doc.DocumentKey.ID.Hex(),
	}

	switch doc.OperationType {
	case "insert":
		ev.Kind = repository.ChangeInserted
	case "update", "replace":
		ev.Kind = repository.ChangeUpdated
	case "delete":
		ev.Kind = repository.ChangeDeleted
	default:
		return nil, fmt.Errorf("mongo: unexpected operation type %q: %w", doc.OperationType, repository.ErrStreamInterrupted)
	}

	if doc.FullDocument != nil {
		ev.User = doc.FullDocument.toDomain()
	}

	if ev.Kind == repository.ChangeUpdated {
		patch := repository.Update{}
		for k, v := range doc.UpdateDescription.UpdatedFields {
			// version y updated_at los administra el adapter, no son
			// parte del patch del caller.
			if k == "version" || k == "updated_at" {
				continue
			}
			patch = patch.Set(k, normalizeValue(v))
		}
		ev.Patch = patch
	}

	return ev, nil
}

// Close termina el stream. Después de retornar, ningún Next entrega un
// evento más (retorna ErrStreamClosed). Si hay un Next en vuelo, ese
// Next cierra el cursor al desbloquearse.
func (c *changeStream) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	inFlight := c.inFlight
	c.mu.Unlock()

	if inFlight {
		return nil
	}
	return c.cs.Close(context.Background())
}
