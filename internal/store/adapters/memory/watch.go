package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

// Watch abre un change stream in-process alimentado por los writes de
// esta misma instancia. Los eventos se entregan en orden de commit
// (el orden de emisión bajo el lock del Store).
//
// El token de resume es el contador monotónico del Store; con
// opts.Resume se re-entregan los eventos posteriores al token desde el
// log interno.
func (s *Store) Watch(ctx context.Context, f repository.Filter, opts repository.WatchOptions) (repository.ChangeStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subSeq++
	st := &stream{
		store:  s,
		id:     s.subSeq,
		filter: f,
		notify: make(chan struct{}, 1),
	}

	if opts.Resume != "" {
		after, err := strconv.ParseInt(string(opts.Resume), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("memory: bad resume token %q: %w", opts.Resume, repository.ErrInvalidInput)
		}
		for _, ev := range s.log {
			seq, _ := strconv.ParseInt(string(ev.Token), 10, 64)
			if seq > after && eventMatches(f, ev) {
				st.queue = append(st.queue, ev)
			}
		}
	}

	s.subs[st.id] = st
	return st, nil
}

// emit asigna token, persiste en el log y reparte a los suscriptores
// cuyo filtro matchea. Requiere mu tomado.
func (s *Store) emit(ev *repository.ChangeEvent) {
	s.seq++
	ev.Token = repository.ResumeToken(strconv.FormatInt(s.seq, 10))
	s.log = append(s.log, ev)

	for _, st := range s.subs {
		if eventMatches(st.filter, ev) {
			st.push(ev)
		}
	}
}

// eventMatches decide si un evento pertenece a un watch. Para deletes
// solo se dispone de la identidad del documento, así que solo cuentan
// las condiciones sobre id; el resto de los kinds matchea contra el
// snapshot completo. Mismo comportamiento que el adapter de mongo.
func eventMatches(f repository.Filter, ev *repository.ChangeEvent) bool {
	conds := f.Conds()
	if ev.Kind == repository.ChangeDeleted {
		for _, c := range conds {
			if c.Field != repository.FieldID {
				continue
			}
			if !condMatches(c, ev.ID) {
				return false
			}
		}
		return true
	}
	return docMatches(conds, userDoc(ev.User))
}

func (s *Store) unsubscribe(id int64) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

// closeAllStreams termina todos los streams activos (Close de la
// conexión).
func (s *Store) closeAllStreams() {
	s.mu.Lock()
	subs := make([]*stream, 0, len(s.subs))
	for _, st := range s.subs {
		subs = append(subs, st)
	}
	s.subs = make(map[int64]*stream)
	s.mu.Unlock()

	for _, st := range subs {
		st.terminate(nil)
	}
}

// InjectStreamFault termina todos los streams activos con err en el
// próximo Next. Hook de inyección de fallas para que los front-ends
// puedan testear el manejo de ErrStreamInterrupted, inalcanzable por
// vías normales en este adapter.
func (s *Store) InjectStreamFault(err error) {
	s.mu.Lock()
	subs := make([]*stream, 0, len(s.subs))
	for _, st := range s.subs {
		subs = append(subs, st)
	}
	s.mu.Unlock()

	for _, st := range subs {
		st.terminate(err)
	}
}

// stream es un cursor de change stream in-process.
type stream struct {
	store  *Store
	id     int64
	filter repository.Filter

	mu     sync.Mutex
	queue  []*repository.ChangeEvent
	notify chan struct{}
	closed bool
	fault  error
}

var _ repository.ChangeStream = (*stream)(nil)

// Next bloquea hasta el próximo evento, cancelación del ctx, o cierre.
func (st *stream) Next(ctx context.Context) (*repository.ChangeEvent, error) {
	for {
		st.mu.Lock()
		if st.closed {
			st.mu.Unlock()
			return nil, repository.ErrStreamClosed
		}
		if st.fault != nil {
			err := st.fault
			st.mu.Unlock()
			return nil, err
		}
		if len(st.queue) > 0 {
			ev := st.queue[0]
			st.queue = st.queue[1:]
			st.mu.Unlock()
			return ev, nil
		}
		st.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-st.notify:
		}
	}
}

// Close desuscribe y descarta lo encolado. Síncrono: después de
// retornar, ningún Next entrega un evento más.
func (st *stream) Close() error {
	st.store.unsubscribe(st.id)
	st.terminate(nil)
	return nil
}

func (st *stream) push(ev *repository.ChangeEvent) {
	st.mu.Lock()
	if st.closed || st.fault != nil {
		st.mu.Unlock()
		return
	}
	st.queue = append(st.queue, ev)
	st.mu.Unlock()

	select {
	case st.notify <- struct{}{}:
	default:
	}
}

// terminate cierra el stream; con err != nil el próximo Next retorna
// ese error en lugar de ErrStreamClosed.
func (st *stream) terminate(err error) {
	st.mu.Lock()
	if err != nil && !st.closed {
		st.fault = err
	} else {
		st.closed = true
	}
	st.queue = nil
	st.mu.Unlock()

	select {
	case st.notify <- struct{}{}:
	default:
	}
}
