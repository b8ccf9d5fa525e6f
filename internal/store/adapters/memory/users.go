package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

// Store es el repositorio in-memory. Exportado para uso directo en
// tests; en producción se llega vía el registry (store.Open).
//
// Un único mutex serializa todas las operaciones. Aceptable para un
// doble de pruebas: el lock nunca se expone al caller.
type Store struct {
	mu sync.Mutex

	docs  map[string]*repository.User
	order []string // IDs en orden de inserción

	seq    int64 // tokens de resume, monotónico
	subSeq int64
	subs   map[int64]*stream
	log    []*repository.ChangeEvent
}

// New crea un Store vacío.
func New() *Store {
	return &Store{
		docs: make(map[string]*repository.User),
		subs: make(map[int64]*stream),
	}
}

var _ repository.UserRepository = (*Store)(nil)

// Create persiste un usuario nuevo. Ver repository.UserRepository.
func (s *Store) Create(ctx context.Context, u *repository.User) (*repository.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("memory: nil user: %w", repository.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := u.Clone()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	} else if _, exists := s.docs[doc.ID]; exists {
		return nil, fmt.Errorf("memory: id %s: %w", doc.ID, repository.ErrConflict)
	}

	now := time.Now().UTC()
	doc.Version = 0
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = doc.CreatedAt

	s.docs[doc.ID] = doc
	s.order = append(s.order, doc.ID)

	s.emit(&repository.ChangeEvent{
		Kind: repository.ChangeInserted,
		ID:   doc.ID,
		User: doc.Clone(),
	})

	return doc.Clone(), nil
}

// Find retorna los usuarios que matchean, en orden de inserción salvo
// sort explícito. Cero matches es un slice vacío, nunca error.
func (s *Store) Find(ctx context.Context, f repository.Filter) ([]*repository.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conds := f.Conds()
	out := make([]*repository.User, 0)
	for _, id := range s.order {
		u := s.docs[id]
		if docMatches(conds, userDoc(u)) {
			out = append(out, u.Clone())
		}
	}

	if field, dir, ok := f.Sort(); ok {
		sort.SliceStable(out, func(i, j int) bool {
			cmp, ok := compareAny(userDoc(out[i])[field], userDoc(out[j])[field])
			if !ok {
				return false
			}
			if dir == repository.SortDesc {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	return out, nil
}

// Update aplica el patch a los documentos matcheados, todo-o-nada bajo
// el lock. Ver repository.UserRepository por la semántica de versión.
func (s *Store) Update(ctx context.Context, f repository.Filter, patch repository.Update) (*repository.UpdateOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, fmt.Errorf("memory: empty update: %w", repository.ErrInvalidInput)
	}
	for _, fs := range patch.Sets() {
		if !repository.MutableFields[fs.Field] {
			return nil, fmt.Errorf("memory: field %q not updatable: %w", fs.Field, repository.ErrInvalidInput)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matchedIDs(f)
	if len(matched) == 0 {
		if f.ExactlyOne() {
			return nil, fmt.Errorf("memory: update: %w", repository.ErrNotFound)
		}
		return &repository.UpdateOutcome{}, nil
	}
	if f.ExactlyOne() {
		matched = matched[:1]
	}

	// Check de concurrencia optimista: el update aplica solo a los
	// documentos con la versión esperada; si el filtro matcheó pero
	// ninguno la tiene, el store queda intacto.
	if ev, ok := patch.ExpectedVersion(); ok {
		narrowed := matched[:0:0]
		for _, id := range matched {
			if s.docs[id].Version == ev {
				narrowed = append(narrowed, id)
			}
		}
		if len(narrowed) == 0 {
			return nil, fmt.Errorf("memory: version %d: %w", ev, repository.ErrConflict)
		}
		matched = narrowed
	}

	// Validar antes de mutar: todo-o-nada por llamada en este adapter.
	for _, id := range matched {
		probe := s.docs[id].Clone()
		for _, fs := range patch.Sets() {
			if err := applySet(probe, fs); err != nil {
				return nil, err
			}
		}
	}

	now := time.Now().UTC()
	for _, id := range matched {
		doc := s.docs[id]
		for _, fs := range patch.Sets() {
			_ = applySet(doc, fs)
		}
		doc.Version++
		doc.UpdatedAt = now

		s.emit(&repository.ChangeEvent{
			Kind:  repository.ChangeUpdated,
			ID:    id,
			User:  doc.Clone(),
			Patch: patch,
		})
	}

	n := int64(len(matched))
	return &repository.UpdateOutcome{Matched: n, Modified: n}, nil
}

// Delete elimina los documentos matcheados. Idempotente salvo One().
func (s *Store) Delete(ctx context.Context, f repository.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matchedIDs(f)
	if len(matched) == 0 {
		if f.ExactlyOne() {
			return 0, fmt.Errorf("memory: delete: %w", repository.ErrNotFound)
		}
		return 0, nil
	}
	if f.ExactlyOne() {
		matched = matched[:1]
	}

	for _, id := range matched {
		delete(s.docs, id)
		s.emit(&repository.ChangeEvent{
			Kind: repository.ChangeDeleted,
			ID:   id,
		})
	}

	remaining := s.order[:0]
	drop := make(map[string]bool, len(matched))
	for _, id := range matched {
		drop[id] = true
	}
	for _, id := range s.order {
		if !drop[id] {
			remaining = append(remaining, id)
		}
	}
	s.order = remaining

	return int64(len(matched)), nil
}

// matchedIDs retorna los IDs matcheados en orden de inserción.
// Requiere mu tomado.
func (s *Store) matchedIDs(f repository.Filter) []string {
	conds := f.Conds()
	var out []string
	for _, id := range s.order {
		if docMatches(conds, userDoc(s.docs[id])) {
			out = append(out, id)
		}
	}
	return out
}

func applySet(u *repository.User, fs repository.FieldSet) error {
	switch fs.Field {
	case repository.FieldName:
		s, ok := fs.Value.(string)
		if !ok {
			return badValue(fs)
		}
		u.Name = s
	case repository.FieldAge:
		n, ok := toInt(fs.Value)
		if !ok {
			return badValue(fs)
		}
		u.Age = int(n)
	case repository.FieldEmail:
		s, ok := fs.Value.(string)
		if !ok {
			return badValue(fs)
		}
		u.Email = s
	case repository.FieldGender:
		s, ok := toString(fs.Value)
		if !ok {
			return badValue(fs)
		}
		u.Gender = repository.Gender(s)
	default:
		return fmt.Errorf("memory: field %q not updatable: %w", fs.Field, repository.ErrInvalidInput)
	}
	return nil
}

func badValue(fs repository.FieldSet) error {
	return fmt.Errorf("memory: bad value %T for field %q: %w", fs.Value, fs.Field, repository.ErrInvalidInput)
}
