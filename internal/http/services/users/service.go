// Package users implementa la lógica de aplicación del API de
// usuarios sobre el port de persistencia: cache read-through por id,
// colapso de lecturas concurrentes y la invalidación dirigida por el
// change stream del store.
package users

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/userdal/internal/cache"
	"github.com/dropDatabas3/userdal/internal/domain/repository"
	"github.com/dropDatabas3/userdal/internal/http/dto"
	"github.com/dropDatabas3/userdal/internal/observability/logger"
)

// Service expone las operaciones de usuarios a los controllers.
type Service struct {
	repo  repository.UserRepository
	cache cache.Client
	ttl   time.Duration
	sf    singleflight.Group
}

// New crea el service. ttl es la vigencia de las entradas de cache.
func New(repo repository.UserRepository, c cache.Client, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: c, ttl: ttl}
}

func cacheKey(id string) string { return "user:" + id }

// Create persiste un usuario nuevo y calienta el cache.
func (s *Service) Create(ctx context.Context, u *repository.User) (*repository.User, error) {
	created, err := s.repo.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	s.cachePut(ctx, created)
	return created, nil
}

// GetByID resuelve un usuario por id, cache primero. Las lecturas
// concurrentes del mismo id colapsan en una sola consulta al store.
func (s *Service) GetByID(ctx context.Context, id string) (*repository.User, error) {
	if raw, err := s.cache.Get(ctx, cacheKey(id)); err == nil {
		var u repository.User
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			return &u, nil
		}
		// Entrada corrupta: descartarla y seguir al store.
		_ = s.cache.Delete(ctx, cacheKey(id))
	}

	v, err, _ := s.sf.Do(id, func() (any, error) {
		got, err := s.repo.Find(ctx, repository.ByID(id))
		if err != nil {
			return nil, err
		}
		if len(got) == 0 {
			return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
		}
		s.cachePut(ctx, got[0])
		return got[0], nil
	})
	if err != nil {
		return nil, err
	}
	// Cada caller recibe su propia copia.
	return v.(*repository.User).Clone(), nil
}

// Search retorna los usuarios que matchean el filtro.
func (s *Service) Search(ctx context.Context, f repository.Filter) ([]*repository.User, error) {
	return s.repo.Find(ctx, f)
}

// Update aplica el patch a un usuario y retorna el documento
// resultante. Cero matches es ErrNotFound; un mismatch de versión
// esperada es ErrConflict.
func (s *Service) Update(ctx context.Context, id string, patch repository.Update) (*repository.User, error) {
	if _, err := s.repo.Update(ctx, repository.ByID(id).One(), patch); err != nil {
		return nil, err
	}
	_ = s.cache.Delete(ctx, cacheKey(id))

	got, err := s.repo.Find(ctx, repository.ByID(id))
	if err != nil {
		return nil, err
	}
	if len(got) == 0 {
		// Borrado entre el update y la re-lectura.
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	s.cachePut(ctx, got[0])
	return got[0], nil
}

// Delete elimina un usuario por id. ErrNotFound si no existe: a nivel
// REST un DELETE de un recurso inexistente es 404, aunque el port sea
// idempotente con filtros sin One().
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Delete(ctx, repository.ByID(id).One()); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, cacheKey(id))
	return nil
}

// GenderStats agrupa la colección por género y cuenta.
func (s *Service) GenderStats(ctx context.Context) ([]dto.GenderCount, error) {
	p := repository.NewPipeline().
		Group(repository.FieldGender, repository.Count("count"))
	docs, err := s.repo.Aggregate(ctx, p)
	if err != nil {
		return nil, err
	}

	out := make([]dto.GenderCount, 0, len(docs))
	for _, d := range docs {
		gc := dto.GenderCount{}
		if g, ok := d["_id"].(string); ok {
			gc.Gender = g
		}
		switch n := d["count"].(type) {
		case int64:
			gc.Count = n
		case float64:
			gc.Count = int64(n)
		}
		out = append(out, gc)
	}
	return out, nil
}

// Watch abre un change stream de toda la colección para el endpoint de
// eventos. El filtrado fino es del caller.
func (s *Service) Watch(ctx context.Context, opts repository.WatchOptions) (repository.ChangeStream, error) {
	return s.repo.Watch(ctx, repository.All(), opts)
}

func (s *Service) cachePut(ctx context.Context, u *repository.User) {
	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(u.ID), string(b), s.ttl); err != nil {
		logger.From(ctx).Debug("cache set failed",
			logger.Component("users"),
			logger.Key(cacheKey(u.ID)),
			logger.Err(err),
		)
	}
}

// StartInvalidation arranca el watcher que invalida el cache ante cada
// mutación del store, venga de este proceso o de otro front-end que
// comparta el backend. Retorna cuando ctx se cancela.
//
// Ante una interrupción del stream reabre con el último token conocido;
// si el resume falla, reabre desde "ahora" y purga nada (las entradas
// expiran por TTL de todas formas).
func (s *Service) StartInvalidation(ctx context.Context) {
	log := logger.L().Named("cache-invalidator")
	var token repository.ResumeToken

	for {
		if ctx.Err() != nil {
			return
		}

		stream, err := s.repo.Watch(ctx, repository.All(), repository.WatchOptions{Resume: token})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Token viejo o store caído: reintentar desde ahora.
			log.Warn("invalidation watch failed, retrying",
				logger.Token(string(token)),
				logger.Err(err),
			)
			token = ""
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		for {
			ev, err := stream.Next(ctx)
			if err != nil {
				_ = stream.Close()
				if ctx.Err() != nil {
					return
				}
				log.Warn("invalidation stream interrupted",
					logger.Err(err),
				)
				break
			}
			token = ev.Token
			_ = s.cache.Delete(ctx, cacheKey(ev.ID))
		}
	}
}
