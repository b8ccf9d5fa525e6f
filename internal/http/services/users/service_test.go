package users

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/userdal/internal/cache"
	"github.com/dropDatabas3/userdal/internal/domain/repository"
	"github.com/dropDatabas3/userdal/internal/store/adapters/memory"
)

// countingRepo cuenta las lecturas que llegan al store.
type countingRepo struct {
	repository.UserRepository
	finds atomic.Int64
}

func (r *countingRepo) Find(ctx context.Context, f repository.Filter) ([]*repository.User, error) {
	r.finds.Add(1)
	return r.UserRepository.Find(ctx, f)
}

func newTestService(t *testing.T) (*Service, *countingRepo) {
	t.Helper()
	repo := &countingRepo{UserRepository: memory.New()}
	return New(repo, cache.NewMemory(cache.Config{}), time.Minute), repo
}

func TestGetByIDReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	created, err := svc.Create(ctx, &repository.User{
		Name: "Ana", Age: 110, Email: "ana@example.com", Gender: repository.GenderFemale,
	})
	require.NoError(t, err)

	// Create ya calentó el cache: ninguna lectura llega al store.
	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, int64(0), repo.finds.Load())

	// Cada caller recibe su propia copia.
	got.Name = "mutated"
	again, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", again.Name)
}

func TestGetByIDUnknownIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.True(t, repository.IsNotFound(err))
}

func TestUpdateRewarmsCache(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	created, err := svc.Create(ctx, &repository.User{
		Name: "Beto", Age: 130, Email: "beto@example.com", Gender: repository.GenderMale,
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, repository.Update{}.Set(repository.FieldAge, 131))
	require.NoError(t, err)
	assert.Equal(t, 131, updated.Age)
	assert.Equal(t, int64(1), updated.Version)
	findsAfterUpdate := repo.finds.Load()

	// La re-lectura del update dejó el cache caliente.
	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 131, got.Age)
	assert.Equal(t, findsAfterUpdate, repo.finds.Load())
}

func TestDeleteUnknownIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Delete(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.True(t, repository.IsNotFound(err))
}

func TestStartInvalidationEvictsOnExternalChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.New()
	repo := &countingRepo{UserRepository: store}
	svc := New(repo, cache.NewMemory(cache.Config{}), time.Minute)

	go svc.StartInvalidation(ctx)
	time.Sleep(100 * time.Millisecond)

	created, err := svc.Create(ctx, &repository.User{
		Name: "Carla", Age: 120, Email: "carla@example.com", Gender: repository.GenderFemale,
	})
	require.NoError(t, err)

	// Mutación por fuera del service, como haría otro front-end que
	// comparte el backend.
	_, err = store.Update(ctx, repository.ByID(created.ID), repository.Update{}.Set(repository.FieldAge, 121))
	require.NoError(t, err)

	// El watcher invalida la entrada; la próxima lectura va al store y
	// ve el dato nuevo.
	require.Eventually(t, func() bool {
		got, err := svc.GetByID(ctx, created.ID)
		return err == nil && got.Age == 121
	}, 2*time.Second, 20*time.Millisecond)
}
