// Package storetest contiene la suite de contrato del port de
// usuarios. Cada adapter debe pasarla completa: las garantías
// observables (versionado, idempotencia de delete, orden de eventos)
// son las mismas sin importar el backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

// Factory abre un repositorio limpio para un subtest.
type Factory func(t *testing.T) repository.UserRepository

// Run ejecuta la suite de contrato contra el adapter dado.
func Run(t *testing.T, open Factory) {
	t.Run("CreateAssignsIDAndVersionZero", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, &repository.User{
			Name: "Ana", Age: 120, Email: "ana@example.com", Gender: repository.GenderFemale,
		})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		require.EqualValues(t, 0, created.Version)

		got, err := repo.Find(ctx, repository.ByID(created.ID))
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "Ana", got[0].Name)
		require.EqualValues(t, 0, got[0].Version)
	})

	t.Run("CreateDuplicateIDConflicts", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, &repository.User{
			Name: "Ana", Age: 120, Email: "ana@example.com", Gender: repository.GenderFemale,
		})
		require.NoError(t, err)

		_, err = repo.Create(ctx, &repository.User{
			ID: created.ID, Name: "Beto", Age: 130, Email: "beto@example.com", Gender: repository.GenderMale,
		})
		require.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("FindEmptyIsNotAnError", func(t *testing.T) {
		repo := open(t)

		got, err := repo.Find(context.Background(), repository.Where(repository.FieldName, repository.OpEq, "nadie"))
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("FindFilterAndSort", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		seed(t, repo)

		got, err := repo.Find(ctx, repository.
			Where(repository.FieldAge, repository.OpGte, 115).
			SortBy(repository.FieldAge, repository.SortDesc))
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, "Beto", got[0].Name)
		require.Equal(t, "Carla", got[1].Name)
	})

	t.Run("UpdateIncrementsVersionByOne", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, &repository.User{
			Name: "Ana", Age: 120, Email: "ana@example.com", Gender: repository.GenderFemale,
		})
		require.NoError(t, err)

		out, err := repo.Update(ctx, repository.ByID(created.ID),
			repository.Set(repository.FieldName, "Ana María"))
		require.NoError(t, err)
		require.EqualValues(t, 1, out.Matched)
		require.EqualValues(t, 1, out.Modified)

		got, err := repo.Find(ctx, repository.ByID(created.ID))
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "Ana María", got[0].Name)
		require.EqualValues(t, 1, got[0].Version)
	})

	t.Run("UpdateStaleVersionConflictLeavesStoreIntact", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, &repository.User{
			Name: "Ana", Age: 120, Email: "ana@example.com", Gender: repository.GenderFemale,
		})
		require.NoError(t, err)

		// Primer update sube la versión a 1.
		_, err = repo.Update(ctx, repository.ByID(created.ID),
			repository.Set(repository.FieldAge, 121))
		require.NoError(t, err)

		// Writer con snapshot viejo (version 0) debe fallar.
		_, err = repo.Update(ctx, repository.ByID(created.ID),
			repository.Set(repository.FieldAge, 999).WithExpectedVersion(0))
		require.ErrorIs(t, err, repository.ErrConflict)

		got, err := repo.Find(ctx, repository.ByID(created.ID))
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, 121, got[0].Age)
		require.EqualValues(t, 1, got[0].Version)
	})

	t.Run("UpdateMatchingVersionApplies", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, &repository.User{
			Name: "Ana", Age: 120, Email: "ana@example.com", Gender: repository.GenderFemale,
		})
		require.NoError(t, err)

		out, err := repo.Update(ctx, repository.ByID(created.ID),
			repository.Set(repository.FieldAge, 121).WithExpectedVersion(0))
		require.NoError(t, err)
		require.EqualValues(t, 1, out.Matched)
	})

	t.Run("UpdateOneZeroMatchesIsNotFound", func(t *testing.T) {
		repo := open(t)

		_, err := repo.Update(context.Background(),
			repository.Where(repository.FieldName, repository.OpEq, "nadie").One(),
			repository.Set(repository.FieldAge, 121))
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("UpdateImmutableFieldIsInvalid", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, &repository.User{
			Name: "Ana", Age: 120, Email: "ana@example.com", Gender: repository.GenderFemale,
		})
		require.NoError(t, err)

		_, err = repo.Update(ctx, repository.ByID(created.ID),
			repository.Set(repository.FieldVersion, int64(7)))
		require.ErrorIs(t, err, repository.ErrInvalidInput)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, &repository.User{
			Name: "Ana", Age: 120, Email: "ana@example.com", Gender: repository.GenderFemale,
		})
		require.NoError(t, err)

		n, err := repo.Delete(ctx, repository.ByID(created.ID))
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		// Segundo delete del mismo id: 0 afectados, sin error.
		n, err = repo.Delete(ctx, repository.ByID(created.ID))
		require.NoError(t, err)
		require.EqualValues(t, 0, n)
	})

	t.Run("DeleteOneZeroMatchesIsNotFound", func(t *testing.T) {
		repo := open(t)

		_, err := repo.Delete(context.Background(),
			repository.Where(repository.FieldName, repository.OpEq, "nadie").One())
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("AggregateGroupSumByGender", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		seed(t, repo)

		p := repository.NewPipeline().
			Group(repository.FieldGender, repository.Count("count"))
		docs, err := repo.Aggregate(ctx, p)
		require.NoError(t, err)

		counts := map[string]int64{}
		for _, d := range docs {
			key, ok := d["_id"].(string)
			require.True(t, ok, "group key should be a string, got %T", d["_id"])
			n, ok := d["count"].(int64)
			require.True(t, ok, "count should be int64, got %T", d["count"])
			counts[key] = n
		}
		require.Equal(t, map[string]int64{"Female": 2, "Male": 1}, counts)
	})

	t.Run("AggregateMatchThenSum", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		seed(t, repo)

		p := repository.NewPipeline().
			Match(repository.Where(repository.FieldGender, repository.OpEq, repository.GenderFemale)).
			Group(repository.FieldGender, repository.Sum("total_age", repository.FieldAge))
		docs, err := repo.Aggregate(ctx, p)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		require.EqualValues(t, 110+120, docs[0]["total_age"])
	})

	t.Run("AggregateMalformedPipeline", func(t *testing.T) {
		repo := open(t)

		p := repository.NewPipeline().Group("", repository.Count("count"))
		_, err := repo.Aggregate(context.Background(), p)
		require.ErrorIs(t, err, repository.ErrInvalidPipeline)
	})

	t.Run("WatchDeliversCommittedOrder", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		stream, err := repo.Watch(ctx, repository.All(), repository.WatchOptions{})
		require.NoError(t, err)
		defer stream.Close()

		created, err := repo.Create(ctx, &repository.User{
			Name: "Ana", Age: 120, Email: "ana@example.com", Gender: repository.GenderFemale,
		})
		require.NoError(t, err)
		_, err = repo.Update(ctx, repository.ByID(created.ID),
			repository.Set(repository.FieldAge, 121))
		require.NoError(t, err)
		_, err = repo.Delete(ctx, repository.ByID(created.ID))
		require.NoError(t, err)

		ev := nextEvent(t, stream)
		require.Equal(t, repository.ChangeInserted, ev.Kind)
		require.Equal(t, created.ID, ev.ID)
		require.NotNil(t, ev.User)

		ev = nextEvent(t, stream)
		require.Equal(t, repository.ChangeUpdated, ev.Kind)
		require.Equal(t, created.ID, ev.ID)

		ev = nextEvent(t, stream)
		require.Equal(t, repository.ChangeDeleted, ev.Kind)
		require.Equal(t, created.ID, ev.ID)
	})

	t.Run("WatchFilterSkipsNonMatching", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		stream, err := repo.Watch(ctx,
			repository.Where(repository.FieldGender, repository.OpEq, repository.GenderMale),
			repository.WatchOptions{})
		require.NoError(t, err)
		defer stream.Close()

		_, err = repo.Create(ctx, &repository.User{
			Name: "Ana", Age: 120, Email: "ana@example.com", Gender: repository.GenderFemale,
		})
		require.NoError(t, err)
		beto, err := repo.Create(ctx, &repository.User{
			Name: "Beto", Age: 130, Email: "beto@example.com", Gender: repository.GenderMale,
		})
		require.NoError(t, err)

		ev := nextEvent(t, stream)
		require.Equal(t, beto.ID, ev.ID)
	})

	t.Run("WatchCancelledContextStopsNext", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		stream, err := repo.Watch(ctx, repository.All(), repository.WatchOptions{})
		require.NoError(t, err)
		defer stream.Close()

		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = stream.Next(cancelCtx)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("WatchCloseIsSynchronous", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		stream, err := repo.Watch(ctx, repository.All(), repository.WatchOptions{})
		require.NoError(t, err)

		// Evento encolado pero no consumido.
		_, err = repo.Create(ctx, &repository.User{
			Name: "Ana", Age: 120, Email: "ana@example.com", Gender: repository.GenderFemale,
		})
		require.NoError(t, err)

		require.NoError(t, stream.Close())

		// Después de Close, nada se entrega: ni siquiera lo encolado.
		_, err = stream.Next(context.Background())
		require.ErrorIs(t, err, repository.ErrStreamClosed)
	})

	t.Run("WatchResumeContinuesAfterToken", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		stream, err := repo.Watch(ctx, repository.All(), repository.WatchOptions{})
		require.NoError(t, err)

		ana, err := repo.Create(ctx, &repository.User{
			Name: "Ana", Age: 120, Email: "ana@example.com", Gender: repository.GenderFemale,
		})
		require.NoError(t, err)
		beto, err := repo.Create(ctx, &repository.User{
			Name: "Beto", Age: 130, Email: "beto@example.com", Gender: repository.GenderMale,
		})
		require.NoError(t, err)

		ev := nextEvent(t, stream)
		require.Equal(t, ana.ID, ev.ID)
		token := ev.Token
		require.NoError(t, stream.Close())

		// Reabrir después del primer evento: solo llega el segundo.
		resumed, err := repo.Watch(ctx, repository.All(), repository.WatchOptions{Resume: token})
		require.NoError(t, err)
		defer resumed.Close()

		ev = nextEvent(t, resumed)
		require.Equal(t, beto.ID, ev.ID)
	})
}

// seed carga tres usuarios fijos: dos Female (110, 120) y un Male (130).
func seed(t *testing.T, repo repository.UserRepository) {
	t.Helper()
	ctx := context.Background()
	for _, u := range []repository.User{
		{Name: "Ana", Age: 110, Email: "ana@example.com", Gender: repository.GenderFemale},
		{Name: "Beto", Age: 130, Email: "beto@example.com", Gender: repository.GenderMale},
		{Name: "Carla", Age: 120, Email: "carla@example.com", Gender: repository.GenderFemale},
	} {
		u := u
		_, err := repo.Create(ctx, &u)
		require.NoError(t, err)
	}
}

func nextEvent(t *testing.T, s repository.ChangeStream) *repository.ChangeEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := s.Next(ctx)
	require.NoError(t, err)
	return ev
}
