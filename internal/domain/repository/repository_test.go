package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterIsImmutable(t *testing.T) {
	base := Where(FieldGender, OpEq, GenderFemale)

	withAge := base.And(FieldAge, OpGte, 115)
	withSort := base.SortBy(FieldAge, SortDesc)
	withOne := base.One()

	require.Len(t, base.Conds(), 1)
	require.Len(t, withAge.Conds(), 2)

	_, _, ok := base.Sort()
	require.False(t, ok)
	field, dir, ok := withSort.Sort()
	require.True(t, ok)
	require.Equal(t, FieldAge, field)
	require.Equal(t, SortDesc, dir)

	require.False(t, base.ExactlyOne())
	require.True(t, withOne.ExactlyOne())
}

func TestFilterCondsReturnsCopy(t *testing.T) {
	f := Where(FieldName, OpEq, "Ana")
	conds := f.Conds()
	conds[0].Value = "mutated"

	require.Equal(t, "Ana", f.Conds()[0].Value)
}

func TestByIDDoesNotImplyExactlyOne(t *testing.T) {
	require.False(t, ByID("abc").ExactlyOne())
	require.True(t, ByID("abc").One().ExactlyOne())
}

func TestUpdateIsImmutable(t *testing.T) {
	base := Set(FieldName, "Ana")
	more := base.Set(FieldAge, 120)
	versioned := base.WithExpectedVersion(3)

	require.Len(t, base.Sets(), 1)
	require.Len(t, more.Sets(), 2)

	_, ok := base.ExpectedVersion()
	require.False(t, ok)
	v, ok := versioned.ExpectedVersion()
	require.True(t, ok)
	require.EqualValues(t, 3, v)
}

func TestUpdateSetsPreserveOrder(t *testing.T) {
	u := Set(FieldName, "Ana").Set(FieldAge, 120).Set(FieldEmail, "ana@example.com")
	sets := u.Sets()
	require.Equal(t, []string{FieldName, FieldAge, FieldEmail},
		[]string{sets[0].Field, sets[1].Field, sets[2].Field})
}

func TestPipelinePreservesStageOrder(t *testing.T) {
	p := NewPipeline().
		Match(All()).
		Group(FieldGender, Count("count")).
		Project("count").
		Sort("count", SortDesc).
		Limit(10)

	require.NoError(t, p.Err())
	kinds := make([]StageKind, 0, 5)
	for _, st := range p.Stages() {
		kinds = append(kinds, st.Kind)
	}
	require.Equal(t, []StageKind{StageMatch, StageGroup, StageProject, StageSort, StageLimit}, kinds)
}

func TestPipelineBuilderAccumulatesFirstError(t *testing.T) {
	cases := []struct {
		name  string
		build func() *Pipeline
	}{
		{"EmptyGroupKey", func() *Pipeline { return NewPipeline().Group("", Count("count")) }},
		{"NoAccumulators", func() *Pipeline { return NewPipeline().Group(FieldGender) }},
		{"AccumulatorWithoutName", func() *Pipeline {
			return NewPipeline().Group(FieldGender, Accumulator{Op: AccCount})
		}},
		{"SumWithoutField", func() *Pipeline {
			return NewPipeline().Group(FieldGender, Accumulator{Name: "total", Op: AccSum})
		}},
		{"EmptyProject", func() *Pipeline { return NewPipeline().Project() }},
		{"EmptySortField", func() *Pipeline { return NewPipeline().Sort("", SortAsc) }},
		{"NonPositiveLimit", func() *Pipeline { return NewPipeline().Limit(0) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.build().Err(), ErrInvalidPipeline)
		})
	}
}

func TestPipelineKeepsFirstErrorOnly(t *testing.T) {
	p := NewPipeline().Limit(0).Sort("", SortAsc)
	require.ErrorIs(t, p.Err(), ErrInvalidPipeline)
	require.Contains(t, p.Err().Error(), "limit")
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{ErrNotFound, "not_found"},
		{ErrConflict, "conflict"},
		{ErrInvalidInput, "invalid_input"},
		{ErrInvalidPipeline, "invalid_pipeline"},
		{ErrUnavailable, "unavailable"},
		{ErrStreamInterrupted, "stream_interrupted"},
		{ErrTLSHandshake, "tls_handshake"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.kind, Kind(tc.err))
	}
}

func TestErrorKindSeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("mongo: something: %w", ErrConflict)
	require.Equal(t, "conflict", Kind(err))
	require.True(t, IsConflict(err))
	require.False(t, IsNotFound(err))
}

func TestUserClone(t *testing.T) {
	u := &User{ID: "1", Name: "Ana"}
	cp := u.Clone()
	cp.Name = "Beto"
	require.Equal(t, "Ana", u.Name)

	var nilUser *User
	require.Nil(t, nilUser.Clone())
}
