package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

func TestFilterToBsonTranslatesIDToObjectID(t *testing.T) {
	oid := primitive.NewObjectID()

	d, err := filterToBson(repository.ByID(oid.Hex()))
	require.NoError(t, err)
	require.Equal(t, bson.D{{Key: "_id", Value: oid}}, d)
}

func TestFilterToBsonBadID(t *testing.T) {
	_, err := filterToBson(repository.ByID("not-an-oid"))
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestFilterToBsonRangeAndIn(t *testing.T) {
	d, err := filterToBson(repository.
		Where(repository.FieldAge, repository.OpGte, 115).
		And(repository.FieldGender, repository.OpIn, []string{"Male", "Female"}))
	require.NoError(t, err)

	require.Equal(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "age", Value: bson.D{{Key: "$gte", Value: 115}}}},
		bson.D{{Key: "gender", Value: bson.D{{Key: "$in", Value: []string{"Male", "Female"}}}}},
	}}}, d)
}

func TestFilterToBsonGenderCoercion(t *testing.T) {
	d, err := filterToBson(repository.Where(repository.FieldGender, repository.OpEq, repository.GenderFemale))
	require.NoError(t, err)
	require.Equal(t, bson.D{{Key: "gender", Value: "Female"}}, d)
}

func TestUpdateToBsonSetsAndVersionIncrement(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	d, err := updateToBson(repository.
		Set(repository.FieldName, "Ana").
		Set(repository.FieldGender, repository.GenderFemale), now)
	require.NoError(t, err)

	require.Equal(t, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "name", Value: "Ana"},
			{Key: "gender", Value: "Female"},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
	}, d)
}

func TestUpdateToBsonRejectsImmutableField(t *testing.T) {
	_, err := updateToBson(repository.Set(repository.FieldVersion, int64(9)), time.Now())
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestUpdateToBsonRejectsEmpty(t *testing.T) {
	_, err := updateToBson(repository.Update{}, time.Now())
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestPipelineToBsonPreservesStageOrder(t *testing.T) {
	p := repository.NewPipeline().
		Match(repository.Where(repository.FieldAge, repository.OpGt, 115)).
		Group(repository.FieldGender, repository.Count("count"), repository.Sum("total", repository.FieldAge)).
		Sort("count", repository.SortDesc).
		Limit(5)

	out, err := pipelineToBson(p)
	require.NoError(t, err)
	require.Len(t, out, 4)

	require.Equal(t, "$match", out[0][0].Key)
	require.Equal(t, "$group", out[1][0].Key)
	require.Equal(t, "$sort", out[2][0].Key)
	require.Equal(t, "$limit", out[3][0].Key)

	group, ok := out[1][0].Value.(bson.D)
	require.True(t, ok)
	require.Equal(t, bson.D{
		{Key: "_id", Value: "$gender"},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		{Key: "total", Value: bson.D{{Key: "$sum", Value: "$age"}}},
	}, group)
}

func TestPipelineToBsonPropagatesBuilderError(t *testing.T) {
	p := repository.NewPipeline().Limit(0)
	_, err := pipelineToBson(p)
	require.ErrorIs(t, err, repository.ErrInvalidPipeline)
}

func TestWatchPipelineIDCondsMatchDocumentKey(t *testing.T) {
	oid := primitive.NewObjectID()

	out, err := watchPipeline(repository.ByID(oid.Hex()))
	require.NoError(t, err)
	require.Len(t, out, 1)

	match, ok := out[0][0].Value.(bson.D)
	require.True(t, ok)
	require.Equal(t, "operationType", match[0].Key)
	require.Equal(t, bson.E{Key: "documentKey._id", Value: oid}, match[1])
}

func TestWatchPipelineNonIDCondsLetDeletesThrough(t *testing.T) {
	out, err := watchPipeline(repository.Where(repository.FieldGender, repository.OpEq, repository.GenderMale))
	require.NoError(t, err)

	match, ok := out[0][0].Value.(bson.D)
	require.True(t, ok)
	require.Equal(t, "$or", match[1].Key)

	or, ok := match[1].Value.(bson.A)
	require.True(t, ok)
	require.Equal(t, bson.D{{Key: "operationType", Value: "delete"}}, or[0])
	require.Equal(t, bson.D{{Key: "fullDocument.gender", Value: "Male"}}, or[1])
}

func TestResumeTokenRoundTrip(t *testing.T) {
	raw := bson.Raw([]byte{0x05, 0x00, 0x00, 0x00, 0x00})

	tok := encodeResumeToken(raw)
	back, err := decodeResumeToken(tok)
	require.NoError(t, err)
	require.Equal(t, raw, back)
}

func TestDecodeResumeTokenRejectsGarbage(t *testing.T) {
	_, err := decodeResumeToken("%%%not-base64%%%")
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestNormalizeDocFlattensDriverTypes(t *testing.T) {
	oid := primitive.NewObjectID()
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	got := normalizeDoc(bson.M{
		"_id":   oid,
		"when":  primitive.NewDateTimeFromTime(at),
		"n":     int32(7),
		"tags":  primitive.A{"a", int32(2)},
		"inner": bson.M{"k": int32(1)},
	})

	require.Equal(t, oid.Hex(), got["_id"])
	require.Equal(t, at, got["when"])
	require.Equal(t, int64(7), got["n"])
	require.Equal(t, []any{"a", int64(2)}, got["tags"])
	require.Equal(t, map[string]any{"k": int64(1)}, got["inner"])
}
