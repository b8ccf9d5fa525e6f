package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/userdal/internal/cache"
	userscontroller "github.com/dropDatabas3/userdal/internal/http/controllers/users"
	"github.com/dropDatabas3/userdal/internal/http/dto"
	userssvc "github.com/dropDatabas3/userdal/internal/http/services/users"
	"github.com/dropDatabas3/userdal/internal/store"

	_ "github.com/dropDatabas3/userdal/internal/store/adapters/memory"
)

func newTestRouter(t *testing.T, secret []byte) http.Handler {
	t.Helper()

	conn, err := store.Open(context.Background(), store.Config{Name: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })

	service := userssvc.New(conn.Users(), cache.NewMemory(cache.Config{}), time.Minute)

	return NewRouter(RouterConfig{
		Users:     userscontroller.NewController(service),
		Conn:      conn,
		JWTSecret: secret,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) dto.UserResponse {
	t.Helper()
	var u dto.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	return u
}

func createUser(t *testing.T, h http.Handler, name string, age int, gender string) dto.UserResponse {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/v1/users", map[string]any{
		"name":   name,
		"age":    age,
		"email":  fmt.Sprintf("%s@example.com", name),
		"gender": gender,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeUser(t, rec)
}

func TestCreateAndGetUser(t *testing.T) {
	h := newTestRouter(t, nil)

	created := createUser(t, h, "ana", 110, "Female")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, int64(0), created.Version)
	assert.Equal(t, "Female", created.Gender)

	rec := doJSON(t, h, http.MethodGet, "/v1/users/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeUser(t, rec)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "ana", got.Name)

	// El correlation id viaja en la respuesta.
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestCreateValidationFails(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/users", map[string]any{
		"name": "ana", "age": 12, "email": "ana@example.com", "gender": "Female",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_failed")
}

func TestCreateRejectsWrongContentType(t *testing.T) {
	h := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewBufferString("name=ana"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownUserIs404(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/v1/users/no-such-id", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestUpdateIncrementsVersion(t *testing.T) {
	h := newTestRouter(t, nil)
	created := createUser(t, h, "beto", 130, "Male")

	rec := doJSON(t, h, http.MethodPatch, "/v1/users/"+created.ID, map[string]any{
		"age": 131,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeUser(t, rec)
	assert.Equal(t, 131, updated.Age)
	assert.Equal(t, int64(1), updated.Version)
}

func TestUpdateStaleVersionConflicts(t *testing.T) {
	h := newTestRouter(t, nil)
	created := createUser(t, h, "carla", 120, "Female")

	rec := doJSON(t, h, http.MethodPatch, "/v1/users/"+created.ID, map[string]any{
		"age": 121, "expected_version": 99,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "conflict")

	// El documento queda intacto.
	got := decodeUser(t, doJSON(t, h, http.MethodGet, "/v1/users/"+created.ID, nil))
	assert.Equal(t, 120, got.Age)
	assert.Equal(t, int64(0), got.Version)
}

func TestDeleteThenGetIs404(t *testing.T) {
	h := newTestRouter(t, nil)
	created := createUser(t, h, "dani", 140, "Male")

	rec := doJSON(t, h, http.MethodDelete, "/v1/users/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/users/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Re-borrar el mismo recurso también es 404 a nivel REST.
	rec = doJSON(t, h, http.MethodDelete, "/v1/users/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchFiltersAndSorts(t *testing.T) {
	h := newTestRouter(t, nil)
	createUser(t, h, "ana", 110, "Female")
	createUser(t, h, "beto", 130, "Male")
	createUser(t, h, "carla", 120, "Female")

	rec := doJSON(t, h, http.MethodPost, "/v1/users/search", map[string]any{
		"gender":   "Female",
		"sort_by":  "age",
		"sort_dir": "desc",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got []dto.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "carla", got[0].Name)
	assert.Equal(t, "ana", got[1].Name)
}

func TestGenderStats(t *testing.T) {
	h := newTestRouter(t, nil)
	createUser(t, h, "ana", 110, "Female")
	createUser(t, h, "beto", 130, "Male")
	createUser(t, h, "carla", 120, "Female")

	rec := doJSON(t, h, http.MethodGet, "/v1/users/stats/genders", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stats []dto.GenderCount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	counts := map[string]int64{}
	for _, s := range stats {
		counts[s.Gender] = s.Count
	}
	assert.Equal(t, int64(2), counts["Female"])
	assert.Equal(t, int64(1), counts["Male"])
}

func TestDownloadStreamsAllUsers(t *testing.T) {
	h := newTestRouter(t, nil)
	createUser(t, h, "ana", 110, "Female")
	createUser(t, h, "beto", 130, "Male")
	createUser(t, h, "carla", 120, "Female")

	rec := doJSON(t, h, http.MethodGet, "/v1/users/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "users.json")

	var got []dto.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 3)
}

func TestDownloadEmptyCollectionIsEmptyArray(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/v1/users/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestReadyz(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"adapter":"memory"`)
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	secret := []byte("test-secret")
	h := newTestRouter(t, secret)

	// Sin token: 401.
	rec := doJSON(t, h, http.MethodGet, "/v1/users/whatever", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer realm="userdal"`, rec.Header().Get("WWW-Authenticate"))

	// readyz queda fuera del auth.
	rec = doJSON(t, h, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Con token firmado: pasa (y el 404 viene del recurso, no del auth).
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/whatever", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEventsStreamDeliversChanges(t *testing.T) {
	h := newTestRouter(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/users/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(rec, req)
	}()

	// Dar tiempo a que el stream quede suscripto antes de mutar.
	time.Sleep(100 * time.Millisecond)
	created := createUser(t, h, "eva", 150, "Female")
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("events handler did not return after cancel")
	}

	body := rec.Body.String()
	assert.Contains(t, body, "event: inserted")
	assert.Contains(t, body, created.ID)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}
