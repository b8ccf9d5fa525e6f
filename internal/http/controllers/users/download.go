package users

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
	"github.com/dropDatabas3/userdal/internal/http/dto"
	httperrors "github.com/dropDatabas3/userdal/internal/http/errors"
)

// Download maneja GET /v1/users/download: la colección completa como
// un array JSON, escrito de a un documento con flush periódico para no
// acumular todo el cuerpo en memoria.
func (c *Controller) Download(w http.ResponseWriter, r *http.Request) {
	users, err := c.service.Search(r.Context(), repository.All())
	if err != nil {
		httperrors.WriteStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="users.json"`)
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	_, _ = w.Write([]byte("["))
	for i, u := range users {
		if i > 0 {
			_, _ = w.Write([]byte(","))
		}
		b, err := json.Marshal(dto.FromUser(u))
		if err != nil {
			continue
		}
		_, _ = w.Write(b)
		if flusher != nil && (i+1)%100 == 0 {
			flusher.Flush()
		}
	}
	_, _ = w.Write([]byte("]"))
	if flusher != nil {
		flusher.Flush()
	}
}
