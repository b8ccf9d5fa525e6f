// Package users contiene los controllers del API de usuarios.
package users

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/userdal/internal/http/dto"
	httperrors "github.com/dropDatabas3/userdal/internal/http/errors"
	svc "github.com/dropDatabas3/userdal/internal/http/services/users"
	"github.com/dropDatabas3/userdal/internal/observability/logger"
)

// Controller maneja las operaciones del recurso usuario.
type Controller struct {
	service *svc.Service
}

// NewController crea una nueva instancia del controller.
func NewController(service *svc.Service) *Controller {
	return &Controller{service: service}
}

// Create maneja POST /v1/users
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx)

	var req dto.CreateUserRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httperrors.WriteError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	created, err := c.service.Create(ctx, req.ToUser())
	if err != nil {
		httperrors.WriteStoreError(w, err)
		return
	}

	log.Info("user created", logger.ID(created.ID))
	httperrors.WriteJSON(w, http.StatusCreated, dto.FromUser(created))
}

// Get maneja GET /v1/users/{id}
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, err := c.service.GetByID(r.Context(), id)
	if err != nil {
		httperrors.WriteStoreError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.FromUser(u))
}

// Search maneja POST /v1/users/search
func (c *Controller) Search(w http.ResponseWriter, r *http.Request) {
	var req dto.SearchUsersRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httperrors.WriteError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	got, err := c.service.Search(r.Context(), req.ToFilter())
	if err != nil {
		httperrors.WriteStoreError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.FromUsers(got))
}

// Update maneja PATCH /v1/users/{id}
func (c *Controller) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx)
	id := chi.URLParam(r, "id")

	var req dto.UpdateUserRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httperrors.WriteError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	updated, err := c.service.Update(ctx, id, req.ToUpdate())
	if err != nil {
		httperrors.WriteStoreError(w, err)
		return
	}

	log.Info("user updated", logger.ID(id))
	httperrors.WriteJSON(w, http.StatusOK, dto.FromUser(updated))
}

// Delete maneja DELETE /v1/users/{id}
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := c.service.Delete(ctx, id); err != nil {
		httperrors.WriteStoreError(w, err)
		return
	}

	logger.From(ctx).Info("user deleted", logger.ID(id))
	w.WriteHeader(http.StatusNoContent)
}

// GenderStats maneja GET /v1/users/stats/genders
func (c *Controller) GenderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.service.GenderStats(r.Context())
	if err != nil {
		httperrors.WriteStoreError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, stats)
}
