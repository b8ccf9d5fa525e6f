// Package dto define los cuerpos de request/response del API de
// usuarios y su validación. La validación es de forma (tipos, rangos,
// formatos); las reglas de consistencia las aplica el store.
package dto

import (
	"fmt"
	"regexp"
	"time"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

// El modelo exige edades de tres dígitos; herencia del esquema original.
const minAge = 100

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validGender(g string) bool {
	return g == string(repository.GenderMale) || g == string(repository.GenderFemale)
}

// CreateUserRequest es el body de POST /v1/users.
type CreateUserRequest struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Email  string `json:"email"`
	Gender string `json:"gender"`
}

func (r *CreateUserRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name: requerido")
	}
	if r.Age < minAge {
		return fmt.Errorf("age: debe ser >= %d", minAge)
	}
	if !emailRE.MatchString(r.Email) {
		return fmt.Errorf("email: formato inválido")
	}
	if !validGender(r.Gender) {
		return fmt.Errorf("gender: debe ser %s o %s", repository.GenderMale, repository.GenderFemale)
	}
	return nil
}

func (r *CreateUserRequest) ToUser() *repository.User {
	return &repository.User{
		Name:   r.Name,
		Age:    r.Age,
		Email:  r.Email,
		Gender: repository.Gender(r.Gender),
	}
}

// UpdateUserRequest es el body de PATCH /v1/users/{id}. Solo los campos
// presentes se modifican. ExpectedVersion habilita el check de
// concurrencia optimista.
type UpdateUserRequest struct {
	Name            *string `json:"name"`
	Age             *int    `json:"age"`
	Email           *string `json:"email"`
	Gender          *string `json:"gender"`
	ExpectedVersion *int64  `json:"expected_version"`
}

func (r *UpdateUserRequest) Validate() error {
	if r.Name == nil && r.Age == nil && r.Email == nil && r.Gender == nil {
		return fmt.Errorf("body: ningún campo para modificar")
	}
	if r.Name != nil && *r.Name == "" {
		return fmt.Errorf("name: no puede ser vacío")
	}
	if r.Age != nil && *r.Age < minAge {
		return fmt.Errorf("age: debe ser >= %d", minAge)
	}
	if r.Email != nil && !emailRE.MatchString(*r.Email) {
		return fmt.Errorf("email: formato inválido")
	}
	if r.Gender != nil && !validGender(*r.Gender) {
		return fmt.Errorf("gender: debe ser %s o %s", repository.GenderMale, repository.GenderFemale)
	}
	return nil
}

// ToUpdate traduce el request a un patch del port.
func (r *UpdateUserRequest) ToUpdate() repository.Update {
	var u repository.Update
	if r.Name != nil {
		u = u.Set(repository.FieldName, *r.Name)
	}
	if r.Age != nil {
		u = u.Set(repository.FieldAge, *r.Age)
	}
	if r.Email != nil {
		u = u.Set(repository.FieldEmail, *r.Email)
	}
	if r.Gender != nil {
		u = u.Set(repository.FieldGender, repository.Gender(*r.Gender))
	}
	if r.ExpectedVersion != nil {
		u = u.WithExpectedVersion(*r.ExpectedVersion)
	}
	return u
}

// SearchUsersRequest es el body de POST /v1/users/search.
type SearchUsersRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Gender  *string `json:"gender"`
	MinAge  *int    `json:"min_age"`
	MaxAge  *int    `json:"max_age"`
	SortBy  string  `json:"sort_by"`
	SortDir string  `json:"sort_dir"` // asc | desc
}

var sortableFields = map[string]bool{
	repository.FieldName:      true,
	repository.FieldAge:       true,
	repository.FieldEmail:     true,
	repository.FieldCreatedAt: true,
}

func (r *SearchUsersRequest) Validate() error {
	if r.Gender != nil && !validGender(*r.Gender) {
		return fmt.Errorf("gender: debe ser %s o %s", repository.GenderMale, repository.GenderFemale)
	}
	if r.SortBy != "" && !sortableFields[r.SortBy] {
		return fmt.Errorf("sort_by: campo %q no ordenable", r.SortBy)
	}
	if r.SortDir != "" && r.SortDir != "asc" && r.SortDir != "desc" {
		return fmt.Errorf("sort_dir: debe ser asc o desc")
	}
	return nil
}

// ToFilter traduce el request a un Filter del port.
func (r *SearchUsersRequest) ToFilter() repository.Filter {
	f := repository.All()
	if r.Name != nil {
		f = f.And(repository.FieldName, repository.OpEq, *r.Name)
	}
	if r.Email != nil {
		f = f.And(repository.FieldEmail, repository.OpEq, *r.Email)
	}
	if r.Gender != nil {
		f = f.And(repository.FieldGender, repository.OpEq, repository.Gender(*r.Gender))
	}
	if r.MinAge != nil {
		f = f.And(repository.FieldAge, repository.OpGte, *r.MinAge)
	}
	if r.MaxAge != nil {
		f = f.And(repository.FieldAge, repository.OpLte, *r.MaxAge)
	}
	if r.SortBy != "" {
		dir := repository.SortAsc
		if r.SortDir == "desc" {
			dir = repository.SortDesc
		}
		f = f.SortBy(r.SortBy, dir)
	}
	return f
}

// UserResponse es la representación pública de un usuario.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Email     string    `json:"email"`
	Gender    string    `json:"gender"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func FromUser(u *repository.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Age:       u.Age,
		Email:     u.Email,
		Gender:    string(u.Gender),
		Version:   u.Version,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func FromUsers(us []*repository.User) []UserResponse {
	out := make([]UserResponse, 0, len(us))
	for _, u := range us {
		out = append(out, FromUser(u))
	}
	return out
}

// GenderCount es una fila de GET /v1/users/stats/genders.
type GenderCount struct {
	Gender string `json:"gender"`
	Count  int64  `json:"count"`
}
