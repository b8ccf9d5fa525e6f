package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }
func i64p(n int64) *int64   { return &n }

func TestCreateUserRequestValidate(t *testing.T) {
	valid := CreateUserRequest{Name: "Ana", Age: 110, Email: "ana@example.com", Gender: "Female"}

	cases := []struct {
		name   string
		mutate func(*CreateUserRequest)
		ok     bool
	}{
		{"valid", func(r *CreateUserRequest) {}, true},
		{"empty name", func(r *CreateUserRequest) { r.Name = "" }, false},
		{"age below minimum", func(r *CreateUserRequest) { r.Age = 99 }, false},
		{"age at minimum", func(r *CreateUserRequest) { r.Age = 100 }, true},
		{"bad email", func(r *CreateUserRequest) { r.Email = "not-an-email" }, false},
		{"email without tld", func(r *CreateUserRequest) { r.Email = "ana@host" }, false},
		{"unknown gender", func(r *CreateUserRequest) { r.Gender = "Other" }, false},
		{"lowercase gender", func(r *CreateUserRequest) { r.Gender = "male" }, false},
		{"male", func(r *CreateUserRequest) { r.Gender = "Male" }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			err := req.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCreateUserRequestToUser(t *testing.T) {
	req := CreateUserRequest{Name: "Ana", Age: 110, Email: "ana@example.com", Gender: "Female"}
	u := req.ToUser()

	assert.Empty(t, u.ID)
	assert.Equal(t, "Ana", u.Name)
	assert.Equal(t, 110, u.Age)
	assert.Equal(t, repository.GenderFemale, u.Gender)
}

func TestUpdateUserRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  UpdateUserRequest
		ok   bool
	}{
		{"empty body", UpdateUserRequest{}, false},
		{"only version is not a change", UpdateUserRequest{ExpectedVersion: i64p(3)}, false},
		{"name only", UpdateUserRequest{Name: strp("Beto")}, true},
		{"empty name", UpdateUserRequest{Name: strp("")}, false},
		{"age below minimum", UpdateUserRequest{Age: intp(99)}, false},
		{"bad email", UpdateUserRequest{Email: strp("x@")}, false},
		{"bad gender", UpdateUserRequest{Gender: strp("robot")}, false},
		{"full", UpdateUserRequest{
			Name: strp("Beto"), Age: intp(130),
			Email: strp("beto@example.com"), Gender: strp("Male"),
			ExpectedVersion: i64p(2),
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestUpdateUserRequestToUpdate(t *testing.T) {
	req := UpdateUserRequest{
		Name:            strp("Beto"),
		Age:             intp(130),
		ExpectedVersion: i64p(7),
	}
	u := req.ToUpdate()

	sets := u.Sets()
	require.Len(t, sets, 2)
	assert.Equal(t, repository.FieldName, sets[0].Field)
	assert.Equal(t, repository.FieldAge, sets[1].Field)

	ev, ok := u.ExpectedVersion()
	require.True(t, ok)
	assert.Equal(t, int64(7), ev)
}

func TestSearchUsersRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  SearchUsersRequest
		ok   bool
	}{
		{"empty", SearchUsersRequest{}, true},
		{"gender filter", SearchUsersRequest{Gender: strp("Female")}, true},
		{"bad gender", SearchUsersRequest{Gender: strp("x")}, false},
		{"sortable field", SearchUsersRequest{SortBy: "age", SortDir: "desc"}, true},
		{"unsortable field", SearchUsersRequest{SortBy: "version"}, false},
		{"bad dir", SearchUsersRequest{SortBy: "age", SortDir: "down"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSearchUsersRequestToFilter(t *testing.T) {
	req := SearchUsersRequest{
		Gender: strp("Male"),
		MinAge: intp(110),
		MaxAge: intp(150),
		SortBy: "age",
		SortDir: "desc",
	}
	f := req.ToFilter()

	conds := f.Conds()
	require.Len(t, conds, 3)
	assert.Equal(t, repository.FieldGender, conds[0].Field)
	assert.Equal(t, repository.OpEq, conds[0].Op)
	assert.Equal(t, repository.OpGte, conds[1].Op)
	assert.Equal(t, repository.OpLte, conds[2].Op)

	field, dir, ok := f.Sort()
	require.True(t, ok)
	assert.Equal(t, repository.FieldAge, field)
	assert.Equal(t, repository.SortDesc, dir)
	assert.False(t, f.ExactlyOne())
}
