// Package users expone la lectura del directorio local.
package users

import (
	"net/http"

	"github.com/dropDatabas3/idmirror/internal/http/dto"
	httperrors "github.com/dropDatabas3/idmirror/internal/http/errors"
	"github.com/dropDatabas3/idmirror/internal/http/helpers"
	"github.com/dropDatabas3/idmirror/internal/signup"
)

// Controller maneja las rutas /v1/users.
type Controller struct {
	svc signup.Service
}

func NewController(svc signup.Service) *Controller {
	return &Controller{svc: svc}
}

// List maneja GET /v1/users
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	users, err := c.svc.ListUsers(r.Context())
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	out := make([]dto.UserProjection, 0, len(users))
	for _, u := range users {
		out = append(out, dto.UserProjection{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	helpers.WriteJSON(w, http.StatusOK, dto.UsersResponse{Users: out})
}
