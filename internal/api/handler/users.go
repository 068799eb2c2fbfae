package handler

import (
	"net/http"

	"github.com/gavelhouse/gavel/internal/api/response"
	"github.com/gavelhouse/gavel/internal/storage"
)

// UsersHandler serves the participant directory.
type UsersHandler struct {
	store storage.Store
}

// NewUsersHandler creates a users handler.
func NewUsersHandler(store storage.Store) *UsersHandler {
	return &UsersHandler{store: store}
}

// List returns every registered participant. Password hashes never leave
// the model's JSON encoding.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to fetch users")
		return
	}
	response.JSON(w, http.StatusOK, users)
}
