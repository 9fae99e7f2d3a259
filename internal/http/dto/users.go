package dto

// UserProjection es la vista pública de un usuario del directorio.
type UserProjection struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UsersResponse lista el directorio.
type UsersResponse struct {
	Users []UserProjection `json:"users"`
}
