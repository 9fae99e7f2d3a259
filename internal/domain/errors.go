package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")

	// ErrDuplicateUser indica que un signup chocó con un email o username ya
	// registrado en el directorio local.
	ErrDuplicateUser = errors.New("user already exists")

	// ErrUserNotFound indica que el row local esperado no existe todavía.
	// Durante el signup es transitorio: el row lo materializa el motor de
	// reconciliación y el caller debe reintentar.
	ErrUserNotFound = errors.New("local user not found")

	// ErrEmailTaken / ErrUsernameTaken son las dos violaciones de unique
	// que el motor de reconciliación sabe resolver. Cualquier otra violación
	// de constraint se propaga sin traducir.
	ErrEmailTaken    = errors.New("email belongs to another user")
	ErrUsernameTaken = errors.New("username belongs to another user")
)
