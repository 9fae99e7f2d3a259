// Package signup implementa el alta de cuentas: valida contra el directorio
// local, crea la cuenta en el provider y dispara la verificación de email.
package signup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/idmirror/internal/directory"
	"github.com/dropDatabas3/idmirror/internal/domain"
	"github.com/dropDatabas3/idmirror/internal/observability/logger"
	"github.com/dropDatabas3/idmirror/internal/provider"
	"github.com/dropDatabas3/idmirror/internal/verification"
)

// Service errors
var (
	ErrMissingFields = errors.New("signup: email, username and password are required")
)

// Request es el alta que llega del handler, ya deserializada.
type Request struct {
	FirstName   string
	LastName    string
	Username    string
	Email       string
	Password    string
	DateOfBirth string
	PhoneNumber string
}

// Service define el alta y la lectura del directorio.
type Service interface {
	// Signup valida unicidad local, crea la cuenta remota y emite el código
	// de verificación. Devuelve domain.ErrDuplicateUser si el email o el
	// username ya existen localmente. El row local NO se crea acá: lo
	// materializa el evento user.created del provider.
	Signup(ctx context.Context, req Request) (*provider.AccountHandle, error)

	// ListUsers devuelve la proyección pública del directorio.
	ListUsers(ctx context.Context) ([]domain.Projection, error)
}

// Deps contiene las dependencias del servicio.
type Deps struct {
	Dir      directory.Directory
	Provider provider.Client
	Verify   verification.Service
}

type service struct {
	deps Deps
}

func New(deps Deps) Service {
	return &service{deps: deps}
}

func (s *service) Signup(ctx context.Context, req Request) (*provider.AccountHandle, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("signup"),
		logger.Op("Signup"),
		logger.Email(req.Email),
		logger.Username(req.Username),
	)

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" || req.Password == "" {
		return nil, ErrMissingFields
	}

	// Pre-chequeo local. Hay una ventana entre el check y el alta remota
	// (dos signups simultáneos con el mismo email): el perdedor termina en
	// un rebind al llegar su webhook, no en un row duplicado.
	exists, err := s.deps.Dir.ExistsByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, fmt.Errorf("signup: check duplicates: %w", err)
	}
	if exists {
		return nil, domain.ErrDuplicateUser
	}

	handle, err := s.deps.Provider.CreateAccount(ctx, provider.Profile{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DateOfBirth: req.DateOfBirth,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("signup: create remote account: %w", err)
	}

	// La cuenta ya existe: si el mail no sale, el usuario pide reenvío.
	if _, err := s.deps.Verify.Issue(ctx, req.Email, domain.PurposeSignupVerification); err != nil {
		log.Warn("cuenta creada pero el código de verificación no salió", logger.Err(err))
	}

	log.Info("cuenta creada en el provider", logger.ProviderID(handle.ID))
	return handle, nil
}

func (s *service) ListUsers(ctx context.Context) ([]domain.Projection, error) {
	users, err := s.deps.Dir.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("signup: list users: %w", err)
	}
	out := make([]domain.Projection, 0, len(users))
	for i := range users {
		out = append(out, users[i].Project())
	}
	return out, nil
}
