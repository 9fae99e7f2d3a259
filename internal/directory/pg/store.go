package pg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/idmirror/internal/domain"
	"github.com/dropDatabas3/idmirror/internal/observability/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ pool *pgxpool.Pool }

// Config es el tuning opcional del pool.
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	// Mapear MaxIdleConns → MinConns (pgxpool)
	if cfg.MaxIdleConns > 0 {
		pcfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 8
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	// Arranque non-blocking: ping best-effort, la app levanta aunque la DB
	// esté momentáneamente caída.
	if err := pool.Ping(ctx); err != nil {
		logger.L().Warn("pg pool startup ping failed", logger.Err(err))
	} else {
		logger.L().Info("pg pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	}

	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (migraciones/metrics).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const userCols = `id, provider_id, email, username, first_name, last_name, date_of_birth, phone_number, is_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var email, dob, phone *string
	if err := row.Scan(&u.ID, &u.ProviderID, &email, &u.Username, &u.FirstName, &u.LastName, &dob, &phone, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if email != nil {
		u.Email = *email
	}
	if dob != nil {
		u.DateOfBirth = *dob
	}
	if phone != nil {
		u.PhoneNumber = *phone
	}
	return &u, nil
}

// translateUnique mapea las dos violaciones 23505 que la reconciliación sabe
// resolver; el resto se devuelve tal cual (fatal para el caller).
func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return domain.ErrEmailTaken
		case strings.Contains(pgErr.ConstraintName, "username"):
			return domain.ErrUsernameTaken
		}
	}
	return err
}

// ====================== RECONCILIACIÓN ======================

func (s *Store) UpsertByProviderID(ctx context.Context, u *domain.User) (bool, error) {
	const q = `
INSERT INTO app_user (id, provider_id, email, username, first_name, last_name, date_of_birth, phone_number)
VALUES ($1, $2, NULLIF(LOWER($3),''), $4, $5, $6, NULLIF($7,''), NULLIF($8,''))
ON CONFLICT (provider_id) DO UPDATE SET
    email         = EXCLUDED.email,
    username      = EXCLUDED.username,
    first_name    = EXCLUDED.first_name,
    last_name     = EXCLUDED.last_name,
    date_of_birth = EXCLUDED.date_of_birth,
    phone_number  = EXCLUDED.phone_number,
    updated_at    = now()
RETURNING id, is_verified, created_at, updated_at, (xmax = 0) AS inserted`
	var inserted bool
	err := s.pool.QueryRow(ctx, q,
		uuid.NewString(), u.ProviderID, u.Email, u.Username,
		u.FirstName, u.LastName, u.DateOfBirth, u.PhoneNumber).
		Scan(&u.ID, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt, &inserted)
	if err != nil {
		return false, translateUnique(err)
	}
	return inserted, nil
}

func (s *Store) RebindByEmail(ctx context.Context, email string, u *domain.User) error {
	const q = `
UPDATE app_user SET
    provider_id   = $2,
    username      = $3,
    first_name    = $4,
    last_name     = $5,
    date_of_birth = NULLIF($6,''),
    phone_number  = NULLIF($7,''),
    updated_at    = now()
WHERE LOWER(email) = LOWER($1)
RETURNING ` + userCols
	got, err := scanUser(s.pool.QueryRow(ctx, q,
		email, u.ProviderID, u.Username, u.FirstName, u.LastName, u.DateOfBirth, u.PhoneNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return translateUnique(err)
	}
	*u = *got
	return nil
}

func (s *Store) DeleteByProviderID(ctx context.Context, providerID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM app_user WHERE provider_id = $1`, providerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ====================== SIGNUP / VERIFICACIÓN ======================

func (s *Store) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM app_user WHERE LOWER(email) = LOWER($1) LIMIT 1`
	u, err := scanUser(s.pool.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *Store) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM app_user WHERE LOWER(email) = LOWER($1) OR username = $2)`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, email, username).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) MarkVerified(ctx context.Context, email string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE app_user SET is_verified = true, updated_at = now() WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM app_user ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
