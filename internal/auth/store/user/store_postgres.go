package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"organograma/internal/auth/models"
	"organograma/internal/policy"
	"organograma/pkg/platform/sentinel"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02"
)

const userColumns = `id, email, password_hash, role, display_name, rank,
	person_id, organization_id, sector_id, created_at, updated_at`

// PostgresUserStore persists users in the users table.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) Create(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, models.NormalizeEmail(u.Email), u.PasswordHash, string(u.Role), u.DisplayName, u.Rank,
		nullable(u.PersonID), nullable(u.OrganizationID), nullable(u.SectorID), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", translate(err))
	}
	return nil
}

func (s *PostgresUserStore) Update(ctx context.Context, u *models.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = $2, password_hash = $3, role = $4, display_name = $5, rank = $6,
			person_id = $7, organization_id = $8, sector_id = $9, updated_at = $10
		WHERE id = $1`,
		u.ID, models.NormalizeEmail(u.Email), u.PasswordHash, string(u.Role), u.DisplayName, u.Rank,
		nullable(u.PersonID), nullable(u.OrganizationID), nullable(u.SectorID), u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PostgresUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, models.NormalizeEmail(email))
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                                  models.User
		role                               string
		personID, organizationID, sectorID sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.DisplayName, &u.Rank,
		&personID, &organizationID, &sectorID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	u.Role = policy.Role(role)
	u.PersonID = personID.String
	u.OrganizationID = organizationID.String
	u.SectorID = sectorID.String
	return &u, nil
}

func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, sentinel.ErrAlreadyUsed)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, sentinel.ErrConflict)
		case pgInvalidTextRepr:
			return sentinel.ErrNotFound
		}
	}
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
