package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"organograma/internal/directory/models"
	"organograma/pkg/platform/sentinel"
	"organograma/pkg/platform/tx"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02"
)

// Postgres persists the directory in PostgreSQL. Methods join the
// transaction carried by ctx, if any.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// WriteLockKey is the advisory lock directory writers hold for the length of
// their transaction. Hierarchy checks read chains other writers may be
// changing, so they must run one at a time.
const WriteLockKey int64 = 0x6f72_6731

// NewTxRunner returns the transaction runner directory services must use
// against db.
func NewTxRunner(db *sql.DB) *tx.Postgres {
	return tx.NewPostgres(db, tx.WithAdvisoryLock(WriteLockKey))
}

func (s *Postgres) q(ctx context.Context) tx.Querier {
	return tx.QuerierFrom(ctx, s.db)
}

// translate maps driver errors onto store sentinels.
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

const personColumns = `id, name, full_name, war_name, rank, function, sector_id, organization_id,
	superior_id, phone, address, email, photo_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var (
		p                           models.Person
		sectorID, orgID, superiorID sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.FullName, &p.WarName, &p.Rank, &p.Function,
		&sectorID, &orgID, &superiorID, &p.Phone, &p.Address, &p.Email, &p.PhotoURL,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.SectorID = sectorID.String
	p.OrganizationID = orgID.String
	p.SuperiorID = superiorID.String
	return &p, nil
}

func (s *Postgres) CreatePerson(ctx context.Context, p *models.Person) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO persons (`+personColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.Name, p.FullName, p.WarName, p.Rank, p.Function,
		nullable(p.SectorID), nullable(p.OrganizationID), nullable(p.SuperiorID),
		p.Phone, p.Address, p.Email, p.PhotoURL, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create person: %w", translate(err))
	}
	return nil
}

func (s *Postgres) UpdatePerson(ctx context.Context, p *models.Person) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE persons SET
			name = $2, full_name = $3, war_name = $4, rank = $5, function = $6,
			sector_id = $7, organization_id = $8, superior_id = $9,
			phone = $10, address = $11, email = $12, photo_url = $13, updated_at = $14
		WHERE id = $1`,
		p.ID, p.Name, p.FullName, p.WarName, p.Rank, p.Function,
		nullable(p.SectorID), nullable(p.OrganizationID), nullable(p.SuperiorID),
		p.Phone, p.Address, p.Email, p.PhotoURL, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update person: %w", translate(err))
	}
	return requireAffected(res, "update person")
}

func (s *Postgres) FindPerson(ctx context.Context, id string) (*models.Person, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id)
	p, err := scanPerson(row)
	if err != nil {
		return nil, fmt.Errorf("find person: %w", translate(err))
	}
	return p, nil
}

func (s *Postgres) ListPersons(ctx context.Context) ([]*models.Person, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+personColumns+` FROM persons ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var out []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	return out, nil
}

// DeletePerson detaches direct subordinates before deleting so the returned
// ids are exact even though the foreign key would also null them.
func (s *Postgres) DeletePerson(ctx context.Context, id string) ([]string, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		UPDATE persons SET superior_id = NULL, updated_at = now()
		WHERE superior_id = $1
		RETURNING id`, id)
	if err != nil {
		return nil, fmt.Errorf("detach subordinates: %w", translate(err))
	}
	var detached []string
	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan subordinate: %w", err)
		}
		detached = append(detached, sub)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("detach subordinates: %w", err)
	}

	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete person: %w", translate(err))
	}
	if err := requireAffected(res, "delete person"); err != nil {
		return nil, err
	}
	return detached, nil
}

const sectorColumns = `id, name, parent_id, emblem_url, created_at, updated_at`

func scanSector(row rowScanner) (*models.Sector, error) {
	var (
		sec      models.Sector
		parentID sql.NullString
	)
	if err := row.Scan(&sec.ID, &sec.Name, &parentID, &sec.EmblemURL, &sec.CreatedAt, &sec.UpdatedAt); err != nil {
		return nil, err
	}
	sec.ParentID = parentID.String
	return &sec, nil
}

func (s *Postgres) CreateSector(ctx context.Context, sec *models.Sector) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO sectors (`+sectorColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		sec.ID, sec.Name, nullable(sec.ParentID), sec.EmblemURL, sec.CreatedAt, sec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create sector: %w", translate(err))
	}
	return nil
}

func (s *Postgres) UpdateSector(ctx context.Context, sec *models.Sector) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE sectors SET name = $2, parent_id = $3, emblem_url = $4, updated_at = $5
		WHERE id = $1`,
		sec.ID, sec.Name, nullable(sec.ParentID), sec.EmblemURL, sec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update sector: %w", translate(err))
	}
	return requireAffected(res, "update sector")
}

func (s *Postgres) FindSector(ctx context.Context, id string) (*models.Sector, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+sectorColumns+` FROM sectors WHERE id = $1`, id)
	sec, err := scanSector(row)
	if err != nil {
		return nil, fmt.Errorf("find sector: %w", translate(err))
	}
	return sec, nil
}

func (s *Postgres) ListSectors(ctx context.Context) ([]*models.Sector, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+sectorColumns+` FROM sectors ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("list sectors: %w", err)
	}
	defer rows.Close()

	var out []*models.Sector
	for rows.Next() {
		sec, err := scanSector(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sector: %w", err)
		}
		out = append(out, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sectors: %w", err)
	}
	return out, nil
}

// DeleteSector relies on ON DELETE SET NULL for persons and child sectors.
func (s *Postgres) DeleteSector(ctx context.Context, id string) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM sectors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sector: %w", translate(err))
	}
	return requireAffected(res, "delete sector")
}

const organizationColumns = `id, name, type, emblem_url, created_at, updated_at`

func scanOrganization(row rowScanner) (*models.Organization, error) {
	var org models.Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Type, &org.EmblemURL, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *Postgres) CreateOrganization(ctx context.Context, org *models.Organization) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO organizations (`+organizationColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		org.ID, org.Name, org.Type, org.EmblemURL, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create organization: %w", translate(err))
	}
	return nil
}

func (s *Postgres) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE organizations SET name = $2, type = $3, emblem_url = $4, updated_at = $5
		WHERE id = $1`,
		org.ID, org.Name, org.Type, org.EmblemURL, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update organization: %w", translate(err))
	}
	return requireAffected(res, "update organization")
}

func (s *Postgres) FindOrganization(ctx context.Context, id string) (*models.Organization, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id)
	org, err := scanOrganization(row)
	if err != nil {
		return nil, fmt.Errorf("find organization: %w", translate(err))
	}
	return org, nil
}

func (s *Postgres) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+organizationColumns+` FROM organizations ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var out []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		out = append(out, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return out, nil
}

func (s *Postgres) DeleteOrganization(ctx context.Context, id string) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", translate(err))
	}
	return requireAffected(res, "delete organization")
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return nil
}
