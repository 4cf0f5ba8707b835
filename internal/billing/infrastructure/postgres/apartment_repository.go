package postgres

import (
	"context"
	"database/sql"
	"errors"

	billing "condoledger/internal/billing/domain"
	"condoledger/internal/dbtx"
)

// ApartmentRepository is a Postgres implementation for apartments.
type ApartmentRepository struct {
	db *sql.DB
}

// NewApartmentRepository constructs a repository.
func NewApartmentRepository(db *sql.DB) *ApartmentRepository {
	return &ApartmentRepository{db: db}
}

// Create inserts an apartment and fills its id.
func (r *ApartmentRepository) Create(ctx context.Context, a *billing.Apartment) error {
	if r == nil || r.db == nil {
		return errors.New("apartment repo: nil db")
	}
	if a == nil {
		return errors.New("apartment repo: nil apartment")
	}
	a.Code = billing.NormalizeCode(a.Code)
	return dbtx.From(ctx, r.db).QueryRowContext(ctx, `
INSERT INTO apartments (condominium_id, code, owner_name)
VALUES ($1, $2, $3)
RETURNING id, created_at`, a.CondominiumID, a.Code, a.Owner).Scan(&a.ID, &a.CreatedAt)
}

// UpdateOwner renames an apartment's owner.
func (r *ApartmentRepository) UpdateOwner(ctx context.Context, id int64, owner string) error {
	if r == nil || r.db == nil {
		return errors.New("apartment repo: nil db")
	}
	result, err := dbtx.From(ctx, r.db).ExecContext(ctx, `
UPDATE apartments SET owner_name = $1 WHERE id = $2`, owner, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrApartmentNotFound
	}
	return nil
}

// FindByID loads an apartment by id.
func (r *ApartmentRepository) FindByID(ctx context.Context, id int64) (*billing.Apartment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("apartment repo: nil db")
	}
	row := dbtx.From(ctx, r.db).QueryRowContext(ctx, `
SELECT id, condominium_id, code, owner_name, created_at
FROM apartments
WHERE id = $1
LIMIT 1`, id)
	return scanApartment(row)
}

// FindByCode loads an apartment by its code within a condominium.
func (r *ApartmentRepository) FindByCode(ctx context.Context, condominiumID int64, code string) (*billing.Apartment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("apartment repo: nil db")
	}
	row := dbtx.From(ctx, r.db).QueryRowContext(ctx, `
SELECT id, condominium_id, code, owner_name, created_at
FROM apartments
WHERE condominium_id = $1 AND code = $2
LIMIT 1`, condominiumID, billing.NormalizeCode(code))
	return scanApartment(row)
}

// ListByCondominium returns all apartments ordered by code.
func (r *ApartmentRepository) ListByCondominium(ctx context.Context, condominiumID int64) ([]billing.Apartment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("apartment repo: nil db")
	}
	rows, err := dbtx.From(ctx, r.db).QueryContext(ctx, `
SELECT id, condominium_id, code, owner_name, created_at
FROM apartments
WHERE condominium_id = $1
ORDER BY code ASC`, condominiumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Apartment
	for rows.Next() {
		a, err := scanApartment(rows)
		if err != nil {
			return nil, err
		}
		if a != nil {
			result = append(result, *a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountByCondominium returns the number of apartments.
func (r *ApartmentRepository) CountByCondominium(ctx context.Context, condominiumID int64) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("apartment repo: nil db")
	}
	var count int
	err := dbtx.From(ctx, r.db).QueryRowContext(ctx, `
SELECT COUNT(*) FROM apartments WHERE condominium_id = $1`, condominiumID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApartment(row rowScanner) (*billing.Apartment, error) {
	var a billing.Apartment
	err := row.Scan(&a.ID, &a.CondominiumID, &a.Code, &a.Owner, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
