package patients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carebase/internal/db"
)

const patientColumns = `id, first_name, last_name, email, phone_number, dob, created_at, updated_at`

type Store struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	p := &Patient{}
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PhoneNumber, &p.DOB,
		db.Time(&p.CreatedAt), db.Time(&p.UpdatedAt)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// ListAll returns every patient, newest first.
func (s *Store) ListAll(ctx context.Context) ([]Patient, error) {
	q := `SELECT ` + patientColumns + ` FROM patients ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*Patient, error) {
	q := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	return scanPatient(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) Insert(ctx context.Context, p *Patient) (*Patient, error) {
	q := `
		INSERT INTO patients (first_name, last_name, email, phone_number, dob, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + patientColumns
	now := time.Now().UTC()
	return scanPatient(s.db.QueryRowContext(ctx, q,
		p.FirstName, p.LastName, p.Email, p.PhoneNumber, p.DOB, now, now))
}

// Update overwrites every editable field of the row p.ID.
func (s *Store) Update(ctx context.Context, p *Patient) (*Patient, error) {
	q := `
		UPDATE patients
		SET first_name = $1, last_name = $2, email = $3, phone_number = $4, dob = $5, updated_at = $6
		WHERE id = $7
		RETURNING ` + patientColumns
	return scanPatient(s.db.QueryRowContext(ctx, q,
		p.FirstName, p.LastName, p.Email, p.PhoneNumber, p.DOB, time.Now().UTC(), p.ID))
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
