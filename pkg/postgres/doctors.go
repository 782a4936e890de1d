// Package postgres stores the doctor directory in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"github.com/1F47E/dermassist/pkg/directory"
	"github.com/1F47E/dermassist/pkg/models"
)

const batchSize = 500

const doctorColumns = `id, name, specialty, qualification, clinic, address, city, phone, email,
	experience_years, rating, review_count, available_slots, available_days,
	consultation_fee, languages, image_placeholder, specializes_in`

var upsertDoctor = `
	INSERT INTO doctors (` + doctorColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, specialty = EXCLUDED.specialty,
		qualification = EXCLUDED.qualification, clinic = EXCLUDED.clinic,
		address = EXCLUDED.address, city = EXCLUDED.city, phone = EXCLUDED.phone,
		email = EXCLUDED.email, experience_years = EXCLUDED.experience_years,
		rating = EXCLUDED.rating, review_count = EXCLUDED.review_count,
		available_slots = EXCLUDED.available_slots, available_days = EXCLUDED.available_days,
		consultation_fee = EXCLUDED.consultation_fee, languages = EXCLUDED.languages,
		image_placeholder = EXCLUDED.image_placeholder, specializes_in = EXCLUDED.specializes_in
`

// DoctorStore is a directory.Directory backed by a doctors table
type DoctorStore struct {
	db *sql.DB
}

var _ directory.Directory = (*DoctorStore)(nil)

// Open connects to the database at dsn and verifies the connection
func Open(ctx context.Context, dsn string) (*DoctorStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DoctorStore{db: db}, nil
}

// InitSchema creates the doctors table and its city index if missing
func (s *DoctorStore) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS doctors (
			id                INTEGER PRIMARY KEY,
			name              TEXT NOT NULL,
			specialty         TEXT NOT NULL DEFAULT '',
			qualification     TEXT NOT NULL DEFAULT '',
			clinic            TEXT NOT NULL DEFAULT '',
			address           TEXT NOT NULL DEFAULT '',
			city              TEXT NOT NULL,
			phone             TEXT NOT NULL DEFAULT '',
			email             TEXT NOT NULL DEFAULT '',
			experience_years  INTEGER NOT NULL DEFAULT 0,
			rating            DOUBLE PRECISION NOT NULL DEFAULT 0,
			review_count      INTEGER NOT NULL DEFAULT 0,
			available_slots   TEXT[] NOT NULL DEFAULT '{}',
			available_days    TEXT[] NOT NULL DEFAULT '{}',
			consultation_fee  INTEGER NOT NULL DEFAULT 0,
			languages         TEXT[] NOT NULL DEFAULT '{}',
			image_placeholder TEXT NOT NULL DEFAULT '',
			specializes_in    TEXT[] NOT NULL DEFAULT '{}'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_doctors_city ON doctors (lower(city));`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// BulkInsert upserts doctors by id, committing every batchSize rows
func (s *DoctorStore) BulkInsert(ctx context.Context, doctors []models.Doctor) error {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertDoctor)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}

	for i, d := range doctors {
		_, err := stmt.ExecContext(ctx,
			d.ID, d.Name, d.Specialty, d.Qualification, d.Clinic, d.Address, d.City, d.Phone, d.Email,
			d.ExperienceYears, d.Rating, d.ReviewCount, pq.Array(nonNil(d.AvailableSlots)), pq.Array(nonNil(d.AvailableDays)),
			d.ConsultationFee, pq.Array(nonNil(d.Languages)), d.ImagePlaceholder, pq.Array(nonNil(d.SpecializesIn)),
		)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("failed to insert doctor %d: %w", d.ID, err)
		}

		if (i+1)%batchSize == 0 && i+1 < len(doctors) {
			stmt.Close()
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit batch: %w", err)
			}
			if tx, err = s.db.BeginTx(ctx, nil); err != nil {
				return fmt.Errorf("failed to begin new transaction: %w", err)
			}
			if stmt, err = tx.PrepareContext(ctx, upsertDoctor); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to prepare statement: %w", err)
			}
		}
	}
	stmt.Close()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit final batch: %w", err)
	}

	log.WithField("prefix", "postgres").
		WithField("count", len(doctors)).
		WithField("elapsed", time.Since(start)).
		Info("doctors upserted")
	return nil
}

// Doctors applies f in SQL with the same semantics as directory.Filter.Match
func (s *DoctorStore) Doctors(ctx context.Context, f directory.Filter) ([]models.Doctor, error) {
	query := `
		SELECT ` + doctorColumns + `
		FROM doctors
		WHERE ($1 = '' OR lower(city) = lower($1))
		  AND ($2 = '' OR name ILIKE $2 OR specialty ILIKE $2 OR city ILIKE $2
		       OR EXISTS (SELECT 1 FROM unnest(specializes_in) AS spec WHERE spec ILIKE $2))
		ORDER BY id
	`

	search := ""
	if f.Search != "" {
		search = "%" + escapeLike(f.Search) + "%"
	}

	rows, err := s.db.QueryContext(ctx, query, f.City, search)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	results := []models.Doctor{}
	for rows.Next() {
		var d models.Doctor
		err := rows.Scan(
			&d.ID, &d.Name, &d.Specialty, &d.Qualification, &d.Clinic, &d.Address, &d.City, &d.Phone, &d.Email,
			&d.ExperienceYears, &d.Rating, &d.ReviewCount, pq.Array(&d.AvailableSlots), pq.Array(&d.AvailableDays),
			&d.ConsultationFee, pq.Array(&d.Languages), &d.ImagePlaceholder, pq.Array(&d.SpecializesIn),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

// Cities returns the distinct cities, sorted
func (s *DoctorStore) Cities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT city FROM doctors ORDER BY city`)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cities := []string{}
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		cities = append(cities, city)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return cities, nil
}

// Count returns the number of doctors in the table
func (s *DoctorStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM doctors").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count doctors: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *DoctorStore) Close() error {
	return s.db.Close()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes the ILIKE wildcards in a user supplied term
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
