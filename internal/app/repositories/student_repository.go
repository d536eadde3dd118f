package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/batchswap/batchswap/internal/app/models"
	"github.com/batchswap/batchswap/internal/pkg/apperrors"
	"github.com/batchswap/batchswap/internal/pkg/dberrors"
)

const studentColumns = `id, email, password, first_name, last_name, cgpa, current_batch, original_batch, is_active, created_at, updated_at`

// studentRepository is the PostgreSQL implementation of StudentRepository
type studentRepository struct {
	db *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db *pgxpool.Pool) StudentRepository {
	return &studentRepository{db: db}
}

func scanStudent(row pgx.Row) (*models.Student, error) {
	var s models.Student
	err := row.Scan(
		&s.ID,
		&s.Email,
		&s.Password,
		&s.FirstName,
		&s.LastName,
		&s.CGPA,
		&s.CurrentBatch,
		&s.OriginalBatch,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new student row. original_batch is fixed to the batch the
// student registers with.
func (r *studentRepository) Create(ctx context.Context, student *models.Student) (int64, error) {
	query := `
		INSERT INTO students (email, password, first_name, last_name, cgpa, current_batch, original_batch)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		student.Email,
		student.Password,
		student.FirstName,
		student.LastName,
		student.CGPA,
		student.CurrentBatch,
	).Scan(&student.ID, &student.CreatedAt, &student.UpdatedAt)

	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "students_email_key") {
			return 0, apperrors.ErrEmailAlreadyExists
		}
		return 0, fmt.Errorf("error creating student: %w", err)
	}

	student.OriginalBatch = student.CurrentBatch
	return student.ID, nil
}

// GetByID retrieves a student by id
func (r *studentRepository) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	student, err := scanStudent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, fmt.Errorf("error retrieving student: %w", err)
	}

	return student, nil
}

// GetByEmail retrieves a student by email
func (r *studentRepository) GetByEmail(ctx context.Context, email string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE email = $1`

	student, err := scanStudent(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, fmt.Errorf("error retrieving student by email: %w", err)
	}

	return student, nil
}

// List retrieves active students ordered by creation time, newest first
func (r *studentRepository) List(ctx context.Context, offset uint64, limit int) ([]*models.Student, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM students WHERE is_active`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting students: %w", err)
	}

	query := `
		SELECT ` + studentColumns + `
		FROM students
		WHERE is_active
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing students: %w", err)
	}
	defer rows.Close()

	var students []*models.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning student row: %w", err)
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating student rows: %w", err)
	}

	return students, total, nil
}

// UpdateCGPA updates a student's eligibility score
func (r *studentRepository) UpdateCGPA(ctx context.Context, id int64, cgpa float64) error {
	query := `UPDATE students SET cgpa = $2, updated_at = now() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, cgpa)
	if err != nil {
		return fmt.Errorf("error updating cgpa: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrStudentNotFound
	}

	return nil
}

// FindEligible returns swap candidates for the requester: active students in
// a different batch whose CGPA lies within the tolerance band and who are not
// already party to an accepted swap. Ordered by ascending CGPA distance, ties
// broken by ascending id so the ranking is deterministic.
func (r *studentRepository) FindEligible(ctx context.Context, requester *models.Student, tolerance float64) ([]*models.Student, error) {
	query := `
		SELECT ` + studentColumns + `
		FROM students s
		WHERE s.id <> $1
		  AND s.is_active
		  AND s.current_batch <> $2
		  AND abs(s.cgpa - $3) <= $4
		  AND NOT EXISTS (
			SELECT 1 FROM swap_requests sr
			WHERE sr.status = 'accepted'
			  AND (sr.requester_id = s.id OR sr.target_id = s.id)
		  )
		ORDER BY abs(s.cgpa - $3) ASC, s.id ASC
	`

	rows, err := r.db.Query(ctx, query, requester.ID, requester.CurrentBatch, requester.CGPA, tolerance)
	if err != nil {
		return nil, fmt.Errorf("error querying eligible students: %w", err)
	}
	defer rows.Close()

	var candidates []*models.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning candidate row: %w", err)
		}
		candidates = append(candidates, student)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidate rows: %w", err)
	}

	return candidates, nil
}

// GetForUpdate retrieves a student inside tx holding its row lock. The swap
// engine always acquires these locks in ascending-id order.
func (r *studentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1 FOR UPDATE`

	student, err := scanStudent(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, fmt.Errorf("error locking student row: %w", err)
	}

	return student, nil
}

// UpdateCurrentBatch writes the student's batch assignment inside tx. Only
// the batch-exchange transaction calls this.
func (r *studentRepository) UpdateCurrentBatch(ctx context.Context, tx pgx.Tx, id int64, batch models.Batch) error {
	query := `UPDATE students SET current_batch = $2, updated_at = now() WHERE id = $1`

	result, err := tx.Exec(ctx, query, id, batch)
	if err != nil {
		return fmt.Errorf("error updating current batch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrStudentNotFound
	}

	return nil
}
