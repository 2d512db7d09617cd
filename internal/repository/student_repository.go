package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/presenca-api/internal/models"
)

const studentColumns = `id, name, number, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns every student ordered by id.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	students := []models.Student{}
	query := `SELECT ` + studentColumns + ` FROM alunos ORDER BY id`
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// ListSortedByName returns every student ordered by name using the column collation.
func (r *StudentRepository) ListSortedByName(ctx context.Context) ([]models.Student, error) {
	students := []models.Student{}
	query := `SELECT ` + studentColumns + ` FROM alunos ORDER BY name ASC, id ASC`
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students by name: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID. It returns sql.ErrNoRows when absent.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	var student models.Student
	query := `SELECT ` + studentColumns + ` FROM alunos WHERE id = $1`
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByNumber checks if a student holds number, optionally excluding one ID.
func (r *StudentRepository) ExistsByNumber(ctx context.Context, number int, excludeID int64) (bool, error) {
	query := "SELECT 1 FROM alunos WHERE number = $1"
	args := []interface{}{number}
	if excludeID != 0 {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check number: %w", err)
	}
	return true, nil
}

// Create inserts a new student and fills in the generated id and timestamps.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	const query = `INSERT INTO alunos (name, number, created_at, updated_at)
        VALUES ($1, $2, $3, $3)
        RETURNING id, created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, query, student.Name, student.Number, now)
	if err := row.Scan(&student.ID, &student.CreatedAt, &student.UpdatedAt); err != nil {
		if pqCode(err) == pqUniqueViolation {
			return ErrDuplicateNumber
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update persists name and number for an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	const query = `UPDATE alunos SET name = $2, number = $3, updated_at = $4 WHERE id = $1 RETURNING updated_at`
	row := r.db.QueryRowxContext(ctx, query, student.ID, student.Name, student.Number, time.Now().UTC())
	if err := row.Scan(&student.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		if pqCode(err) == pqUniqueViolation {
			return ErrDuplicateNumber
		}
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student. Attendance rows are left untouched, so the foreign key may refuse it.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alunos WHERE id = $1`, id)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return ErrStudentReferenced
		}
		return fmt.Errorf("delete student: %w", err)
	}
	return requireAffected(res)
}

// DeleteCascade removes a student together with its attendance rows in one transaction.
// It returns the number of attendance rows removed.
func (r *StudentRepository) DeleteCascade(ctx context.Context, id int64) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete student: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM presencas WHERE aluno_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete student attendance: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete student attendance: %w", err)
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM alunos WHERE id = $1`, id)
	if err != nil {
		// An attendance row inserted after the first delete still references the student.
		if pqCode(err) == pqForeignKeyViolation {
			return 0, ErrStudentReferenced
		}
		return 0, fmt.Errorf("delete student: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete student: %w", err)
	}
	commit = true
	return removed, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
