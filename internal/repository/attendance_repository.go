package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/presenca-api/internal/models"
)

const attendanceSelect = `SELECT p.id, p.aluno_id, p.recorded_at, p.present, p.created_at,
        a.id AS "aluno.id", a.name AS "aluno.name", a.number AS "aluno.number"
        FROM presencas p
        JOIN alunos a ON a.id = p.aluno_id`

// AttendanceRepository handles persistence for attendance events.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create inserts an attendance event and fills in its id and creation time.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.Attendance) error {
	return insertAttendance(ctx, r.db, record)
}

// CreateOncePerDay inserts record unless the student already has an event in [from, to].
// The student row is locked for the duration, so concurrent marks for one student serialise.
func (r *AttendanceRepository) CreateOncePerDay(ctx context.Context, record *models.Attendance, from, to time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create attendance: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var locked int64
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM alunos WHERE id = $1 FOR UPDATE`, record.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUnknownStudent
		}
		return fmt.Errorf("lock student: %w", err)
	}

	where, args := attendanceWhere(models.AttendanceFilter{StudentID: record.StudentID, From: &from, To: &to})
	var exists bool
	if err := tx.GetContext(ctx, &exists, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM presencas p WHERE %s)`, where), args...); err != nil {
		return fmt.Errorf("check attendance: %w", err)
	}
	if exists {
		return ErrAttendanceExists
	}

	if err := insertAttendance(ctx, tx, record); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create attendance: %w", err)
	}
	commit = true
	return nil
}

func insertAttendance(ctx context.Context, q sqlx.QueryerContext, record *models.Attendance) error {
	const query = `INSERT INTO presencas (aluno_id, recorded_at, present, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	row := q.QueryRowxContext(ctx, query, record.StudentID, record.RecordedAt, record.Present, time.Now().UTC())
	if err := row.Scan(&record.ID, &record.CreatedAt); err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return ErrUnknownStudent
		}
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// FindByID returns one attendance event. It returns sql.ErrNoRows when absent.
func (r *AttendanceRepository) FindByID(ctx context.Context, id int64) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, attendanceSelect+` WHERE p.id = $1`, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns attendance events matching filter in ascending timestamp order.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	where, args := attendanceWhere(filter)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY p.recorded_at ASC, p.id ASC`, attendanceSelect, where)

	records := []models.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// Exists reports whether any attendance event matches filter.
func (r *AttendanceRepository) Exists(ctx context.Context, filter models.AttendanceFilter) (bool, error) {
	where, args := attendanceWhere(filter)
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM presencas p WHERE %s)`, where)

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return exists, nil
}

// CountByStudent returns how many attendance events reference the student.
func (r *AttendanceRepository) CountByStudent(ctx context.Context, studentID int64) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM presencas WHERE aluno_id = $1`, studentID); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return total, nil
}

// Delete removes an attendance event. It returns sql.ErrNoRows when absent.
func (r *AttendanceRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM presencas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return requireAffected(res)
}

func attendanceWhere(filter models.AttendanceFilter) (string, []interface{}) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != 0 {
		where = append(where, fmt.Sprintf("p.aluno_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("p.recorded_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("p.recorded_at <= $%d", len(args)+1))
		// timestamptz keeps microseconds; an unrounded 23:59:59.999999999 would round up into the next day.
		args = append(args, filter.To.Truncate(time.Microsecond))
	}
	return strings.Join(where, " AND "), args
}

