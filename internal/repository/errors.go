package repository

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes the stores translate.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

var (
	// ErrDuplicateNumber is returned when the unique index on alunos.number rejects a write.
	ErrDuplicateNumber = errors.New("student number already in use")
	// ErrStudentReferenced is returned when a student cannot be removed because attendance rows point at it.
	ErrStudentReferenced = errors.New("student referenced by attendance records")
	// ErrUnknownStudent is returned when an attendance insert references a missing student.
	ErrUnknownStudent = errors.New("attendance references unknown student")
	// ErrAttendanceExists is returned when a once-per-day insert finds an event on the same day.
	ErrAttendanceExists = errors.New("attendance already recorded for the day")
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
