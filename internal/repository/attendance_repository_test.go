package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/presenca-api/internal/models"
)

var attendanceCols = []string{"id", "aluno_id", "recorded_at", "present", "created_at", "aluno.id", "aluno.name", "aluno.number"}

func TestAttendanceRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	at := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO presencas").
		WithArgs(int64(1), at, true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(10, at))

	record := &models.Attendance{StudentID: 1, RecordedAt: at, Present: true}
	require.NoError(t, repo.Create(context.Background(), record))
	assert.Equal(t, int64(10), record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCreateUnknownStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("INSERT INTO presencas").WillReturnError(&pq.Error{Code: pqForeignKeyViolation})

	err := repo.Create(context.Background(), &models.Attendance{StudentID: 99, RecordedAt: time.Now(), Present: true})
	assert.ErrorIs(t, err, ErrUnknownStudent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListByStudentAndRange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 1, 23, 59, 59, 999999999, time.UTC)
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND p.aluno_id = $1 AND p.recorded_at >= $2 AND p.recorded_at <= $3 ORDER BY p.recorded_at ASC, p.id ASC")).
		WithArgs(int64(1), from, time.Date(2025, 6, 1, 23, 59, 59, 999999000, time.UTC)).
		WillReturnRows(sqlmock.NewRows(attendanceCols).AddRow(10, 1, at, true, at, 1, "Ana", 7))

	records, err := repo.List(context.Background(), models.AttendanceFilter{StudentID: 1, From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(10), records[0].ID)
	assert.Equal(t, "Ana", records[0].Student.Name)
	assert.Equal(t, 7, records[0].Student.Number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN alunos a ON a.id = p.aluno_id WHERE 1=1 ORDER BY")).
		WillReturnRows(sqlmock.NewRows(attendanceCols))

	records, err := repo.List(context.Background(), models.AttendanceFilter{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM presencas p WHERE 1=1 AND p.aluno_id = $1 AND p.recorded_at >= $2)")).
		WithArgs(int64(1), from).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), models.AttendanceFilter{StudentID: 1, From: &from})
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCountByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM presencas WHERE aluno_id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	total, err := repo.CountByStudent(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindAndDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("WHERE p.id = \\$1").WithArgs(int64(4)).WillReturnRows(sqlmock.NewRows(attendanceCols))
	mock.ExpectExec("DELETE FROM presencas WHERE id = \\$1").WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM presencas WHERE id = \\$1").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := repo.FindByID(context.Background(), 4)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.ErrorIs(t, repo.Delete(context.Background(), 4), sql.ErrNoRows)
	assert.NoError(t, repo.Delete(context.Background(), 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCreateOncePerDay(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Nanosecond)
	at := from.Add(9 * time.Hour)

	t.Run("inserts when the day is free", func(t *testing.T) {
		db, mock, cleanup := newMock(t)
		defer cleanup()
		repo := NewAttendanceRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM alunos WHERE id = $1 FOR UPDATE")).
			WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(int64(1), from, to.Truncate(time.Microsecond)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("INSERT INTO presencas").
			WithArgs(int64(1), at, true, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, at))
		mock.ExpectCommit()

		record := &models.Attendance{StudentID: 1, RecordedAt: at, Present: true}
		require.NoError(t, repo.CreateOncePerDay(context.Background(), record, from, to))
		assert.Equal(t, int64(11), record.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a second event on the day", func(t *testing.T) {
		db, mock, cleanup := newMock(t)
		defer cleanup()
		repo := NewAttendanceRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		err := repo.CreateOncePerDay(context.Background(), &models.Attendance{StudentID: 1, RecordedAt: at, Present: true}, from, to)
		assert.ErrorIs(t, err, ErrAttendanceExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown student", func(t *testing.T) {
		db, mock, cleanup := newMock(t)
		defer cleanup()
		repo := NewAttendanceRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		err := repo.CreateOncePerDay(context.Background(), &models.Attendance{StudentID: 9, RecordedAt: at, Present: true}, from, to)
		assert.ErrorIs(t, err, ErrUnknownStudent)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
