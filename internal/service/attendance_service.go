package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/presenca-api/internal/models"
	"github.com/noah-isme/presenca-api/internal/repository"
	"github.com/noah-isme/presenca-api/pkg/config"
	appErrors "github.com/noah-isme/presenca-api/pkg/errors"
	"github.com/noah-isme/presenca-api/pkg/timeutil"
)

type attendanceRepository interface {
	Create(ctx context.Context, record *models.Attendance) error
	CreateOncePerDay(ctx context.Context, record *models.Attendance, from, to time.Time) error
	FindByID(ctx context.Context, id int64) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	Exists(ctx context.Context, filter models.AttendanceFilter) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type studentResolver interface {
	Get(ctx context.Context, id int64) (*models.Student, error)
}

// MarkAttendanceRequest is the body of POST /presencas/marcar-data.
type MarkAttendanceRequest struct {
	StudentID *int64 `json:"alunoId" validate:"required"`
	DataHora  string `json:"dataHora" validate:"required"`
}

// AttendanceService handles attendance use-cases.
type AttendanceService struct {
	repo      attendanceRepository
	students  studentResolver
	loc       *time.Location
	onePerDay bool
	now       func() time.Time
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students studentResolver, cfg config.AttendanceConfig, metrics *MetricsService, logger *zap.Logger) *AttendanceService {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:      repo,
		students:  students,
		loc:       loc,
		onePerDay: cfg.OnePerDay,
		now:       time.Now,
		metrics:   metrics,
		logger:    logger,
	}
}

// Location returns the zone calendar days are computed in.
func (s *AttendanceService) Location() *time.Location {
	return s.loc
}

// MarkNow records the student as present at the current time.
func (s *AttendanceService) MarkNow(ctx context.Context, studentID int64) (*models.AttendanceRecord, error) {
	return s.mark(ctx, studentID, s.now())
}

// MarkAt records the student as present at the given time.
func (s *AttendanceService) MarkAt(ctx context.Context, studentID int64, at time.Time) (*models.AttendanceRecord, error) {
	if at.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dataHora is required")
	}
	return s.mark(ctx, studentID, at)
}

func (s *AttendanceService) mark(ctx context.Context, studentID int64, at time.Time) (*models.AttendanceRecord, error) {
	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	record := models.Attendance{StudentID: studentID, RecordedAt: at.UTC(), Present: true}
	done := s.metrics.timeQuery("attendance_create")
	if s.onePerDay {
		from, to := timeutil.DayRange(at, at, s.loc)
		err = s.repo.CreateOncePerDay(ctx, &record, from, to)
	} else {
		err = s.repo.Create(ctx, &record)
	}
	done()
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUnknownStudent):
			return nil, studentNotFound(studentID)
		case errors.Is(err, repository.ErrAttendanceExists):
			return nil, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("student %d already has attendance on %s", studentID, at.In(s.loc).Format(timeutil.DateLayout)))
		}
		return nil, appErrors.Internal(err, "failed to mark attendance")
	}

	s.metrics.IncEvent("attendance_marked")
	s.logger.Info("attendance marked", zap.Int64("id", record.ID), zap.Int64("student_id", studentID), zap.Time("at", record.RecordedAt))

	out := &models.AttendanceRecord{Attendance: record, Student: student.Ref()}
	s.localize(&out.Attendance)
	return out, nil
}

// ListByStudent returns every attendance event for the student, oldest first.
func (s *AttendanceService) ListByStudent(ctx context.Context, studentID int64) ([]models.AttendanceRecord, error) {
	if _, err := s.students.Get(ctx, studentID); err != nil {
		return nil, err
	}
	return s.list(ctx, "attendance_list_student", models.AttendanceFilter{StudentID: studentID})
}

// ListByStudentAndRange returns the student's events between the start of startDate and the end of endDate.
func (s *AttendanceService) ListByStudentAndRange(ctx context.Context, studentID int64, startDate, endDate time.Time) ([]models.AttendanceRecord, error) {
	if _, err := s.students.Get(ctx, studentID); err != nil {
		return nil, err
	}
	filter, err := s.rangeFilter(studentID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "attendance_list_range", filter)
}

// WasPresentOnDay reports whether the student has at least one attendance event on day.
// Any event counts, whatever its present flag.
func (s *AttendanceService) WasPresentOnDay(ctx context.Context, studentID int64, day time.Time) (bool, error) {
	if _, err := s.students.Get(ctx, studentID); err != nil {
		return false, err
	}
	filter, err := s.rangeFilter(studentID, day, day)
	if err != nil {
		return false, err
	}
	done := s.metrics.timeQuery("attendance_exists")
	exists, err := s.repo.Exists(ctx, filter)
	done()
	if err != nil {
		return false, appErrors.Internal(err, "failed to check attendance")
	}
	return exists, nil
}

// ListByDate returns every attendance event on the calendar day.
func (s *AttendanceService) ListByDate(ctx context.Context, day time.Time) ([]models.AttendanceRecord, error) {
	filter, err := s.rangeFilter(0, day, day)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "attendance_list_date", filter)
}

// ListAll returns every attendance event.
func (s *AttendanceService) ListAll(ctx context.Context) ([]models.AttendanceRecord, error) {
	return s.list(ctx, "attendance_list_all", models.AttendanceFilter{})
}

// Get returns one attendance event by id.
func (s *AttendanceService) Get(ctx context.Context, id int64) (*models.AttendanceRecord, error) {
	done := s.metrics.timeQuery("attendance_find")
	record, err := s.repo.FindByID(ctx, id)
	done()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, attendanceNotFound(id)
		}
		return nil, appErrors.Internal(err, "failed to load attendance")
	}
	s.localize(&record.Attendance)
	return record, nil
}

// Delete removes an attendance event by id.
func (s *AttendanceService) Delete(ctx context.Context, id int64) error {
	done := s.metrics.timeQuery("attendance_delete")
	err := s.repo.Delete(ctx, id)
	done()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendanceNotFound(id)
		}
		return appErrors.Internal(err, "failed to delete attendance")
	}
	s.metrics.IncEvent("attendance_deleted")
	s.logger.Info("attendance deleted", zap.Int64("id", id))
	return nil
}

func (s *AttendanceService) rangeFilter(studentID int64, startDate, endDate time.Time) (models.AttendanceFilter, error) {
	from, to := timeutil.DayRange(startDate, endDate, s.loc)
	if from.After(to) {
		return models.AttendanceFilter{}, appErrors.Clone(appErrors.ErrValidation, "startDate must not be after endDate")
	}
	return models.AttendanceFilter{StudentID: studentID, From: &from, To: &to}, nil
}

func (s *AttendanceService) list(ctx context.Context, label string, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	done := s.metrics.timeQuery(label)
	records, err := s.repo.List(ctx, filter)
	done()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list attendance")
	}
	for i := range records {
		s.localize(&records[i].Attendance)
	}
	return records, nil
}

func (s *AttendanceService) localize(a *models.Attendance) {
	a.RecordedAt = a.RecordedAt.In(s.loc)
	a.CreatedAt = a.CreatedAt.In(s.loc)
}

func attendanceNotFound(id int64) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("attendance %d not found", id))
}
