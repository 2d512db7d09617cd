package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/presenca-api/internal/models"
	"github.com/noah-isme/presenca-api/internal/repository"
	"github.com/noah-isme/presenca-api/pkg/config"
	appErrors "github.com/noah-isme/presenca-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context) ([]models.Student, error)
	ListSortedByName(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	ExistsByNumber(ctx context.Context, number int, excludeID int64) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id int64) error
	DeleteCascade(ctx context.Context, id int64) (int64, error)
}

type attendanceCounter interface {
	CountByStudent(ctx context.Context, studentID int64) (int, error)
}

const (
	cacheKeyStudentsAll     = "alunos:all"
	cacheKeyStudentsSorted  = "alunos:sorted"
	cacheKeyStudentsPattern = "alunos:*"
)

func studentCacheKey(id int64) string {
	return fmt.Sprintf("alunos:id:%d", id)
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	Name   string `json:"name" validate:"required,max=255"`
	Number *int   `json:"number" validate:"required"`
}

// UpdateStudentRequest holds the optional fields of a partial update.
type UpdateStudentRequest struct {
	Name   *string `json:"name"`
	Number *int    `json:"number"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo         studentRepository
	attendance   attendanceCounter
	deletePolicy string
	cache        *CacheService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewStudentService constructs the student service. cache and metrics may be nil.
func NewStudentService(repo studentRepository, attendance attendanceCounter, cfg config.StudentsConfig, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := cfg.DeletePolicy
	if policy == "" {
		policy = config.DeletePolicyRestrict
	}
	return &StudentService{
		repo:         repo,
		attendance:   attendance,
		deletePolicy: policy,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
	}
}

// List returns every student.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	return s.cachedList(ctx, cacheKeyStudentsAll, "students_list", s.repo.List)
}

// ListSortedByName returns every student ordered by name.
func (s *StudentService) ListSortedByName(ctx context.Context) ([]models.Student, error) {
	return s.cachedList(ctx, cacheKeyStudentsSorted, "students_list_sorted", s.repo.ListSortedByName)
}

func (s *StudentService) cachedList(ctx context.Context, key, label string, load func(context.Context) ([]models.Student, error)) ([]models.Student, error) {
	var cached []models.Student
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	done := s.metrics.timeQuery(label)
	students, err := load(ctx)
	done()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list students")
	}
	_ = s.cache.Set(ctx, key, students, 0)
	return students, nil
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	var cached models.Student
	if hit, _ := s.cache.Get(ctx, studentCacheKey(id), &cached); hit {
		return &cached, nil
	}

	done := s.metrics.timeQuery("students_find")
	student, err := s.repo.FindByID(ctx, id)
	done()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, studentNotFound(id)
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	_ = s.cache.Set(ctx, studentCacheKey(id), student, 0)
	return student, nil
}

// Create registers a new student, rejecting numbers already in use.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid student payload")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}

	exists, err := s.repo.ExistsByNumber(ctx, *req.Number, 0)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to validate number")
	}
	if exists {
		return nil, numberInUse(*req.Number)
	}

	student := &models.Student{Name: name, Number: *req.Number}
	done := s.metrics.timeQuery("students_create")
	err = s.repo.Create(ctx, student)
	done()
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateNumber) {
			return nil, numberInUse(*req.Number)
		}
		return nil, appErrors.Internal(err, "failed to create student")
	}

	s.invalidate(ctx, student.ID)
	s.metrics.IncEvent("student_created")
	s.logger.Info("student created", zap.Int64("id", student.ID), zap.Int("number", student.Number))
	return student, nil
}

// Update applies a partial update. Blank or unchanged names and unchanged numbers are ignored,
// so an empty request succeeds without touching the store.
func (s *StudentService) Update(ctx context.Context, id int64, req UpdateStudentRequest) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, studentNotFound(id)
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}

	changed := false
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name != "" && name != student.Name {
			student.Name = name
			changed = true
		}
	}
	if req.Number != nil && *req.Number != student.Number {
		exists, err := s.repo.ExistsByNumber(ctx, *req.Number, id)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to validate number")
		}
		if exists {
			return nil, numberInUse(*req.Number)
		}
		student.Number = *req.Number
		changed = true
	}
	if !changed {
		return student, nil
	}

	done := s.metrics.timeQuery("students_update")
	err = s.repo.Update(ctx, student)
	done()
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, studentNotFound(id)
		case errors.Is(err, repository.ErrDuplicateNumber):
			return nil, numberInUse(student.Number)
		}
		return nil, appErrors.Internal(err, "failed to update student")
	}

	s.invalidate(ctx, id)
	s.metrics.IncEvent("student_updated")
	s.logger.Info("student updated", zap.Int64("id", id), zap.String("name", student.Name), zap.Int("number", student.Number))
	return student, nil
}

// Delete removes a student. Under the restrict policy a student with attendance cannot be removed;
// under the cascade policy its attendance is removed with it.
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return studentNotFound(id)
		}
		return appErrors.Internal(err, "failed to load student")
	}

	var (
		removed int64
		err     error
	)
	done := s.metrics.timeQuery("students_delete")
	if s.deletePolicy == config.DeletePolicyCascade {
		removed, err = s.repo.DeleteCascade(ctx, id)
	} else {
		err = s.deleteRestricted(ctx, id)
	}
	done()
	if err != nil {
		var appErr *appErrors.Error
		switch {
		case errors.As(err, &appErr):
			return appErr
		case errors.Is(err, sql.ErrNoRows):
			return studentNotFound(id)
		case errors.Is(err, repository.ErrStudentReferenced):
			return studentReferenced(id)
		}
		return appErrors.Internal(err, "failed to delete student")
	}

	s.invalidate(ctx, id)
	s.metrics.IncEvent("student_deleted")
	s.logger.Info("student deleted", zap.Int64("id", id), zap.String("policy", s.deletePolicy), zap.Int64("attendance_removed", removed))
	return nil
}

func (s *StudentService) deleteRestricted(ctx context.Context, id int64) error {
	if s.attendance != nil {
		count, err := s.attendance.CountByStudent(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return studentReferenced(id)
		}
	}
	return s.repo.Delete(ctx, id)
}

// PurgeCache drops every cached student entry. Entries written by a previous
// process may predate edits made while it was down, so startup calls this.
func (s *StudentService) PurgeCache(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx, cacheKeyStudentsPattern); err != nil {
		return appErrors.Internal(err, "failed to purge student cache")
	}
	return nil
}

func (s *StudentService) invalidate(ctx context.Context, id int64) {
	_ = s.cache.Delete(ctx, cacheKeyStudentsAll, cacheKeyStudentsSorted, studentCacheKey(id))
}

func studentNotFound(id int64) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %d not found", id))
}

func numberInUse(number int) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("number %d already in use", number))
}

func studentReferenced(id int64) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student %d has attendance records", id))
}
