package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/noah-isme/presenca-api/internal/models"
	"github.com/noah-isme/presenca-api/internal/repository"
	appErrors "github.com/noah-isme/presenca-api/pkg/errors"
)

// memStore backs the student and attendance fakes with shared state so
// foreign key behaviour can be exercised.
type memStore struct {
	students   map[int64]models.Student
	attendance []models.Attendance
	nextID     int64
	findCalls  int
	err        error
}

func newMemStore() *memStore {
	return &memStore{students: make(map[int64]models.Student)}
}

func (m *memStore) seq() int64 {
	m.nextID++
	return m.nextID
}

type fakeStudentRepo struct{ *memStore }

func (f fakeStudentRepo) List(ctx context.Context) ([]models.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Student, 0, len(f.students))
	for _, s := range f.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeStudentRepo) ListSortedByName(ctx context.Context) ([]models.Student, error) {
	out, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f fakeStudentRepo) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	f.findCalls++
	s, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f fakeStudentRepo) ExistsByNumber(ctx context.Context, number int, excludeID int64) (bool, error) {
	for id, s := range f.students {
		if s.Number == number && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if ok, _ := f.ExistsByNumber(ctx, student.Number, 0); ok {
		return repository.ErrDuplicateNumber
	}
	now := time.Now().UTC()
	student.ID = f.seq()
	student.CreatedAt, student.UpdatedAt = now, now
	f.students[student.ID] = *student
	return nil
}

func (f fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	if _, ok := f.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	if ok, _ := f.ExistsByNumber(ctx, student.Number, student.ID); ok {
		return repository.ErrDuplicateNumber
	}
	student.UpdatedAt = time.Now().UTC()
	f.students[student.ID] = *student
	return nil
}

func (f fakeStudentRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.students[id]; !ok {
		return sql.ErrNoRows
	}
	for _, a := range f.attendance {
		if a.StudentID == id {
			return repository.ErrStudentReferenced
		}
	}
	delete(f.students, id)
	return nil
}

func (f fakeStudentRepo) DeleteCascade(ctx context.Context, id int64) (int64, error) {
	if _, ok := f.students[id]; !ok {
		return 0, sql.ErrNoRows
	}
	kept := f.attendance[:0]
	var removed int64
	for _, a := range f.attendance {
		if a.StudentID == id {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	f.attendance = kept
	delete(f.students, id)
	return removed, nil
}

// racedStudentRepo models a concurrent writer taking the number between the
// existence check and the write: the check passes, the unique index refuses.
type racedStudentRepo struct{ fakeStudentRepo }

func (racedStudentRepo) ExistsByNumber(ctx context.Context, number int, excludeID int64) (bool, error) {
	return false, nil
}

func (racedStudentRepo) Create(ctx context.Context, student *models.Student) error {
	return repository.ErrDuplicateNumber
}

func (racedStudentRepo) Update(ctx context.Context, student *models.Student) error {
	return repository.ErrDuplicateNumber
}

type fakeAttendanceRepo struct{ *memStore }

func (f fakeAttendanceRepo) Create(ctx context.Context, record *models.Attendance) error {
	if _, ok := f.students[record.StudentID]; !ok {
		return repository.ErrUnknownStudent
	}
	record.ID = f.seq()
	record.CreatedAt = time.Now().UTC()
	f.attendance = append(f.attendance, *record)
	return nil
}

func (f fakeAttendanceRepo) CreateOncePerDay(ctx context.Context, record *models.Attendance, from, to time.Time) error {
	if _, ok := f.students[record.StudentID]; !ok {
		return repository.ErrUnknownStudent
	}
	if exists, _ := f.Exists(ctx, models.AttendanceFilter{StudentID: record.StudentID, From: &from, To: &to}); exists {
		return repository.ErrAttendanceExists
	}
	return f.Create(ctx, record)
}

func (f fakeAttendanceRepo) record(a models.Attendance) models.AttendanceRecord {
	return models.AttendanceRecord{Attendance: a, Student: f.students[a.StudentID].Ref()}
}

func (f fakeAttendanceRepo) FindByID(ctx context.Context, id int64) (*models.AttendanceRecord, error) {
	for _, a := range f.attendance {
		if a.ID == id {
			r := f.record(a)
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []models.AttendanceRecord{}
	for _, a := range f.attendance {
		if filter.StudentID != 0 && a.StudentID != filter.StudentID {
			continue
		}
		if filter.From != nil && a.RecordedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && a.RecordedAt.After(*filter.To) {
			continue
		}
		out = append(out, f.record(a))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

func (f fakeAttendanceRepo) Exists(ctx context.Context, filter models.AttendanceFilter) (bool, error) {
	records, err := f.List(ctx, filter)
	return len(records) > 0, err
}

func (f fakeAttendanceRepo) CountByStudent(ctx context.Context, studentID int64) (int, error) {
	records, err := f.List(ctx, models.AttendanceFilter{StudentID: studentID})
	return len(records), err
}

func (f fakeAttendanceRepo) Delete(ctx context.Context, id int64) error {
	for i, a := range f.attendance {
		if a.ID == id {
			f.attendance = append(f.attendance[:i], f.attendance[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

// memCache is a JSON round-tripping CacheRepository.
type memCache struct {
	items map[string][]byte
	gets  int
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.gets++
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = raw
	return nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := pattern
	if n := len(prefix); n > 0 && prefix[n-1] == '*' {
		prefix = prefix[:n-1]
	}
	for k := range c.items {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.items, k)
		}
	}
	return nil
}
