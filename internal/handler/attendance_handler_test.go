package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/presenca-api/internal/models"
	appErrors "github.com/noah-isme/presenca-api/pkg/errors"
)

type attendanceServiceMock struct {
	loc        *time.Location
	record     *models.AttendanceRecord
	records    []models.AttendanceRecord
	present    bool
	err        error
	calls      int
	lastID     int64
	lastAt     time.Time
	lastStart  time.Time
	lastEnd    time.Time
	lastMethod string
}

func (m *attendanceServiceMock) Location() *time.Location {
	if m.loc == nil {
		return time.UTC
	}
	return m.loc
}

func (m *attendanceServiceMock) track(method string, id int64) {
	m.calls++
	m.lastMethod = method
	m.lastID = id
}

func (m *attendanceServiceMock) MarkNow(ctx context.Context, studentID int64) (*models.AttendanceRecord, error) {
	m.track("MarkNow", studentID)
	return m.record, m.err
}

func (m *attendanceServiceMock) MarkAt(ctx context.Context, studentID int64, at time.Time) (*models.AttendanceRecord, error) {
	m.track("MarkAt", studentID)
	m.lastAt = at
	return m.record, m.err
}

func (m *attendanceServiceMock) ListByStudent(ctx context.Context, studentID int64) ([]models.AttendanceRecord, error) {
	m.track("ListByStudent", studentID)
	return m.records, m.err
}

func (m *attendanceServiceMock) ListByStudentAndRange(ctx context.Context, studentID int64, startDate, endDate time.Time) ([]models.AttendanceRecord, error) {
	m.track("ListByStudentAndRange", studentID)
	m.lastStart, m.lastEnd = startDate, endDate
	return m.records, m.err
}

func (m *attendanceServiceMock) WasPresentOnDay(ctx context.Context, studentID int64, day time.Time) (bool, error) {
	m.track("WasPresentOnDay", studentID)
	m.lastStart = day
	return m.present, m.err
}

func (m *attendanceServiceMock) ListByDate(ctx context.Context, day time.Time) ([]models.AttendanceRecord, error) {
	m.track("ListByDate", 0)
	m.lastStart = day
	return m.records, m.err
}

func (m *attendanceServiceMock) ListAll(ctx context.Context) ([]models.AttendanceRecord, error) {
	m.track("ListAll", 0)
	return m.records, m.err
}

func (m *attendanceServiceMock) Get(ctx context.Context, id int64) (*models.AttendanceRecord, error) {
	m.track("Get", id)
	return m.record, m.err
}

func (m *attendanceServiceMock) Delete(ctx context.Context, id int64) error {
	m.track("Delete", id)
	return m.err
}

type reportServiceMock struct {
	file       *models.ReportFile
	err        error
	lastFormat models.ReportFormat
}

func (m *reportServiceMock) AttendanceReport(ctx context.Context, studentID int64, startDate, endDate time.Time, format models.ReportFormat) (*models.ReportFile, error) {
	m.lastFormat = format
	return m.file, m.err
}

func sampleRecord() *models.AttendanceRecord {
	return &models.AttendanceRecord{
		Attendance: models.Attendance{ID: 1, StudentID: 1, RecordedAt: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), Present: true},
		Student:    models.StudentRef{ID: 1, Name: "Ana", Number: 7},
	}
}

func TestAttendanceHandlerMarkNow(t *testing.T) {
	mockSvc := &attendanceServiceMock{record: sampleRecord()}
	handler := NewAttendanceHandler(mockSvc, &reportServiceMock{})

	c, w := newTestContext(http.MethodPost, "/presencas/marcar/1", nil, gin.Param{Key: "alunoId", Value: "1"})
	handler.MarkNow(c)

	require.Equal(t, http.StatusCreated, w.Code)
	env := decodeEnvelope(t, w)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(env["data"], &body))
	assert.Equal(t, true, body["presente"])
	assert.Equal(t, float64(1), body["alunoId"])
	assert.Equal(t, "Ana", body["aluno"].(map[string]interface{})["name"])
}

func TestAttendanceHandlerMarkNowUnknownStudent(t *testing.T) {
	mockSvc := &attendanceServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "student 9 not found")}
	handler := NewAttendanceHandler(mockSvc, &reportServiceMock{})

	c, w := newTestContext(http.MethodPost, "/presencas/marcar/9", nil, gin.Param{Key: "alunoId", Value: "9"})
	handler.MarkNow(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendanceHandlerMarkAt(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	cases := []struct {
		name string
		body string
		want time.Time
	}{
		{"rfc3339", `{"alunoId":1,"dataHora":"2025-06-10T12:00:00Z"}`, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)},
		{"local", `{"alunoId":1,"dataHora":"2025-06-10T09:00:00"}`, time.Date(2025, 6, 10, 9, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockSvc := &attendanceServiceMock{loc: loc, record: sampleRecord()}
			handler := NewAttendanceHandler(mockSvc, &reportServiceMock{})

			c, w := newTestContext(http.MethodPost, "/presencas/marcar-data", []byte(tc.body))
			handler.MarkAt(c)

			require.Equal(t, http.StatusCreated, w.Code)
			assert.Equal(t, int64(1), mockSvc.lastID)
			assert.True(t, tc.want.Equal(mockSvc.lastAt))
		})
	}
}

func TestAttendanceHandlerMarkAtRejectsBadInput(t *testing.T) {
	bodies := []string{
		`{"alunoId":1,"dataHora":"10/06/2025"}`,
		`{"alunoId":1}`,
		`{"dataHora":"2025-06-10T09:00:00"}`,
		`{"alunoId":"x"`,
	}
	for _, body := range bodies {
		mockSvc := &attendanceServiceMock{}
		handler := NewAttendanceHandler(mockSvc, &reportServiceMock{})

		c, w := newTestContext(http.MethodPost, "/presencas/marcar-data", []byte(body))
		handler.MarkAt(c)

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, w.Body.String(), "VALIDATION_ERROR", body)
		assert.Zero(t, mockSvc.calls, body)
	}
}

func TestAttendanceHandlerListByRange(t *testing.T) {
	mockSvc := &attendanceServiceMock{records: []models.AttendanceRecord{*sampleRecord()}}
	handler := NewAttendanceHandler(mockSvc, &reportServiceMock{})

	c, w := newTestContext(http.MethodGet, "/presencas/aluno/1/periodo?startDate=2025-06-01&endDate=2025-06-30", nil, gin.Param{Key: "alunoId", Value: "1"})
	handler.ListByRange(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ListByStudentAndRange", mockSvc.lastMethod)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), mockSvc.lastStart)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), mockSvc.lastEnd)
}

func TestAttendanceHandlerListByRangeBadDate(t *testing.T) {
	mockSvc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(mockSvc, &reportServiceMock{})

	c, w := newTestContext(http.MethodGet, "/presencas/aluno/1/periodo?startDate=2025-13-01&endDate=2025-06-30", nil, gin.Param{Key: "alunoId", Value: "1"})
	handler.ListByRange(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, mockSvc.calls)
}

func TestAttendanceHandlerVerify(t *testing.T) {
	for _, present := range []bool{true, false} {
		mockSvc := &attendanceServiceMock{present: present}
		handler := NewAttendanceHandler(mockSvc, &reportServiceMock{})

		c, w := newTestContext(http.MethodGet, "/presencas/verificar/1/2025-06-10", nil,
			gin.Param{Key: "alunoId", Value: "1"}, gin.Param{Key: "date", Value: "2025-06-10"})
		handler.Verify(c)

		require.Equal(t, http.StatusOK, w.Code)
		if present {
			assert.JSONEq(t, `{"data":true}`, w.Body.String())
		} else {
			assert.JSONEq(t, `{"data":false}`, w.Body.String())
		}
	}
}

func TestAttendanceHandlerListByDateAndAll(t *testing.T) {
	mockSvc := &attendanceServiceMock{records: []models.AttendanceRecord{}}
	handler := NewAttendanceHandler(mockSvc, &reportServiceMock{})

	c, w := newTestContext(http.MethodGet, "/presencas/data/2025-06-10", nil, gin.Param{Key: "date", Value: "2025-06-10"})
	handler.ListByDate(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ListByDate", mockSvc.lastMethod)

	c, w = newTestContext(http.MethodGet, "/presencas", nil)
	handler.ListAll(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}

func TestAttendanceHandlerGetAndDelete(t *testing.T) {
	mockSvc := &attendanceServiceMock{record: sampleRecord()}
	handler := NewAttendanceHandler(mockSvc, &reportServiceMock{})

	c, w := newTestContext(http.MethodGet, "/presencas/1", nil, gin.Param{Key: "id", Value: "1"})
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, _ = newTestContext(http.MethodDelete, "/presencas/1", nil, gin.Param{Key: "id", Value: "1"})
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "Delete", mockSvc.lastMethod)

	mockSvc.err = appErrors.Clone(appErrors.ErrNotFound, "attendance 1 not found")
	c, w = newTestContext(http.MethodDelete, "/presencas/1", nil, gin.Param{Key: "id", Value: "1"})
	handler.Delete(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendanceHandlerReport(t *testing.T) {
	reports := &reportServiceMock{file: &models.ReportFile{Filename: "presencas.pdf", ContentType: "application/pdf", Body: []byte("%PDF-1.3")}}
	handler := NewAttendanceHandler(&attendanceServiceMock{}, reports)

	c, w := newTestContext(http.MethodGet, "/presencas/aluno/1/relatorio?startDate=2025-06-01&endDate=2025-06-30&format=PDF", nil, gin.Param{Key: "alunoId", Value: "1"})
	handler.Report(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ReportFormatPDF, reports.lastFormat)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "presencas.pdf")

	c, w = newTestContext(http.MethodGet, "/presencas/aluno/1/relatorio?startDate=2025-06-01&endDate=2025-06-30&format=xlsx", nil, gin.Param{Key: "alunoId", Value: "1"})
	handler.Report(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
