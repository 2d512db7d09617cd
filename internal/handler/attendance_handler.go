package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/presenca-api/internal/models"
	"github.com/noah-isme/presenca-api/internal/service"
	appErrors "github.com/noah-isme/presenca-api/pkg/errors"
	"github.com/noah-isme/presenca-api/pkg/response"
	"github.com/noah-isme/presenca-api/pkg/timeutil"
)

type attendanceService interface {
	Location() *time.Location
	MarkNow(ctx context.Context, studentID int64) (*models.AttendanceRecord, error)
	MarkAt(ctx context.Context, studentID int64, at time.Time) (*models.AttendanceRecord, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.AttendanceRecord, error)
	ListByStudentAndRange(ctx context.Context, studentID int64, startDate, endDate time.Time) ([]models.AttendanceRecord, error)
	WasPresentOnDay(ctx context.Context, studentID int64, day time.Time) (bool, error)
	ListByDate(ctx context.Context, day time.Time) ([]models.AttendanceRecord, error)
	ListAll(ctx context.Context) ([]models.AttendanceRecord, error)
	Get(ctx context.Context, id int64) (*models.AttendanceRecord, error)
	Delete(ctx context.Context, id int64) error
}

type reportService interface {
	AttendanceReport(ctx context.Context, studentID int64, startDate, endDate time.Time, format models.ReportFormat) (*models.ReportFile, error)
}

// AttendanceHandler exposes attendance endpoints.
type AttendanceHandler struct {
	attendance attendanceService
	reports    reportService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService, reports reportService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, reports: reports}
}

// MarkNow godoc
// @Summary Mark a student present now
// @Tags Presencas
// @Produce json
// @Param alunoId path int true "Student ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /presencas/marcar/{alunoId} [post]
func (h *AttendanceHandler) MarkNow(c *gin.Context) {
	studentID, ok := idParam(c, "alunoId")
	if !ok {
		return
	}
	record, err := h.attendance.MarkNow(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// MarkAt godoc
// @Summary Mark a student present at a given time
// @Description dataHora accepts RFC3339 or a local ISO timestamp read in the configured zone.
// @Tags Presencas
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /presencas/marcar-data [post]
func (h *AttendanceHandler) MarkAt(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	if req.StudentID == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "alunoId is required"))
		return
	}
	at, err := timeutil.ParseDateTime(req.DataHora, h.attendance.Location())
	if err != nil {
		response.Error(c, appErrors.Validation(err, fmt.Sprintf("invalid dataHora %q", req.DataHora)))
		return
	}
	record, err := h.attendance.MarkAt(c.Request.Context(), *req.StudentID, at)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ListByStudent godoc
// @Summary List a student's attendance
// @Tags Presencas
// @Produce json
// @Param alunoId path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /presencas/aluno/{alunoId} [get]
func (h *AttendanceHandler) ListByStudent(c *gin.Context) {
	studentID, ok := idParam(c, "alunoId")
	if !ok {
		return
	}
	records, err := h.attendance.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// ListByRange godoc
// @Summary List a student's attendance between two dates
// @Tags Presencas
// @Produce json
// @Param alunoId path int true "Student ID"
// @Param startDate query string true "First day (YYYY-MM-DD)"
// @Param endDate query string true "Last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /presencas/aluno/{alunoId}/periodo [get]
func (h *AttendanceHandler) ListByRange(c *gin.Context) {
	studentID, start, end, ok := h.rangeParams(c)
	if !ok {
		return
	}
	records, err := h.attendance.ListByStudentAndRange(c.Request.Context(), studentID, start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// Verify godoc
// @Summary Check whether a student was present on a day
// @Tags Presencas
// @Produce json
// @Param alunoId path int true "Student ID"
// @Param date path string true "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /presencas/verificar/{alunoId}/{date} [get]
func (h *AttendanceHandler) Verify(c *gin.Context) {
	studentID, ok := idParam(c, "alunoId")
	if !ok {
		return
	}
	day, ok := dateValue(c, "date", c.Param("date"), h.attendance.Location())
	if !ok {
		return
	}
	present, err := h.attendance.WasPresentOnDay(c.Request.Context(), studentID, day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, present)
}

// ListByDate godoc
// @Summary List every attendance event on a day
// @Tags Presencas
// @Produce json
// @Param date path string true "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /presencas/data/{date} [get]
func (h *AttendanceHandler) ListByDate(c *gin.Context) {
	day, ok := dateValue(c, "date", c.Param("date"), h.attendance.Location())
	if !ok {
		return
	}
	records, err := h.attendance.ListByDate(c.Request.Context(), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// ListAll godoc
// @Summary List every attendance event
// @Tags Presencas
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /presencas [get]
func (h *AttendanceHandler) ListAll(c *gin.Context) {
	records, err := h.attendance.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// Get godoc
// @Summary Get attendance event
// @Tags Presencas
// @Produce json
// @Param id path int true "Attendance ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /presencas/{id} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	record, err := h.attendance.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Delete godoc
// @Summary Delete attendance event
// @Tags Presencas
// @Param id path int true "Attendance ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /presencas/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.attendance.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Report godoc
// @Summary Export a student's attendance between two dates
// @Tags Presencas
// @Produce text/csv
// @Produce application/pdf
// @Param alunoId path int true "Student ID"
// @Param startDate query string true "First day (YYYY-MM-DD)"
// @Param endDate query string true "Last day (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /presencas/aluno/{alunoId}/relatorio [get]
func (h *AttendanceHandler) Report(c *gin.Context) {
	format, valid := models.ParseReportFormat(c.Query("format"))
	if !valid {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	studentID, start, end, ok := h.rangeParams(c)
	if !ok {
		return
	}
	file, err := h.reports.AttendanceReport(c.Request.Context(), studentID, start, end, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}

func (h *AttendanceHandler) rangeParams(c *gin.Context) (int64, time.Time, time.Time, bool) {
	studentID, ok := idParam(c, "alunoId")
	if !ok {
		return 0, time.Time{}, time.Time{}, false
	}
	loc := h.attendance.Location()
	start, ok := dateValue(c, "startDate", c.Query("startDate"), loc)
	if !ok {
		return 0, time.Time{}, time.Time{}, false
	}
	end, ok := dateValue(c, "endDate", c.Query("endDate"), loc)
	if !ok {
		return 0, time.Time{}, time.Time{}, false
	}
	return studentID, start, end, true
}
