package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/presenca-api/internal/models"
	appErrors "github.com/noah-isme/presenca-api/pkg/errors"
	"github.com/noah-isme/presenca-api/pkg/export"
	"github.com/noah-isme/presenca-api/pkg/timeutil"
)

type attendanceRangeLister interface {
	ListByStudentAndRange(ctx context.Context, studentID int64, startDate, endDate time.Time) ([]models.AttendanceRecord, error)
}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportService renders attendance reports.
type ExportService struct {
	attendance attendanceRangeLister
	students   studentResolver
	renderers  map[models.ReportFormat]tableRenderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(attendance attendanceRangeLister, students studentResolver, logger *zap.Logger, csv, pdf tableRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter(0)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		attendance: attendance,
		students:   students,
		renderers: map[models.ReportFormat]tableRenderer{
			models.ReportFormatCSV: csv,
			models.ReportFormatPDF: pdf,
		},
		logger: logger,
	}
}

// AttendanceReport renders the student's attendance between startDate and endDate.
func (s *ExportService) AttendanceReport(ctx context.Context, studentID int64, startDate, endDate time.Time, format models.ReportFormat) (*models.ReportFile, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}

	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	records, err := s.attendance.ListByStudentAndRange(ctx, studentID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	from := startDate.Format(timeutil.DateLayout)
	to := endDate.Format(timeutil.DateLayout)
	table := export.Table{
		Title:   fmt.Sprintf("Presencas de %s (%d) %s a %s", student.Name, student.Number, from, to),
		Columns: []string{"ID", "Aluno", "Numero", "Data/Hora", "Presente"},
		Rows:    make([][]string, 0, len(records)),
	}
	for _, r := range records {
		present := "nao"
		if r.Present {
			present = "sim"
		}
		table.Rows = append(table.Rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Student.Name,
			strconv.Itoa(r.Student.Number),
			r.RecordedAt.Format("2006-01-02 15:04:05"),
			present,
		})
	}

	body, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render report")
	}

	s.logger.Info("attendance report rendered",
		zap.Int64("student_id", studentID),
		zap.String("format", string(format)),
		zap.Int("rows", len(table.Rows)),
	)
	return &models.ReportFile{
		Filename:    fmt.Sprintf("presencas-%d-%s-%s.%s", studentID, from, to, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}
