package models

import "strings"

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ParseReportFormat normalises a query value, defaulting to CSV when empty.
func ParseReportFormat(raw string) (ReportFormat, bool) {
	switch ReportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ReportFormatCSV:
		return ReportFormatCSV, true
	case ReportFormatPDF:
		return ReportFormatPDF, true
	}
	return "", false
}

// ReportFile is a rendered export ready to be streamed.
type ReportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
