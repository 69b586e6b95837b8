package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/edusphere/school-admin-api/internal/models"
	appErrors "github.com/edusphere/school-admin-api/pkg/errors"
	"github.com/edusphere/school-admin-api/pkg/export"
)

type exportStudentLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type exportGroupReader interface {
	FindByID(ctx context.Context, id int64) (*models.Group, error)
}

type exportRosterLister interface {
	ListSeatedByGroup(ctx context.Context, groupID int64) ([]models.EnrollmentDetail, error)
}

type csvRenderer interface {
	Render(data *export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data *export.Dataset, title string) ([]byte, error)
}

// ExportFormat selects the rendered file type.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered document ready to be streamed to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders student lists and group rosters as downloadable
// CSV or PDF documents.
type ExportService struct {
	students    exportStudentLister
	groups      exportGroupReader
	enrollments exportRosterLister
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back
// to the default exporters.
func NewExportService(students exportStudentLister, groups exportGroupReader, enrollments exportRosterLister, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{students: students, groups: groups, enrollments: enrollments, csv: csv, pdf: pdf, logger: logger}
}

// StudentList renders the filtered student list.
func (s *ExportService) StudentList(ctx context.Context, filter models.StudentFilter, format ExportFormat) (*ExportFile, error) {
	// Exports ignore pagination: the caller gets the whole filtered set.
	filter.Page = 1
	filter.PageSize = 10000

	students, _, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students for export")
	}

	dataset := export.NewDataset("ID", "Matricula", "Full Name", "Age", "Email", "Phone", "Status", "Active")
	for _, st := range students {
		matricula := ""
		if st.Matricula != nil {
			matricula = *st.Matricula
		}
		age := ""
		if st.Age != nil {
			age = strconv.Itoa(*st.Age)
		}
		dataset.Append(
			strconv.FormatInt(st.ID, 10),
			matricula,
			st.FullName,
			age,
			st.Email,
			st.Phone,
			string(st.Status),
			strconv.FormatBool(st.Active),
		)
	}

	return s.render(dataset, "Student List", "students", format)
}

// GroupRoster renders the seated enrollments of a group.
func (s *ExportService) GroupRoster(ctx context.Context, groupID int64, format ExportFormat) (*ExportFile, error) {
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	roster, err := s.enrollments.ListSeatedByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group roster")
	}

	dataset := export.NewDataset("Enrollment ID", "Student ID", "Student Name", "Student Email", "Enrolled At", "Status")
	for _, e := range roster {
		dataset.Append(
			strconv.FormatInt(e.ID, 10),
			strconv.FormatInt(e.StudentID, 10),
			derefString(e.StudentName),
			derefString(e.StudentEmail),
			e.EnrolledAt.UTC().Format(time.RFC3339),
			string(e.Status),
		)
	}

	title := fmt.Sprintf("Roster %s (%s)", group.Name, group.Code)
	prefix := fmt.Sprintf("roster_%s", group.Code)
	return s.render(dataset, title, prefix, format)
}

func (s *ExportService) render(dataset *export.Dataset, title, prefix string, format ExportFormat) (*ExportFile, error) {
	timestamp := time.Now().UTC().Format("20060102_150405")
	switch format {
	case ExportFormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("%s_%s.csv", prefix, timestamp),
			ContentType: "text/csv",
			Payload:     payload,
		}, nil
	case ExportFormatPDF:
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("%s_%s.pdf", prefix, timestamp),
			ContentType: "application/pdf",
			Payload:     payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
