package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/unchk/agrt-api/internal/models"
	appErrors "github.com/unchk/agrt-api/pkg/errors"
	"github.com/unchk/agrt-api/pkg/export"
)

type exportApplicationRepository interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
}

type exportUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ExportService renders application listings as CSV or PDF for reviewers.
type ExportService struct {
	applications exportApplicationRepository
	users        exportUserReader
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	logger       *zap.Logger
}

// NewExportService creates an instance of ExportService.
func NewExportService(applications exportApplicationRepository, users exportUserReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		applications: applications,
		users:        users,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		logger:       logger,
	}
}

var exportHeaders = []string{"Application ID", "Candidate", "Email", "Announcement ID", "Type", "Status", "Submitted"}

// ApplicationsCSV renders the filtered applications as CSV bytes.
func (s *ExportService) ApplicationsCSV(ctx context.Context, filter models.ApplicationFilter) ([]byte, error) {
	dataset, err := s.buildDataset(ctx, filter)
	if err != nil {
		return nil, err
	}
	data, err := s.csv.Render(*dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
	}
	return data, nil
}

// ApplicationsPDF renders the filtered applications as a tabular PDF.
func (s *ExportService) ApplicationsPDF(ctx context.Context, filter models.ApplicationFilter) ([]byte, error) {
	dataset, err := s.buildDataset(ctx, filter)
	if err != nil {
		return nil, err
	}
	data, err := s.pdf.Render(*dataset, "Applications")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
	}
	return data, nil
}

func (s *ExportService) buildDataset(ctx context.Context, filter models.ApplicationFilter) (*export.Dataset, error) {
	// Exports are unpaginated within reason.
	filter.Page = 1
	if filter.PageSize <= 0 {
		filter.PageSize = 100
	}

	apps, _, err := s.applications.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applications for export")
	}

	rows := make([]map[string]string, 0, len(apps))
	for _, app := range apps {
		candidateName := app.CandidateID
		candidateEmail := ""
		if candidate, err := s.users.FindByID(ctx, app.CandidateID); err == nil {
			candidateName = candidate.FullName()
			candidateEmail = candidate.Email
		} else {
			s.logger.Warn("failed to resolve candidate for export", zap.Error(err), zap.String("candidate_id", app.CandidateID))
		}

		rows = append(rows, map[string]string{
			"Application ID":  app.ID,
			"Candidate":       candidateName,
			"Email":           candidateEmail,
			"Announcement ID": app.AnnouncementID,
			"Type":            string(app.ApplicationType),
			"Status":          string(app.Status),
			"Submitted":       app.CreatedAt.Format("2006-01-02 15:04"),
		})
	}

	return &export.Dataset{Headers: exportHeaders, Rows: rows}, nil
}

// FileName suggests a download name for the given format.
func FileName(format string) string {
	return fmt.Sprintf("applications.%s", format)
}
