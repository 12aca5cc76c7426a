package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unchk/agrt-api/internal/models"
	appErrors "github.com/unchk/agrt-api/pkg/errors"
)

type announcementRepository interface {
	FindByID(ctx context.Context, id string) (*models.JobAnnouncement, error)
	ExistsByTitleAndAcademicYear(ctx context.Context, title, academicYearID string) (bool, error)
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.JobAnnouncement, int, error)
	Create(ctx context.Context, announcement *models.JobAnnouncement) error
	Update(ctx context.Context, announcement *models.JobAnnouncement) error
	Delete(ctx context.Context, id string) error
}

type announcementYearRepository interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
}

// AnnouncementRequest is the payload for creating or updating announcements.
type AnnouncementRequest struct {
	AcademicYearID string    `json:"academic_year_id" validate:"required"`
	Title          string    `json:"title" validate:"required"`
	Description    string    `json:"description" validate:"required"`
	ClosingDate    time.Time `json:"closing_date" validate:"required"`
}

// AnnouncementService manages the announcement lifecycle from draft to close.
type AnnouncementService struct {
	repo      announcementRepository
	years     announcementYearRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService creates an instance of AnnouncementService.
func NewAnnouncementService(repo announcementRepository, years announcementYearRepository, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AnnouncementService{repo: repo, years: years, validator: validate, logger: logger}
}

// List returns announcements matching the filter with pagination metadata.
func (s *AnnouncementService) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.JobAnnouncement, *models.Pagination, error) {
	announcements, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return announcements, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns an announcement by ID.
func (s *AnnouncementService) Get(ctx context.Context, id string) (*models.JobAnnouncement, error) {
	announcement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

// Create adds a draft announcement. The title is unique within its academic
// year.
func (s *AnnouncementService) Create(ctx context.Context, req AnnouncementRequest, createdBy string) (*models.JobAnnouncement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	if _, err := s.years.FindByID(ctx, req.AcademicYearID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}

	exists, err := s.repo.ExistsByTitleAndAcademicYear(ctx, req.Title, req.AcademicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check title uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an announcement with this title already exists for the academic year")
	}

	announcement := &models.JobAnnouncement{
		AcademicYearID: req.AcademicYearID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         models.AnnouncementStatusDraft,
		ClosingDate:    req.ClosingDate,
		CreatedBy:      createdBy,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	s.logger.Info("announcement created", zap.String("announcement_id", announcement.ID))
	return announcement, nil
}

// Update modifies an announcement. Only drafts and published announcements
// may be edited.
func (s *AnnouncementService) Update(ctx context.Context, id string, req AnnouncementRequest) (*models.JobAnnouncement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	announcement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if announcement.Status == models.AnnouncementStatusClosed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "closed announcements cannot be edited")
	}

	if req.Title != announcement.Title || req.AcademicYearID != announcement.AcademicYearID {
		exists, err := s.repo.ExistsByTitleAndAcademicYear(ctx, req.Title, req.AcademicYearID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check title uniqueness")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an announcement with this title already exists for the academic year")
		}
	}

	announcement.AcademicYearID = req.AcademicYearID
	announcement.Title = req.Title
	announcement.Description = req.Description
	announcement.ClosingDate = req.ClosingDate
	if err := s.repo.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	return announcement, nil
}

// Publish moves a draft to PUBLISHED and stamps the publication date.
func (s *AnnouncementService) Publish(ctx context.Context, id string) (*models.JobAnnouncement, error) {
	announcement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !announcement.CanBePublished(now) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "announcement cannot be published")
	}

	announcement.Status = models.AnnouncementStatusPublished
	announcement.PublicationDate = &now
	if err := s.repo.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish announcement")
	}

	s.logger.Info("announcement published", zap.String("announcement_id", id))
	return announcement, nil
}

// Close moves a published announcement to CLOSED, ending the application
// window immediately.
func (s *AnnouncementService) Close(ctx context.Context, id string) (*models.JobAnnouncement, error) {
	announcement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if announcement.Status != models.AnnouncementStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only published announcements can be closed")
	}

	announcement.Status = models.AnnouncementStatusClosed
	if err := s.repo.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close announcement")
	}

	s.logger.Info("announcement closed", zap.String("announcement_id", id))
	return announcement, nil
}

// Delete removes a draft announcement. Published and closed announcements are
// kept for the record.
func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	announcement, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if announcement.Status != models.AnnouncementStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft announcements can be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}
