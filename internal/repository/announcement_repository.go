package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unchk/agrt-api/internal/models"
)

const announcementColumns = "id, academic_year_id, title, description, status, publication_date, closing_date, created_by, created_at, updated_at"

// AnnouncementRepository provides database access for job announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates a new instance of AnnouncementRepository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// FindByID returns an announcement by identifier.
func (r *AnnouncementRepository) FindByID(ctx context.Context, id string) (*models.JobAnnouncement, error) {
	query := fmt.Sprintf("SELECT %s FROM job_announcements WHERE id = $1 LIMIT 1", announcementColumns)
	var announcement models.JobAnnouncement
	if err := r.db.GetContext(ctx, &announcement, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find announcement by id: %w", err)
	}
	return &announcement, nil
}

// ExistsByTitleAndAcademicYear reports whether an announcement with the same
// title already exists for the academic year.
func (r *AnnouncementRepository) ExistsByTitleAndAcademicYear(ctx context.Context, title, academicYearID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM job_announcements WHERE title = $1 AND academic_year_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, title, academicYearID); err != nil {
		return false, fmt.Errorf("check announcement title uniqueness: %w", err)
	}
	return exists, nil
}

// List returns announcements based on filters with total count.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.JobAnnouncement, int, error) {
	baseQuery := `FROM job_announcements WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.OpenOnly {
		conditions = append(conditions, fmt.Sprintf("status = $%d AND publication_date <= NOW() AND closing_date > NOW()", len(args)+1))
		args = append(args, models.AnnouncementStatusPublished)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", announcementColumns, baseQuery, pageSize, offset)

	var announcements []models.JobAnnouncement
	if err := r.db.SelectContext(ctx, &announcements, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}

	return announcements, total, nil
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.JobAnnouncement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now

	const query = `INSERT INTO job_announcements (id, academic_year_id, title, description, status, publication_date, closing_date, created_by, created_at, updated_at) VALUES (:id, :academic_year_id, :title, :description, :status, :publication_date, :closing_date, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Update updates mutable fields of an announcement.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.JobAnnouncement) error {
	announcement.UpdatedAt = time.Now().UTC()
	const query = `UPDATE job_announcements SET academic_year_id = :academic_year_id, title = :title, description = :description, status = :status, publication_date = :publication_date, closing_date = :closing_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	return nil
}

// Delete removes an announcement.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM job_announcements WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return nil
}
