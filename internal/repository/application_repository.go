package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/unchk/agrt-api/internal/models"
)

// ErrDuplicateApplication is returned when the (candidate, announcement)
// uniqueness constraint is violated.
var ErrDuplicateApplication = errors.New("candidate already applied to announcement")

const applicationColumns = "id, candidate_id, announcement_id, academic_year_id, application_type, status, rejection_reason, created_at, updated_at"

const documentColumns = "id, application_id, document_type, file_name, storage_key, file_size, mime_type, status, upload_date, created_at, updated_at"

const historyColumns = "id, application_id, status_from, status_to, changed_by, comments, change_date"

// ApplicationRepository provides database access for applications, their
// documents and their status history.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository creates a new instance of ApplicationRepository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// FindByID returns an application by identifier without loading children.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM applications WHERE id = $1 LIMIT 1", applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find application by id: %w", err)
	}
	return &app, nil
}

// FindByIDWithDocuments returns an application with its documents and history
// loaded.
func (r *ApplicationRepository) FindByIDWithDocuments(ctx context.Context, id string) (*models.Application, error) {
	app, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	docsQuery := fmt.Sprintf("SELECT %s FROM documents WHERE application_id = $1 ORDER BY upload_date ASC", documentColumns)
	if err := r.db.SelectContext(ctx, &app.Documents, docsQuery, id); err != nil {
		return nil, fmt.Errorf("load application documents: %w", err)
	}

	historyQuery := fmt.Sprintf("SELECT %s FROM application_history WHERE application_id = $1 ORDER BY change_date ASC", historyColumns)
	if err := r.db.SelectContext(ctx, &app.History, historyQuery, id); err != nil {
		return nil, fmt.Errorf("load application history: %w", err)
	}

	return app, nil
}

// ExistsByCandidateAndAnnouncement reports whether the candidate already has
// an application for the announcement.
func (r *ApplicationRepository) ExistsByCandidateAndAnnouncement(ctx context.Context, candidateID, announcementID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM applications WHERE candidate_id = $1 AND announcement_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, candidateID, announcementID); err != nil {
		return false, fmt.Errorf("check application uniqueness: %w", err)
	}
	return exists, nil
}

// List returns applications based on filters with total count. Search matches
// the candidate's name or email.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	baseQuery := `FROM applications a JOIN users u ON u.id = a.candidate_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.AnnouncementID != "" {
		conditions = append(conditions, fmt.Sprintf("a.announcement_id = $%d", len(args)+1))
		args = append(args, filter.AnnouncementID)
	}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("a.academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.CandidateID != "" {
		conditions = append(conditions, fmt.Sprintf("a.candidate_id = $%d", len(args)+1))
		args = append(args, filter.CandidateID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.email) LIKE $%d OR LOWER(u.first_name) LIKE $%d OR LOWER(u.last_name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
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

	selectColumns := prefixColumns("a", applicationColumns)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY a.created_at DESC LIMIT %d OFFSET %d", selectColumns, baseQuery, pageSize, offset)

	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	return apps, total, nil
}

// CreateWithDocuments inserts the application and all of its documents in a
// single transaction. A unique-violation on (candidate_id, announcement_id)
// maps to ErrDuplicateApplication.
func (r *ApplicationRepository) CreateWithDocuments(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create application tx: %w", err)
	}
	defer tx.Rollback()

	const appQuery = `INSERT INTO applications (id, candidate_id, announcement_id, academic_year_id, application_type, status, rejection_reason, created_at, updated_at) VALUES (:id, :candidate_id, :announcement_id, :academic_year_id, :application_type, :status, :rejection_reason, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, appQuery, app); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateApplication
		}
		return fmt.Errorf("create application: %w", err)
	}

	for i := range app.Documents {
		doc := &app.Documents[i]
		doc.ApplicationID = app.ID
		if err := insertDocumentTx(ctx, tx, doc, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create application tx: %w", err)
	}
	return nil
}

// UpdateStatus updates the application status and records the transition in
// history, atomically.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, app *models.Application, history *models.ApplicationHistory) error {
	app.UpdatedAt = time.Now().UTC()
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	if history.ChangeDate.IsZero() {
		history.ChangeDate = app.UpdatedAt
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status tx: %w", err)
	}
	defer tx.Rollback()

	const appQuery = `UPDATE applications SET status = :status, rejection_reason = :rejection_reason, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, appQuery, app); err != nil {
		return fmt.Errorf("update application status: %w", err)
	}

	const historyQuery = `INSERT INTO application_history (id, application_id, status_from, status_to, changed_by, comments, change_date) VALUES (:id, :application_id, :status_from, :status_to, :changed_by, :comments, :change_date)`
	if _, err := tx.NamedExecContext(ctx, historyQuery, history); err != nil {
		return fmt.Errorf("record status history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status tx: %w", err)
	}
	return nil
}

// UpdateType updates the application type.
func (r *ApplicationRepository) UpdateType(ctx context.Context, id string, appType models.ApplicationType) error {
	const query = `UPDATE applications SET application_type = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, appType, time.Now().UTC()); err != nil {
		return fmt.Errorf("update application type: %w", err)
	}
	return nil
}

// ReplaceDocuments deletes the current document rows for the application and
// inserts the new set, atomically. It also updates the application type and
// timestamp. Blob cleanup of the old files is the caller's responsibility.
func (r *ApplicationRepository) ReplaceDocuments(ctx context.Context, app *models.Application, docs []models.Document) error {
	now := time.Now().UTC()
	app.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace documents tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE application_id = $1`, app.ID); err != nil {
		return fmt.Errorf("delete application documents: %w", err)
	}

	for i := range docs {
		docs[i].ApplicationID = app.ID
		if err := insertDocumentTx(ctx, tx, &docs[i], now); err != nil {
			return err
		}
	}

	const appQuery = `UPDATE applications SET application_type = :application_type, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, appQuery, app); err != nil {
		return fmt.Errorf("update application: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace documents tx: %w", err)
	}
	app.Documents = docs
	return nil
}

// Delete removes the application and all dependent rows in one transaction.
func (r *ApplicationRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete application tx: %w", err)
	}
	defer tx.Rollback()

	steps := []struct {
		name  string
		query string
	}{
		{"delete application notifications", `DELETE FROM notifications WHERE application_id = $1`},
		{"delete application history", `DELETE FROM application_history WHERE application_id = $1`},
		{"delete application documents", `DELETE FROM documents WHERE application_id = $1`},
		{"delete application", `DELETE FROM applications WHERE id = $1`},
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete application tx: %w", err)
	}
	return nil
}

// ListHistory returns the transition history of an application, oldest first.
func (r *ApplicationRepository) ListHistory(ctx context.Context, applicationID string) ([]models.ApplicationHistory, error) {
	query := fmt.Sprintf("SELECT %s FROM application_history WHERE application_id = $1 ORDER BY change_date ASC", historyColumns)
	var history []models.ApplicationHistory
	if err := r.db.SelectContext(ctx, &history, query, applicationID); err != nil {
		return nil, fmt.Errorf("list application history: %w", err)
	}
	return history, nil
}

func insertDocumentTx(ctx context.Context, tx *sqlx.Tx, doc *models.Document, now time.Time) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadDate.IsZero() {
		doc.UploadDate = now
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	const query = `INSERT INTO documents (id, application_id, document_type, file_name, storage_key, file_size, mime_type, status, upload_date, created_at, updated_at) VALUES (:id, :application_id, :document_type, :file_name, :storage_key, :file_size, :mime_type, :status, :upload_date, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + part
	}
	return strings.Join(parts, ", ")
}
