package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unchk/agrt-api/internal/models"
	"github.com/unchk/agrt-api/internal/repository"
	appErrors "github.com/unchk/agrt-api/pkg/errors"
)

type applicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindByIDWithDocuments(ctx context.Context, id string) (*models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	ExistsByCandidateAndAnnouncement(ctx context.Context, candidateID, announcementID string) (bool, error)
	CreateWithDocuments(ctx context.Context, app *models.Application) error
	UpdateStatus(ctx context.Context, app *models.Application, history *models.ApplicationHistory) error
	UpdateType(ctx context.Context, id string, appType models.ApplicationType) error
	ReplaceDocuments(ctx context.Context, app *models.Application, docs []models.Document) error
	Delete(ctx context.Context, id string) error
	ListHistory(ctx context.Context, applicationID string) ([]models.ApplicationHistory, error)
}

type applicationDocumentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
}

type applicationAnnouncementReader interface {
	FindByID(ctx context.Context, id string) (*models.JobAnnouncement, error)
}

type applicationUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type documentStorage interface {
	Save(key string, data []byte) (string, error)
	Open(key string) (*os.File, error)
	Delete(key string) error
}

type applicationNotifier interface {
	NotifyApplicationCreated(ctx context.Context, candidate *models.User, app *models.Application, announcementTitle string)
	NotifyStatusChange(ctx context.Context, candidate *models.User, app *models.Application, announcementTitle string)
}

// DocumentUpload carries one file in a create or update payload. Content is
// base64 encoded.
type DocumentUpload struct {
	DocumentType models.DocumentType `json:"document_type" validate:"required,oneof=CV MOTIVATION_LETTER DIPLOMA OTHER"`
	FileName     string              `json:"file_name" validate:"required"`
	Content      string              `json:"content" validate:"required"`
}

// CreateApplicationRequest submits a new application with its documents.
type CreateApplicationRequest struct {
	AnnouncementID  string                 `json:"announcement_id" validate:"required"`
	ApplicationType models.ApplicationType `json:"application_type" validate:"required,oneof=FULL_TIME PART_TIME"`
	Documents       []DocumentUpload       `json:"documents" validate:"required,min=1,dive"`
}

// UpdateApplicationRequest replaces the application's type and, when documents
// are supplied, its full document set.
type UpdateApplicationRequest struct {
	ApplicationType models.ApplicationType `json:"application_type" validate:"required,oneof=FULL_TIME PART_TIME"`
	Documents       []DocumentUpload       `json:"documents" validate:"omitempty,dive"`
}

// TransitionRequest moves an application to a new status.
type TransitionRequest struct {
	Status          models.ApplicationStatus `json:"status" validate:"required,oneof=PENDING UNDER_REVIEW ACCEPTED REJECTED CANCELLED"`
	Comments        string                   `json:"comments"`
	RejectionReason string                   `json:"rejection_reason"`
}

// ApplicationService drives the application lifecycle: submission with
// documents, review transitions, updates during the open window and
// cancellation.
type ApplicationService struct {
	repo          applicationRepository
	documents     applicationDocumentRepository
	announcements applicationAnnouncementReader
	users         applicationUserReader
	storage       documentStorage
	notifier      applicationNotifier
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewApplicationService creates an instance of ApplicationService.
func NewApplicationService(
	repo applicationRepository,
	documents applicationDocumentRepository,
	announcements applicationAnnouncementReader,
	users applicationUserReader,
	storage documentStorage,
	notifier applicationNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApplicationService{
		repo:          repo,
		documents:     documents,
		announcements: announcements,
		users:         users,
		storage:       storage,
		notifier:      notifier,
		validator:     validate,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Create submits a new application. Every document is validated before
// anything is persisted; a single rejected document fails the whole
// submission, and the application plus all its rows land in one transaction.
func (s *ApplicationService) Create(ctx context.Context, candidateID string, req CreateApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	announcement, err := s.loadAnnouncement(ctx, req.AnnouncementID)
	if err != nil {
		return nil, err
	}
	if !announcement.IsOpen(s.now()) {
		return nil, appErrors.ErrWindowClosed
	}

	exists, err := s.repo.ExistsByCandidateAndAnnouncement(ctx, candidateID, req.AnnouncementID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing application")
	}
	if exists {
		return nil, appErrors.ErrAlreadyApplied
	}

	candidate, err := s.users.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}

	app := &models.Application{
		ID:              uuid.NewString(),
		CandidateID:     candidateID,
		AnnouncementID:  announcement.ID,
		AcademicYearID:  announcement.AcademicYearID,
		ApplicationType: req.ApplicationType,
		Status:          models.ApplicationStatusPending,
	}

	docs, savedKeys, err := s.prepareDocuments(app, req.Documents, true)
	if err != nil {
		s.cleanupBlobs(savedKeys)
		return nil, err
	}
	app.Documents = docs

	if err := s.repo.CreateWithDocuments(ctx, app); err != nil {
		s.cleanupBlobs(savedKeys)
		if errors.Is(err, repository.ErrDuplicateApplication) {
			return nil, appErrors.ErrAlreadyApplied
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}

	s.logger.Info("application created",
		zap.String("application_id", app.ID),
		zap.String("announcement_id", announcement.ID),
		zap.Int("documents", len(app.Documents)),
	)
	s.notifier.NotifyApplicationCreated(ctx, candidate, app, announcement.Title)
	return app, nil
}

// Get returns an application with its documents and history. Candidates can
// only read their own applications.
func (s *ApplicationService) Get(ctx context.Context, id, actorID string, actorRole models.UserRole) (*models.Application, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && app.CandidateID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another candidate")
	}
	return app, nil
}

// List returns applications matching the filter with pagination metadata.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error) {
	apps, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return apps, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Transition moves an application to the requested status, recording the
// change in history. Requesting the current status is a no-op. The rejection
// reason is only stored when the target status is REJECTED.
func (s *ApplicationService) Transition(ctx context.Context, id, actorID string, req TransitionRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}

	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if app.Status == req.Status {
		return app, nil
	}
	if !app.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot transition from %s to %s", app.Status, req.Status))
	}

	previous := app.Status
	app.Status = req.Status
	app.RejectionReason = nil
	if req.Status == models.ApplicationStatusRejected {
		// The review comment doubles as the rejection reason unless an
		// explicit one was given.
		reason := req.RejectionReason
		if reason == "" {
			reason = req.Comments
		}
		if reason != "" {
			app.RejectionReason = &reason
		}
	}

	history := &models.ApplicationHistory{
		ApplicationID: app.ID,
		StatusFrom:    previous,
		StatusTo:      req.Status,
		ChangedBy:     actorID,
		Comments:      req.Comments,
	}
	if err := s.repo.UpdateStatus(ctx, app, history); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
	}
	app.History = append(app.History, *history)

	s.logger.Info("application status changed",
		zap.String("application_id", app.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(req.Status)),
	)
	s.notifyCandidate(ctx, app)
	return app, nil
}

// Update replaces the application's type and, when documents are supplied,
// its full document set. An empty document list changes the type only. The
// application must still be modifiable and the announcement window still
// open. The previous blobs are removed after the new set is committed.
func (s *ApplicationService) Update(ctx context.Context, id, actorID string, actorRole models.UserRole, req UpdateApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && app.CandidateID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another candidate")
	}
	if !app.CanBeUpdated() {
		return nil, appErrors.ErrApplicationLocked
	}

	announcement, err := s.loadAnnouncement(ctx, app.AnnouncementID)
	if err != nil {
		return nil, err
	}
	if !announcement.IsOpen(s.now()) {
		return nil, appErrors.ErrWindowClosed
	}

	app.ApplicationType = req.ApplicationType
	if len(req.Documents) == 0 {
		if err := s.repo.UpdateType(ctx, app.ID, req.ApplicationType); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application")
		}
		s.logger.Info("application type updated", zap.String("application_id", app.ID))
		return app, nil
	}

	oldKeys := make([]string, 0, len(app.Documents))
	for _, doc := range app.Documents {
		oldKeys = append(oldKeys, doc.StorageKey)
	}

	docs, savedKeys, err := s.prepareDocuments(app, req.Documents, true)
	if err != nil {
		s.cleanupBlobs(savedKeys)
		return nil, err
	}

	if err := s.repo.ReplaceDocuments(ctx, app, docs); err != nil {
		s.cleanupBlobs(savedKeys)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application")
	}
	s.cleanupBlobs(oldKeys)

	s.logger.Info("application updated", zap.String("application_id", app.ID), zap.Int("documents", len(docs)))
	return app, nil
}

// AddDocument attaches one more document to a modifiable application. Unlike
// submission, a failed validation does not abort: the document is stored with
// a visible INVALID status so reviewers can see what was provided.
func (s *ApplicationService) AddDocument(ctx context.Context, applicationID, actorID string, actorRole models.UserRole, upload DocumentUpload) (*models.Document, error) {
	if err := s.validator.Struct(upload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}

	app, err := s.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && app.CandidateID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another candidate")
	}
	if !app.CanBeUpdated() {
		return nil, appErrors.ErrApplicationLocked
	}

	data, err := base64.StdEncoding.DecodeString(upload.Content)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("document %s is not valid base64", upload.FileName))
	}
	doc, _ := s.validateUpload(app, upload, data)

	if _, err := s.storage.Save(doc.StorageKey, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		s.cleanupBlobs([]string{doc.StorageKey})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach document")
	}

	s.logger.Info("document attached",
		zap.String("application_id", app.ID),
		zap.String("document_id", doc.ID),
		zap.String("status", string(doc.Status)),
	)
	return doc, nil
}

// RemoveDocument detaches a document from a modifiable application and
// deletes its blob.
func (s *ApplicationService) RemoveDocument(ctx context.Context, applicationID, documentID, actorID string, actorRole models.UserRole) error {
	app, err := s.load(ctx, applicationID)
	if err != nil {
		return err
	}
	if actorRole != models.RoleAdmin && app.CandidateID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "application belongs to another candidate")
	}
	if !app.CanBeUpdated() {
		return appErrors.ErrApplicationLocked
	}

	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.ApplicationID != applicationID {
		return appErrors.ErrDocumentMismatch
	}

	if err := s.documents.Delete(ctx, documentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove document")
	}
	s.cleanupBlobs([]string{doc.StorageKey})
	return nil
}

// DownloadDocument opens the stored blob for serving, enforcing ownership.
func (s *ApplicationService) DownloadDocument(ctx context.Context, applicationID, documentID, actorID string, actorRole models.UserRole) (*models.Document, *os.File, error) {
	app, err := s.load(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	if actorRole != models.RoleAdmin && app.CandidateID != actorID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another candidate")
	}

	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.ApplicationID != applicationID {
		return nil, nil, appErrors.ErrDocumentMismatch
	}

	file, err := s.storage.Open(doc.StorageKey)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	return doc, file, nil
}

// Cancel removes the application with all its documents, history and
// notifications. Candidates can only cancel their own applications and only
// while they are not in a terminal status.
func (s *ApplicationService) Cancel(ctx context.Context, id, actorID string, actorRole models.UserRole) error {
	app, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if actorRole != models.RoleAdmin && app.CandidateID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "application belongs to another candidate")
	}
	if actorRole != models.RoleAdmin && app.Status.IsTerminal() {
		return appErrors.ErrApplicationLocked
	}

	keys := make([]string, 0, len(app.Documents))
	for _, doc := range app.Documents {
		keys = append(keys, doc.StorageKey)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel application")
	}
	s.cleanupBlobs(keys)

	s.logger.Info("application cancelled", zap.String("application_id", id), zap.String("actor_id", actorID))
	return nil
}

// IsComplete reports whether the application has a CV, a motivation letter
// and no invalid documents.
func (s *ApplicationService) IsComplete(ctx context.Context, id, actorID string, actorRole models.UserRole) (bool, error) {
	app, err := s.Get(ctx, id, actorID, actorRole)
	if err != nil {
		return false, err
	}
	return app.IsComplete(), nil
}

// History returns the status transitions of an application, oldest first.
func (s *ApplicationService) History(ctx context.Context, id, actorID string, actorRole models.UserRole) ([]models.ApplicationHistory, error) {
	if _, err := s.Get(ctx, id, actorID, actorRole); err != nil {
		return nil, err
	}
	history, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application history")
	}
	return history, nil
}

func (s *ApplicationService) load(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.repo.FindByIDWithDocuments(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

func (s *ApplicationService) loadAnnouncement(ctx context.Context, id string) (*models.JobAnnouncement, error) {
	announcement, err := s.announcements.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

// prepareDocuments decodes, validates and stores the uploads. When strict is
// true any INVALID document aborts with ErrDocumentRejected; otherwise it is
// kept with its INVALID status. Returns the keys already written so the
// caller can clean up on failure.
func (s *ApplicationService) prepareDocuments(app *models.Application, uploads []DocumentUpload, strict bool) ([]models.Document, []string, error) {
	docs := make([]models.Document, 0, len(uploads))
	savedKeys := make([]string, 0, len(uploads))

	for _, upload := range uploads {
		data, err := base64.StdEncoding.DecodeString(upload.Content)
		if err != nil {
			return nil, savedKeys, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("document %s is not valid base64", upload.FileName))
		}

		doc, reason := s.validateUpload(app, upload, data)
		if strict && doc.Status == models.DocumentStatusInvalid {
			return nil, savedKeys, appErrors.Clone(appErrors.ErrDocumentRejected, fmt.Sprintf("document %s: %s", upload.FileName, reason))
		}

		if _, err := s.storage.Save(doc.StorageKey, data); err != nil {
			return nil, savedKeys, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
		}
		savedKeys = append(savedKeys, doc.StorageKey)
		docs = append(docs, *doc)
	}
	return docs, savedKeys, nil
}

func (s *ApplicationService) validateUpload(app *models.Application, upload DocumentUpload, data []byte) (*models.Document, string) {
	mimeType := models.DetectMIME(upload.FileName, data)
	status, reason := models.ValidateDocument(upload.DocumentType, mimeType, int64(len(data)))

	docID := uuid.NewString()
	return &models.Document{
		ID:            docID,
		ApplicationID: app.ID,
		DocumentType:  upload.DocumentType,
		FileName:      upload.FileName,
		StorageKey:    models.StorageKey(app.AnnouncementID, app.CandidateID, docID, upload.FileName),
		FileSize:      int64(len(data)),
		MimeType:      mimeType,
		Status:        status,
	}, reason
}

func (s *ApplicationService) cleanupBlobs(keys []string) {
	for _, key := range keys {
		if err := s.storage.Delete(key); err != nil {
			s.logger.Warn("failed to delete document blob", zap.String("storage_key", key), zap.Error(err))
		}
	}
}

func (s *ApplicationService) notifyCandidate(ctx context.Context, app *models.Application) {
	candidate, err := s.users.FindByID(ctx, app.CandidateID)
	if err != nil {
		s.logger.Warn("failed to load candidate for notification", zap.Error(err), zap.String("application_id", app.ID))
		return
	}
	title := app.AnnouncementID
	if announcement, err := s.announcements.FindByID(ctx, app.AnnouncementID); err == nil {
		title = announcement.Title
	}
	s.notifier.NotifyStatusChange(ctx, candidate, app, title)
}
