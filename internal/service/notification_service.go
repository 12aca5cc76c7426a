package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unchk/agrt-api/internal/mailer"
	"github.com/unchk/agrt-api/internal/models"
	appErrors "github.com/unchk/agrt-api/pkg/errors"
	"github.com/unchk/agrt-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string, readAt time.Time) error
}

// emailJob is the payload enqueued for asynchronous delivery.
type emailJob struct {
	To        string
	ToName    string
	Subject   string
	PlainText string
	HTMLBody  string
}

// NotificationService persists notification records and sends the matching
// email through a background queue, so a slow mail provider never blocks a
// request.
type NotificationService struct {
	repo   notificationRepository
	mailer mailer.Mailer
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService creates an instance of NotificationService. Call
// Start before use and Stop on shutdown.
func NewNotificationService(repo notificationRepository, m mailer.Mailer, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, mailer: m, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handleEmailJob, cfg)
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyApplicationCreated records and emails a submission confirmation.
func (s *NotificationService) NotifyApplicationCreated(ctx context.Context, candidate *models.User, app *models.Application, announcementTitle string) {
	message := fmt.Sprintf("Your application for %q has been received and is pending review.", announcementTitle)
	s.dispatch(ctx, candidate, app, models.NotificationTypeApplicationCreated, "Application received", message)
}

// NotifyStatusChange records and emails a status transition.
func (s *NotificationService) NotifyStatusChange(ctx context.Context, candidate *models.User, app *models.Application, announcementTitle string) {
	var message string
	switch app.Status {
	case models.ApplicationStatusUnderReview:
		message = fmt.Sprintf("Your application for %q is now under review.", announcementTitle)
	case models.ApplicationStatusAccepted:
		message = fmt.Sprintf("Congratulations! Your application for %q has been accepted.", announcementTitle)
	case models.ApplicationStatusRejected:
		message = fmt.Sprintf("Your application for %q has been rejected.", announcementTitle)
		if app.RejectionReason != nil && *app.RejectionReason != "" {
			message += " Reason: " + *app.RejectionReason
		}
	case models.ApplicationStatusCancelled:
		message = fmt.Sprintf("Your application for %q has been cancelled.", announcementTitle)
	default:
		message = fmt.Sprintf("Your application for %q was updated to %s.", announcementTitle, app.Status)
	}
	s.dispatch(ctx, candidate, app, models.NotificationTypeStatusUpdate, "Application status update", message)
}

// NotifyDocumentRequest records and emails a request for more documents.
func (s *NotificationService) NotifyDocumentRequest(ctx context.Context, candidate *models.User, app *models.Application, announcementTitle, details string) {
	message := fmt.Sprintf("Additional documents are requested for your application to %q. %s", announcementTitle, details)
	s.dispatch(ctx, candidate, app, models.NotificationTypeDocumentRequest, "Documents requested", message)
}

// ListForUser returns the user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// dispatch persists the notification row and enqueues the email. Failures are
// logged but never propagated: notifications must not fail the triggering
// operation.
func (s *NotificationService) dispatch(ctx context.Context, candidate *models.User, app *models.Application, notifType models.NotificationType, subject, message string) {
	notification := &models.Notification{
		ID:            uuid.NewString(),
		UserID:        candidate.ID,
		ApplicationID: app.ID,
		Type:          notifType,
		Message:       message,
		Status:        models.NotificationStatusSent,
		SentAt:        time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Warn("failed to persist notification", zap.Error(err), zap.String("application_id", app.ID))
	}

	job := jobs.Job{
		ID:   notification.ID,
		Type: string(notifType),
		Payload: emailJob{
			To:        candidate.Email,
			ToName:    candidate.FullName(),
			Subject:   subject,
			PlainText: message,
			HTMLBody:  fmt.Sprintf("<p>%s</p>", message),
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification email", zap.Error(err), zap.String("notification_id", notification.ID))
	}
}

func (s *NotificationService) handleEmailJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(emailJob)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.mailer.Send(ctx, payload.To, payload.ToName, payload.Subject, payload.PlainText, payload.HTMLBody)
}
