package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unchk/agrt-api/internal/models"
	appErrors "github.com/unchk/agrt-api/pkg/errors"
	"github.com/unchk/agrt-api/pkg/jobs"
)

type stubNotificationRepo struct {
	mu      sync.Mutex
	created []*models.Notification
	marked  []string
}

func (s *stubNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, n)
	return nil
}

func (s *stubNotificationRepo) ListByUser(_ context.Context, _ string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, 0, len(s.created))
	for _, n := range s.created {
		out = append(out, *n)
	}
	return out, nil
}

func (s *stubNotificationRepo) MarkRead(_ context.Context, id, userID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.created {
		if n.ID == id && n.UserID == userID {
			s.marked = append(s.marked, id)
			return nil
		}
	}
	return sql.ErrNoRows
}

type syncMailer struct {
	mu       sync.Mutex
	sent     []string
	subjects []string
}

func (m *syncMailer) Send(_ context.Context, to, _, subject, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *syncMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newNotificationFixture(t *testing.T) (*NotificationService, *stubNotificationRepo, *syncMailer) {
	t.Helper()
	repo := &stubNotificationRepo{}
	m := &syncMailer{}
	svc := NewNotificationService(repo, m, jobs.QueueConfig{Workers: 1, RetryDelay: 10 * time.Millisecond}, nil)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc, repo, m
}

func TestNotifyApplicationCreated(t *testing.T) {
	svc, repo, m := newNotificationFixture(t)

	candidate := &models.User{ID: "cand-1", Email: "awa@example.com", FirstName: "Awa", LastName: "Ndiaye"}
	app := &models.Application{ID: "app-1", CandidateID: "cand-1", Status: models.ApplicationStatusPending}

	svc.NotifyApplicationCreated(context.Background(), candidate, app, "Teaching position")

	repo.mu.Lock()
	require.Len(t, repo.created, 1)
	n := repo.created[0]
	repo.mu.Unlock()

	assert.Equal(t, models.NotificationTypeApplicationCreated, n.Type)
	assert.Equal(t, "cand-1", n.UserID)
	assert.Equal(t, "app-1", n.ApplicationID)
	assert.Contains(t, n.Message, "Teaching position")

	assert.Eventually(t, func() bool { return m.sentCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestNotifyStatusChangeRejectedIncludesReason(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t)

	reason := "incomplete file"
	candidate := &models.User{ID: "cand-1", Email: "awa@example.com"}
	app := &models.Application{ID: "app-1", Status: models.ApplicationStatusRejected, RejectionReason: &reason}

	svc.NotifyStatusChange(context.Background(), candidate, app, "Teaching position")

	repo.mu.Lock()
	require.Len(t, repo.created, 1)
	message := repo.created[0].Message
	repo.mu.Unlock()

	assert.Contains(t, message, "rejected")
	assert.Contains(t, message, "incomplete file")
}

func TestNotifyStatusChangeAccepted(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t)

	candidate := &models.User{ID: "cand-1", Email: "awa@example.com"}
	app := &models.Application{ID: "app-1", Status: models.ApplicationStatusAccepted}

	svc.NotifyStatusChange(context.Background(), candidate, app, "Teaching position")

	repo.mu.Lock()
	require.Len(t, repo.created, 1)
	message := repo.created[0].Message
	repo.mu.Unlock()

	assert.Contains(t, message, "accepted")
}

func TestMarkRead(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t)
	repo.created = append(repo.created, &models.Notification{ID: "n-1", UserID: "cand-1"})

	require.NoError(t, svc.MarkRead(context.Background(), "n-1", "cand-1"))
	repo.mu.Lock()
	assert.Equal(t, []string{"n-1"}, repo.marked)
	repo.mu.Unlock()

	// Another user's notification looks like it does not exist.
	err := svc.MarkRead(context.Background(), "n-1", "cand-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
