package service

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unchk/agrt-api/internal/models"
)

type stubExportAppRepo struct {
	apps       []models.Application
	lastFilter models.ApplicationFilter
}

func (s *stubExportAppRepo) List(_ context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	s.lastFilter = filter
	return s.apps, len(s.apps), nil
}

type stubExportUserReader struct {
	users map[string]*models.User
}

func (s *stubExportUserReader) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func newExportFixture() (*ExportService, *stubExportAppRepo) {
	apps := &stubExportAppRepo{apps: []models.Application{
		{
			ID:              "app-1",
			CandidateID:     "cand-1",
			AnnouncementID:  "ann-1",
			ApplicationType: models.ApplicationTypeFullTime,
			Status:          models.ApplicationStatusPending,
			CreatedAt:       time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		},
	}}
	users := &stubExportUserReader{users: map[string]*models.User{
		"cand-1": {ID: "cand-1", Email: "awa@example.com", FirstName: "Awa", LastName: "Ndiaye"},
	}}
	return NewExportService(apps, users, nil), apps
}

func TestApplicationsCSV(t *testing.T) {
	svc, apps := newExportFixture()

	data, err := svc.ApplicationsCSV(context.Background(), models.ApplicationFilter{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Application ID")
	assert.Contains(t, lines[1], "app-1")
	assert.Contains(t, lines[1], "Awa Ndiaye")
	assert.Contains(t, lines[1], "awa@example.com")
	assert.Contains(t, lines[1], "2026-03-14 09:30")

	// Exports ignore the caller's page and use a wide default page size.
	assert.Equal(t, 1, apps.lastFilter.Page)
	assert.Equal(t, 100, apps.lastFilter.PageSize)
}

func TestApplicationsCSVUnknownCandidate(t *testing.T) {
	apps := &stubExportAppRepo{apps: []models.Application{{ID: "app-1", CandidateID: "ghost"}}}
	users := &stubExportUserReader{users: map[string]*models.User{}}
	svc := NewExportService(apps, users, nil)

	data, err := svc.ApplicationsCSV(context.Background(), models.ApplicationFilter{})
	require.NoError(t, err)
	// The row falls back to the raw candidate ID.
	assert.Contains(t, string(data), "ghost")
}

func TestApplicationsPDF(t *testing.T) {
	svc, _ := newExportFixture()

	data, err := svc.ApplicationsPDF(context.Background(), models.ApplicationFilter{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "applications.csv", FileName("csv"))
	assert.Equal(t, "applications.pdf", FileName("pdf"))
}
