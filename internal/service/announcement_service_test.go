package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unchk/agrt-api/internal/models"
	appErrors "github.com/unchk/agrt-api/pkg/errors"
)

type stubAnnouncementRepo struct {
	announcements map[string]*models.JobAnnouncement
	titleExists   bool
	updated       *models.JobAnnouncement
	deleted       []string
}

func (s *stubAnnouncementRepo) FindByID(_ context.Context, id string) (*models.JobAnnouncement, error) {
	announcement, ok := s.announcements[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *announcement
	return &copied, nil
}

func (s *stubAnnouncementRepo) ExistsByTitleAndAcademicYear(_ context.Context, _, _ string) (bool, error) {
	return s.titleExists, nil
}

func (s *stubAnnouncementRepo) List(_ context.Context, _ models.AnnouncementFilter) ([]models.JobAnnouncement, int, error) {
	var out []models.JobAnnouncement
	for _, a := range s.announcements {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (s *stubAnnouncementRepo) Create(_ context.Context, announcement *models.JobAnnouncement) error {
	announcement.ID = "ann-new"
	s.announcements[announcement.ID] = announcement
	return nil
}

func (s *stubAnnouncementRepo) Update(_ context.Context, announcement *models.JobAnnouncement) error {
	s.updated = announcement
	s.announcements[announcement.ID] = announcement
	return nil
}

func (s *stubAnnouncementRepo) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	delete(s.announcements, id)
	return nil
}

type stubYearReader struct {
	years map[string]*models.AcademicYear
}

func (s *stubYearReader) FindByID(_ context.Context, id string) (*models.AcademicYear, error) {
	year, ok := s.years[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return year, nil
}

func newAnnouncementFixture() (*AnnouncementService, *stubAnnouncementRepo) {
	repo := &stubAnnouncementRepo{announcements: map[string]*models.JobAnnouncement{}}
	years := &stubYearReader{years: map[string]*models.AcademicYear{
		"year-1": {ID: "year-1", Label: "2025-2026"},
	}}
	return NewAnnouncementService(repo, years, nil, nil), repo
}

func validAnnouncementRequest() AnnouncementRequest {
	return AnnouncementRequest{
		AcademicYearID: "year-1",
		Title:          "Teaching position",
		Description:    "Details",
		ClosingDate:    time.Now().UTC().Add(30 * 24 * time.Hour),
	}
}

func TestCreateAnnouncement(t *testing.T) {
	svc, _ := newAnnouncementFixture()

	announcement, err := svc.Create(context.Background(), validAnnouncementRequest(), "admin-1")
	require.NoError(t, err)

	assert.Equal(t, models.AnnouncementStatusDraft, announcement.Status)
	assert.Nil(t, announcement.PublicationDate)
	assert.Equal(t, "admin-1", announcement.CreatedBy)
}

func TestCreateAnnouncementDuplicateTitle(t *testing.T) {
	svc, repo := newAnnouncementFixture()
	repo.titleExists = true

	_, err := svc.Create(context.Background(), validAnnouncementRequest(), "admin-1")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}

func TestCreateAnnouncementUnknownYear(t *testing.T) {
	svc, _ := newAnnouncementFixture()
	req := validAnnouncementRequest()
	req.AcademicYearID = "year-missing"

	_, err := svc.Create(context.Background(), req, "admin-1")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}

func TestPublishAnnouncement(t *testing.T) {
	svc, repo := newAnnouncementFixture()
	repo.announcements["ann-1"] = &models.JobAnnouncement{
		ID:             "ann-1",
		AcademicYearID: "year-1",
		Title:          "Teaching position",
		Description:    "Details",
		Status:         models.AnnouncementStatusDraft,
		ClosingDate:    time.Now().UTC().Add(time.Hour),
	}

	announcement, err := svc.Publish(context.Background(), "ann-1")
	require.NoError(t, err)

	assert.Equal(t, models.AnnouncementStatusPublished, announcement.Status)
	require.NotNil(t, announcement.PublicationDate)
	assert.WithinDuration(t, time.Now().UTC(), *announcement.PublicationDate, time.Minute)
}

func TestPublishNonDraft(t *testing.T) {
	svc, repo := newAnnouncementFixture()
	repo.announcements["ann-1"] = &models.JobAnnouncement{
		ID:          "ann-1",
		Title:       "T",
		Description: "D",
		Status:      models.AnnouncementStatusPublished,
		ClosingDate: time.Now().UTC().Add(time.Hour),
	}

	_, err := svc.Publish(context.Background(), "ann-1")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}

func TestPublishPastClosingDate(t *testing.T) {
	svc, repo := newAnnouncementFixture()
	repo.announcements["ann-1"] = &models.JobAnnouncement{
		ID:          "ann-1",
		Title:       "T",
		Description: "D",
		Status:      models.AnnouncementStatusDraft,
		ClosingDate: time.Now().UTC().Add(-time.Hour),
	}

	_, err := svc.Publish(context.Background(), "ann-1")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}

func TestCloseAnnouncement(t *testing.T) {
	svc, repo := newAnnouncementFixture()
	now := time.Now().UTC()
	repo.announcements["ann-1"] = &models.JobAnnouncement{
		ID:              "ann-1",
		Title:           "T",
		Description:     "D",
		Status:          models.AnnouncementStatusPublished,
		PublicationDate: &now,
		ClosingDate:     now.Add(time.Hour),
	}

	announcement, err := svc.Close(context.Background(), "ann-1")
	require.NoError(t, err)
	assert.Equal(t, models.AnnouncementStatusClosed, announcement.Status)

	// A closed announcement cannot be closed twice.
	_, err = svc.Close(context.Background(), "ann-1")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}

func TestCloseDraft(t *testing.T) {
	svc, repo := newAnnouncementFixture()
	repo.announcements["ann-1"] = &models.JobAnnouncement{ID: "ann-1", Status: models.AnnouncementStatusDraft}

	_, err := svc.Close(context.Background(), "ann-1")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}

func TestUpdateClosedAnnouncement(t *testing.T) {
	svc, repo := newAnnouncementFixture()
	repo.announcements["ann-1"] = &models.JobAnnouncement{ID: "ann-1", Status: models.AnnouncementStatusClosed}

	_, err := svc.Update(context.Background(), "ann-1", validAnnouncementRequest())
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}

func TestDeleteAnnouncement(t *testing.T) {
	svc, repo := newAnnouncementFixture()
	repo.announcements["ann-1"] = &models.JobAnnouncement{ID: "ann-1", Status: models.AnnouncementStatusDraft}
	repo.announcements["ann-2"] = &models.JobAnnouncement{ID: "ann-2", Status: models.AnnouncementStatusPublished}

	require.NoError(t, svc.Delete(context.Background(), "ann-1"))
	assert.Equal(t, []string{"ann-1"}, repo.deleted)

	err := svc.Delete(context.Background(), "ann-2")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}
