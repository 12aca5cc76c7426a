package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnnouncementIsOpen(t *testing.T) {
	now := time.Now().UTC()
	published := now.Add(-time.Hour)
	closing := now.Add(time.Hour)

	open := &JobAnnouncement{Status: AnnouncementStatusPublished, PublicationDate: &published, ClosingDate: closing}
	assert.True(t, open.IsOpen(now))

	draft := &JobAnnouncement{Status: AnnouncementStatusDraft, PublicationDate: &published, ClosingDate: closing}
	assert.False(t, draft.IsOpen(now))

	closed := &JobAnnouncement{Status: AnnouncementStatusClosed, PublicationDate: &published, ClosingDate: closing}
	assert.False(t, closed.IsOpen(now))

	notYet := &JobAnnouncement{Status: AnnouncementStatusPublished, PublicationDate: &closing, ClosingDate: now.Add(2 * time.Hour)}
	assert.False(t, notYet.IsOpen(now))

	past := &JobAnnouncement{Status: AnnouncementStatusPublished, PublicationDate: &published, ClosingDate: now.Add(-time.Minute)}
	assert.False(t, past.IsOpen(now))

	unpublished := &JobAnnouncement{Status: AnnouncementStatusPublished, ClosingDate: closing}
	assert.False(t, unpublished.IsOpen(now))
}

func TestAnnouncementCanBePublished(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(24 * time.Hour)

	ready := &JobAnnouncement{Status: AnnouncementStatusDraft, Title: "Teaching position", Description: "Details", ClosingDate: future}
	assert.True(t, ready.CanBePublished(now))

	assert.False(t, (&JobAnnouncement{Status: AnnouncementStatusPublished, Title: "T", Description: "D", ClosingDate: future}).CanBePublished(now))
	assert.False(t, (&JobAnnouncement{Status: AnnouncementStatusDraft, Title: "  ", Description: "D", ClosingDate: future}).CanBePublished(now))
	assert.False(t, (&JobAnnouncement{Status: AnnouncementStatusDraft, Title: "T", Description: "", ClosingDate: future}).CanBePublished(now))
	assert.False(t, (&JobAnnouncement{Status: AnnouncementStatusDraft, Title: "T", Description: "D", ClosingDate: now.Add(-time.Hour)}).CanBePublished(now))
}
