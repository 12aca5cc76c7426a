package models

import (
	"strings"
	"time"
)

// AnnouncementStatus is the publication state of a job announcement.
type AnnouncementStatus string

const (
	AnnouncementStatusDraft     AnnouncementStatus = "DRAFT"
	AnnouncementStatusPublished AnnouncementStatus = "PUBLISHED"
	AnnouncementStatusClosed    AnnouncementStatus = "CLOSED"
)

// JobAnnouncement represents a posting candidates apply to.
type JobAnnouncement struct {
	ID              string             `db:"id" json:"id"`
	AcademicYearID  string             `db:"academic_year_id" json:"academic_year_id"`
	Title           string             `db:"title" json:"title"`
	Description     string             `db:"description" json:"description"`
	Status          AnnouncementStatus `db:"status" json:"status"`
	PublicationDate *time.Time         `db:"publication_date" json:"publication_date,omitempty"`
	ClosingDate     time.Time          `db:"closing_date" json:"closing_date"`
	CreatedBy       string             `db:"created_by" json:"created_by"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}

// IsOpen reports whether the announcement accepts applications at the given
// instant: published, publication date reached, closing date not yet passed.
func (a *JobAnnouncement) IsOpen(now time.Time) bool {
	return a.Status == AnnouncementStatusPublished &&
		a.PublicationDate != nil &&
		!a.PublicationDate.After(now) &&
		a.ClosingDate.After(now)
}

// CanBePublished reports whether the announcement satisfies the publication
// preconditions: still a draft, non-empty title and description, and a
// closing date in the future.
func (a *JobAnnouncement) CanBePublished(now time.Time) bool {
	return a.Status == AnnouncementStatusDraft &&
		strings.TrimSpace(a.Title) != "" &&
		strings.TrimSpace(a.Description) != "" &&
		a.ClosingDate.After(now)
}

// AnnouncementFilter allows listing announcements.
type AnnouncementFilter struct {
	AcademicYearID string
	Status         *AnnouncementStatus
	OpenOnly       bool
	Page           int
	PageSize       int
}
