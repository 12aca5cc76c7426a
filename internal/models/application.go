package models

import "time"

// ApplicationStatus tracks an application through the review pipeline.
type ApplicationStatus string

const (
	ApplicationStatusPending     ApplicationStatus = "PENDING"
	ApplicationStatusUnderReview ApplicationStatus = "UNDER_REVIEW"
	ApplicationStatusAccepted    ApplicationStatus = "ACCEPTED"
	ApplicationStatusRejected    ApplicationStatus = "REJECTED"
	ApplicationStatusCancelled   ApplicationStatus = "CANCELLED"
)

// allowedTransitions is the authoritative state machine. ACCEPTED, REJECTED
// and CANCELLED are terminal.
var allowedTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusPending:     {ApplicationStatusUnderReview, ApplicationStatusAccepted, ApplicationStatusRejected, ApplicationStatusCancelled},
	ApplicationStatusUnderReview: {ApplicationStatusAccepted, ApplicationStatusRejected, ApplicationStatusCancelled},
}

// IsTerminal reports whether no further transition is allowed from s.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case ApplicationStatusAccepted, ApplicationStatusRejected, ApplicationStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next. A same-status move is treated as a no-op by callers, not a
// transition, and returns false here.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ApplicationType distinguishes full-time from part-time positions.
type ApplicationType string

const (
	ApplicationTypeFullTime ApplicationType = "FULL_TIME"
	ApplicationTypePartTime ApplicationType = "PART_TIME"
)

// Application represents one candidate's submission to one announcement
// within one academic year. The (candidate, announcement) pair is unique.
type Application struct {
	ID              string            `db:"id" json:"id"`
	CandidateID     string            `db:"candidate_id" json:"candidate_id"`
	AnnouncementID  string            `db:"announcement_id" json:"announcement_id"`
	AcademicYearID  string            `db:"academic_year_id" json:"academic_year_id"`
	ApplicationType ApplicationType   `db:"application_type" json:"application_type"`
	Status          ApplicationStatus `db:"status" json:"status"`
	RejectionReason *string           `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`

	// Owned collections; children hold a non-owning back-reference only.
	Documents []Document           `db:"-" json:"documents,omitempty"`
	History   []ApplicationHistory `db:"-" json:"history,omitempty"`
}

// CanBeUpdated reports whether documents may still be attached or detached.
func (a *Application) CanBeUpdated() bool {
	return a.Status == ApplicationStatusPending || a.Status == ApplicationStatusUnderReview
}

// IsComplete is true iff the document set holds at least one CV and one
// motivation letter and every attached document passed validation.
func (a *Application) IsComplete() bool {
	hasCV := false
	hasLetter := false
	for _, doc := range a.Documents {
		if doc.Status != DocumentStatusValid {
			return false
		}
		switch doc.DocumentType {
		case DocumentTypeCV:
			hasCV = true
		case DocumentTypeMotivationLetter:
			hasLetter = true
		}
	}
	return hasCV && hasLetter
}

// ApplicationHistory is an immutable audit record of one status transition.
type ApplicationHistory struct {
	ID            string            `db:"id" json:"id"`
	ApplicationID string            `db:"application_id" json:"application_id"`
	StatusFrom    ApplicationStatus `db:"status_from" json:"status_from"`
	StatusTo      ApplicationStatus `db:"status_to" json:"status_to"`
	ChangedBy     string            `db:"changed_by" json:"changed_by"`
	Comments      string            `db:"comments" json:"comments"`
	ChangeDate    time.Time         `db:"change_date" json:"change_date"`
}

// ApplicationFilter captures listing criteria.
type ApplicationFilter struct {
	AnnouncementID string
	AcademicYearID string
	CandidateID    string
	Status         *ApplicationStatus
	Search         string
	Page           int
	PageSize       int
}
