package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    ApplicationStatus
		to      ApplicationStatus
		allowed bool
	}{
		{ApplicationStatusPending, ApplicationStatusUnderReview, true},
		{ApplicationStatusPending, ApplicationStatusAccepted, true},
		{ApplicationStatusPending, ApplicationStatusRejected, true},
		{ApplicationStatusPending, ApplicationStatusCancelled, true},
		{ApplicationStatusUnderReview, ApplicationStatusAccepted, true},
		{ApplicationStatusUnderReview, ApplicationStatusRejected, true},
		{ApplicationStatusUnderReview, ApplicationStatusCancelled, true},
		{ApplicationStatusUnderReview, ApplicationStatusPending, false},
		{ApplicationStatusAccepted, ApplicationStatusRejected, false},
		{ApplicationStatusRejected, ApplicationStatusPending, false},
		{ApplicationStatusCancelled, ApplicationStatusUnderReview, false},
		{ApplicationStatusPending, ApplicationStatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, ApplicationStatusPending.IsTerminal())
	assert.False(t, ApplicationStatusUnderReview.IsTerminal())
	assert.True(t, ApplicationStatusAccepted.IsTerminal())
	assert.True(t, ApplicationStatusRejected.IsTerminal())
	assert.True(t, ApplicationStatusCancelled.IsTerminal())
}

func TestCanBeUpdated(t *testing.T) {
	assert.True(t, (&Application{Status: ApplicationStatusPending}).CanBeUpdated())
	assert.True(t, (&Application{Status: ApplicationStatusUnderReview}).CanBeUpdated())
	assert.False(t, (&Application{Status: ApplicationStatusAccepted}).CanBeUpdated())
	assert.False(t, (&Application{Status: ApplicationStatusRejected}).CanBeUpdated())
	assert.False(t, (&Application{Status: ApplicationStatusCancelled}).CanBeUpdated())
}

func TestIsComplete(t *testing.T) {
	cv := Document{DocumentType: DocumentTypeCV, Status: DocumentStatusValid}
	letter := Document{DocumentType: DocumentTypeMotivationLetter, Status: DocumentStatusValid}
	diploma := Document{DocumentType: DocumentTypeDiploma, Status: DocumentStatusValid}
	invalidOther := Document{DocumentType: DocumentTypeOther, Status: DocumentStatusInvalid}

	t.Run("cv and letter suffice", func(t *testing.T) {
		app := &Application{Documents: []Document{cv, letter}}
		assert.True(t, app.IsComplete())
	})

	t.Run("missing letter", func(t *testing.T) {
		app := &Application{Documents: []Document{cv, diploma}}
		assert.False(t, app.IsComplete())
	})

	t.Run("missing cv", func(t *testing.T) {
		app := &Application{Documents: []Document{letter, diploma}}
		assert.False(t, app.IsComplete())
	})

	t.Run("no documents", func(t *testing.T) {
		app := &Application{}
		assert.False(t, app.IsComplete())
	})

	t.Run("any invalid document breaks completeness", func(t *testing.T) {
		app := &Application{Documents: []Document{cv, letter, invalidOther}}
		assert.False(t, app.IsComplete())

		// Order of documents must not matter.
		app = &Application{Documents: []Document{invalidOther, cv, letter}}
		assert.False(t, app.IsComplete())
	})
}
