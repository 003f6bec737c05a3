package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectIdea_AuthorEditable(t *testing.T) {
	tests := []struct {
		status   string
		editable bool
	}{
		{IdeaDraft, true},
		{IdeaNeedsRevision, true},
		{IdeaPendingReview, false},
		{IdeaApproved, false},
		{IdeaDeclined, false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			p := ProjectIdea{Status: tt.status}
			assert.Equal(t, tt.editable, p.AuthorEditable())
		})
	}
}

func TestProjectIdea_Submit(t *testing.T) {
	p := ProjectIdea{Status: IdeaDraft}
	assert.NoError(t, p.Submit())
	assert.Equal(t, IdeaPendingReview, p.Status)

	// a second submit while pending is refused
	assert.ErrorIs(t, p.Submit(), ErrInvalidTransition)

	p.Status = IdeaNeedsRevision
	assert.NoError(t, p.Submit())
	assert.Equal(t, IdeaPendingReview, p.Status)

	p.Status = IdeaApproved
	assert.ErrorIs(t, p.Submit(), ErrInvalidTransition)
	assert.Equal(t, IdeaApproved, p.Status)
}

func TestProjectIdea_Review(t *testing.T) {
	for _, decision := range []string{IdeaApproved, IdeaDeclined, IdeaNeedsRevision} {
		p := ProjectIdea{Status: IdeaPendingReview}
		assert.NoError(t, p.Review(decision))
		assert.Equal(t, decision, p.Status)
	}

	p := ProjectIdea{Status: IdeaPendingReview}
	assert.ErrorIs(t, p.Review(IdeaDraft), ErrInvalidTransition)
	assert.ErrorIs(t, p.Review("pending_review"), ErrInvalidTransition)
	assert.Equal(t, IdeaPendingReview, p.Status)

	for _, from := range []string{IdeaDraft, IdeaNeedsRevision, IdeaApproved, IdeaDeclined} {
		p := ProjectIdea{Status: from}
		assert.ErrorIs(t, p.Review(IdeaApproved), ErrInvalidTransition, from)
		assert.Equal(t, from, p.Status)
	}
}
