package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project idea statuses
const (
	IdeaDraft         = "draft"
	IdeaPendingReview = "pending_review"
	IdeaApproved      = "approved"
	IdeaDeclined      = "declined"
	IdeaNeedsRevision = "needs_revision"
)

// ErrInvalidTransition is returned when a project idea cannot move to the requested status
var ErrInvalidTransition = errors.New("invalid project idea status transition")

// ProjectIdea holds the structure for the projectIdeas collection in mongo
type ProjectIdea struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Title          string             `json:"title" bson:"title"`
	Summary        string             `json:"summary" bson:"summary"`
	Objectives     []string           `json:"objectives" bson:"objectives"`
	Beneficiaries  string             `json:"beneficiaries" bson:"beneficiaries"`
	BudgetEstimate int64              `json:"budgetEstimate" bson:"budgetEstimate"`
	Timeline       string             `json:"timeline" bson:"timeline"`
	Resources      []string           `json:"resources" bson:"resources"`
	Status         string             `json:"status" bson:"status"`
	AuthorID       string             `json:"authorId" bson:"authorId"`
	AuthorName     string             `json:"authorName" bson:"authorName"`
	ReviewerID     string             `json:"reviewerId,omitempty" bson:"reviewerId,omitempty"`
	ReviewComment  string             `json:"reviewComment,omitempty" bson:"reviewComment,omitempty"`
	AIGenerated    bool               `json:"aiGenerated" bson:"aiGenerated"`
	SubmittedAt    *time.Time         `json:"submittedAt,omitempty" bson:"submittedAt,omitempty"`
	ReviewedAt     *time.Time         `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// AuthorEditable reports whether the author may still change or delete the idea
func (p ProjectIdea) AuthorEditable() bool {
	return p.Status == IdeaDraft || p.Status == IdeaNeedsRevision
}

// Submit moves an editable idea into the review queue
func (p *ProjectIdea) Submit() error {
	if !p.AuthorEditable() {
		return ErrInvalidTransition
	}
	p.Status = IdeaPendingReview
	return nil
}

// Review applies an admin decision to an idea waiting for review
func (p *ProjectIdea) Review(decision string) error {
	if p.Status != IdeaPendingReview {
		return ErrInvalidTransition
	}
	switch decision {
	case IdeaApproved, IdeaDeclined, IdeaNeedsRevision:
		p.Status = decision
		return nil
	}
	return ErrInvalidTransition
}

// ProjectIdeaRequest is the body of the create and update project idea routes
type ProjectIdeaRequest struct {
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	Objectives     []string `json:"objectives"`
	Beneficiaries  string   `json:"beneficiaries"`
	BudgetEstimate int64    `json:"budgetEstimate"`
	Timeline       string   `json:"timeline"`
	Resources      []string `json:"resources"`
	AIGenerated    bool     `json:"aiGenerated"`
}

// ReviewRequest is the body of the admin review route
type ReviewRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

// GenerateIdeaRequest is the body of the AI draft route
type GenerateIdeaRequest struct {
	Prompt string `json:"prompt"`
}
