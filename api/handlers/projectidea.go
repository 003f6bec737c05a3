package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/aiassist"
	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/models"
	"github.com/leoportal/leo-portal-api/triggers"
)

// ProposalGenerator drafts a project idea from a free text prompt
type ProposalGenerator interface {
	GenerateProposal(ctx context.Context, prompt string) (models.ProjectIdeaRequest, error)
}

// ProjectIdea exported for testing purposes
type ProjectIdea struct {
	DB    databases.ProjectIdeaDatabase
	UDB   databases.UserDatabase
	Hooks triggers.Hooks
	AI    ProposalGenerator
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func validateIdea(req *models.ProjectIdeaRequest) string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	if req.BudgetEstimate < 0 {
		return "budgetEstimate must not be negative"
	}
	req.Objectives = cleanList(req.Objectives)
	req.Resources = cleanList(req.Resources)
	return ""
}

// canView reports whether p may read idea. Approved ideas are public to members.
func canView(p api.Principal, idea *models.ProjectIdea) bool {
	return p.IsAdmin() || idea.AuthorID == p.UserID || idea.Status == models.IdeaApproved
}

func (pi ProjectIdea) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.ProjectIdea, bool) {
	id, ok := pathID(w, r, "idea_id")
	if !ok {
		return nil, false
	}
	idea, err := pi.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get project idea by ID", lookupStatus(err), w, err)
		return nil, false
	}
	return idea, true
}

// CreateIdeaHandler saves a new draft authored by the caller
func (pi ProjectIdea) CreateIdeaHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.ProjectIdeaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := validateIdea(&req); msg != "" {
		config.ErrorStatus(msg, http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	authorName := p.Email
	if uID, err := primitive.ObjectIDFromHex(p.UserID); err == nil {
		if author, err := pi.UDB.FindOne(ctx, bson.M{"_id": uID}); err == nil {
			authorName = author.Name
		}
	}

	now := time.Now().UTC()
	idea := models.ProjectIdea{
		Title:          req.Title,
		Summary:        req.Summary,
		Objectives:     req.Objectives,
		Beneficiaries:  req.Beneficiaries,
		BudgetEstimate: req.BudgetEstimate,
		Timeline:       req.Timeline,
		Resources:      req.Resources,
		Status:         models.IdeaDraft,
		AuthorID:       p.UserID,
		AuthorName:     authorName,
		AIGenerated:    req.AIGenerated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	res, err := pi.DB.InsertOne(ctx, idea)
	if err != nil {
		config.ErrorStatus("failed to create project idea", http.StatusInternalServerError, w, err)
		return
	}
	idea.ID = insertedID(res)
	writeJSON(w, http.StatusCreated, idea)
}

// ListIdeasHandler lists ideas. Admins see everything; members see their own
// ideas and approved ones.
func (pi ProjectIdea) ListIdeasHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := bson.M{}
	switch {
	case q.Get("mine") == "true":
		filter["authorId"] = p.UserID
	case !p.IsAdmin():
		filter["$or"] = bson.A{bson.M{"authorId": p.UserID}, bson.M{"status": models.IdeaApproved}}
	}
	if status := q.Get("status"); status != "" {
		filter["status"] = status
	}

	page := databases.NewPaginate(q)
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	total, err := pi.DB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count project ideas", http.StatusInternalServerError, w, err)
		return
	}
	ideas, err := pi.DB.Find(ctx, filter, page.FindOptions().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		config.ErrorStatus("failed to get project ideas", http.StatusInternalServerError, w, err)
		return
	}
	if ideas == nil {
		ideas = []models.ProjectIdea{}
	}
	writeJSON(w, http.StatusOK, PaginatedResponse{Page: page.Page, Limit: page.Limit, TotalCount: total, Data: ideas})
}

// IdeaByIDHandler returns a project idea given an ideaID
func (pi ProjectIdea) IdeaByIDHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	idea, ok := pi.load(ctx, w, r)
	if !ok {
		return
	}
	if !canView(p, idea) {
		config.ErrorStatus("cannot view this project idea", http.StatusForbidden, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, idea)
}

// UpdateIdeaHandler lets the author edit a draft or an idea sent back for revision
func (pi ProjectIdea) UpdateIdeaHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.ProjectIdeaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := validateIdea(&req); msg != "" {
		config.ErrorStatus(msg, http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	idea, ok := pi.load(ctx, w, r)
	if !ok {
		return
	}
	if idea.AuthorID != p.UserID {
		config.ErrorStatus("only the author can edit a project idea", http.StatusForbidden, w, nil)
		return
	}
	if !idea.AuthorEditable() {
		config.ErrorStatus("project idea can no longer be edited", http.StatusConflict, w, models.ErrInvalidTransition)
		return
	}

	update := bson.M{"$set": bson.M{
		"title":          req.Title,
		"summary":        req.Summary,
		"objectives":     req.Objectives,
		"beneficiaries":  req.Beneficiaries,
		"budgetEstimate": req.BudgetEstimate,
		"timeline":       req.Timeline,
		"resources":      req.Resources,
		"updatedAt":      time.Now().UTC(),
	}}
	res, err := pi.DB.UpdateOne(ctx, bson.M{"_id": idea.ID, "status": idea.Status}, update)
	if err != nil {
		config.ErrorStatus("failed to update project idea", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("project idea changed while editing", http.StatusConflict, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, message("project idea updated", idea.ID))
}

// DeleteIdeaHandler deletes an idea. Authors may only delete editable ideas;
// admins may delete any.
func (pi ProjectIdea) DeleteIdeaHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	idea, ok := pi.load(ctx, w, r)
	if !ok {
		return
	}
	filter := bson.M{"_id": idea.ID}
	if !p.IsAdmin() {
		if idea.AuthorID != p.UserID {
			config.ErrorStatus("only the author can delete a project idea", http.StatusForbidden, w, nil)
			return
		}
		if !idea.AuthorEditable() {
			config.ErrorStatus("project idea can no longer be deleted", http.StatusConflict, w, models.ErrInvalidTransition)
			return
		}
		filter["status"] = idea.Status
	}

	deleted, err := pi.DB.DeleteOne(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to delete project idea", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("project idea changed while deleting", http.StatusConflict, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, message("project idea deleted", idea.ID))
}

// SubmitIdeaHandler sends a draft, or a revised idea, to the admins for review
func (pi ProjectIdea) SubmitIdeaHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	idea, ok := pi.load(ctx, w, r)
	if !ok {
		return
	}
	if idea.AuthorID != p.UserID {
		config.ErrorStatus("only the author can submit a project idea", http.StatusForbidden, w, nil)
		return
	}
	from := idea.Status
	if err := idea.Submit(); err != nil {
		config.ErrorStatus("project idea cannot be submitted from "+from, http.StatusConflict, w, err)
		return
	}

	now := time.Now().UTC()
	res, err := pi.DB.UpdateOne(ctx,
		bson.M{"_id": idea.ID, "status": from},
		bson.M{"$set": bson.M{"status": idea.Status, "submittedAt": now, "updatedAt": now}},
	)
	if err != nil {
		config.ErrorStatus("failed to submit project idea", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("project idea changed while submitting", http.StatusConflict, w, nil)
		return
	}
	idea.SubmittedAt = &now
	idea.UpdatedAt = now
	writeJSON(w, http.StatusOK, idea)
}

// ReviewIdeaHandler records an admin decision on an idea waiting for review
func (pi ProjectIdea) ReviewIdeaHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.ReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.Decision {
	case models.IdeaApproved, models.IdeaDeclined, models.IdeaNeedsRevision:
	default:
		config.ErrorStatus("decision must be approved, declined or needs_revision", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	idea, ok := pi.load(ctx, w, r)
	if !ok {
		return
	}
	if err := idea.Review(req.Decision); err != nil {
		config.ErrorStatus("project idea is not waiting for review", http.StatusConflict, w, err)
		return
	}

	now := time.Now().UTC()
	comment := strings.TrimSpace(req.Comment)
	res, err := pi.DB.UpdateOne(ctx,
		bson.M{"_id": idea.ID, "status": models.IdeaPendingReview},
		bson.M{"$set": bson.M{
			"status":        idea.Status,
			"reviewerId":    p.UserID,
			"reviewComment": comment,
			"reviewedAt":    now,
			"updatedAt":     now,
		}},
	)
	if err != nil {
		config.ErrorStatus("failed to review project idea", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("project idea is not waiting for review", http.StatusConflict, w, nil)
		return
	}

	idea.ReviewerID = p.UserID
	idea.ReviewComment = comment
	idea.ReviewedAt = &now
	idea.UpdatedAt = now
	pi.Hooks.IdeaReviewed(*idea)

	zap.S().Infow("project idea reviewed", "ideaId", idea.ID.Hex(), "decision", idea.Status, "reviewer", p.UserID)
	writeJSON(w, http.StatusOK, idea)
}

// GenerateIdeaHandler turns a prompt into a draft proposal. Nothing is stored;
// the client edits the draft and saves it through CreateIdeaHandler.
func (pi ProjectIdea) GenerateIdeaHandler(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateIdeaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		config.ErrorStatus("prompt is required", http.StatusBadRequest, w, aiassist.ErrEmptyPrompt)
		return
	}

	draft, err := pi.AI.GenerateProposal(r.Context(), req.Prompt)
	switch {
	case errors.Is(err, aiassist.ErrNotConfigured):
		config.ErrorStatus("AI assistant is not available", http.StatusServiceUnavailable, w, err)
		return
	case errors.Is(err, aiassist.ErrEmptyPrompt):
		config.ErrorStatus("prompt is required", http.StatusBadRequest, w, err)
		return
	case err != nil:
		config.ErrorStatus("failed to generate proposal", http.StatusBadGateway, w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}
