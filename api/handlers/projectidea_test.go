package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/leoportal/leo-portal-api/aiassist"
	"github.com/leoportal/leo-portal-api/api/handlers"
	"github.com/leoportal/leo-portal-api/databases/mocks"
	"github.com/leoportal/leo-portal-api/models"
)

type fakeGenerator struct {
	draft models.ProjectIdeaRequest
	err   error
}

func (f fakeGenerator) GenerateProposal(_ context.Context, _ string) (models.ProjectIdeaRequest, error) {
	return f.draft, f.err
}

func newIdeaHandler() (handlers.ProjectIdea, *mocks.ProjectIdeaDatabase, *mocks.UserDatabase, *hookRecorder) {
	db := &mocks.ProjectIdeaDatabase{}
	udb := &mocks.UserDatabase{}
	hooks := &hookRecorder{}
	return handlers.ProjectIdea{DB: db, UDB: udb, Hooks: hooks, AI: aiassist.New("", "")}, db, udb, hooks
}

func ideaVars(id primitive.ObjectID) map[string]string {
	return map[string]string{"idea_id": id.Hex()}
}

func TestProjectIdea_CreateIdeaHandler(t *testing.T) {
	h, db, udb, _ := newIdeaHandler()
	authorID := primitive.NewObjectID()
	udb.On("FindOne", mock.Anything, bson.M{"_id": authorID}).Return(&models.User{ID: authorID, Name: "Ada"}, nil)
	db.On("InsertOne", mock.Anything, mock.MatchedBy(func(p models.ProjectIdea) bool {
		return p.Status == models.IdeaDraft && p.AuthorName == "Ada" && len(p.Objectives) == 2
	})).Return(insertResult(primitive.NewObjectID()), nil)

	req := models.ProjectIdeaRequest{Title: "Tree planting", Objectives: []string{"Plant 100 trees", " ", "Teach kids"}}
	rr := serve(h.CreateIdeaHandler, newRequest(t, http.MethodPost, "/", req, member(authorID), nil))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	db.AssertExpectations(t)
}

func TestProjectIdea_CreateIdeaHandlerRequiresTitle(t *testing.T) {
	h, db, _, _ := newIdeaHandler()

	rr := serve(h.CreateIdeaHandler, newRequest(t, http.MethodPost, "/", models.ProjectIdeaRequest{}, member(primitive.NewObjectID()), nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	db.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
}

func TestProjectIdea_ListIdeasHandlerMemberFilter(t *testing.T) {
	h, db, _, _ := newIdeaHandler()
	userID := primitive.NewObjectID()
	filter := bson.M{"$or": bson.A{bson.M{"authorId": userID.Hex()}, bson.M{"status": models.IdeaApproved}}}
	db.On("CountDocuments", mock.Anything, filter).Return(int64(0), nil)
	db.On("Find", mock.Anything, filter, mock.Anything).Return(nil, nil)

	rr := serve(h.ListIdeasHandler, newRequest(t, http.MethodGet, "/", nil, member(userID), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp handlers.PaginatedResponse
	decode(t, rr, &resp)
	assert.Equal(t, []interface{}{}, resp.Data)
}

func TestProjectIdea_IdeaByIDHandlerHidesOtherDrafts(t *testing.T) {
	h, db, _, _ := newIdeaHandler()
	id := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.ProjectIdea{ID: id, AuthorID: "someone-else", Status: models.IdeaDraft}, nil)

	rr := serve(h.IdeaByIDHandler, newRequest(t, http.MethodGet, "/", nil, member(primitive.NewObjectID()), ideaVars(id)))

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestProjectIdea_UpdateIdeaHandlerNotEditable(t *testing.T) {
	h, db, _, _ := newIdeaHandler()
	id := primitive.NewObjectID()
	authorID := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.ProjectIdea{ID: id, AuthorID: authorID.Hex(), Status: models.IdeaPendingReview}, nil)

	rr := serve(h.UpdateIdeaHandler, newRequest(t, http.MethodPut, "/", models.ProjectIdeaRequest{Title: "New title"}, member(authorID), ideaVars(id)))

	assert.Equal(t, http.StatusConflict, rr.Code)
	db.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestProjectIdea_SubmitIdeaHandler(t *testing.T) {
	h, db, _, _ := newIdeaHandler()
	id := primitive.NewObjectID()
	authorID := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.ProjectIdea{ID: id, AuthorID: authorID.Hex(), Status: models.IdeaNeedsRevision}, nil)
	db.On("UpdateOne", mock.Anything, bson.M{"_id": id, "status": models.IdeaNeedsRevision}, mock.Anything).Return(matched(1), nil)

	rr := serve(h.SubmitIdeaHandler, newRequest(t, http.MethodPost, "/", nil, member(authorID), ideaVars(id)))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var idea models.ProjectIdea
	decode(t, rr, &idea)
	assert.Equal(t, models.IdeaPendingReview, idea.Status)
	assert.NotNil(t, idea.SubmittedAt)
}

func TestProjectIdea_SubmitIdeaHandlerTwice(t *testing.T) {
	h, db, _, _ := newIdeaHandler()
	id := primitive.NewObjectID()
	authorID := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.ProjectIdea{ID: id, AuthorID: authorID.Hex(), Status: models.IdeaPendingReview}, nil)

	rr := serve(h.SubmitIdeaHandler, newRequest(t, http.MethodPost, "/", nil, member(authorID), ideaVars(id)))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, models.ErrInvalidTransition.Error(), errorBody(t, rr).Response.Error)
}

func TestProjectIdea_SubmitIdeaHandlerOnlyAuthor(t *testing.T) {
	h, db, _, _ := newIdeaHandler()
	id := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.ProjectIdea{ID: id, AuthorID: "someone-else", Status: models.IdeaDraft}, nil)

	rr := serve(h.SubmitIdeaHandler, newRequest(t, http.MethodPost, "/", nil, admin(primitive.NewObjectID()), ideaVars(id)))

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestProjectIdea_ReviewIdeaHandler(t *testing.T) {
	h, db, _, hooks := newIdeaHandler()
	id := primitive.NewObjectID()
	reviewerID := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.ProjectIdea{ID: id, AuthorID: "author", Status: models.IdeaPendingReview}, nil)
	db.On("UpdateOne", mock.Anything, bson.M{"_id": id, "status": models.IdeaPendingReview}, mock.Anything).Return(matched(1), nil)

	body := models.ReviewRequest{Decision: models.IdeaNeedsRevision, Comment: " add a budget breakdown "}
	rr := serve(h.ReviewIdeaHandler, newRequest(t, http.MethodPost, "/", body, admin(reviewerID), ideaVars(id)))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, hooks.reviewed, 1)
	assert.Equal(t, models.IdeaNeedsRevision, hooks.reviewed[0].Status)
	assert.Equal(t, "add a budget breakdown", hooks.reviewed[0].ReviewComment)
	assert.Equal(t, reviewerID.Hex(), hooks.reviewed[0].ReviewerID)
}

func TestProjectIdea_ReviewIdeaHandlerDraft(t *testing.T) {
	h, db, _, hooks := newIdeaHandler()
	id := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.ProjectIdea{ID: id, Status: models.IdeaDraft}, nil)

	rr := serve(h.ReviewIdeaHandler, newRequest(t, http.MethodPost, "/", models.ReviewRequest{Decision: models.IdeaApproved}, admin(primitive.NewObjectID()), ideaVars(id)))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, hooks.reviewed)
}

func TestProjectIdea_ReviewIdeaHandlerBadDecision(t *testing.T) {
	h, _, _, _ := newIdeaHandler()

	rr := serve(h.ReviewIdeaHandler, newRequest(t, http.MethodPost, "/", models.ReviewRequest{Decision: models.IdeaDraft}, admin(primitive.NewObjectID()), ideaVars(primitive.NewObjectID())))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProjectIdea_DeleteIdeaHandlerAdminAnyStatus(t *testing.T) {
	h, db, _, _ := newIdeaHandler()
	id := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.ProjectIdea{ID: id, AuthorID: "author", Status: models.IdeaApproved}, nil)
	db.On("DeleteOne", mock.Anything, bson.M{"_id": id}).Return(int64(1), nil)

	rr := serve(h.DeleteIdeaHandler, newRequest(t, http.MethodDelete, "/", nil, admin(primitive.NewObjectID()), ideaVars(id)))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestProjectIdea_GenerateIdeaHandler(t *testing.T) {
	cases := []struct {
		name   string
		ai     handlers.ProposalGenerator
		prompt string
		status int
	}{
		{"not configured", aiassist.New("", ""), "a clean water project", http.StatusServiceUnavailable},
		{"blank prompt", fakeGenerator{}, "   ", http.StatusBadRequest},
		{"upstream failure", fakeGenerator{err: errors.New("timeout")}, "literacy drive", http.StatusBadGateway},
		{"ok", fakeGenerator{draft: models.ProjectIdeaRequest{Title: "Literacy drive"}}, "literacy drive", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := handlers.ProjectIdea{AI: tc.ai}
			rr := serve(h.GenerateIdeaHandler, newRequest(t, http.MethodPost, "/", models.GenerateIdeaRequest{Prompt: tc.prompt}, member(primitive.NewObjectID()), nil))
			assert.Equal(t, tc.status, rr.Code, rr.Body.String())
		})
	}
}
