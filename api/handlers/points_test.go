package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/leoportal/leo-portal-api/api/handlers"
	"github.com/leoportal/leo-portal-api/databases/mocks"
	"github.com/leoportal/leo-portal-api/models"
)

func TestPoints_AwardPointsHandler(t *testing.T) {
	db := &mocks.PointsDatabase{}
	udb := &mocks.UserDatabase{}
	userID := primitive.NewObjectID()
	adminID := primitive.NewObjectID()
	udb.On("FindOne", mock.Anything, bson.M{"_id": userID}).Return(&models.User{ID: userID, Name: "Ada"}, nil)
	db.On("InsertOne", mock.Anything, mock.MatchedBy(func(e models.PointsEntry) bool {
		return e.Points == -3 && e.UserName == "Ada" && e.AwardedBy == adminID.Hex() && e.Reason == "double counted"
	})).Return(insertResult(primitive.NewObjectID()), nil)

	body := models.PointsRequest{UserID: userID.Hex(), Points: -3, Reason: " double counted "}
	rr := serve(handlers.Points{DB: db, UDB: udb}.AwardPointsHandler, newRequest(t, http.MethodPost, "/", body, admin(adminID), nil))

	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	db.AssertExpectations(t)
}

func TestPoints_AwardPointsHandlerValidation(t *testing.T) {
	userID := primitive.NewObjectID().Hex()
	cases := []struct {
		name string
		body models.PointsRequest
		msg  string
	}{
		{"bad user", models.PointsRequest{UserID: "x", Points: 1, Reason: "r"}, "failed to get objectID from Hex"},
		{"zero points", models.PointsRequest{UserID: userID, Reason: "r"}, "points must not be zero"},
		{"no reason", models.PointsRequest{UserID: userID, Points: 2}, "reason is required"},
		{"bad event", models.PointsRequest{UserID: userID, Points: 2, Reason: "r", EventID: "x"}, "eventId is not a valid id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := &mocks.PointsDatabase{}
			rr := serve(handlers.Points{DB: db, UDB: &mocks.UserDatabase{}}.AwardPointsHandler, newRequest(t, http.MethodPost, "/", tc.body, admin(primitive.NewObjectID()), nil))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tc.msg, errorBody(t, rr).Response.Message)
			db.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
		})
	}
}

func TestPoints_UserPointsHandler(t *testing.T) {
	db := &mocks.PointsDatabase{}
	userID := primitive.NewObjectID()
	db.On("Find", mock.Anything, bson.M{"userId": userID.Hex()}, mock.Anything).Return([]models.PointsEntry{
		{Points: 10, Reason: "Attended AGM"},
		{Points: 5, Reason: "Attended cleanup"},
		{Points: -2, Reason: "correction"},
	}, nil)

	rr := serve(handlers.Points{DB: db}.UserPointsHandler, newRequest(t, http.MethodGet, "/", nil, member(userID), map[string]string{"user_id": userID.Hex()}))

	require.Equal(t, http.StatusOK, rr.Code)
	var history models.PointsHistory
	decode(t, rr, &history)
	assert.Equal(t, 13, history.Total)
	assert.Len(t, history.Entries, 3)
}

func TestPoints_UserPointsHandlerOtherMember(t *testing.T) {
	db := &mocks.PointsDatabase{}

	rr := serve(handlers.Points{DB: db}.UserPointsHandler, newRequest(t, http.MethodGet, "/", nil, member(primitive.NewObjectID()), map[string]string{"user_id": primitive.NewObjectID().Hex()}))

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestPoints_LeaderboardHandlerCapsLimit(t *testing.T) {
	db := &mocks.PointsDatabase{}
	db.On("Leaderboard", mock.Anything, int64(100)).Return([]models.LeaderboardEntry{{UserID: "a", Name: "Ada", Total: 40}}, nil)

	rr := serve(handlers.Points{DB: db}.LeaderboardHandler, newRequest(t, http.MethodGet, "/?limit=5000", nil, member(primitive.NewObjectID()), nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	db.AssertExpectations(t)
}

func TestPoints_DeletePointsHandlerNotFound(t *testing.T) {
	db := &mocks.PointsDatabase{}
	id := primitive.NewObjectID()
	db.On("DeleteOne", mock.Anything, bson.M{"_id": id}).Return(int64(0), nil)

	rr := serve(handlers.Points{DB: db}.DeletePointsHandler, newRequest(t, http.MethodDelete, "/", nil, admin(primitive.NewObjectID()), map[string]string{"entry_id": id.Hex()}))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
