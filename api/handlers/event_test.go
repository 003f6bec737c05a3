package handlers_test

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/leoportal/leo-portal-api/api/handlers"
	"github.com/leoportal/leo-portal-api/checkin"
	"github.com/leoportal/leo-portal-api/databases/mocks"
	"github.com/leoportal/leo-portal-api/models"
)

func newEventHandler() (handlers.Event, *mocks.EventDatabase, *mocks.AttendanceDatabase, *hookRecorder) {
	db := &mocks.EventDatabase{}
	adb := &mocks.AttendanceDatabase{}
	hooks := &hookRecorder{}
	return handlers.Event{
		DB:            db,
		ADB:           adb,
		Hooks:         hooks,
		CheckIn:       checkin.NewIssuer("test-secret"),
		DefaultRadius: 75,
	}, db, adb, hooks
}

func validEventRequest() models.EventRequest {
	start := time.Date(2026, 11, 7, 9, 0, 0, 0, time.UTC)
	return models.EventRequest{
		Title:    "Food drive",
		Type:     models.EventTypeProject,
		StartsAt: start,
		EndsAt:   start.Add(3 * time.Hour),
		Points:   10,
	}
}

func TestEvent_CreateEventHandlerAppliesDefaultRadius(t *testing.T) {
	h, db, _, hooks := newEventHandler()
	id := primitive.NewObjectID()
	db.On("InsertOne", mock.Anything, mock.MatchedBy(func(e models.Event) bool {
		return e.RadiusMeters == 75 && e.Location != nil
	})).Return(insertResult(id), nil)

	req := validEventRequest()
	req.Location = &models.Location{Lat: 6.9271, Lng: 79.8612}
	rr := serve(h.CreateEventHandler, newRequest(t, http.MethodPost, "/", req, admin(primitive.NewObjectID()), nil))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var event models.Event
	decode(t, rr, &event)
	assert.Equal(t, id, event.ID)
	require.Len(t, hooks.events, 1)
	assert.Equal(t, "Food drive", hooks.events[0].Title)
}

func TestEvent_CreateEventHandlerDropsRadiusWithoutLocation(t *testing.T) {
	h, db, _, _ := newEventHandler()
	db.On("InsertOne", mock.Anything, mock.MatchedBy(func(e models.Event) bool {
		return e.RadiusMeters == 0 && e.Location == nil
	})).Return(insertResult(primitive.NewObjectID()), nil)

	req := validEventRequest()
	req.RadiusMeters = 200
	rr := serve(h.CreateEventHandler, newRequest(t, http.MethodPost, "/", req, admin(primitive.NewObjectID()), nil))

	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	db.AssertExpectations(t)
}

func TestEvent_CreateEventHandlerValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.EventRequest)
		msg    string
	}{
		{"missing title", func(r *models.EventRequest) { r.Title = "  " }, "title is required"},
		{"bad type", func(r *models.EventRequest) { r.Type = "party" }, "type must be one of meeting, project, fundraiser or social"},
		{"ends before start", func(r *models.EventRequest) { r.EndsAt = r.StartsAt.Add(-time.Hour) }, "endsAt must be after startsAt"},
		{"negative points", func(r *models.EventRequest) { r.Points = -1 }, "points must not be negative"},
		{"bad location", func(r *models.EventRequest) { r.Location = &models.Location{Lat: 91, Lng: 0} }, "location is not a valid coordinate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, db, _, hooks := newEventHandler()
			req := validEventRequest()
			tc.mutate(&req)

			rr := serve(h.CreateEventHandler, newRequest(t, http.MethodPost, "/", req, admin(primitive.NewObjectID()), nil))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tc.msg, errorBody(t, rr).Response.Message)
			db.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
			assert.Empty(t, hooks.events)
		})
	}
}

func TestEvent_ListEventsHandlerRejectsUnknownWhen(t *testing.T) {
	h, _, _, _ := newEventHandler()

	rr := serve(h.ListEventsHandler, newRequest(t, http.MethodGet, "/?when=someday", nil, member(primitive.NewObjectID()), nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEvent_ListEventsHandler(t *testing.T) {
	h, db, _, _ := newEventHandler()
	db.On("CountDocuments", mock.Anything, bson.M{"type": models.EventTypeMeeting}).Return(int64(2), nil)
	db.On("Find", mock.Anything, bson.M{"type": models.EventTypeMeeting}, mock.Anything).
		Return([]models.Event{{Title: "AGM"}, {Title: "Board meeting"}}, nil)

	rr := serve(h.ListEventsHandler, newRequest(t, http.MethodGet, "/?type=meeting", nil, member(primitive.NewObjectID()), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp handlers.PaginatedResponse
	decode(t, rr, &resp)
	assert.Equal(t, int64(2), resp.TotalCount)
	assert.Len(t, resp.Data, 2)
}

func TestEvent_UpdateEventHandlerRearmsReminder(t *testing.T) {
	h, db, _, _ := newEventHandler()
	id := primitive.NewObjectID()
	req := validEventRequest()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.Event{ID: id, StartsAt: req.StartsAt.Add(-24 * time.Hour), ReminderSent: true}, nil)
	db.On("UpdateOne", mock.Anything, bson.M{"_id": id}, mock.MatchedBy(func(update bson.M) bool {
		set := update["$set"].(bson.M)
		_, unset := update["$unset"]
		return set["reminderSent"] == false && unset
	})).Return(matched(1), nil)

	rr := serve(h.UpdateEventHandler, newRequest(t, http.MethodPut, "/", req, admin(primitive.NewObjectID()), map[string]string{"event_id": id.Hex()}))

	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	db.AssertExpectations(t)
}

func TestEvent_DeleteEventHandlerRemovesAttendance(t *testing.T) {
	h, db, adb, _ := newEventHandler()
	id := primitive.NewObjectID()
	db.On("DeleteOne", mock.Anything, bson.M{"_id": id}).Return(int64(1), nil)
	adb.On("DeleteMany", mock.Anything, bson.M{"eventId": id}).Return(int64(12), nil)

	rr := serve(h.DeleteEventHandler, newRequest(t, http.MethodDelete, "/", nil, admin(primitive.NewObjectID()), map[string]string{"event_id": id.Hex()}))

	assert.Equal(t, http.StatusOK, rr.Code)
	adb.AssertExpectations(t)
}

func TestEvent_DeleteEventHandlerNotFound(t *testing.T) {
	h, db, adb, _ := newEventHandler()
	id := primitive.NewObjectID()
	db.On("DeleteOne", mock.Anything, bson.M{"_id": id}).Return(int64(0), nil)

	rr := serve(h.DeleteEventHandler, newRequest(t, http.MethodDelete, "/", nil, admin(primitive.NewObjectID()), map[string]string{"event_id": id.Hex()}))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	adb.AssertNotCalled(t, "DeleteMany", mock.Anything, mock.Anything)
}

func TestEvent_CheckInCodeHandler(t *testing.T) {
	h, db, _, _ := newEventHandler()
	id := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.Event{ID: id, EndsAt: time.Now().Add(time.Hour)}, nil)
	vars := map[string]string{"event_id": id.Hex()}

	rr := serve(h.CheckInCodeHandler, newRequest(t, http.MethodGet, "/?format=json", nil, admin(primitive.NewObjectID()), vars))
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	decode(t, rr, &body)
	assert.NoError(t, h.CheckIn.Verify(body["code"], id.Hex()))
	assert.Error(t, h.CheckIn.Verify(body["code"], primitive.NewObjectID().Hex()))

	rr = serve(h.CheckInCodeHandler, newRequest(t, http.MethodGet, "/", nil, admin(primitive.NewObjectID()), vars))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")))
}
