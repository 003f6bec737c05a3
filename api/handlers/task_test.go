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
	"github.com/leoportal/leo-portal-api/notify"
)

func newTaskHandler() (handlers.Task, *mocks.TaskDatabase, *mocks.UserDatabase, *broadcastRecorder) {
	db := &mocks.TaskDatabase{}
	udb := &mocks.UserDatabase{}
	hub := &broadcastRecorder{}
	return handlers.Task{DB: db, UDB: udb, Hub: hub}, db, udb, hub
}

func taskVars(id primitive.ObjectID) map[string]string {
	return map[string]string{"task_id": id.Hex()}
}

func TestTask_BoardHandlerGroupsColumns(t *testing.T) {
	h, db, _, _ := newTaskHandler()
	db.On("Find", mock.Anything, bson.M{}, mock.Anything).Return([]models.Task{
		{Title: "Book venue", Status: models.TaskTodo, Position: 0},
		{Title: "Print flyers", Status: models.TaskTodo, Position: 1},
		{Title: "Order food", Status: models.TaskDone, Position: 0},
	}, nil)

	rr := serve(h.BoardHandler, newRequest(t, http.MethodGet, "/", nil, member(primitive.NewObjectID()), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var board models.Board
	decode(t, rr, &board)
	require.Len(t, board.Columns, 4)
	assert.Len(t, board.Columns[models.TaskTodo], 2)
	assert.Equal(t, "Print flyers", board.Columns[models.TaskTodo][1].Title)
	assert.Empty(t, board.Columns[models.TaskInProgress])
	assert.Empty(t, board.Columns[models.TaskReview])
	assert.Len(t, board.Columns[models.TaskDone], 1)
}

func TestTask_CreateTaskHandlerAppendsToColumn(t *testing.T) {
	h, db, _, hub := newTaskHandler()
	id := primitive.NewObjectID()
	db.On("CountDocuments", mock.Anything, bson.M{"status": models.TaskTodo}).Return(int64(3), nil)
	db.On("InsertOne", mock.Anything, mock.MatchedBy(func(task models.Task) bool {
		return task.Position == 3 && task.Priority == models.PriorityMedium && task.Status == models.TaskTodo
	})).Return(insertResult(id), nil)

	rr := serve(h.CreateTaskHandler, newRequest(t, http.MethodPost, "/", models.TaskRequest{Title: "Book venue"}, member(primitive.NewObjectID()), nil))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, []string{notify.EventTaskUpdated}, hub.events)
}

func TestTask_CreateTaskHandlerValidation(t *testing.T) {
	h, _, _, hub := newTaskHandler()

	rr := serve(h.CreateTaskHandler, newRequest(t, http.MethodPost, "/", models.TaskRequest{Title: "x", Priority: "urgent"}, member(primitive.NewObjectID()), nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "priority must be low, medium or high", errorBody(t, rr).Response.Message)
	assert.Empty(t, hub.events)
}

func TestTask_MoveTaskHandlerRenumbersDestination(t *testing.T) {
	h, db, _, hub := newTaskHandler()
	moving := &models.Task{ID: primitive.NewObjectID(), Title: "Print flyers", Status: models.TaskTodo, Position: 4}
	a := models.Task{ID: primitive.NewObjectID(), Status: models.TaskInProgress, Position: 0}
	b := models.Task{ID: primitive.NewObjectID(), Status: models.TaskInProgress, Position: 1}
	c := models.Task{ID: primitive.NewObjectID(), Status: models.TaskInProgress, Position: 2}

	db.On("FindOne", mock.Anything, bson.M{"_id": moving.ID}).Return(moving, nil)
	db.On("Find", mock.Anything, bson.M{"status": models.TaskInProgress, "_id": bson.M{"$ne": moving.ID}}, mock.Anything).
		Return([]models.Task{a, b, c}, nil)
	db.On("UpdateOne", mock.Anything, bson.M{"_id": b.ID}, bson.M{"$set": bson.M{"position": 2}}).Return(matched(1), nil)
	db.On("UpdateOne", mock.Anything, bson.M{"_id": c.ID}, bson.M{"$set": bson.M{"position": 3}}).Return(matched(1), nil)
	db.On("UpdateOne", mock.Anything, bson.M{"_id": moving.ID}, mock.Anything).Return(matched(1), nil)

	body := models.MoveTaskRequest{Status: models.TaskInProgress, Position: 1}
	rr := serve(h.MoveTaskHandler, newRequest(t, http.MethodPut, "/", body, member(primitive.NewObjectID()), taskVars(moving.ID)))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var task models.Task
	decode(t, rr, &task)
	assert.Equal(t, models.TaskInProgress, task.Status)
	assert.Equal(t, 1, task.Position)
	db.AssertNotCalled(t, "UpdateOne", mock.Anything, bson.M{"_id": a.ID}, mock.Anything)
	db.AssertNumberOfCalls(t, "UpdateOne", 3)
	assert.Equal(t, []string{notify.EventTaskUpdated}, hub.events)
}

func TestTask_MoveTaskHandlerClampsPosition(t *testing.T) {
	h, db, _, _ := newTaskHandler()
	moving := &models.Task{ID: primitive.NewObjectID(), Status: models.TaskTodo}
	db.On("FindOne", mock.Anything, bson.M{"_id": moving.ID}).Return(moving, nil)
	db.On("Find", mock.Anything, mock.Anything, mock.Anything).Return([]models.Task{{ID: primitive.NewObjectID(), Status: models.TaskDone, Position: 0}}, nil)
	db.On("UpdateOne", mock.Anything, bson.M{"_id": moving.ID}, mock.MatchedBy(func(update bson.M) bool {
		return update["$set"].(bson.M)["position"] == 1
	})).Return(matched(1), nil)

	body := models.MoveTaskRequest{Status: models.TaskDone, Position: 40}
	rr := serve(h.MoveTaskHandler, newRequest(t, http.MethodPut, "/", body, member(primitive.NewObjectID()), taskVars(moving.ID)))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	db.AssertExpectations(t)
}

func TestTask_MoveTaskHandlerBadStatus(t *testing.T) {
	h, db, _, _ := newTaskHandler()

	body := models.MoveTaskRequest{Status: "archived"}
	rr := serve(h.MoveTaskHandler, newRequest(t, http.MethodPut, "/", body, member(primitive.NewObjectID()), taskVars(primitive.NewObjectID())))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	db.AssertNotCalled(t, "FindOne", mock.Anything, mock.Anything)
}

func TestTask_DeleteTaskHandlerForbidden(t *testing.T) {
	h, db, _, hub := newTaskHandler()
	id := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.Task{ID: id, CreatedBy: "someone-else"}, nil)

	rr := serve(h.DeleteTaskHandler, newRequest(t, http.MethodDelete, "/", nil, member(primitive.NewObjectID()), taskVars(id)))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, hub.events)
}

func TestTask_DeleteTaskHandlerBroadcasts(t *testing.T) {
	h, db, _, hub := newTaskHandler()
	id := primitive.NewObjectID()
	creator := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.Task{ID: id, Status: models.TaskReview, CreatedBy: creator.Hex()}, nil)
	db.On("DeleteOne", mock.Anything, bson.M{"_id": id}).Return(int64(1), nil)

	rr := serve(h.DeleteTaskHandler, newRequest(t, http.MethodDelete, "/", nil, member(creator), taskVars(id)))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{notify.EventTaskDeleted}, hub.events)
	assert.Equal(t, map[string]string{"_id": id.Hex(), "status": models.TaskReview}, hub.data[0])
}

func TestTask_ToggleChecklistItemHandler(t *testing.T) {
	h, db, _, _ := newTaskHandler()
	id := primitive.NewObjectID()
	task := &models.Task{ID: id, Checklist: []models.ChecklistItem{{ID: "c1", Text: "Call caterer"}}}
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(task, nil)
	db.On("UpdateOne", mock.Anything, bson.M{"_id": id, "checklist.id": "c1"}, mock.MatchedBy(func(update bson.M) bool {
		return update["$set"].(bson.M)["checklist.$.done"] == true
	})).Return(matched(1), nil)

	vars := map[string]string{"task_id": id.Hex(), "item_id": "c1"}
	rr := serve(h.ToggleChecklistItemHandler, newRequest(t, http.MethodPut, "/", nil, member(primitive.NewObjectID()), vars))

	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	db.AssertExpectations(t)
}

func TestTask_ToggleChecklistItemHandlerMissingItem(t *testing.T) {
	h, db, _, _ := newTaskHandler()
	id := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.Task{ID: id}, nil)

	vars := map[string]string{"task_id": id.Hex(), "item_id": "nope"}
	rr := serve(h.ToggleChecklistItemHandler, newRequest(t, http.MethodPut, "/", nil, member(primitive.NewObjectID()), vars))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTask_AddCommentHandler(t *testing.T) {
	h, db, udb, hub := newTaskHandler()
	id := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	udb.On("FindOne", mock.Anything, bson.M{"_id": userID}).Return(&models.User{Name: "Grace"}, nil)
	db.On("UpdateOne", mock.Anything, bson.M{"_id": id}, mock.MatchedBy(func(update bson.M) bool {
		c, ok := update["$push"].(bson.M)["comments"].(models.TaskComment)
		return ok && c.AuthorName == "Grace" && c.Text == "Venue confirmed" && c.ID != ""
	})).Return(matched(1), nil)
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.Task{ID: id}, nil)

	rr := serve(h.AddCommentHandler, newRequest(t, http.MethodPost, "/", models.CommentRequest{Text: " Venue confirmed "}, member(userID), taskVars(id)))

	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{notify.EventTaskUpdated}, hub.events)
}

func TestTask_DeleteCommentHandlerOthersComment(t *testing.T) {
	h, db, _, _ := newTaskHandler()
	id := primitive.NewObjectID()
	db.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.Task{ID: id, Comments: []models.TaskComment{{ID: "k1", AuthorID: "someone-else"}}}, nil)

	vars := map[string]string{"task_id": id.Hex(), "comment_id": "k1"}
	rr := serve(h.DeleteCommentHandler, newRequest(t, http.MethodDelete, "/", nil, member(primitive.NewObjectID()), vars))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	db.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}
