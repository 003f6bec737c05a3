package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/models"
	"github.com/leoportal/leo-portal-api/notify"
)

// Broadcaster pushes live events to connected clients
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// Task exported for testing purposes
type Task struct {
	DB  databases.TaskDatabase
	UDB databases.UserDatabase
	Hub Broadcaster
}

func (t Task) broadcast(event string, data interface{}) {
	if t.Hub != nil {
		t.Hub.Broadcast(event, data)
	}
}

// refresh reloads a task after a write, broadcasts it and writes it as the response
func (t Task) refresh(ctx context.Context, w http.ResponseWriter, id primitive.ObjectID) {
	task, err := t.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get task by ID", lookupStatus(err), w, err)
		return
	}
	t.broadcast(notify.EventTaskUpdated, task)
	writeJSON(w, http.StatusOK, task)
}

func (t Task) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.Task, bool) {
	id, ok := pathID(w, r, "task_id")
	if !ok {
		return nil, false
	}
	task, err := t.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get task by ID", lookupStatus(err), w, err)
		return nil, false
	}
	return task, true
}

func validateTask(req *models.TaskRequest) string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	if req.Status == "" {
		req.Status = models.TaskTodo
	}
	if !models.ValidTaskStatus(req.Status) {
		return "status must be one of todo, in_progress, review or done"
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(req.Priority) {
		return "priority must be low, medium or high"
	}
	if req.EventID != "" {
		if _, err := primitive.ObjectIDFromHex(req.EventID); err != nil {
			return "eventId is not a valid id"
		}
	}
	req.Assignees = cleanList(req.Assignees)
	return ""
}

// BoardHandler returns every task grouped by column, each column ordered by position
func (t Task) BoardHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := bson.M{}
	if a := q.Get("assignee"); a != "" {
		filter["assignees"] = a
	}
	if e := q.Get("eventId"); e != "" {
		filter["eventId"] = e
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	tasks, err := t.DB.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "createdAt", Value: 1}}))
	if err != nil {
		config.ErrorStatus("failed to get tasks", http.StatusInternalServerError, w, err)
		return
	}

	board := models.Board{Columns: make(map[string][]models.Task, len(models.TaskStatuses))}
	for _, s := range models.TaskStatuses {
		board.Columns[s] = []models.Task{}
	}
	for _, task := range tasks {
		board.Columns[task.Status] = append(board.Columns[task.Status], task)
	}
	writeJSON(w, http.StatusOK, board)
}

// CreateTaskHandler adds a task at the bottom of its column
func (t Task) CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.TaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := validateTask(&req); msg != "" {
		config.ErrorStatus(msg, http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	position, err := t.DB.CountDocuments(ctx, bson.M{"status": req.Status})
	if err != nil {
		config.ErrorStatus("failed to count tasks", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now().UTC()
	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Position:    int(position),
		Assignees:   req.Assignees,
		EventID:     req.EventID,
		DueDate:     req.DueDate,
		Checklist:   []models.ChecklistItem{},
		Comments:    []models.TaskComment{},
		CreatedBy:   p.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := t.DB.InsertOne(ctx, task)
	if err != nil {
		config.ErrorStatus("failed to create task", http.StatusInternalServerError, w, err)
		return
	}
	task.ID = insertedID(res)

	t.broadcast(notify.EventTaskUpdated, task)
	writeJSON(w, http.StatusCreated, task)
}

// TaskByIDHandler returns a task given a taskID
func (t Task) TaskByIDHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	task, ok := t.load(ctx, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTaskHandler edits the card fields. The column and position only change
// through MoveTaskHandler, so Status in the body is ignored.
func (t Task) UpdateTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "task_id")
	if !ok {
		return
	}
	var req models.TaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Status = models.TaskTodo
	if msg := validateTask(&req); msg != "" {
		config.ErrorStatus(msg, http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	set := bson.M{
		"title":       req.Title,
		"description": req.Description,
		"priority":    req.Priority,
		"assignees":   req.Assignees,
		"eventId":     req.EventID,
		"updatedAt":   time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if req.DueDate != nil {
		set["dueDate"] = req.DueDate.UTC()
	} else {
		update["$unset"] = bson.M{"dueDate": ""}
	}
	res, err := t.DB.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		config.ErrorStatus("failed to update task", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("task not found", http.StatusNotFound, w, nil)
		return
	}
	t.refresh(ctx, w, id)
}

// DeleteTaskHandler removes a task. Only its creator or an admin may do this.
func (t Task) DeleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	task, ok := t.load(ctx, w, r)
	if !ok {
		return
	}
	if task.CreatedBy != p.UserID && !p.IsAdmin() {
		config.ErrorStatus("only the creator or an admin can delete a task", http.StatusForbidden, w, nil)
		return
	}
	deleted, err := t.DB.DeleteOne(ctx, bson.M{"_id": task.ID})
	if err != nil {
		config.ErrorStatus("failed to delete task", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("task not found", http.StatusNotFound, w, nil)
		return
	}
	t.broadcast(notify.EventTaskDeleted, map[string]string{"_id": task.ID.Hex(), "status": task.Status})
	writeJSON(w, http.StatusOK, message("task deleted", task.ID))
}

// MoveTaskHandler drops a card into a column at the given position. Any column
// may move to any other. The destination column is renumbered so positions stay
// contiguous.
func (t Task) MoveTaskHandler(w http.ResponseWriter, r *http.Request) {
	var req models.MoveTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !models.ValidTaskStatus(req.Status) {
		config.ErrorStatus("status must be one of todo, in_progress, review or done", http.StatusBadRequest, w, nil)
		return
	}
	if req.Position < 0 {
		config.ErrorStatus("position must not be negative", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	task, ok := t.load(ctx, w, r)
	if !ok {
		return
	}

	column, err := t.DB.Find(ctx,
		bson.M{"status": req.Status, "_id": bson.M{"$ne": task.ID}},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		config.ErrorStatus("failed to get tasks", http.StatusInternalServerError, w, err)
		return
	}
	pos := req.Position
	if pos > len(column) {
		pos = len(column)
	}

	now := time.Now().UTC()
	for i, other := range column {
		want := i
		if i >= pos {
			want = i + 1
		}
		if other.Position == want {
			continue
		}
		if _, err := t.DB.UpdateOne(ctx, bson.M{"_id": other.ID}, bson.M{"$set": bson.M{"position": want}}); err != nil {
			config.ErrorStatus("failed to reorder tasks", http.StatusInternalServerError, w, err)
			return
		}
	}

	_, err = t.DB.UpdateOne(ctx,
		bson.M{"_id": task.ID},
		bson.M{"$set": bson.M{"status": req.Status, "position": pos, "updatedAt": now}},
	)
	if err != nil {
		config.ErrorStatus("failed to move task", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Debugw("task moved", "taskId", task.ID.Hex(), "from", task.Status, "to", req.Status, "position", pos)
	task.Status = req.Status
	task.Position = pos
	task.UpdatedAt = now
	t.broadcast(notify.EventTaskUpdated, task)
	writeJSON(w, http.StatusOK, task)
}

// AddChecklistItemHandler appends an item to a task checklist
func (t Task) AddChecklistItemHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "task_id")
	if !ok {
		return
	}
	var req models.ChecklistItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		config.ErrorStatus("text is required", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	item := models.ChecklistItem{ID: uuid.NewString(), Text: text}
	res, err := t.DB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"checklist": item},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		config.ErrorStatus("failed to add checklist item", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("task not found", http.StatusNotFound, w, nil)
		return
	}
	t.refresh(ctx, w, id)
}

// ToggleChecklistItemHandler flips the done flag of a checklist item
func (t Task) ToggleChecklistItemHandler(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["item_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	task, ok := t.load(ctx, w, r)
	if !ok {
		return
	}
	var item *models.ChecklistItem
	for i := range task.Checklist {
		if task.Checklist[i].ID == itemID {
			item = &task.Checklist[i]
			break
		}
	}
	if item == nil {
		config.ErrorStatus("checklist item not found", http.StatusNotFound, w, nil)
		return
	}

	_, err := t.DB.UpdateOne(ctx,
		bson.M{"_id": task.ID, "checklist.id": itemID},
		bson.M{"$set": bson.M{"checklist.$.done": !item.Done, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		config.ErrorStatus("failed to toggle checklist item", http.StatusInternalServerError, w, err)
		return
	}
	t.refresh(ctx, w, task.ID)
}

// RemoveChecklistItemHandler deletes a checklist item
func (t Task) RemoveChecklistItemHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "task_id")
	if !ok {
		return
	}
	itemID := mux.Vars(r)["item_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := t.DB.UpdateOne(ctx,
		bson.M{"_id": id, "checklist.id": itemID},
		bson.M{"$pull": bson.M{"checklist": bson.M{"id": itemID}}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		config.ErrorStatus("failed to remove checklist item", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("checklist item not found", http.StatusNotFound, w, nil)
		return
	}
	t.refresh(ctx, w, id)
}

// AddCommentHandler posts a comment on a task as the caller
func (t Task) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "task_id")
	if !ok {
		return
	}
	var req models.CommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		config.ErrorStatus("text is required", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	authorName := p.Email
	if uID, err := primitive.ObjectIDFromHex(p.UserID); err == nil {
		if u, err := t.UDB.FindOne(ctx, bson.M{"_id": uID}); err == nil {
			authorName = u.Name
		}
	}

	now := time.Now().UTC()
	comment := models.TaskComment{
		ID:         uuid.NewString(),
		AuthorID:   p.UserID,
		AuthorName: authorName,
		Text:       text,
		CreatedAt:  now,
	}
	res, err := t.DB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updatedAt": now},
	})
	if err != nil {
		config.ErrorStatus("failed to add comment", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("task not found", http.StatusNotFound, w, nil)
		return
	}
	t.refresh(ctx, w, id)
}

// DeleteCommentHandler removes a comment. Members may only remove their own.
func (t Task) DeleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	commentID := mux.Vars(r)["comment_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	task, ok := t.load(ctx, w, r)
	if !ok {
		return
	}
	var found *models.TaskComment
	for i := range task.Comments {
		if task.Comments[i].ID == commentID {
			found = &task.Comments[i]
			break
		}
	}
	if found == nil {
		config.ErrorStatus("comment not found", http.StatusNotFound, w, nil)
		return
	}
	if found.AuthorID != p.UserID && !p.IsAdmin() {
		config.ErrorStatus("cannot delete another member's comment", http.StatusForbidden, w, nil)
		return
	}

	_, err := t.DB.UpdateOne(ctx,
		bson.M{"_id": task.ID},
		bson.M{"$pull": bson.M{"comments": bson.M{"id": commentID}}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		config.ErrorStatus("failed to delete comment", http.StatusInternalServerError, w, err)
		return
	}
	t.refresh(ctx, w, task.ID)
}
