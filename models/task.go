package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Board columns a task can sit in
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskReview     = "review"
	TaskDone       = "done"
)

// TaskStatuses lists the board columns in display order
var TaskStatuses = []string{TaskTodo, TaskInProgress, TaskReview, TaskDone}

// Task priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task holds the structure for the tasks collection in mongo
type Task struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Status      string             `json:"status" bson:"status"`
	Priority    string             `json:"priority" bson:"priority"`
	Position    int                `json:"position" bson:"position"`
	Assignees   []string           `json:"assignees" bson:"assignees"`
	EventID     string             `json:"eventId,omitempty" bson:"eventId,omitempty"`
	DueDate     *time.Time         `json:"dueDate,omitempty" bson:"dueDate,omitempty"`
	Checklist   []ChecklistItem    `json:"checklist" bson:"checklist"`
	Comments    []TaskComment      `json:"comments" bson:"comments"`
	CreatedBy   string             `json:"createdBy" bson:"createdBy"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ChecklistItem is one entry of a task checklist
type ChecklistItem struct {
	ID   string `json:"id" bson:"id"`
	Text string `json:"text" bson:"text"`
	Done bool   `json:"done" bson:"done"`
}

// TaskComment is a comment left on a task
type TaskComment struct {
	ID         string    `json:"id" bson:"id"`
	AuthorID   string    `json:"authorId" bson:"authorId"`
	AuthorName string    `json:"authorName" bson:"authorName"`
	Text       string    `json:"text" bson:"text"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// ValidTaskStatus reports whether s is a board column
func ValidTaskStatus(s string) bool {
	for _, st := range TaskStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// ValidPriority reports whether p is a known priority
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// TaskRequest is the body of the create and update task routes
type TaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Assignees   []string   `json:"assignees"`
	EventID     string     `json:"eventId"`
	DueDate     *time.Time `json:"dueDate"`
}

// MoveTaskRequest is sent when a card is dropped on a board column
type MoveTaskRequest struct {
	Status   string `json:"status"`
	Position int    `json:"position"`
}

// ChecklistItemRequest adds an item to a checklist
type ChecklistItemRequest struct {
	Text string `json:"text"`
}

// CommentRequest adds a comment to a task
type CommentRequest struct {
	Text string `json:"text"`
}

// Board is the task listing grouped by column
type Board struct {
	Columns map[string][]Task `json:"columns"`
}
