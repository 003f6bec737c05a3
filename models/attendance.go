package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attendance marking methods
const (
	MethodGeofence = "geofence"
	MethodQR       = "qr"
	MethodManual   = "manual"
	MethodOffline  = "offline"
)

// Sync item outcomes
const (
	SyncCreated   = "created"
	SyncDuplicate = "duplicate"
	SyncRejected  = "rejected"
)

// AttendanceRecord holds the structure for the attendance collection in mongo.
// A record is written once and never updated.
type AttendanceRecord struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	EventID        primitive.ObjectID `json:"eventId" bson:"eventId"`
	UserID         string             `json:"userId,omitempty" bson:"userId,omitempty"`
	UserName       string             `json:"userName,omitempty" bson:"userName,omitempty"`
	VisitorName    string             `json:"visitorName,omitempty" bson:"visitorName,omitempty"`
	VisitorKey     string             `json:"-" bson:"visitorKey,omitempty"`
	VisitorContact string             `json:"visitorContact,omitempty" bson:"visitorContact,omitempty"`
	Method         string             `json:"method" bson:"method"`
	Location       *Location          `json:"location,omitempty" bson:"location,omitempty"`
	DistanceMeters *float64           `json:"distanceMeters,omitempty" bson:"distanceMeters,omitempty"`
	MarkedAt       time.Time          `json:"markedAt" bson:"markedAt"`
	MarkedBy       string             `json:"markedBy" bson:"markedBy"`
	QueuedAt       *time.Time         `json:"queuedAt,omitempty" bson:"queuedAt,omitempty"`
}

// IsVisitor reports whether the record belongs to a non member guest
func (a AttendanceRecord) IsVisitor() bool {
	return a.UserID == ""
}

// VisitorKeyFor normalizes a visitor name so "Jane Doe " and "jane  doe" collide
func VisitorKeyFor(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// MarkAttendanceRequest is the body of the member mark attendance route
type MarkAttendanceRequest struct {
	Location     *Location `json:"location"`
	CheckInToken string    `json:"checkInToken"`
}

// VisitorAttendanceRequest is the body of the visitor attendance route
type VisitorAttendanceRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// ManualAttendanceRequest is the body of the admin manual mark route
type ManualAttendanceRequest struct {
	UserID string `json:"userId"`
}

// SyncItem is one attendance mark captured while the client was offline
type SyncItem struct {
	EventID      string    `json:"eventId"`
	VisitorName  string    `json:"visitorName,omitempty"`
	Location     *Location `json:"location,omitempty"`
	CheckInToken string    `json:"checkInToken,omitempty"`
	QueuedAt     time.Time `json:"queuedAt"`
}

// SyncRequest is the body of the bulk attendance sync route
type SyncRequest struct {
	Items []SyncItem `json:"items"`
}

// SyncResult reports what happened to one SyncItem
type SyncResult struct {
	EventID  string `json:"eventId"`
	QueuedAt string `json:"queuedAt"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	RecordID string `json:"recordId,omitempty"`
}

// SyncResponse is returned by the bulk attendance sync route
type SyncResponse struct {
	Created   int          `json:"created"`
	Duplicate int          `json:"duplicate"`
	Rejected  int          `json:"rejected"`
	Results   []SyncResult `json:"results"`
}

// LeaderboardEntry is one row of an attendance or points leaderboard
type LeaderboardEntry struct {
	UserID string `json:"userId" bson:"_id"`
	Name   string `json:"name" bson:"name"`
	Total  int    `json:"total" bson:"total"`
}

// AlreadyMarkedResponse is returned with a 409 when attendance exists already.
// Record holds the stored record so clients can show when it was marked.
type AlreadyMarkedResponse struct {
	Response MessageError
	Record   *AttendanceRecord `json:"record"`
}
