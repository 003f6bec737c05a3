package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event types
const (
	EventTypeMeeting    = "meeting"
	EventTypeProject    = "project"
	EventTypeFundraiser = "fundraiser"
	EventTypeSocial     = "social"
)

// CheckInGrace is how long after an event ends attendance may still be marked
const CheckInGrace = 2 * time.Hour

// CheckInLead is how long before an event starts attendance may be marked
const CheckInLead = 30 * time.Minute

// Location is a geographic coordinate in decimal degrees
type Location struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Event holds the structure for the events collection in mongo
type Event struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Title        string             `json:"title" bson:"title"`
	Description  string             `json:"description" bson:"description"`
	Type         string             `json:"type" bson:"type"`
	Venue        string             `json:"venue" bson:"venue"`
	StartsAt     time.Time          `json:"startsAt" bson:"startsAt"`
	EndsAt       time.Time          `json:"endsAt" bson:"endsAt"`
	Location     *Location          `json:"location,omitempty" bson:"location,omitempty"`
	RadiusMeters float64            `json:"radiusMeters,omitempty" bson:"radiusMeters,omitempty"`
	Points       int                `json:"points" bson:"points"`
	CreatedBy    string             `json:"createdBy" bson:"createdBy"`
	ReminderSent bool               `json:"reminderSent" bson:"reminderSent"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// HasGeofence reports whether attendance for the event must be marked on site
func (e Event) HasGeofence() bool {
	return e.Location != nil
}

// CheckInOpen reports whether attendance may be marked at t
func (e Event) CheckInOpen(t time.Time) bool {
	return !t.Before(e.StartsAt.Add(-CheckInLead)) && !t.After(e.EndsAt.Add(CheckInGrace))
}

// ValidEventType reports whether t is one of the known event types
func ValidEventType(t string) bool {
	switch t {
	case EventTypeMeeting, EventTypeProject, EventTypeFundraiser, EventTypeSocial:
		return true
	}
	return false
}

// EventRequest is the body of the create and update event routes
type EventRequest struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Type         string    `json:"type"`
	Venue        string    `json:"venue"`
	StartsAt     time.Time `json:"startsAt"`
	EndsAt       time.Time `json:"endsAt"`
	Location     *Location `json:"location"`
	RadiusMeters float64   `json:"radiusMeters"`
	Points       int       `json:"points"`
}
