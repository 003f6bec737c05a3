package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PointsEntry holds the structure for the pointsEntries collection in mongo
type PointsEntry struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	UserID    string             `json:"userId" bson:"userId"`
	UserName  string             `json:"userName" bson:"userName"`
	Points    int                `json:"points" bson:"points"`
	Reason    string             `json:"reason" bson:"reason"`
	EventID   string             `json:"eventId,omitempty" bson:"eventId,omitempty"`
	AwardedBy string             `json:"awardedBy" bson:"awardedBy"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// PointsRequest is the body of the admin award points route
type PointsRequest struct {
	UserID  string `json:"userId"`
	Points  int    `json:"points"`
	Reason  string `json:"reason"`
	EventID string `json:"eventId"`
}

// PointsHistory is a member's points entries with their running total
type PointsHistory struct {
	UserID  string        `json:"userId"`
	Total   int           `json:"total"`
	Entries []PointsEntry `json:"entries"`
}
