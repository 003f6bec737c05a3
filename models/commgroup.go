package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommunicationGroup holds the structure for the communicationGroups collection in mongo
type CommunicationGroup struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Slug        string             `json:"slug" bson:"slug"`
	Description string             `json:"description" bson:"description"`
	MemberIDs   []string           `json:"memberIds" bson:"memberIds"`
	CreatedBy   string             `json:"createdBy" bson:"createdBy"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// CommunicationGroupRequest is the body of the create and update group routes
type CommunicationGroupRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	MemberIDs   []string `json:"memberIds"`
}

// BulkEmailRequest is the body of the bulk email route. Exactly one of
// GroupID, Role or All selects the audience.
type BulkEmailRequest struct {
	GroupID string `json:"groupId"`
	Role    string `json:"role"`
	All     bool   `json:"all"`
	Subject string `json:"subject"`
	Body    string `json:"body"` // markdown
}

// BulkEmailResponse reports the delivery outcome of a bulk email
type BulkEmailResponse struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}
