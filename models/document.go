package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document holds the structure for the documents collection in mongo
type Document struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Title      string             `json:"title" bson:"title"`
	Category   string             `json:"category" bson:"category"`
	URL        string             `json:"url" bson:"url"`
	PublicID   string             `json:"publicId,omitempty" bson:"publicId,omitempty"`
	UploadedBy string             `json:"uploadedBy" bson:"uploadedBy"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// DocumentRequest is the body of the create and update document routes
type DocumentRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// UploadSignature lets a browser upload straight to Cloudinary
type UploadSignature struct {
	Timestamp    string `json:"timestamp"`
	Signature    string `json:"signature"`
	APIKey       string `json:"apiKey"`
	CloudName    string `json:"cloudName"`
	UploadPreset string `json:"uploadPreset,omitempty"`
	Folder       string `json:"folder"`
}

// UploadSignatureRequest asks for upload parameters for a document category
type UploadSignatureRequest struct {
	Category string `json:"category"`
}
