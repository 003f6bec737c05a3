package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/models"
	"github.com/leoportal/leo-portal-api/uploads"
)

const uploadRootFolder = "leo-portal"

// Document exported for testing purposes
type Document struct {
	DB     databases.DocumentDatabase
	Signer *uploads.Signer
}

func validateDocument(req *models.DocumentRequest) string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if req.Category == "" {
		req.Category = "general"
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "url must be an http or https link"
	}
	return ""
}

// CreateDocumentHandler saves the metadata of an uploaded document
func (d Document) CreateDocumentHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := validateDocument(&req); msg != "" {
		config.ErrorStatus(msg, http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()
	doc := models.Document{
		Title:      req.Title,
		Category:   req.Category,
		URL:        req.URL,
		PublicID:   req.PublicID,
		UploadedBy: p.UserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	res, err := d.DB.InsertOne(ctx, doc)
	if err != nil {
		config.ErrorStatus("failed to create document", http.StatusInternalServerError, w, err)
		return
	}
	doc.ID = insertedID(res)
	writeJSON(w, http.StatusCreated, doc)
}

// ListDocumentsHandler lists documents, optionally of one category
func (d Document) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := bson.M{}
	if c := q.Get("category"); c != "" {
		filter["category"] = strings.ToLower(c)
	}

	page := databases.NewPaginate(q)
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	total, err := d.DB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count documents", http.StatusInternalServerError, w, err)
		return
	}
	docs, err := d.DB.Find(ctx, filter, page.FindOptions().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		config.ErrorStatus("failed to get documents", http.StatusInternalServerError, w, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, PaginatedResponse{Page: page.Page, Limit: page.Limit, TotalCount: total, Data: docs})
}

// DocumentByIDHandler returns a document given a documentID
func (d Document) DocumentByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "document_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	doc, err := d.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get document by ID", lookupStatus(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// UpdateDocumentHandler replaces a document's metadata
func (d Document) UpdateDocumentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "document_id")
	if !ok {
		return
	}
	var req models.DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := validateDocument(&req); msg != "" {
		config.ErrorStatus(msg, http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := d.DB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"title":     req.Title,
		"category":  req.Category,
		"url":       req.URL,
		"publicId":  req.PublicID,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		config.ErrorStatus("failed to update document", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("document not found", http.StatusNotFound, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, message("document updated", id))
}

// DeleteDocumentHandler removes a document's metadata. The stored file is left
// in Cloudinary.
func (d Document) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "document_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deleted, err := d.DB.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to delete document", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("document not found", http.StatusNotFound, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, message("document deleted", id))
}

// UploadSignatureHandler returns signed parameters so the browser can upload a
// file straight to Cloudinary into a folder per category
func (d Document) UploadSignatureHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UploadSignatureRequest
	if !decodeBody(w, r, &req) {
		return
	}
	category := slug.Make(req.Category)
	if category == "" {
		category = "general"
	}

	sig, err := d.Signer.Sign(uploadRootFolder + "/" + category)
	if err != nil {
		if errors.Is(err, uploads.ErrNotConfigured) {
			config.ErrorStatus("uploads are not available", http.StatusServiceUnavailable, w, err)
			return
		}
		config.ErrorStatus("failed to sign upload", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Debugw("upload signed", "folder", sig.Folder)
	writeJSON(w, http.StatusOK, sig)
}
