package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/mailer"
	"github.com/leoportal/leo-portal-api/models"
)

// Communication exported for testing purposes
type Communication struct {
	DB     databases.CommunicationGroupDatabase
	UDB    databases.UserDatabase
	Mailer mailer.Mailer
}

// validateGroup trims the request, removes duplicate member ids and returns the
// group slug
func validateGroup(req *models.CommunicationGroupRequest) (string, string) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "", "name is required"
	}
	s := slug.Make(req.Name)
	if s == "" {
		return "", "name must contain letters or digits"
	}
	seen := map[string]bool{}
	members := make([]string, 0, len(req.MemberIDs))
	for _, id := range req.MemberIDs {
		if _, err := primitive.ObjectIDFromHex(id); err != nil {
			return "", "memberIds contains an invalid id: " + id
		}
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	req.MemberIDs = members
	return s, ""
}

// CreateGroupHandler creates a mailing group. Names must be unique by slug.
func (c Communication) CreateGroupHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.CommunicationGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, msg := validateGroup(&req)
	if msg != "" {
		config.ErrorStatus(msg, http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()
	group := models.CommunicationGroup{
		Name:        req.Name,
		Slug:        s,
		Description: strings.TrimSpace(req.Description),
		MemberIDs:   req.MemberIDs,
		CreatedBy:   p.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := c.DB.InsertOne(ctx, group)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			config.ErrorStatus("a group with this name already exists", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to create group", http.StatusInternalServerError, w, err)
		return
	}
	group.ID = insertedID(res)
	writeJSON(w, http.StatusCreated, group)
}

// ListGroupsHandler lists mailing groups by name
func (c Communication) ListGroupsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	groups, err := c.DB.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		config.ErrorStatus("failed to get groups", http.StatusInternalServerError, w, err)
		return
	}
	if groups == nil {
		groups = []models.CommunicationGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// GroupByIDHandler returns a group given a groupID
func (c Communication) GroupByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "group_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	group, err := c.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get group by ID", lookupStatus(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// UpdateGroupHandler renames a group or replaces its members
func (c Communication) UpdateGroupHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "group_id")
	if !ok {
		return
	}
	var req models.CommunicationGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, msg := validateGroup(&req)
	if msg != "" {
		config.ErrorStatus(msg, http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := c.DB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"name":        req.Name,
		"slug":        s,
		"description": strings.TrimSpace(req.Description),
		"memberIds":   req.MemberIDs,
		"updatedAt":   time.Now().UTC(),
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			config.ErrorStatus("a group with this name already exists", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to update group", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("group not found", http.StatusNotFound, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, message("group updated", id))
}

// DeleteGroupHandler removes a group
func (c Communication) DeleteGroupHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "group_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deleted, err := c.DB.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to delete group", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("group not found", http.StatusNotFound, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, message("group deleted", id))
}

// audience resolves the approved members a bulk email goes to
func (c Communication) audience(r *http.Request, req models.BulkEmailRequest) (bson.M, int, string) {
	selectors := 0
	if req.GroupID != "" {
		selectors++
	}
	if req.Role != "" {
		selectors++
	}
	if req.All {
		selectors++
	}
	if selectors != 1 {
		return nil, http.StatusBadRequest, "exactly one of groupId, role or all must be set"
	}

	filter := bson.M{"status": models.StatusApproved}
	switch {
	case req.Role != "":
		if !models.ValidRole(req.Role) {
			return nil, http.StatusBadRequest, "invalid role"
		}
		filter["role"] = req.Role
	case req.GroupID != "":
		gID, err := primitive.ObjectIDFromHex(req.GroupID)
		if err != nil {
			return nil, http.StatusBadRequest, "groupId is not a valid id"
		}
		ctx, cancel := api.WithQueryTimeout(r.Context())
		defer cancel()
		group, err := c.DB.FindOne(ctx, bson.M{"_id": gID})
		if err != nil {
			return nil, lookupStatus(err), "failed to get group by ID"
		}
		ids := make([]primitive.ObjectID, 0, len(group.MemberIDs))
		for _, m := range group.MemberIDs {
			if oid, err := primitive.ObjectIDFromHex(m); err == nil {
				ids = append(ids, oid)
			}
		}
		filter["_id"] = bson.M{"$in": ids}
	}
	return filter, 0, ""
}

// SendHandler emails a markdown message to a group, a role or every approved
// member and reports how many deliveries succeeded
func (c Communication) SendHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.BulkEmailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" || strings.TrimSpace(req.Body) == "" {
		config.ErrorStatus("subject and body are required", http.StatusBadRequest, w, nil)
		return
	}
	filter, status, msg := c.audience(r, req)
	if msg != "" {
		config.ErrorStatus(msg, status, w, nil)
		return
	}

	email, err := mailer.MarkdownMessage(req.Subject, req.Body)
	if err != nil {
		config.ErrorStatus("failed to render message", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	users, err := c.UDB.Find(ctx, filter)
	cancel()
	if err != nil {
		config.ErrorStatus("failed to get recipients", http.StatusInternalServerError, w, err)
		return
	}
	if len(users) == 0 {
		config.ErrorStatus("no recipients match", http.StatusUnprocessableEntity, w, nil)
		return
	}

	recipients := make([]mailer.Recipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, mailer.Recipient{Name: u.Name, Email: u.Email})
	}
	res := mailer.SendAll(r.Context(), c.Mailer, recipients, email)

	zap.S().Infow("bulk email sent",
		"sentBy", p.UserID,
		"subject", req.Subject,
		"recipients", res.Recipients,
		"sent", res.Sent,
		"failed", res.Failed,
	)
	writeJSON(w, http.StatusOK, models.BulkEmailResponse{Recipients: res.Recipients, Sent: res.Sent, Failed: res.Failed})
}
