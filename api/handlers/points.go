package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/models"
)

// Points exported for testing purposes
type Points struct {
	DB  databases.PointsDatabase
	UDB databases.UserDatabase
}

// AwardPointsHandler adds or removes points for a member. Negative values are
// allowed for corrections.
func (pt Points) AwardPointsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.PointsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	uID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	if req.Points == 0 {
		config.ErrorStatus("points must not be zero", http.StatusBadRequest, w, nil)
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		config.ErrorStatus("reason is required", http.StatusBadRequest, w, nil)
		return
	}
	if req.EventID != "" {
		if _, err := primitive.ObjectIDFromHex(req.EventID); err != nil {
			config.ErrorStatus("eventId is not a valid id", http.StatusBadRequest, w, err)
			return
		}
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := pt.UDB.FindOne(ctx, bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", lookupStatus(err), w, err)
		return
	}

	entry := models.PointsEntry{
		UserID:    req.UserID,
		UserName:  user.Name,
		Points:    req.Points,
		Reason:    req.Reason,
		EventID:   req.EventID,
		AwardedBy: p.UserID,
		CreatedAt: time.Now().UTC(),
	}
	res, err := pt.DB.InsertOne(ctx, entry)
	if err != nil {
		config.ErrorStatus("failed to award points", http.StatusInternalServerError, w, err)
		return
	}
	entry.ID = insertedID(res)
	zap.S().Infow("points awarded", "userId", req.UserID, "points", req.Points, "awardedBy", p.UserID)
	writeJSON(w, http.StatusCreated, entry)
}

// DeletePointsHandler removes a points entry
func (pt Points) DeletePointsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "entry_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deleted, err := pt.DB.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to delete points entry", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("points entry not found", http.StatusNotFound, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, message("points entry deleted", id))
}

// UserPointsHandler returns a member's points history. Members can only see
// their own.
func (pt Points) UserPointsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	if userID.Hex() != p.UserID && !p.IsAdmin() {
		config.ErrorStatus("cannot view another member's points", http.StatusForbidden, w, nil)
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	entries, err := pt.DB.Find(ctx, bson.M{"userId": userID.Hex()}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		config.ErrorStatus("failed to get points", http.StatusInternalServerError, w, err)
		return
	}
	history := models.PointsHistory{UserID: userID.Hex(), Entries: []models.PointsEntry{}}
	for _, e := range entries {
		history.Total += e.Points
		history.Entries = append(history.Entries, e)
	}
	writeJSON(w, http.StatusOK, history)
}

// LeaderboardHandler ranks members by total points
func (pt Points) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	entries, err := pt.DB.Leaderboard(ctx, boardLimit(r))
	if err != nil {
		config.ErrorStatus("failed to build leaderboard", http.StatusInternalServerError, w, err)
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
