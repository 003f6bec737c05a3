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

// PushToken exported for testing purposes
type PushToken struct {
	DB databases.PushTokenDatabase
}

func validPlatform(p string) bool {
	return p == "ios" || p == "android" || p == "web"
}

// RegisterPushTokenHandler stores an Expo push token for the caller. A token
// is unique per device, so registering it again moves it to the new owner.
func (pt PushToken) RegisterPushTokenHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.PushTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if !strings.HasPrefix(req.Token, "ExponentPushToken[") && !strings.HasPrefix(req.Token, "ExpoPushToken[") {
		config.ErrorStatus("token must be an Expo push token", http.StatusBadRequest, w, nil)
		return
	}
	if req.Platform == "" {
		req.Platform = "web"
	}
	if !validPlatform(req.Platform) {
		config.ErrorStatus("platform must be ios, android or web", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := primitive.NewDateTimeFromTime(time.Now())
	update := bson.M{
		"$set":         bson.M{"userId": p.UserID, "platform": req.Platform, "updatedAt": now},
		"$setOnInsert": bson.M{"token": req.Token, "createdAt": now},
	}
	_, err := pt.DB.UpdateOne(ctx, bson.M{"token": req.Token}, update, options.Update().SetUpsert(true))
	if err != nil {
		config.ErrorStatus("failed to register push token", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Debugw("push token registered", "userId", p.UserID, "platform", req.Platform)
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "push token registered"})
}

// UnregisterPushTokenHandler removes one of the caller's tokens, or all of them
// when no token is given
func (pt PushToken) UnregisterPushTokenHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if token == "" {
		removed, err := pt.DB.DeleteMany(ctx, bson.M{"userId": p.UserID})
		if err != nil {
			config.ErrorStatus("failed to remove push tokens", http.StatusInternalServerError, w, err)
			return
		}
		zap.S().Debugw("push tokens removed", "userId", p.UserID, "count", removed)
		writeJSON(w, http.StatusOK, models.MessageResponse{Message: "push tokens removed"})
		return
	}

	deleted, err := pt.DB.DeleteOne(ctx, bson.M{"token": token, "userId": p.UserID})
	if err != nil {
		config.ErrorStatus("failed to remove push token", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("push token not found", http.StatusNotFound, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "push token removed"})
}
