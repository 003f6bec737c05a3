package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/checkin"
	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/geofence"
	"github.com/leoportal/leo-portal-api/models"
	"github.com/leoportal/leo-portal-api/triggers"
)

// Event exported for testing purposes
type Event struct {
	DB            databases.EventDatabase
	ADB           databases.AttendanceDatabase
	Hooks         triggers.Hooks
	CheckIn       *checkin.Issuer
	DefaultRadius float64
}

// validate checks an event request and fills in the default radius
func (e Event) validate(req *models.EventRequest) string {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required"
	}
	if !models.ValidEventType(req.Type) {
		return "type must be one of meeting, project, fundraiser or social"
	}
	if req.StartsAt.IsZero() || req.EndsAt.IsZero() {
		return "startsAt and endsAt are required"
	}
	if !req.EndsAt.After(req.StartsAt) {
		return "endsAt must be after startsAt"
	}
	if req.Points < 0 {
		return "points must not be negative"
	}
	if req.RadiusMeters < 0 {
		return "radiusMeters must not be negative"
	}
	if req.Location != nil {
		if !(geofence.Point{Lat: req.Location.Lat, Lng: req.Location.Lng}).Valid() {
			return "location is not a valid coordinate"
		}
		if req.RadiusMeters == 0 {
			req.RadiusMeters = e.DefaultRadius
		}
	} else {
		req.RadiusMeters = 0
	}
	return ""
}

// CreateEventHandler creates an event and notifies members
func (e Event) CreateEventHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.EventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := e.validate(&req); msg != "" {
		config.ErrorStatus(msg, http.StatusBadRequest, w, nil)
		return
	}

	now := time.Now().UTC()
	event := models.Event{
		Title:        req.Title,
		Description:  req.Description,
		Type:         req.Type,
		Venue:        strings.TrimSpace(req.Venue),
		StartsAt:     req.StartsAt.UTC(),
		EndsAt:       req.EndsAt.UTC(),
		Location:     req.Location,
		RadiusMeters: req.RadiusMeters,
		Points:       req.Points,
		CreatedBy:    p.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := e.DB.InsertOne(ctx, event)
	if err != nil {
		config.ErrorStatus("failed to create event", http.StatusInternalServerError, w, err)
		return
	}
	event.ID = insertedID(res)

	zap.S().Infow("event created", "eventId", event.ID.Hex(), "createdBy", p.UserID)
	e.Hooks.EventCreated(event)

	writeJSON(w, http.StatusCreated, event)
}

// ListEventsHandler lists events. when=upcoming returns events that have not
// ended yet soonest first; when=past returns finished events latest first.
func (e Event) ListEventsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := bson.M{}
	sort := 1
	now := time.Now().UTC()
	switch q.Get("when") {
	case "upcoming":
		filter["endsAt"] = bson.M{"$gte": now}
	case "past":
		filter["endsAt"] = bson.M{"$lt": now}
		sort = -1
	case "":
	default:
		config.ErrorStatus("when must be upcoming or past", http.StatusBadRequest, w, nil)
		return
	}
	if t := q.Get("type"); t != "" {
		filter["type"] = t
	}

	page := databases.NewPaginate(q)
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	total, err := e.DB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count events", http.StatusInternalServerError, w, err)
		return
	}
	events, err := e.DB.Find(ctx, filter, page.FindOptions().SetSort(bson.D{{Key: "startsAt", Value: sort}}))
	if err != nil {
		config.ErrorStatus("failed to get events", http.StatusInternalServerError, w, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, PaginatedResponse{Page: page.Page, Limit: page.Limit, TotalCount: total, Data: events})
}

// EventByIDHandler returns an event given an eventID
func (e Event) EventByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "event_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	event, err := e.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get event by ID", lookupStatus(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// UpdateEventHandler replaces the editable fields of an event. Moving the start
// time re-arms the reminder job.
func (e Event) UpdateEventHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "event_id")
	if !ok {
		return
	}
	var req models.EventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := e.validate(&req); msg != "" {
		config.ErrorStatus(msg, http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	existing, err := e.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get event by ID", lookupStatus(err), w, err)
		return
	}

	set := bson.M{
		"title":        req.Title,
		"description":  req.Description,
		"type":         req.Type,
		"venue":        strings.TrimSpace(req.Venue),
		"startsAt":     req.StartsAt.UTC(),
		"endsAt":       req.EndsAt.UTC(),
		"radiusMeters": req.RadiusMeters,
		"points":       req.Points,
		"updatedAt":    time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if req.Location != nil {
		set["location"] = req.Location
	} else {
		update["$unset"] = bson.M{"location": ""}
	}
	if !existing.StartsAt.Equal(req.StartsAt) {
		set["reminderSent"] = false
	}

	if _, err := e.DB.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		config.ErrorStatus("failed to update event", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, message("event updated", id))
}

// DeleteEventHandler removes an event together with its attendance records
func (e Event) DeleteEventHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "event_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deleted, err := e.DB.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to delete event", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("event not found", http.StatusNotFound, w, nil)
		return
	}
	removed, err := e.ADB.DeleteMany(ctx, bson.M{"eventId": id})
	if err != nil {
		zap.S().Errorw("failed to delete attendance for event", "eventId", id.Hex(), "error", err)
	}
	zap.S().Infow("event deleted", "eventId", id.Hex(), "attendanceRemoved", removed)
	writeJSON(w, http.StatusOK, message("event deleted", id))
}

// CheckInCodeHandler returns the signed check-in code for an event as a PNG QR
// code, or as JSON with ?format=json
func (e Event) CheckInCodeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "event_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	event, err := e.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get event by ID", lookupStatus(err), w, err)
		return
	}

	code, err := e.CheckIn.Sign(id.Hex(), event.EndsAt.Add(models.CheckInGrace))
	if err != nil {
		config.ErrorStatus("failed to sign check-in code", http.StatusInternalServerError, w, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, map[string]string{"code": code})
		return
	}

	png, err := checkin.QRCode(code)
	if err != nil {
		config.ErrorStatus("failed to render check-in code", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
