package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/checkin"
	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/geofence"
	"github.com/leoportal/leo-portal-api/models"
)

const (
	maxSyncItems       = 500
	maxQueuedClockSkew = 5 * time.Minute
	defaultBoardLimit  = 10
	maxBoardLimit      = 100
)

var (
	errWindowClosed     = errors.New("check-in is not open for this event")
	errLocationRequired = errors.New("location is required for this event")
	errCodeRequired     = errors.New("check-in code required")
	errBadCode          = errors.New("invalid check-in code")
)

// Attendance exported for testing purposes
type Attendance struct {
	DB            databases.AttendanceDatabase
	EDB           databases.EventDatabase
	UDB           databases.UserDatabase
	PDB           databases.PointsDatabase
	CheckIn       *checkin.Issuer
	DefaultRadius float64
}

// verify applies the member check-in rules at time at and returns the method
// the record should carry plus the measured distance when a geofence applies
func (a Attendance) verify(event *models.Event, at time.Time, loc *models.Location, code string) (string, *float64, error) {
	if !event.CheckInOpen(at) {
		return "", nil, errWindowClosed
	}
	method := ""
	if code != "" {
		if err := a.CheckIn.VerifyAt(code, event.ID.Hex(), at); err != nil {
			return "", nil, fmt.Errorf("%w: %v", errBadCode, err)
		}
		method = models.MethodQR
	}
	if !event.HasGeofence() {
		if method == "" {
			return "", nil, errCodeRequired
		}
		return method, nil, nil
	}
	if loc == nil {
		return "", nil, errLocationRequired
	}
	radius := event.RadiusMeters
	if radius == 0 {
		radius = a.DefaultRadius
	}
	d, err := geofence.Check(
		geofence.Point{Lat: event.Location.Lat, Lng: event.Location.Lng},
		geofence.Point{Lat: loc.Lat, Lng: loc.Lng},
		radius,
	)
	if err != nil {
		return "", &d, fmt.Errorf("%w: %.0fm from the venue, limit is %.0fm", err, d, radius)
	}
	if method == "" {
		method = models.MethodGeofence
	}
	return method, &d, nil
}

// insert stores rec. When a record already exists for the same subject the
// stored one is returned with created set to false.
func (a Attendance) insert(ctx context.Context, rec models.AttendanceRecord, subject bson.M) (*models.AttendanceRecord, bool, error) {
	res, err := a.DB.InsertOne(ctx, rec)
	if err == nil {
		rec.ID = insertedID(res)
		return &rec, true, nil
	}
	if !errors.Is(err, databases.ErrAlreadyMarked) {
		return nil, false, err
	}
	existing, ferr := a.DB.FindOne(ctx, subject)
	if ferr != nil {
		return nil, false, fmt.Errorf("failed to load existing record: %w", ferr)
	}
	return existing, false, nil
}

// award records the event points for a newly created member record
func (a Attendance) award(ctx context.Context, event *models.Event, rec *models.AttendanceRecord) {
	if event.Points == 0 || rec.IsVisitor() {
		return
	}
	entry := models.PointsEntry{
		UserID:    rec.UserID,
		UserName:  rec.UserName,
		Points:    event.Points,
		Reason:    "Attended " + event.Title,
		EventID:   event.ID.Hex(),
		AwardedBy: "system",
		CreatedAt: time.Now().UTC(),
	}
	if _, err := a.PDB.InsertOne(ctx, entry); err != nil {
		zap.S().Errorw("failed to award attendance points", "eventId", event.ID.Hex(), "userId", rec.UserID, "error", err)
	}
}

func memberSubject(eventID primitive.ObjectID, userID string) bson.M {
	return bson.M{"eventId": eventID, "userId": userID}
}

func visitorSubject(eventID primitive.ObjectID, key string) bson.M {
	return bson.M{"eventId": eventID, "visitorKey": key}
}

func writeAlreadyMarked(w http.ResponseWriter, rec *models.AttendanceRecord) {
	zap.S().Infow("attendance already marked", "eventId", rec.EventID.Hex(), "recordId", rec.ID.Hex())
	writeJSON(w, http.StatusConflict, models.AlreadyMarkedResponse{
		Response: models.MessageError{Message: "already marked", Error: databases.ErrAlreadyMarked.Error()},
		Record:   rec,
	})
}

func validLocation(loc *models.Location) bool {
	return loc == nil || (geofence.Point{Lat: loc.Lat, Lng: loc.Lng}).Valid()
}

func (a Attendance) approvedUser(ctx context.Context, userID string) (*models.User, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, err
	}
	return a.UDB.FindOne(ctx, bson.M{"_id": id, "status": models.StatusApproved})
}

// MarkAttendanceHandler marks the caller present at an event
func (a Attendance) MarkAttendanceHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(w, r, "event_id")
	if !ok {
		return
	}
	var req models.MarkAttendanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validLocation(req.Location) {
		config.ErrorStatus("location is not a valid coordinate", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	event, err := a.EDB.FindOne(ctx, bson.M{"_id": eventID})
	if err != nil {
		config.ErrorStatus("failed to get event by ID", lookupStatus(err), w, err)
		return
	}

	now := time.Now().UTC()
	method, distance, err := a.verify(event, now, req.Location, req.CheckInToken)
	if err != nil {
		config.ErrorStatus("attendance rejected", http.StatusUnprocessableEntity, w, err)
		return
	}

	user, err := a.approvedUser(ctx, p.UserID)
	if err != nil {
		config.ErrorStatus("failed to get user by ID", lookupStatus(err), w, err)
		return
	}

	rec := models.AttendanceRecord{
		EventID:        eventID,
		UserID:         p.UserID,
		UserName:       user.Name,
		Method:         method,
		Location:       req.Location,
		DistanceMeters: distance,
		MarkedAt:       now,
		MarkedBy:       p.UserID,
	}
	saved, created, err := a.insert(ctx, rec, memberSubject(eventID, p.UserID))
	if err != nil {
		config.ErrorStatus("failed to mark attendance", http.StatusInternalServerError, w, err)
		return
	}
	if !created {
		writeAlreadyMarked(w, saved)
		return
	}
	a.award(ctx, event, saved)

	zap.S().Infow("attendance marked", "eventId", eventID.Hex(), "userId", p.UserID, "method", method)
	writeJSON(w, http.StatusCreated, saved)
}

// MarkVisitorHandler records a guest by name. Members may only do this while
// check-in is open; admins at any time.
func (a Attendance) MarkVisitorHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(w, r, "event_id")
	if !ok {
		return
	}
	var req models.VisitorAttendanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	key := models.VisitorKeyFor(req.Name)
	if key == "" {
		config.ErrorStatus("visitor name is required", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	event, err := a.EDB.FindOne(ctx, bson.M{"_id": eventID})
	if err != nil {
		config.ErrorStatus("failed to get event by ID", lookupStatus(err), w, err)
		return
	}
	now := time.Now().UTC()
	if !p.IsAdmin() && !event.CheckInOpen(now) {
		config.ErrorStatus("attendance rejected", http.StatusUnprocessableEntity, w, errWindowClosed)
		return
	}

	rec := models.AttendanceRecord{
		EventID:        eventID,
		VisitorName:    strings.TrimSpace(req.Name),
		VisitorKey:     key,
		VisitorContact: strings.TrimSpace(req.Contact),
		Method:         models.MethodManual,
		MarkedAt:       now,
		MarkedBy:       p.UserID,
	}
	saved, created, err := a.insert(ctx, rec, visitorSubject(eventID, key))
	if err != nil {
		config.ErrorStatus("failed to mark visitor attendance", http.StatusInternalServerError, w, err)
		return
	}
	if !created {
		writeAlreadyMarked(w, saved)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// ManualMarkHandler lets an admin mark a member present without any geofence
// or time window check
func (a Attendance) ManualMarkHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(w, r, "event_id")
	if !ok {
		return
	}
	var req models.ManualAttendanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := primitive.ObjectIDFromHex(req.UserID); err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	event, err := a.EDB.FindOne(ctx, bson.M{"_id": eventID})
	if err != nil {
		config.ErrorStatus("failed to get event by ID", lookupStatus(err), w, err)
		return
	}
	user, err := a.approvedUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("user is not an approved member", http.StatusUnprocessableEntity, w, err)
			return
		}
		config.ErrorStatus("failed to get user by ID", http.StatusInternalServerError, w, err)
		return
	}

	rec := models.AttendanceRecord{
		EventID:  eventID,
		UserID:   req.UserID,
		UserName: user.Name,
		Method:   models.MethodManual,
		MarkedAt: time.Now().UTC(),
		MarkedBy: p.UserID,
	}
	saved, created, err := a.insert(ctx, rec, memberSubject(eventID, req.UserID))
	if err != nil {
		config.ErrorStatus("failed to mark attendance", http.StatusInternalServerError, w, err)
		return
	}
	if !created {
		writeAlreadyMarked(w, saved)
		return
	}
	a.award(ctx, event, saved)
	writeJSON(w, http.StatusCreated, saved)
}

// SyncHandler stores a batch of marks queued while the client was offline.
// Every item is checked against the event as it was at QueuedAt and reported
// on its own; one bad item never fails the batch.
func (a Attendance) SyncHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.SyncRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		config.ErrorStatus("no items to sync", http.StatusBadRequest, w, nil)
		return
	}
	if len(req.Items) > maxSyncItems {
		config.ErrorStatus(fmt.Sprintf("at most %d items can be synced at once", maxSyncItems), http.StatusRequestEntityTooLarge, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := a.approvedUser(ctx, p.UserID)
	if err != nil {
		config.ErrorStatus("failed to get user by ID", lookupStatus(err), w, err)
		return
	}

	events := map[string]*models.Event{}
	now := time.Now().UTC()
	resp := models.SyncResponse{Results: make([]models.SyncResult, 0, len(req.Items))}

	for _, item := range req.Items {
		res := a.syncOne(ctx, item, user, p.UserID, events, now)
		switch res.Status {
		case models.SyncCreated:
			resp.Created++
		case models.SyncDuplicate:
			resp.Duplicate++
		default:
			resp.Rejected++
		}
		resp.Results = append(resp.Results, res)
	}

	zap.S().Infow("attendance synced",
		"userId", p.UserID,
		"created", resp.Created,
		"duplicate", resp.Duplicate,
		"rejected", resp.Rejected,
	)
	writeJSON(w, http.StatusOK, resp)
}

func (a Attendance) syncOne(ctx context.Context, item models.SyncItem, user *models.User, callerID string, events map[string]*models.Event, now time.Time) models.SyncResult {
	res := models.SyncResult{EventID: item.EventID, QueuedAt: item.QueuedAt.UTC().Format(time.RFC3339Nano)}
	reject := func(reason string) models.SyncResult {
		res.Status = models.SyncRejected
		res.Reason = reason
		return res
	}

	eventID, err := primitive.ObjectIDFromHex(item.EventID)
	if err != nil {
		return reject("invalid event id")
	}
	if item.QueuedAt.IsZero() {
		return reject("queuedAt is required")
	}
	if item.QueuedAt.After(now.Add(maxQueuedClockSkew)) {
		return reject("queuedAt is in the future")
	}
	if !validLocation(item.Location) {
		return reject("location is not a valid coordinate")
	}

	event, ok := events[item.EventID]
	if !ok {
		event, err = a.EDB.FindOne(ctx, bson.M{"_id": eventID})
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return reject("event not found")
			}
			zap.S().Errorw("failed to load event for sync", "eventId", item.EventID, "error", err)
			return reject("failed to load event")
		}
		events[item.EventID] = event
	}

	queuedAt := item.QueuedAt.UTC()
	rec := models.AttendanceRecord{
		EventID:  eventID,
		Method:   models.MethodOffline,
		Location: item.Location,
		MarkedAt: now,
		MarkedBy: callerID,
		QueuedAt: &queuedAt,
	}
	var subject bson.M
	if item.VisitorName != "" {
		key := models.VisitorKeyFor(item.VisitorName)
		if key == "" {
			return reject("visitor name is required")
		}
		if !event.CheckInOpen(queuedAt) {
			return reject(errWindowClosed.Error())
		}
		rec.VisitorName = strings.TrimSpace(item.VisitorName)
		rec.VisitorKey = key
		subject = visitorSubject(eventID, key)
	} else {
		_, distance, err := a.verify(event, queuedAt, item.Location, item.CheckInToken)
		if err != nil {
			return reject(err.Error())
		}
		rec.UserID = callerID
		rec.UserName = user.Name
		rec.DistanceMeters = distance
		subject = memberSubject(eventID, callerID)
	}

	saved, created, err := a.insert(ctx, rec, subject)
	if err != nil {
		zap.S().Errorw("failed to store synced attendance", "eventId", item.EventID, "error", err)
		return reject("failed to store record")
	}
	res.RecordID = saved.ID.Hex()
	if !created {
		res.Status = models.SyncDuplicate
		return res
	}
	a.award(ctx, event, saved)
	res.Status = models.SyncCreated
	return res
}

// EventAttendanceHandler lists everyone marked present at an event
func (a Attendance) EventAttendanceHandler(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "event_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	records, err := a.DB.Find(ctx, bson.M{"eventId": eventID}, options.Find().SetSort(bson.D{{Key: "markedAt", Value: 1}}))
	if err != nil {
		config.ErrorStatus("failed to get attendance", http.StatusInternalServerError, w, err)
		return
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// UserAttendanceHandler lists a member's attendance history. Members can only
// see their own.
func (a Attendance) UserAttendanceHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	if userID.Hex() != p.UserID && !p.IsAdmin() {
		config.ErrorStatus("cannot view another member's attendance", http.StatusForbidden, w, nil)
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	records, err := a.DB.Find(ctx, bson.M{"userId": userID.Hex()}, options.Find().SetSort(bson.D{{Key: "markedAt", Value: -1}}))
	if err != nil {
		config.ErrorStatus("failed to get attendance", http.StatusInternalServerError, w, err)
		return
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// boardLimit reads ?limit for leaderboards
func boardLimit(r *http.Request) int64 {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultBoardLimit
	}
	if limit > maxBoardLimit {
		return maxBoardLimit
	}
	return int64(limit)
}

// LeaderboardHandler ranks members by attendance count, optionally since a date
func (a Attendance) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			config.ErrorStatus("since must be a date", http.StatusBadRequest, w, err)
			return
		}
		since = t
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	entries, err := a.DB.Leaderboard(ctx, since, boardLimit(r))
	if err != nil {
		config.ErrorStatus("failed to build leaderboard", http.StatusInternalServerError, w, err)
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
