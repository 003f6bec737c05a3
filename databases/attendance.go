package databases

// go generate: mockery --name AttendanceDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/leoportal/leo-portal-api/models"
)

const attendanceName = "attendance"

// AttendanceDatabase contains the methods to use with the attendance database.
// Records are insert only, there is deliberately no update method.
type AttendanceDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.AttendanceRecord, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.AttendanceRecord, error)
	CountDocuments(context.Context, interface{}) (int64, error)
	InsertOne(context.Context, models.AttendanceRecord) (InsertOneResultHelper, error)
	DeleteMany(context.Context, interface{}) (int64, error)
	Leaderboard(ctx context.Context, since time.Time, limit int64) ([]models.LeaderboardEntry, error)
}

type attendanceDatabase struct {
	db DatabaseHelper
}

// NewAttendanceDatabase initializes a new instance of attendance database with the provided db connection
func NewAttendanceDatabase(db DatabaseHelper) AttendanceDatabase {
	return &attendanceDatabase{
		db: db,
	}
}

func (a *attendanceDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.AttendanceRecord, error) {
	rec := &models.AttendanceRecord{}
	err := a.db.Collection(attendanceName).FindOne(ctx, filter, opts...).Decode(&rec)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (a *attendanceDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.AttendanceRecord, error) {
	var recs []models.AttendanceRecord
	cr, err := a.db.Collection(attendanceName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&recs)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (a *attendanceDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return a.db.Collection(attendanceName).CountDocuments(ctx, filter)
}

// InsertOne stores a record. The unique (event, user) and (event, visitor) indexes
// turn a racing second mark into ErrAlreadyMarked.
func (a *attendanceDatabase) InsertOne(ctx context.Context, rec models.AttendanceRecord) (InsertOneResultHelper, error) {
	res, err := a.db.Collection(attendanceName).InsertOne(ctx, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrAlreadyMarked
		}
		return nil, err
	}
	return res, nil
}

func (a *attendanceDatabase) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	return a.db.Collection(attendanceName).DeleteMany(ctx, filter)
}

// Leaderboard counts member attendance since the given time, most active first
func (a *attendanceDatabase) Leaderboard(ctx context.Context, since time.Time, limit int64) ([]models.LeaderboardEntry, error) {
	match := bson.M{"userId": bson.M{"$exists": true, "$ne": ""}}
	if !since.IsZero() {
		match["markedAt"] = bson.M{"$gte": since}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$userId",
			"name":  bson.M{"$last": "$userName"},
			"total": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}
	cr, err := a.db.Collection(attendanceName).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var entries []models.LeaderboardEntry
	if err := cr.Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}
