package databases

// go generate: mockery --name PointsDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/leoportal/leo-portal-api/models"
)

const pointsName = "pointsEntries"

// PointsDatabase contains the methods to use with the points database
type PointsDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.PointsEntry, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.PointsEntry, error)
	InsertOne(context.Context, models.PointsEntry) (InsertOneResultHelper, error)
	DeleteOne(context.Context, interface{}) (int64, error)
	Leaderboard(ctx context.Context, limit int64) ([]models.LeaderboardEntry, error)
}

type pointsDatabase struct {
	db DatabaseHelper
}

// NewPointsDatabase initializes a new instance of points database with the provided db connection
func NewPointsDatabase(db DatabaseHelper) PointsDatabase {
	return &pointsDatabase{
		db: db,
	}
}

func (p *pointsDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.PointsEntry, error) {
	entry := &models.PointsEntry{}
	err := p.db.Collection(pointsName).FindOne(ctx, filter, opts...).Decode(&entry)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (p *pointsDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.PointsEntry, error) {
	var entries []models.PointsEntry
	cr, err := p.db.Collection(pointsName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *pointsDatabase) InsertOne(ctx context.Context, entry models.PointsEntry) (InsertOneResultHelper, error) {
	return p.db.Collection(pointsName).InsertOne(ctx, entry)
}

func (p *pointsDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return p.db.Collection(pointsName).DeleteOne(ctx, filter)
}

// Leaderboard sums points per member, highest first
func (p *pointsDatabase) Leaderboard(ctx context.Context, limit int64) ([]models.LeaderboardEntry, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$userId",
			"name":  bson.M{"$last": "$userName"},
			"total": bson.M{"$sum": "$points"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}
	cr, err := p.db.Collection(pointsName).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var entries []models.LeaderboardEntry
	if err := cr.Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}
