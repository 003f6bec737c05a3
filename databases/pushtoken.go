package databases

// go generate: mockery --name PushTokenDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/leoportal/leo-portal-api/models"
)

const pushTokenCollectionName = "pushtokens"

// PushTokenDatabase contains the methods to use with the push token database
type PushTokenDatabase interface {
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.PushToken, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(context.Context, interface{}) (int64, error)
	DeleteMany(context.Context, interface{}) (int64, error)
}

type pushTokenDatabase struct {
	db DatabaseHelper
}

// NewPushTokenDatabase initializes a new instance of push token database with the provided db connection
func NewPushTokenDatabase(db DatabaseHelper) PushTokenDatabase {
	return &pushTokenDatabase{
		db: db,
	}
}

func (pt *pushTokenDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.PushToken, error) {
	var tokens []models.PushToken
	cur, err := pt.db.Collection(pushTokenCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&tokens)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (pt *pushTokenDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return pt.db.Collection(pushTokenCollectionName).UpdateOne(ctx, filter, update, opts...)
}

func (pt *pushTokenDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return pt.db.Collection(pushTokenCollectionName).DeleteOne(ctx, filter)
}

func (pt *pushTokenDatabase) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	return pt.db.Collection(pushTokenCollectionName).DeleteMany(ctx, filter)
}
