package databases

// go generate: mockery --name EventDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/leoportal/leo-portal-api/models"
)

const eventName = "events"

// EventDatabase contains the methods to use with the event database
type EventDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Event, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Event, error)
	CountDocuments(context.Context, interface{}) (int64, error)
	InsertOne(context.Context, models.Event) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(context.Context, interface{}) (int64, error)
}

type eventDatabase struct {
	db DatabaseHelper
}

// NewEventDatabase initializes a new instance of event database with the provided db connection
func NewEventDatabase(db DatabaseHelper) EventDatabase {
	return &eventDatabase{
		db: db,
	}
}

func (c *eventDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Event, error) {
	doc := &models.Event{}
	err := c.db.Collection(eventName).FindOne(ctx, filter, opts...).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *eventDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Event, error) {
	var docs []models.Event
	cr, err := c.db.Collection(eventName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&docs)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *eventDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(eventName).CountDocuments(ctx, filter)
}

func (c *eventDatabase) InsertOne(ctx context.Context, doc models.Event) (InsertOneResultHelper, error) {
	return c.db.Collection(eventName).InsertOne(ctx, doc)
}

func (c *eventDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(eventName).UpdateOne(ctx, filter, update, opts...)
}

func (c *eventDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(eventName).DeleteOne(ctx, filter)
}
