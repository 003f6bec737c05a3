package databases

// go generate: mockery --name CommunicationGroupDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/leoportal/leo-portal-api/models"
)

const communicationGroupName = "communicationGroups"

// CommunicationGroupDatabase contains the methods to use with the communication group database
type CommunicationGroupDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.CommunicationGroup, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.CommunicationGroup, error)
	CountDocuments(context.Context, interface{}) (int64, error)
	InsertOne(context.Context, models.CommunicationGroup) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(context.Context, interface{}) (int64, error)
}

type communicationGroupDatabase struct {
	db DatabaseHelper
}

// NewCommunicationGroupDatabase initializes a new instance of communication group database with the provided db connection
func NewCommunicationGroupDatabase(db DatabaseHelper) CommunicationGroupDatabase {
	return &communicationGroupDatabase{
		db: db,
	}
}

func (c *communicationGroupDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.CommunicationGroup, error) {
	doc := &models.CommunicationGroup{}
	err := c.db.Collection(communicationGroupName).FindOne(ctx, filter, opts...).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *communicationGroupDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CommunicationGroup, error) {
	var docs []models.CommunicationGroup
	cr, err := c.db.Collection(communicationGroupName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&docs)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *communicationGroupDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(communicationGroupName).CountDocuments(ctx, filter)
}

func (c *communicationGroupDatabase) InsertOne(ctx context.Context, doc models.CommunicationGroup) (InsertOneResultHelper, error) {
	return c.db.Collection(communicationGroupName).InsertOne(ctx, doc)
}

func (c *communicationGroupDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(communicationGroupName).UpdateOne(ctx, filter, update, opts...)
}

func (c *communicationGroupDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(communicationGroupName).DeleteOne(ctx, filter)
}
