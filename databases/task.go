package databases

// go generate: mockery --name TaskDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/leoportal/leo-portal-api/models"
)

const taskName = "tasks"

// TaskDatabase contains the methods to use with the task database
type TaskDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Task, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Task, error)
	CountDocuments(context.Context, interface{}) (int64, error)
	InsertOne(context.Context, models.Task) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(context.Context, interface{}) (int64, error)
}

type taskDatabase struct {
	db DatabaseHelper
}

// NewTaskDatabase initializes a new instance of task database with the provided db connection
func NewTaskDatabase(db DatabaseHelper) TaskDatabase {
	return &taskDatabase{
		db: db,
	}
}

func (c *taskDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Task, error) {
	doc := &models.Task{}
	err := c.db.Collection(taskName).FindOne(ctx, filter, opts...).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *taskDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Task, error) {
	var docs []models.Task
	cr, err := c.db.Collection(taskName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&docs)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *taskDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(taskName).CountDocuments(ctx, filter)
}

func (c *taskDatabase) InsertOne(ctx context.Context, doc models.Task) (InsertOneResultHelper, error) {
	return c.db.Collection(taskName).InsertOne(ctx, doc)
}

func (c *taskDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(taskName).UpdateOne(ctx, filter, update, opts...)
}

func (c *taskDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(taskName).DeleteOne(ctx, filter)
}
