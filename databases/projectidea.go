package databases

// go generate: mockery --name ProjectIdeaDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/leoportal/leo-portal-api/models"
)

const projectIdeaName = "projectIdeas"

// ProjectIdeaDatabase contains the methods to use with the project idea database
type ProjectIdeaDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.ProjectIdea, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.ProjectIdea, error)
	CountDocuments(context.Context, interface{}) (int64, error)
	InsertOne(context.Context, models.ProjectIdea) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(context.Context, interface{}) (int64, error)
}

type projectIdeaDatabase struct {
	db DatabaseHelper
}

// NewProjectIdeaDatabase initializes a new instance of project idea database with the provided db connection
func NewProjectIdeaDatabase(db DatabaseHelper) ProjectIdeaDatabase {
	return &projectIdeaDatabase{
		db: db,
	}
}

func (c *projectIdeaDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.ProjectIdea, error) {
	doc := &models.ProjectIdea{}
	err := c.db.Collection(projectIdeaName).FindOne(ctx, filter, opts...).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *projectIdeaDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ProjectIdea, error) {
	var docs []models.ProjectIdea
	cr, err := c.db.Collection(projectIdeaName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&docs)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *projectIdeaDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(projectIdeaName).CountDocuments(ctx, filter)
}

func (c *projectIdeaDatabase) InsertOne(ctx context.Context, doc models.ProjectIdea) (InsertOneResultHelper, error) {
	return c.db.Collection(projectIdeaName).InsertOne(ctx, doc)
}

func (c *projectIdeaDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(projectIdeaName).UpdateOne(ctx, filter, update, opts...)
}

func (c *projectIdeaDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(projectIdeaName).DeleteOne(ctx, filter)
}
