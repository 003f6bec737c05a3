package databases

// go generate: mockery --name DocumentDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/leoportal/leo-portal-api/models"
)

const documentName = "documents"

// DocumentDatabase contains the methods to use with the document database
type DocumentDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Document, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Document, error)
	CountDocuments(context.Context, interface{}) (int64, error)
	InsertOne(context.Context, models.Document) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(context.Context, interface{}) (int64, error)
}

type documentDatabase struct {
	db DatabaseHelper
}

// NewDocumentDatabase initializes a new instance of document database with the provided db connection
func NewDocumentDatabase(db DatabaseHelper) DocumentDatabase {
	return &documentDatabase{
		db: db,
	}
}

func (c *documentDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Document, error) {
	doc := &models.Document{}
	err := c.db.Collection(documentName).FindOne(ctx, filter, opts...).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *documentDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Document, error) {
	var docs []models.Document
	cr, err := c.db.Collection(documentName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&docs)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *documentDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(documentName).CountDocuments(ctx, filter)
}

func (c *documentDatabase) InsertOne(ctx context.Context, doc models.Document) (InsertOneResultHelper, error) {
	return c.db.Collection(documentName).InsertOne(ctx, doc)
}

func (c *documentDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(documentName).UpdateOne(ctx, filter, update, opts...)
}

func (c *documentDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(documentName).DeleteOne(ctx, filter)
}
