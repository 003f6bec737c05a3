package databases

// go generate: mockery --name TransactionDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/leoportal/leo-portal-api/models"
)

const transactionName = "transactions"

// TransactionDatabase contains the methods to use with the transaction database
type TransactionDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Transaction, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Transaction, error)
	CountDocuments(context.Context, interface{}) (int64, error)
	InsertOne(context.Context, models.Transaction) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(context.Context, interface{}) (int64, error)
}

type transactionDatabase struct {
	db DatabaseHelper
}

// NewTransactionDatabase initializes a new instance of transaction database with the provided db connection
func NewTransactionDatabase(db DatabaseHelper) TransactionDatabase {
	return &transactionDatabase{
		db: db,
	}
}

func (c *transactionDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Transaction, error) {
	doc := &models.Transaction{}
	err := c.db.Collection(transactionName).FindOne(ctx, filter, opts...).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *transactionDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Transaction, error) {
	var docs []models.Transaction
	cr, err := c.db.Collection(transactionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&docs)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *transactionDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(transactionName).CountDocuments(ctx, filter)
}

func (c *transactionDatabase) InsertOne(ctx context.Context, doc models.Transaction) (InsertOneResultHelper, error) {
	return c.db.Collection(transactionName).InsertOne(ctx, doc)
}

func (c *transactionDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(transactionName).UpdateOne(ctx, filter, update, opts...)
}

func (c *transactionDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(transactionName).DeleteOne(ctx, filter)
}
