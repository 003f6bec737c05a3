package databases

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the handlers rely on. The partial unique
// indexes on attendance are what keep a mark from being recorded twice.
func EnsureIndexes(ctx context.Context, db DatabaseHelper) error {
	specs := map[string][]mongo.IndexModel{
		userName: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "role", Value: 1}}},
		},
		attendanceName: {
			{
				Keys: bson.D{{Key: "eventId", Value: 1}, {Key: "userId", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"userId": bson.M{"$exists": true}}),
			},
			{
				Keys: bson.D{{Key: "eventId", Value: 1}, {Key: "visitorKey", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"visitorKey": bson.M{"$exists": true}}),
			},
		},
		eventName: {
			{Keys: bson.D{{Key: "startsAt", Value: 1}}},
		},
		taskName: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "position", Value: 1}}},
		},
		transactionName: {
			{Keys: bson.D{{Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "externalRef", Value: 1}}, Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"externalRef": bson.M{"$exists": true}})},
		},
		pointsName: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		communicationGroupName: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		pushTokenCollectionName: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, models := range specs {
		if err := db.Collection(coll).CreateIndexes(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
