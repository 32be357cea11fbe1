package services

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskboard-project/backend/models"
)

// Reference resolution ("populate"): read-time substitution of foreign keys
// with views of the referenced documents. User lookups always project the
// password out. Reads run through the circuit breaker so a degraded datastore
// fails fast instead of fanning out.

func execute(cb *gobreaker.CircuitBreaker, fn func() (interface{}, error)) (interface{}, error) {
	if cb == nil {
		return fn()
	}
	return cb.Execute(fn)
}

// fetchPublicUser resolves a single user reference. A dangling reference
// resolves to nil rather than an error.
func fetchPublicUser(ctx context.Context, users *mongo.Collection, cb *gobreaker.CircuitBreaker, id primitive.ObjectID) (*models.PublicUser, error) {
	result, err := execute(cb, func() (interface{}, error) {
		var user models.PublicUser
		err := users.FindOne(ctx, bson.M{"_id": id},
			options.FindOne().SetProjection(bson.M{"password": 0})).Decode(&user)
		if err == mongo.ErrNoDocuments {
			return (*models.PublicUser)(nil), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user %s: %v", id.Hex(), err)
		}
		return &user, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.PublicUser), nil
}

// fetchPublicUsers resolves a reference list in one query; dangling
// references are simply absent from the result.
func fetchPublicUsers(ctx context.Context, users *mongo.Collection, cb *gobreaker.CircuitBreaker, ids []primitive.ObjectID) ([]models.PublicUser, error) {
	resolved := []models.PublicUser{}
	if len(ids) == 0 {
		return resolved, nil
	}

	result, err := execute(cb, func() (interface{}, error) {
		cursor, err := users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
			options.Find().SetProjection(bson.M{"password": 0}))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve users: %v", err)
		}
		defer cursor.Close(ctx)

		var found []models.PublicUser
		if err := cursor.All(ctx, &found); err != nil {
			return nil, fmt.Errorf("failed to decode users: %v", err)
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	if result != nil {
		resolved = append(resolved, result.([]models.PublicUser)...)
	}
	return resolved, nil
}
