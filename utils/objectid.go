package utils

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskboard-project/backend/apperrors"
)

// ToObjectID converts a 24-character hex identifier to its canonical form.
// A malformed identifier is a BadRequest, reported before any query runs.
func ToObjectID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperrors.BadRequest("invalid id %q", id)
	}
	return objectID, nil
}
