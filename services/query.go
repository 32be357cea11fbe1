package services

import (
	"go.mongodb.org/mongo-driver/bson"

	"taskboard-project/backend/apperrors"
	"taskboard-project/backend/models"
	"taskboard-project/backend/utils"
)

// The filter layer builds equality predicates from the present fields only.
// Field names come from closed enumerations, never from raw caller input, so
// arbitrary field names cannot reach the persistence query.

func buildTaskQuery(filter models.TaskFilter) (bson.M, error) {
	query := bson.M{}

	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, apperrors.BadRequest("invalid status: %s", filter.Status)
		}
		query["status"] = filter.Status
	}
	if filter.Project != "" {
		projectID, err := utils.ToObjectID(filter.Project)
		if err != nil {
			return nil, err
		}
		query["project"] = projectID
	}
	if filter.AssignedTo != "" {
		assignedTo, err := utils.ToObjectID(filter.AssignedTo)
		if err != nil {
			return nil, err
		}
		query["assignedTo"] = assignedTo
	}

	return query, nil
}

// buildTaskSort returns nil when no sort field is given: store-default order.
func buildTaskSort(sort models.TaskSort) (bson.D, error) {
	if sort.Field == "" {
		return nil, nil
	}
	if !sort.Field.Valid() {
		return nil, apperrors.BadRequest("invalid sort field: %s", sort.Field)
	}

	order := 1
	switch sort.Order {
	case "", models.SortAsc:
	case models.SortDesc:
		order = -1
	default:
		return nil, apperrors.BadRequest("invalid sort order: %s", sort.Order)
	}

	return bson.D{{Key: string(sort.Field), Value: order}}, nil
}
