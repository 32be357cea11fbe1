package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Project struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	Description string               `bson:"description,omitempty" json:"description,omitempty"`
	Owner       primitive.ObjectID   `bson:"owner" json:"owner"`
	Members     []primitive.ObjectID `bson:"members" json:"members"`
	Tasks       []primitive.ObjectID `bson:"tasks" json:"tasks"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// ProjectDetails is a project with its references resolved: owner and members
// as password-free user views, tasks as full task documents.
type ProjectDetails struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Owner       *PublicUser        `json:"owner"`
	Members     []PublicUser       `json:"members"`
	Tasks       []Task             `json:"tasks"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// ProjectUpdate carries a partial update; nil fields are left untouched.
type ProjectUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}
