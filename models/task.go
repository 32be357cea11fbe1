package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slices"
)

type TaskStatus string

const (
	StatusNew        TaskStatus = "NEW"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

var taskStatuses = []TaskStatus{StatusNew, StatusInProgress, StatusCompleted}

// Valid reports whether the status belongs to the known enumeration. Any
// known status may transition to any other; enum membership is the only guard.
func (s TaskStatus) Valid() bool {
	return slices.Contains(taskStatuses, s)
}

type TaskSortField string

const (
	SortByCreatedAt TaskSortField = "createdAt"
	SortByDueDate   TaskSortField = "dueDate"
	SortByStatus    TaskSortField = "status"
)

var taskSortFields = []TaskSortField{SortByCreatedAt, SortByDueDate, SortByStatus}

func (f TaskSortField) Valid() bool {
	return slices.Contains(taskSortFields, f)
}

type TaskSortOrder string

const (
	SortAsc  TaskSortOrder = "asc"
	SortDesc TaskSortOrder = "desc"
)

type Task struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Owner       primitive.ObjectID `bson:"owner" json:"owner"`
	AssignedTo  primitive.ObjectID `bson:"assignedTo" json:"assignedTo"`
	Project     primitive.ObjectID `bson:"project" json:"project"`
	Status      TaskStatus         `bson:"status" json:"status"`
	DueDate     time.Time          `bson:"dueDate" json:"dueDate"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// TaskDetails is a task with its references resolved.
type TaskDetails struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Owner       *PublicUser        `json:"owner"`
	AssignedTo  *PublicUser        `json:"assignedTo"`
	Project     *Project           `json:"project"`
	Status      TaskStatus         `json:"status"`
	DueDate     time.Time          `json:"dueDate"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// TaskUpdate carries a partial update; nil fields are left untouched.
type TaskUpdate struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	AssignedTo  *string     `json:"assignedTo,omitempty"`
	Project     *string     `json:"project,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	DueDate     *time.Time  `json:"dueDate,omitempty"`
}

// TaskFilter narrows a task listing; zero-value fields impose no constraint.
type TaskFilter struct {
	Status     TaskStatus
	Project    string
	AssignedTo string
}

// TaskSort orders a task listing. An empty Field means store-default order;
// order defaults to ascending unless explicitly "desc".
type TaskSort struct {
	Field TaskSortField
	Order TaskSortOrder
}
