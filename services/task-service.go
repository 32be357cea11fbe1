package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskboard-project/backend/apperrors"
	"taskboard-project/backend/logging"
	"taskboard-project/backend/models"
	"taskboard-project/backend/utils"
)

// TaskService is authoritative for task existence and fields. Creating a
// task also registers it in the parent project's task list through the
// project service.
type TaskService struct {
	TasksCollection *mongo.Collection
	projectService  *ProjectService
	client          *mongo.Client
	useTransactions bool
	breaker         *gobreaker.CircuitBreaker
}

// NewTaskService wires the task store. With useTransactions set, the
// insert+link pair of CreateTask runs inside a Mongo transaction; that
// requires a replica-set deployment.
func NewTaskService(tasksCollection *mongo.Collection, projectService *ProjectService, client *mongo.Client, useTransactions bool, breaker *gobreaker.CircuitBreaker) *TaskService {
	return &TaskService{
		TasksCollection: tasksCollection,
		projectService:  projectService,
		client:          client,
		useTransactions: useTransactions,
		breaker:         breaker,
	}
}

// CreateTaskInput carries the caller-supplied fields for a new task. The
// owner comes from the authenticated caller, not from here.
type CreateTaskInput struct {
	Title       string
	Description string
	AssignedTo  string
	Project     string
	Status      models.TaskStatus
	DueDate     *time.Time
}

// CreateTask persists a new task and links it into its parent project. The
// referenced project must exist; NotFound propagates to the caller.
func (s *TaskService) CreateTask(ctx context.Context, ownerID string, in CreateTaskInput) (*models.Task, error) {
	if in.Title == "" {
		return nil, apperrors.BadRequest("task title is required")
	}

	status := in.Status
	if status == "" {
		status = models.StatusNew
	}
	if !status.Valid() {
		return nil, apperrors.BadRequest("invalid status: %s", status)
	}

	owner, err := utils.ToObjectID(ownerID)
	if err != nil {
		return nil, err
	}
	assignedTo, err := utils.ToObjectID(in.AssignedTo)
	if err != nil {
		return nil, err
	}
	projectID, err := utils.ToObjectID(in.Project)
	if err != nil {
		return nil, err
	}

	if _, err := s.projectService.getProjectDoc(ctx, in.Project); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dueDate := now
	if in.DueDate != nil {
		dueDate = *in.DueDate
	}

	task := &models.Task{
		ID:          primitive.NewObjectID(),
		Title:       in.Title,
		Description: in.Description,
		Owner:       owner,
		AssignedTo:  assignedTo,
		Project:     projectID,
		Status:      status,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	insertAndLink := func(ctx context.Context) error {
		if _, err := s.TasksCollection.InsertOne(ctx, task); err != nil {
			return fmt.Errorf("failed to create task: %v", err)
		}
		if _, err := s.projectService.AddTaskToProject(ctx, in.Project, task.ID); err != nil {
			return err
		}
		return nil
	}

	if s.useTransactions {
		session, err := s.client.StartSession()
		if err != nil {
			return nil, fmt.Errorf("failed to start session: %v", err)
		}
		defer session.EndSession(ctx)

		if _, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return nil, insertAndLink(sc)
		}); err != nil {
			return nil, err
		}
	} else {
		if err := insertAndLink(ctx); err != nil {
			return nil, err
		}
	}

	logging.Logger.Infof("Event ID: TASK_CREATED, Description: Task %s created in project %s", task.ID.Hex(), in.Project)
	return task, nil
}

// GetAllTasks returns every task with its references resolved.
func (s *TaskService) GetAllTasks(ctx context.Context) ([]models.TaskDetails, error) {
	return s.findAndResolve(ctx, bson.M{}, nil)
}

// GetTaskByID returns a single task with its references resolved.
func (s *TaskService) GetTaskByID(ctx context.Context, taskID string) (*models.TaskDetails, error) {
	objectID, err := utils.ToObjectID(taskID)
	if err != nil {
		return nil, err
	}

	var task models.Task
	err = s.TasksCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NotFound("task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch task: %v", err)
	}
	return s.resolveTask(ctx, &task)
}

// UpdateTask applies a partial update; only supplied fields change.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, update models.TaskUpdate) (*models.TaskDetails, error) {
	objectID, err := utils.ToObjectID(taskID)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Title != nil {
		if *update.Title == "" {
			return nil, apperrors.BadRequest("task title cannot be empty")
		}
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.AssignedTo != nil {
		assignedTo, err := utils.ToObjectID(*update.AssignedTo)
		if err != nil {
			return nil, err
		}
		set["assignedTo"] = assignedTo
	}
	if update.Project != nil {
		projectID, err := utils.ToObjectID(*update.Project)
		if err != nil {
			return nil, err
		}
		set["project"] = projectID
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, apperrors.BadRequest("invalid status: %s", *update.Status)
		}
		set["status"] = *update.Status
	}
	if update.DueDate != nil {
		set["dueDate"] = *update.DueDate
	}

	var task models.Task
	err = s.TasksCollection.FindOneAndUpdate(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NotFound("task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %v", err)
	}
	return s.resolveTask(ctx, &task)
}

// DeleteTask removes the task record. The former parent project's task list
// is left untouched; the stale reference drops out at populate time.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) (*models.Task, error) {
	objectID, err := utils.ToObjectID(taskID)
	if err != nil {
		return nil, err
	}

	var task models.Task
	err = s.TasksCollection.FindOneAndDelete(ctx, bson.M{"_id": objectID}).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NotFound("task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete task: %v", err)
	}

	logging.Logger.Infof("Event ID: TASK_DELETED, Description: Task %s deleted", taskID)
	return &task, nil
}

// UpdateTaskStatus sets the task status. The submitted value must belong to
// the known enumeration; any member may transition to any other.
func (s *TaskService) UpdateTaskStatus(ctx context.Context, taskID string, status models.TaskStatus) (*models.TaskDetails, error) {
	if !status.Valid() {
		return nil, apperrors.BadRequest("invalid status: %s", status)
	}

	objectID, err := utils.ToObjectID(taskID)
	if err != nil {
		return nil, err
	}

	var task models.Task
	err = s.TasksCollection.FindOneAndUpdate(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NotFound("task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task status: %v", err)
	}
	return s.resolveTask(ctx, &task)
}

// FindTasks lists tasks matching the filter, optionally sorted. Absent
// filter fields impose no constraint; the full matching set is returned.
func (s *TaskService) FindTasks(ctx context.Context, filter models.TaskFilter, sort models.TaskSort) ([]models.TaskDetails, error) {
	query, err := buildTaskQuery(filter)
	if err != nil {
		return nil, err
	}
	sortDoc, err := buildTaskSort(sort)
	if err != nil {
		return nil, err
	}
	return s.findAndResolve(ctx, query, sortDoc)
}

func (s *TaskService) findAndResolve(ctx context.Context, query bson.M, sortDoc bson.D) ([]models.TaskDetails, error) {
	opts := options.Find()
	if sortDoc != nil {
		opts.SetSort(sortDoc)
	}

	cursor, err := s.TasksCollection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %v", err)
	}
	defer cursor.Close(ctx)

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %v", err)
	}

	details := []models.TaskDetails{}
	for i := range tasks {
		resolved, err := s.resolveTask(ctx, &tasks[i])
		if err != nil {
			return nil, err
		}
		details = append(details, *resolved)
	}
	return details, nil
}

// resolveTask populates owner, assignee and project. Dangling references
// resolve to nil.
func (s *TaskService) resolveTask(ctx context.Context, task *models.Task) (*models.TaskDetails, error) {
	owner, err := fetchPublicUser(ctx, s.projectService.UsersCollection, s.breaker, task.Owner)
	if err != nil {
		return nil, err
	}
	assignedTo, err := fetchPublicUser(ctx, s.projectService.UsersCollection, s.breaker, task.AssignedTo)
	if err != nil {
		return nil, err
	}

	var project *models.Project
	result, err := execute(s.breaker, func() (interface{}, error) {
		var p models.Project
		err := s.projectService.ProjectsCollection.FindOne(ctx, bson.M{"_id": task.Project}).Decode(&p)
		if err == mongo.ErrNoDocuments {
			return (*models.Project)(nil), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve project %s: %v", task.Project.Hex(), err)
		}
		return &p, nil
	})
	if err != nil {
		return nil, err
	}
	project = result.(*models.Project)

	return &models.TaskDetails{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Owner:       owner,
		AssignedTo:  assignedTo,
		Project:     project,
		Status:      task.Status,
		DueDate:     task.DueDate,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}, nil
}
