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
	"golang.org/x/exp/slices"

	"taskboard-project/backend/apperrors"
	"taskboard-project/backend/logging"
	"taskboard-project/backend/models"
	"taskboard-project/backend/utils"
)

// ProjectService maintains project records and their member/task
// back-reference lists. The task store stays authoritative for task
// existence; the lists here are caches for fast listing.
type ProjectService struct {
	ProjectsCollection *mongo.Collection
	UsersCollection    *mongo.Collection
	TasksCollection    *mongo.Collection
	breaker            *gobreaker.CircuitBreaker
}

func NewProjectService(projectsCollection, usersCollection, tasksCollection *mongo.Collection, breaker *gobreaker.CircuitBreaker) *ProjectService {
	return &ProjectService{
		ProjectsCollection: projectsCollection,
		UsersCollection:    usersCollection,
		TasksCollection:    tasksCollection,
		breaker:            breaker,
	}
}

// CreateProject creates a project owned by the authenticated caller. The
// owner comes from the token, never from the request body.
func (s *ProjectService) CreateProject(ctx context.Context, ownerID, name, description string, memberIDs []string) (*models.Project, error) {
	if name == "" {
		return nil, apperrors.BadRequest("project name is required")
	}

	owner, err := utils.ToObjectID(ownerID)
	if err != nil {
		return nil, err
	}

	members := []primitive.ObjectID{}
	for _, memberID := range memberIDs {
		member, err := utils.ToObjectID(memberID)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(members, member) {
			members = append(members, member)
		}
	}

	now := time.Now().UTC()
	project := &models.Project{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Description: description,
		Owner:       owner,
		Members:     members,
		Tasks:       []primitive.ObjectID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.ProjectsCollection.InsertOne(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %v", err)
	}

	// Owner back-reference on the user record.
	if _, err := s.UsersCollection.UpdateOne(ctx,
		bson.M{"_id": owner},
		bson.M{"$addToSet": bson.M{"projects": project.ID}},
	); err != nil {
		return nil, fmt.Errorf("failed to link project to owner: %v", err)
	}

	logging.Logger.Infof("Event ID: PROJECT_CREATED, Description: Project %s created by %s", project.ID.Hex(), ownerID)
	return project, nil
}

// GetAllProjects returns every project with its references resolved.
func (s *ProjectService) GetAllProjects(ctx context.Context) ([]models.ProjectDetails, error) {
	cursor, err := s.ProjectsCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch projects: %v", err)
	}
	defer cursor.Close(ctx)

	var projects []models.Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %v", err)
	}

	details := []models.ProjectDetails{}
	for i := range projects {
		resolved, err := s.resolveProject(ctx, &projects[i])
		if err != nil {
			return nil, err
		}
		details = append(details, *resolved)
	}
	return details, nil
}

// GetProjectByID returns a single project with its references resolved.
func (s *ProjectService) GetProjectByID(ctx context.Context, projectID string) (*models.ProjectDetails, error) {
	project, err := s.getProjectDoc(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.resolveProject(ctx, project)
}

// UpdateProject applies a partial update; only supplied fields change.
func (s *ProjectService) UpdateProject(ctx context.Context, projectID string, update models.ProjectUpdate) (*models.Project, error) {
	objectID, err := utils.ToObjectID(projectID)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Name != nil {
		if *update.Name == "" {
			return nil, apperrors.BadRequest("project name cannot be empty")
		}
		set["name"] = *update.Name
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}

	var project models.Project
	err = s.ProjectsCollection.FindOneAndUpdate(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&project)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NotFound("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %v", err)
	}
	return &project, nil
}

// DeleteProject removes the project record. Linked tasks are not cascaded;
// the project id is removed from the owner's back-reference list.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID string) (*models.Project, error) {
	objectID, err := utils.ToObjectID(projectID)
	if err != nil {
		return nil, err
	}

	var project models.Project
	err = s.ProjectsCollection.FindOneAndDelete(ctx, bson.M{"_id": objectID}).Decode(&project)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NotFound("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete project: %v", err)
	}

	if _, err := s.UsersCollection.UpdateOne(ctx,
		bson.M{"_id": project.Owner},
		bson.M{"$pull": bson.M{"projects": project.ID}},
	); err != nil {
		return nil, fmt.Errorf("failed to unlink project from owner: %v", err)
	}

	logging.Logger.Infof("Event ID: PROJECT_DELETED, Description: Project %s deleted", projectID)
	return &project, nil
}

// AddTaskToProject registers a task id in the project's task list. The
// operation is idempotent: a task already listed is a no-op, so re-linking on
// retry is safe. The caller's context is used for both reads and writes,
// allowing an outer Mongo session to cover the linkage.
func (s *ProjectService) AddTaskToProject(ctx context.Context, projectID string, taskID primitive.ObjectID) (*models.Project, error) {
	project, err := s.getProjectDoc(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if slices.Contains(project.Tasks, taskID) {
		return project, nil
	}

	if _, err := s.ProjectsCollection.UpdateOne(ctx,
		bson.M{"_id": project.ID},
		bson.M{
			"$addToSet": bson.M{"tasks": taskID},
			"$set":      bson.M{"updatedAt": time.Now().UTC()},
		},
	); err != nil {
		return nil, fmt.Errorf("failed to link task to project: %v", err)
	}

	project.Tasks = append(project.Tasks, taskID)
	return project, nil
}

// AddMemberToProject adds a user to the project's member list. Unlike task
// linking, a duplicate add is an explicit rejection, not a silent no-op.
func (s *ProjectService) AddMemberToProject(ctx context.Context, projectID, userID string) (*models.Project, error) {
	project, err := s.getProjectDoc(ctx, projectID)
	if err != nil {
		return nil, err
	}

	memberID, err := utils.ToObjectID(userID)
	if err != nil {
		return nil, err
	}

	if slices.Contains(project.Members, memberID) {
		return nil, apperrors.BadRequest("user is already a member of this project")
	}

	if _, err := s.ProjectsCollection.UpdateOne(ctx,
		bson.M{"_id": project.ID},
		bson.M{
			"$addToSet": bson.M{"members": memberID},
			"$set":      bson.M{"updatedAt": time.Now().UTC()},
		},
	); err != nil {
		return nil, fmt.Errorf("failed to add member to project: %v", err)
	}

	project.Members = append(project.Members, memberID)
	logging.Logger.Infof("Event ID: MEMBER_ADDED, Description: User %s added to project %s", userID, projectID)
	return project, nil
}

// getProjectDoc fetches the raw project document without resolving references.
func (s *ProjectService) getProjectDoc(ctx context.Context, projectID string) (*models.Project, error) {
	objectID, err := utils.ToObjectID(projectID)
	if err != nil {
		return nil, err
	}

	var project models.Project
	err = s.ProjectsCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&project)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NotFound("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch project: %v", err)
	}
	return &project, nil
}

// resolveProject populates owner, members and tasks. Dangling task
// references (a deleted task still listed) resolve to nothing rather than
// failing the whole read.
func (s *ProjectService) resolveProject(ctx context.Context, project *models.Project) (*models.ProjectDetails, error) {
	owner, err := fetchPublicUser(ctx, s.UsersCollection, s.breaker, project.Owner)
	if err != nil {
		return nil, err
	}

	members, err := fetchPublicUsers(ctx, s.UsersCollection, s.breaker, project.Members)
	if err != nil {
		return nil, err
	}

	tasks := []models.Task{}
	if len(project.Tasks) > 0 {
		result, err := execute(s.breaker, func() (interface{}, error) {
			cursor, err := s.TasksCollection.Find(ctx, bson.M{"_id": bson.M{"$in": project.Tasks}})
			if err != nil {
				return nil, fmt.Errorf("failed to resolve tasks: %v", err)
			}
			defer cursor.Close(ctx)

			var found []models.Task
			if err := cursor.All(ctx, &found); err != nil {
				return nil, fmt.Errorf("failed to decode tasks: %v", err)
			}
			return found, nil
		})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, result.([]models.Task)...)
	}

	return &models.ProjectDetails{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Owner:       owner,
		Members:     members,
		Tasks:       tasks,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}, nil
}
