package services

// Integration tests run against a real MongoDB and are skipped unless
// MONGO_TEST_URI is set, e.g.
//
//	MONGO_TEST_URI=mongodb://localhost:27017 go test ./services/
//
// Each test gets its own throwaway database.

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskboard-project/backend/apperrors"
	"taskboard-project/backend/models"
	"taskboard-project/backend/utils"
)

type testEnv struct {
	db       *mongo.Database
	users    *UserService
	auth     *AuthService
	projects *ProjectService
	tasks    *TaskService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set; skipping integration test")
	}
	t.Setenv("JWT_SECRET", "integration-test-secret-value")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("taskboard_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	usersCollection := db.Collection("users")
	projectsCollection := db.Collection("projects")
	tasksCollection := db.Collection("tasks")

	userService := NewUserService(usersCollection)
	require.NoError(t, userService.EnsureIndexes(context.Background()))
	projectService := NewProjectService(projectsCollection, usersCollection, tasksCollection, nil)
	taskService := NewTaskService(tasksCollection, projectService, client, false, nil)

	return &testEnv{
		db:       db,
		users:    userService,
		auth:     NewAuthService(userService),
		projects: projectService,
		tasks:    taskService,
	}
}

func (e *testEnv) registerUser(t *testing.T, username string) *models.User {
	t.Helper()
	_, err := e.auth.Register(context.Background(), username, "password-123")
	require.NoError(t, err)
	user, err := e.users.FindByUsername(context.Background(), username)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func TestRegisterThenLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	user, err := env.users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEqual(t, "correct-horse", user.Password, "password must be stored hashed")

	token, err := env.auth.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	claims, err := utils.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.Subject, "login must derive the same identity")
	assert.Equal(t, "alice", claims.Username)
}

func TestRegisterDuplicateUsernameConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, "bob", "first-password")
	require.NoError(t, err)

	_, err = env.auth.Register(ctx, "bob", "second-password")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	// First registration is untouched.
	token, err := env.auth.Login(ctx, "bob", "first-password")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "carol")

	_, errWrongPassword := env.auth.Login(ctx, "carol", "wrong-password")
	_, errUnknownUser := env.auth.Login(ctx, "nobody", "any-password")

	require.Error(t, errWrongPassword)
	require.Error(t, errUnknownUser)
	assert.True(t, errors.Is(errWrongPassword, apperrors.ErrUnauthorized))
	assert.True(t, errors.Is(errUnknownUser, apperrors.ErrUnauthorized))
	assert.Equal(t, errWrongPassword.Error(), errUnknownUser.Error(),
		"absent user and wrong password must not be distinguishable")
}

func TestAddTaskToProjectIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.registerUser(t, "dave")
	project, err := env.projects.CreateProject(ctx, owner.ID.Hex(), "Proj", "", nil)
	require.NoError(t, err)

	taskID := primitive.NewObjectID()

	_, err = env.projects.AddTaskToProject(ctx, project.ID.Hex(), taskID)
	require.NoError(t, err)

	var afterFirst models.Project
	require.NoError(t, env.db.Collection("projects").FindOne(ctx, bson.M{"_id": project.ID}).Decode(&afterFirst))

	_, err = env.projects.AddTaskToProject(ctx, project.ID.Hex(), taskID)
	require.NoError(t, err, "duplicate link is a no-op, not an error")

	var afterSecond models.Project
	require.NoError(t, env.db.Collection("projects").FindOne(ctx, bson.M{"_id": project.ID}).Decode(&afterSecond))

	count := 0
	for _, id := range afterSecond.Tasks {
		if id == taskID {
			count++
		}
	}
	assert.Equal(t, 1, count, "task listed exactly once")
	assert.Equal(t, afterFirst.UpdatedAt, afterSecond.UpdatedAt, "second call performs no write")
}

func TestAddMemberToProjectRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.registerUser(t, "erin")
	member := env.registerUser(t, "frank")
	project, err := env.projects.CreateProject(ctx, owner.ID.Hex(), "Proj", "", nil)
	require.NoError(t, err)

	updated, err := env.projects.AddMemberToProject(ctx, project.ID.Hex(), member.ID.Hex())
	require.NoError(t, err)
	assert.Contains(t, updated.Members, member.ID)

	_, err = env.projects.AddMemberToProject(ctx, project.ID.Hex(), member.ID.Hex())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))

	var doc models.Project
	require.NoError(t, env.db.Collection("projects").FindOne(ctx, bson.M{"_id": project.ID}).Decode(&doc))
	assert.Equal(t, []primitive.ObjectID{member.ID}, doc.Members, "membership unchanged by rejected call")
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.registerUser(t, "grace")
	assignee := env.registerUser(t, "heidi")
	project, err := env.projects.CreateProject(ctx, owner.ID.Hex(), "Proj", "", nil)
	require.NoError(t, err)

	task, err := env.tasks.CreateTask(ctx, owner.ID.Hex(), CreateTaskInput{
		Title:      "T1",
		AssignedTo: assignee.ID.Hex(),
		Project:    project.ID.Hex(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNew, task.Status, "status defaults to NEW")

	_, err = env.tasks.UpdateTaskStatus(ctx, task.ID.Hex(), "broken")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))

	var stored models.Task
	require.NoError(t, env.db.Collection("tasks").FindOne(ctx, bson.M{"_id": task.ID}).Decode(&stored))
	assert.Equal(t, models.StatusNew, stored.Status, "stored status unchanged")

	updated, err := env.tasks.UpdateTaskStatus(ctx, task.ID.Hex(), models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
}

func TestCreateTaskLinksIntoProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u1 := env.registerUser(t, "ivan")
	u2 := env.registerUser(t, "judy")

	project, err := env.projects.CreateProject(ctx, u1.ID.Hex(), "Proj1", "", nil)
	require.NoError(t, err)

	task, err := env.tasks.CreateTask(ctx, u1.ID.Hex(), CreateTaskInput{
		Title:      "T1",
		AssignedTo: u2.ID.Hex(),
		Project:    project.ID.Hex(),
	})
	require.NoError(t, err)

	details, err := env.projects.GetProjectByID(ctx, project.ID.Hex())
	require.NoError(t, err)
	require.Len(t, details.Tasks, 1)
	assert.Equal(t, task.ID, details.Tasks[0].ID)

	// Populated owner view carries no password hash.
	require.NotNil(t, details.Owner)
	assert.Equal(t, u1.ID, details.Owner.ID)
	assert.Equal(t, "ivan", details.Owner.Username)
}

func TestCreateTaskRequiresExistingProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.registerUser(t, "kim")

	_, err := env.tasks.CreateTask(ctx, owner.ID.Hex(), CreateTaskInput{
		Title:      "orphan",
		AssignedTo: owner.ID.Hex(),
		Project:    primitive.NewObjectID().Hex(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestFindTasksFilterAndSort(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.registerUser(t, "lena")
	project, err := env.projects.CreateProject(ctx, owner.ID.Hex(), "Proj", "", nil)
	require.NoError(t, err)

	newTask := func(title string, status models.TaskStatus) *models.Task {
		task, err := env.tasks.CreateTask(ctx, owner.ID.Hex(), CreateTaskInput{
			Title:      title,
			AssignedTo: owner.ID.Hex(),
			Project:    project.ID.Hex(),
			Status:     status,
		})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond) // distinct createdAt ordering
		return task
	}

	first := newTask("first", models.StatusNew)
	newTask("second", models.StatusInProgress)
	third := newTask("third", models.StatusNew)

	filtered, err := env.tasks.FindTasks(ctx,
		models.TaskFilter{Status: models.StatusNew},
		models.TaskSort{Field: models.SortByCreatedAt, Order: models.SortAsc},
	)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, first.ID, filtered[0].ID)
	assert.Equal(t, third.ID, filtered[1].ID)
	for _, task := range filtered {
		assert.Equal(t, models.StatusNew, task.Status)
		require.NotNil(t, task.Project)
		assert.Equal(t, project.ID, task.Project.ID)
	}

	all, err := env.tasks.FindTasks(ctx, models.TaskFilter{}, models.TaskSort{})
	require.NoError(t, err)
	assert.Len(t, all, 3, "no filter returns all tasks")
}

func TestDeleteTaskLeavesDanglingProjectReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.registerUser(t, "mallory")
	project, err := env.projects.CreateProject(ctx, owner.ID.Hex(), "Proj", "", nil)
	require.NoError(t, err)

	task, err := env.tasks.CreateTask(ctx, owner.ID.Hex(), CreateTaskInput{
		Title:      "doomed",
		AssignedTo: owner.ID.Hex(),
		Project:    project.ID.Hex(),
	})
	require.NoError(t, err)

	_, err = env.tasks.DeleteTask(ctx, task.ID.Hex())
	require.NoError(t, err)

	// Documents current behavior: the stale id stays listed on the project.
	var doc models.Project
	require.NoError(t, env.db.Collection("projects").FindOne(ctx, bson.M{"_id": project.ID}).Decode(&doc))
	assert.Contains(t, doc.Tasks, task.ID, "dangling reference persists after task delete")

	// The populated view drops the unresolvable reference.
	details, err := env.projects.GetProjectByID(ctx, project.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, details.Tasks)

	_, err = env.tasks.GetTaskByID(ctx, task.ID.Hex())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestProjectLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.registerUser(t, "nina")

	project, err := env.projects.CreateProject(ctx, owner.ID.Hex(), "Proj", "desc", nil)
	require.NoError(t, err)

	// Owner back-reference maintained.
	ownerDoc, err := env.users.FindByID(ctx, owner.ID.Hex())
	require.NoError(t, err)
	assert.Contains(t, ownerDoc.Projects, project.ID)

	// Partial update changes only supplied fields.
	newName := "Renamed"
	updated, err := env.projects.UpdateProject(ctx, project.ID.Hex(), models.ProjectUpdate{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "desc", updated.Description)

	_, err = env.projects.DeleteProject(ctx, project.ID.Hex())
	require.NoError(t, err)

	_, err = env.projects.GetProjectByID(ctx, project.ID.Hex())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	ownerDoc, err = env.users.FindByID(ctx, owner.ID.Hex())
	require.NoError(t, err)
	assert.NotContains(t, ownerDoc.Projects, project.ID, "back-reference removed on delete")
}
