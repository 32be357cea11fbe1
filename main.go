package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskboard-project/backend/handlers"
	"taskboard-project/backend/logging"
	"taskboard-project/backend/middleware"
	"taskboard-project/backend/services"
)

func main() {
	logging.InitLogger()
	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting Taskboard Backend...")

	if err := godotenv.Load(".env"); err != nil {
		logging.Logger.Warnf("Event ID: ENV_LOAD_WARNING, Description: No .env file loaded: %v", err)
	}

	mongoURI := os.Getenv("MONGO_URI")
	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoDBName == "" {
		mongoDBName = "taskboard_db"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		logging.Logger.Fatalf("Event ID: DB_CONNECTION_FAILED, Description: Database connection for MongoDB failed: %v", err)
	}
	defer client.Disconnect(ctx)

	if err := client.Ping(ctx, nil); err != nil {
		logging.Logger.Fatalf("Event ID: DB_PING_FAILED, Description: MongoDB connection ping error: %v", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB at %s.", mongoURI)

	db := client.Database(mongoDBName)
	usersCollection := db.Collection("users")
	projectsCollection := db.Collection("projects")
	tasksCollection := db.Collection("tasks")

	populateBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "PopulateCB",
		MaxRequests: 1,
		Timeout:     2 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})

	useTransactions := os.Getenv("MONGO_TRANSACTIONS") == "true"

	userService := services.NewUserService(usersCollection)
	if err := userService.EnsureIndexes(ctx); err != nil {
		logging.Logger.Fatalf("Event ID: DB_INDEX_FAILED, Description: %v", err)
	}
	authService := services.NewAuthService(userService)
	projectService := services.NewProjectService(projectsCollection, usersCollection, tasksCollection, populateBreaker)
	taskService := services.NewTaskService(tasksCollection, projectService, client, useTransactions, populateBreaker)

	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	projectHandler := handlers.NewProjectHandler(projectService)
	taskHandler := handlers.NewTaskHandler(taskService)

	r := mux.NewRouter()

	r.HandleFunc("/api/auth/register", authHandler.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.JWTAuthMiddleware)

	api.HandleFunc("/users", userHandler.GetAllUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", userHandler.GetUserByID).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", userHandler.DeleteUser).Methods(http.MethodDelete)

	api.HandleFunc("/projects", projectHandler.CreateProject).Methods(http.MethodPost)
	api.HandleFunc("/projects", projectHandler.GetAllProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", projectHandler.GetProjectByID).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", projectHandler.UpdateProject).Methods(http.MethodPatch)
	api.HandleFunc("/projects/{id}", projectHandler.DeleteProject).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}/members", projectHandler.AddMemberToProject).Methods(http.MethodPost)

	api.HandleFunc("/tasks", taskHandler.CreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks", taskHandler.GetTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", taskHandler.GetTaskByID).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", taskHandler.UpdateTask).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{id}", taskHandler.DeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/status", taskHandler.UpdateTaskStatus).Methods(http.MethodPatch)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(r)

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	serverAddress := fmt.Sprintf(":%s", serverPort)
	logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", serverAddress)

	if err := http.ListenAndServe(serverAddress, corsHandler); err != nil {
		logging.Logger.Fatalf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
	}
}
