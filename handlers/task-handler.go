package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"taskboard-project/backend/middleware"
	"taskboard-project/backend/models"
	"taskboard-project/backend/services"
)

type CreateTaskRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	AssignedTo  string            `json:"assignedTo"`
	Project     string            `json:"project"`
	Status      models.TaskStatus `json:"status,omitempty"`
	DueDate     *time.Time        `json:"dueDate,omitempty"`
}

type UpdateStatusRequest struct {
	Status models.TaskStatus `json:"status"`
}

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Missing caller identity", http.StatusUnauthorized)
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), ownerID, services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Project:     req.Project,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// GetTasks lists tasks. Filter and sort come from query parameters; with
// none present this is the plain full listing.
func (h *TaskHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	filter := models.TaskFilter{
		Status:     models.TaskStatus(params.Get("status")),
		Project:    params.Get("project"),
		AssignedTo: params.Get("assignedTo"),
	}
	sort := models.TaskSort{
		Field: models.TaskSortField(params.Get("sortField")),
		Order: models.TaskSortOrder(params.Get("sortOrder")),
	}

	tasks, err := h.taskService.FindTasks(r.Context(), filter, sort)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]

	task, err := h.taskService.GetTaskByID(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]

	var update models.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	task, err := h.taskService.UpdateTask(r.Context(), taskID, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]

	task, err := h.taskService.DeleteTask(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	task, err := h.taskService.UpdateTaskStatus(r.Context(), taskID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
