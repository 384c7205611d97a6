package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adergachev/taskkeep/internal/services"
	"github.com/adergachev/taskkeep/internal/storage"
)

// newTestRouter wires the task routes without the auth middleware so
// the handlers can be exercised directly.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	taskService, err := services.NewTaskService(
		context.Background(),
		zerolog.Nop(),
		storage.NewMemoryStorage(),
	)
	require.NoError(t, err)

	handler := New(zerolog.Nop(), nil, nil, taskService)

	router := gin.New()
	group := router.Group("/api/v1")
	group.GET("/tasks", handler.HandleListTasks)
	group.POST("/tasks", handler.HandleCreateTask)
	group.GET("/tasks/stats", handler.HandleTaskStats)
	group.PUT("/tasks/:id", handler.HandleUpdateTask)
	group.PATCH("/tasks/:id/toggle", handler.HandleToggleTask)
	group.DELETE("/tasks/:id", handler.HandleDeleteTask)
	group.GET("/tags", handler.HandleListTags)
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createTask(t *testing.T, router *gin.Engine, body string) taskResponse {
	t.Helper()

	w := doRequest(router, http.MethodPost, "/api/v1/tasks", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var task taskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	return task
}

func TestCreateTaskEndpoint(t *testing.T) {
	router := newTestRouter(t)

	task := createTask(t, router, `{
		"title": "write report",
		"description": "quarterly numbers",
		"priority": "high",
		"tags": ["work"]
	}`)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "write report", task.Title)
	assert.Equal(t, "high", string(task.Priority))
	assert.Equal(t, []string{"work"}, task.Tags)
	assert.False(t, task.IsCompleted)
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/tasks", `{"description":"no title"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTaskRejectsUnknownPriority(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/tasks", `{"title":"x","priority":"asap"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTasksFilterAndOrder(t *testing.T) {
	router := newTestRouter(t)

	a := createTask(t, router, `{"title":"a","priority":"high"}`)
	b := createTask(t, router, `{"title":"b","priority":"low"}`)
	c := createTask(t, router, `{"title":"c"}`)

	w := doRequest(router, http.MethodPatch, "/api/v1/tasks/"+b.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/tasks?filter=pending", "")
	require.Equal(t, http.StatusOK, w.Code)

	var pending []taskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, c.ID, pending[1].ID)

	w = doRequest(router, http.MethodGet, "/api/v1/tasks?filter=completed", "")
	require.Equal(t, http.StatusOK, w.Code)

	var completed []taskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &completed))
	require.Len(t, completed, 1)
	assert.Equal(t, b.ID, completed[0].ID)
}

func TestListTasksRejectsUnknownFilter(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/tasks?filter=done", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateTaskEndpoint(t *testing.T) {
	router := newTestRouter(t)
	task := createTask(t, router, `{"title":"before"}`)

	w := doRequest(router, http.MethodPut, "/api/v1/tasks/"+task.ID, `{"title":"after","priority":"medium"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var updated taskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, task.ID, updated.ID)
	assert.Equal(t, "after", updated.Title)
	assert.Equal(t, "medium", string(updated.Priority))
}

func TestUpdateTaskNotFound(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPut, "/api/v1/tasks/missing", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteTaskEndpoint(t *testing.T) {
	router := newTestRouter(t)
	task := createTask(t, router, `{"title":"doomed"}`)

	w := doRequest(router, http.MethodDelete, "/api/v1/tasks/"+task.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/v1/tasks/"+task.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestToggleTaskNotFoundEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPatch, "/api/v1/tasks/missing/toggle", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskStatsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	a := createTask(t, router, `{"title":"a"}`)
	createTask(t, router, `{"title":"b"}`)

	w := doRequest(router, http.MethodPatch, "/api/v1/tasks/"+a.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/tasks/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats services.TaskStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, services.TaskStats{Total: 2, Completed: 1, Pending: 1}, stats)
}

func TestListTagsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	task := createTask(t, router, `{"title":"a","tags":["work","urgent"]}`)

	w := doRequest(router, http.MethodDelete, "/api/v1/tasks/"+task.ID, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	// Tags outlive the task that introduced them.
	w = doRequest(router, http.MethodGet, "/api/v1/tags", "")
	require.Equal(t, http.StatusOK, w.Code)

	var tags []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tags))
	assert.Equal(t, []string{"work", "urgent"}, tags)
}
