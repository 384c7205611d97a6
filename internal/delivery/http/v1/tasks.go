package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adergachev/taskkeep/internal/models"
	"github.com/adergachev/taskkeep/internal/services"
)

type taskResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	TargetDate  *time.Time      `json:"targetDate,omitempty"`
	Priority    models.Priority `json:"priority"`
	Tags        []string        `json:"tags"`
	IsCompleted bool            `json:"isCompleted"`
}

func newTaskResponse(task *models.Task) taskResponse {
	return taskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		TargetDate:  task.TargetDate,
		Priority:    task.Priority,
		Tags:        task.Tags,
		IsCompleted: task.Completed,
	}
}

func newTaskListResponse(tasks []models.Task) []taskResponse {
	response := make([]taskResponse, len(tasks))
	for i := range tasks {
		response[i] = newTaskResponse(&tasks[i])
	}
	return response
}

type taskRequest struct {
	Title       string          `json:"title" binding:"required,max=255"`
	Description string          `json:"description"`
	TargetDate  *time.Time      `json:"targetDate,omitempty"`
	Priority    models.Priority `json:"priority,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
}

func (h *handlerImpl) HandleCreateTask(c *gin.Context) {
	var req taskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	if !req.Priority.Valid() {
		h.logger.Error().
			Str("priority", string(req.Priority)).
			Msg("invalid priority")
		abort(c, newBadRequestError("invalid priority"))
		return
	}

	task, err := h.tasks.CreateTask(c, services.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		TargetDate:  req.TargetDate,
		Priority:    req.Priority,
		Tags:        req.Tags,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to create task")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	h.logger.Info().
		Str("task_id", task.ID).
		Msg("created task")
	c.JSON(http.StatusCreated, newTaskResponse(task))
}

func (h *handlerImpl) HandleListTasks(c *gin.Context) {
	filter := models.Filter(c.DefaultQuery("filter", string(models.FilterAll)))
	if !filter.Valid() {
		h.logger.Error().
			Str("filter", string(filter)).
			Msg("invalid filter")
		abort(c, newBadRequestError("invalid filter"))
		return
	}

	projected := services.ProjectTasks(h.tasks.Tasks(), filter)

	h.logger.Debug().
		Int("count", len(projected)).
		Str("filter", string(filter)).
		Msg("projected tasks")
	c.JSON(http.StatusOK, newTaskListResponse(projected))
}

func (h *handlerImpl) HandleUpdateTask(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		h.logger.Error().Msg("no task id provided")
		abort(c, newBadRequestError("no task id provided"))
		return
	}

	var req taskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	if !req.Priority.Valid() {
		h.logger.Error().
			Str("priority", string(req.Priority)).
			Msg("invalid priority")
		abort(c, newBadRequestError("invalid priority"))
		return
	}

	task, err := h.tasks.UpdateTask(c, services.UpdateTaskParams{
		ID:          taskID,
		Title:       req.Title,
		Description: req.Description,
		TargetDate:  req.TargetDate,
		Priority:    req.Priority,
		Tags:        req.Tags,
	})
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			h.logger.Warn().
				Str("task_id", taskID).
				Msg("task not found")
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
			return
		}

		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to update task")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	h.logger.Info().
		Str("task_id", task.ID).
		Msg("updated task")
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h *handlerImpl) HandleToggleTask(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		h.logger.Error().Msg("no task id provided")
		abort(c, newBadRequestError("no task id provided"))
		return
	}

	task, err := h.tasks.ToggleTask(c, taskID)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			h.logger.Warn().
				Str("task_id", taskID).
				Msg("task not found")
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
			return
		}

		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to toggle task")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	h.logger.Info().
		Str("task_id", task.ID).
		Bool("completed", task.Completed).
		Msg("toggled task")
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h *handlerImpl) HandleDeleteTask(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		h.logger.Error().Msg("no task id provided")
		abort(c, newBadRequestError("no task id provided"))
		return
	}

	err := h.tasks.RemoveTask(c, taskID)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			h.logger.Warn().
				Str("task_id", taskID).
				Msg("task not found")
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
			return
		}

		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to delete task")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	h.logger.Info().
		Str("task_id", taskID).
		Msg("deleted task")
	c.Status(http.StatusNoContent)
}

func (h *handlerImpl) HandleTaskStats(c *gin.Context) {
	stats := services.CountTasks(h.tasks.Tasks())
	c.JSON(http.StatusOK, stats)
}

func (h *handlerImpl) HandleListTags(c *gin.Context) {
	c.JSON(http.StatusOK, h.tasks.AvailableTags())
}
