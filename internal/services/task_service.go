package services

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adergachev/taskkeep/internal/models"
	"github.com/adergachev/taskkeep/internal/storage"
)

type taskServiceImpl struct {
	logger zerolog.Logger
	store  storage.Storage

	mu    sync.Mutex
	tasks []models.Task
	tags  []string
}

// NewTaskService restores the task collection and the tag vocabulary
// from storage. Absent entries mean an empty state; entries that fail
// to decode are dropped so that a corrupt file degrades to an empty
// tracker instead of refusing to start.
func NewTaskService(
	ctx context.Context,
	logger zerolog.Logger,
	store storage.Storage,
) (TaskService, error) {
	s := &taskServiceImpl{
		logger: logger,
		store:  store,
		tasks:  []models.Task{},
		tags:   []string{},
	}

	raw, ok, err := store.Get(ctx, storage.KeyTasks)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("failed to read tasks")
		return nil, err
	}
	if ok {
		err = json.Unmarshal([]byte(raw), &s.tasks)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("malformed tasks entry, starting empty")
			s.tasks = []models.Task{}
		}
	}

	raw, ok, err = store.Get(ctx, storage.KeyTags)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("failed to read tags")
		return nil, err
	}
	if ok {
		err = json.Unmarshal([]byte(raw), &s.tags)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("malformed tags entry, starting empty")
			s.tags = []string{}
		}
	}

	logger.Info().
		Int("tasks", len(s.tasks)).
		Int("tags", len(s.tags)).
		Msg("restored task collection")
	return s, nil
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taskUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate task uuid")
		return nil, err
	}

	task := models.Task{
		ID:          taskUUID.String(),
		Title:       params.Title,
		Description: params.Description,
		TargetDate:  params.TargetDate,
		Priority:    params.Priority.Normalize(),
		Tags:        params.Tags,
		Completed:   false,
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}

	tasks := append(slices.Clone(s.tasks), task)
	tags := mergeTags(s.tags, task.Tags)

	err = s.persist(ctx, tasks, tags)
	if err != nil {
		return nil, err
	}
	s.tasks, s.tags = tasks, tags

	s.logger.Info().
		Str("task_id", task.ID).
		Msg("created task")
	return &task, nil
}

func (s *taskServiceImpl) UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(params.ID)
	if i < 0 {
		s.logger.Warn().
			Str("task_id", params.ID).
			Msg("task not found")
		return nil, ErrTaskNotFound
	}

	tasks := slices.Clone(s.tasks)
	task := tasks[i]
	task.Title = params.Title
	task.Description = params.Description
	task.TargetDate = params.TargetDate
	task.Priority = params.Priority.Normalize()
	task.Tags = params.Tags
	if task.Tags == nil {
		task.Tags = []string{}
	}
	tasks[i] = task

	tags := mergeTags(s.tags, task.Tags)

	err := s.persist(ctx, tasks, tags)
	if err != nil {
		return nil, err
	}
	s.tasks, s.tags = tasks, tags

	s.logger.Info().
		Str("task_id", task.ID).
		Msg("updated task")
	return &task, nil
}

func (s *taskServiceImpl) RemoveTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.logger.Warn().
			Str("task_id", id).
			Msg("task not found")
		return ErrTaskNotFound
	}

	// The vocabulary keeps the removed task's tags on purpose.
	tasks := slices.Delete(slices.Clone(s.tasks), i, i+1)

	err := s.persist(ctx, tasks, s.tags)
	if err != nil {
		return err
	}
	s.tasks = tasks

	s.logger.Info().
		Str("task_id", id).
		Msg("removed task")
	return nil
}

func (s *taskServiceImpl) ToggleTask(ctx context.Context, id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.logger.Warn().
			Str("task_id", id).
			Msg("task not found")
		return nil, ErrTaskNotFound
	}

	tasks := slices.Clone(s.tasks)
	tasks[i].Completed = !tasks[i].Completed

	err := s.persist(ctx, tasks, s.tags)
	if err != nil {
		return nil, err
	}
	s.tasks = tasks
	task := tasks[i]

	s.logger.Info().
		Str("task_id", task.ID).
		Bool("completed", task.Completed).
		Msg("toggled task")
	return &task, nil
}

func (s *taskServiceImpl) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.tasks)
}

func (s *taskServiceImpl) AvailableTags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.tags)
}

func (s *taskServiceImpl) indexOf(id string) int {
	return slices.IndexFunc(s.tasks, func(t models.Task) bool {
		return t.ID == id
	})
}

// persist rewrites both entries in full. The in-memory state is only
// committed by the caller once this succeeds, so a failed write leaves
// memory and storage consistent with each other.
func (s *taskServiceImpl) persist(ctx context.Context, tasks []models.Task, tags []string) error {
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to marshal tasks")
		return err
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to marshal tags")
		return err
	}

	err = s.store.Set(ctx, storage.KeyTasks, string(tasksJSON))
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to persist tasks")
		return err
	}

	err = s.store.Set(ctx, storage.KeyTags, string(tagsJSON))
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to persist tags")
		return err
	}
	return nil
}

// mergeTags grows the vocabulary with tags it has not seen before,
// keeping the existing order and appending newcomers in the order they
// appear. Tags are matched verbatim, case included.
func mergeTags(vocabulary, incoming []string) []string {
	merged := slices.Clone(vocabulary)
	for _, tag := range incoming {
		if !slices.Contains(merged, tag) {
			merged = append(merged, tag)
		}
	}
	return merged
}
