package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adergachev/taskkeep/internal/models"
	"github.com/adergachev/taskkeep/internal/storage"
)

func newTestTaskService(t *testing.T, store storage.Storage) TaskService {
	t.Helper()

	svc, err := NewTaskService(context.Background(), zerolog.Nop(), store)
	require.NoError(t, err)
	return svc
}

// failingStorage lets tests flip persistence into a failure mode
// after some successful writes.
type failingStorage struct {
	storage.Storage
	fail bool
}

func (s *failingStorage) Set(ctx context.Context, key, value string) error {
	if s.fail {
		return errors.New("storage medium failure")
	}
	return s.Storage.Set(ctx, key, value)
}

func TestCreateTaskUniqueIDs(t *testing.T) {
	svc := newTestTaskService(t, storage.NewMemoryStorage())
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "task"})
		require.NoError(t, err)
		assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
		assert.False(t, task.Completed)
		seen[task.ID] = true
	}
	assert.Len(t, svc.Tasks(), 20)
}

func TestCreateTaskDefaults(t *testing.T) {
	svc := newTestTaskService(t, storage.NewMemoryStorage())

	task, err := svc.CreateTask(context.Background(), CreateTaskParams{Title: "bare"})
	require.NoError(t, err)

	assert.Equal(t, models.PriorityNone, task.Priority)
	assert.Equal(t, []string{}, task.Tags)
	assert.Nil(t, task.TargetDate)
	assert.False(t, task.Completed)
}

func TestCreateTaskPreservesInsertionOrder(t *testing.T) {
	svc := newTestTaskService(t, storage.NewMemoryStorage())
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := svc.CreateTask(ctx, CreateTaskParams{Title: title})
		require.NoError(t, err)
	}

	tasks := svc.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, "first", tasks[0].Title)
	assert.Equal(t, "second", tasks[1].Title)
	assert.Equal(t, "third", tasks[2].Title)
}

func TestUpdateTask(t *testing.T) {
	svc := newTestTaskService(t, storage.NewMemoryStorage())
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, CreateTaskParams{
		Title:    "old title",
		Priority: models.PriorityLow,
		Tags:     []string{"home"},
	})
	require.NoError(t, err)

	_, err = svc.ToggleTask(ctx, created.ID)
	require.NoError(t, err)

	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateTask(ctx, UpdateTaskParams{
		ID:          created.ID,
		Title:       "new title",
		Description: "now with details",
		TargetDate:  &due,
		Priority:    models.PriorityHigh,
		Tags:        []string{"work"},
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "new title", updated.Title)
	assert.Equal(t, "now with details", updated.Description)
	assert.Equal(t, models.PriorityHigh, updated.Priority)
	assert.Equal(t, []string{"work"}, updated.Tags)
	// Completed is not touched by update.
	assert.True(t, updated.Completed)
}

func TestUpdateTaskNotFound(t *testing.T) {
	store := storage.NewMemoryStorage()
	svc := newTestTaskService(t, store)
	ctx := context.Background()

	_, err := svc.CreateTask(ctx, CreateTaskParams{Title: "keep me"})
	require.NoError(t, err)

	before := svc.Tasks()
	persistedBefore, _, err := store.Get(ctx, storage.KeyTasks)
	require.NoError(t, err)

	_, err = svc.UpdateTask(ctx, UpdateTaskParams{ID: "missing", Title: "nope"})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	assert.Equal(t, before, svc.Tasks())
	persistedAfter, _, err := store.Get(ctx, storage.KeyTasks)
	require.NoError(t, err)
	assert.Equal(t, persistedBefore, persistedAfter)
}

func TestRemoveTaskIdempotent(t *testing.T) {
	svc := newTestTaskService(t, storage.NewMemoryStorage())
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "short lived"})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveTask(ctx, task.ID))
	assert.Empty(t, svc.Tasks())

	err = svc.RemoveTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.Empty(t, svc.Tasks())
}

func TestToggleTaskTwice(t *testing.T) {
	svc := newTestTaskService(t, storage.NewMemoryStorage())
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "flip me"})
	require.NoError(t, err)

	toggled, err := svc.ToggleTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)

	toggled, err = svc.ToggleTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Completed)
}

func TestToggleTaskNotFound(t *testing.T) {
	svc := newTestTaskService(t, storage.NewMemoryStorage())

	_, err := svc.ToggleTask(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestVocabularyGrowsMonotonically(t *testing.T) {
	svc := newTestTaskService(t, storage.NewMemoryStorage())
	ctx := context.Background()

	requireSuperset := func(before []string) {
		t.Helper()
		after := svc.AvailableTags()
		require.GreaterOrEqual(t, len(after), len(before))
		assert.Equal(t, before, after[:len(before)], "existing vocabulary order changed")
	}

	before := svc.AvailableTags()
	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "a", Tags: []string{"work", "urgent"}})
	require.NoError(t, err)
	requireSuperset(before)

	before = svc.AvailableTags()
	_, err = svc.UpdateTask(ctx, UpdateTaskParams{ID: task.ID, Title: "a", Tags: []string{"home"}})
	require.NoError(t, err)
	requireSuperset(before)

	before = svc.AvailableTags()
	require.NoError(t, svc.RemoveTask(ctx, task.ID))
	requireSuperset(before)

	assert.Equal(t, []string{"work", "urgent", "home"}, svc.AvailableTags())
}

func TestVocabularySurvivesTaskRemoval(t *testing.T) {
	svc := newTestTaskService(t, storage.NewMemoryStorage())
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "tagged", Tags: []string{"work", "urgent"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "urgent"}, svc.AvailableTags())

	require.NoError(t, svc.RemoveTask(ctx, task.ID))
	assert.Equal(t, []string{"work", "urgent"}, svc.AvailableTags())
}

func TestVocabularyKeepsTagsVerbatim(t *testing.T) {
	svc := newTestTaskService(t, storage.NewMemoryStorage())
	ctx := context.Background()

	_, err := svc.CreateTask(ctx, CreateTaskParams{Title: "a", Tags: []string{"Work"}})
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, CreateTaskParams{Title: "b", Tags: []string{"work"}})
	require.NoError(t, err)

	// Case matters, both spellings are distinct vocabulary entries.
	assert.Equal(t, []string{"Work", "work"}, svc.AvailableTags())
}

func TestRestoreFromStorage(t *testing.T) {
	store := storage.NewMemoryStorage()
	svc := newTestTaskService(t, store)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, CreateTaskParams{
		Title:    "persisted",
		Priority: models.PriorityMedium,
		Tags:     []string{"keep"},
	})
	require.NoError(t, err)
	_, err = svc.ToggleTask(ctx, created.ID)
	require.NoError(t, err)

	restored := newTestTaskService(t, store)

	tasks := restored.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)
	assert.Equal(t, "persisted", tasks[0].Title)
	assert.Equal(t, models.PriorityMedium, tasks[0].Priority)
	assert.True(t, tasks[0].Completed)
	assert.Equal(t, []string{"keep"}, restored.AvailableTags())
}

func TestRestoreFromMalformedEntries(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, storage.KeyTasks, "{not json"))
	require.NoError(t, store.Set(ctx, storage.KeyTags, "also not json"))

	// A corrupt entry degrades to an empty tracker instead of
	// failing startup.
	svc := newTestTaskService(t, store)
	assert.Empty(t, svc.Tasks())
	assert.Empty(t, svc.AvailableTags())
}

func TestPersistFailureLeavesStateUnchanged(t *testing.T) {
	store := &failingStorage{Storage: storage.NewMemoryStorage()}
	svc := newTestTaskService(t, store)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{Title: "stable"})
	require.NoError(t, err)

	persistedBefore, _, err := store.Get(ctx, storage.KeyTasks)
	require.NoError(t, err)

	store.fail = true

	_, err = svc.UpdateTask(ctx, UpdateTaskParams{ID: task.ID, Title: "changed"})
	require.Error(t, err)
	_, err = svc.ToggleTask(ctx, task.ID)
	require.Error(t, err)
	require.Error(t, svc.RemoveTask(ctx, task.ID))

	tasks := svc.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "stable", tasks[0].Title)
	assert.False(t, tasks[0].Completed)

	persistedAfter, _, err := store.Get(ctx, storage.KeyTasks)
	require.NoError(t, err)
	assert.Equal(t, persistedBefore, persistedAfter)
}

func TestTasksReturnsCopy(t *testing.T) {
	svc := newTestTaskService(t, storage.NewMemoryStorage())
	ctx := context.Background()

	_, err := svc.CreateTask(ctx, CreateTaskParams{Title: "original"})
	require.NoError(t, err)

	tasks := svc.Tasks()
	tasks[0].Title = "mutated"

	assert.Equal(t, "original", svc.Tasks()[0].Title)
}
