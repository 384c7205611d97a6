package services

import (
	"sort"

	"github.com/adergachev/taskkeep/internal/models"
)

// ProjectTasks returns the tasks that match the filter, ordered by
// priority rank. The sort is stable: tasks of equal rank keep their
// insertion order. The input slice is never modified.
func ProjectTasks(tasks []models.Task, filter models.Filter) []models.Task {
	projected := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		switch filter {
		case models.FilterPending:
			if task.Completed {
				continue
			}
		case models.FilterCompleted:
			if !task.Completed {
				continue
			}
		}
		projected = append(projected, task)
	}

	sort.SliceStable(projected, func(i, j int) bool {
		return projected[i].Priority.Rank() < projected[j].Priority.Rank()
	})
	return projected
}

type TaskStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// CountTasks computes completion counts over the full, unfiltered
// collection.
func CountTasks(tasks []models.Task) TaskStats {
	stats := TaskStats{Total: len(tasks)}
	for _, task := range tasks {
		if task.Completed {
			stats.Completed++
		} else {
			stats.Pending++
		}
	}
	return stats
}
