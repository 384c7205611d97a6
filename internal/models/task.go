package models

import "time"

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PriorityNone   Priority = "none"
)

// Rank maps a priority to its sort key: high < medium < low < none.
// The empty value ranks the same as PriorityNone.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow, PriorityNone, "":
		return true
	}
	return false
}

// Normalize resolves the empty value to PriorityNone.
func (p Priority) Normalize() Priority {
	if p == "" {
		return PriorityNone
	}
	return p
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Tags        []string   `json:"tags"`
	Completed   bool       `json:"isCompleted"`
}

type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = "pending"
	FilterCompleted Filter = "completed"
)

func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterPending, FilterCompleted, "":
		return true
	}
	return false
}
