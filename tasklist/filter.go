package tasklist

import (
	"errors"
	"fmt"
	"strings"

	"tasklist/storage"
)

// Filter selects tasks by completion state
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ValidFilters lists all filter modes in display order
var ValidFilters = []Filter{FilterAll, FilterActive, FilterCompleted}

var ErrUnknownFilter = errors.New("unknown filter")

// ParseFilter converts user input into a Filter
func ParseFilter(s string) (Filter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range ValidFilters {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q (use all, active, or completed)", ErrUnknownFilter, s)
}

// Matches reports whether t passes the filter
func (f Filter) Matches(t storage.Task) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// matchesSearch is a case-insensitive substring test. An empty term matches
// everything.
func matchesSearch(t storage.Task, term string) bool {
	return strings.Contains(strings.ToLower(t.Text), strings.ToLower(term))
}

// EmptyState explains why a View has no tasks
type EmptyState int

const (
	// EmptyNone means at least one task is visible
	EmptyNone EmptyState = iota
	// EmptyNoTasks means nothing is visible and no search is active
	EmptyNoTasks
	// EmptyNoMatches means nothing is visible under the current search
	EmptyNoMatches
)

// Message returns the text shown in place of an empty list
func (e EmptyState) Message() string {
	switch e {
	case EmptyNoTasks:
		return "Add a task to get started"
	case EmptyNoMatches:
		return "No tasks match your search"
	default:
		return ""
	}
}

// View is the filtered, searched projection of the collection
type View struct {
	Tasks  []storage.Task
	Filter Filter
	Search string
	Empty  EmptyState
}

// Stats counts tasks across the whole collection, ignoring filter and search
type Stats struct {
	Total     int
	Completed int
	Pending   int
}
