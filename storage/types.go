package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Priority represents a task priority
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriorities lists all valid priority values, lowest first
var ValidPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ErrUnknownPriority is returned when decoding a priority outside ValidPriorities
var ErrUnknownPriority = errors.New("unknown priority")

// IsValidPriority checks if a string is a valid priority
func IsValidPriority(s string) bool {
	for _, p := range ValidPriorities {
		if string(p) == s {
			return true
		}
	}
	return false
}

// UnmarshalText rejects anything but low, medium or high
func (p *Priority) UnmarshalText(text []byte) error {
	if !IsValidPriority(string(text)) {
		return fmt.Errorf("%w: %q", ErrUnknownPriority, text)
	}
	*p = Priority(text)
	return nil
}

// TimestampLayout is the ISO-8601 form used for createdAt: UTC with
// millisecond precision and a literal Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Task represents a single to-do item
type Task struct {
	ID        int64
	Text      string
	Completed bool
	Priority  Priority
	CreatedAt time.Time
}

type taskJSON struct {
	ID        int64    `json:"id"`
	Text      string   `json:"text"`
	Completed bool     `json:"completed"`
	Priority  Priority `json:"priority"`
	CreatedAt string   `json:"createdAt"`
}

// MarshalJSON writes the task in its persisted shape
func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskJSON{
		ID:        t.ID,
		Text:      t.Text,
		Completed: t.Completed,
		Priority:  t.Priority,
		CreatedAt: t.CreatedAt.UTC().Format(TimestampLayout),
	})
}

// UnmarshalJSON reads the persisted shape. createdAt accepts any RFC 3339
// timestamp so hand-edited files still load; a missing one leaves the zero
// time.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw taskJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var createdAt time.Time
	if raw.CreatedAt != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw.CreatedAt)
		if err != nil {
			return fmt.Errorf("task %d: invalid createdAt: %w", raw.ID, err)
		}
		createdAt = parsed
	}

	*t = Task{
		ID:        raw.ID,
		Text:      raw.Text,
		Completed: raw.Completed,
		Priority:  raw.Priority,
		CreatedAt: createdAt.UTC(),
	}
	return nil
}

// EncodeTasks serializes the full collection, preserving order
func EncodeTasks(tasks []Task) ([]byte, error) {
	if tasks == nil {
		tasks = []Task{}
	}
	return json.Marshal(tasks)
}

// DecodeTasks parses a serialized collection. A JSON null decodes to a nil
// slice, which callers can tell apart from an empty collection. Only the
// field types are checked; blank text and repeated ids pass through.
func DecodeTasks(data []byte) ([]Task, error) {
	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Priority == "" {
			return nil, fmt.Errorf("task %d: %w: missing", t.ID, ErrUnknownPriority)
		}
	}
	return tasks, nil
}
