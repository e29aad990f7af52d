// Package tasklist owns the ordered task collection: create, edit, toggle and
// delete operations, the filter/search projection, and the counts shown
// beside it. Every mutation writes the whole collection through an injected
// storage.KV and then notifies registered observers.
//
// A Store is not safe for concurrent use. Callers drive it from a single
// goroutine, one operation at a time.
package tasklist

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"tasklist/storage"
)

// DefaultKey is the key the collection is persisted under
const DefaultKey = "tasks"

// replacementChar stands in for invalid UTF-8 in task text, matching what
// the JSON encoder would write
const replacementChar = "\uFFFD"

// Observer receives refreshes after state changes
type Observer interface {
	RenderTasks(v View)
	UpdateStats(s Stats)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Render func(View)
	Stats  func(Stats)
}

func (o ObserverFuncs) RenderTasks(v View) {
	if o.Render != nil {
		o.Render(v)
	}
}

func (o ObserverFuncs) UpdateStats(s Stats) {
	if o.Stats != nil {
		o.Stats(s)
	}
}

// Store is the task list state plus its persisted mirror
type Store struct {
	kv        storage.KV
	key       string
	now       func() time.Time
	rng       *rand.Rand
	logger    *slog.Logger
	observers []Observer

	tasks  []storage.Task
	filter Filter
	search string
}

// Option configures a Store
type Option func(*Store)

// WithKey sets the persisted key
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithClock sets the time source used for ids and creation timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRand sets the source for random priorities. A seeded source makes
// priority assignment reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(s *Store) { s.rng = rng }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithObserver(o Observer) Option {
	return func(s *Store) { s.observers = append(s.observers, o) }
}

// New loads the collection from kv, falling back to the seed tasks when
// nothing has been persisted yet.
func New(kv storage.KV, opts ...Option) (*Store, error) {
	s := &Store{
		kv:     kv,
		key:    DefaultKey,
		now:    time.Now,
		filter: FilterAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, ok, err := s.kv.Get(s.key)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.key, err)
	}

	var tasks []storage.Task
	if ok {
		tasks, err = storage.DecodeTasks(data)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", s.key, err)
		}
		tasks = s.dropDuplicateIDs(tasks)
	}

	// Absent and null both mean "never saved"; an empty array is a real,
	// empty list.
	if tasks == nil {
		tasks = SeedTasks(s.now())
		s.logger.Debug("no persisted tasks, using seed set", "key", s.key, "count", len(tasks))
	} else {
		s.logger.Debug("loaded tasks", "key", s.key, "count", len(tasks))
	}
	s.tasks = tasks
	return nil
}

// dropDuplicateIDs keeps the first task for each id. Persisted data is
// otherwise taken as is, blank text included.
func (s *Store) dropDuplicateIDs(tasks []storage.Task) []storage.Task {
	seen := make(map[int64]bool, len(tasks))
	kept := tasks[:0]
	for _, t := range tasks {
		if seen[t.ID] {
			s.logger.Warn("dropping task with duplicate id", "key", s.key, "id", t.ID, "text", t.Text)
			continue
		}
		seen[t.ID] = true
		kept = append(kept, t)
	}
	return kept
}

// cleanText trims text and replaces invalid UTF-8 so the in-memory text is
// exactly what a reload returns
func cleanText(text string) string {
	return strings.TrimSpace(strings.ToValidUTF8(text, replacementChar))
}

// SeedTasks returns the sample tasks used on first run
func SeedTasks(now time.Time) []storage.Task {
	createdAt := now.UTC().Truncate(time.Millisecond)
	return []storage.Task{
		{ID: 1, Text: "Complete project proposal", Completed: false, Priority: storage.PriorityHigh, CreatedAt: createdAt},
		{ID: 2, Text: "Buy groceries", Completed: true, Priority: storage.PriorityMedium, CreatedAt: createdAt},
		{ID: 3, Text: "Call mom", Completed: false, Priority: storage.PriorityLow, CreatedAt: createdAt},
		{ID: 4, Text: "Read a book", Completed: false, Priority: storage.PriorityMedium, CreatedAt: createdAt},
	}
}

// Subscribe registers an observer for future refreshes
func (s *Store) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

// Add creates a task from text and prepends it. Blank text creates nothing
// and reports false.
func (s *Store) Add(text string) (storage.Task, bool, error) {
	text = cleanText(text)
	if text == "" {
		s.logger.Debug("add ignored: blank text")
		return storage.Task{}, false, s.commit()
	}

	now := s.now()
	task := storage.Task{
		ID:        s.nextID(now),
		Text:      text,
		Completed: false,
		Priority:  s.randomPriority(),
		CreatedAt: now.UTC().Truncate(time.Millisecond),
	}

	s.tasks = append([]storage.Task{task}, s.tasks...)
	s.logger.Debug("task added", "id", task.ID, "priority", task.Priority)
	return task, true, s.commit()
}

// nextID derives an id from the clock in milliseconds, bumped past every
// live id so ids stay unique when the clock stalls or runs backwards.
func (s *Store) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	for _, t := range s.tasks {
		if t.ID >= id {
			id = t.ID + 1
		}
	}
	return id
}

func (s *Store) randomPriority() storage.Priority {
	return storage.ValidPriorities[s.rng.IntN(len(storage.ValidPriorities))]
}

// Delete removes the task with id. Reports whether a task was removed.
func (s *Store) Delete(id int64) (bool, error) {
	i := s.indexOf(id)
	if i < 0 {
		s.logger.Debug("delete ignored: unknown id", "id", id)
		return false, s.commit()
	}

	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.logger.Debug("task deleted", "id", id)
	return true, s.commit()
}

// Toggle flips the completed flag of the task with id
func (s *Store) Toggle(id int64) (bool, error) {
	i := s.indexOf(id)
	if i < 0 {
		s.logger.Debug("toggle ignored: unknown id", "id", id)
		return false, s.commit()
	}

	s.tasks[i].Completed = !s.tasks[i].Completed
	s.logger.Debug("task toggled", "id", id, "completed", s.tasks[i].Completed)
	return true, s.commit()
}

// Edit replaces the text of the task with id. Blank text leaves the task
// unchanged and reports false.
func (s *Store) Edit(id int64, text string) (bool, error) {
	text = cleanText(text)
	if text == "" {
		s.logger.Debug("edit ignored: blank text", "id", id)
		return false, s.commit()
	}

	i := s.indexOf(id)
	if i < 0 {
		s.logger.Debug("edit ignored: unknown id", "id", id)
		return false, s.commit()
	}

	s.tasks[i].Text = text
	s.logger.Debug("task edited", "id", id)
	return true, s.commit()
}

// SetFilter changes the filter mode and re-renders the task view
func (s *Store) SetFilter(f Filter) {
	s.filter = f
	s.renderTasks()
}

// SetSearch changes the search term and re-renders the task view
func (s *Store) SetSearch(term string) {
	s.search = term
	s.renderTasks()
}

func (s *Store) Filter() Filter { return s.filter }
func (s *Store) Search() string { return s.search }

// Visible returns the tasks passing both the filter and the search term, in
// collection order.
func (s *Store) Visible() View {
	v := View{Filter: s.filter, Search: s.search, Tasks: []storage.Task{}}
	for _, t := range s.tasks {
		if s.filter.Matches(t) && matchesSearch(t, s.search) {
			v.Tasks = append(v.Tasks, t)
		}
	}

	if len(v.Tasks) == 0 {
		v.Empty = EmptyNoTasks
		if s.search != "" {
			v.Empty = EmptyNoMatches
		}
	}
	return v
}

// Stats counts the whole collection
func (s *Store) Stats() Stats {
	st := Stats{Total: len(s.tasks)}
	for _, t := range s.tasks {
		if t.Completed {
			st.Completed++
		}
	}
	st.Pending = st.Total - st.Completed
	return st
}

// Tasks returns a copy of the full collection, newest first
func (s *Store) Tasks() []storage.Task {
	out := make([]storage.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Get returns the task with id
func (s *Store) Get(id int64) (storage.Task, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i], true
	}
	return storage.Task{}, false
}

// Refresh notifies observers of the current state without changing it
func (s *Store) Refresh() {
	s.renderTasks()
	s.updateStats()
}

func (s *Store) indexOf(id int64) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// commit persists the collection and refreshes observers. Observers are
// refreshed even when persisting fails, since in-memory state has already
// moved on.
func (s *Store) commit() error {
	err := s.save()
	if err != nil {
		s.logger.Error("failed to persist tasks", "key", s.key, "error", err)
	}
	s.Refresh()
	return err
}

func (s *Store) save() error {
	data, err := storage.EncodeTasks(s.tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	if err := s.kv.Set(s.key, data); err != nil {
		return fmt.Errorf("failed to save tasks: %w", err)
	}
	return nil
}

func (s *Store) renderTasks() {
	v := s.Visible()
	for _, o := range s.observers {
		o.RenderTasks(v)
	}
}

func (s *Store) updateStats() {
	st := s.Stats()
	for _, o := range s.observers {
		o.UpdateStats(st)
	}
}
