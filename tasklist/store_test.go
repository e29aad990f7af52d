package tasklist

import (
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tasklist/storage"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 123_456_789, time.UTC)

// recorder is an Observer that remembers every refresh
type recorder struct {
	views []View
	stats []Stats
}

func (r *recorder) RenderTasks(v View)  { r.views = append(r.views, v) }
func (r *recorder) UpdateStats(s Stats) { r.stats = append(r.stats, s) }

// failingKV loads nothing and fails every write
type failingKV struct{}

var errDiskFull = errors.New("disk full")

func (failingKV) Get(string) ([]byte, bool, error) { return nil, false, nil }
func (failingKV) Set(string, []byte) error         { return errDiskFull }
func (failingKV) Close() error                     { return nil }

// setupTestStore creates a seeded store over an in-memory KV
func setupTestStore(t *testing.T, opts ...Option) (*Store, *storage.MemoryStore, *recorder) {
	t.Helper()

	kv := storage.NewMemoryStore()
	rec := &recorder{}
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithObserver(rec),
	}

	store, err := New(kv, append(base, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store, kv, rec
}

// persisted decodes what the KV currently holds
func persisted(t *testing.T, kv storage.KV) []storage.Task {
	t.Helper()

	data, ok, err := kv.Get(DefaultKey)
	if err != nil || !ok {
		t.Fatalf("Expected persisted tasks, got ok=%v err=%v", ok, err)
	}
	tasks, err := storage.DecodeTasks(data)
	if err != nil {
		t.Fatalf("Failed to decode persisted tasks: %v", err)
	}
	return tasks
}

func TestSeedStats(t *testing.T) {
	store, _, _ := setupTestStore(t)

	want := Stats{Total: 4, Completed: 1, Pending: 3}
	if got := store.Stats(); got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	tasks := store.Tasks()
	if tasks[0].Text != "Complete project proposal" || tasks[3].Text != "Read a book" {
		t.Errorf("Unexpected seed order: %v", tasks)
	}
}

func TestAdd(t *testing.T) {
	store, kv, _ := setupTestStore(t)

	task, created, err := store.Add("  Buy milk  ")
	if err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	if !created {
		t.Fatal("Expected task to be created")
	}

	if task.Text != "Buy milk" {
		t.Errorf("Expected trimmed text, got %q", task.Text)
	}
	if task.Completed {
		t.Error("New task should not be completed")
	}
	if !storage.IsValidPriority(string(task.Priority)) {
		t.Errorf("Invalid priority: %q", task.Priority)
	}
	if task.ID != testNow.UnixMilli() {
		t.Errorf("Expected time-derived id %d, got %d", testNow.UnixMilli(), task.ID)
	}
	if !task.CreatedAt.Equal(testNow.Truncate(time.Millisecond)) {
		t.Errorf("Expected createdAt %v, got %v", testNow, task.CreatedAt)
	}

	tasks := store.Tasks()
	if tasks[0].ID != task.ID {
		t.Errorf("New task should be first, got %v", tasks[0])
	}
	if got := store.Stats().Total; got != 5 {
		t.Errorf("Expected total 5, got %d", got)
	}

	if diff := cmp.Diff(store.Tasks(), persisted(t, kv)); diff != "" {
		t.Errorf("Persisted state mismatch (-memory +kv):\n%s", diff)
	}
}

func TestAddBlank(t *testing.T) {
	store, _, rec := setupTestStore(t)
	before := store.Tasks()

	for _, text := range []string{"", "   ", "\t\n"} {
		_, created, err := store.Add(text)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if created {
			t.Errorf("Blank text %q should not create a task", text)
		}
	}

	if diff := cmp.Diff(before, store.Tasks()); diff != "" {
		t.Errorf("Blank add changed state (-before +after):\n%s", diff)
	}
	if want := (Stats{Total: 4, Completed: 1, Pending: 3}); store.Stats() != want {
		t.Errorf("Blank add changed stats: %+v", store.Stats())
	}

	// No-ops still refresh
	if len(rec.views) != 3 || len(rec.stats) != 3 {
		t.Errorf("Expected 3 refreshes, got %d renders and %d stats", len(rec.views), len(rec.stats))
	}
}

func TestAddUniqueIDsWithFrozenClock(t *testing.T) {
	store, _, _ := setupTestStore(t)

	seen := make(map[int64]bool)
	for _, task := range store.Tasks() {
		seen[task.ID] = true
	}
	for i := 0; i < 20; i++ {
		task, _, err := store.Add("same millisecond")
		if err != nil {
			t.Fatalf("Failed to add: %v", err)
		}
		if seen[task.ID] {
			t.Fatalf("Duplicate id %d", task.ID)
		}
		seen[task.ID] = true
	}
}

func TestAddIDAfterClockRegression(t *testing.T) {
	kv := storage.NewMemoryStore()
	future := []storage.Task{{ID: testNow.UnixMilli() + 5000, Text: "from the future", Priority: storage.PriorityLow, CreatedAt: testNow}}
	data, _ := storage.EncodeTasks(future)
	kv.Set(DefaultKey, data)

	store, err := New(kv, WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	task, _, err := store.Add("after")
	if err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	if task.ID != future[0].ID+1 {
		t.Errorf("Expected id %d, got %d", future[0].ID+1, task.ID)
	}
}

func TestRandomPriorityCoversAllValues(t *testing.T) {
	store, _, _ := setupTestStore(t)

	seen := make(map[storage.Priority]int)
	for i := 0; i < 200; i++ {
		task, _, _ := store.Add("task")
		seen[task.Priority]++
	}
	for _, p := range storage.ValidPriorities {
		if seen[p] == 0 {
			t.Errorf("Priority %q never assigned", p)
		}
	}
	if len(seen) != len(storage.ValidPriorities) {
		t.Errorf("Unexpected priorities assigned: %v", seen)
	}
}

func TestSeededPriorityIsReproducible(t *testing.T) {
	a, _, _ := setupTestStore(t, WithRand(rand.New(rand.NewPCG(7, 7))))
	b, _, _ := setupTestStore(t, WithRand(rand.New(rand.NewPCG(7, 7))))

	for i := 0; i < 10; i++ {
		ta, _, _ := a.Add("x")
		tb, _, _ := b.Add("x")
		if ta.Priority != tb.Priority {
			t.Fatalf("Add %d: priorities diverged: %s vs %s", i, ta.Priority, tb.Priority)
		}
	}
}

func TestToggle(t *testing.T) {
	store, kv, _ := setupTestStore(t)

	// Task 3 starts pending
	found, err := store.Toggle(3)
	if err != nil {
		t.Fatalf("Failed to toggle: %v", err)
	}
	if !found {
		t.Fatal("Expected task 3 to be found")
	}
	if want := (Stats{Total: 4, Completed: 2, Pending: 2}); store.Stats() != want {
		t.Errorf("Expected %+v, got %+v", want, store.Stats())
	}
	if task, _ := store.Get(3); !task.Completed {
		t.Error("Task 3 should be completed")
	}

	// Toggle back
	store.Toggle(3)
	if want := (Stats{Total: 4, Completed: 1, Pending: 3}); store.Stats() != want {
		t.Errorf("Expected %+v, got %+v", want, store.Stats())
	}

	// Absent id
	before := store.Tasks()
	found, err = store.Toggle(999)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if found {
		t.Error("Toggle of absent id should report false")
	}
	if diff := cmp.Diff(before, store.Tasks()); diff != "" {
		t.Errorf("Toggle of absent id changed state:\n%s", diff)
	}

	if diff := cmp.Diff(store.Tasks(), persisted(t, kv)); diff != "" {
		t.Errorf("Persisted state mismatch (-memory +kv):\n%s", diff)
	}
}

func TestDelete(t *testing.T) {
	store, kv, _ := setupTestStore(t)

	removed, err := store.Delete(2)
	if err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if !removed {
		t.Fatal("Expected task 2 to be removed")
	}
	if want := (Stats{Total: 3, Completed: 0, Pending: 3}); store.Stats() != want {
		t.Errorf("Expected %+v, got %+v", want, store.Stats())
	}
	if _, ok := store.Get(2); ok {
		t.Error("Task 2 should be gone")
	}

	var ids []int64
	for _, task := range store.Tasks() {
		ids = append(ids, task.ID)
	}
	if diff := cmp.Diff([]int64{1, 3, 4}, ids); diff != "" {
		t.Errorf("Unexpected remaining ids:\n%s", diff)
	}

	// Deleting again is a no-op
	removed, err = store.Delete(2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if removed {
		t.Error("Second delete should report false")
	}
	if store.Stats().Total != 3 {
		t.Errorf("Second delete changed total: %d", store.Stats().Total)
	}

	if got := persisted(t, kv); len(got) != 3 {
		t.Errorf("Expected 3 persisted tasks, got %d", len(got))
	}
}

func TestEdit(t *testing.T) {
	store, _, _ := setupTestStore(t)
	original, _ := store.Get(2)

	changed, err := store.Edit(2, "  Buy groceries and bread ")
	if err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}
	if !changed {
		t.Fatal("Expected edit to apply")
	}

	edited, _ := store.Get(2)
	want := original
	want.Text = "Buy groceries and bread"
	if diff := cmp.Diff(want, edited); diff != "" {
		t.Errorf("Edit changed more than text (-want +got):\n%s", diff)
	}

	// Blank text leaves the task alone
	changed, err = store.Edit(2, "   ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if changed {
		t.Error("Blank edit should report false")
	}
	if after, _ := store.Get(2); after.Text != "Buy groceries and bread" {
		t.Errorf("Blank edit changed text to %q", after.Text)
	}

	// Unknown id
	changed, _ = store.Edit(404, "whatever")
	if changed {
		t.Error("Edit of unknown id should report false")
	}
}

func TestVisibleFilters(t *testing.T) {
	store, _, _ := setupTestStore(t)

	ids := func(v View) []int64 {
		var out []int64
		for _, task := range v.Tasks {
			out = append(out, task.ID)
		}
		return out
	}

	testCases := []struct {
		filter Filter
		search string
		want   []int64
		empty  EmptyState
	}{
		{FilterAll, "", []int64{1, 2, 3, 4}, EmptyNone},
		{FilterActive, "", []int64{1, 3, 4}, EmptyNone},
		{FilterCompleted, "", []int64{2}, EmptyNone},
		{FilterAll, "call", []int64{3}, EmptyNone},
		{FilterAll, "CALL", []int64{3}, EmptyNone},
		{FilterCompleted, "call", nil, EmptyNoMatches},
		{FilterAll, "o", []int64{1, 2, 3, 4}, EmptyNone},
		{FilterAll, "zebra", nil, EmptyNoMatches},
	}

	for _, tc := range testCases {
		t.Run(string(tc.filter)+"/"+tc.search, func(t *testing.T) {
			store.SetFilter(tc.filter)
			store.SetSearch(tc.search)

			v := store.Visible()
			if diff := cmp.Diff(tc.want, ids(v)); diff != "" {
				t.Errorf("Unexpected ids (-want +got):\n%s", diff)
			}
			if v.Empty != tc.empty {
				t.Errorf("Expected empty state %v, got %v", tc.empty, v.Empty)
			}
			if v.Filter != tc.filter || v.Search != tc.search {
				t.Errorf("View should echo filter and search, got %q/%q", v.Filter, v.Search)
			}
		})
	}
}

func TestVisibleEmptyWithoutSearch(t *testing.T) {
	kv := storage.NewMemoryStore()
	kv.Set(DefaultKey, []byte("[]"))

	store, err := New(kv)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	v := store.Visible()
	if len(v.Tasks) != 0 || v.Empty != EmptyNoTasks {
		t.Errorf("Expected no-tasks empty state, got %+v", v)
	}
	if v.Empty.Message() != "Add a task to get started" {
		t.Errorf("Unexpected message: %q", v.Empty.Message())
	}

	// Filter hides everything but no search is set
	store.Add("pending")
	store.SetFilter(FilterCompleted)
	if v := store.Visible(); v.Empty != EmptyNoTasks {
		t.Errorf("Expected EmptyNoTasks under filter, got %v", v.Empty)
	}
}

func TestStatsIgnoreFilterAndSearch(t *testing.T) {
	store, _, _ := setupTestStore(t)

	store.SetFilter(FilterCompleted)
	store.SetSearch("nothing matches this")

	if want := (Stats{Total: 4, Completed: 1, Pending: 3}); store.Stats() != want {
		t.Errorf("Expected %+v, got %+v", want, store.Stats())
	}
}

func TestObserverNotifications(t *testing.T) {
	store, _, rec := setupTestStore(t)

	store.Add("Buy milk")
	if len(rec.views) != 1 || len(rec.stats) != 1 {
		t.Fatalf("Add should render and update stats, got %d/%d", len(rec.views), len(rec.stats))
	}
	if rec.stats[0].Total != 5 {
		t.Errorf("Expected stats total 5, got %d", rec.stats[0].Total)
	}

	store.SetFilter(FilterActive)
	store.SetSearch("milk")
	if len(rec.views) != 3 {
		t.Errorf("Filter and search should render, got %d renders", len(rec.views))
	}
	if len(rec.stats) != 1 {
		t.Errorf("Filter and search should not update stats, got %d", len(rec.stats))
	}
	last := rec.views[len(rec.views)-1]
	if len(last.Tasks) != 1 || last.Tasks[0].Text != "Buy milk" {
		t.Errorf("Unexpected last render: %+v", last)
	}

	// Late subscription via ObserverFuncs
	var rendered, counted int
	store.Subscribe(ObserverFuncs{
		Render: func(View) { rendered++ },
		Stats:  func(Stats) { counted++ },
	})
	store.Toggle(1)
	if rendered != 1 || counted != 1 {
		t.Errorf("Expected one refresh, got %d renders and %d stats", rendered, counted)
	}

	// Nil funcs are skipped
	store.Subscribe(ObserverFuncs{})
	store.Refresh()
}

func TestReloadRoundTrip(t *testing.T) {
	store, kv, _ := setupTestStore(t)

	store.Add("Call the plumber")
	store.Toggle(1)
	store.Edit(4, "Read two books")
	store.Delete(3)

	reloaded, err := New(kv)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if diff := cmp.Diff(store.Tasks(), reloaded.Tasks()); diff != "" {
		t.Errorf("Reload mismatch (-before +after):\n%s", diff)
	}
}

func TestInvalidUTF8SurvivesReload(t *testing.T) {
	store, kv, _ := setupTestStore(t)

	task, _, err := store.Add("caf\xe9 order")
	if err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	if task.Text != "caf\uFFFD order" {
		t.Errorf("Expected invalid byte replaced, got %q", task.Text)
	}

	store.Edit(3, "Call \xffmom")
	if got, _ := store.Get(3); got.Text != "Call \uFFFDmom" {
		t.Errorf("Expected invalid byte replaced on edit, got %q", got.Text)
	}

	reloaded, err := New(kv)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if diff := cmp.Diff(store.Tasks(), reloaded.Tasks()); diff != "" {
		t.Errorf("Reload mismatch (-before +after):\n%s", diff)
	}
}

func TestLoadDuplicateIDsKeepsFirst(t *testing.T) {
	kv := storage.NewMemoryStore()
	kv.Set(DefaultKey, []byte(`[
		{"id":7,"text":"first","completed":false,"priority":"low","createdAt":"2024-01-01T00:00:00.000Z"},
		{"id":8,"text":"other","completed":true,"priority":"high","createdAt":"2024-01-01T00:00:00.000Z"},
		{"id":7,"text":"second","completed":true,"priority":"medium","createdAt":"2024-01-02T00:00:00.000Z"}
	]`))

	store, err := New(kv, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	tasks := store.Tasks()
	if len(tasks) != 2 || tasks[0].Text != "first" || tasks[1].ID != 8 {
		t.Fatalf("Expected first of each id in order, got %+v", tasks)
	}
	if got := store.Stats(); got != (Stats{Total: 2, Completed: 1, Pending: 1}) {
		t.Errorf("Unexpected stats: %+v", got)
	}

	// Every id now addresses exactly one task
	store.Toggle(7)
	if got := persisted(t, kv); len(got) != 2 || !got[0].Completed {
		t.Errorf("Expected deduplicated collection persisted, got %+v", got)
	}
}

func TestLoadAcceptsLooseTasks(t *testing.T) {
	kv := storage.NewMemoryStore()
	kv.Set(DefaultKey, []byte(`[
		{"id":1,"text":"","completed":false,"priority":"low"},
		{"id":2,"text":"dated","completed":false,"priority":"high","createdAt":"2024-05-06T07:08:09+02:00"}
	]`))

	store, err := New(kv)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	blank, ok := store.Get(1)
	if !ok || blank.Text != "" || !blank.CreatedAt.IsZero() {
		t.Errorf("Expected blank task with zero createdAt, got %+v (ok=%v)", blank, ok)
	}
	dated, _ := store.Get(2)
	if want := time.Date(2024, 5, 6, 5, 8, 9, 0, time.UTC); !dated.CreatedAt.Equal(want) {
		t.Errorf("Expected %v, got %v", want, dated.CreatedAt)
	}

	// A loose task still round-trips once saved
	store.Toggle(2)
	reloaded, err := New(kv)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if diff := cmp.Diff(store.Tasks(), reloaded.Tasks()); diff != "" {
		t.Errorf("Reload mismatch (-before +after):\n%s", diff)
	}
}

func TestLoadNullReseeds(t *testing.T) {
	kv := storage.NewMemoryStore()
	kv.Set(DefaultKey, []byte("null"))

	store, err := New(kv)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if store.Stats().Total != 4 {
		t.Errorf("Expected seed set, got %d tasks", store.Stats().Total)
	}
}

func TestLoadCustomKey(t *testing.T) {
	kv := storage.NewMemoryStore()
	kv.Set(DefaultKey, []byte("[]"))

	store, err := New(kv, WithKey("work-tasks"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if store.Stats().Total != 4 {
		t.Errorf("Custom key should start from seed, got %d", store.Stats().Total)
	}

	store.Add("Quarterly report")
	if _, ok, _ := kv.Get("work-tasks"); !ok {
		t.Error("Expected tasks under the custom key")
	}
	if data, _, _ := kv.Get(DefaultKey); string(data) != "[]" {
		t.Errorf("Default key should be untouched, got %s", data)
	}
}

func TestLoadCorrupt(t *testing.T) {
	kv := storage.NewMemoryStore()
	kv.Set(DefaultKey, []byte("{oops"))

	if _, err := New(kv); err == nil {
		t.Error("Should fail to load corrupt state")
	}
}

func TestPersistFailureStillRefreshes(t *testing.T) {
	rec := &recorder{}
	store, err := New(failingKV{},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithObserver(rec),
	)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	task, created, err := store.Add("Buy milk")
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("Expected disk full error, got %v", err)
	}
	if !created || task.Text != "Buy milk" {
		t.Errorf("Task should still be created in memory, got %+v", task)
	}
	if len(rec.views) != 1 || len(rec.stats) != 1 {
		t.Errorf("Expected a refresh despite the error, got %d/%d", len(rec.views), len(rec.stats))
	}
}

func TestParseFilter(t *testing.T) {
	testCases := []struct {
		input   string
		want    Filter
		wantErr bool
	}{
		{"all", FilterAll, false},
		{"Active", FilterActive, false},
		{" completed ", FilterCompleted, false},
		{"done", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseFilter(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrUnknownFilter) {
					t.Errorf("Expected ErrUnknownFilter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}
