package storage

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTaskRoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	tasks := []Task{
		{ID: 1742000000000, Text: "Call the bank", Completed: false, Priority: PriorityHigh, CreatedAt: created},
		{ID: 2, Text: `Quote "this" & that`, Completed: true, Priority: PriorityLow, CreatedAt: created.Add(-time.Hour)},
		{ID: 1, Text: "Read a book", Completed: false, Priority: PriorityMedium, CreatedAt: created.Add(-48 * time.Hour)},
	}

	data, err := EncodeTasks(tasks)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	decoded, err := DecodeTasks(data)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	if diff := cmp.Diff(tasks, decoded); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestTaskWireFormat(t *testing.T) {
	task := Task{
		ID:        42,
		Text:      "Buy milk",
		Priority:  PriorityMedium,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 60_000_000, time.FixedZone("CET", 3600)),
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	want := `{"id":42,"text":"Buy milk","completed":false,"priority":"medium","createdAt":"2024-01-02T02:04:05.060Z"}`
	if string(data) != want {
		t.Errorf("Unexpected wire format:\n got: %s\nwant: %s", data, want)
	}
}

func TestDecodeTasks(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		wantNil bool
		wantLen int
		wantErr error
	}{
		{name: "null", input: "null", wantNil: true},
		{name: "empty array", input: "[]", wantLen: 0},
		{name: "one task", input: `[{"id":1,"text":"a","completed":true,"priority":"low","createdAt":"2024-01-01T00:00:00.000Z"}]`, wantLen: 1},
		{name: "unknown priority", input: `[{"id":1,"text":"a","priority":"urgent","createdAt":"2024-01-01T00:00:00.000Z"}]`, wantErr: ErrUnknownPriority},
		{name: "missing priority", input: `[{"id":1,"text":"a","createdAt":"2024-01-01T00:00:00.000Z"}]`, wantErr: ErrUnknownPriority},
		{name: "missing createdAt", input: `[{"id":1,"text":"a","priority":"low"}]`, wantLen: 1},
		{name: "blank text", input: `[{"id":1,"text":"","priority":"low","createdAt":"2024-01-01T00:00:00.000Z"}]`, wantLen: 1},
		{name: "repeated ids", input: `[{"id":1,"text":"a","priority":"low"},{"id":1,"text":"b","priority":"high"}]`, wantLen: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tasks, err := DecodeTasks([]byte(tc.input))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tc.wantNil {
				if tasks != nil {
					t.Errorf("Expected nil slice, got %v", tasks)
				}
				return
			}
			if tasks == nil {
				t.Fatal("Expected non-nil slice")
			}
			if len(tasks) != tc.wantLen {
				t.Errorf("Expected %d tasks, got %d", tc.wantLen, len(tasks))
			}
		})
	}
}

func TestDecodeTasksBadTimestamp(t *testing.T) {
	_, err := DecodeTasks([]byte(`[{"id":9,"text":"a","priority":"low","createdAt":"yesterday"}]`))
	if err == nil {
		t.Fatal("Should fail on invalid createdAt")
	}
	if !strings.Contains(err.Error(), "invalid createdAt") {
		t.Errorf("Expected createdAt error, got: %v", err)
	}
}

func TestEncodeNilTasks(t *testing.T) {
	data, err := EncodeTasks(nil)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("Expected [], got %s", data)
	}
}

func TestIsValidPriority(t *testing.T) {
	for _, p := range []string{"low", "medium", "high"} {
		if !IsValidPriority(p) {
			t.Errorf("Expected %q to be valid", p)
		}
	}
	for _, p := range []string{"", "High", "urgent"} {
		if IsValidPriority(p) {
			t.Errorf("Expected %q to be invalid", p)
		}
	}
}
