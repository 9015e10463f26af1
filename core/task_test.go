package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestTaskID_StringAndIsZero verifies TaskID zero-state and string behavior
// Given: A zero TaskID and a generated TaskID
// When: IsZero and String are called
// Then: Zero ID reports true and generated ID is non-zero and round-trips through ParseTaskID
func TestTaskID_StringAndIsZero(t *testing.T) {
	// Arrange
	var zero TaskID

	// Act and Assert
	if !zero.IsZero() {
		t.Fatal("zero TaskID should report IsZero() == true")
	}

	// Act
	id := GenerateTaskID()

	// Assert
	if id.IsZero() {
		t.Fatal("generated TaskID should not be zero")
	}
	parsed, err := ParseTaskID(id.String())
	if err != nil {
		t.Fatalf("ParseTaskID(%q) error = %v", id.String(), err)
	}
	if parsed != id {
		t.Fatalf("ParseTaskID round trip = %s, want %s", parsed, id)
	}
	if _, err := ParseTaskID("not-a-uuid"); err == nil {
		t.Fatal("ParseTaskID(garbage) should fail")
	}
}

// TestTaskStatus_IsTerminal verifies which statuses end a task's lifecycle
func TestTaskStatus_IsTerminal(t *testing.T) {
	cases := map[TaskStatus]bool{
		TaskStatusPending:   false,
		TaskStatusRunning:   false,
		TaskStatusCompleted: true,
		TaskStatusFailed:    true,
		TaskStatusCancelled: true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

type doubler struct{ n int }

func (d doubler) Execute(ctx context.Context) (any, error) { return d.n * 2, nil }

// TestNewTask_Shapes verifies work normalization
// Given: Every accepted work shape
// When: NewTask wraps it and the Task is invoked
// Then: The result and error match the shape's contract
func TestNewTask_Shapes(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name    string
		work    any
		want    any
		wantErr error
	}{
		{name: "nil", work: nil, wantErr: ErrNilTask},
		{name: "nil task", work: Task(nil), wantErr: ErrNilTask},
		{name: "task", work: Task(func(ctx context.Context) (any, error) { return 1, nil }), want: 1},
		{name: "ctx result", work: func(ctx context.Context) (any, error) { return 2, nil }, want: 2},
		{name: "result", work: func() (any, error) { return 3, nil }, want: 3},
		{name: "ctx error", work: func(ctx context.Context) error { return boom }, wantErr: boom},
		{name: "error func", work: func() error { return nil }},
		{name: "ctx void", work: func(ctx context.Context) {}},
		{name: "void", work: func() {}},
		{name: "named", work: Named("n", 4), want: 4},
		{name: "executor", work: doubler{n: 5}, want: 10},
		{name: "future", work: Resolved(6), want: 6},
		{name: "rejected", work: Rejected(boom), wantErr: boom},
		{name: "error value", work: boom, wantErr: boom},
		{name: "plain value", work: "seven", want: "seven"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewTask(tc.work)(context.Background())
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("result = %v, want %v", got, tc.want)
			}
		})
	}
}

// TestNewFuture verifies eager futures
// Given: A future whose work blocks on a channel
// When: Await is called with a short deadline and then after release
// Then: The first Await times out and the second returns the value
func TestNewFuture(t *testing.T) {
	// Arrange
	release := make(chan struct{})
	f := NewFuture(func(ctx context.Context) (any, error) {
		<-release
		return "done", nil
	})

	// Act and Assert - deadline expires first
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Await error = %v, want DeadlineExceeded", err)
	}

	// Act and Assert - value after release
	close(release)
	got, err := f.Await(context.Background())
	if err != nil || got != "done" {
		t.Fatalf("Await = %v, %v; want done, nil", got, err)
	}
}

// TestNewFuture_Panic verifies that a panicking future rejects
func TestNewFuture_Panic(t *testing.T) {
	f := NewFuture(func(ctx context.Context) (any, error) { panic("bad") })
	if _, err := f.Await(context.Background()); err == nil || err.Error() != "panic: bad" {
		t.Fatalf("Await error = %v, want panic: bad", err)
	}
}

// TestGetCurrentTaskManager verifies extracting the manager from context
// Given: A plain context and a context containing a manager value
// When: GetCurrentTaskManager is called
// Then: It returns nil for plain context and the stored manager for annotated context
func TestGetCurrentTaskManager(t *testing.T) {
	// Arrange, Act and Assert - plain context
	if got := GetCurrentTaskManager(context.Background()); got != nil {
		t.Fatalf("GetCurrentTaskManager(background) = %#v, want nil", got)
	}

	// Arrange
	m := NewTaskManager(1, nil)
	ctx := context.WithValue(context.Background(), taskManagerKey, m)

	// Act and Assert
	if got := GetCurrentTaskManager(ctx); got != m {
		t.Fatal("GetCurrentTaskManager(ctx) did not return the manager from context")
	}
	if _, ok := TaskIDFromContext(ctx); ok {
		t.Fatal("TaskIDFromContext should report false without a task ID")
	}
}

// TestErrorMessage verifies failures always carry a message
func TestErrorMessage(t *testing.T) {
	if got := errorMessage(nil); got != "" {
		t.Errorf("errorMessage(nil) = %q, want empty", got)
	}
	if got := errorMessage(errors.New("")); got != "unknown error" {
		t.Errorf("errorMessage(empty) = %q, want unknown error", got)
	}
	if got := errorMessage(errors.New("x")); got != "x" {
		t.Errorf("errorMessage(x) = %q, want x", got)
	}
}
