package taskmanager

import (
	"context"
	"errors"
	"testing"
)

// TestRunAll verifies the one-shot helper
// Given: Three work items with one failure
// When: RunAll is called with concurrency 2
// Then: Results are partitioned and typed results come back in submission order
func TestRunAll(t *testing.T) {
	result, err := RunAll(context.Background(), 2,
		func() (any, error) { return "a", nil },
		errors.New("bad"),
		"c",
	)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	got := Results[string](result.Completed)
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("Results = %v, want [a c]", got)
	}
	if len(result.Failed) != 1 {
		t.Errorf("len(Failed) = %d, want 1", len(result.Failed))
	}
}

// TestResults_SkipsOtherTypes verifies Results only keeps matching results
func TestResults_SkipsOtherTypes(t *testing.T) {
	items := []TaskItem{
		{Index: 2, Result: 30},
		{Index: 0, Result: 10},
		{Index: 1, Result: "twenty"},
		{Index: 3, Result: nil},
	}
	got := Results[int](items)
	if len(got) != 2 || got[0] != 10 || got[1] != 30 {
		t.Errorf("Results[int] = %v, want [10 30]", got)
	}
	if items[0].Index != 2 {
		t.Error("Results must not reorder the caller's slice")
	}
}

// TestGlobalTaskManager verifies the singleton lifecycle
// Given: No global manager
// When: It is initialized twice, used and shut down
// Then: The same instance is returned until shutdown, after which access panics
func TestGlobalTaskManager(t *testing.T) {
	InitGlobalTaskManager(3)
	first := GlobalTaskManager()
	InitGlobalTaskManager(5)
	if GlobalTaskManager() != first {
		t.Fatal("second InitGlobalTaskManager replaced the instance")
	}
	if first.MaxConcurrency() != 3 {
		t.Errorf("MaxConcurrency = %d, want 3", first.MaxConcurrency())
	}
	if first.Name() != "global-manager" {
		t.Errorf("Name = %q, want global-manager", first.Name())
	}

	result, err := first.Run(context.Background(), []any{1, 2})
	if err != nil || len(result.Completed) != 2 {
		t.Fatalf("Run = %+v, %v", result, err)
	}

	ShutdownGlobalTaskManager()
	ShutdownGlobalTaskManager()

	defer func() {
		if recover() == nil {
			t.Error("GlobalTaskManager after shutdown should panic")
		}
	}()
	GlobalTaskManager()
}
