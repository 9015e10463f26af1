package core

import (
	"strings"
	"testing"
)

func namedHelperTask() {}

// TestExecutionHistory_LimitAndOrder verifies the ring buffer
// Given: A history of capacity 3 receiving 5 records
// When: Recent is called with and without a limit
// Then: Only the newest 3 are kept, newest first
func TestExecutionHistory_LimitAndOrder(t *testing.T) {
	// Arrange
	h := newExecutionHistory(3)
	for i := range 5 {
		h.Add(TaskExecutionRecord{Index: i})
	}

	// Act
	all := h.Recent(0)
	two := h.Recent(2)

	// Assert
	if len(all) != 3 || all[0].Index != 4 || all[2].Index != 2 {
		t.Fatalf("Recent(0) = %+v, want indexes 4,3,2", all)
	}
	if len(two) != 2 || two[1].Index != 3 {
		t.Fatalf("Recent(2) = %+v, want indexes 4,3", two)
	}
	if last, ok := h.Last(); !ok || last.Index != 4 {
		t.Fatalf("Last() = %+v, %v", last, ok)
	}

	h.Clear()
	if h.Recent(0) != nil {
		t.Error("Recent after Clear should be nil")
	}
	if _, ok := h.Last(); ok {
		t.Error("Last after Clear should report false")
	}
}

// TestResolveTaskName verifies display names for work items
func TestResolveTaskName(t *testing.T) {
	if got := resolveTaskName(Named("fetch", 1), 0); got != "fetch" {
		t.Errorf("named = %q, want fetch", got)
	}
	if got := resolveTaskName(nil, 3); got != "task-3" {
		t.Errorf("nil = %q, want task-3", got)
	}
	if got := resolveTaskName(42, 1); got != "int#1" {
		t.Errorf("value = %q, want int#1", got)
	}
	if got := resolveTaskName(namedHelperTask, 2); !strings.HasSuffix(got, "namedHelperTask#2") {
		t.Errorf("func = %q, want suffix namedHelperTask#2", got)
	}
	if got := resolveTaskName(Named("", "x"), 5); got != "core.namedWork#5" {
		t.Errorf("empty name = %q, want core.namedWork#5", got)
	}
}
