package domain

import "testing"

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusOpen, false},
		{StatusAssigned, false},
		{StatusInProgress, false},
		{StatusCompleted, true},
		{StatusCancelled, true},
	}
	for _, tc := range tests {
		if got := IsTerminal(tc.status); got != tc.want {
			t.Errorf("IsTerminal(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"open to assigned", StatusOpen, StatusAssigned, true},
		{"open to cancelled", StatusOpen, StatusCancelled, true},
		{"open to completed skips assignment", StatusOpen, StatusCompleted, false},
		{"assigned to in_progress", StatusAssigned, StatusInProgress, true},
		{"assigned back to open (release)", StatusAssigned, StatusOpen, true},
		{"assigned to completed", StatusAssigned, StatusCompleted, true},
		{"in_progress back to open (release)", StatusInProgress, StatusOpen, true},
		{"in_progress to completed", StatusInProgress, StatusCompleted, true},
		{"in_progress cannot regress to assigned", StatusInProgress, StatusAssigned, false},
		{"completed is terminal", StatusCompleted, StatusOpen, false},
		{"cancelled is terminal", StatusCancelled, StatusAssigned, false},
		{"self transition", StatusOpen, StatusOpen, false},
		{"unknown status", "archived", StatusOpen, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestCanAssign(t *testing.T) {
	if !CanAssign(StatusOpen) {
		t.Errorf("open requests must be assignable")
	}
	for _, s := range []string{StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled} {
		if CanAssign(s) {
			t.Errorf("CanAssign(%q) must be false", s)
		}
	}
}

func TestCanRelease(t *testing.T) {
	for _, s := range []string{StatusAssigned, StatusInProgress} {
		if !CanRelease(s) {
			t.Errorf("CanRelease(%q) must be true", s)
		}
	}
	for _, s := range []string{StatusOpen, StatusCompleted, StatusCancelled} {
		if CanRelease(s) {
			t.Errorf("CanRelease(%q) must be false", s)
		}
	}
}
