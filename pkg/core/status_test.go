package core

import "testing"

func TestResolveState_String(t *testing.T) {
	tests := []struct {
		state    ResolveState
		expected string
	}{
		{StateUnresolved, "unresolved"},
		{StateResolving, "resolving"},
		{StateResolved, "resolved"},
		{StateStale, "stale"},
		{ResolveState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("ResolveState(%d).String() = %q, want %q", tt.state, got, tt.expected)
		}
	}
}

func TestResolveState_IsBound(t *testing.T) {
	if !StateResolved.IsBound() {
		t.Error("StateResolved.IsBound() = false, want true")
	}
	for _, s := range []ResolveState{StateUnresolved, StateResolving, StateStale} {
		if s.IsBound() {
			t.Errorf("ResolveState(%s).IsBound() = true, want false", s)
		}
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected string
	}{
		{ErrCategoryNone, "none"},
		{ErrCategoryUsage, "usage"},
		{ErrCategoryLookup, "lookup"},
		{ErrCategoryStale, "stale"},
		{ErrCategoryTimeout, "timeout"},
		{ErrCategoryRemote, "remote"},
		{ErrCategoryInteraction, "interaction"},
		{ErrCategoryInternal, "internal"},
		{ErrCategoryConfig, "config"},
		{ErrorCategory(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.category.String(); got != tt.expected {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", tt.category, got, tt.expected)
		}
	}
}

func TestBounds(t *testing.T) {
	b := Bounds{X: 10, Y: 20, Width: 100, Height: 40}

	cx, cy := b.Center()
	if cx != 60 || cy != 40 {
		t.Errorf("Center() = (%g, %g), want (60, 40)", cx, cy)
	}
	if !b.Contains(10, 20) {
		t.Error("Contains(10, 20) = false, want true")
	}
	if b.Contains(110, 20) {
		t.Error("Contains(110, 20) = true, want false")
	}
	if b.IsEmpty() {
		t.Error("IsEmpty() = true, want false")
	}
	if !(Bounds{X: 1.5, Y: 2.5, Width: 0.5, Height: 0.5}).Contains(1.75, 2.75) {
		t.Error("Contains(1.75, 2.75) = false, want true")
	}
	if !(Bounds{Width: 0, Height: 5}).IsEmpty() {
		t.Error("zero-width bounds should be empty")
	}
}
