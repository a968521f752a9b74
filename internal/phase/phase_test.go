package phase

import "testing"

func TestAdvanceMonotonic(t *testing.T) {
	m := NewMachine()
	if m.Current() != Init {
		t.Fatalf("Current() before any Advance = %v, want Init", m.Current())
	}
	m.Advance(Init)
	m.Advance(Parse)
	m.Advance(ParseCleanup)
	if m.Current() != ParseCleanup {
		t.Fatalf("Current() = %v, want ParseCleanup", m.Current())
	}
}

func TestAdvanceBackwardsPanics(t *testing.T) {
	m := NewMachine()
	m.Advance(Compile)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic moving backwards")
		}
	}()
	m.Advance(Parse)
}

func TestAdvanceStandingStillPanics(t *testing.T) {
	m := NewMachine()
	m.Advance(Parse)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic re-entering the same phase")
		}
	}()
	m.Advance(Parse)
}

func TestAtMostAtLeast(t *testing.T) {
	m := NewMachine()
	m.Advance(Init)
	m.Advance(Parse)
	if !m.AtMost(Parse) {
		t.Error("AtMost(Parse) = false, want true")
	}
	if m.AtMost(Init) {
		t.Error("AtMost(Init) = true, want false")
	}
	if !m.AtLeast(Init) {
		t.Error("AtLeast(Init) = false, want true")
	}
}
