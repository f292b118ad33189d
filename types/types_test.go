package types

import "testing"

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:     "idle",
		StateReady:    "ready",
		StateBusy:     "busy",
		StateFinished: "finished",
		StateDisabled: "disabled",
		State(99):     "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", uint32(s), got, want)
		}
	}
}

func TestStateSuccessorCycle(t *testing.T) {
	s := StateIdle
	seen := []State{s}
	for i := 0; i < 4; i++ {
		s = s.Successor()
		seen = append(seen, s)
	}
	want := []State{StateIdle, StateReady, StateBusy, StateFinished, StateIdle}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("cycle step %d = %v, want %v", i, seen[i], want[i])
		}
	}
	if StateDisabled.Successor() != StateDisabled {
		t.Fatal("disabled must not advance")
	}
}

func TestHealthPassed(t *testing.T) {
	if !Health(0).Passed() {
		t.Fatal("zero health must pass")
	}
	if Health(0x80000001).Passed() {
		t.Fatal("non-zero signature must fail")
	}
}
