package main

import (
	"testing"
	"time"
)

func TestAntifloodCheck(t *testing.T) {
	type call struct {
		sender int64
		ts     int64
		hit    bool
	}
	tests := []struct {
		name  string
		calls []call
	}{
		{
			name:  "first message passes",
			calls: []call{{1, 100, false}},
		},
		{
			name:  "second within window is dropped",
			calls: []call{{1, 100, false}, {1, 100, true}, {1, 101, true}},
		},
		{
			name:  "passes again once window closes",
			calls: []call{{1, 100, false}, {1, 100, true}, {1, 102, false}},
		},
		{
			name:  "dropped messages extend the window",
			calls: []call{{1, 100, false}, {1, 101, true}, {1, 102, true}, {1, 104, false}},
		},
		{
			name:  "senders are independent",
			calls: []call{{1, 100, false}, {2, 100, false}, {1, 100, true}, {2, 100, true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAntiflood(time.Second)
			for i, c := range tt.calls {
				if got := a.Check(c.sender, c.ts); got != c.hit {
					t.Errorf("call %d Check(%d, %d) = %v, want %v", i, c.sender, c.ts, got, c.hit)
				}
			}
		})
	}
}

func TestAntifloodPrunes(t *testing.T) {
	a := NewAntiflood(time.Second)
	for id := int64(1); id <= 10; id++ {
		a.Check(id, 100)
	}
	if got := a.Len(); got != 10 {
		t.Fatalf("Len() = %d, want 10", got)
	}
	a.Check(99, 200)
	if got := a.Len(); got != 1 {
		t.Errorf("Len() after prune = %d, want 1", got)
	}
}

func TestAntifloodWindow(t *testing.T) {
	a := NewAntiflood(5 * time.Second)
	a.Check(1, 100)
	if !a.Check(1, 104) {
		t.Error("Check inside a 5s window should hit")
	}

	// sub-second windows round up to one second
	b := NewAntiflood(0)
	b.Check(1, 100)
	if !b.Check(1, 101) {
		t.Error("Check with zero window should behave as 1s")
	}
}
