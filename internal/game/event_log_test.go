package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestEventLogWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog(nil)
	if err := el.Start(path); err != nil {
		t.Fatalf("Start: %v", err)
	}

	el.EmitAll([]ResolvedEvent{
		{Kind: EventHit, Frame: 6, Attacker: 0, Defender: 1, Move: "st_mp", Damage: 18, Winner: -1},
		{Kind: EventParry, Frame: 30, Attacker: 1, Defender: 0, Winner: -1},
		{Kind: EventRoundEnd, Frame: 90, Round: 1, Winner: 0, Reason: "ko"},
	})
	el.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d lines, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Sequence != uint64(i+1) || e.Version != EventVersion {
			t.Errorf("entry %d: sequence %d version %d", i, e.Sequence, e.Version)
		}
	}
	if entries[0].Event.Kind != EventHit || entries[0].Event.Move != "st_mp" {
		t.Errorf("first entry = %+v", entries[0].Event)
	}
	if entries[2].Event.Kind != EventRoundEnd || entries[2].Event.Reason != "ko" {
		t.Errorf("last entry = %+v", entries[2].Event)
	}
}

func TestEventLogNotRunning(t *testing.T) {
	el := NewEventLog(nil)
	if el.Emit(ResolvedEvent{Kind: EventHit}) {
		t.Error("Emit succeeded before Start")
	}
	// Stop without Start is a no-op.
	el.Stop()
}

func TestEventLogPlayerRateLimit(t *testing.T) {
	el := NewEventLog(nil)
	if err := el.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < MaxEventsPerPlayer; i++ {
		if el.Emit(ResolvedEvent{Kind: EventHit, Attacker: 0}) {
			accepted++
		}
	}
	// The burst allows a tenth of the per second budget.
	if accepted >= MaxEventsPerPlayer || el.DroppedCount() == 0 {
		t.Errorf("accepted %d, dropped %d; expected the limiter to kick in", accepted, el.DroppedCount())
	}
	// Round events bypass the per player limit.
	if !el.Emit(ResolvedEvent{Kind: EventRoundEnd, Winner: 0}) {
		t.Error("round event was rate limited")
	}
}

func TestEventKindText(t *testing.T) {
	for k := EventUnknown; k <= EventMatchEnd; k++ {
		text, _ := k.MarshalText()
		var back EventKind
		if err := back.UnmarshalText(text); err != nil || back != k {
			t.Errorf("%s: got %v, %v", text, back, err)
		}
	}
	var k EventKind
	if err := k.UnmarshalText([]byte("uppercut")); err == nil {
		t.Error("expected an error for an unknown kind")
	}
}
