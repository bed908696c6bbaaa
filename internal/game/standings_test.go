package game

import "testing"

func TestStandingsRecord(t *testing.T) {
	s := NewStandings()
	chars := [2]string{"ryu", "ken"}

	s.Record(chars, []ResolvedEvent{
		{Kind: EventHit, Winner: -1},
		{Kind: EventRoundEnd, Winner: 0},
	})
	s.Record(chars, []ResolvedEvent{{Kind: EventRoundEnd, Winner: -1, Reason: "double_ko"}})
	s.Record(chars, []ResolvedEvent{
		{Kind: EventRoundEnd, Winner: 0},
		{Kind: EventMatchEnd, Winner: 0},
	})
	s.Record([2]string{"akuma", "ken"}, []ResolvedEvent{
		{Kind: EventRoundEnd, Winner: 1},
		{Kind: EventRoundEnd, Winner: 1},
		{Kind: EventMatchEnd, Winner: 1},
	})

	top := s.Top(0)
	if len(top) != 3 {
		t.Fatalf("entries = %d, want 3", len(top))
	}
	want := []struct {
		name                 string
		wins, losses, rounds int
	}{
		{"ryu", 1, 0, 2},
		{"ken", 1, 1, 2},
		{"akuma", 0, 1, 0},
	}
	for i, w := range want {
		got := top[i]
		if got.Character != w.name || got.Wins != w.wins || got.Losses != w.losses || got.Rounds != w.rounds || got.Rank != i+1 {
			t.Errorf("rank %d = %+v, want %+v", i+1, got, w)
		}
	}

	if r := s.Rank("ken"); r != 2 {
		t.Errorf("ken rank = %d, want 2", r)
	}
	if r := s.Rank("dudley"); r != 0 {
		t.Errorf("unknown rank = %d, want 0", r)
	}
	if got := s.Top(1); len(got) != 1 || got[0].Character != "ryu" {
		t.Errorf("Top(1) = %+v", got)
	}

	s.Clear()
	if len(s.Top(0)) != 0 {
		t.Error("Clear left entries behind")
	}
}

func TestStandingsTieBreaksByName(t *testing.T) {
	s := NewStandings()
	s.Record([2]string{"ryu", "ken"}, []ResolvedEvent{{Kind: EventRoundEnd, Winner: 0}})
	s.Record([2]string{"akuma", "ken"}, []ResolvedEvent{{Kind: EventRoundEnd, Winner: 0}})

	top := s.Top(0)
	if top[0].Character != "akuma" || top[1].Character != "ryu" {
		t.Errorf("order = %s, %s; want akuma, ryu", top[0].Character, top[1].Character)
	}
}
