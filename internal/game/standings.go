package game

import (
	"sort"
	"sync"
)

// StandingsEntry is one character's record across finished matches.
type StandingsEntry struct {
	Character string  `json:"character"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Rounds    int     `json:"rounds"` // Rounds won
	Score     float64 `json:"score"`  // Computed score for ranking
	Rank      int     `json:"rank"`
}

// Standings ranks characters by match results. Safe for concurrent use:
// the tick goroutine records, HTTP handlers read.
type Standings struct {
	mu      sync.RWMutex
	entries map[string]*StandingsEntry
}

// NewStandings creates an empty table.
func NewStandings() *Standings {
	return &Standings{entries: make(map[string]*StandingsEntry)}
}

// Record folds one tick's events into the table. Round wins are credited
// on every round end; the match itself on match end.
func (s *Standings) Record(chars [2]string, events []ResolvedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		if ev.Winner < 0 || ev.Winner > 1 {
			continue
		}
		switch ev.Kind {
		case EventRoundEnd:
			s.entry(chars[ev.Winner]).Rounds++
		case EventMatchEnd:
			s.entry(chars[ev.Winner]).Wins++
			s.entry(chars[1-ev.Winner]).Losses++
		default:
			continue
		}
		for _, name := range chars {
			e := s.entry(name)
			// Score is computed as: wins * 100 - losses * 10 + rounds
			e.Score = float64(e.Wins)*100 - float64(e.Losses)*10 + float64(e.Rounds)
		}
	}
}

func (s *Standings) entry(name string) *StandingsEntry {
	e, ok := s.entries[name]
	if !ok {
		e = &StandingsEntry{Character: name}
		s.entries[name] = e
	}
	return e
}

// Top returns the best n characters, highest score first. Ties break by
// name so the order is stable. n <= 0 returns everyone.
func (s *Standings) Top(n int) []StandingsEntry {
	s.mu.RLock()
	out := make([]StandingsEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Character < out[j].Character
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Rank returns a character's 1-indexed rank, or 0 if it has no record.
func (s *Standings) Rank(name string) int {
	for _, e := range s.Top(0) {
		if e.Character == name {
			return e.Rank
		}
	}
	return 0
}

// Clear removes every record.
func (s *Standings) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*StandingsEntry)
	s.mu.Unlock()
}
