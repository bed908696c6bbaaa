package game

import (
	"sync"
	"time"

	"third-strike/internal/combat"
	"third-strike/internal/fighter"
)

// CharacterSnapshot is an immutable copy of one character for readers.
// Uses value types (not pointers) to ensure immutability.
type CharacterSnapshot struct {
	Name           string           `json:"name"`
	Position       fighter.Position `json:"position"`
	Facing         int              `json:"facing"`
	State          string           `json:"state"`
	StateFrame     int              `json:"stateFrame"`
	Animation      string           `json:"animation"`
	AnimationFrame int              `json:"animationFrame"`
	Health         int              `json:"health"`
	MaxHealth      int              `json:"maxHealth"`
	StunMeter      int              `json:"stunMeter"`
	MaxStun        int              `json:"maxStun"`
	Hitfreeze      int              `json:"hitfreeze"`
	Invincible     bool             `json:"invincible"`
	HitFlash       bool             `json:"hitFlash"`

	// Combo this character is taking
	Combo combat.ComboState `json:"combo"`

	ParryWindow bool   `json:"parryWindow"`
	ParryType   string `json:"parryType"`
	ParryCount  int    `json:"parryCount"`
	Timeouts    uint64 `json:"timeouts"`
}

// ProjectileSnapshot is an immutable projectile
type ProjectileSnapshot struct {
	ID     int     `json:"id"`
	Owner  int     `json:"owner"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Facing int     `json:"facing"`
}

// RoundSnapshot is the round manager's public state
type RoundSnapshot struct {
	Number int    `json:"number"`
	Phase  string `json:"phase"`
	Timer  int    `json:"timer"`
	Wins   [2]int `json:"wins"`
	Winner int    `json:"winner"` // -1 until decided
}

// Snapshot is the complete per-tick output of a match.
type Snapshot struct {
	Sequence  uint64    `json:"sequence"`  // Monotonic publish order
	Timestamp time.Time `json:"timestamp"` // When it was published
	Frame     uint64    `json:"frame"`

	Round       RoundSnapshot        `json:"round"`
	Characters  [2]CharacterSnapshot `json:"characters"`
	Projectiles []ProjectileSnapshot `json:"projectiles"`
	Events      []ResolvedEvent      `json:"events"`

	QueueDropped uint64 `json:"queueDropped"`
}

// CopyInto deep copies s into dst, reusing dst's slice capacity.
func (s *Snapshot) CopyInto(dst *Snapshot) {
	projectiles := append(dst.Projectiles[:0], s.Projectiles...)
	events := append(dst.Events[:0], s.Events...)
	*dst = *s
	dst.Projectiles = projectiles
	dst.Events = events
}

// Clone returns an independent copy.
func (s *Snapshot) Clone() Snapshot {
	var out Snapshot
	s.CopyInto(&out)
	return out
}

// SnapshotPool is a triple buffer between the tick loop and readers.
// The producer writes into a slot no reader can be copying; publishing
// swaps the read index under the lock.
type SnapshotPool struct {
	mu        sync.RWMutex
	snapshots [3]Snapshot
	readIdx   int
	sequence  uint64
	published bool
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool() *SnapshotPool {
	pool := &SnapshotPool{}
	for i := range pool.snapshots {
		pool.snapshots[i] = Snapshot{
			Projectiles: make([]ProjectileSnapshot, 0, 4),
			Events:      make([]ResolvedEvent, 0, combat.QueueCapacity),
		}
	}
	return pool
}

// Publish copies src into a free slot and makes it the latest snapshot.
// Only the tick loop may call it.
func (p *SnapshotPool) Publish(src *Snapshot) {
	p.mu.RLock()
	idx := (p.readIdx + 1) % len(p.snapshots)
	p.mu.RUnlock()

	slot := &p.snapshots[idx]
	src.CopyInto(slot)
	p.sequence++
	slot.Sequence = p.sequence
	slot.Timestamp = time.Now()

	p.mu.Lock()
	p.readIdx = idx
	p.published = true
	p.mu.Unlock()
}

// Latest returns a copy of the most recent snapshot. The bool is false
// until the first publish.
func (p *SnapshotPool) Latest() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.published {
		return Snapshot{}, false
	}
	return p.snapshots[p.readIdx].Clone(), true
}
