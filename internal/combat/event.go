// Package combat detects hitbox overlaps and classifies what each overlap
// does: throw, parry, block or hit, with combo damage scaling.
package combat

import "third-strike/internal/hitbox"

// ResultFlags describe a hit event. Detection sets Hit or Catch; resolution
// adds the rest.
type ResultFlags uint16

const (
	FlagHit        ResultFlags = 0x1
	FlagBlock      ResultFlags = 0x2
	FlagParry      ResultFlags = 0x4
	FlagMutual     ResultFlags = 0x8
	FlagCounter    ResultFlags = 0x10
	FlagProjectile ResultFlags = 0x20
	FlagChip       ResultFlags = 0x40
	FlagCatch      ResultFlags = 0x100
)

func (f ResultFlags) Has(flag ResultFlags) bool { return f&flag != 0 }

// HitEvent is one detected overlap between an attack and a defender.
type HitEvent struct {
	AttackerID     int
	DefenderID     int
	Flags          ResultFlags
	Box            hitbox.Hitbox
	Damage         int
	Stun           int
	Hitstun        int
	PositionX      float64 // Center of the overlap
	PositionY      float64
	Frame          uint64
	AttackInstance uint32
	ProjectileID   int // 0 for strikes from the character itself
}

// IsCatch reports whether the event came from a grab box.
func (e HitEvent) IsCatch() bool { return e.Flags.Has(FlagCatch) }

// QueueCapacity is the fixed number of events one tick can hold.
const QueueCapacity = 32

// EventQueue is a fixed-capacity per-tick event buffer. It never grows;
// events beyond capacity are dropped and counted.
type EventQueue struct {
	events  [QueueCapacity]HitEvent
	n       int
	dropped uint64
}

// Push appends e. It returns false when the queue is full.
func (q *EventQueue) Push(e HitEvent) bool {
	if q.n >= QueueCapacity {
		q.dropped++
		return false
	}
	q.events[q.n] = e
	q.n++
	return true
}

// Events returns this tick's events. The slice aliases the queue and is
// only valid until the next Reset.
func (q *EventQueue) Events() []HitEvent { return q.events[:q.n] }

func (q *EventQueue) Len() int { return q.n }

// Reset clears the queue for the next tick. The dropped counter persists.
func (q *EventQueue) Reset() { q.n = 0 }

// Dropped returns how many events were dropped over the queue's lifetime.
func (q *EventQueue) Dropped() uint64 { return q.dropped }
