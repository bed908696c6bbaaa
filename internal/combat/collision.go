package combat

import (
	"github.com/sirupsen/logrus"

	"third-strike/internal/hitbox"
	"third-strike/internal/logger"
)

// Participant is a read-only view of one character for a collision pass.
type Participant struct {
	ID             int
	X, Y           float64
	Facing         int
	Catalog        *hitbox.Catalog
	Animation      string
	Frame          int    // 1-indexed animation frame
	AttackInstance uint32 // 0 when no attack is running
}

// ProjectileBody is a read-only view of a live projectile.
type ProjectileBody struct {
	ID      int
	OwnerID int
	X, Y    float64
	Facing  int
	Box     hitbox.Hitbox
}

// AABB returns the projectile box in world space.
func (p ProjectileBody) AABB() hitbox.AABB {
	return hitbox.Resolve(p.Box, p.X, p.Y, p.Facing)
}

type regKey struct {
	source     int
	defender   int
	projectile bool
}

// CollisionEngine finds attack and grab overlaps and queues hit events.
// An attack instance registers at most one confirmed event per defender.
type CollisionEngine struct {
	queue      EventQueue
	throwCheck bool
	confirmed  map[regKey]uint32
	log        logrus.FieldLogger

	// OnOverflow is called once per dropped event.
	OnOverflow func()
}

// NewCollisionEngine creates an engine with an empty queue.
func NewCollisionEngine(log logrus.FieldLogger) *CollisionEngine {
	return &CollisionEngine{
		confirmed: make(map[regKey]uint32),
		log:       logger.OrDiscard(log),
	}
}

// BeginTick clears the queue and sets whether grab boxes are tested.
func (e *CollisionEngine) BeginTick(throwCheck bool) {
	e.queue.Reset()
	e.throwCheck = throwCheck
}

// Queue exposes the event queue for resolution.
func (e *CollisionEngine) Queue() *EventQueue { return &e.queue }

// Tick tests attacker's attack boxes against the defender's body and hand
// boxes, and its grab boxes against body boxes when throw checking is on.
func (e *CollisionEngine) Tick(att, def Participant, frame uint64) {
	if att.AttackInstance == 0 || e.isConfirmed(regKey{source: att.ID, defender: def.ID}, att.AttackInstance) {
		return
	}

	if e.throwCheck {
		for _, gb := range att.Catalog.Get(att.Animation, att.Frame, hitbox.Grab) {
			a := hitbox.Resolve(gb, att.X, att.Y, att.Facing)
			if at, ok := overlapAny(a, def, hitbox.Body); ok {
				e.push(newEvent(att.ID, def.ID, FlagCatch, gb, at, frame, att.AttackInstance))
				return
			}
		}
	}

	for _, ab := range att.Catalog.Get(att.Animation, att.Frame, hitbox.Attack) {
		a := hitbox.Resolve(ab, att.X, att.Y, att.Facing)
		if at, ok := overlapAny(a, def, hitbox.Body, hitbox.Hand); ok {
			e.push(newEvent(att.ID, def.ID, FlagHit, ab, at, frame, att.AttackInstance))
			return
		}
	}
}

// TickProjectile tests a projectile against the defender's hurtboxes.
func (e *CollisionEngine) TickProjectile(p ProjectileBody, def Participant, frame uint64) {
	if p.OwnerID == def.ID || e.isConfirmed(regKey{source: p.ID, defender: def.ID, projectile: true}, 1) {
		return
	}
	if at, ok := overlapAny(p.AABB(), def, hitbox.Body, hitbox.Hand); ok {
		ev := newEvent(p.OwnerID, def.ID, FlagHit|FlagProjectile, p.Box, at, frame, 1)
		ev.ProjectileID = p.ID
		e.push(ev)
	}
}

// ProjectilesClash reports whether two opposing projectiles collide.
func ProjectilesClash(a, b ProjectileBody) bool {
	return a.OwnerID != b.OwnerID && a.AABB().Overlaps(b.AABB())
}

// Confirm records that ev was consumed (hit, blocked, parried or thrown)
// so the same attack instance cannot register again on that defender.
// Events discarded by invincibility are not confirmed and may connect on a
// later active frame.
func (e *CollisionEngine) Confirm(ev HitEvent) {
	if ev.ProjectileID != 0 {
		e.confirmed[regKey{source: ev.ProjectileID, defender: ev.DefenderID, projectile: true}] = 1
		return
	}
	e.confirmed[regKey{source: ev.AttackerID, defender: ev.DefenderID}] = ev.AttackInstance
}

// ForgetProjectile drops registration state for a removed projectile.
func (e *CollisionEngine) ForgetProjectile(id int) {
	for k := range e.confirmed {
		if k.projectile && k.source == id {
			delete(e.confirmed, k)
		}
	}
}

// Reset clears all registration state. Used between rounds.
func (e *CollisionEngine) Reset() {
	e.queue.Reset()
	for k := range e.confirmed {
		delete(e.confirmed, k)
	}
}

func (e *CollisionEngine) isConfirmed(k regKey, instance uint32) bool {
	got, ok := e.confirmed[k]
	return ok && got == instance
}

func (e *CollisionEngine) push(ev HitEvent) {
	if e.queue.Push(ev) {
		return
	}
	e.log.WithFields(logrus.Fields{
		"frame":    ev.Frame,
		"attacker": ev.AttackerID,
		"defender": ev.DefenderID,
		"dropped":  e.queue.Dropped(),
	}).Warn("hit event queue overflow")
	if e.OnOverflow != nil {
		e.OnOverflow()
	}
}

func overlapAny(a hitbox.AABB, def Participant, kinds ...hitbox.Kind) (hitbox.AABB, bool) {
	for _, k := range kinds {
		for _, hb := range def.Catalog.Get(def.Animation, def.Frame, k) {
			h := hitbox.Resolve(hb, def.X, def.Y, def.Facing)
			if a.Overlaps(h) {
				return a.Intersection(h), true
			}
		}
	}
	return hitbox.AABB{}, false
}

func newEvent(attacker, defender int, flags ResultFlags, box hitbox.Hitbox, at hitbox.AABB, frame uint64, instance uint32) HitEvent {
	x, y := at.Center()
	return HitEvent{
		AttackerID:     attacker,
		DefenderID:     defender,
		Flags:          flags,
		Box:            box,
		Damage:         box.Damage,
		Stun:           box.Stun,
		Hitstun:        box.Hitstun,
		PositionX:      x,
		PositionY:      y,
		Frame:          frame,
		AttackInstance: instance,
	}
}

// MarkMutual flags strike hits that two characters landed on each other in
// the same tick. Both hits still apply. It reports whether any were found.
func MarkMutual(events []HitEvent) bool {
	found := false
	for i := range events {
		a := &events[i]
		if !a.Flags.Has(FlagHit) || a.IsCatch() || a.Flags.Has(FlagBlock|FlagParry) {
			continue
		}
		for j := i + 1; j < len(events); j++ {
			b := &events[j]
			if !b.Flags.Has(FlagHit) || b.IsCatch() || b.Flags.Has(FlagBlock|FlagParry) {
				continue
			}
			if a.AttackerID == b.DefenderID && a.DefenderID == b.AttackerID {
				a.Flags |= FlagMutual
				b.Flags |= FlagMutual
				found = true
			}
		}
	}
	return found
}
