package fighter

import (
	"third-strike/internal/chardef"
	"third-strike/internal/combat"
)

// Position is a world position. Y grows downward; the floor is the largest Y.
// Z is reserved and unused.
type Position struct {
	X, Y, Z float64
}

// Velocity is a per-frame displacement.
type Velocity struct {
	X, Y float64
}

// Runtime is the mutable per-frame state of one character. The match owns
// both runtimes; subsystems only borrow them for the duration of a call.
type Runtime struct {
	ID        int
	Character *chardef.Character

	Position Position
	Velocity Velocity
	Facing   int // 1 faces right, -1 faces left

	State      State
	StateFrame int // 1-indexed frame within State; 0 until the next step

	Health    int
	StunMeter int

	HitstunFrames   int
	BlockstunFrames int
	HitfreezeFrames int
	RecoveryFrames  int // Length of ParryRecovery
	InvulnFrames    int // Wakeup strike and throw invincibility

	PushbackSpeed  float64 // Per frame, away from Facing
	PushbackFrames int

	Parry combat.ParryState

	LiveProjectiles int
	Timeouts        uint64

	floor          float64
	pendingDizzy   bool
	lastHitFrame   uint64
	lastSpecial    uint64
	specialUsed    bool
	lastFlip       uint64
	flipped        bool
	attackInstance uint32
}

// NewRuntime places a character on the floor at x.
func NewRuntime(id int, ch *chardef.Character, x, floor float64, facing int) *Runtime {
	r := &Runtime{ID: id, Character: ch, floor: floor}
	r.Reset(x, facing)
	return r
}

// Reset restores round-start state. Counters that span rounds (attack
// instances, timeouts) are kept.
func (r *Runtime) Reset(x float64, facing int) {
	r.Position = Position{X: x, Y: r.floor}
	r.Velocity = Velocity{}
	r.Facing = facing
	r.State = Standing{}
	r.StateFrame = 0
	r.Health = r.Character.Stats.Health
	r.StunMeter = 0
	r.HitstunFrames = 0
	r.BlockstunFrames = 0
	r.HitfreezeFrames = 0
	r.RecoveryFrames = 0
	r.InvulnFrames = 0
	r.PushbackSpeed = 0
	r.PushbackFrames = 0
	r.Parry = combat.ParryState{Count: r.Parry.Count}
	r.LiveProjectiles = 0
	r.pendingDizzy = false
	r.specialUsed = false
	r.flipped = false
}

// Floor returns the floor height the runtime was created with.
func (r *Runtime) Floor() float64 { return r.floor }

// InAir reports whether the character is off the floor.
func (r *Runtime) InAir() bool { return r.Position.Y < r.floor }

// Move returns the running move, if any.
func (r *Runtime) Move() (*chardef.Move, uint32, bool) {
	if a, ok := r.State.(Attacking); ok {
		return a.Move, a.Instance, true
	}
	return nil, 0, false
}

// AnimationFrame returns the catalog animation and 1-indexed frame to use
// for hitboxes this tick.
func (r *Runtime) AnimationFrame() (string, int) {
	name := Animation(r.State)
	return name, r.Character.Catalog.FrameFor(name, max(1, r.StateFrame))
}

// Participant builds the collision view of this character.
func (r *Runtime) Participant() combat.Participant {
	anim, frame := r.AnimationFrame()
	_, instance, _ := r.Move()
	return combat.Participant{
		ID:             r.ID,
		X:              r.Position.X,
		Y:              r.Position.Y,
		Facing:         r.Facing,
		Catalog:        r.Character.Catalog,
		Animation:      anim,
		Frame:          frame,
		AttackInstance: instance,
	}
}

// Invincible reports strike invincibility this frame: the running move's
// invincible frames or wakeup invincibility.
func (r *Runtime) Invincible() bool {
	if r.InvulnFrames > 0 {
		return true
	}
	if m, _, ok := r.Move(); ok {
		return m.Invincible(r.StateFrame)
	}
	return false
}

// Throwable reports whether a grab can connect. Characters in the air,
// in hit or block reactions, in jump startup or already in a throw are
// immune.
func (r *Runtime) Throwable() bool {
	if r.InAir() || r.InvulnFrames > 0 || r.Health <= 0 {
		return false
	}
	switch r.State.(type) {
	case Hitstun, Blockstun, JumpStartup, Airborne, Thrown, Throwing, Knockdown:
		return false
	}
	return true
}

// CanGuard reports whether holding back blocks this frame.
func (r *Runtime) CanGuard() bool {
	switch r.State.(type) {
	case Standing, Walking, Crouching, Blockstun, Landing:
		return true
	}
	return false
}

// Stance returns the guard stance used for the guard table.
func (r *Runtime) Stance() combat.Stance {
	if r.InAir() {
		return combat.StanceAirborne
	}
	switch s := r.State.(type) {
	case Crouching:
		return combat.StanceCrouching
	case Blockstun:
		if s.Low {
			return combat.StanceCrouching
		}
	case Hitstun:
		if s.Variant == HitstunCrouching {
			return combat.StanceCrouching
		}
	case Attacking:
		if s.Move.Stance == chardef.Crouching {
			return combat.StanceCrouching
		}
	}
	return combat.StanceStanding
}

// InStartup reports whether the running move has not reached its active
// frames. Hits landed here are counter hits.
func (r *Runtime) InStartup() bool {
	m, _, ok := r.Move()
	return ok && m.Window.PhaseAt(r.StateFrame) == chardef.PhaseStartup
}

// Neutral reports whether the character is free to act.
func (r *Runtime) Neutral() bool {
	switch r.State.(type) {
	case Standing, Walking, Crouching:
		return r.HitfreezeFrames == 0
	}
	return false
}

// KO reports whether health is exhausted.
func (r *Runtime) KO() bool { return r.Health <= 0 }

func (r *Runtime) setState(s State) {
	r.State = s
	r.StateFrame = 0
}

func (r *Runtime) enter(s State) {
	r.State = s
	r.StateFrame = 1
}
