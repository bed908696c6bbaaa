package fighter

import (
	"math"

	"github.com/sirupsen/logrus"

	"third-strike/internal/chardef"
	"third-strike/internal/config"
	"third-strike/internal/input"
	"third-strike/internal/logger"
)

// Machine advances character runtimes. It holds only immutable tuning and
// can drive both players.
type Machine struct {
	cfg config.SimConfig
	log logrus.FieldLogger

	// OnTimeout is called when a state outlives its limit and is forced
	// back to Standing.
	OnTimeout func(player int, kind StateKind)
}

// NewMachine creates a state machine.
func NewMachine(cfg config.SimConfig, log logrus.FieldLogger) *Machine {
	return &Machine{cfg: cfg, log: logger.OrDiscard(log)}
}

// Step advances r by one frame using this frame's input. opp is the other
// character, read for facing, throw range and nothing else.
func (m *Machine) Step(r *Runtime, f input.Frame, opp *Runtime, frame uint64) {
	if r.HitfreezeFrames > 0 {
		r.HitfreezeFrames--
		return
	}

	r.StateFrame++
	if r.InvulnFrames > 0 {
		r.InvulnFrames--
	}
	m.decayStun(r, frame)

	if m.timedOut(r, frame) {
		return
	}

	switch s := r.State.(type) {
	case Standing, Walking, Crouching:
		m.neutral(r, f, opp, frame)
	case JumpStartup:
		if r.StateFrame > m.duration(r) {
			m.launch(r, s.Dir)
		}
	case Airborne:
		if mv := m.selectMove(r, f, chardef.Air, opp, frame, false); mv != nil {
			m.startAttack(r, mv, frame)
		}
	case Landing, Dash, Blockstun, ParryRecovery, Throwing, Knockdown:
		if r.StateFrame > m.duration(r) {
			m.recover(r, f, opp, frame)
		}
	case Attacking:
		m.attack(r, s, f, opp, frame)
	case Hitstun:
		if s.Variant != HitstunAirborne && r.StateFrame > m.duration(r) {
			m.recover(r, f, opp, frame)
		}
	case Dizzy:
		if r.StateFrame > m.duration(r) {
			r.StunMeter = 0
			m.recover(r, f, opp, frame)
		}
	case Thrown:
		// Held by the thrower until the match releases it.
	default:
		panic("unreachable")
	}

	m.integrate(r)
	m.clampStage(r)
	m.updateFacing(r, opp, frame)
}

// duration is the scripted length of timed states; 0 means open ended.
func (m *Machine) duration(r *Runtime) int {
	stats := r.Character.Stats
	switch s := r.State.(type) {
	case Attacking:
		return s.Move.Window.Total
	case Hitstun:
		return r.HitstunFrames
	case Blockstun:
		return r.BlockstunFrames
	case ParryRecovery:
		return r.RecoveryFrames
	case JumpStartup:
		return stats.JumpStartup
	case Landing:
		return stats.Landing
	case Dash:
		if s.Forward {
			return stats.DashForwardFrames
		}
		return stats.DashBackFrames
	case Throwing:
		return m.cfg.ThrowTechFrames + m.cfg.ThrowRecoveryFrames
	case Knockdown:
		return m.cfg.KnockdownFrames
	case Dizzy:
		return m.cfg.DizzyFrames
	}
	return 0
}

// Remaining returns frames left in the current timed state, not counting
// hitfreeze.
func (m *Machine) Remaining(r *Runtime) int {
	d := m.duration(r)
	if d <= 0 {
		return 0
	}
	return max(0, d-r.StateFrame)
}

// ActionableIn returns how many more steps pass before r can act. Zero
// means the next step accepts input.
func (m *Machine) ActionableIn(r *Runtime) int {
	return r.HitfreezeFrames + m.Remaining(r)
}

func (m *Machine) timedOut(r *Runtime, frame uint64) bool {
	kind := r.State.Kind()
	limit := m.cfg.StateTimeout(kind.String())
	if limit <= 0 || r.StateFrame <= limit {
		return false
	}

	m.log.WithFields(logrus.Fields{
		"player": r.ID,
		"state":  kind.String(),
		"frames": r.StateFrame,
		"limit":  limit,
		"frame":  frame,
	}).Warn("state exceeded its limit, forcing standing")
	r.Timeouts++
	if m.OnTimeout != nil {
		m.OnTimeout(r.ID, kind)
	}

	r.enter(Standing{})
	r.Position.Y = r.floor
	r.Velocity = Velocity{}
	r.HitstunFrames = 0
	r.BlockstunFrames = 0
	r.RecoveryFrames = 0
	r.pendingDizzy = false
	return true
}

// neutral maps input to a grounded action: attack, jump, dash, crouch,
// walk or stand.
func (m *Machine) neutral(r *Runtime, f input.Frame, opp *Runtime, frame uint64) {
	stance := chardef.Standing
	if f.Direction.IsDown() {
		stance = chardef.Crouching
	}
	if mv := m.selectMove(r, f, stance, opp, frame, false); mv != nil {
		m.startAttack(r, mv, frame)
		return
	}

	var next State
	switch {
	case f.Direction.IsUp():
		next = JumpStartup{Dir: jumpDir(f.Direction)}
	case f.Motions.Has(input.DoubleTapForward):
		next = Dash{Forward: true}
	case f.Motions.Has(input.DoubleTapBack):
		next = Dash{Forward: false}
	case f.Direction.IsDown():
		next = Crouching{}
	case f.Direction == input.Forward:
		next = Walking{Forward: true}
	case f.Direction == input.Back:
		next = Walking{Forward: false}
	default:
		next = Standing{}
	}
	if next != r.State {
		r.enter(next)
	}
}

// recover leaves a timed state. A pending dizzy takes over once the
// character is back on its feet.
func (m *Machine) recover(r *Runtime, f input.Frame, opp *Runtime, frame uint64) {
	if r.pendingDizzy {
		r.pendingDizzy = false
		r.enter(Dizzy{})
		return
	}
	if _, ok := r.State.(Knockdown); ok {
		r.InvulnFrames = m.cfg.WakeupInvincible
	}
	r.enter(Standing{})
	m.neutral(r, f, opp, frame)
}

func (m *Machine) attack(r *Runtime, s Attacking, f input.Frame, opp *Runtime, frame uint64) {
	mv := s.Move
	if r.StateFrame > mv.Window.Total {
		if r.InAir() {
			r.enter(Airborne{})
			return
		}
		m.recover(r, f, opp, frame)
		return
	}

	// Light normals accept special cancels and nothing else.
	if mv.Cancelable() && !f.Motions.Empty() && !f.Pressed.Empty() {
		if next := m.selectMove(r, f, mv.Stance, opp, frame, true); next != nil {
			m.startAttack(r, next, frame)
		}
	}
}

// selectMove picks the first move, in the character's priority order,
// that this frame's input triggers. With cancel set only specials qualify.
func (m *Machine) selectMove(r *Runtime, f input.Frame, stance chardef.Stance, opp *Runtime, frame uint64, cancel bool) *chardef.Move {
	if f.Pressed.Empty() {
		return nil
	}
	for _, mv := range r.Character.Moves() {
		if !stanceMatches(mv, stance) {
			continue
		}
		if !f.Held.HasAll(mv.Buttons) || f.Pressed&mv.Buttons == 0 {
			continue
		}
		if mv.RequiresForward && f.Direction != input.Forward {
			continue
		}
		switch mv.Kind {
		case chardef.Special:
			if len(mv.Motions) == 0 || !mv.MatchesMotion(f.Motions) || !m.specialReady(r, frame) {
				continue
			}
			if mv.Projectile != nil && r.LiveProjectiles >= m.cfg.MaxProjectiles {
				continue
			}
		case chardef.Throw:
			if cancel || !m.inThrowRange(r, opp) {
				continue
			}
		default:
			if cancel {
				continue
			}
		}
		return mv
	}
	return nil
}

// Ground specials come out from either grounded stance.
func stanceMatches(mv *chardef.Move, stance chardef.Stance) bool {
	if mv.Kind == chardef.Special && mv.Stance != chardef.Air {
		return stance != chardef.Air
	}
	return mv.Stance == stance
}

func (m *Machine) specialReady(r *Runtime, frame uint64) bool {
	return !r.specialUsed || frame-r.lastSpecial >= uint64(m.cfg.SpecialCooldownFrames)
}

func (m *Machine) inThrowRange(r, opp *Runtime) bool {
	if opp == nil || r.InAir() || !opp.Throwable() {
		return false
	}
	gap := math.Abs(opp.Position.X-r.Position.X) - 2*m.cfg.PushboxWidth
	return gap <= m.cfg.ThrowRange
}

func (m *Machine) startAttack(r *Runtime, mv *chardef.Move, frame uint64) {
	r.attackInstance++
	if r.attackInstance == 0 {
		r.attackInstance = 1
	}
	r.enter(Attacking{Move: mv, Instance: r.attackInstance})
	if mv.Kind == chardef.Special {
		r.lastSpecial = frame
		r.specialUsed = true
	}
	if !r.InAir() {
		r.Velocity = Velocity{}
	}
	m.log.WithFields(logrus.Fields{
		"player":   r.ID,
		"move":     mv.Name,
		"instance": r.attackInstance,
		"frame":    frame,
	}).Debug("move started")
}

func (m *Machine) launch(r *Runtime, dir int) {
	r.Velocity = Velocity{
		X: float64(dir*r.Facing) * m.cfg.JumpSpeedX,
		Y: m.cfg.JumpVelocity,
	}
	r.enter(Airborne{Dir: dir})
}

func jumpDir(d input.Direction) int {
	switch {
	case d.IsForward():
		return 1
	case d.IsBack():
		return -1
	}
	return 0
}

// integrate applies this frame's movement for the current state.
func (m *Machine) integrate(r *Runtime) {
	stats := r.Character.Stats
	facing := float64(r.Facing)

	switch s := r.State.(type) {
	case Walking:
		if s.Forward {
			r.Position.X += facing * stats.WalkForward
		} else {
			r.Position.X -= facing * stats.WalkBack
		}
	case Dash:
		if s.Forward {
			r.Position.X += facing * m.cfg.DashSpeed
		} else {
			r.Position.X -= facing * m.cfg.DashSpeed
		}
	case Attacking:
		dx, dy := s.Move.DisplacementAt(r.StateFrame)
		r.Position.X += facing * dx
		r.Position.Y += dy
		if s.Move.Stance == chardef.Air {
			m.fall(r)
		} else if r.Position.Y > r.floor {
			r.Position.Y = r.floor
		}
	case Airborne, Hitstun, Knockdown:
		if r.InAir() || r.Velocity.Y < 0 {
			m.fall(r)
		}
	}

	if r.PushbackFrames > 0 {
		r.Position.X -= facing * r.PushbackSpeed
		r.PushbackFrames--
	}
}

// fall applies gravity and handles touching down.
func (m *Machine) fall(r *Runtime) {
	r.Velocity.Y += m.cfg.Gravity
	r.Position.X += r.Velocity.X
	r.Position.Y += r.Velocity.Y
	if r.Position.Y < r.floor {
		return
	}

	r.Position.Y = r.floor
	r.Velocity = Velocity{}
	switch s := r.State.(type) {
	case Airborne:
		r.enter(Landing{})
	case Attacking:
		if s.Move.Stance == chardef.Air {
			r.enter(Landing{})
		}
	case Hitstun:
		if s.Variant == HitstunAirborne {
			r.enter(Landing{})
		}
	}
}

func (m *Machine) clampStage(r *Runtime) {
	if r.Position.X < m.cfg.StageLeft {
		r.Position.X = m.cfg.StageLeft
	}
	if r.Position.X > m.cfg.StageRight {
		r.Position.X = m.cfg.StageRight
	}
}

// updateFacing turns r toward opp while grounded and free. After a turn
// the facing is locked for the next FacingLockFrames frames.
func (m *Machine) updateFacing(r, opp *Runtime, frame uint64) {
	if opp == nil || r.InAir() {
		return
	}
	switch r.State.(type) {
	case Standing, Walking, Crouching, Landing:
	default:
		return
	}

	want := r.Facing
	switch dx := opp.Position.X - r.Position.X; {
	case dx > 0:
		want = 1
	case dx < 0:
		want = -1
	}
	if want == r.Facing {
		return
	}
	if r.flipped && frame-r.lastFlip <= uint64(m.cfg.FacingLockFrames) {
		return
	}
	r.Facing = want
	r.lastFlip = frame
	r.flipped = true
}

func (m *Machine) decayStun(r *Runtime, frame uint64) {
	if r.StunMeter <= 0 || r.pendingDizzy {
		return
	}
	if _, dizzy := r.State.(Dizzy); dizzy {
		return
	}
	if frame-r.lastHitFrame > uint64(m.cfg.StunRecoveryDelay) {
		r.StunMeter = max(0, r.StunMeter-m.cfg.StunRecoveryRate)
	}
}
