package fighter

import "third-strike/internal/combat"

// Hit is a resolved clean hit to write back into the defender.
type Hit struct {
	Damage    int
	Stun      int
	Hitstun   int
	Freeze    int
	Pushback  float64
	Knockdown bool
	Frame     uint64
}

// Block is a resolved block to write back into the defender.
type Block struct {
	Chip      int
	Blockstun int
	Freeze    int
	Pushback  float64
	Low       bool
}

// TakeHit applies damage, stun and the hit reaction. The variant follows
// the defender's stance; knockdowns and KOs put it on the floor.
func (m *Machine) TakeHit(r *Runtime, h Hit) {
	stance := r.Stance()
	_, wasDizzy := r.State.(Dizzy)

	r.Health = max(0, r.Health-h.Damage)
	r.lastHitFrame = h.Frame
	if wasDizzy {
		r.StunMeter = 0
	} else if !r.pendingDizzy {
		r.StunMeter += h.Stun
		if limit := r.Character.Stats.Stun; limit > 0 && r.StunMeter >= limit {
			r.StunMeter = limit
			r.pendingDizzy = true
			m.log.WithField("player", r.ID).Info("stun meter full")
		}
	}

	r.HitfreezeFrames = h.Freeze
	r.HitstunFrames = h.Hitstun
	r.BlockstunFrames = 0
	m.push(r, h.Pushback)

	switch {
	case h.Knockdown || r.KO():
		r.setState(Knockdown{})
		r.pendingDizzy = r.pendingDizzy && !r.KO()
		if r.InAir() {
			r.Velocity = Velocity{X: -float64(r.Facing) * 2, Y: 0}
		}
	case stance == combat.StanceAirborne:
		r.setState(Hitstun{Variant: HitstunAirborne})
		r.Velocity = Velocity{X: -float64(r.Facing) * 2, Y: -4}
	case stance == combat.StanceCrouching:
		r.setState(Hitstun{Variant: HitstunCrouching})
	default:
		r.setState(Hitstun{Variant: HitstunStanding})
	}
}

// TakeBlock applies chip damage and blockstun.
func (m *Machine) TakeBlock(r *Runtime, b Block) {
	r.Health = max(0, r.Health-b.Chip)
	r.HitfreezeFrames = b.Freeze
	r.BlockstunFrames = b.Blockstun
	r.HitstunFrames = 0
	m.push(r, b.Pushback)
	if r.KO() {
		r.setState(Knockdown{})
		return
	}
	r.setState(Blockstun{Low: b.Low})
}

// Freeze holds r for n frames. Used on the attacker when its hit connects.
func (m *Machine) Freeze(r *Runtime, n int) {
	if n > r.HitfreezeFrames {
		r.HitfreezeFrames = n
	}
}

// Parried applies a successful parry to the defender: freeze, then
// recovery frames before it can act. A red parry leaves blockstun.
func (m *Machine) Parried(r *Runtime, freeze, recovery int) {
	r.HitfreezeFrames = freeze
	r.BlockstunFrames = 0
	if r.InAir() {
		return
	}
	if recovery > 0 {
		r.RecoveryFrames = recovery
		r.setState(ParryRecovery{})
		return
	}
	if _, ok := r.State.(Blockstun); ok {
		r.setState(Standing{})
	}
}

// Grab starts a throw: the thrower holds, the defender is caught and can
// still tech.
func (m *Machine) Grab(att, def *Runtime) {
	att.setState(Throwing{})
	att.Velocity = Velocity{}
	def.setState(Thrown{})
	def.Velocity = Velocity{}
	def.HitfreezeFrames = 0
	def.PushbackFrames = 0
}

// Tech breaks a throw. Both characters return to neutral and are pushed
// apart.
func (m *Machine) Tech(att, def *Runtime, push float64) {
	for _, r := range []*Runtime{att, def} {
		r.setState(Standing{})
		m.push(r, push)
	}
}

// Push slides r backwards by distance over the pushback frames. Used to
// move an attacker away when its target is already against a wall.
func (m *Machine) Push(r *Runtime, distance float64) {
	if distance > 0 {
		m.push(r, distance)
	}
}

func (m *Machine) push(r *Runtime, distance float64) {
	frames := m.cfg.PushbackFrames
	if distance <= 0 || frames <= 0 {
		r.PushbackFrames = 0
		return
	}
	r.PushbackSpeed = distance / float64(frames)
	r.PushbackFrames = frames
}
