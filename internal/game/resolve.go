package game

import (
	"github.com/sirupsen/logrus"

	"third-strike/internal/chardef"
	"third-strike/internal/combat"
	"third-strike/internal/fighter"
	"third-strike/internal/input"
)

// techButtons is the throw break input.
const techButtons = input.ButtonSet(input.LP | input.LK)

// resolve walks this tick's collision events. Grabs go first; a grabbed
// character neither takes nor deals strikes this tick. Each strike then
// runs invincibility, parry, guard and hit in that order.
func (m *Match) resolve() {
	events := m.collision.Queue().Events()

	var grabbed [2]bool
	for i := range events {
		ev := &events[i]
		if ev.IsCatch() && m.resolveCatch(ev) {
			grabbed[ev.DefenderID] = true
			grabbed[ev.AttackerID] = true
		}
	}

	for i := range events {
		ev := &events[i]
		m.moveNames[i] = ""
		if ev.IsCatch() {
			continue
		}
		if grabbed[ev.DefenderID] || grabbed[ev.AttackerID] {
			ev.Flags &^= combat.FlagHit
			continue
		}
		m.resolveStrike(i, ev)
	}

	combat.MarkMutual(events)
	for i := range events {
		m.report(i, &events[i])
	}
}

// resolveCatch starts a throw. Two grabs on the same tick break each other.
func (m *Match) resolveCatch(ev *combat.HitEvent) bool {
	att, def := m.players[ev.AttackerID], m.players[ev.DefenderID]
	if m.throw != nil {
		if m.throw.attacker == ev.DefenderID && m.throw.deadline == m.frame+uint64(m.cfg.ThrowTechFrames) {
			m.tech()
		}
		return false
	}
	if !def.Throwable() {
		return false
	}
	m.collision.Confirm(*ev)

	damage := ev.Damage
	if damage <= 0 {
		damage = m.cfg.ThrowDamage
	}
	m.machine.Grab(att, def)
	m.throw = &pendingThrow{
		attacker: ev.AttackerID,
		defender: ev.DefenderID,
		damage:   damage,
		stun:     ev.Stun,
		deadline: m.frame + uint64(m.cfg.ThrowTechFrames),
		x:        ev.PositionX,
		y:        ev.PositionY,
	}
	m.log.WithFields(logrus.Fields{
		"attacker": ev.AttackerID,
		"defender": ev.DefenderID,
		"frame":    m.frame,
	}).Debug("grab")
	return true
}

// updateThrow runs before the state machines: the grabbed character can
// break the throw until the deadline, after which it lands.
func (m *Match) updateThrow() {
	t := m.throw
	if t == nil {
		return
	}
	f := m.inputs[t.defender]
	if f.Held.HasAll(techButtons) && f.Pressed&techButtons != 0 {
		m.tech()
		// The break consumes the press so it cannot also start a throw.
		m.inputs[t.defender].Pressed = 0
		return
	}
	if m.frame < t.deadline {
		return
	}

	m.throw = nil
	def := m.players[t.defender]
	damage := m.combo.ScaleDamage(t.defender, t.damage, m.frame)
	m.machine.TakeHit(def, fighter.Hit{
		Damage:    damage,
		Stun:      t.stun,
		Knockdown: true,
		Frame:     m.frame,
	})
	m.lastHit[t.defender] = m.frame
	m.emit(ResolvedEvent{
		Kind:      EventThrow,
		Attacker:  t.attacker,
		Defender:  t.defender,
		Damage:    damage,
		ComboHits: m.combo.State(t.defender).HitCount,
		X:         t.x,
		Y:         t.y,
		Winner:    -1,
	})
}

func (m *Match) tech() {
	t := m.throw
	m.throw = nil
	m.machine.Tech(m.players[t.attacker], m.players[t.defender], m.cfg.Pushback.Medium)
	m.emit(ResolvedEvent{
		Kind:     EventThrowTech,
		Attacker: t.attacker,
		Defender: t.defender,
		X:        t.x,
		Y:        t.y,
		Winner:   -1,
	})
}

func (m *Match) resolveStrike(i int, ev *combat.HitEvent) {
	att, def := m.players[ev.AttackerID], m.players[ev.DefenderID]
	projectile := ev.Flags.Has(combat.FlagProjectile)

	// Invincible frames discard the event without registering it, so the
	// same attack can still hit once they end.
	if def.Invincible() {
		ev.Flags &^= combat.FlagHit
		return
	}
	m.collision.Confirm(*ev)

	special := projectile
	if projectile {
		m.moveNames[i] = m.projectileMove(ev.ProjectileID)
		m.removeProjectile(ev.ProjectileID)
	} else if mv, _, ok := att.Move(); ok {
		m.moveNames[i] = mv.Name
		special = mv.Kind == chardef.Special
	}

	if m.parry.TryParry(&def.Parry, ev.Box.Guard) {
		ev.Flags |= combat.FlagParry
		ev.Damage = 0
		m.applyParry(att, def, projectile)
		return
	}

	stance := def.Stance()
	holdingBack := def.CanGuard() && m.inputs[def.ID].Direction.IsBack()
	if m.guard.Resolve(stance, ev.Box.Guard, holdingBack) == combat.GuardBlock {
		m.applyBlock(att, def, ev, stance, projectile, special)
		return
	}
	m.applyHit(att, def, ev, stance, projectile)
}

func (m *Match) projectileMove(id int) string {
	for _, p := range m.projectiles {
		if p.ID == id {
			return p.Move
		}
	}
	return ""
}

// applyParry freezes both sides and leaves the defender exactly
// ParryAdvantageFrames ahead of the attacker. A parried projectile only
// freezes the defender.
func (m *Match) applyParry(att, def *fighter.Runtime, projectile bool) {
	freeze := m.cfg.ParryFreezeFrames
	if projectile {
		m.machine.Parried(def, freeze, 0)
		return
	}

	adv := m.parry.Advantage()
	remaining := m.machine.Remaining(att)
	lock := max(remaining, adv)
	m.machine.Parried(def, freeze, lock-adv)
	m.machine.Freeze(att, freeze+lock-remaining)
}

func (m *Match) applyBlock(att, def *fighter.Runtime, ev *combat.HitEvent, stance combat.Stance, projectile, special bool) {
	chip := m.guard.ChipDamage(ev.Damage)
	// Only specials can finish a round through guard.
	if !special && chip >= def.Health {
		chip = max(0, def.Health-1)
	}
	freeze := m.guard.BlockFreeze(ev.Damage)
	push := m.guard.Pushback(ev.Box, true)

	ev.Flags |= combat.FlagBlock
	if chip > 0 {
		ev.Flags |= combat.FlagChip
	}
	ev.Damage = chip

	m.machine.TakeBlock(def, fighter.Block{
		Chip:      chip,
		Blockstun: m.guard.Blockstun(ev.Hitstun),
		Freeze:    freeze,
		Pushback:  push,
		Low:       stance == combat.StanceCrouching,
	})
	if !projectile {
		m.machine.Freeze(att, freeze)
		m.cornerPush(att, def, push)
	}
}

func (m *Match) applyHit(att, def *fighter.Runtime, ev *combat.HitEvent, stance combat.Stance, projectile bool) {
	base := ev.Damage
	if stance == combat.StanceCrouching && m.cfg.CrouchDamageBonus > 0 {
		base += base * m.cfg.CrouchDamageBonus / 100
	}
	hitstun := ev.Hitstun
	if def.InStartup() {
		ev.Flags |= combat.FlagCounter
		hitstun += m.cfg.CounterHitBonus
	}

	damage := m.combo.ScaleDamage(def.ID, base, m.frame)
	freeze := m.guard.HitFreeze(ev.Damage)
	push := m.guard.Pushback(ev.Box, false)
	ev.Damage = damage

	m.machine.TakeHit(def, fighter.Hit{
		Damage:    damage,
		Stun:      ev.Stun,
		Hitstun:   hitstun,
		Freeze:    freeze,
		Pushback:  push,
		Knockdown: ev.Box.Knockdown,
		Frame:     m.frame,
	})
	m.lastHit[def.ID] = m.frame
	if !projectile {
		m.machine.Freeze(att, freeze)
		m.cornerPush(att, def, push)
	}
}

// cornerPush hands the pushback the defender cannot take, because a wall
// is behind it, to the attacker.
func (m *Match) cornerPush(att, def *fighter.Runtime, push float64) {
	room := def.Position.X - m.cfg.StageLeft
	if def.Facing < 0 {
		room = m.cfg.StageRight - def.Position.X
	}
	if room < push {
		m.machine.Push(att, push-room)
	}
}

func (m *Match) report(i int, ev *combat.HitEvent) {
	if ev.IsCatch() {
		return
	}
	var kind EventKind
	switch {
	case ev.Flags.Has(combat.FlagParry):
		kind = EventParry
	case ev.Flags.Has(combat.FlagBlock):
		kind = EventBlock
	case ev.Flags.Has(combat.FlagMutual):
		kind = EventMutualHit
	case ev.Flags.Has(combat.FlagHit):
		kind = EventHit
	default:
		return
	}

	out := ResolvedEvent{
		Kind:       kind,
		Frame:      ev.Frame,
		Attacker:   ev.AttackerID,
		Defender:   ev.DefenderID,
		Move:       m.moveNames[i],
		Guard:      ev.Box.Guard.String(),
		Damage:     ev.Damage,
		Counter:    ev.Flags.Has(combat.FlagCounter),
		Chip:       ev.Flags.Has(combat.FlagChip),
		Projectile: ev.Flags.Has(combat.FlagProjectile),
		X:          ev.PositionX,
		Y:          ev.PositionY,
		Winner:     -1,
	}
	if kind == EventHit || kind == EventMutualHit {
		out.ComboHits = m.combo.State(ev.DefenderID).HitCount
	}
	m.emit(out)
}

// checkRound ends the round on a KO or when the timer runs out.
func (m *Match) checkRound() {
	var health, maxHealth [2]int
	for i, r := range m.players {
		health[i] = r.Health
		maxHealth[i] = r.Character.Stats.Health
	}
	timeOver := m.rounds.TickTimer()
	res, done := Decide(health, maxHealth, timeOver)
	if !done {
		return
	}

	for _, end := range m.combo.Reset(m.frame) {
		m.emitComboEnd(end)
	}
	for i, r := range m.players {
		if r.KO() {
			m.emit(ResolvedEvent{Kind: EventKO, Attacker: 1 - i, Defender: i, Round: m.rounds.Round(), Winner: res.Winner})
		}
	}

	round := m.rounds.Round()
	matchOver := m.rounds.End(res)
	m.emit(ResolvedEvent{Kind: EventRoundEnd, Round: round, Winner: res.Winner, Reason: res.Reason})
	if matchOver {
		m.emit(ResolvedEvent{Kind: EventMatchEnd, Round: round, Winner: res.Winner, Reason: res.Reason})
	}
	m.throw = nil
}
