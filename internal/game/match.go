package game

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"third-strike/internal/chardef"
	"third-strike/internal/combat"
	"third-strike/internal/config"
	"third-strike/internal/fighter"
	"third-strike/internal/input"
	"third-strike/internal/logger"
)

// startOffset is each character's distance from stage center at round start.
const startOffset = 70.0

// RawInput is one player's controller state for a frame.
type RawInput struct {
	Direction int `json:"direction"` // Numpad notation, screen space
	Buttons   int `json:"buttons"`   // Bits 0-5: LP MP HP LK MK HK
}

// Options holds optional collaborators for a match.
type Options struct {
	Log       logrus.FieldLogger
	Telemetry Telemetry
}

// pendingThrow is a grab waiting out its tech window.
type pendingThrow struct {
	attacker int
	defender int
	damage   int
	stun     int
	deadline uint64
	x, y     float64
}

// Match is the whole simulation: two characters and every resolver.
// Tick is synchronous and the match is not safe for concurrent use; the
// runner owns it.
type Match struct {
	cfg config.SimConfig
	log logrus.FieldLogger
	tel Telemetry

	frame       uint64
	chars       [2]*chardef.Character
	players     [2]*fighter.Runtime
	recognizers [2]*input.Recognizer
	inputs      [2]input.Frame

	machine   *fighter.Machine
	collision *combat.CollisionEngine
	parry     *combat.ParryResolver
	guard     *combat.GuardResolver
	combo     *combat.ComboScaler
	rounds    *RoundManager

	projectiles []*Projectile
	nextProj    int
	spawned     [2]uint32 // Attack instance that last spawned a projectile
	throw       *pendingThrow
	lastHit     [2]uint64
	moveNames   [combat.QueueCapacity]string

	events      []ResolvedEvent
	endedCombos []combat.ComboEnd // ended by resets, emitted on the next tick
	snap        Snapshot
}

// NewMatch builds a match between two compiled characters and starts round one.
func NewMatch(cfg config.SimConfig, round config.RoundConfig, chars [2]*chardef.Character, opts Options) *Match {
	log := logger.OrDiscard(opts.Log)
	tel := opts.Telemetry
	if tel == nil {
		tel = NopTelemetry{}
	}

	m := &Match{
		cfg:       cfg,
		log:       log,
		tel:       tel,
		chars:     chars,
		machine:   fighter.NewMachine(cfg, log),
		collision: combat.NewCollisionEngine(log),
		parry:     combat.NewParryResolver(cfg),
		guard:     combat.NewGuardResolver(cfg),
		combo:     combat.NewComboScaler(cfg, log),
		rounds:    NewRoundManager(round),
		events:    make([]ResolvedEvent, 0, combat.QueueCapacity),
	}
	m.machine.OnTimeout = func(_ int, kind fighter.StateKind) {
		tel.StateTimeout(kind.String())
	}
	m.collision.OnOverflow = tel.QueueOverflow

	mid := m.center()
	for i, ch := range chars {
		facing := 1 - 2*i
		m.players[i] = fighter.NewRuntime(i, ch, mid-float64(facing)*startOffset, cfg.StageFloor, facing)
		m.recognizers[i] = input.NewRecognizer(cfg, i, log)
	}

	log.WithFields(logrus.Fields{
		"p1": chars[0].Name,
		"p2": chars[1].Name,
	}).Info("match created")
	return m
}

func (m *Match) center() float64 { return (m.cfg.StageLeft + m.cfg.StageRight) / 2 }

func (m *Match) Frame() uint64                        { return m.frame }
func (m *Match) Player(i int) *fighter.Runtime        { return m.players[i] }
func (m *Match) Characters() [2]*chardef.Character    { return m.chars }
func (m *Match) Rounds() *RoundManager                { return m.rounds }
func (m *Match) Projectiles() int                     { return len(m.projectiles) }
func (m *Match) Recognizer(i int) *input.Recognizer   { return m.recognizers[i] }
func (m *Match) Combo(defender int) combat.ComboState { return m.combo.State(defender) }

// Reset restarts the match from round one. The frame counter keeps running.
func (m *Match) Reset() {
	m.rounds.Restart()
	m.resetRound()
	m.log.Info("match reset")
}

func (m *Match) resetRound() {
	mid := m.center()
	m.players[0].Reset(mid-startOffset, 1)
	m.players[1].Reset(mid+startOffset, -1)
	for i, rec := range m.recognizers {
		rec.Clear()
		rec.SetFacing(m.players[i].Facing)
	}
	for _, p := range m.projectiles {
		m.collision.ForgetProjectile(p.ID)
	}
	m.projectiles = m.projectiles[:0]
	m.collision.Reset()
	m.endedCombos = append(m.endedCombos, m.combo.Reset(m.frame)...)
	m.spawned = [2]uint32{}
	m.throw = nil
	m.lastHit = [2]uint64{}
}

// Tick advances the match one frame and returns the resulting snapshot.
func (m *Match) Tick(in [2]RawInput) Snapshot {
	start := time.Now()
	m.frame++
	m.events = m.events[:0]

	for i, r := range m.players {
		rec := m.recognizers[i]
		rec.SetFacing(r.Facing)
		f := rec.Process(in[i].Direction, in[i].Buttons)
		if f.Corrected {
			m.tel.InputCorrected()
		}
		m.inputs[i] = f
	}

	switch m.rounds.Advance() {
	case TransitionRoundStarted:
		m.emit(ResolvedEvent{Kind: EventRoundStart, Round: m.rounds.Round(), Winner: -1})
	case TransitionNextRound, TransitionMatchRestart:
		m.resetRound()
	}
	for _, end := range m.endedCombos {
		m.emitComboEnd(end)
	}
	m.endedCombos = m.endedCombos[:0]

	switch m.rounds.Phase() {
	case PhaseFight:
		m.fight()
	case PhaseRoundEnd, PhaseMatchEnd:
		// Reactions play out with nobody at the controls.
		idle := input.Frame{Number: m.frame, Raw: input.Neutral, Direction: input.Neutral}
		for i, r := range m.players {
			m.machine.Step(r, idle, m.players[1-i], m.frame)
		}
	}

	snap := m.snapshot()
	m.tel.ObserveTick(time.Since(start))
	return snap
}

func (m *Match) fight() {
	for i, r := range m.players {
		if canParry(r) {
			_, blockstun := r.State.(fighter.Blockstun)
			m.parry.OpenWindow(&r.Parry, m.inputs[i], r.InAir(), blockstun)
		}
	}

	m.updateThrow()
	for i, r := range m.players {
		m.machine.Step(r, m.inputs[i], m.players[1-i], m.frame)
	}
	m.separate()
	m.updateProjectiles()

	// Stale combos end before this frame's hits can start new ones.
	for _, end := range m.combo.Expire(m.frame) {
		m.emitComboEnd(end)
	}
	m.collide()
	m.resolve()

	for _, r := range m.players {
		m.parry.Advance(&r.Parry)
	}
	m.checkRound()
}

// canParry reports whether a forward tap this frame may open a window.
func canParry(r *fighter.Runtime) bool {
	if r.HitfreezeFrames > 0 {
		return false
	}
	switch r.State.(type) {
	case fighter.Standing, fighter.Walking, fighter.Crouching, fighter.Airborne, fighter.Blockstun:
		return true
	}
	return false
}

// separate keeps the two push boxes from overlapping. A character pinned
// to a wall pushes the other one out instead.
func (m *Match) separate() {
	a, b := m.players[0], m.players[1]
	if a.InAir() || b.InAir() || m.throw != nil {
		return
	}
	dx := b.Position.X - a.Position.X
	overlap := 2*m.cfg.PushboxWidth - math.Abs(dx)
	if overlap <= 0 {
		return
	}
	dir := 1.0
	if dx < 0 || (dx == 0 && a.Facing < 0) {
		dir = -1
	}
	a.Position.X -= dir * overlap / 2
	b.Position.X += dir * overlap / 2

	if x := m.clampX(a.Position.X); x != a.Position.X {
		b.Position.X += x - a.Position.X
		a.Position.X = x
	}
	if x := m.clampX(b.Position.X); x != b.Position.X {
		a.Position.X += x - b.Position.X
		b.Position.X = x
	}
}

func (m *Match) clampX(x float64) float64 {
	return math.Max(m.cfg.StageLeft, math.Min(m.cfg.StageRight, x))
}

func (m *Match) updateProjectiles() {
	kept := m.projectiles[:0]
	for _, p := range m.projectiles {
		p.Advance()
		if p.Expired(m.cfg) {
			m.release(p)
			continue
		}
		kept = append(kept, p)
	}
	m.projectiles = kept

	for i, r := range m.players {
		mv, instance, ok := r.Move()
		if !ok || mv.Projectile == nil || m.spawned[i] == instance || r.StateFrame != mv.Window.FirstActive() {
			continue
		}
		m.spawned[i] = instance
		m.nextProj++
		p := NewProjectile(m.nextProj, i, mv.Name, mv.Projectile, r.Position.X, r.Position.Y, r.Facing)
		m.projectiles = append(m.projectiles, p)
		r.LiveProjectiles++
	}

	m.clashProjectiles()
}

// clashProjectiles cancels opposing projectiles that touch.
func (m *Match) clashProjectiles() {
	for i := 0; i < len(m.projectiles); i++ {
		a := m.projectiles[i]
		for j := i + 1; j < len(m.projectiles); j++ {
			b := m.projectiles[j]
			if !combat.ProjectilesClash(a.Body(), b.Body()) {
				continue
			}
			m.emit(ResolvedEvent{
				Kind:       EventProjectileClash,
				Frame:      m.frame,
				Attacker:   a.Owner,
				Defender:   b.Owner,
				Move:       a.Move,
				Projectile: true,
				X:          (a.X + b.X) / 2,
				Y:          (a.Y + b.Y) / 2,
				Winner:     -1,
			})
			m.removeProjectile(b.ID)
			m.removeProjectile(a.ID)
			i--
			break
		}
	}
}

func (m *Match) removeProjectile(id int) {
	for i, p := range m.projectiles {
		if p.ID == id {
			m.release(p)
			m.projectiles = append(m.projectiles[:i], m.projectiles[i+1:]...)
			return
		}
	}
}

func (m *Match) release(p *Projectile) {
	if owner := m.players[p.Owner]; owner.LiveProjectiles > 0 {
		owner.LiveProjectiles--
	}
	m.collision.ForgetProjectile(p.ID)
}

func (m *Match) collide() {
	throwCheck := false
	for _, r := range m.players {
		if mv, _, ok := r.Move(); ok && mv.Kind == chardef.Throw {
			throwCheck = true
		}
	}
	m.collision.BeginTick(throwCheck)

	a, b := m.players[0].Participant(), m.players[1].Participant()
	m.collision.Tick(a, b, m.frame)
	m.collision.Tick(b, a, m.frame)
	for _, p := range m.projectiles {
		m.collision.TickProjectile(p.Body(), m.players[1-p.Owner].Participant(), m.frame)
	}
}

func (m *Match) snapshot() Snapshot {
	s := &m.snap
	s.Frame = m.frame
	s.Round = RoundSnapshot{
		Number: m.rounds.Round(),
		Phase:  m.rounds.Phase().String(),
		Timer:  m.rounds.Timer(),
		Wins:   m.rounds.Wins(),
		Winner: m.rounds.Winner(),
	}
	for i, r := range m.players {
		s.Characters[i] = m.characterSnapshot(i, r)
	}
	s.Projectiles = s.Projectiles[:0]
	for _, p := range m.projectiles {
		s.Projectiles = append(s.Projectiles, p.Snapshot())
	}
	s.Events = append(s.Events[:0], m.events...)
	s.QueueDropped = m.collision.Queue().Dropped()
	return s.Clone()
}

func (m *Match) characterSnapshot(i int, r *fighter.Runtime) CharacterSnapshot {
	anim, animFrame := r.AnimationFrame()
	flash := m.lastHit[i] > 0 && m.frame-m.lastHit[i] < uint64(m.guard.HitFlash())
	return CharacterSnapshot{
		Name:           r.Character.Name,
		Position:       r.Position,
		Facing:         r.Facing,
		State:          fighter.Label(r.State),
		StateFrame:     r.StateFrame,
		Animation:      anim,
		AnimationFrame: animFrame,
		Health:         r.Health,
		MaxHealth:      r.Character.Stats.Health,
		StunMeter:      r.StunMeter,
		MaxStun:        r.Character.Stats.Stun,
		Hitfreeze:      r.HitfreezeFrames,
		Invincible:     r.Invincible(),
		HitFlash:       flash,
		Combo:          m.combo.State(i),
		ParryWindow:    r.Parry.WindowActive,
		ParryType:      r.Parry.Type.String(),
		ParryCount:     r.Parry.Count,
		Timeouts:       r.Timeouts,
	}
}

func (m *Match) emit(ev ResolvedEvent) {
	if ev.Frame == 0 {
		ev.Frame = m.frame
	}
	m.events = append(m.events, ev)
	m.tel.EventResolved(ev.Kind)
	if ev.Kind >= EventKO {
		m.log.WithFields(logrus.Fields{
			"event":  ev.Kind.String(),
			"round":  ev.Round,
			"winner": ev.Winner,
			"frame":  ev.Frame,
		}).Info("round event")
	}
}

func (m *Match) emitComboEnd(end combat.ComboEnd) {
	m.emit(ResolvedEvent{
		Kind:      EventComboEnd,
		Frame:     m.frame,
		Attacker:  1 - end.DefenderID,
		Defender:  end.DefenderID,
		Damage:    end.Damage,
		ComboHits: end.Hits,
		Winner:    -1,
	})
}
