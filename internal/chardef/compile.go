package chardef

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"third-strike/internal/hitbox"
	"third-strike/internal/input"
)

var (
	ErrFrameWindow   = errors.New("total does not equal startup+active+recovery")
	ErrInvincibility = errors.New("invincibility frame outside move")
	ErrTooManyBoxes  = hitbox.ErrTooManyBoxes
	ErrUnknownGuard  = errors.New("unknown guard level")
	ErrUnknownName   = errors.New("unknown enum value")
	ErrUnknownButton = errors.New("unknown button")
	ErrUnknownMotion = errors.New("unknown motion")
	ErrUnknownBase   = errors.New("unknown base definition")
	ErrBaseCycle     = errors.New("base definitions form a cycle")
	ErrBadFrames     = errors.New("frame range must be [from] or [from, to]")
	ErrNoMoves       = errors.New("character has no moves")
)

// Stats is compiled per-character tuning.
type Stats struct {
	Health            int     `json:"health"`
	Stun              int     `json:"stun"`
	WalkForward       float64 `json:"walkForward"`
	WalkBack          float64 `json:"walkBack"`
	DashForwardFrames int     `json:"dashForwardFrames"`
	DashBackFrames    int     `json:"dashBackFrames"`
	JumpStartup       int     `json:"jumpStartup"`
	Landing           int     `json:"landing"`
}

// Character is an immutable compiled character.
type Character struct {
	Name    string
	Stats   Stats
	Catalog *hitbox.Catalog

	moves  []*Move
	byName map[string]*Move
}

// Moves returns moves in input priority order: specials, throws, then
// normals; higher priority and stronger first within each group.
func (c *Character) Moves() []*Move { return c.moves }

// Move looks a move up by name.
func (c *Character) Move(name string) (*Move, bool) {
	m, ok := c.byName[name]
	return m, ok
}

// Stance animations and the hurtbox set each one uses. An empty set means
// the character has no hurtbox in that animation.
var stanceAnimations = []struct {
	name, hurt string
}{
	{"standing", "standing"},
	{"walking", "standing"},
	{"dash", "standing"},
	{"jump_startup", "standing"},
	{"landing", "standing"},
	{"parry", "standing"},
	{"hitstun", "standing"},
	{"blockstun", "standing"},
	{"throwing", "standing"},
	{"dizzy", "standing"},
	{"crouching", "crouching"},
	{"hitstun_crouch", "crouching"},
	{"blockstun_crouch", "crouching"},
	{"airborne", "airborne"},
	{"hitstun_air", "airborne"},
	{"knockdown", ""},
	{"thrown", ""},
}

// Compile validates a merged definition and builds its catalog.
func Compile(def *Definition) (*Character, error) {
	if len(def.Moves) == 0 {
		return nil, errors.Wrap(ErrNoMoves, def.Name)
	}

	b := hitbox.NewBuilder()
	for _, sa := range stanceAnimations {
		b.Animation(sa.name, 1, true)
		if sa.hurt == "" {
			continue
		}
		for _, spec := range def.Hurtboxes[sa.hurt] {
			kind, box, err := compileBox(spec, hitbox.Body)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: hurtbox %s", def.Name, sa.hurt)
			}
			b.Add(sa.name, 1, 1, kind, box)
		}
	}

	names := make([]string, 0, len(def.Moves))
	for name := range def.Moves {
		names = append(names, name)
	}
	sort.Strings(names)

	c := &Character{
		Name:   def.Name,
		Stats:  Stats(def.Stats),
		byName: make(map[string]*Move, len(names)),
	}
	for _, name := range names {
		m, err := compileMove(name, def.Moves[name], def.Hurtboxes, b)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: move %s", def.Name, name)
		}
		c.moves = append(c.moves, m)
		c.byName[name] = m
	}

	cat, err := b.Build()
	if err != nil {
		return nil, errors.Wrap(err, def.Name)
	}
	c.Catalog = cat

	sort.SliceStable(c.moves, func(i, j int) bool {
		x, y := c.moves[i], c.moves[j]
		if kindRank(x.Kind) != kindRank(y.Kind) {
			return kindRank(x.Kind) > kindRank(y.Kind)
		}
		if x.Priority != y.Priority {
			return x.Priority > y.Priority
		}
		return x.Strength > y.Strength
	})
	return c, nil
}

func kindRank(k MoveKind) int {
	switch k {
	case Special:
		return 2
	case Throw:
		return 1
	default:
		return 0
	}
}

func compileMove(name string, spec MoveSpec, stances map[string][]BoxSpec, b *hitbox.Builder) (*Move, error) {
	m := &Move{
		Name:            name,
		RequiresForward: spec.RequiresForward,
		Priority:        spec.Priority,
	}

	var ok bool
	if m.Kind, ok = parseKind(spec.Kind); !ok {
		return nil, errors.Wrapf(ErrUnknownName, "kind %q", spec.Kind)
	}
	if m.Stance, ok = parseStance(spec.Stance); !ok {
		return nil, errors.Wrapf(ErrUnknownName, "stance %q", spec.Stance)
	}
	if m.Strength, ok = parseStrength(spec.Strength); !ok {
		return nil, errors.Wrapf(ErrUnknownName, "strength %q", spec.Strength)
	}

	if len(spec.Buttons) == 0 {
		return nil, errors.Wrap(ErrUnknownButton, "no buttons")
	}
	for _, bn := range spec.Buttons {
		btn, ok := input.ParseButton(bn)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownButton, "%q", bn)
		}
		m.Buttons |= input.ButtonSet(btn)
	}
	for _, mn := range spec.Motions {
		mo, ok := input.ParseMotion(mn)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownMotion, "%q", mn)
		}
		m.Motions = append(m.Motions, mo)
	}

	w := FrameWindow{Startup: spec.Startup, Active: spec.Active, Recovery: spec.Recovery}
	if w.Startup < 0 || w.Active < 1 || w.Recovery < 0 {
		return nil, errors.Wrapf(ErrFrameWindow, "startup %d active %d recovery %d", w.Startup, w.Active, w.Recovery)
	}
	w.Total = w.Startup + w.Active + w.Recovery
	if spec.Total != 0 && spec.Total != w.Total {
		return nil, errors.Wrapf(ErrFrameWindow, "total %d, sum %d", spec.Total, w.Total)
	}
	m.Window = w

	m.invincible = make([]bool, w.Total+1)
	for _, f := range spec.Invincible {
		if f < 1 || f > w.Total {
			return nil, errors.Wrapf(ErrInvincibility, "frame %d of %d", f, w.Total)
		}
		m.invincible[f] = true
	}

	b.Animation(name, w.Total, false)

	hurt := spec.Hurtboxes
	if len(hurt) == 0 {
		hurt = stances[stanceHurtSet(m.Stance)]
	}
	for _, hs := range hurt {
		if err := addBox(b, name, hs, hitbox.Body, 1, w.Total, w.Total); err != nil {
			return nil, errors.Wrap(err, "hurtbox")
		}
	}

	defaultKind := hitbox.Attack
	if m.Kind == Throw {
		defaultKind = hitbox.Grab
	}
	first, last := w.FirstActive(), w.Startup+w.Active
	for _, hs := range spec.Hitboxes {
		if err := addBox(b, name, hs, defaultKind, first, last, w.Total); err != nil {
			return nil, errors.Wrap(err, "hitbox")
		}
	}

	if spec.Projectile != nil {
		_, box, err := compileBox(spec.Projectile.Box, hitbox.Projectile)
		if err != nil {
			return nil, errors.Wrap(err, "projectile")
		}
		m.Projectile = &Projectile{
			Speed:    spec.Projectile.Speed,
			Fall:     spec.Projectile.Fall,
			Lifetime: spec.Projectile.Lifetime,
			Box:      box,
		}
	}

	for _, ds := range spec.Displacement {
		from, to, err := frameRange(ds.Frames, 1, w.Total, w.Total)
		if err != nil {
			return nil, errors.Wrap(err, "displacement")
		}
		m.Displacement = append(m.Displacement, Displacement{From: from, To: to, DX: ds.DX, DY: ds.DY})
	}

	return m, nil
}

func addBox(b *hitbox.Builder, anim string, spec BoxSpec, def hitbox.Kind, from, to, total int) error {
	kind, box, err := compileBox(spec, def)
	if err != nil {
		return err
	}
	from, to, err = frameRange(spec.Frames, from, to, total)
	if err != nil {
		return err
	}
	b.Add(anim, from, to, kind, box)
	return nil
}

func compileBox(spec BoxSpec, def hitbox.Kind) (hitbox.Kind, hitbox.Hitbox, error) {
	kind := def
	if spec.Kind != "" {
		k, ok := hitbox.ParseKind(spec.Kind)
		if !ok {
			return 0, hitbox.Hitbox{}, errors.Wrapf(ErrUnknownName, "box kind %q", spec.Kind)
		}
		kind = k
	}
	guard, ok := hitbox.ParseGuardLevel(spec.Guard)
	if !ok {
		return 0, hitbox.Hitbox{}, errors.Wrapf(ErrUnknownGuard, "%q", spec.Guard)
	}
	if kind == hitbox.Grab {
		guard = hitbox.Throw
	}
	return kind, hitbox.Hitbox{
		OffsetX:   spec.X,
		OffsetY:   spec.Y,
		Width:     spec.W,
		Height:    spec.H,
		Damage:    spec.Damage,
		Stun:      spec.Stun,
		Hitstun:   spec.Hitstun,
		Guard:     guard,
		Priority:  spec.Priority,
		Pushback:  spec.Pushback,
		Knockdown: spec.Knockdown,
	}, nil
}

func frameRange(frames []int, defFrom, defTo, total int) (int, int, error) {
	from, to := defFrom, defTo
	switch len(frames) {
	case 0:
	case 1:
		from, to = frames[0], frames[0]
	case 2:
		from, to = frames[0], frames[1]
	default:
		return 0, 0, ErrBadFrames
	}
	if from < 1 || to > total || from > to {
		return 0, 0, errors.Wrapf(ErrBadFrames, "[%d, %d] of %d", from, to, total)
	}
	return from, to, nil
}

func stanceHurtSet(s Stance) string {
	switch s {
	case Crouching:
		return "crouching"
	case Air:
		return "airborne"
	default:
		return "standing"
	}
}

func parseKind(s string) (MoveKind, bool) {
	switch strings.ToLower(s) {
	case "", "normal":
		return Normal, true
	case "special":
		return Special, true
	case "throw":
		return Throw, true
	}
	return 0, false
}

func parseStance(s string) (Stance, bool) {
	switch strings.ToLower(s) {
	case "", "standing":
		return Standing, true
	case "crouching":
		return Crouching, true
	case "air":
		return Air, true
	}
	return 0, false
}

func parseStrength(s string) (Strength, bool) {
	switch strings.ToLower(s) {
	case "", "light":
		return Light, true
	case "medium":
		return Medium, true
	case "heavy":
		return Heavy, true
	}
	return 0, false
}
