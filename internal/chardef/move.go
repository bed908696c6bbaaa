package chardef

import (
	"third-strike/internal/hitbox"
	"third-strike/internal/input"
)

// MoveKind separates normals, specials and throws for input priority.
type MoveKind uint8

const (
	Normal MoveKind = iota
	Special
	Throw
)

func (k MoveKind) String() string {
	switch k {
	case Special:
		return "special"
	case Throw:
		return "throw"
	default:
		return "normal"
	}
}

// Stance is the posture a move starts from.
type Stance uint8

const (
	Standing Stance = iota
	Crouching
	Air
)

func (s Stance) String() string {
	switch s {
	case Crouching:
		return "crouching"
	case Air:
		return "air"
	default:
		return "standing"
	}
}

// Strength is the button strength tier of a move.
type Strength uint8

const (
	Light Strength = iota
	Medium
	Heavy
)

func (s Strength) String() string {
	switch s {
	case Medium:
		return "medium"
	case Heavy:
		return "heavy"
	default:
		return "light"
	}
}

// FrameWindow is the startup / active / recovery split of a move.
// Frames are 1-indexed; active frames are Startup+1 .. Startup+Active.
type FrameWindow struct {
	Startup  int
	Active   int
	Recovery int
	Total    int
}

// Phase is where a frame falls inside a window.
type Phase uint8

const (
	PhaseStartup Phase = iota
	PhaseActive
	PhaseRecovery
	PhaseDone
)

// PhaseAt classifies a 1-indexed move frame.
func (w FrameWindow) PhaseAt(frame int) Phase {
	switch {
	case frame <= w.Startup:
		return PhaseStartup
	case frame <= w.Startup+w.Active:
		return PhaseActive
	case frame <= w.Total:
		return PhaseRecovery
	default:
		return PhaseDone
	}
}

// FirstActive returns the first active frame.
func (w FrameWindow) FirstActive() int { return w.Startup + 1 }

// Projectile is a compiled projectile spawn.
type Projectile struct {
	Speed    float64
	Fall     float64
	Lifetime int
	Box      hitbox.Hitbox
}

// Displacement moves the character per frame over [From, To].
type Displacement struct {
	From, To int
	DX, DY   float64
}

// Move is a compiled, immutable move.
type Move struct {
	Name            string
	Kind            MoveKind
	Stance          Stance
	Buttons         input.ButtonSet
	Motions         []input.Motion
	RequiresForward bool
	Strength        Strength
	Priority        int
	Window          FrameWindow
	Projectile      *Projectile
	Displacement    []Displacement

	invincible []bool // indexed by frame, len Total+1
}

// Animation is the catalog animation name for the move.
func (m *Move) Animation() string { return m.Name }

// Invincible reports whether the 1-indexed move frame is strike invincible.
func (m *Move) Invincible(frame int) bool {
	return frame >= 1 && frame < len(m.invincible) && m.invincible[frame]
}

// InvincibleFrames lists the invincible frames in order.
func (m *Move) InvincibleFrames() []int {
	var out []int
	for f, inv := range m.invincible {
		if inv {
			out = append(out, f)
		}
	}
	return out
}

// Cancelable reports whether motion inputs may cancel the move.
// Only light normals qualify.
func (m *Move) Cancelable() bool {
	return m.Kind == Normal && m.Strength == Light
}

// MatchesMotion reports whether any of the move's motions is in set.
func (m *Move) MatchesMotion(set input.MotionSet) bool {
	if len(m.Motions) == 0 {
		return true
	}
	for _, mo := range m.Motions {
		if set.Has(mo) {
			return true
		}
	}
	return false
}

// DisplacementAt returns the per-frame movement for a move frame.
func (m *Move) DisplacementAt(frame int) (dx, dy float64) {
	for _, d := range m.Displacement {
		if frame >= d.From && frame <= d.To {
			dx += d.DX
			dy += d.DY
		}
	}
	return dx, dy
}
