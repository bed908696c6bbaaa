package combat

import (
	"third-strike/internal/config"
	"third-strike/internal/hitbox"
	"third-strike/internal/input"
)

// ParryType is the kind of parry window that is open.
type ParryType uint8

const (
	ParryNone ParryType = iota
	ParryGroundHigh
	ParryGroundLow
	ParryAir
)

func (t ParryType) String() string {
	switch t {
	case ParryGroundHigh:
		return "ground_high"
	case ParryGroundLow:
		return "ground_low"
	case ParryAir:
		return "air"
	default:
		return "none"
	}
}

// ParryState is one player's parry bookkeeping.
type ParryState struct {
	WindowActive             bool
	FramesRemaining          int
	Type                     ParryType
	Red                      bool // Opened during blockstun
	AdvantageFramesRemaining int
	Count                    int
}

// ParryResolver opens parry windows on fresh directional input and decides
// whether an incoming attack is parried.
type ParryResolver struct {
	window    int
	redWindow int
	advantage int
}

// NewParryResolver creates a resolver from the simulation config.
func NewParryResolver(cfg config.SimConfig) *ParryResolver {
	return &ParryResolver{
		window:    cfg.ParryWindowFrames,
		redWindow: cfg.RedParryWindowFrames,
		advantage: cfg.ParryAdvantageFrames,
	}
}

// OpenWindow opens a window when f newly enters forward or down-forward.
// Held directions never reopen a window, and an open window is never
// extended or restarted. Windows opened during blockstun are red parries
// with a shorter window. It reports whether a window was opened.
func (r *ParryResolver) OpenWindow(s *ParryState, f input.Frame, airborne, inBlockstun bool) bool {
	if s.WindowActive || !f.Changed {
		return false
	}

	var t ParryType
	switch {
	case airborne && f.Direction == input.Forward:
		t = ParryAir
	case airborne:
		return false
	case f.Direction == input.Forward:
		t = ParryGroundHigh
	case f.Direction == input.DownForward:
		t = ParryGroundLow
	default:
		return false
	}

	s.WindowActive = true
	s.Type = t
	s.Red = inBlockstun
	s.FramesRemaining = r.window
	if inBlockstun {
		s.FramesRemaining = r.redWindow
	}
	return true
}

// Advance counts the window and advantage down by one frame. Called once
// per tick after collision resolution.
func (r *ParryResolver) Advance(s *ParryState) {
	if s.WindowActive {
		s.FramesRemaining--
		if s.FramesRemaining <= 0 {
			r.Close(s)
		}
	}
	if s.AdvantageFramesRemaining > 0 {
		s.AdvantageFramesRemaining--
	}
}

// Close ends any open window.
func (r *ParryResolver) Close(s *ParryState) {
	s.WindowActive = false
	s.FramesRemaining = 0
	s.Type = ParryNone
	s.Red = false
}

// TryParry attempts to parry an attack with the given guard level. On
// success the window closes, the counter increments and the advantage
// frames are granted.
func (r *ParryResolver) TryParry(s *ParryState, level hitbox.GuardLevel) bool {
	if !s.WindowActive || s.FramesRemaining <= 0 || !Parryable(s.Type, level) {
		return false
	}
	r.Close(s)
	s.Count++
	s.AdvantageFramesRemaining = r.advantage
	return true
}

// Advantage returns the frames of advantage a successful parry grants.
func (r *ParryResolver) Advantage() int { return r.advantage }

// Parryable reports whether a window type covers a guard level.
func Parryable(t ParryType, level hitbox.GuardLevel) bool {
	if level == hitbox.Unblockable || level == hitbox.Throw {
		return false
	}
	switch t {
	case ParryGroundHigh:
		return level == hitbox.High || level == hitbox.Mid || level == hitbox.Overhead
	case ParryGroundLow:
		return level == hitbox.Low
	case ParryAir:
		return true
	default:
		return false
	}
}
