// Package hitbox defines typed collision boxes and the per-animation,
// per-frame catalog that the collision engine reads each tick.
package hitbox

import "strings"

// Kind is the role a box plays in collision.
type Kind uint8

const (
	Attack     Kind = iota // Deals damage
	Body                   // Main hurtbox
	Hand                   // Extended limb hurtbox
	Grab                   // Throw range
	Projectile             // Attack box owned by a projectile
	kindCount
)

func (k Kind) String() string {
	switch k {
	case Attack:
		return "attack"
	case Body:
		return "body"
	case Hand:
		return "hand"
	case Grab:
		return "grab"
	case Projectile:
		return "projectile"
	default:
		return "unknown"
	}
}

// ParseKind looks a box kind up by name.
func ParseKind(s string) (Kind, bool) {
	for k := Attack; k < kindCount; k++ {
		if k.String() == strings.ToLower(strings.TrimSpace(s)) {
			return k, true
		}
	}
	return 0, false
}

// GuardLevel is how an attack must be guarded.
type GuardLevel uint8

const (
	Mid GuardLevel = iota
	High
	Low
	Overhead
	Unblockable
	Throw
)

func (g GuardLevel) String() string {
	switch g {
	case High:
		return "high"
	case Mid:
		return "mid"
	case Low:
		return "low"
	case Overhead:
		return "overhead"
	case Unblockable:
		return "unblockable"
	case Throw:
		return "throw"
	default:
		return "unknown"
	}
}

// ParseGuardLevel looks a guard level up by name. Empty means mid.
func ParseGuardLevel(s string) (GuardLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mid":
		return Mid, true
	case "high":
		return High, true
	case "low":
		return Low, true
	case "overhead":
		return Overhead, true
	case "unblockable":
		return Unblockable, true
	case "throw":
		return Throw, true
	}
	return 0, false
}

// Hitbox is a box relative to a character's feet. OffsetX points forward,
// negative OffsetY points up. Offsets locate the box center.
type Hitbox struct {
	OffsetX, OffsetY float64
	Width, Height    float64

	// Attack properties, zero on hurtboxes. Blockstun is derived from
	// Hitstun when the hit is guarded.
	Damage    int
	Stun      int
	Hitstun   int
	Guard     GuardLevel
	Priority  int
	Pushback  float64
	Knockdown bool
}

// AABB is a world-space axis aligned box.
type AABB struct {
	Left, Top, Right, Bottom float64
}

// Resolve places h in world space. Facing -1 mirrors the horizontal offset.
func Resolve(h Hitbox, x, y float64, facing int) AABB {
	dir := 1.0
	if facing < 0 {
		dir = -1
	}
	cx := x + h.OffsetX*dir
	cy := y + h.OffsetY
	return AABB{
		Left:   cx - h.Width/2,
		Top:    cy - h.Height/2,
		Right:  cx + h.Width/2,
		Bottom: cy + h.Height/2,
	}
}

// Overlaps reports whether a and b intersect. Touching edges do not count.
func (a AABB) Overlaps(b AABB) bool {
	return a.Left < b.Right && b.Left < a.Right && a.Top < b.Bottom && b.Top < a.Bottom
}

// Center returns the midpoint of the box.
func (a AABB) Center() (float64, float64) {
	return (a.Left + a.Right) / 2, (a.Top + a.Bottom) / 2
}

// Intersection returns the overlapping region of a and b.
func (a AABB) Intersection(b AABB) AABB {
	return AABB{
		Left:   max(a.Left, b.Left),
		Top:    max(a.Top, b.Top),
		Right:  min(a.Right, b.Right),
		Bottom: min(a.Bottom, b.Bottom),
	}
}
