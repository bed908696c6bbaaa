package game

import (
	"third-strike/internal/chardef"
	"third-strike/internal/combat"
	"third-strike/internal/config"
	"third-strike/internal/hitbox"
)

// offStageMargin lets a projectile leave the visible stage before it is removed.
const offStageMargin = 64.0

// Projectile is a moving attack spawned by a special move. It carries its
// own hitbox and hits at most once.
type Projectile struct {
	ID     int
	Owner  int
	Move   string
	X, Y   float64
	VX, VY float64
	Facing int
	Box    hitbox.Hitbox

	Lifetime int // Frames before expiry, 0 for unlimited
	Age      int
}

// NewProjectile spawns a projectile at the owner's feet. The box offsets in
// the move data place it in front of the owner.
func NewProjectile(id, owner int, move string, spec *chardef.Projectile, x, y float64, facing int) *Projectile {
	return &Projectile{
		ID:       id,
		Owner:    owner,
		Move:     move,
		X:        x,
		Y:        y,
		VX:       spec.Speed * float64(facing),
		VY:       spec.Fall,
		Facing:   facing,
		Box:      spec.Box,
		Lifetime: spec.Lifetime,
	}
}

// Advance moves the projectile one frame.
func (p *Projectile) Advance() {
	p.X += p.VX
	p.Y += p.VY
	p.Age++
}

// Expired reports whether the projectile ran out of time or left the stage.
func (p *Projectile) Expired(cfg config.SimConfig) bool {
	if p.Lifetime > 0 && p.Age >= p.Lifetime {
		return true
	}
	box := p.Body().AABB()
	return box.Right < cfg.StageLeft-offStageMargin ||
		box.Left > cfg.StageRight+offStageMargin ||
		box.Top > cfg.StageFloor
}

// Body returns the collision view.
func (p *Projectile) Body() combat.ProjectileBody {
	return combat.ProjectileBody{
		ID:      p.ID,
		OwnerID: p.Owner,
		X:       p.X,
		Y:       p.Y,
		Facing:  p.Facing,
		Box:     p.Box,
	}
}

// Snapshot returns an immutable copy for readers.
func (p *Projectile) Snapshot() ProjectileSnapshot {
	return ProjectileSnapshot{ID: p.ID, Owner: p.Owner, X: p.X, Y: p.Y, Facing: p.Facing}
}
