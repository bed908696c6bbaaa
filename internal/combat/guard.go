package combat

import (
	"third-strike/internal/config"
	"third-strike/internal/hitbox"
)

// Stance is the defender's posture when a hit arrives.
type Stance uint8

const (
	StanceStanding Stance = iota
	StanceCrouching
	StanceAirborne
)

func (s Stance) String() string {
	switch s {
	case StanceCrouching:
		return "crouching"
	case StanceAirborne:
		return "airborne"
	default:
		return "standing"
	}
}

// GuardResult is the outcome of a guard check.
type GuardResult uint8

const (
	GuardHit GuardResult = iota
	GuardBlock
)

func (r GuardResult) String() string {
	if r == GuardBlock {
		return "block"
	}
	return "hit"
}

// GuardResolver decides block versus hit and derives block and hit costs.
type GuardResolver struct {
	cfg config.SimConfig
}

// NewGuardResolver creates a resolver from the simulation config.
func NewGuardResolver(cfg config.SimConfig) *GuardResolver {
	return &GuardResolver{cfg: cfg}
}

// Resolve applies the guard table. Standing guards high, mid and overhead;
// crouching guards low and mid; airborne never guards. Unblockable and
// throw levels always hit. Guarding requires holding back.
func (g *GuardResolver) Resolve(stance Stance, level hitbox.GuardLevel, holdingBack bool) GuardResult {
	if !holdingBack {
		return GuardHit
	}
	switch level {
	case hitbox.Unblockable, hitbox.Throw:
		return GuardHit
	}
	switch stance {
	case StanceStanding:
		if level == hitbox.High || level == hitbox.Mid || level == hitbox.Overhead {
			return GuardBlock
		}
	case StanceCrouching:
		if level == hitbox.Low || level == hitbox.Mid {
			return GuardBlock
		}
	}
	return GuardHit
}

// ChipDamage is max(1, floor(damage * ChipPercent / 100)).
func (g *GuardResolver) ChipDamage(damage int) int {
	return max(1, damage*g.cfg.ChipPercent/100)
}

// Blockstun is floor(hitstun * BlockstunPercent / 100).
func (g *GuardResolver) Blockstun(hitstun int) int {
	return hitstun * g.cfg.BlockstunPercent / 100
}

// HitFreeze returns the freeze applied to both sides on a clean hit.
func (g *GuardResolver) HitFreeze(damage int) int {
	return int(g.cfg.TierFor(g.cfg.HitFreeze, damage))
}

// BlockFreeze returns the freeze applied to both sides on a block.
func (g *GuardResolver) BlockFreeze(damage int) int {
	return int(g.cfg.TierFor(g.cfg.BlockFreeze, damage))
}

// Pushback returns the push distance for a hit or block. Hits use the
// box's own pushback when set; blocks always use the damage tier.
func (g *GuardResolver) Pushback(box hitbox.Hitbox, blocked bool) float64 {
	if !blocked && box.Pushback > 0 {
		return box.Pushback
	}
	return g.cfg.TierFor(g.cfg.Pushback, box.Damage)
}

// HitFlash returns the hit flash duration.
func (g *GuardResolver) HitFlash() int { return g.cfg.HitFlashFrames }
