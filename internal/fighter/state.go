// Package fighter holds the per-character runtime and the state machine
// that advances it one frame at a time.
package fighter

import "third-strike/internal/chardef"

// StateKind identifies a state without its payload.
type StateKind uint8

const (
	KindStanding StateKind = iota
	KindWalking
	KindCrouching
	KindJumpStartup
	KindAirborne
	KindLanding
	KindDash
	KindAttacking
	KindHitstun
	KindBlockstun
	KindParryRecovery
	KindThrowing
	KindThrown
	KindKnockdown
	KindDizzy
)

// Names double as keys into config.SimConfig.StateTimeouts.
var kindNames = [...]string{
	KindStanding:      "standing",
	KindWalking:       "walking",
	KindCrouching:     "crouching",
	KindJumpStartup:   "jump_startup",
	KindAirborne:      "airborne",
	KindLanding:       "landing",
	KindDash:          "dash",
	KindAttacking:     "attacking",
	KindHitstun:       "hitstun",
	KindBlockstun:     "blockstun",
	KindParryRecovery: "parry_recovery",
	KindThrowing:      "throwing",
	KindThrown:        "thrown",
	KindKnockdown:     "knockdown",
	KindDizzy:         "dizzy",
}

func (k StateKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// HitstunVariant selects the hit reaction animation.
type HitstunVariant uint8

const (
	HitstunStanding HitstunVariant = iota
	HitstunCrouching
	HitstunAirborne
)

func (v HitstunVariant) String() string {
	switch v {
	case HitstunCrouching:
		return "crouching"
	case HitstunAirborne:
		return "airborne"
	default:
		return "standing"
	}
}

// State is the closed set of character states. Only types in this package
// implement it.
type State interface {
	Kind() StateKind
	isState()
}

type (
	Standing  struct{}
	Crouching struct{}
	Landing   struct{}

	Walking struct{ Forward bool }

	// JumpStartup and Airborne carry the jump direction: -1 back, 0 up, 1 forward.
	JumpStartup struct{ Dir int }
	Airborne    struct{ Dir int }

	Dash struct{ Forward bool }

	// Attacking runs a move. Instance is unique per activation and keys
	// hit registration.
	Attacking struct {
		Move     *chardef.Move
		Instance uint32
	}

	Hitstun   struct{ Variant HitstunVariant }
	Blockstun struct{ Low bool }

	ParryRecovery struct{}
	Throwing      struct{}
	Thrown        struct{}
	Knockdown     struct{}
	Dizzy         struct{}
)

func (Standing) Kind() StateKind      { return KindStanding }
func (Walking) Kind() StateKind       { return KindWalking }
func (Crouching) Kind() StateKind     { return KindCrouching }
func (JumpStartup) Kind() StateKind   { return KindJumpStartup }
func (Airborne) Kind() StateKind      { return KindAirborne }
func (Landing) Kind() StateKind       { return KindLanding }
func (Dash) Kind() StateKind          { return KindDash }
func (Attacking) Kind() StateKind     { return KindAttacking }
func (Hitstun) Kind() StateKind       { return KindHitstun }
func (Blockstun) Kind() StateKind     { return KindBlockstun }
func (ParryRecovery) Kind() StateKind { return KindParryRecovery }
func (Throwing) Kind() StateKind      { return KindThrowing }
func (Thrown) Kind() StateKind        { return KindThrown }
func (Knockdown) Kind() StateKind     { return KindKnockdown }
func (Dizzy) Kind() StateKind         { return KindDizzy }

func (Standing) isState()      {}
func (Walking) isState()       {}
func (Crouching) isState()     {}
func (JumpStartup) isState()   {}
func (Airborne) isState()      {}
func (Landing) isState()       {}
func (Dash) isState()          {}
func (Attacking) isState()     {}
func (Hitstun) isState()       {}
func (Blockstun) isState()     {}
func (ParryRecovery) isState() {}
func (Throwing) isState()      {}
func (Thrown) isState()        {}
func (Knockdown) isState()     {}
func (Dizzy) isState()         {}

// Animation returns the catalog animation a state plays.
func Animation(s State) string {
	switch s := s.(type) {
	case Standing:
		return "standing"
	case Walking:
		return "walking"
	case Crouching:
		return "crouching"
	case JumpStartup:
		return "jump_startup"
	case Airborne:
		return "airborne"
	case Landing:
		return "landing"
	case Dash:
		return "dash"
	case Attacking:
		return s.Move.Animation()
	case Hitstun:
		switch s.Variant {
		case HitstunCrouching:
			return "hitstun_crouch"
		case HitstunAirborne:
			return "hitstun_air"
		}
		return "hitstun"
	case Blockstun:
		if s.Low {
			return "blockstun_crouch"
		}
		return "blockstun"
	case ParryRecovery:
		return "parry"
	case Throwing:
		return "throwing"
	case Thrown:
		return "thrown"
	case Knockdown:
		return "knockdown"
	case Dizzy:
		return "dizzy"
	default:
		panic("unreachable")
	}
}

// Label is a human readable state name for snapshots and logs.
func Label(s State) string {
	switch s := s.(type) {
	case Attacking:
		return "attacking:" + s.Move.Name
	case Hitstun:
		return "hitstun:" + s.Variant.String()
	default:
		return s.Kind().String()
	}
}
