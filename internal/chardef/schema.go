// Package chardef loads character definitions from YAML, merges per-character
// overrides onto a shared archetype, validates frame data and compiles the
// result into immutable characters with hitbox catalogs.
package chardef

import (
	"gopkg.in/yaml.v3"
)

// BoxSpec is one box as written in a definition file.
type BoxSpec struct {
	Kind      string  `yaml:"kind"`
	Frames    []int   `yaml:"frames"` // [from, to], inclusive; empty uses the default range
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	W         float64 `yaml:"w"`
	H         float64 `yaml:"h"`
	Damage    int     `yaml:"damage"`
	Stun      int     `yaml:"stun"`
	Hitstun   int     `yaml:"hitstun"`
	Guard     string  `yaml:"guard"`
	Priority  int     `yaml:"priority"`
	Pushback  float64 `yaml:"pushback"`
	Knockdown bool    `yaml:"knockdown"`
}

// ProjectileSpec describes a projectile spawned on a move's first active frame.
type ProjectileSpec struct {
	Speed    float64 `yaml:"speed"`
	Fall     float64 `yaml:"fall"`
	Lifetime int     `yaml:"lifetime"`
	Box      BoxSpec `yaml:"box"`
}

// DisplacementSpec moves the character by (dx, dy) per frame over a range.
type DisplacementSpec struct {
	Frames []int   `yaml:"frames"`
	DX     float64 `yaml:"dx"`
	DY     float64 `yaml:"dy"`
}

// MoveSpec is one move as written in a definition file.
type MoveSpec struct {
	Kind            string             `yaml:"kind"` // normal, special, throw
	Stance          string             `yaml:"stance"`
	Buttons         []string           `yaml:"buttons"`
	Motions         []string           `yaml:"motions"`
	RequiresForward bool               `yaml:"requires_forward"`
	Strength        string             `yaml:"strength"`
	Priority        int                `yaml:"priority"`
	Startup         int                `yaml:"startup"`
	Active          int                `yaml:"active"`
	Recovery        int                `yaml:"recovery"`
	Total           int                `yaml:"total"` // 0 derives it
	Invincible      []int              `yaml:"invincible"`
	Hitboxes        []BoxSpec          `yaml:"hitboxes"`
	Hurtboxes       []BoxSpec          `yaml:"hurtboxes"`
	Projectile      *ProjectileSpec    `yaml:"projectile"`
	Displacement    []DisplacementSpec `yaml:"displacement"`
}

// clone deep-copies everything an override decode could write through.
func (m MoveSpec) clone() MoveSpec {
	out := m
	if m.Projectile != nil {
		p := *m.Projectile
		out.Projectile = &p
	}
	return out
}

// StatsSpec holds per-character tuning.
type StatsSpec struct {
	Health            int     `yaml:"health"`
	Stun              int     `yaml:"stun"`
	WalkForward       float64 `yaml:"walk_forward"`
	WalkBack          float64 `yaml:"walk_back"`
	DashForwardFrames int     `yaml:"dash_forward_frames"`
	DashBackFrames    int     `yaml:"dash_back_frames"`
	JumpStartup       int     `yaml:"jump_startup"`
	Landing           int     `yaml:"landing"`
}

// fileSpec is a definition file before merging. Stats and moves stay as
// raw nodes so an override can set a single field without restating the rest.
type fileSpec struct {
	Name      string               `yaml:"name"`
	Base      string               `yaml:"base"`
	Abstract  bool                 `yaml:"abstract"`
	Stats     yaml.Node            `yaml:"stats"`
	Hurtboxes map[string][]BoxSpec `yaml:"hurtboxes"`
	Moves     map[string]yaml.Node `yaml:"moves"`
	Remove    []string             `yaml:"remove"`
}

// Definition is a fully merged character definition.
type Definition struct {
	Name      string
	Stats     StatsSpec
	Hurtboxes map[string][]BoxSpec
	Moves     map[string]MoveSpec
}

func parseFile(data []byte) (*fileSpec, error) {
	var f fileSpec
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
