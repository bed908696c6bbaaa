package chardef

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Merge applies an override file onto a base definition. Stats and moves
// are merged field by field: keys present in the override replace the base
// value, everything else is inherited. Lists replace whole. Moves named in
// remove are dropped. The base is not modified.
func Merge(base *Definition, override *fileSpec) (*Definition, error) {
	out := &Definition{
		Name:      override.Name,
		Stats:     StatsSpec{},
		Hurtboxes: make(map[string][]BoxSpec),
		Moves:     make(map[string]MoveSpec),
	}
	if base != nil {
		out.Stats = base.Stats
		for k, v := range base.Hurtboxes {
			out.Hurtboxes[k] = v
		}
		for k, v := range base.Moves {
			out.Moves[k] = v.clone()
		}
	}

	if !isEmptyNode(&override.Stats) {
		if err := override.Stats.Decode(&out.Stats); err != nil {
			return nil, errors.Wrapf(err, "%s: stats", override.Name)
		}
	}
	for stance, boxes := range override.Hurtboxes {
		out.Hurtboxes[stance] = boxes
	}
	for name, node := range override.Moves {
		move := out.Moves[name].clone()
		if err := node.Decode(&move); err != nil {
			return nil, errors.Wrapf(err, "%s: move %s", override.Name, name)
		}
		out.Moves[name] = move
	}
	for _, name := range override.Remove {
		delete(out.Moves, name)
	}
	return out, nil
}

func isEmptyNode(n *yaml.Node) bool {
	return n == nil || n.Kind == 0
}
