package combat

import (
	"sort"

	"github.com/sirupsen/logrus"

	"third-strike/internal/config"
	"third-strike/internal/logger"
)

// ComboState tracks consecutive hits taken by one defender.
type ComboState struct {
	HitCount      int
	TotalDamage   int
	LastHitFrame  uint64
	ScalingFactor float64
	Active        bool
}

// ComboEnd reports a finished combo.
type ComboEnd struct {
	DefenderID int
	Hits       int
	Damage     int
	Frame      uint64
}

// ComboScaler scales confirmed hit damage by the defender's combo length.
type ComboScaler struct {
	table   []int
	timeout uint64
	states  map[int]*ComboState
	pending []ComboEnd // ended by ScaleDamage, reported on the next Expire or Reset
	log     logrus.FieldLogger
}

// NewComboScaler creates a scaler from the simulation config.
func NewComboScaler(cfg config.SimConfig, log logrus.FieldLogger) *ComboScaler {
	table := append([]int(nil), cfg.ComboScaling...)
	if len(table) == 0 {
		table = []int{100}
	}
	return &ComboScaler{
		table:   table,
		timeout: uint64(cfg.ComboTimeoutFrames),
		states:  make(map[int]*ComboState),
		log:     logger.OrDiscard(log),
	}
}

// Scale returns the percent for a 1-indexed hit number, clamped to the
// last table entry.
func (c *ComboScaler) Scale(hit int) int {
	if hit < 1 {
		hit = 1
	}
	if hit > len(c.table) {
		hit = len(c.table)
	}
	return c.table[hit-1]
}

// ScaleDamage records a confirmed hit on defenderID at frame now and returns
// max(1, floor(base * scale / 100)). The hit continues the combo when the
// previous one landed within the timeout; otherwise a new combo starts and
// the old one is reported by the next Expire or Reset.
func (c *ComboScaler) ScaleDamage(defenderID, base int, now uint64) int {
	s := c.state(defenderID)
	if s.Active && now-s.LastHitFrame > c.timeout {
		c.pending = append(c.pending, c.finish(defenderID, s, now))
	}
	if !s.Active {
		*s = ComboState{Active: true}
	}

	s.HitCount++
	scale := c.Scale(s.HitCount)
	dmg := max(1, base*scale/100)

	s.TotalDamage += dmg
	s.LastHitFrame = now
	s.ScalingFactor = float64(scale) / 100
	return dmg
}

// Expire ends every combo whose last hit is older than the timeout.
func (c *ComboScaler) Expire(now uint64) []ComboEnd {
	ended := c.takePending()
	for _, id := range c.ids() {
		s := c.states[id]
		if s.Active && now-s.LastHitFrame > c.timeout {
			ended = append(ended, c.finish(id, s, now))
		}
	}
	return ended
}

// Reset ends every active combo. Used on round and position resets.
func (c *ComboScaler) Reset(now uint64) []ComboEnd {
	ended := c.takePending()
	for _, id := range c.ids() {
		if s := c.states[id]; s.Active {
			ended = append(ended, c.finish(id, s, now))
		}
	}
	return ended
}

// State returns a copy of a defender's combo state.
func (c *ComboScaler) State(defenderID int) ComboState {
	if s, ok := c.states[defenderID]; ok {
		return *s
	}
	return ComboState{}
}

func (c *ComboScaler) takePending() []ComboEnd {
	if len(c.pending) == 0 {
		return nil
	}
	ended := c.pending
	c.pending = nil
	return ended
}

// ids returns defender ids in ascending order so results are deterministic.
func (c *ComboScaler) ids() []int {
	ids := make([]int, 0, len(c.states))
	for id := range c.states {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (c *ComboScaler) state(id int) *ComboState {
	s, ok := c.states[id]
	if !ok {
		s = &ComboState{}
		c.states[id] = s
	}
	return s
}

func (c *ComboScaler) finish(id int, s *ComboState, now uint64) ComboEnd {
	end := ComboEnd{DefenderID: id, Hits: s.HitCount, Damage: s.TotalDamage, Frame: now}
	if s.HitCount > 1 {
		c.log.WithFields(logrus.Fields{
			"defender": id,
			"hits":     s.HitCount,
			"damage":   s.TotalDamage,
		}).Info("combo ended")
	}
	*s = ComboState{}
	return end
}
