package input

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"third-strike/internal/config"
	"third-strike/internal/logger"
)

var (
	ErrUnknownMotion = errors.New("motion outside the recognized set")
	ErrEmptyPattern  = errors.New("pattern has no directions")
)

// chargeGrace is how long a released charge stays readable so the button
// can arrive a few frames after the release.
const chargeGrace = 6

// Frame is one validated input sample.
type Frame struct {
	Number    uint64
	Raw       Direction // Corrected, screen space
	Direction Direction // Relative to facing
	Pressed   ButtonSet // Newly down this frame
	Held      ButtonSet
	Released  ButtonSet
	Corrected bool // Raw lever value was illegal
	Changed   bool // Direction differs from the previous frame
	Motions   MotionSet
}

// Recognizer validates raw input for one player and tracks history,
// charge and motions. Not safe for concurrent use.
type Recognizer struct {
	player   int
	patterns []MotionPattern
	ring     *Ring
	scratch  []Frame
	dirs     []Direction
	log      logrus.FieldLogger

	chargeThreshold int
	facing          int
	frame           uint64
	held            ButtonSet
	lastDir         Direction

	chargeBack        int
	chargeDown        int
	chargeBackRelease uint64 // frame number of release, 0 when none
	chargeDownRelease uint64

	corrections uint64
}

// NewRecognizer builds a recognizer for the given player index.
func NewRecognizer(cfg config.SimConfig, player int, log logrus.FieldLogger) *Recognizer {
	capacity := cfg.InputBufferSize
	if capacity < 15 {
		capacity = 15
	}
	if cfg.MaxMotionFrames > capacity {
		capacity = cfg.MaxMotionFrames
	}
	window := cfg.MotionWindowFrames
	if window <= 0 || window > cfg.MaxMotionFrames {
		window = cfg.MaxMotionFrames
	}
	return &Recognizer{
		player:          player,
		patterns:        DefaultPatterns(window, cfg.DoubleTapFrames),
		ring:            NewRing(capacity),
		scratch:         make([]Frame, 0, capacity),
		dirs:            make([]Direction, 0, capacity),
		log:             logger.OrDiscard(log).WithField("player", player),
		chargeThreshold: cfg.ChargeFrames,
		facing:          1,
		lastDir:         Neutral,
	}
}

// SetFacing sets the facing used to make directions relative.
func (r *Recognizer) SetFacing(facing int) {
	if facing < 0 {
		r.facing = -1
	} else {
		r.facing = 1
	}
}

// Register adds an alternate pattern for one of the recognized motions.
// Its window is capped by the ring.
func (r *Recognizer) Register(p MotionPattern) error {
	if p.Motion >= motionCount {
		return errors.Wrapf(ErrUnknownMotion, "motion %d", p.Motion)
	}
	if len(p.Sequence) == 0 {
		return errors.Wrapf(ErrEmptyPattern, "motion %s", p.Motion)
	}
	if p.MaxFrames <= 0 || p.MaxFrames > r.ring.Cap() {
		p.MaxFrames = r.ring.Cap()
	}
	r.patterns = append(r.patterns, p)
	return nil
}

// Process validates one frame of raw input and records it.
// Invalid lever data never errors; it is corrected to neutral and counted.
func (r *Recognizer) Process(rawDirection, rawButtons int) Frame {
	r.frame++

	dir := Correct(rawDirection)
	corrected := rawDirection != int(dir)
	if corrected {
		r.corrections++
		r.log.WithFields(logrus.Fields{
			"frame": r.frame,
			"raw":   rawDirection,
		}).Debug("lever data corrected to neutral")
	}

	buttons := FromRaw(rawButtons)
	rel := dir.Relative(r.facing)

	f := Frame{
		Number:    r.frame,
		Raw:       dir,
		Direction: rel,
		Pressed:   buttons &^ r.held,
		Released:  r.held &^ buttons,
		Held:      buttons,
		Corrected: corrected,
		Changed:   rel != r.lastDir,
	}
	r.held = buttons
	r.lastDir = rel

	r.updateCharge(rel)
	r.ring.Push(f)
	f.Motions = r.detect()

	return f
}

func (r *Recognizer) updateCharge(d Direction) {
	if r.chargeBack >= r.chargeThreshold && d.IsForward() {
		r.chargeBackRelease = r.frame
	}
	if r.chargeDown >= r.chargeThreshold && d.IsUp() {
		r.chargeDownRelease = r.frame
	}

	if d.IsBack() {
		r.chargeBack++
	} else {
		r.chargeBack = 0
	}
	if d.IsDown() {
		r.chargeDown++
	} else {
		r.chargeDown = 0
	}
}

func (r *Recognizer) detect() MotionSet {
	var set MotionSet

	for _, p := range r.patterns {
		r.scratch = r.ring.Recent(r.scratch[:0], p.MaxFrames)
		r.dirs = r.dirs[:0]
		for _, f := range r.scratch {
			r.dirs = append(r.dirs, f.Direction)
		}
		if p.matches(collapse(r.dirs)) {
			set = set.With(p.Motion)
		}
	}

	if r.chargeBackRelease != 0 && r.frame-r.chargeBackRelease < chargeGrace {
		set = set.With(ChargeBack)
	}
	if r.chargeDownRelease != 0 && r.frame-r.chargeDownRelease < chargeGrace {
		set = set.With(ChargeDown)
	}
	return set
}

// Charged reports whether the back or down group has been held long enough.
func (r *Recognizer) Charged(back bool) bool {
	if back {
		return r.chargeBack >= r.chargeThreshold
	}
	return r.chargeDown >= r.chargeThreshold
}

// ChargeFrames returns the current back and down charge counters.
func (r *Recognizer) ChargeFrames() (back, down int) {
	return r.chargeBack, r.chargeDown
}

// Corrections returns how many illegal lever values were corrected.
func (r *Recognizer) Corrections() uint64 { return r.corrections }

// History returns up to n most recent frames, oldest first.
func (r *Recognizer) History(n int) []Frame {
	return r.ring.Recent(nil, n)
}

// Latest returns the most recent processed frame.
func (r *Recognizer) Latest() (Frame, bool) { return r.ring.Latest() }

// Clear drops history, held buttons and charge. Used on round reset.
func (r *Recognizer) Clear() {
	r.ring.Reset()
	r.held = 0
	r.lastDir = Neutral
	r.chargeBack, r.chargeDown = 0, 0
	r.chargeBackRelease, r.chargeDownRelease = 0, 0
}
