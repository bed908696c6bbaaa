package input

import "strings"

// Motion identifies a recognizable motion input.
type Motion uint8

const (
	QCF Motion = iota
	QCFSimple
	QCB
	QCBSimple
	DP
	DPAlt
	DPSimple
	HCF
	HCB
	DoubleTapForward
	DoubleTapBack
	ChargeBack
	ChargeDown
	motionCount
)

var motionNames = [motionCount]string{
	QCF:              "QCF",
	QCFSimple:        "QCF_SIMPLE",
	QCB:              "QCB",
	QCBSimple:        "QCB_SIMPLE",
	DP:               "DP",
	DPAlt:            "DP_ALT",
	DPSimple:         "DP_SIMPLE",
	HCF:              "HCF",
	HCB:              "HCB",
	DoubleTapForward: "DOUBLE_TAP_FORWARD",
	DoubleTapBack:    "DOUBLE_TAP_BACK",
	ChargeBack:       "CHARGE_BACK",
	ChargeDown:       "CHARGE_DOWN",
}

func (m Motion) String() string {
	if m < motionCount {
		return motionNames[m]
	}
	return "UNKNOWN"
}

// ParseMotion looks a motion up by name, case-insensitively.
func ParseMotion(name string) (Motion, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range motionNames {
		if n == name {
			return Motion(i), true
		}
	}
	return 0, false
}

// MotionSet is the set of motions detected on a frame.
type MotionSet uint16

func (s MotionSet) Has(m Motion) bool       { return s&(1<<m) != 0 }
func (s MotionSet) With(m Motion) MotionSet { return s | 1<<m }
func (s MotionSet) Empty() bool             { return s == 0 }

// Names lists the detected motions in registration order.
func (s MotionSet) Names() []string {
	var out []string
	for m := Motion(0); m < motionCount; m++ {
		if s.Has(m) {
			out = append(out, m.String())
		}
	}
	return out
}

// MotionPattern is an ordered list of facing-relative directions.
// Strict patterns must appear contiguously once repeated directions are
// collapsed; lenient patterns may have other directions in between.
type MotionPattern struct {
	Motion    Motion
	Sequence  []Direction
	MaxFrames int
	Lenient   bool
}

// DefaultPatterns returns the built-in pattern set. window is the default
// frame window for patterns that do not set their own.
func DefaultPatterns(window, doubleTap int) []MotionPattern {
	return []MotionPattern{
		{Motion: QCF, Sequence: []Direction{Down, DownForward, Forward}, MaxFrames: window},
		{Motion: QCFSimple, Sequence: []Direction{Down, Forward}, MaxFrames: window, Lenient: true},
		{Motion: QCB, Sequence: []Direction{Down, DownBack, Back}, MaxFrames: window},
		{Motion: QCBSimple, Sequence: []Direction{Down, Back}, MaxFrames: window, Lenient: true},
		{Motion: DP, Sequence: []Direction{Forward, Down, DownForward}, MaxFrames: window},
		{Motion: DPAlt, Sequence: []Direction{Forward, DownForward, Down, DownForward}, MaxFrames: window},
		{Motion: DPSimple, Sequence: []Direction{Forward, Down, DownForward}, MaxFrames: window, Lenient: true},
		{Motion: HCF, Sequence: []Direction{Back, DownBack, Down, DownForward, Forward}, MaxFrames: window},
		{Motion: HCB, Sequence: []Direction{Forward, DownForward, Down, DownBack, Back}, MaxFrames: window},
		{Motion: DoubleTapForward, Sequence: []Direction{Forward, Neutral, Forward}, MaxFrames: doubleTap},
		{Motion: DoubleTapBack, Sequence: []Direction{Back, Neutral, Back}, MaxFrames: doubleTap},
	}
}

// collapse removes consecutive duplicates in place.
func collapse(dirs []Direction) []Direction {
	if len(dirs) == 0 {
		return dirs
	}
	out := dirs[:1]
	for _, d := range dirs[1:] {
		if d != out[len(out)-1] {
			out = append(out, d)
		}
	}
	return out
}

// matches reports whether the collapsed direction history contains p.
func (p MotionPattern) matches(collapsed []Direction) bool {
	if len(p.Sequence) == 0 || len(collapsed) < len(p.Sequence) {
		return false
	}
	if p.Lenient {
		i := 0
		for _, d := range collapsed {
			if d == p.Sequence[i] {
				i++
				if i == len(p.Sequence) {
					return true
				}
			}
		}
		return false
	}
	for start := 0; start+len(p.Sequence) <= len(collapsed); start++ {
		ok := true
		for i, want := range p.Sequence {
			if collapsed[start+i] != want {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}
