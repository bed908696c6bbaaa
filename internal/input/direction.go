// Package input turns raw per-frame controller state into validated,
// facing-relative input frames and recognizes motion inputs.
package input

// Direction is a numpad direction: 1-9 with 5 as neutral.
//
//	7 8 9
//	4 5 6
//	1 2 3
type Direction uint8

const (
	DownBack    Direction = 1
	Down        Direction = 2
	DownForward Direction = 3
	Back        Direction = 4
	Neutral     Direction = 5
	Forward     Direction = 6
	UpBack      Direction = 7
	Up          Direction = 8
	UpForward   Direction = 9
)

// correctionTable maps raw lever indices 0-9 to a legal direction.
// Index 0 (no lever data) reads as neutral.
var correctionTable = [10]Direction{
	Neutral, DownBack, Down, DownForward, Back, Neutral, Forward, UpBack, Up, UpForward,
}

// Correct validates a raw lever value. Anything outside 0-9 is neutral.
func Correct(raw int) Direction {
	if raw < 0 || raw >= len(correctionTable) {
		return Neutral
	}
	return correctionTable[raw]
}

// Mirror swaps left and right.
func (d Direction) Mirror() Direction {
	switch d {
	case DownBack:
		return DownForward
	case DownForward:
		return DownBack
	case Back:
		return Forward
	case Forward:
		return Back
	case UpBack:
		return UpForward
	case UpForward:
		return UpBack
	default:
		return d
	}
}

// Relative converts a screen-space direction into one relative to facing.
// Facing 1 is right (identity), -1 is left.
func (d Direction) Relative(facing int) Direction {
	if facing < 0 {
		return d.Mirror()
	}
	return d
}

// IsBack reports whether d is in the back charge group {1, 4, 7}.
func (d Direction) IsBack() bool { return d == DownBack || d == Back || d == UpBack }

// IsDown reports whether d is in the down charge group {1, 2, 3}.
func (d Direction) IsDown() bool { return d == DownBack || d == Down || d == DownForward }

// IsForward reports whether d is in {3, 6, 9}.
func (d Direction) IsForward() bool { return d == DownForward || d == Forward || d == UpForward }

// IsUp reports whether d is in {7, 8, 9}.
func (d Direction) IsUp() bool { return d == UpBack || d == Up || d == UpForward }

func (d Direction) String() string {
	switch d {
	case DownBack:
		return "down_back"
	case Down:
		return "down"
	case DownForward:
		return "down_forward"
	case Back:
		return "back"
	case Neutral:
		return "neutral"
	case Forward:
		return "forward"
	case UpBack:
		return "up_back"
	case Up:
		return "up"
	case UpForward:
		return "up_forward"
	default:
		return "invalid"
	}
}
