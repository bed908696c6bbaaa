package game

import "third-strike/internal/config"

// RoundPhase is where the match is in its round flow.
type RoundPhase uint8

const (
	PhaseIntro RoundPhase = iota
	PhaseFight
	PhaseRoundEnd
	PhaseMatchEnd
)

func (p RoundPhase) String() string {
	switch p {
	case PhaseFight:
		return "fight"
	case PhaseRoundEnd:
		return "round_end"
	case PhaseMatchEnd:
		return "match_end"
	default:
		return "intro"
	}
}

// RoundResult is how a round finished.
type RoundResult struct {
	Winner  int    // -1 for a draw
	Reason  string // ko, double_ko, time_over
	Perfect bool
}

// Transition is what Advance changed.
type Transition uint8

const (
	TransitionNone Transition = iota
	TransitionRoundStarted
	TransitionNextRound
	TransitionMatchRestart
)

// RoundManager runs the timer and best-of-N round flow.
type RoundManager struct {
	cfg config.RoundConfig

	round       int
	phase       RoundPhase
	phaseFrame  int
	timer       int
	timerFrames int
	wins        [2]int
	winner      int
	last        RoundResult
}

// NewRoundManager starts round one in its intro.
func NewRoundManager(cfg config.RoundConfig) *RoundManager {
	rm := &RoundManager{cfg: cfg}
	rm.Restart()
	return rm
}

// Restart begins a fresh match.
func (rm *RoundManager) Restart() {
	rm.round = 1
	rm.wins = [2]int{}
	rm.winner = -1
	rm.last = RoundResult{Winner: -1}
	rm.beginRound()
}

func (rm *RoundManager) beginRound() {
	rm.phase = PhaseIntro
	rm.phaseFrame = 0
	rm.timer = rm.cfg.TimerStart
	rm.timerFrames = 0
}

func (rm *RoundManager) Round() int        { return rm.round }
func (rm *RoundManager) Phase() RoundPhase { return rm.phase }
func (rm *RoundManager) Timer() int        { return rm.timer }
func (rm *RoundManager) Wins() [2]int      { return rm.wins }
func (rm *RoundManager) Winner() int       { return rm.winner }
func (rm *RoundManager) Last() RoundResult { return rm.last }
func (rm *RoundManager) Fighting() bool    { return rm.phase == PhaseFight }

// Advance moves the intro and end phases forward one frame.
func (rm *RoundManager) Advance() Transition {
	switch rm.phase {
	case PhaseIntro:
		rm.phaseFrame++
		if rm.phaseFrame >= rm.cfg.IntroFrames {
			rm.phase = PhaseFight
			rm.phaseFrame = 0
			return TransitionRoundStarted
		}
	case PhaseRoundEnd:
		rm.phaseFrame++
		if rm.phaseFrame < rm.cfg.RoundEndFrames {
			return TransitionNone
		}
		if rm.winner >= 0 {
			rm.phase = PhaseMatchEnd
			rm.phaseFrame = 0
			return TransitionNone
		}
		rm.round++
		rm.beginRound()
		return TransitionNextRound
	case PhaseMatchEnd:
		rm.phaseFrame++
		if rm.phaseFrame >= rm.cfg.MatchEndFrames {
			rm.Restart()
			return TransitionMatchRestart
		}
	}
	return TransitionNone
}

// TickTimer counts one fight frame and reports whether time is up.
func (rm *RoundManager) TickTimer() bool {
	if rm.cfg.FramesPerSecond <= 0 || rm.cfg.TimerStart <= 0 {
		return false
	}
	rm.timerFrames++
	if rm.timerFrames >= rm.cfg.FramesPerSecond {
		rm.timerFrames = 0
		rm.timer--
	}
	return rm.timer <= 0
}

// End closes the round and reports whether the match is decided.
func (rm *RoundManager) End(res RoundResult) bool {
	rm.last = res
	rm.phase = PhaseRoundEnd
	rm.phaseFrame = 0
	if res.Winner < 0 {
		return false
	}
	rm.wins[res.Winner]++
	if rm.wins[res.Winner] >= rm.cfg.RoundsToWin {
		rm.winner = res.Winner
		return true
	}
	return false
}

// Decide judges a round from both health bars. It returns false while
// the round is still going.
func Decide(health, maxHealth [2]int, timeOver bool) (RoundResult, bool) {
	ko := [2]bool{health[0] <= 0, health[1] <= 0}

	var res RoundResult
	switch {
	case ko[0] && ko[1]:
		return RoundResult{Winner: -1, Reason: "double_ko"}, true
	case ko[1]:
		res = RoundResult{Winner: 0, Reason: "ko"}
	case ko[0]:
		res = RoundResult{Winner: 1, Reason: "ko"}
	case timeOver:
		res = RoundResult{Winner: -1, Reason: "time_over"}
		// Compare health fractions without dividing.
		a, b := health[0]*maxHealth[1], health[1]*maxHealth[0]
		switch {
		case a > b:
			res.Winner = 0
		case b > a:
			res.Winner = 1
		}
	default:
		return RoundResult{}, false
	}
	if res.Winner >= 0 {
		res.Perfect = health[res.Winner] == maxHealth[res.Winner]
	}
	return res, true
}
