package game

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"third-strike/internal/chardef"
	"third-strike/internal/logger"
)

// ErrBadPlayer is returned for a player index other than 0 or 1.
var ErrBadPlayer = errors.New("player must be 0 or 1")

// InputLatch holds the most recent controller state for each player. The
// tick loop samples it once per frame; an input stays held until replaced.
type InputLatch struct {
	mu     sync.Mutex
	inputs [2]RawInput
}

// Set replaces one player's latched input.
func (l *InputLatch) Set(player int, in RawInput) error {
	if player < 0 || player > 1 {
		return errors.Wrapf(ErrBadPlayer, "player %d", player)
	}
	l.mu.Lock()
	l.inputs[player] = in
	l.mu.Unlock()
	return nil
}

// Load returns both latched inputs.
func (l *InputLatch) Load() [2]RawInput {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inputs
}

// EngineOptions configures an engine.
type EngineOptions struct {
	TickRate  int
	Log       logrus.FieldLogger
	EventLog  *EventLog  // Optional
	Standings *Standings // Optional
}

// Engine drives a match at a fixed tick rate and publishes snapshots for
// readers. The match itself only ever runs under the tick lock. Tick
// timing is reported through the match's Telemetry.
type Engine struct {
	mu    sync.Mutex // Held for the duration of a tick
	match *Match

	inputs   InputLatch
	resetReq atomic.Bool
	pending  atomic.Pointer[Match]

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}

	pool       *SnapshotPool
	eventLog   *EventLog
	standings  *Standings
	log        logrus.FieldLogger
	onSnapshot func(Snapshot)

	tickCount atomic.Uint64
}

// NewEngine wraps a match.
func NewEngine(m *Match, opts EngineOptions) *Engine {
	tickRate := opts.TickRate
	if tickRate <= 0 {
		tickRate = 60
	}
	return &Engine{
		match:     m,
		tickRate:  tickRate,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
		pool:      NewSnapshotPool(),
		eventLog:  opts.EventLog,
		standings: opts.Standings,
		log:       logger.OrDiscard(opts.Log),
	}
}

// OnSnapshot registers a callback run on the tick goroutine after every
// publish. Set it before Start.
func (e *Engine) OnSnapshot(fn func(Snapshot)) { e.onSnapshot = fn }

// SetInput latches a player's input for the next tick.
func (e *Engine) SetInput(player int, in RawInput) error {
	return e.inputs.Set(player, in)
}

// RequestReset restarts the match at the start of the next tick.
func (e *Engine) RequestReset() { e.resetReq.Store(true) }

// Replace swaps in a new match at the start of the next tick. Used when
// character data is reloaded.
func (e *Engine) Replace(m *Match) { e.pending.Store(m) }

// Latest returns the most recent published snapshot.
func (e *Engine) Latest() (Snapshot, bool) { return e.pool.Latest() }

// Characters returns the characters of the running match.
func (e *Engine) Characters() [2]*chardef.Character {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.match.Characters()
}

// Ticks returns how many frames have run.
func (e *Engine) Ticks() uint64 { return e.tickCount.Load() }

// Step runs one tick synchronously and publishes its snapshot.
func (e *Engine) Step() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if next := e.pending.Swap(nil); next != nil {
		e.match = next
		e.log.Info("match replaced")
	}
	if e.resetReq.Swap(false) {
		e.match.Reset()
	}

	snap := e.match.Tick(e.inputs.Load())
	e.pool.Publish(&snap)
	e.tickCount.Add(1)
	if len(snap.Events) > 0 {
		if e.eventLog != nil {
			e.eventLog.EmitAll(snap.Events)
		}
		if e.standings != nil {
			e.standings.Record([2]string{snap.Characters[0].Name, snap.Characters[1].Name}, snap.Events)
		}
	}
	if e.onSnapshot != nil {
		if latest, ok := e.pool.Latest(); ok {
			e.onSnapshot(latest)
		}
	}
	return snap
}

// Start begins the tick loop.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	e.mu.Unlock()

	go func() {
		defer close(e.done)
		for {
			select {
			case <-e.ticker.C:
				e.Step()
			case <-e.stopChan:
				return
			}
		}
	}()

	e.log.WithField("tps", e.tickRate).Info("engine started")
}

// Stop halts the tick loop and waits for the current tick to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	e.mu.Unlock()

	<-e.done
	e.log.WithField("ticks", e.tickCount.Load()).Info("engine stopped")
}
