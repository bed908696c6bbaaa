package game

import (
	"reflect"
	"testing"

	"third-strike/internal/chardef"
	"third-strike/internal/config"
	"third-strike/internal/fighter"
	"third-strike/internal/input"
)

var (
	idle = [2]RawInput{{Direction: 5}, {Direction: 5}}
	mp   = input.ButtonSet(input.MP)
	lp   = input.ButtonSet(input.LP)
	grab = input.ButtonSet(input.LP | input.LK)
)

func testRound() config.RoundConfig {
	round := config.DefaultRound()
	round.IntroFrames = 0
	return round
}

func testMatch(t testing.TB, round config.RoundConfig) *Match {
	t.Helper()
	lib, err := chardef.LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded: %v", err)
	}
	ryu, _ := lib.Get("ryu")
	ken, _ := lib.Get("ken")
	if ryu == nil || ken == nil {
		t.Fatal("embedded characters missing")
	}
	return NewMatch(config.DefaultSim(), round, [2]*chardef.Character{ryu, ken}, Options{})
}

func place(m *Match, x0, x1 float64) {
	m.Player(0).Position.X = x0
	m.Player(1).Position.X = x1
}

func press(player, dir int, buttons input.ButtonSet) [2]RawInput {
	in := idle
	in[player] = RawInput{Direction: dir, Buttons: int(buttons)}
	return in
}

func both(dir0 int, b0 input.ButtonSet, dir1 int, b1 input.ButtonSet) [2]RawInput {
	return [2]RawInput{{Direction: dir0, Buttons: int(b0)}, {Direction: dir1, Buttons: int(b1)}}
}

func findEvent(events []ResolvedEvent, kind EventKind) (ResolvedEvent, bool) {
	for _, ev := range events {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return ResolvedEvent{}, false
}

// tickUntil runs idle frames until an event of kind appears.
func tickUntil(t *testing.T, m *Match, kind EventKind, limit int) (ResolvedEvent, Snapshot) {
	t.Helper()
	for i := 0; i < limit; i++ {
		snap := m.Tick(idle)
		if ev, ok := findEvent(snap.Events, kind); ok {
			return ev, snap
		}
	}
	t.Fatalf("no %s event within %d frames", kind, limit)
	return ResolvedEvent{}, Snapshot{}
}

func TestStandingMediumPunchConnects(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 480)
	ryu, ken := m.Player(0), m.Player(1)

	snap := m.Tick(press(0, 5, mp))
	if _, ok := findEvent(snap.Events, EventRoundStart); !ok {
		t.Error("expected round start on the first frame")
	}
	for tick := 2; tick <= 5; tick++ {
		snap = m.Tick(idle)
		if _, ok := findEvent(snap.Events, EventHit); ok {
			t.Fatalf("hit on frame %d, before the first active frame", tick)
		}
	}

	snap = m.Tick(idle)
	ev, ok := findEvent(snap.Events, EventHit)
	if !ok {
		t.Fatalf("expected a hit on frame 6, got %+v", snap.Events)
	}
	if ev.Move != "st_mp" || ev.Damage != 18 || ev.Attacker != 0 || ev.Defender != 1 || ev.Frame != 6 {
		t.Errorf("unexpected hit event %+v", ev)
	}
	if ken.Health != 142 {
		t.Errorf("health = %d, want 142", ken.Health)
	}
	if s, ok := ken.State.(fighter.Hitstun); !ok || s.Variant != fighter.HitstunStanding {
		t.Errorf("state = %s, want standing hitstun", fighter.Label(ken.State))
	}
	if ken.HitstunFrames != 15 {
		t.Errorf("hitstun = %d, want 15", ken.HitstunFrames)
	}
	if got := m.machine.ActionableIn(ken); got != 23 {
		t.Errorf("defender actionable in %d, want 23", got)
	}
	if snap.Characters[1].Combo.HitCount != 1 {
		t.Errorf("combo hits = %d, want 1", snap.Characters[1].Combo.HitCount)
	}

	for i := 0; i < 60 && !ryu.Neutral(); i++ {
		m.Tick(idle)
	}
	if !ryu.Neutral() {
		t.Fatal("attacker never recovered")
	}
	m.Tick(press(0, 5, mp))
	ev, _ = tickUntil(t, m, EventHit, 10)
	if ev.Damage != 16 || ev.ComboHits != 2 {
		t.Errorf("second hit damage %d combo %d, want 16 and 2", ev.Damage, ev.ComboHits)
	}
	if ken.Health != 126 {
		t.Errorf("health = %d, want 126", ken.Health)
	}
}

func TestHitRegistersOncePerAttack(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 480)

	m.Tick(press(0, 5, mp))
	hits := 0
	for i := 0; i < 40; i++ {
		snap := m.Tick(idle)
		for _, ev := range snap.Events {
			if ev.Kind == EventHit {
				hits++
			}
		}
	}
	if hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
}

func TestParryGivesEightFrameAdvantage(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 480)
	ryu, ken := m.Player(0), m.Player(1)

	m.Tick(press(0, 5, mp))
	m.Tick(idle)
	m.Tick(idle)
	// Ken faces left, so screen-left is forward.
	m.Tick(press(1, 4, 0))
	m.Tick(idle)
	snap := m.Tick(idle)

	ev, ok := findEvent(snap.Events, EventParry)
	if !ok {
		t.Fatalf("expected a parry, got %+v", snap.Events)
	}
	if ev.Damage != 0 || ken.Health != 160 {
		t.Errorf("parry dealt damage: event %d, health %d", ev.Damage, ken.Health)
	}
	if ken.Parry.Count != 1 {
		t.Errorf("parry count = %d, want 1", ken.Parry.Count)
	}
	if got := m.machine.ActionableIn(ryu) - m.machine.ActionableIn(ken); got != 8 {
		t.Errorf("advantage = %d, want 8", got)
	}

	ryuFree, kenFree := 0, 0
	for i := 1; i <= 60 && (ryuFree == 0 || kenFree == 0); i++ {
		m.Tick(idle)
		if kenFree == 0 && ken.Neutral() {
			kenFree = i
		}
		if ryuFree == 0 && ryu.Neutral() {
			ryuFree = i
		}
	}
	if ryuFree-kenFree != 8 {
		t.Errorf("defender free at %d, attacker at %d; want 8 frames apart", kenFree, ryuFree)
	}
}

func TestHoldingBackBlocks(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 470)
	ken := m.Player(1)

	m.Tick(press(0, 5, mp))
	var snap Snapshot
	for i := 0; i < 5; i++ {
		snap = m.Tick(press(1, 6, 0))
	}
	ev, ok := findEvent(snap.Events, EventBlock)
	if !ok {
		t.Fatalf("expected a block, got %+v", snap.Events)
	}
	if ev.Damage != 1 || !ev.Chip {
		t.Errorf("chip = %d (flag %v), want 1", ev.Damage, ev.Chip)
	}
	if ken.Health != 159 {
		t.Errorf("health = %d, want 159", ken.Health)
	}
	if _, ok := ken.State.(fighter.Blockstun); !ok {
		t.Errorf("state = %s, want blockstun", fighter.Label(ken.State))
	}
	if ken.BlockstunFrames != 10 {
		t.Errorf("blockstun = %d, want 10", ken.BlockstunFrames)
	}
}

func TestNormalChipCannotKO(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 470)
	ken := m.Player(1)
	ken.Health = 1

	m.Tick(press(0, 5, input.ButtonSet(input.HP)))
	for i := 0; i < 10; i++ {
		m.Tick(press(1, 6, 0))
	}
	if ken.Health != 1 {
		t.Errorf("health = %d, want 1", ken.Health)
	}
	if m.Rounds().Phase() != PhaseFight {
		t.Errorf("phase = %s, want fight", m.Rounds().Phase())
	}
}

func TestCounterHitAddsHitstun(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 480)
	ken := m.Player(1)

	m.Tick(press(0, 5, mp))
	// Ken starts a slow kick that is still in startup on frame 6.
	m.Tick(press(1, 5, input.ButtonSet(input.HK)))
	m.Tick(idle)
	m.Tick(idle)
	m.Tick(idle)
	snap := m.Tick(idle)

	ev, ok := findEvent(snap.Events, EventHit)
	if !ok {
		t.Fatalf("expected a hit, got %+v", snap.Events)
	}
	if !ev.Counter {
		t.Error("expected a counter hit")
	}
	if ken.HitstunFrames != 17 {
		t.Errorf("hitstun = %d, want 17", ken.HitstunFrames)
	}
}

func TestMutualHit(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 480)

	m.Tick(both(5, mp, 5, mp))
	var snap Snapshot
	for i := 0; i < 5; i++ {
		snap = m.Tick(idle)
	}
	mutual := 0
	for _, ev := range snap.Events {
		if ev.Kind == EventMutualHit {
			mutual++
		}
	}
	if mutual != 2 {
		t.Fatalf("mutual hits = %d, want 2 (%+v)", mutual, snap.Events)
	}
	for i := 0; i < 2; i++ {
		if h := m.Player(i).Health; h != 142 {
			t.Errorf("player %d health = %d, want 142", i, h)
		}
	}
}

func TestThrowLandsAfterTechWindow(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 460)
	ryu, ken := m.Player(0), m.Player(1)

	m.Tick(press(0, 5, grab))
	m.Tick(idle)
	m.Tick(idle)
	if _, ok := ken.State.(fighter.Thrown); !ok {
		t.Fatalf("state = %s, want thrown", fighter.Label(ken.State))
	}
	if _, ok := ryu.State.(fighter.Throwing); !ok {
		t.Fatalf("state = %s, want throwing", fighter.Label(ryu.State))
	}

	ev, _ := tickUntil(t, m, EventThrow, 10)
	if ev.Damage != 22 || ev.Attacker != 0 {
		t.Errorf("unexpected throw event %+v", ev)
	}
	if m.Frame() != 8 {
		t.Errorf("throw landed on frame %d, want 8", m.Frame())
	}
	if ken.Health != 138 {
		t.Errorf("health = %d, want 138", ken.Health)
	}
	if _, ok := ken.State.(fighter.Knockdown); !ok {
		t.Errorf("state = %s, want knockdown", fighter.Label(ken.State))
	}
}

func TestThrowTech(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 460)
	ryu, ken := m.Player(0), m.Player(1)

	m.Tick(press(0, 5, grab))
	m.Tick(idle)
	m.Tick(idle)
	snap := m.Tick(press(1, 5, grab))

	if _, ok := findEvent(snap.Events, EventThrowTech); !ok {
		t.Fatalf("expected a tech, got %+v", snap.Events)
	}
	if ken.Health != 160 {
		t.Errorf("health = %d, want 160", ken.Health)
	}
	for _, r := range []*fighter.Runtime{ryu, ken} {
		if r.State.Kind() != fighter.KindStanding {
			t.Errorf("player %d state = %s, want standing", r.ID, fighter.Label(r.State))
		}
	}
	for i := 0; i < 10; i++ {
		if snap := m.Tick(idle); len(snap.Events) > 0 {
			if _, ok := findEvent(snap.Events, EventThrow); ok {
				t.Fatal("teched throw still landed")
			}
		}
	}
}

func TestThrowBeatsStrike(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 460)
	ryu, ken := m.Player(0), m.Player(1)

	// Ken's jab and Ryu's grab both become active on frame 4.
	m.Tick(press(1, 5, lp))
	m.Tick(press(0, 5, grab))
	m.Tick(idle)
	snap := m.Tick(idle)

	if _, ok := findEvent(snap.Events, EventHit); ok {
		t.Errorf("strike resolved on the throw frame: %+v", snap.Events)
	}
	if _, ok := ken.State.(fighter.Thrown); !ok {
		t.Errorf("state = %s, want thrown", fighter.Label(ken.State))
	}
	if ryu.Health != 160 {
		t.Errorf("thrower health = %d, want 160", ryu.Health)
	}
}

func fireball(m *Match, player int, facing int) {
	down, downForward, forward := 2, 3, 6
	if facing < 0 {
		downForward, forward = 1, 4
	}
	m.Tick(press(player, down, 0))
	m.Tick(press(player, downForward, 0))
	m.Tick(press(player, forward, lp))
}

func TestProjectileHits(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 600)
	ryu, ken := m.Player(0), m.Player(1)

	fireball(m, 0, 1)
	if mv, _, ok := ryu.Move(); !ok || mv.Name != "hadoken_lp" {
		t.Fatalf("state = %s, want hadoken_lp", fighter.Label(ryu.State))
	}

	ev, _ := tickUntil(t, m, EventHit, 80)
	if !ev.Projectile || ev.Move != "hadoken_lp" || ev.Damage != 16 {
		t.Errorf("unexpected projectile hit %+v", ev)
	}
	if ken.Health != 144 {
		t.Errorf("health = %d, want 144", ken.Health)
	}
	if m.Projectiles() != 0 || ryu.LiveProjectiles != 0 {
		t.Errorf("projectile not removed: %d live, owner count %d", m.Projectiles(), ryu.LiveProjectiles)
	}
}

func TestBlockedProjectileChips(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 600)
	ken := m.Player(1)

	fireball(m, 0, 1)
	for i := 0; i < 80; i++ {
		// Hold back only once the fireball is close so Ken does not walk away from it.
		in := idle
		if len(m.projectiles) > 0 && m.projectiles[0].X > 500 {
			in = press(1, 6, 0)
		}
		snap := m.Tick(in)
		if ev, ok := findEvent(snap.Events, EventBlock); ok {
			if !ev.Chip || ken.Health != 159 {
				t.Errorf("chip %v, health %d; want chip and 159", ev.Chip, ken.Health)
			}
			return
		}
	}
	t.Fatal("projectile never blocked")
}

func TestProjectilesClash(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 300, 600)

	m.Tick(both(2, 0, 2, 0))
	m.Tick(both(3, 0, 1, 0))
	m.Tick(both(6, lp, 4, lp))

	tickUntil(t, m, EventProjectileClash, 80)
	if m.Projectiles() != 0 {
		t.Errorf("projectiles = %d, want 0", m.Projectiles())
	}
	for i := 0; i < 2; i++ {
		if p := m.Player(i); p.Health != 160 || p.LiveProjectiles != 0 {
			t.Errorf("player %d health %d live %d", i, p.Health, p.LiveProjectiles)
		}
	}
}

func TestKOEndsRound(t *testing.T) {
	round := testRound()
	round.RoundEndFrames = 3
	m := testMatch(t, round)
	place(m, 400, 480)
	m.Player(1).Health = 10

	m.Tick(press(0, 5, mp))
	_, snap := tickUntil(t, m, EventRoundEnd, 10)

	ko, ok := findEvent(snap.Events, EventKO)
	if !ok || ko.Defender != 1 {
		t.Errorf("expected KO of player 1, got %+v", snap.Events)
	}
	end, _ := findEvent(snap.Events, EventRoundEnd)
	if end.Winner != 0 || end.Reason != "ko" || end.Round != 1 {
		t.Errorf("unexpected round end %+v", end)
	}
	if _, ok := findEvent(snap.Events, EventComboEnd); !ok {
		t.Error("expected the combo to end with the round")
	}
	if snap.Round.Wins != [2]int{1, 0} {
		t.Errorf("wins = %v", snap.Round.Wins)
	}

	tickUntil(t, m, EventRoundStart, 10)
	if m.Rounds().Round() != 2 {
		t.Errorf("round = %d, want 2", m.Rounds().Round())
	}
	if h := m.Player(1).Health; h != 160 {
		t.Errorf("health after reset = %d, want 160", h)
	}
}

func TestMatchEndsAfterTwoRounds(t *testing.T) {
	round := testRound()
	round.RoundEndFrames = 1
	m := testMatch(t, round)

	for r := 1; r <= 2; r++ {
		place(m, 400, 480)
		m.Player(1).Health = 1
		m.Tick(press(0, 5, mp))
		ev, snap := tickUntil(t, m, EventRoundEnd, 10)
		if ev.Winner != 0 {
			t.Fatalf("round %d winner = %d", r, ev.Winner)
		}
		_, over := findEvent(snap.Events, EventMatchEnd)
		if over != (r == 2) {
			t.Fatalf("round %d: match end = %v", r, over)
		}
		if r == 1 {
			tickUntil(t, m, EventRoundStart, 10)
		}
	}
	if m.Rounds().Winner() != 0 {
		t.Errorf("winner = %d, want 0", m.Rounds().Winner())
	}
}

func TestTimeOver(t *testing.T) {
	round := testRound()
	round.TimerStart = 1
	round.FramesPerSecond = 3
	m := testMatch(t, round)
	m.Player(0).Health = 100

	ev, _ := tickUntil(t, m, EventRoundEnd, 5)
	if ev.Reason != "time_over" || ev.Winner != 1 {
		t.Errorf("unexpected round end %+v", ev)
	}
	if m.Frame() != 3 {
		t.Errorf("time ran out on frame %d, want 3", m.Frame())
	}
}

func TestResetRestoresRoundOne(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 480)
	m.Tick(press(0, 5, mp))
	tickUntil(t, m, EventHit, 10)

	m.Reset()
	ken := m.Player(1)
	if ken.Health != 160 || ken.State.Kind() != fighter.KindStanding {
		t.Errorf("after reset: health %d state %s", ken.Health, fighter.Label(ken.State))
	}
	if m.Combo(1).Active {
		t.Error("combo survived reset")
	}
	if m.Rounds().Round() != 1 || m.Rounds().Phase() != PhaseIntro {
		t.Errorf("round %d phase %s", m.Rounds().Round(), m.Rounds().Phase())
	}
}

func TestResetReportsActiveCombo(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 480)
	m.Tick(press(0, 5, mp))
	tickUntil(t, m, EventHit, 10)

	m.Reset()
	snap := m.Tick(idle)
	end, ok := findEvent(snap.Events, EventComboEnd)
	if !ok {
		t.Fatalf("expected the interrupted combo to be reported, got %+v", snap.Events)
	}
	if end.Defender != 1 || end.Attacker != 0 || end.ComboHits != 1 || end.Damage != 18 || end.Frame != snap.Frame {
		t.Errorf("unexpected combo end %+v", end)
	}
	if _, ok := findEvent(m.Tick(idle).Events, EventComboEnd); ok {
		t.Error("combo end reported twice")
	}
}

func TestComboExpiresAfterTimeout(t *testing.T) {
	m := testMatch(t, testRound())
	place(m, 400, 480)
	m.Tick(press(0, 5, mp))
	hit, _ := tickUntil(t, m, EventHit, 10)

	timeout := uint64(config.DefaultSim().ComboTimeoutFrames)
	end, _ := tickUntil(t, m, EventComboEnd, int(timeout)+10)
	if end.Frame != hit.Frame+timeout+1 {
		t.Errorf("combo ended on frame %d, want %d", end.Frame, hit.Frame+timeout+1)
	}
	if end.Defender != 1 || end.ComboHits != 1 || end.Damage != 18 {
		t.Errorf("unexpected combo end %+v", end)
	}
	if m.Combo(1).Active {
		t.Error("combo still active after expiry")
	}
}

func TestIllegalInputIsCorrected(t *testing.T) {
	m := testMatch(t, testRound())
	snap := m.Tick([2]RawInput{{Direction: 42, Buttons: 0xff}, {Direction: -3}})
	if snap.Frame != 1 {
		t.Errorf("frame = %d", snap.Frame)
	}
	if m.Recognizer(0).Corrections() != 1 || m.Recognizer(1).Corrections() != 1 {
		t.Errorf("corrections = %d, %d", m.Recognizer(0).Corrections(), m.Recognizer(1).Corrections())
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	script := [][2]RawInput{
		both(5, mp, 2, 0),
		both(6, 0, 3, 0),
		both(6, 0, 6, lp),
		both(3, 0, 4, 0),
		both(5, grab, 5, 0),
		both(9, 0, 7, 0),
		both(5, input.ButtonSet(input.HK), 5, input.ButtonSet(input.HP)),
	}

	run := func() []Snapshot {
		m := testMatch(t, testRound())
		var out []Snapshot
		for i := 0; i < 300; i++ {
			out = append(out, m.Tick(script[i%len(script)]))
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			t.Fatalf("frame %d diverged:\n%+v\n%+v", i+1, a[i], b[i])
		}
	}
}

func BenchmarkMatchTick(b *testing.B) {
	m := testMatch(b, testRound())
	script := [][2]RawInput{both(5, mp, 6, 0), idle, both(2, 0, 4, 0), both(3, 0, 5, lp), idle}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		m.Tick(script[i%len(script)])
	}
}
