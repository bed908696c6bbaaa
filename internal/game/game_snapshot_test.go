package game

import (
	"sync"
	"testing"
)

func TestSnapshotPoolEmpty(t *testing.T) {
	pool := NewSnapshotPool()
	if _, ok := pool.Latest(); ok {
		t.Error("Latest reported a snapshot before any publish")
	}
}

func TestSnapshotPoolPublish(t *testing.T) {
	pool := NewSnapshotPool()
	src := Snapshot{
		Frame:       7,
		Projectiles: []ProjectileSnapshot{{ID: 1, Owner: 0, X: 100}},
		Events:      []ResolvedEvent{{Kind: EventHit, Damage: 18}},
	}
	pool.Publish(&src)

	got, ok := pool.Latest()
	if !ok {
		t.Fatal("no snapshot")
	}
	if got.Frame != 7 || got.Sequence != 1 {
		t.Errorf("frame %d sequence %d", got.Frame, got.Sequence)
	}

	// Readers own their copy.
	got.Events[0].Damage = 999
	got.Projectiles[0].X = -1
	again, _ := pool.Latest()
	if again.Events[0].Damage != 18 || again.Projectiles[0].X != 100 {
		t.Error("mutating a returned snapshot changed the pool")
	}

	// So does the producer.
	src.Events[0].Damage = 1
	again, _ = pool.Latest()
	if again.Events[0].Damage != 18 {
		t.Error("mutating the source changed the pool")
	}
}

func TestSnapshotPoolSequence(t *testing.T) {
	pool := NewSnapshotPool()
	for i := uint64(1); i <= 5; i++ {
		pool.Publish(&Snapshot{Frame: i})
		got, _ := pool.Latest()
		if got.Sequence != i || got.Frame != i {
			t.Fatalf("publish %d: sequence %d frame %d", i, got.Sequence, got.Frame)
		}
	}
}

func TestSnapshotPoolConcurrent(t *testing.T) {
	pool := NewSnapshotPool()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= 500; i++ {
			pool.Publish(&Snapshot{Frame: i, Events: []ResolvedEvent{{Frame: i}}})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for i := 0; i < 500; i++ {
				s, ok := pool.Latest()
				if !ok {
					continue
				}
				if s.Sequence < last {
					t.Errorf("sequence went backwards: %d after %d", s.Sequence, last)
					return
				}
				if len(s.Events) != 1 || s.Events[0].Frame != s.Frame {
					t.Errorf("torn snapshot: frame %d events %+v", s.Frame, s.Events)
					return
				}
				last = s.Sequence
			}
		}()
	}
	wg.Wait()
}
