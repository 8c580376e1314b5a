package planning

import (
	"context"
	"sync"
	"testing"
)

func TestSlotDropsSupersededValues(t *testing.T) {
	ctx := context.Background()
	slot := NewSlot[string]("status", NewMemorySequencer())

	first, err := slot.Issue(ctx)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	second, err := slot.Issue(ctx)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	ok, err := slot.Deliver(ctx, second, "fresh")
	if err != nil || !ok {
		t.Fatalf("expected newest ticket to be accepted, ok=%v err=%v", ok, err)
	}
	ok, err = slot.Deliver(ctx, first, "stale")
	if err != nil || ok {
		t.Fatalf("expected superseded ticket to be dropped, ok=%v err=%v", ok, err)
	}

	v, has := slot.Value()
	if !has || v != "fresh" {
		t.Fatalf("expected fresh value, got %q (has=%v)", v, has)
	}
}

func TestSlotStaleArrivesFirst(t *testing.T) {
	ctx := context.Background()
	slot := NewSlot[int]("plan", NewMemorySequencer())

	first, _ := slot.Issue(ctx)
	second, _ := slot.Issue(ctx)

	if ok, _ := slot.Deliver(ctx, first, 1); ok {
		t.Fatalf("older response must be dropped once a newer request exists")
	}
	if _, has := slot.Value(); has {
		t.Fatalf("no value should be stored yet")
	}
	if ok, _ := slot.Deliver(ctx, second, 2); !ok {
		t.Fatalf("newest response must be accepted")
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	seq := NewMemorySequencer()
	a := NewSlot[int]("a", seq)
	b := NewSlot[int]("b", seq)

	ta, _ := a.Issue(ctx)
	_, _ = b.Issue(ctx)
	_, _ = b.Issue(ctx)

	if ok, _ := a.Deliver(ctx, ta, 1); !ok {
		t.Fatalf("slot a must not be superseded by slot b")
	}
}

func TestMemorySequencerConcurrent(t *testing.T) {
	ctx := context.Background()
	seq := NewMemorySequencer()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = seq.Next(ctx, "x")
		}()
	}
	wg.Wait()

	if cur, _ := seq.Current(ctx, "x"); cur != 50 {
		t.Fatalf("expected 50 tickets, got %d", cur)
	}
}
