package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"live-quiz-service/internal/domain"
)

func countingSource(calls *atomic.Int64) SnapshotSource {
	return func(context.Context) (domain.Snapshot, error) {
		n := calls.Add(1)
		return domain.Snapshot{QuizState: domain.QuizState{CountdownValue: int(n)}}, nil
	}
}

func receive(t *testing.T, ch <-chan domain.Snapshot) domain.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed unexpectedly")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return domain.Snapshot{}
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	var calls atomic.Int64
	b := NewBroadcaster(countingSource(&calls), zerolog.Nop(), BroadcasterOptions{})

	ch, cancel, err := b.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	snap := receive(t, ch)
	if snap.Seq != 1 || snap.ServerTime.IsZero() {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.SubscriberCount())
	}
}

func TestPublishFansOutInOrder(t *testing.T) {
	var calls atomic.Int64
	b := NewBroadcaster(countingSource(&calls), zerolog.Nop(), BroadcasterOptions{Buffer: 8})
	ctx := context.Background()

	first, cancelFirst, _ := b.Subscribe(ctx)
	defer cancelFirst()
	second, cancelSecond, _ := b.Subscribe(ctx)
	defer cancelSecond()
	receive(t, first)
	receive(t, second)

	for i := 0; i < 3; i++ {
		if err := b.Publish(ctx); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	for _, ch := range []<-chan domain.Snapshot{first, second} {
		var last uint64
		for i := 0; i < 3; i++ {
			snap := receive(t, ch)
			if snap.Seq <= last {
				t.Fatalf("seq went backwards: %d after %d", snap.Seq, last)
			}
			last = snap.Seq
		}
	}
}

func TestSlowSubscriberKeepsLatest(t *testing.T) {
	var calls atomic.Int64
	b := NewBroadcaster(countingSource(&calls), zerolog.Nop(), BroadcasterOptions{Buffer: 1})
	ctx := context.Background()

	ch, cancel, _ := b.Subscribe(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_ = b.Publish(ctx)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publisher blocked on a slow subscriber")
	}

	snap := receive(t, ch)
	if snap.Seq != 6 {
		t.Fatalf("expected only the newest snapshot (seq 6), got %d", snap.Seq)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	var calls atomic.Int64
	b := NewBroadcaster(countingSource(&calls), zerolog.Nop(), BroadcasterOptions{})

	ch, cancel, _ := b.Subscribe(context.Background())
	receive(t, ch)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers, got %d", b.SubscriberCount())
	}
	if err := b.Publish(context.Background()); err != nil {
		t.Fatalf("publish without subscribers: %v", err)
	}
}

func TestContextDoneClosesChannel(t *testing.T) {
	var calls atomic.Int64
	b := NewBroadcaster(countingSource(&calls), zerolog.Nop(), BroadcasterOptions{})
	ctx, stop := context.WithCancel(context.Background())

	ch, cancel, _ := b.Subscribe(ctx)
	defer cancel()
	receive(t, ch)
	stop()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after context cancellation")
	}
}

func TestRunPublishesOnNotify(t *testing.T) {
	var calls atomic.Int64
	b := NewBroadcaster(countingSource(&calls), zerolog.Nop(), BroadcasterOptions{Interval: time.Hour})
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	ch, cancel, _ := b.Subscribe(ctx)
	defer cancel()
	receive(t, ch)

	go b.Run(ctx)
	b.Notify()
	b.Notify()

	if snap := receive(t, ch); snap.Seq < 2 {
		t.Fatalf("expected a published snapshot, got seq %d", snap.Seq)
	}
}

func TestRunPublishesPeriodically(t *testing.T) {
	var calls atomic.Int64
	b := NewBroadcaster(countingSource(&calls), zerolog.Nop(), BroadcasterOptions{Interval: 5 * time.Millisecond})
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	ch, cancel, _ := b.Subscribe(ctx)
	defer cancel()
	receive(t, ch)

	go b.Run(ctx)
	receive(t, ch)
	receive(t, ch)
}

func TestSubscribeReportsSourceError(t *testing.T) {
	boom := errors.New("store down")
	b := NewBroadcaster(func(context.Context) (domain.Snapshot, error) {
		return domain.Snapshot{}, boom
	}, zerolog.Nop(), BroadcasterOptions{})

	if _, _, err := b.Subscribe(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("failed subscribe must not register")
	}
}
