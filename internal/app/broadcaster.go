package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// DefaultBroadcastInterval is the periodic re-publish cadence of the live channel.
const DefaultBroadcastInterval = 500 * time.Millisecond

// SnapshotSource builds the current state plus leaderboard view. Seq and
// ServerTime are filled by the Broadcaster.
type SnapshotSource func(ctx context.Context) (domain.Snapshot, error)

// Broadcaster fans snapshots out to live subscribers on connect, on Notify and on
// every interval tick.
type Broadcaster struct {
	source   SnapshotSource
	interval time.Duration
	buffer   int
	log      zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	notify   chan struct{}

	// mu serializes snapshot fetch and fan-out so seq order equals delivery order.
	mu          sync.Mutex
	seq         uint64
	subscribers map[chan domain.Snapshot]struct{}
}

// BroadcasterOptions tunes cadence and buffering; zero values use defaults.
type BroadcasterOptions struct {
	Interval time.Duration
	Buffer   int
	Now      func() time.Time
	Metrics  *metrics.Metrics
}

func NewBroadcaster(source SnapshotSource, log zerolog.Logger, opts BroadcasterOptions) *Broadcaster {
	if opts.Interval <= 0 {
		opts.Interval = DefaultBroadcastInterval
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Broadcaster{
		source:      source,
		interval:    opts.Interval,
		buffer:      opts.Buffer,
		log:         log.With().Str("component", "broadcaster").Logger(),
		metrics:     opts.Metrics,
		now:         opts.Now,
		notify:      make(chan struct{}, 1),
		subscribers: make(map[chan domain.Snapshot]struct{}),
	}
}

// Run publishes until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-b.notify:
		}
		if err := b.Publish(ctx); err != nil && ctx.Err() == nil {
			b.log.Warn().Err(err).Msg("publish snapshot")
		}
	}
}

// Notify requests an immediate publish. It never blocks; notifications arriving
// while one is pending coalesce.
func (b *Broadcaster) Notify() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Subscribe registers a subscriber and delivers the current snapshot on the
// returned channel before returning. The channel is closed by cancel or when ctx
// is done.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan domain.Snapshot, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap, err := b.nextLocked(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan domain.Snapshot, b.buffer)
	ch <- snap
	b.subscribers[ch] = struct{}{}
	b.metrics.SubscriberAdded()

	var once sync.Once
	remove := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[ch]; ok {
				delete(b.subscribers, ch)
				close(ch)
				b.metrics.SubscriberRemoved()
			}
		})
	}
	stop := context.AfterFunc(ctx, remove)
	cancel := func() {
		stop()
		remove()
	}
	return ch, cancel, nil
}

// Publish fetches one snapshot and fans it out. With no subscribers it does nothing.
func (b *Broadcaster) Publish(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subscribers) == 0 {
		return nil
	}
	snap, err := b.nextLocked(ctx)
	if err != nil {
		return err
	}
	for ch := range b.subscribers {
		deliverLatest(ch, snap)
	}
	b.metrics.Broadcast()
	return nil
}

// SubscriberCount reports live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Broadcaster) nextLocked(ctx context.Context) (domain.Snapshot, error) {
	snap, err := b.source(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	b.seq++
	snap.Seq = b.seq
	snap.ServerTime = b.now()
	return snap, nil
}

// deliverLatest never blocks: when the buffer is full the oldest pending snapshot
// is dropped. Only the publisher sends, under b.mu, so after one receive there is room.
func deliverLatest(ch chan domain.Snapshot, snap domain.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
