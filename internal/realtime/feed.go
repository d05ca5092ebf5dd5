package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Subscription delivers events for one (table, organization) pair.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

type Feed interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns once the subscription is active, so no event
	// published after it returns can be missed.
	Subscribe(ctx context.Context, table, organizationID string) (Subscription, error)
}

func channelName(table, organizationID string) string {
	return "changes:" + table + ":" + organizationID
}

// RedisFeed fans events out over Redis pub/sub.
type RedisFeed struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisFeed(client *redis.Client, logger *zap.Logger) *RedisFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{client: client, logger: logger}
}

func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := f.client.Publish(ctx, channelName(ev.Table, ev.OrganizationID), raw).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, table, organizationID string) (Subscription, error) {
	ps := f.client.Subscribe(ctx, channelName(table, organizationID))
	// The first reply is the SUBSCRIBE confirmation.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}

	sub := &redisSubscription{
		ps:     ps,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go sub.run(f.logger)
	return sub, nil
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) run(logger *zap.Logger) {
	defer close(s.events)
	for msg := range s.ps.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			logger.Warn("drop malformed change event", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// MemoryFeed is an in-process Feed for single-node runs and tests.
type MemoryFeed struct {
	mu   sync.Mutex
	subs map[string]map[*memorySubscription]struct{}
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: map[string]map[*memorySubscription]struct{}{}}
}

func (f *MemoryFeed) Publish(ctx context.Context, ev Event) error {
	f.mu.Lock()
	targets := make([]*memorySubscription, 0, len(f.subs[channelName(ev.Table, ev.OrganizationID)]))
	for sub := range f.subs[channelName(ev.Table, ev.OrganizationID)] {
		targets = append(targets, sub)
	}
	f.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.events <- ev:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *MemoryFeed) Subscribe(_ context.Context, table, organizationID string) (Subscription, error) {
	name := channelName(table, organizationID)
	sub := &memorySubscription{
		feed:    f,
		channel: name,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
	f.mu.Lock()
	if f.subs[name] == nil {
		f.subs[name] = map[*memorySubscription]struct{}{}
	}
	f.subs[name][sub] = struct{}{}
	f.mu.Unlock()
	return sub, nil
}

// Subscribers counts active subscriptions on a channel.
func (f *MemoryFeed) Subscribers(table, organizationID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[channelName(table, organizationID)])
}

type memorySubscription struct {
	feed    *MemoryFeed
	channel string
	events  chan Event
	done    chan struct{}
	once    sync.Once
}

func (s *memorySubscription) Events() <-chan Event {
	return s.events
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.feed.mu.Lock()
		delete(s.feed.subs[s.channel], s)
		s.feed.mu.Unlock()
	})
	return nil
}
