package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type State string

const (
	Idle        State = "idle"
	Subscribing State = "subscribing"
	Ready       State = "ready"
)

// ErrStale reports that a newer selection superseded the call.
var ErrStale = errors.New("mirror selection superseded")

// Source loads rows for a mirror.
type Source[T any] struct {
	Table string
	// List performs the initial fetch, newest first.
	List func(ctx context.Context, organizationID string) ([]T, error)
	// Get re-fetches one row with its joins after an insert. When nil the
	// event payload is decoded instead.
	Get func(ctx context.Context, organizationID, id string) (T, error)
	ID  func(T) string
}

type Snapshot[T any] struct {
	Table          string `json:"table"`
	OrganizationID string `json:"organizationId"`
	State          State  `json:"state"`
	Items          []T    `json:"items"`
}

// Mirror holds the rows of one table for the selected organization. Every
// subscription gets an epoch; results from an older epoch are dropped.
type Mirror[T any] struct {
	feed     Feed
	source   Source[T]
	logger   *zap.Logger
	onChange func(Snapshot[T])

	// applyMu serializes event application with the post-fetch replay.
	applyMu sync.Mutex

	mu     sync.Mutex
	epoch  uint64
	orgID  string
	state  State
	items  []T
	buffer []Event
	sub    Subscription
	cancel context.CancelFunc
}

func NewMirror[T any](feed Feed, source Source[T], logger *zap.Logger, onChange func(Snapshot[T])) *Mirror[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror[T]{
		feed:     feed,
		source:   source,
		logger:   logger.With(zap.String("table", source.Table)),
		onChange: onChange,
		state:    Idle,
	}
}

func (m *Mirror[T]) Snapshot() Snapshot[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Mirror[T]) snapshotLocked() Snapshot[T] {
	items := make([]T, len(m.items))
	copy(items, m.items)
	return Snapshot[T]{Table: m.source.Table, OrganizationID: m.orgID, State: m.state, Items: items}
}

func (m *Mirror[T]) notify(snap Snapshot[T]) {
	if m.onChange != nil {
		m.onChange(snap)
	}
}

// detachLocked ends the current subscription and returns it for closing
// outside the lock.
func (m *Mirror[T]) detachLocked() (Subscription, context.CancelFunc) {
	sub, cancel := m.sub, m.cancel
	m.sub, m.cancel = nil, nil
	return sub, cancel
}

func release(sub Subscription, cancel context.CancelFunc) {
	if cancel != nil {
		cancel()
	}
	if sub != nil {
		_ = sub.Close()
	}
}

func (m *Mirror[T]) current(epoch uint64, organizationID string) bool {
	return m.epoch == epoch && m.orgID == organizationID
}

// Ticket identifies one selection of a mirror.
type Ticket struct {
	epoch          uint64
	organizationID string
}

// Select points the mirror at organizationID: it subscribes first and only
// then performs the initial fetch. An empty id returns the mirror to Idle.
// It returns ErrStale when another Select or Close overtook it.
func (m *Mirror[T]) Select(ctx context.Context, organizationID string) error {
	if organizationID == "" {
		m.Close()
		return nil
	}
	return m.Attach(ctx, m.Begin(organizationID))
}

// Begin claims a new epoch for organizationID and drops the previous
// subscription. Callers that switch selections call Begin in order and may
// run Attach concurrently; only the latest ticket can attach.
func (m *Mirror[T]) Begin(organizationID string) Ticket {
	m.mu.Lock()
	m.epoch++
	t := Ticket{epoch: m.epoch, organizationID: organizationID}
	oldSub, oldCancel := m.detachLocked()
	m.orgID = organizationID
	m.state = Subscribing
	m.items = nil
	m.buffer = nil
	snap := m.snapshotLocked()
	m.mu.Unlock()

	release(oldSub, oldCancel)
	m.notify(snap)
	return t
}

// Attach subscribes and fetches for a ticket returned by Begin.
func (m *Mirror[T]) Attach(ctx context.Context, t Ticket) error {
	epoch, organizationID := t.epoch, t.organizationID

	m.mu.Lock()
	stale := !m.current(epoch, organizationID)
	m.mu.Unlock()
	if stale {
		return ErrStale
	}

	sub, err := m.feed.Subscribe(ctx, m.source.Table, organizationID)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", m.source.Table, err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	if !m.current(epoch, organizationID) {
		m.mu.Unlock()
		release(sub, cancel)
		return ErrStale
	}
	m.sub, m.cancel = sub, cancel
	m.mu.Unlock()

	go m.pump(pumpCtx, epoch, organizationID, sub)

	items, fetchErr := m.source.List(ctx, organizationID)

	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	m.mu.Lock()
	if !m.current(epoch, organizationID) {
		m.mu.Unlock()
		return ErrStale
	}
	if fetchErr != nil {
		items = nil
	}
	m.items = items
	m.state = Ready
	pending := m.buffer
	m.buffer = nil
	m.mu.Unlock()

	for _, ev := range pending {
		m.apply(pumpCtx, epoch, organizationID, ev)
	}
	m.notify(m.Snapshot())

	if fetchErr != nil {
		return fmt.Errorf("initial fetch %s: %w", m.source.Table, fetchErr)
	}
	return nil
}

// Close drops the subscription and returns to Idle.
func (m *Mirror[T]) Close() {
	m.mu.Lock()
	m.epoch++
	sub, cancel := m.detachLocked()
	m.orgID = ""
	m.state = Idle
	m.items = nil
	m.buffer = nil
	m.mu.Unlock()

	release(sub, cancel)
}

func (m *Mirror[T]) pump(ctx context.Context, epoch uint64, organizationID string, sub Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			m.handle(ctx, epoch, organizationID, ev)
		}
	}
}

func (m *Mirror[T]) handle(ctx context.Context, epoch uint64, organizationID string, ev Event) {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	m.mu.Lock()
	if !m.current(epoch, organizationID) || ev.OrganizationID != organizationID || ev.Table != m.source.Table {
		m.mu.Unlock()
		return
	}
	if m.state == Subscribing {
		m.buffer = append(m.buffer, ev)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if m.apply(ctx, epoch, organizationID, ev) {
		m.notify(m.Snapshot())
	}
}

// apply folds one event into the rows and reports whether anything changed.
// Callers hold applyMu.
func (m *Mirror[T]) apply(ctx context.Context, epoch uint64, organizationID string, ev Event) bool {
	switch ev.Type {
	case Insert:
		row, err := m.loadRow(ctx, organizationID, ev)
		if err != nil {
			m.logger.Warn("mirror insert fetch failed", zap.String("id", ev.ID), zap.Error(err))
			return false
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.current(epoch, organizationID) {
			return false
		}
		if idx := m.indexLocked(ev.ID); idx >= 0 {
			m.items[idx] = row
		} else {
			m.items = append([]T{row}, m.items...)
		}
		return true

	case Update:
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.current(epoch, organizationID) {
			return false
		}
		idx := m.indexLocked(ev.ID)
		if idx < 0 || len(ev.Row) == 0 {
			return false
		}
		merged, err := mergeRow(m.items[idx], ev.Row)
		if err != nil {
			m.logger.Warn("mirror update merge failed", zap.String("id", ev.ID), zap.Error(err))
			return false
		}
		m.items[idx] = merged
		return true

	case Delete:
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.current(epoch, organizationID) {
			return false
		}
		idx := m.indexLocked(ev.ID)
		if idx < 0 {
			return false
		}
		m.items = append(m.items[:idx:idx], m.items[idx+1:]...)
		return true
	}
	return false
}

func (m *Mirror[T]) loadRow(ctx context.Context, organizationID string, ev Event) (T, error) {
	if m.source.Get != nil {
		return m.source.Get(ctx, organizationID, ev.ID)
	}
	var row T
	if len(ev.Row) == 0 {
		return row, errors.New("insert event without row")
	}
	err := json.Unmarshal(ev.Row, &row)
	return row, err
}

func (m *Mirror[T]) indexLocked(id string) int {
	for i, item := range m.items {
		if m.source.ID(item) == id {
			return i
		}
	}
	return -1
}

// mergeRow overlays the changed fields onto current by JSON field name.
func mergeRow[T any](current T, changes json.RawMessage) (T, error) {
	var merged T
	base, err := json.Marshal(current)
	if err != nil {
		return merged, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return merged, err
	}
	patch := map[string]json.RawMessage{}
	if err := json.Unmarshal(changes, &patch); err != nil {
		return merged, err
	}
	for k, v := range patch {
		fields[k] = v
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return merged, err
	}
	err = json.Unmarshal(out, &merged)
	return merged, err
}
