package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/khony/adzb/internal/obs"
	"github.com/khony/adzb/internal/realtime"
	"github.com/khony/adzb/internal/store"
	"go.uber.org/zap"
)

const (
	realtimePingInterval = 30 * time.Second
	realtimeWriteWait    = 10 * time.Second
	realtimeReadLimit    = 64 * 1024
)

type clientMessage struct {
	Type         string `json:"type"`
	Organization string `json:"organization"`
}

type serverMessage struct {
	Type           string `json:"type"`
	Table          string `json:"table,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
	Slug           string `json:"slug,omitempty"`
	Role           string `json:"role,omitempty"`
	State          string `json:"state,omitempty"`
	Items          any    `json:"items,omitempty"`
	Code           string `json:"code,omitempty"`
	Error          string `json:"error,omitempty"`
}

func snapshotMessage[T any](snap realtime.Snapshot[T]) serverMessage {
	return serverMessage{
		Type:           "snapshot",
		Table:          snap.Table,
		OrganizationID: snap.OrganizationID,
		State:          string(snap.State),
		Items:          snap.Items,
	}
}

// realtimeClient owns one websocket. Snapshots are coalesced per table so a
// slow reader only ever receives the latest state of each mirror.
type realtimeClient struct {
	conn   *websocket.Conn
	logger *zap.Logger

	mu       sync.Mutex
	pending  map[string]serverMessage
	order    []string
	wake     chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

func newRealtimeClient(conn *websocket.Conn, logger *zap.Logger) *realtimeClient {
	return &realtimeClient{
		conn:    conn,
		logger:  logger,
		pending: map[string]serverMessage{},
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// push queues msg. Messages with the same key replace each other until
// written.
func (c *realtimeClient) push(key string, msg serverMessage) {
	c.mu.Lock()
	if _, queued := c.pending[key]; !queued {
		c.order = append(c.order, key)
	}
	c.pending[key] = msg
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *realtimeClient) drain() []serverMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]serverMessage, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.pending[key])
	}
	c.order = c.order[:0]
	c.pending = map[string]serverMessage{}
	return out
}

func (c *realtimeClient) close() {
	c.doneOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump is the only writer on the connection. It also sends pings.
func (c *realtimeClient) writePump() {
	ticker := time.NewTicker(realtimePingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("realtime ping failed", zap.Error(err))
				return
			}
		case <-c.wake:
			for _, msg := range c.drain() {
				_ = c.conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
				if err := c.conn.WriteJSON(msg); err != nil {
					c.logger.Debug("realtime write failed", zap.Error(err))
					return
				}
				if msg.Type == "snapshot" {
					obs.SnapshotDelivered(msg.Table)
				}
			}
		}
	}
}

// handleRealtime upgrades to a websocket that mirrors keywords,
// negotiations and evidences of the organization the client selects.
// Browsers cannot set headers on websocket requests, so the access token
// may also come from the access_token query parameter.
func (s *HTTPServer) handleRealtime(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r)
	if token == "" {
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		s.fail(w, r, Unauthenticated(""))
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("realtime upgrade failed", zap.Error(err))
		return
	}

	logger := s.logger.With(zap.String("user_id", session.UserID), zap.String("request_id", requestIDFrom(r.Context())))
	client := newRealtimeClient(conn, logger)
	obs.RealtimeConnected()
	defer obs.RealtimeDisconnected()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mirrors := s.service.newMirrors(client, logger)
	defer mirrors.close()

	selection := realtime.NewSelection()
	unlisten := selection.Listen(func(organizationID string) {
		mirrors.selectAll(ctx, organizationID, logger)
	})
	defer unlisten()

	if !session.ExpiresAt.IsZero() {
		expiry := time.AfterFunc(time.Until(session.ExpiresAt), client.close)
		defer expiry.Stop()
	}

	go client.writePump()
	s.readLoop(ctx, client, session, selection)
	client.close()
}

func (s *HTTPServer) readLoop(ctx context.Context, client *realtimeClient, session Session, selection *realtime.Selection) {
	conn := client.conn
	conn.SetReadLimit(realtimeReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(2 * realtimePingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * realtimePingInterval))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				client.logger.Debug("realtime read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * realtimePingInterval))

		switch msg.Type {
		case "select":
			org, role, err := s.service.ResolveOrganization(ctx, session, msg.Organization)
			if err != nil {
				_, code, message, _ := mapError(err)
				client.push("control", serverMessage{Type: "error", Code: code, Error: message})
				continue
			}
			client.push("control", serverMessage{Type: "selected", OrganizationID: org.ID, Slug: org.Slug, Role: string(role)})
			selection.Set(org.ID)
		case "unselect":
			selection.Set("")
		default:
			client.push("control", serverMessage{Type: "error", Code: CodeValidation, Error: "unknown message type"})
		}
	}
}

type connectionMirrors struct {
	keywords     *realtime.Mirror[store.Keyword]
	negotiations *realtime.Mirror[store.Negotiation]
	evidences    *realtime.Mirror[store.Evidence]
}

func (s *Service) newMirrors(client *realtimeClient, logger *zap.Logger) *connectionMirrors {
	return &connectionMirrors{
		keywords: realtime.NewMirror(s.feed, realtime.Source[store.Keyword]{
			Table: realtime.TableKeywords,
			List:  s.store.ListKeywords,
			Get:   s.store.GetKeyword,
			ID:    func(k store.Keyword) string { return k.ID },
		}, logger, func(snap realtime.Snapshot[store.Keyword]) {
			client.push(snap.Table, snapshotMessage(snap))
		}),
		negotiations: realtime.NewMirror(s.feed, realtime.Source[store.Negotiation]{
			Table: realtime.TableNegotiations,
			List: func(ctx context.Context, organizationID string) ([]store.Negotiation, error) {
				return s.store.ListNegotiations(ctx, organizationID, nil)
			},
			Get: s.store.GetNegotiation,
			ID:  func(n store.Negotiation) string { return n.ID },
		}, logger, func(snap realtime.Snapshot[store.Negotiation]) {
			client.push(snap.Table, snapshotMessage(snap))
		}),
		evidences: realtime.NewMirror(s.feed, realtime.Source[store.Evidence]{
			Table: realtime.TableEvidences,
			List: func(ctx context.Context, organizationID string) ([]store.Evidence, error) {
				return s.store.ListEvidences(ctx, organizationID, nil)
			},
			Get: s.store.GetEvidence,
			ID:  func(e store.Evidence) string { return e.ID },
		}, logger, func(snap realtime.Snapshot[store.Evidence]) {
			client.push(snap.Table, snapshotMessage(snap))
		}),
	}
}

// selectAll repoints every mirror. Epochs are claimed here, in selection
// order, and only the subscribe and fetch run concurrently. A superseded
// selection is expected when the client switches quickly and is not logged.
func (m *connectionMirrors) selectAll(ctx context.Context, organizationID string, logger *zap.Logger) {
	if organizationID == "" {
		m.close()
		return
	}
	run := func(table string, attach func(context.Context, realtime.Ticket) error, ticket realtime.Ticket) {
		go func() {
			if err := attach(ctx, ticket); err != nil && !errors.Is(err, realtime.ErrStale) && ctx.Err() == nil {
				logger.Warn("mirror select failed", zap.String("table", table), zap.String("organization_id", organizationID), zap.Error(err))
			}
		}()
	}
	run(realtime.TableKeywords, m.keywords.Attach, m.keywords.Begin(organizationID))
	run(realtime.TableNegotiations, m.negotiations.Attach, m.negotiations.Begin(organizationID))
	run(realtime.TableEvidences, m.evidences.Attach, m.evidences.Begin(organizationID))
}

func (m *connectionMirrors) close() {
	m.keywords.Close()
	m.negotiations.Close()
	m.evidences.Close()
}
