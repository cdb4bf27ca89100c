package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/tolelom/triviachain/events"
	"go.uber.org/zap"
)

const clientBuffer = 64

type client struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	types map[events.EventType]bool // empty → every type
}

func (c *client) wants(typ events.EventType) bool {
	return len(c.types) == 0 || c.types[typ]
}

// writePump forwards queued events to the connection until ctx ends or the
// send channel is closed.
func (c *client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Stream fans committed chain events out to websocket clients. A client that
// falls a full buffer behind is disconnected rather than slowing execution.
type Stream struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *zap.Logger
}

// NewStream creates a Stream fed by emitter.
func NewStream(emitter *events.Emitter, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stream{clients: make(map[string]*client), logger: logger.Named("stream")}
	emitter.SubscribeAll(s.broadcast)
	return s
}

// ServeHTTP upgrades the request and streams events. The optional "types"
// query parameter is a comma-separated list of event types to receive.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug("accept", zap.Error(err))
		return
	}
	c := &client{
		id:    uuid.NewString(),
		conn:  conn,
		send:  make(chan []byte, clientBuffer),
		types: parseTypes(r.URL.Query().Get("types")),
	}
	s.register(c)
	defer s.unregister(c.id)

	// Clients only listen; CloseRead handles control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	c.writePump(ctx)
	conn.Close(websocket.StatusNormalClosure, "")
}

// Clients returns the number of connected clients.
func (s *Stream) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Stream) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
}

func (s *Stream) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[id]; ok {
		close(c.send)
		delete(s.clients, id)
	}
}

func (s *Stream) broadcast(ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("marshal event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}

	var slow []string
	s.mu.RLock()
	for id, c := range s.clients {
		if !c.wants(ev.Type) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range slow {
		s.logger.Debug("dropping slow client", zap.String("client", id))
		s.unregister(id)
	}
}

func parseTypes(q string) map[events.EventType]bool {
	if q == "" {
		return nil
	}
	types := make(map[events.EventType]bool)
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types[events.EventType(t)] = true
		}
	}
	return types
}
