package websocket

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/audit"
)

// Manager handles WebSocket connections and fans emitted domain events out
// to external audit/indexing consumers.
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
	hub         *Hub
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// Connection represents a subscribed audit consumer.
type Connection struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan audit.Event
	LastActivity time.Time
	RemoteAddr   string
}

// Hub manages the broadcast of events to connections.
type Hub struct {
	connections map[*Connection]bool
	broadcast   chan audit.Event
	register    chan *Connection
	unregister  chan *Connection
	stop        chan struct{}
}

// NewManager creates a new WebSocket manager.
func NewManager(logger *zap.Logger) *Manager {
	hub := &Hub{
		connections: make(map[*Connection]bool),
		broadcast:   make(chan audit.Event, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		stop:        make(chan struct{}),
	}

	go hub.run()

	return &Manager{
		connections: make(map[string]*Connection),
		hub:         hub,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// In production, implement proper origin checking
				return true
			},
		},
	}
}

// Broadcast implements audit.Broadcaster. Events are dropped if the hub's
// buffer is full; the durable record is the audit_events table.
func (m *Manager) Broadcast(event audit.Event) {
	select {
	case m.hub.broadcast <- event:
	default:
		m.logger.Warn("event stream buffer full, dropping broadcast",
			zap.String("event_type", string(event.EventType)))
	}
}

// HandleConnection upgrades an HTTP request and registers the subscriber.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:           uuid.New().String(),
		Conn:         conn,
		Send:         make(chan audit.Event, 256),
		LastActivity: time.Now(),
		RemoteAddr:   r.RemoteAddr,
	}

	m.hub.register <- connection

	m.mu.Lock()
	m.connections[connection.ID] = connection
	m.mu.Unlock()

	go m.writePump(connection)
	go m.readPump(connection)

	return connection, nil
}

// Close shuts the hub down.
func (m *Manager) Close() {
	close(m.hub.stop)
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.connections[conn] = true
		case conn := <-h.unregister:
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				close(conn.Send)
			}
		case event := <-h.broadcast:
			for conn := range h.connections {
				select {
				case conn.Send <- event:
				default:
					// Slow consumer, disconnect it.
					delete(h.connections, conn)
					close(conn.Send)
				}
			}
		case <-h.stop:
			for conn := range h.connections {
				close(conn.Send)
				conn.Conn.Close()
			}
			return
		}
	}
}

func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-conn.Send:
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteJSON(event); err != nil {
				m.logger.Debug("event stream write failed",
					zap.String("connection_id", conn.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) readPump(conn *Connection) {
	defer func() {
		m.hub.unregister <- conn
		m.mu.Lock()
		delete(m.connections, conn.ID)
		m.mu.Unlock()
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.LastActivity = time.Now()
		return nil
	})

	for {
		// Subscribers do not send messages; reads only service control frames.
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
