package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ConnectionManager fans auction events out to websocket clients. Pools are
// keyed by round id; a client watches exactly one round per connection.
type ConnectionManager struct {
	roundConnections map[uuid.UUID]map[*Connection]bool
	mu               sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
	logger      zerolog.Logger
}

// Connection is one client's websocket.
type Connection struct {
	ID      string
	TeamID  string
	RoundID uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds websocket tunables.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage targets every watcher of a round, or one team's
// connections when TeamID is set.
type BroadcastMessage struct {
	RoundID uuid.UUID
	Event   *AuctionEvent
	TeamID  string
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig, logger zerolog.Logger) *ConnectionManager {
	return &ConnectionManager{
		roundConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
		logger:      logger,
	}
}

// Start processes broadcast messages until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	cm.logger.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			cm.logger.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a websocket watching one
// round.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, teamID string, roundID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cm.logger.Error().Err(err).Msg("failed to upgrade websocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		TeamID:      teamID,
		RoundID:     roundID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	cm.logger.Info().
		Str("connection_id", connection.ID).
		Str("team_id", teamID).
		Str("round_id", roundID.String()).
		Msg("websocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.roundConnections[conn.RoundID] == nil {
		cm.roundConnections[conn.RoundID] = make(map[*Connection]bool)
	}
	cm.roundConnections[conn.RoundID][conn] = true
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.roundConnections[conn.RoundID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			close(conn.Send)

			if len(connections) == 0 {
				delete(cm.roundConnections, conn.RoundID)
			}

			cm.logger.Info().
				Str("connection_id", conn.ID).
				Str("round_id", conn.RoundID.String()).
				Msg("connection unregistered")
		}
	}
}

// BroadcastToRound queues an event for every watcher of the round.
func (cm *ConnectionManager) BroadcastToRound(roundID uuid.UUID, event *AuctionEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{RoundID: roundID, Event: event}:
	default:
		cm.logger.Warn().Str("round_id", roundID.String()).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.roundConnections[message.RoundID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	var targets []*Connection
	for conn := range connections {
		if message.TeamID != "" && conn.TeamID != message.TeamID {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	data, err := json.Marshal(message.Event)
	if err != nil {
		cm.logger.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			// Slow or dead client; drop it rather than stall the round.
			cm.logger.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}
}

// Stats reports connection counts for the health endpoint.
func (cm *ConnectionManager) Stats() map[string]any {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	total := 0
	perRound := make(map[string]int)
	for roundID, connections := range cm.roundConnections {
		total += len(connections)
		perRound[roundID.String()] = len(connections)
	}
	return map[string]any{
		"total_connections": total,
		"active_rounds":     len(cm.roundConnections),
		"round_connections": perRound,
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Manager.logger.Error().Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Manager.logger.Error().Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			break
		}
		// The feed is one-way; client frames only refresh the deadline.
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
