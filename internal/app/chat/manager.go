package chat

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"strangerchat/internal/pkg/logx"
)

// Manager tracks every live Client so the server can close them on shutdown.
type Manager struct {
	engine  Engine
	devices DeviceRegistrar

	// mu protects clients and closed.
	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool

	// wg waits for every client's pumps to return during shutdown.
	wg sync.WaitGroup

	// structured logger with Manager context.
	logger zerolog.Logger
}

// NewManager constructs a Manager whose clients drive engine and register devices.
func NewManager(engine Engine, devices DeviceRegistrar) *Manager {
	return &Manager{
		engine:  engine,
		devices: devices,
		clients: make(map[*Client]struct{}),
		logger:  logx.Component("manager"),
	}
}

// Serve runs a client on wsConn until the connection ends. It blocks.
func (m *Manager) Serve(wsConn *websocket.Conn, remoteIP string) {
	client := NewClient(wsConn, m.engine, m.devices, remoteIP)

	if !m.add(client) {
		client.Close(websocket.CloseGoingAway, "Server shutting down")
		_ = wsConn.Close()
		return
	}
	defer m.remove(client)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		client.WritePump()
	}()

	client.ReadPump()
}

// Count returns the number of live connections.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

func (m *Manager) add(c *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.clients[c] = struct{}{}
	m.wg.Add(1)
	return true
}

func (m *Manager) remove(c *Client) {
	m.mu.Lock()
	delete(m.clients, c)
	m.mu.Unlock()

	m.wg.Done()
}

// Shutdown refuses new clients, sends every live client a going-away close frame
// and waits for their pumps to return.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	clients := make([]*Client, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	m.logger.Info().Int("clients", len(clients)).Msg("Closing client connections...")

	for _, c := range clients {
		c.Close(websocket.CloseGoingAway, "Server shutting down")
	}

	m.wg.Wait()
	m.logger.Info().Msg("Manager shutdown complete.")
}
