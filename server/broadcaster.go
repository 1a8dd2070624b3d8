package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Uranury/snmphub/logging"
	"github.com/Uranury/snmphub/sensors"
)

// writeWait bounds how long a single client may hold up Publish.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Broadcaster pushes every published snapshot to the connected websocket clients.
type Broadcaster struct {
	logger    logging.Logger
	writeWait time.Duration

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewBroadcaster(logger logging.Logger) *Broadcaster {
	return &Broadcaster{
		logger:    logger,
		writeWait: writeWait,
		clients:   make(map[*websocket.Conn]bool),
	}
}

// Serve upgrades the request and keeps the client registered until it disconnects.
func (b *Broadcaster) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	b.mu.Lock()
	b.clients[conn] = true
	b.logger.Info("Client connected. Total clients: %d", len(b.clients))
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.logger.Info("Client disconnected. Total clients: %d", len(b.clients))
		b.mu.Unlock()
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish sends readings to every client, dropping the ones that fail or do
// not accept the message within the write deadline.
func (b *Broadcaster) Publish(readings []sensors.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for client := range b.clients {
		client.SetWriteDeadline(time.Now().Add(b.writeWait))
		if err := client.WriteJSON(readings); err != nil {
			b.logger.Error("WebSocket write error: %v", err)
			client.Close()
			delete(b.clients, client)
		}
	}
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
