// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	applog "spectrometer/internal/log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// LevelsPath is the endpoint clients connect to.
const LevelsPath = "/levels"

// DefaultWriteTimeout bounds a single frame write to one client.
const DefaultWriteTimeout = 2 * time.Second

// WebSocketTransport implements the Transport interface for WebSocket connections.
// Each frame is encoded once and handed to every connected client as a JSON
// text message. Every client has its own writer goroutine and a one frame
// queue, so a client that stops reading only loses frames and never holds up
// the others or Close.
type WebSocketTransport struct {
	addr         string
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	clients      map[*wsClient]struct{}
	clientsMu    sync.Mutex
	broadcast    chan []byte
	server       *http.Server
	done         chan struct{}
	closeOnce    sync.Once
}

type wsClient struct {
	conn     *websocket.Conn
	send     chan []byte
	gone     chan struct{}
	goneOnce sync.Once
}

// close unblocks the writer and reader. Safe to call concurrently.
func (c *wsClient) close() {
	c.goneOnce.Do(func() {
		close(c.gone)
		c.conn.Close()
	})
}

// NewWebSocketTransport creates a transport for addr and starts its
// broadcast goroutine. Call Start to listen, or mount Handler elsewhere.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local visualisers are served from anywhere.
			},
		},
		writeTimeout: DefaultWriteTimeout,
		clients:      make(map[*wsClient]struct{}),
		broadcast:    make(chan []byte, 16),
		done:         make(chan struct{}),
	}

	go wst.handleBroadcasts()
	return wst
}

// Handler returns the HTTP handler serving LevelsPath.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(LevelsPath, wst.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves in the background.
// Listen errors are returned; later server errors are logged.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", wst.addr, err)
	}

	wst.server = &http.Server{Handler: wst.Handler()}

	go func() {
		applog.Infof("WebSocketTransport: Serving ws://%s%s", ln.Addr(), LevelsPath)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	return nil
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}
	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 1),
		gone: make(chan struct{}),
	}

	wst.clientsMu.Lock()
	select {
	case <-wst.done:
		wst.clientsMu.Unlock()
		client.close()
		return
	default:
	}
	wst.clients[client] = struct{}{}
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client connected, total: %d", total)

	go wst.writeLoop(client)

	// Clients never send anything; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wst.drop(client, "disconnected")
	}()
}

// writeLoop writes queued frames to one client. A write that misses the
// deadline drops the client.
func (wst *WebSocketTransport) writeLoop(c *wsClient) {
	for {
		select {
		case <-c.gone:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wst.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				applog.Warnf("WebSocketTransport: Error sending to client: %v", err)
				wst.drop(c, "dropped")
				return
			}
		}
	}
}

// drop removes c from the broadcast set and closes it.
func (wst *WebSocketTransport) drop(c *wsClient, reason string) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[c]
	delete(wst.clients, c)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	c.close()
	if ok {
		applog.Infof("WebSocketTransport: Client %s, total: %d", reason, total)
	}
}

// handleBroadcasts queues each message for every client. A client whose
// queue is still full misses the message.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case msg := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				select {
				case client.send <- msg:
				default:
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send encodes frame and queues it for broadcast. When the queue is full the
// frame is dropped; a newer one follows on the next poll.
func (wst *WebSocketTransport) Send(frame Frame) error {
	msg, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", frame.Seq, err)
	}
	select {
	case <-wst.done:
		return fmt.Errorf("websocket transport is closed")
	default:
	}
	select {
	case wst.broadcast <- msg:
	default:
		applog.Debugf("WebSocketTransport: Broadcast queue full, dropped frame %d", frame.Seq)
	}
	return nil
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Close shuts down the WebSocket server and disconnects every client
// without waiting for pending writes.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")

		wst.clientsMu.Lock()
		close(wst.done)
		clients := wst.clients
		wst.clients = make(map[*wsClient]struct{})
		wst.clientsMu.Unlock()

		for client := range clients {
			client.close()
		}

		if wst.server != nil {
			err = wst.server.Close()
		}
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
