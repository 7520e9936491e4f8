// Package websocket exposes the subscriber endpoint: every connection
// becomes a fan-out subscriber receiving a full snapshot followed by
// incremental notifications.
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/fanout"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Server upgrades HTTP connections and registers them with the hub.
type Server struct {
	port int
	path string
	hub  *fanout.Hub
	log  *slog.Logger

	upgrader websocket.Upgrader

	mu          sync.Mutex
	httpServer  *http.Server
	clients     map[*client]struct{}
	shutdown    chan struct{}
	wg          sync.WaitGroup
	initialized bool
	running     bool
}

// NewServer creates a Server publishing to the given hub.
func NewServer(port int, path string, hub *fanout.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = "/ws"
	}
	return &Server{
		port: port,
		path: path,
		hub:  hub,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The endpoint serves local visualization clients; origin
			// enforcement belongs to the deployment's reverse proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Initialize validates the server's configuration.
func (s *Server) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hub == nil {
		return errors.WrapFatal(fmt.Errorf("nil hub"), "Server", "Initialize", "hub is required")
	}
	if s.port <= 0 || s.port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Server", "Initialize",
			fmt.Sprintf("port %d out of range", s.port))
	}
	s.shutdown = make(chan struct{})
	s.clients = make(map[*client]struct{})
	s.initialized = true
	return nil
}

// Start begins accepting connections. It returns once the listener is
// running; the server itself runs in background goroutines.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.WrapInvalid(errors.ErrNotStarted, "Server", "Start", "not initialized")
	}
	if s.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "already running")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("websocket server failed", "error", err)
		}
	}()

	s.running = true
	s.log.Info("websocket server started", "port", s.port, "path", s.path)
	return nil
}

// Stop shuts the server down, closing all client connections through the
// hub. It waits up to timeout for background goroutines to exit.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.shutdown)
	srv := s.httpServer
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	// Closing the connections unblocks every read loop.
	for _, c := range clients {
		_ = c.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "Server", "Stop", "wait for client goroutines")
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(conn)
	s.log.Debug("client connected", "subscriber_id", client.ID(), "remote", r.RemoteAddr)

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	// Registration queues the snapshot before any delta can be delivered.
	s.hub.Register(client)

	s.wg.Add(1)
	go s.readLoop(client)
	s.wg.Add(1)
	go s.pingLoop(client)
}

// readLoop drains inbound frames. Clients send nothing the pipeline
// consumes; the loop exists to surface disconnects and service pongs.
func (s *Server) readLoop(c *client) {
	defer s.wg.Done()
	defer func() {
		s.hub.Unregister(c)
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
	}()

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.log.Debug("client disconnected", "subscriber_id", c.ID(), "error", err)
			return
		}
	}
}

// pingLoop keeps the connection alive; a failed ping lets the read loop
// observe the closed connection and unregister the client.
func (s *Server) pingLoop(c *client) {
	defer s.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
