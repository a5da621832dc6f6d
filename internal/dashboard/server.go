// Package dashboard provides a real-time WebSocket server for studio
// monitoring.
//
// The dashboard broadcasts catalog changes and sync lifecycle events to
// connected WebSocket clients and serves JSON snapshots of the sync
// status and history for polling clients.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/universalyoga/studiosync/internal/store"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeRecordUpdate indicates a course or instance was created,
	// updated, or deleted
	MessageTypeRecordUpdate MessageType = "record_update"

	// MessageTypeSyncStarted indicates a sync attempt began
	MessageTypeSyncStarted MessageType = "sync_started"

	// MessageTypeSyncComplete indicates a sync attempt finished
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeStats indicates updated catalog statistics
	MessageTypeStats MessageType = "stats"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// RecordUpdateData contains catalog change information
type RecordUpdateData struct {
	Kind   string `json:"kind"` // course, instance
	ID     int    `json:"id"`
	Action string `json:"action"` // created, updated, deleted
	Name   string `json:"name,omitempty"`
}

// SyncEventData contains sync lifecycle information
type SyncEventData struct {
	Status   string `json:"status"`
	Type     string `json:"type"` // auto, force
	Duration int64  `json:"duration_ms,omitempty"`
	DataSize int    `json:"data_size,omitempty"`
}

// StatsData contains catalog statistics
type StatsData struct {
	Courses   int `json:"courses"`
	Instances int `json:"instances"`
}

// StatusProvider reports the scheduler state for the /status endpoint.
type StatusProvider interface {
	Status() string
	IsSyncing() bool
	Enabled() bool
}

// Server manages WebSocket connections and serves monitoring endpoints
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	db        *store.DB
	scheduler StatusProvider

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// Message broadcasting
	broadcast chan Message

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on. Zero picks a random available port.
	Port int

	// Store backs the /status and /history endpoints. Required.
	Store *store.DB

	// Scheduler reports sync state for /status. Optional.
	Scheduler StatusProvider

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// NewServer creates a new dashboard WebSocket server
func NewServer(config Config) (*Server, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		db:        config.Store,
		scheduler: config.Scheduler,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}, nil
}

// SetStatusProvider attaches the scheduler after construction. The
// scheduler broadcasts through a Handler on this server, so the two are
// built in server-first order. Call before Start.
func (s *Server) SetStatusProvider(p StatusProvider) {
	s.scheduler = p
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("Dashboard server stopped")
	return nil
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop handles message broadcasting to all clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Send outside the read lock so a slow client cannot block
			// broadcasts.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Allow all origins for development
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// Greet with a stats snapshot so new clients render immediately.
	if stats, err := s.currentStats(r.Context()); err == nil {
		data, _ := json.Marshal(stats)
		welcome := Message{Type: MessageTypeStats, Timestamp: time.Now(), Data: data}
		welcomeJSON, _ := json.Marshal(welcome)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = conn.Write(ctx, websocket.MessageText, welcomeJSON)
		cancel()
	}

	go s.readLoop(conn)
}

// readLoop keeps the WebSocket connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		// Client messages are not processed, the read just detects
		// disconnects.
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

func (s *Server) currentStats(ctx context.Context) (*StatsData, error) {
	courses, err := s.db.CourseCount(ctx)
	if err != nil {
		return nil, err
	}
	instances, err := s.db.InstanceCount(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsData{Courses: courses, Instances: instances}, nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": clientCount,
	})
}

// handleStatus returns catalog counts and scheduler state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.currentStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	payload := map[string]any{
		"courses":   stats.Courses,
		"instances": stats.Instances,
	}
	if s.scheduler != nil {
		payload["sync_status"] = s.scheduler.Status()
		payload["syncing"] = s.scheduler.IsSyncing()
		payload["autosync_enabled"] = s.scheduler.Enabled()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// handleHistory returns recent sync history rows, newest first
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.db.ListSyncHistory(r.Context(), 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(history)
}

// handleRoot returns basic server information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>StudioSync Dashboard</title>
</head>
<body>
    <h1>StudioSync Dashboard Server</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Sync status: <a href="/status">/status</a></p>
    <p>Sync history: <a href="/history">/history</a></p>
    <p>Connect a WebSocket client to receive real-time catalog updates.</p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
