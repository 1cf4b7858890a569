package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/landevice/lanmanager/internal/access"
	"github.com/landevice/lanmanager/internal/auth"
	"github.com/landevice/lanmanager/internal/command"
	"github.com/landevice/lanmanager/internal/discovery"
	"github.com/landevice/lanmanager/internal/storage"
	"github.com/landevice/lanmanager/internal/sysinfo"
)

// channelBufferSize is the per-client outbound queue. Slow clients fall
// behind and drop broadcasts instead of blocking the hub.
const channelBufferSize = 64

// statusInterval is how often host vitals are broadcast to the channel.
const statusInterval = 5 * time.Second

// Options wires the server's collaborators. All policy callbacks are
// re-evaluated per request so config edits apply without a restart.
type Options struct {
	Addr string

	Gate     *auth.Gate
	Executor *command.Executor
	SysInfo  *sysinfo.Provider

	// AccessPolicy returns the current blacklist snapshot.
	AccessPolicy func() access.Policy

	// Registry lists discovered peers for the devices endpoint. Optional.
	Registry *discovery.Registry

	// Audit serves the recent-commands endpoint. Optional.
	Audit *storage.AuditStore

	// Identity fields reported by the health endpoint.
	DeviceUUID string
	DeviceName string
	Version    string

	// StatusSource overrides the vitals probe for the periodic broadcast.
	// Defaults to a live sysinfo collection.
	StatusSource func() (cpu, memory float64)
}

// Server owns the HTTP listener and the WebSocket hub.
type Server struct {
	opts Options

	mu      sync.RWMutex
	clients map[*Client]bool
	stopped bool

	broadcast  chan Message
	upgrader   websocket.Upgrader
	httpServer *http.Server

	statusDone chan struct{}
}

// New creates a server. Nothing listens until Start.
func New(opts Options) *Server {
	if opts.StatusSource == nil {
		opts.StatusSource = liveStatus
	}
	if opts.Version == "" {
		opts.Version = discovery.DefaultVersion
	}
	return &Server{
		opts:      opts,
		clients:   make(map[*Client]bool),
		broadcast: make(chan Message, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Peers on the LAN connect from arbitrary origins (native
			// apps send none at all); the blacklist and token auth are
			// the real gatekeepers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		statusDone: make(chan struct{}),
	}
}

// liveStatus probes current CPU and memory usage for the status broadcast.
func liveStatus() (float64, float64) {
	snap, err := sysinfo.Collect()
	if err != nil {
		return 0, 0
	}
	return snap.CPUUsage, snap.MemoryPercent
}

// Start creates the listener and begins serving in the background. The
// returned channel reports the startup outcome: nil once the listener is
// accepting, or the bind error.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		errCh <- fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
		close(errCh)
		return errCh
	}

	s.httpServer = &http.Server{Handler: s.Handler()}

	go s.runBroadcaster()
	go s.runStatusBroadcaster()

	go func() {
		log.Printf("server: listening on %s", s.opts.Addr)
		errCh <- nil
		close(errCh)

		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve: %v", err)
		}
	}()

	return errCh
}

// Shutdown stops the status broadcaster, disconnects all clients, and shuts
// the HTTP server down within the context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true

	close(s.statusDone)

	for client := range s.clients {
		client.closeSend()
	}
	s.clients = make(map[*Client]bool)

	// Closed after stopped=true so concurrent Broadcast calls see the
	// flag before reaching the channel.
	close(s.broadcast)
	s.mu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Broadcast queues a message for every connected client. Non-blocking; when
// the hub queue is full the message is dropped.
func (s *Server) Broadcast(msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return
	}
	select {
	case s.broadcast <- msg:
	default:
		log.Printf("server: broadcast queue full, dropping %s", msg.Type)
	}
}

// BroadcastLog streams a log line to connected clients.
func (s *Server) BroadcastLog(level, text string) {
	s.Broadcast(NewLogMessage(time.Now().UnixMilli(), level, text))
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// runBroadcaster fans messages out to clients that may receive them.
// Unauthenticated sockets only ever see auth traffic, which is sent
// directly, never broadcast.
func (s *Server) runBroadcaster() {
	for msg := range s.broadcast {
		s.mu.RLock()
		for client := range s.clients {
			if !client.canReceive() {
				continue
			}
			select {
			case <-client.done:
			case client.send <- msg:
			default:
				log.Printf("server: client queue full, dropping %s", msg.Type)
			}
		}
		s.mu.RUnlock()
	}
}

// runStatusBroadcaster pushes host vitals at a fixed interval until
// shutdown.
func (s *Server) runStatusBroadcaster() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.statusDone:
			return
		case <-ticker.C:
			if s.ClientCount() == 0 {
				continue
			}
			cpu, memory := s.opts.StatusSource()
			s.Broadcast(NewStatusUpdateMessage(cpu, memory))
		}
	}
}

// register adds a connected client to the hub.
func (s *Server) register(c *Client) {
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	log.Printf("server: client connected from %s (%d total)", c.remoteAddr, s.ClientCount())
}

// unregister removes a client; called from the client's readPump on exit.
func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	log.Printf("server: client disconnected (%d remaining)", s.ClientCount())
}
