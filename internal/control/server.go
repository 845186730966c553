// Package control exposes a running watchdog over a unix socket so the CLI
// can ask it for live per-service state.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/f1re/watchdog/internal/logging"
	"github.com/f1re/watchdog/internal/types"
)

// Command types
const (
	CommandStatus      = "status"
	CommandTransitions = "transitions"
)

// Command is one request sent to the running watchdog
type Command struct {
	Type string `json:"type"`
	// Service narrows status and transitions to one service
	Service string `json:"service,omitempty"`
	// Limit caps the number of transitions returned
	Limit     int       `json:"limit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceStatus is the live state of one monitored service
type ServiceStatus struct {
	Name    string                    `json:"name"`
	Backend string                    `json:"backend"`
	State   types.ServiceRuntimeState `json:"state"`
}

// TransitionInfo is one phase change as reported over the socket
type TransitionInfo struct {
	Service      string      `json:"service"`
	EpisodeID    string      `json:"episode_id,omitempty"`
	From         types.Phase `json:"from"`
	To           types.Phase `json:"to"`
	FailureCount int         `json:"failure_count"`
	Reason       string      `json:"reason"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Response answers a Command
type Response struct {
	Success     bool             `json:"success"`
	Message     string           `json:"message,omitempty"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at,omitempty"`
	Services    []ServiceStatus  `json:"services,omitempty"`
	Transitions []TransitionInfo `json:"transitions,omitempty"`
}

// HandlerFunc answers one command. Returned errors become failed responses.
type HandlerFunc func(ctx context.Context, cmd Command) (*Response, error)

// Server listens on a unix socket and answers commands. It runs as a
// supervised service and removes the socket file when it stops.
type Server struct {
	socketPath string
	handler    HandlerFunc
	readLimit  time.Duration

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a control server for socketPath
func NewServer(socketPath string, handler HandlerFunc) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("control handler is required")
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	return &Server{socketPath: socketPath, handler: handler, readLimit: 5 * time.Second}, nil
}

// Serve implements suture.Service
func (s *Server) Serve(ctx context.Context) error {
	// A socket left behind by a crashed instance blocks Listen
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create control socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to restrict control socket: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log := logging.Component("control")
	log.Info().Str("socket", s.socketPath).Msg("Control socket listening")

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()
	defer func() {
		_ = os.RemoveAll(s.socketPath)
		log.Info().Msg("Control socket stopped")
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("control socket closed: %w", err)
			}
			log.Warn().Err(err).Msg("Accept failed")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection answers a single command
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.readLimit)); err != nil {
		return
	}

	var cmd Command
	if err := json.NewDecoder(conn).Decode(&cmd); err != nil {
		s.sendResponse(conn, &Response{Error: fmt.Sprintf("failed to decode command: %v", err)})
		return
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now()
	}

	resp, err := s.handler(ctx, cmd)
	switch {
	case err != nil:
		resp = &Response{Message: fmt.Sprintf("command %q failed", cmd.Type), Error: err.Error()}
	case resp == nil:
		resp = &Response{Success: true}
	default:
		resp.Success = true
	}
	s.sendResponse(conn, resp)
}

func (s *Server) sendResponse(conn net.Conn, resp *Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		log := logging.Component("control")
		log.Debug().Err(err).Msg("Failed to send response")
	}
}

// SocketPath returns the path to the control socket
func (s *Server) SocketPath() string {
	return s.socketPath
}

func (s *Server) String() string {
	return "control-socket"
}
