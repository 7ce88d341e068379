package mpd

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/famish99/pianodctl/internal/pianod"
)

// Player is the part of a pianod session MPD clients can drive
type Player interface {
	Skip(ctx context.Context) (pianod.Result[pianod.Reply], error)
	Pause(ctx context.Context) (pianod.Result[pianod.Reply], error)
	Play(ctx context.Context) (pianod.Result[pianod.Reply], error)
	Stop(ctx context.Context, immediate bool) (pianod.Result[pianod.Reply], error)
	ListStations(ctx context.Context) (pianod.Result[[]string], error)
	SelectStation(ctx context.Context, name string) (pianod.Result[string], error)
	State() pianod.PlaybackState
	SongInfo() pianod.SongInfo
	CurrentStation() string
}

// Server speaks enough of the MPD protocol for mpc and friends to control
// pianod
type Server struct {
	mu       sync.Mutex
	listener net.Listener
	player   Player
	addr     string
	running  bool
	timeout  time.Duration

	// Idle connection management
	idleMu    sync.RWMutex
	idleConns map[*idleConnection]bool
}

// NewServer creates a new MPD protocol server. timeout bounds each
// command's round trip to pianod.
func NewServer(addr string, p Player, timeout time.Duration) *Server {
	return &Server{
		addr:      addr,
		player:    p,
		timeout:   timeout,
		idleConns: make(map[*idleConnection]bool),
	}
}

// Notify implements pianod.Observer: every playback notification wakes
// clients idling on the player subsystem
func (s *Server) Notify(n pianod.Notification) {
	s.NotifySubsystemChange("player")
}

// Start starts the MPD server
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start MPD server: %w", err)
	}

	s.listener = listener
	s.running = true

	log.Printf("MPD server listening on %s", listener.Addr())

	go s.acceptLoop()

	return nil
}

// Addr returns the listening address, nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the MPD server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.listener.Close()
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

func (s *Server) commandContext() (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(context.Background(), s.timeout)
	}
	return context.WithCancel(context.Background())
}
