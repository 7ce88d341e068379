package mpd

import (
	"log"
)

// idleConnection represents a connection waiting in idle mode
type idleConnection struct {
	subsystems map[string]bool // Subsystems to watch (empty = all)
	notify     chan string     // Channel to send subsystem changes
	cancel     chan struct{}   // Channel to cancel idle wait
}

// registerIdle registers an idle connection to receive notifications
func (s *Server) registerIdle(idle *idleConnection) {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	s.idleConns[idle] = true
}

// unregisterIdle removes an idle connection from notifications
func (s *Server) unregisterIdle(idle *idleConnection) {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	delete(s.idleConns, idle)
}

// NotifySubsystemChange wakes every idle connection watching subsystem
func (s *Server) NotifySubsystemChange(subsystem string) {
	s.idleMu.RLock()
	defer s.idleMu.RUnlock()

	for idle := range s.idleConns {
		if len(idle.subsystems) == 0 || idle.subsystems[subsystem] {
			// Send notification (non-blocking)
			select {
			case idle.notify <- subsystem:
			default:
				log.Printf("Warning: idle notification channel full")
			}
		}
	}
}
