package pianod

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/famish99/pianodctl/internal/protocol"
)

var (
	// ErrClosed is returned once the connection to the daemon is gone.
	ErrClosed = errors.New("pianod: connection closed")

	// ErrTimeout is returned when a request is not answered in time. The
	// next caller is admitted only once the late reply has been drained.
	ErrTimeout = errors.New("pianod: request timed out")
)

const (
	readBufferSize = 4096

	defaultDrainTimeout = 10 * time.Second
)

// Options tune a session.
type Options struct {
	// RequestTimeout bounds requests whose context has no deadline. Zero
	// waits until the reply or the connection ends.
	RequestTimeout time.Duration

	// DialTimeout bounds Connect's dial. Zero means no limit.
	DialTimeout time.Duration

	// DrainTimeout bounds the wait for a timed-out request's late reply.
	// If it never arrives the session can no longer pair replies with
	// commands and is closed. Zero uses RequestTimeout, or 10s.
	DrainTimeout time.Duration

	// Username and Password, when Username is set, are sent with USER
	// right after the handshake.
	Username string
	Password string

	// ExpectGreeting starts the session already waiting for the 200 the
	// daemon sends on connect, so the greeting can't be mistaken for an
	// unsolicited line. Handshake then consumes it.
	ExpectGreeting bool

	// Verbose logs every line sent and received.
	Verbose bool

	// Observers are registered before the read loop starts so they see
	// every notification.
	Observers []Observer
}

// Session is one connection to a pianod daemon.
type Session struct {
	conn io.ReadWriteCloser
	opts Options
	gate *Gate
	dec  protocol.Decoder

	mu        sync.Mutex
	pending   *pendingRequest
	greeting  *pendingRequest
	model     Model
	station   string
	observers []Observer

	now func() time.Time

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// pendingRequest is the command currently waiting for its terminator.
type pendingRequest struct {
	id      string
	command string
	asm     *protocol.Assembler
	done    chan []protocol.Packet
}

// Connect dials host:port, waits for the daemon's greeting, logs in when a
// username is configured and loads the current status.
func Connect(ctx context.Context, host string, port int, opts Options) (*Session, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pianod at %s: %w", addr, err)
	}
	log.Printf("Connected to pianod at %s", addr)

	opts.ExpectGreeting = true
	s := NewSession(conn, opts)
	if err := s.Start(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// NewSession wraps an established connection and starts reading from it.
func NewSession(conn io.ReadWriteCloser, opts Options) *Session {
	s := &Session{
		conn:      conn,
		opts:      opts,
		gate:      NewGate(),
		model:     NewModel(),
		observers: append([]Observer(nil), opts.Observers...),
		now:       time.Now,
		closed:    make(chan struct{}),
	}
	if opts.ExpectGreeting {
		s.greeting = s.newPending("", protocol.Until(protocol.CodeOK))
		s.pending = s.greeting
	}
	go s.readLoop()
	return s
}

// Start runs the connection preamble: greeting, optional login, status.
func (s *Session) Start(ctx context.Context) error {
	if err := s.Handshake(ctx); err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	if s.opts.Username != "" {
		res, err := s.Authenticate(ctx, s.opts.Username, s.opts.Password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		if res.Failed {
			log.Printf("Warning: pianod rejected login for user %s", s.opts.Username)
		}
	}

	if _, err := s.Status(ctx); err != nil {
		return fmt.Errorf("initial status failed: %w", err)
	}
	return nil
}

// Observe registers an observer for notifications.
func (s *Session) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// State returns the current playback state.
func (s *Session) State() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.State
}

// SongInfo returns a snapshot of the current song, remaining time included.
func (s *Session) SongInfo() SongInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Snapshot(s.now())
}

// CurrentStation returns the station last selected through this session.
func (s *Session) CurrentStation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.station
}

// Done is closed once the connection is gone.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Err returns why the session ended, nil while it is open or after Close.
func (s *Session) Err() error {
	select {
	case <-s.closed:
		return s.closeErr
	default:
		return nil
	}
}

// Close tears the connection down. Pending and queued requests fail with
// ErrClosed.
func (s *Session) Close() error {
	s.shutdown(nil)
	return nil
}

func (s *Session) shutdown(cause error) {
	s.closeOnce.Do(func() {
		s.closeErr = cause
		close(s.closed)
		s.conn.Close()
		if cause != nil {
			log.Printf("pianod connection lost: %v", cause)
		}
	})
}

// Submit writes command and waits for the reply ending in one of terms. An
// empty command only waits for the daemon to speak. At most one request is
// in flight; others queue in arrival order.
func (s *Session) Submit(ctx context.Context, command string, terms protocol.Terminators) (Reply, error) {
	if err := protocol.CheckArgument(command); err != nil {
		return Reply{}, err
	}
	return s.run(ctx, func() *pendingRequest {
		return s.newPending(command, terms)
	})
}

// Handshake waits for the daemon's greeting.
func (s *Session) Handshake(ctx context.Context) error {
	_, err := s.run(ctx, func() *pendingRequest {
		s.mu.Lock()
		defer s.mu.Unlock()
		if p := s.greeting; p != nil {
			s.greeting = nil
			return p
		}
		return s.newPending("", protocol.Until(protocol.CodeOK))
	})
	return err
}

func (s *Session) newPending(command string, terms protocol.Terminators) *pendingRequest {
	return &pendingRequest{
		id:      uuid.NewString()[:8],
		command: command,
		asm:     protocol.NewAssembler(terms),
		done:    make(chan []protocol.Packet, 1),
	}
}

// run takes the gate, installs the request from next, sends its command
// and waits for the terminator, the deadline or the end of the connection.
func (s *Session) run(ctx context.Context, next func() *pendingRequest) (Reply, error) {
	if _, ok := ctx.Deadline(); !ok && s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	if err := s.gate.Acquire(ctx); err != nil {
		return Reply{}, contextError(err)
	}
	release := true
	defer func() {
		if release {
			s.gate.Release()
		}
	}()

	select {
	case <-s.closed:
		return Reply{}, ErrClosed
	default:
	}

	p := next()
	s.mu.Lock()
	if !p.asm.Done() {
		s.pending = p
	}
	s.mu.Unlock()

	if p.command != "" {
		if s.opts.Verbose {
			log.Printf("[%s] >> %s", p.id, p.command)
		}
		if err := s.write(ctx, p.command); err != nil {
			s.abandon(p)
			return Reply{}, fmt.Errorf("failed to send %q: %w", p.command, err)
		}
	}

	select {
	case packets := <-p.done:
		return s.resolved(p, packets), nil
	case <-ctx.Done():
		// The reply may have landed while we were giving up.
		select {
		case packets := <-p.done:
			return s.resolved(p, packets), nil
		default:
		}
		log.Printf("[%s] %q abandoned: %v", p.id, p.command, ctx.Err())
		// p stays pending so its reply can't resolve the next command;
		// drain hands the gate on.
		release = false
		go s.drain(p)
		return Reply{}, contextError(ctx.Err())
	case <-s.closed:
		s.abandon(p)
		return Reply{}, ErrClosed
	}
}

func (s *Session) resolved(p *pendingRequest, packets []protocol.Packet) Reply {
	reply := Reply{Packets: packets}
	if term, ok := p.asm.Terminator(); ok {
		reply.Terminator = term
	}
	if s.opts.Verbose {
		log.Printf("[%s] << %s %s", p.id, reply.Terminator.Code, reply.Terminator.Message)
	}
	return reply
}

func (s *Session) write(ctx context.Context, command string) error {
	if d, ok := ctx.Deadline(); ok {
		if c, ok := s.conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
			c.SetWriteDeadline(d)
			defer c.SetWriteDeadline(time.Time{})
		}
	}
	_, err := io.WriteString(s.conn, command+"\n")
	return err
}

// drain waits out an abandoned request's reply, then releases the gate. A
// reply that never comes leaves the stream out of step, so the session is
// closed.
func (s *Session) drain(p *pendingRequest) {
	defer s.gate.Release()

	timer := time.NewTimer(s.drainTimeout())
	defer timer.Stop()

	select {
	case <-p.done:
		log.Printf("[%s] late reply to %q discarded", p.id, p.command)
	case <-timer.C:
		s.abandon(p)
		s.shutdown(fmt.Errorf("no reply to %q, replies out of step", p.command))
	case <-s.closed:
		s.abandon(p)
	}
}

func (s *Session) drainTimeout() time.Duration {
	if s.opts.DrainTimeout > 0 {
		return s.opts.DrainTimeout
	}
	if s.opts.RequestTimeout > 0 {
		return s.opts.RequestTimeout
	}
	return defaultDrainTimeout
}

// abandon drops p if it is still the pending request.
func (s *Session) abandon(p *pendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == p {
		s.pending = nil
	}
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// readLoop feeds everything the daemon sends through the decoder and on to
// either the pending request or the state machine.
func (s *Session) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.dispatch(s.dec.Decode(buf[:n]))
		}
		if err != nil {
			s.dispatch(s.dec.Flush())
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			select {
			case <-s.closed:
				// Closed by us.
			default:
				s.shutdown(err)
			}
			return
		}
	}
}

// dispatch routes one chunk's lines. While a request is pending its
// assembler gets them; whatever follows the terminator in the same chunk
// is unsolicited.
func (s *Session) dispatch(lines []protocol.Line) {
	if len(lines) == 0 {
		return
	}
	if s.opts.Verbose {
		for _, line := range lines {
			log.Printf("<< %s %s", line.Code, line.Message)
		}
	}

	s.mu.Lock()
	p := s.pending
	if p == nil {
		s.mu.Unlock()
		s.interpret(lines)
		return
	}
	done, rest := p.asm.Feed(lines)
	if done {
		s.pending = nil
		p.done <- p.asm.Packets()
	}
	s.mu.Unlock()

	if done && len(rest) > 0 {
		s.interpret(rest)
	}
}

// interpret runs unsolicited lines through the state machine and tells
// the observers about every change.
func (s *Session) interpret(lines []protocol.Line) {
	for _, line := range lines {
		s.mu.Lock()
		model, notes := Apply(s.model, line, s.now())
		s.model = model
		observers := s.observers
		s.mu.Unlock()

		for _, n := range notes {
			if s.opts.Verbose {
				log.Printf("pianod %s: %s", n.Kind, n.State)
			}
			for _, o := range observers {
				o.Notify(n)
			}
		}
	}
}

// applyReplyFields updates the song from field lines embedded in a reply.
func (s *Session) applyReplyFields(reply Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = ApplyFields(s.model, reply.Lines())
}
