package mpd

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strings"
)

const greeting = "OK MPD 0.23.0\n"

// handleConnection handles a single MPD client connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	log.Printf("New MPD client connected: %s", conn.RemoteAddr())
	fmt.Fprint(conn, greeting)

	// The scanner goroutine feeds lines so an idle wait can also watch
	// for noidle.
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	var list *commandList

	for raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		args, err := splitArgs(line)
		if err != nil {
			fmt.Fprintf(conn, "ACK [2@0] {} %s\n", err)
			continue
		}
		cmd := strings.ToLower(args[0])

		switch {
		case cmd == "command_list_begin" || cmd == "command_list_ok_begin":
			list = &commandList{listOK: cmd == "command_list_ok_begin"}
			continue

		case cmd == "command_list_end" && list != nil:
			fmt.Fprint(conn, list.run(s))
			list = nil
			continue

		case list != nil:
			list.commands = append(list.commands, args)
			continue

		case cmd == "idle":
			resp, ok := s.idle(args[1:], lines)
			fmt.Fprint(conn, resp)
			if !ok {
				return
			}
			continue

		case cmd == "noidle":
			// Not idling, nothing to cancel
			fmt.Fprint(conn, "OK\n")
			continue

		case cmd == "close":
			return
		}

		fmt.Fprint(conn, s.handleCommand(args))
	}

	log.Printf("MPD client disconnected: %s", conn.RemoteAddr())
}

// idle blocks until a watched subsystem changes or the client sends
// noidle. ok is false when the client went away meanwhile.
func (s *Server) idle(subsystems []string, lines <-chan string) (resp string, ok bool) {
	idle := &idleConnection{
		subsystems: make(map[string]bool),
		notify:     make(chan string, 10),
		cancel:     make(chan struct{}),
	}
	for _, sub := range subsystems {
		idle.subsystems[strings.ToLower(sub)] = true
	}
	s.registerIdle(idle)
	defer s.unregisterIdle(idle)

	for {
		select {
		case subsystem := <-idle.notify:
			return fmt.Sprintf("changed: %s\nOK\n", subsystem), true
		case line, open := <-lines:
			if !open {
				return "", false
			}
			if strings.TrimSpace(strings.ToLower(line)) == "noidle" {
				return "OK\n", true
			}
			// Anything else while idle is a protocol error in MPD
			log.Printf("Ignoring %q while idle", line)
		}
	}
}

// commandList buffers commands between command_list_begin and _end
type commandList struct {
	listOK   bool
	commands [][]string
}

// run executes the buffered commands, stopping at the first ACK
func (l *commandList) run(s *Server) string {
	var out strings.Builder
	for i, args := range l.commands {
		resp := s.handleCommand(args)
		if strings.HasPrefix(resp, "ACK ") {
			// Report the failing command's index in the list
			out.WriteString(strings.Replace(resp, "@0]", fmt.Sprintf("@%d]", i), 1))
			return out.String()
		}
		out.WriteString(strings.TrimSuffix(resp, "OK\n"))
		if l.listOK {
			out.WriteString("list_OK\n")
		}
	}
	out.WriteString("OK\n")
	return out.String()
}

// splitArgs tokenizes an MPD command line. Arguments may be double-quoted
// with backslash escapes.
func splitArgs(line string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inQuotes, escaped, quotedToken := false, false, false

	flush := func() {
		if cur.Len() > 0 || quotedToken {
			args = append(args, cur.String())
		}
		cur.Reset()
		quotedToken = false
	}

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case inQuotes && r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
			quotedToken = true
		case !inQuotes && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("missing closing '\"'")
	}
	flush()

	if len(args) == 0 {
		return nil, fmt.Errorf("no command given")
	}
	return args, nil
}
