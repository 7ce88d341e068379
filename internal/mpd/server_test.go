package mpd

import (
	"bufio"
	"context"
	"net"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/famish99/pianodctl/internal/pianod"
	"github.com/famish99/pianodctl/internal/protocol"
)

type fakePlayer struct {
	mu       sync.Mutex
	calls    []string
	failed   bool
	err      error
	stations []string
	song     pianod.SongInfo
}

func (f *fakePlayer) result(name string) (pianod.Result[pianod.Reply], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.err != nil {
		return pianod.Result[pianod.Reply]{}, f.err
	}
	reply := pianod.Reply{Terminator: protocol.Line{Code: protocol.CodeOK, Message: "Success"}}
	if f.failed {
		reply.Terminator = protocol.Line{Code: 401, Message: "Not authorized"}
	}
	return pianod.Result[pianod.Reply]{Failed: f.failed, Data: reply}, nil
}

func (f *fakePlayer) Skip(context.Context) (pianod.Result[pianod.Reply], error) {
	return f.result("skip")
}
func (f *fakePlayer) Pause(context.Context) (pianod.Result[pianod.Reply], error) {
	return f.result("pause")
}
func (f *fakePlayer) Play(context.Context) (pianod.Result[pianod.Reply], error) {
	return f.result("play")
}
func (f *fakePlayer) Stop(_ context.Context, immediate bool) (pianod.Result[pianod.Reply], error) {
	if immediate {
		return f.result("stop now")
	}
	return f.result("stop")
}
func (f *fakePlayer) ListStations(context.Context) (pianod.Result[[]string], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stations")
	return pianod.Result[[]string]{Failed: f.failed, Data: f.stations}, f.err
}
func (f *fakePlayer) SelectStation(_ context.Context, name string) (pianod.Result[string], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "select "+name)
	return pianod.Result[string]{Failed: f.failed, Data: name}, f.err
}
func (f *fakePlayer) State() pianod.PlaybackState { return f.song.State }
func (f *fakePlayer) SongInfo() pianod.SongInfo { return f.song }
func (f *fakePlayer) CurrentStation() string { return "" }

func (f *fakePlayer) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{line: "status", want: []string{"status"}},
		{line: "pause 1", want: []string{"pause", "1"}},
		{line: `load "Jazz Radio"`, want: []string{"load", "Jazz Radio"}},
		{line: `load "say \"hi\" \\ there"`, want: []string{"load", `say "hi" \ there`}},
		{line: `load ""`, want: []string{"load", ""}},
		{line: "  ping\t ", want: []string{"ping"}},
		{line: `load "unterminated`, wantErr: true},
		{line: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := splitArgs(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("splitArgs(%q) succeeded, want error", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("splitArgs(%q): %v", tt.line, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitArgs(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestHandleCommand(t *testing.T) {
	playing := pianod.SongInfo{
		ID: "abc", Artist: "Artist", Title: "Title", Album: "Album", Station: "Jazz",
		State: pianod.StatePlaying, Total: 200 * time.Second, Remaining: 150 * time.Second,
	}

	tests := []struct {
		name      string
		player    *fakePlayer
		args      []string
		want      []string
		wantCalls []string
	}{
		{
			name:   "status while playing",
			player: &fakePlayer{song: playing},
			args:   []string{"status"},
			want:   []string{"state: play\n", "time: 50:200\n", "elapsed: 50\n", "duration: 200\n", "OK\n"},
		},
		{
			name:   "status while stopped has no time",
			player: &fakePlayer{song: pianod.DefaultSongInfo()},
			args:   []string{"status"},
			want:   []string{"state: stop\n", "OK\n"},
		},
		{
			name:   "currentsong",
			player: &fakePlayer{song: playing},
			args:   []string{"currentsong"},
			want:   []string{"file: pianod://abc\n", "Artist: Artist\n", "Title: Title\n", "Name: Jazz\n", "Time: 200\n"},
		},
		{
			name:      "pause toggles while playing",
			player:    &fakePlayer{song: playing},
			args:      []string{"pause"},
			want:      []string{"OK\n"},
			wantCalls: []string{"pause"},
		},
		{
			name:      "pause toggles while paused",
			player:    &fakePlayer{song: pianod.SongInfo{State: pianod.StatePaused}},
			args:      []string{"pause"},
			want:      []string{"OK\n"},
			wantCalls: []string{"play"},
		},
		{
			name:   "pause rejects bad argument",
			player: &fakePlayer{},
			args:   []string{"pause", "yes"},
			want:   []string{"ACK [2@0] {pause}"},
		},
		{
			name:      "play is a no-op while playing",
			player:    &fakePlayer{song: playing},
			args:      []string{"play"},
			want:      []string{"OK\n"},
			wantCalls: nil,
		},
		{
			name:      "stop is immediate",
			player:    &fakePlayer{},
			args:      []string{"stop"},
			wantCalls: []string{"stop now"},
			want:      []string{"OK\n"},
		},
		{
			name:      "next refused by daemon",
			player:    &fakePlayer{failed: true},
			args:      []string{"next"},
			want:      []string{"ACK [50@0] {next} Not authorized\n"},
			wantCalls: []string{"skip"},
		},
		{
			name:      "listplaylists",
			player:    &fakePlayer{stations: []string{"Jazz", "Rock"}},
			args:      []string{"listplaylists"},
			want:      []string{"playlist: Jazz\nplaylist: Rock\nOK\n"},
			wantCalls: []string{"stations"},
		},
		{
			name:      "load selects station",
			player:    &fakePlayer{},
			args:      []string{"load", "Jazz Radio"},
			want:      []string{"OK\n"},
			wantCalls: []string{"select Jazz Radio"},
		},
		{
			name:      "load unknown station",
			player:    &fakePlayer{failed: true},
			args:      []string{"load", "Nope"},
			want:      []string{"ACK [50@0] {load} No such playlist\n"},
			wantCalls: []string{"select Nope"},
		},
		{
			name:      "load transport error",
			player:    &fakePlayer{err: pianod.ErrClosed},
			args:      []string{"load", "Jazz"},
			want:      []string{"ACK [52@0] {load}"},
			wantCalls: []string{"select Jazz"},
		},
		{
			name:   "unknown command",
			player: &fakePlayer{},
			args:   []string{"Frobnicate"},
			want:   []string{"ACK [5@0] {frobnicate} unknown command \"Frobnicate\"\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer("127.0.0.1:0", tt.player, time.Second)
			got := s.handleCommand(tt.args)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("response %q does not contain %q", got, w)
				}
			}
			if calls := tt.player.recorded(); len(calls) != 0 || len(tt.wantCalls) != 0 {
				if !reflect.DeepEqual(calls, tt.wantCalls) {
					t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
				}
			}
		})
	}
}

// client drives handleConnection over an in-memory pipe.
type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialPipe(t *testing.T, s *Server) *client {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	go s.handleConnection(serverConn)
	t.Cleanup(func() { clientConn.Close() })

	c := &client{t: t, conn: clientConn, r: bufio.NewReader(clientConn)}
	if got := c.readLine(); got != strings.TrimSpace(greeting) {
		t.Fatalf("greeting = %q", got)
	}
	return c
}

func (c *client) send(line string) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

func (c *client) readLine() string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return strings.TrimSuffix(line, "\n")
}

// readResponse reads up to and including the OK or ACK line.
func (c *client) readResponse() []string {
	c.t.Helper()
	var lines []string
	for {
		line := c.readLine()
		lines = append(lines, line)
		if line == "OK" || strings.HasPrefix(line, "ACK ") {
			return lines
		}
	}
}

func TestConnectionCommandList(t *testing.T) {
	p := &fakePlayer{stations: []string{"Jazz"}}
	c := dialPipe(t, NewServer("127.0.0.1:0", p, time.Second))

	c.send("command_list_ok_begin")
	c.send("ping")
	c.send("listplaylists")
	c.send("command_list_end")

	want := []string{"list_OK", "playlist: Jazz", "list_OK", "OK"}
	if got := c.readResponse(); !reflect.DeepEqual(got, want) {
		t.Errorf("response = %q, want %q", got, want)
	}
}

func TestConnectionCommandListStopsAtError(t *testing.T) {
	p := &fakePlayer{}
	c := dialPipe(t, NewServer("127.0.0.1:0", p, time.Second))

	c.send("command_list_begin")
	c.send("ping")
	c.send("bogus")
	c.send("next")
	c.send("command_list_end")

	got := c.readResponse()
	if len(got) != 1 || !strings.HasPrefix(got[0], "ACK [5@1] {bogus}") {
		t.Errorf("response = %q, want ACK for the second command", got)
	}
	if calls := p.recorded(); len(calls) != 0 {
		t.Errorf("commands after the failure ran: %v", calls)
	}
}

func waitForIdle(t *testing.T, s *Server) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.idleMu.RLock()
		n := len(s.idleConns)
		s.idleMu.RUnlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("client never entered idle")
}

func TestConnectionIdleWakesOnPlayback(t *testing.T) {
	s := NewServer("127.0.0.1:0", &fakePlayer{}, time.Second)
	c := dialPipe(t, s)

	c.send("idle player")
	waitForIdle(t, s)

	// Not watched
	s.NotifySubsystemChange("playlist")
	s.Notify(pianod.Notification{Kind: pianod.EventSongStart})

	want := []string{"changed: player", "OK"}
	if got := c.readResponse(); !reflect.DeepEqual(got, want) {
		t.Errorf("response = %q, want %q", got, want)
	}

	// Back to normal command processing
	c.send("ping")
	if got := c.readResponse(); !reflect.DeepEqual(got, []string{"OK"}) {
		t.Errorf("ping after idle = %q", got)
	}
}

func TestConnectionNoIdle(t *testing.T) {
	s := NewServer("127.0.0.1:0", &fakePlayer{}, time.Second)
	c := dialPipe(t, s)

	c.send("idle")
	waitForIdle(t, s)
	c.send("noidle")

	if got := c.readResponse(); !reflect.DeepEqual(got, []string{"OK"}) {
		t.Errorf("noidle response = %q", got)
	}
}

func TestServerStartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", &fakePlayer{}, time.Second)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if err := s.Start(); err == nil {
		t.Error("second Start succeeded")
	}

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if line != greeting {
		t.Errorf("greeting = %q, want %q", line, greeting)
	}
}
