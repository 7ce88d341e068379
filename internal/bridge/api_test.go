package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/famish99/pianodctl/internal/pianod"
	"github.com/famish99/pianodctl/internal/protocol"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeSession records calls and answers with canned results.
type fakeSession struct {
	calls    []string
	failed   bool
	err      error
	stations []string
	station  string
	song     pianod.SongInfo
}

func (f *fakeSession) result(name string) (pianod.Result[pianod.Reply], error) {
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

func (f *fakeSession) Status(context.Context) (pianod.Result[pianod.Reply], error) {
	return f.result("status")
}
func (f *fakeSession) Skip(context.Context) (pianod.Result[pianod.Reply], error) {
	return f.result("skip")
}
func (f *fakeSession) Pause(context.Context) (pianod.Result[pianod.Reply], error) {
	return f.result("pause")
}
func (f *fakeSession) Play(context.Context) (pianod.Result[pianod.Reply], error) {
	return f.result("play")
}
func (f *fakeSession) Stop(_ context.Context, immediate bool) (pianod.Result[pianod.Reply], error) {
	if immediate {
		return f.result("stop now")
	}
	return f.result("stop")
}
func (f *fakeSession) ListStations(context.Context) (pianod.Result[[]string], error) {
	f.calls = append(f.calls, "stations")
	return pianod.Result[[]string]{Failed: f.failed, Data: f.stations}, f.err
}
func (f *fakeSession) SelectStation(_ context.Context, name string) (pianod.Result[string], error) {
	f.calls = append(f.calls, "select "+name)
	if f.err != nil {
		return pianod.Result[string]{}, f.err
	}
	if !f.failed {
		f.station = name
	}
	return pianod.Result[string]{Failed: f.failed, Data: name}, nil
}
func (f *fakeSession) State() pianod.PlaybackState { return f.song.State }
func (f *fakeSession) SongInfo() pianod.SongInfo { return f.song }
func (f *fakeSession) CurrentStation() string { return f.station }

func setupTestRouter(f *fakeSession) (*gin.Engine, *Hub) {
	hub := NewHub()
	return SetupRouter(NewAPI(f, hub), time.Second), hub
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupRouter_KeepsGinMode(t *testing.T) {
	setupTestRouter(&fakeSession{})
	if gin.Mode() != gin.TestMode {
		t.Errorf("expected gin mode %q to survive router setup, got %q", gin.TestMode, gin.Mode())
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(&fakeSession{})

	w := do(router, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestCommandEndpoints(t *testing.T) {
	tests := []struct {
		path string
		call string
	}{
		{"/skip", "skip"},
		{"/pause", "pause"},
		{"/play", "play"},
		{"/stop", "stop"},
		{"/stop?now=true", "stop now"},
	}

	for _, tt := range tests {
		f := &fakeSession{}
		router, _ := setupTestRouter(f)

		w := do(router, "POST", tt.path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", tt.path, w.Code)
		}
		if len(f.calls) != 1 || f.calls[0] != tt.call {
			t.Errorf("%s: expected call %q, got %v", tt.path, tt.call, f.calls)
		}
	}
}

func TestCommandEndpoint_DaemonRefused(t *testing.T) {
	router, _ := setupTestRouter(&fakeSession{failed: true})

	w := do(router, "POST", "/skip", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	var resp CommandResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "failed" || !strings.Contains(resp.Message, "401") {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCommandEndpoint_TransportErrors(t *testing.T) {
	router, _ := setupTestRouter(&fakeSession{err: pianod.ErrTimeout})
	if w := do(router, "POST", "/pause", ""); w.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504 on timeout, got %d", w.Code)
	}

	router, _ = setupTestRouter(&fakeSession{err: pianod.ErrClosed})
	if w := do(router, "POST", "/pause", ""); w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 on closed connection, got %d", w.Code)
	}
}

func TestStationsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(&fakeSession{stations: []string{"Jazz", "Rock"}})

	w := do(router, "GET", "/stations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp StationsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 2 || resp.Stations[1] != "Rock" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSelectStationEndpoint(t *testing.T) {
	f := &fakeSession{}
	router, _ := setupTestRouter(f)

	w := do(router, "POST", "/stations/select", `{"name": "Rock \"n\" Roll"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if f.station != `Rock "n" Roll` {
		t.Errorf("expected station to be selected, got %q", f.station)
	}

	w = do(router, "POST", "/stations/select", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a name, got %d", w.Code)
	}
}

func TestSelectStationEndpoint_NotFound(t *testing.T) {
	f := &fakeSession{failed: true, station: "Jazz"}
	router, _ := setupTestRouter(f)

	w := do(router, "POST", "/stations/select", `{"name": "Nope"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if f.station != "Jazz" {
		t.Errorf("current station must not change, got %q", f.station)
	}
}

func TestNowPlayingEndpoint(t *testing.T) {
	song := pianod.DefaultSongInfo()
	song.Artist = "Nina Simone"
	song.State = pianod.StatePaused
	song.Total = 210 * time.Second
	song.Remaining = 95 * time.Second
	f := &fakeSession{song: song, station: "Jazz"}
	router, _ := setupTestRouter(f)

	w := do(router, "GET", "/now-playing", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(f.calls) != 0 {
		t.Errorf("now-playing must not talk to the daemon, got %v", f.calls)
	}

	var resp NowPlayingResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.State != "paused" || resp.CurrentStation != "Jazz" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Song.Artist != "Nina Simone" || resp.Song.Total != "03:30" || resp.Song.Remaining != "01:35" {
		t.Errorf("unexpected song %+v", resp.Song)
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := &fakeSession{song: pianod.DefaultSongInfo()}
	router, _ := setupTestRouter(f)

	w := do(router, "GET", "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(f.calls) != 1 || f.calls[0] != "status" {
		t.Errorf("expected a status round trip, got %v", f.calls)
	}
}
