package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/famish99/pianodctl/internal/pianod"
)

// Controller is the part of a pianod session the bridge drives.
type Controller interface {
	Status(ctx context.Context) (pianod.Result[pianod.Reply], error)
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

// API handles HTTP control endpoints.
type API struct {
	session Controller
	hub     *Hub
}

// NewAPI creates a new API handler.
func NewAPI(session Controller, hub *Hub) *API {
	return &API{
		session: session,
		hub:     hub,
	}
}

// SongView is the JSON shape of a song.
type SongView struct {
	ID        string `json:"id"`
	Artist    string `json:"artist"`
	Title     string `json:"title"`
	Album     string `json:"album"`
	Station   string `json:"station"`
	Rating    string `json:"rating,omitempty"`
	SeeAlso   string `json:"see_also,omitempty"`
	CoverArt  string `json:"cover_art,omitempty"`
	State     string `json:"state"`
	Total     string `json:"total"`
	Remaining string `json:"remaining"`
	StartedAt int64  `json:"started_at,omitempty"`
}

// NowPlayingResponse is the response for now-playing and status.
type NowPlayingResponse struct {
	State          string   `json:"state"`
	CurrentStation string   `json:"current_station,omitempty"`
	Song           SongView `json:"song"`
}

// CommandResponse is the response for commands.
type CommandResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StationsResponse is the response for the station list.
type StationsResponse struct {
	Count    int      `json:"count"`
	Stations []string `json:"stations"`
}

// SelectRequest is the request body for station selection.
type SelectRequest struct {
	Name string `json:"name" binding:"required"`
}

// NewSongView converts a song snapshot for output.
func NewSongView(song pianod.SongInfo) SongView {
	view := SongView{
		ID:        song.ID,
		Artist:    song.Artist,
		Title:     song.Title,
		Album:     song.Album,
		Station:   song.Station,
		Rating:    song.Rating,
		SeeAlso:   song.SeeAlso,
		CoverArt:  song.CoverArt,
		State:     song.State.String(),
		Total:     pianod.Clock(song.Total),
		Remaining: pianod.Clock(song.Remaining),
	}
	if !song.StartTime.IsZero() {
		view.StartedAt = song.StartTime.Unix()
	}
	return view
}

func (a *API) nowPlaying() NowPlayingResponse {
	song := a.session.SongInfo()
	return NowPlayingResponse{
		State:          song.State.String(),
		CurrentStation: a.session.CurrentStation(),
		Song:           NewSongView(song),
	}
}

// NowPlaying returns the locally tracked state without asking the daemon.
func (a *API) NowPlaying(c *gin.Context) {
	c.JSON(http.StatusOK, a.nowPlaying())
}

// Status refreshes the song from the daemon.
func (a *API) Status(c *gin.Context) {
	res, err := a.session.Status(c.Request.Context())
	if err != nil {
		a.fail(c, "status", err)
		return
	}
	if res.Failed {
		a.refused(c, "status", res.Data)
		return
	}
	c.JSON(http.StatusOK, a.nowPlaying())
}

// Stations lists the user's stations.
func (a *API) Stations(c *gin.Context) {
	res, err := a.session.ListStations(c.Request.Context())
	if err != nil {
		a.fail(c, "stations", err)
		return
	}
	if res.Failed {
		c.JSON(http.StatusConflict, CommandResponse{Status: "failed"})
		return
	}
	stations := res.Data
	if stations == nil {
		stations = []string{}
	}
	c.JSON(http.StatusOK, StationsResponse{Count: len(stations), Stations: stations})
}

// SelectStation switches station.
func (a *API) SelectStation(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, CommandResponse{
			Status:  "error",
			Message: fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	log.Printf("[API] Select station: %s", req.Name)

	res, err := a.session.SelectStation(c.Request.Context(), req.Name)
	if err != nil {
		a.fail(c, "select station", err)
		return
	}
	if res.Failed {
		c.JSON(http.StatusConflict, CommandResponse{
			Status:  "failed",
			Message: fmt.Sprintf("station %q not selected", req.Name),
		})
		return
	}
	c.JSON(http.StatusOK, CommandResponse{Status: "ok", Message: res.Data})
}

// Skip skips the current song.
func (a *API) Skip(c *gin.Context) {
	a.ack(c, "skip", a.session.Skip)
}

// Pause pauses playback.
func (a *API) Pause(c *gin.Context) {
	a.ack(c, "pause", a.session.Pause)
}

// Play resumes playback.
func (a *API) Play(c *gin.Context) {
	a.ack(c, "play", a.session.Play)
}

// Stop stops playback; ?now=true stops immediately.
func (a *API) Stop(c *gin.Context) {
	now := c.Query("now") == "true" || c.Query("now") == "1"
	a.ack(c, "stop", func(ctx context.Context) (pianod.Result[pianod.Reply], error) {
		return a.session.Stop(ctx, now)
	})
}

func (a *API) ack(c *gin.Context, name string, fn func(context.Context) (pianod.Result[pianod.Reply], error)) {
	log.Printf("[API] %s", name)

	res, err := fn(c.Request.Context())
	if err != nil {
		a.fail(c, name, err)
		return
	}
	if res.Failed {
		a.refused(c, name, res.Data)
		return
	}
	c.JSON(http.StatusOK, CommandResponse{Status: "ok"})
}

func (a *API) refused(c *gin.Context, name string, reply pianod.Reply) {
	c.JSON(http.StatusConflict, CommandResponse{
		Status:  "failed",
		Message: fmt.Sprintf("%s: %s %s", name, reply.Terminator.Code, reply.Terminator.Message),
	})
}

func (a *API) fail(c *gin.Context, name string, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, pianod.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	log.Printf("[API] %s failed: %v", name, err)
	c.JSON(status, CommandResponse{Status: "error", Message: err.Error()})
}

// requestTimeout bounds every request's daemon round trip.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
