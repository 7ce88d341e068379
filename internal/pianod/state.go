package pianod

import (
	"time"

	"github.com/famish99/pianodctl/internal/protocol"
)

// PlaybackState is the daemon's playback state as seen by the client.
type PlaybackState int

const (
	StateStopped PlaybackState = iota
	StatePlaying
	StatePaused
	StateBetweenSongs
)

func (s PlaybackState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBetweenSongs:
		return "between_songs"
	default:
		return "stopped"
	}
}

// MarshalText renders the state by name in JSON output.
func (s PlaybackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Model is the "now playing" view built from the daemon's status lines.
type Model struct {
	State PlaybackState
	Song  SongInfo

	// PausedAt freezes the remaining-time computation while paused.
	PausedAt time.Time
}

// NewModel returns the model of a freshly connected session.
func NewModel() Model {
	return Model{
		State: StateStopped,
		Song:  DefaultSongInfo(),
	}
}

// Remaining returns how much of the current song is left at now, rounded
// to the nearest second and never negative.
func (m Model) Remaining(now time.Time) time.Duration {
	if m.Song.StartTime.IsZero() {
		return 0
	}
	ref := now
	if m.State == StatePaused && !m.PausedAt.IsZero() {
		ref = m.PausedAt
	}
	left := m.Song.StartTime.Add(m.Song.Total).Sub(ref)
	if left < 0 {
		return 0
	}
	return left.Round(time.Second)
}

// Snapshot returns the song with its state and remaining time filled in.
func (m Model) Snapshot(now time.Time) SongInfo {
	song := m.Song
	song.State = m.State
	song.Remaining = m.Remaining(now)
	return song
}

// Apply feeds one unsolicited line through the state machine and returns
// the updated model along with the notifications it produced. Unknown
// codes leave the model untouched.
func Apply(m Model, line protocol.Line, now time.Time) (Model, []Notification) {
	switch {
	case line.Code == protocol.CodeTime:
		if report, ok := protocol.ParseTimeReport(line.Message); ok {
			m.Song.Total = report.Total
			m.Song.StartTime = now.Add(-report.Elapsed)
		}
		return m.transition(StatePlaying, now)

	case line.Code == protocol.CodePaused:
		return m.transition(StatePaused, now)

	case line.Code == protocol.CodeStopped:
		return m.transition(StateStopped, now)

	case line.Code == protocol.CodeBetweenSongs:
		return m.transition(StateBetweenSongs, now)

	case line.Code == protocol.CodeSongComplete:
		notes := []Notification{{Kind: EventSongComplete, State: m.State, Song: m.Snapshot(now)}}
		m, more := m.transition(StateBetweenSongs, now)
		return m, append(notes, more...)

	case line.Code.IsSongField():
		m.Song.setField(line.Code, protocol.FieldValue(line.Message))
	}
	return m, nil
}

// ApplyFields copies the song fields found in lines into the model
// without touching the playback state.
func ApplyFields(m Model, lines []protocol.Line) Model {
	for _, line := range lines {
		if line.Code.IsSongField() {
			m.Song.setField(line.Code, protocol.FieldValue(line.Message))
		}
	}
	return m
}

func (m Model) transition(next PlaybackState, now time.Time) (Model, []Notification) {
	if m.State == next {
		return m, nil
	}
	prev := m.State
	m.State = next

	var notes []Notification
	switch {
	case next == StatePlaying && (prev == StateBetweenSongs || prev == StateStopped):
		m.PausedAt = time.Time{}
		notes = append(notes, Notification{Kind: EventSongStart, State: next, Song: m.Snapshot(now)})
	case next == StatePlaying && prev == StatePaused:
		m.PausedAt = time.Time{}
		notes = append(notes, Notification{Kind: EventPlaybackResumed, State: next, Song: m.Snapshot(now)})
	case next == StatePaused:
		m.PausedAt = now
		notes = append(notes, Notification{Kind: EventPlaybackPaused, State: next, Song: m.Snapshot(now)})
	default:
		m.PausedAt = time.Time{}
	}

	return m, append(notes, Notification{Kind: EventPlaybackChanged, State: next, Song: m.Snapshot(now)})
}
