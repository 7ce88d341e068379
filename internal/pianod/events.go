package pianod

// EventKind identifies a session notification.
type EventKind int

const (
	EventPlaybackChanged EventKind = iota
	EventSongStart
	EventSongComplete
	EventPlaybackPaused
	EventPlaybackResumed
)

func (k EventKind) String() string {
	switch k {
	case EventSongStart:
		return "song-start"
	case EventSongComplete:
		return "song-complete"
	case EventPlaybackPaused:
		return "playback-paused"
	case EventPlaybackResumed:
		return "playback-resumed"
	default:
		return "playback-changed"
	}
}

// MarshalText renders the kind by name in JSON output.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Notification is raised by the state machine when playback changes.
// State is the playback state after the change; Song is a snapshot taken
// when the notification was produced.
type Notification struct {
	Kind  EventKind     `json:"type"`
	State PlaybackState `json:"state"`
	Song  SongInfo      `json:"song"`
}

// Observer receives session notifications. Notify is called from the
// session's read loop, in order, and should not block for long.
type Observer interface {
	Notify(n Notification)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(n Notification)

// Notify calls f(n).
func (f ObserverFunc) Notify(n Notification) {
	f(n)
}
