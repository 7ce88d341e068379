package pianod

import (
	"fmt"
	"time"

	"github.com/famish99/pianodctl/internal/protocol"
)

// SongInfo describes the song pianod is on.
type SongInfo struct {
	ID       string `json:"id"`
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	Album    string `json:"album"`
	Station  string `json:"station"`
	Rating   string `json:"rating,omitempty"`
	SeeAlso  string `json:"see_also,omitempty"`
	CoverArt string `json:"cover_art,omitempty"`

	// StartTime is the wall-clock instant the song would have started had
	// it played without interruption. Zero until the first time report.
	StartTime time.Time     `json:"start_time"`
	Total     time.Duration `json:"total"`

	// Filled in on snapshots only.
	State     PlaybackState `json:"state"`
	Remaining time.Duration `json:"remaining"`
}

// DefaultSongInfo returns the placeholder song a fresh session starts with.
func DefaultSongInfo() SongInfo {
	return SongInfo{
		ID:      "No ID",
		Artist:  "Noname",
		Title:   "No Title",
		Album:   "No Album",
		Station: "No Station",
	}
}

// setField stores a 111-118 value. Other codes are ignored.
func (s *SongInfo) setField(code protocol.Code, value string) {
	switch code {
	case protocol.CodeID:
		s.ID = value
	case protocol.CodeAlbum:
		s.Album = value
	case protocol.CodeArtist:
		s.Artist = value
	case protocol.CodeTitle:
		s.Title = value
	case protocol.CodeStation:
		s.Station = value
	case protocol.CodeRating:
		s.Rating = value
	case protocol.CodeSeeAlso:
		s.SeeAlso = value
	case protocol.CodeCoverArt:
		s.CoverArt = value
	}
}

// Clock formats a duration as MM:SS, rounded to the nearest second.
func Clock(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
