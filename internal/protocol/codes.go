package protocol

import "fmt"

// Code is the three-digit status code that starts every line pianod sends.
type Code int

// Playback events pushed by the daemon
const (
	CodeTime         Code = 101 // "MM:SS/MM:SS/-MM:SS" elapsed/total/remaining
	CodePaused       Code = 102
	CodeStopped      Code = 103
	CodeBetweenSongs Code = 104
	CodeSongComplete Code = 105
)

// Song fields, sent as "<label>: <value>"
const (
	CodeID       Code = 111
	CodeAlbum    Code = 112
	CodeArtist   Code = 113
	CodeTitle    Code = 114
	CodeStation  Code = 115
	CodeRating   Code = 116
	CodeSeeAlso  Code = 117
	CodeCoverArt Code = 118
)

// Reply framing
const (
	CodeOK        Code = 200
	CodeSeparator Code = 203 // closes the current packet, opens the next
	CodeDataEnd   Code = 204
	CodeNotFound  Code = 404
)

// IsSongField reports whether the code carries a song field update.
func (c Code) IsSongField() bool {
	return c >= CodeID && c <= CodeCoverArt
}

// IsError reports whether the code belongs to the daemon's 4xx/5xx
// failure class.
func (c Code) IsError() bool {
	return c >= 400 && c <= 599
}

func (c Code) String() string {
	return fmt.Sprintf("%03d", int(c))
}
