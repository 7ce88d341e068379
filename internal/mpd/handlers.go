package mpd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/famish99/pianodctl/internal/pianod"
)

// ackResult turns a pianod command outcome into an MPD response
func ackResult(name string, res pianod.Result[pianod.Reply], err error) string {
	if err != nil {
		return fmt.Sprintf("ACK [52@0] {%s} %s\n", name, err.Error())
	}
	if res.Failed {
		return fmt.Sprintf("ACK [50@0] {%s} %s\n", name, res.Data.Terminator.Message)
	}
	return "OK\n"
}

func (s *Server) ack(name string, fn func(ctx context.Context) (pianod.Result[pianod.Reply], error)) string {
	ctx, cancel := s.commandContext()
	defer cancel()
	res, err := fn(ctx)
	return ackResult(name, res, err)
}

// cmdPlay resumes playback. pianod has no queue, so any position argument
// is ignored.
func (s *Server) cmdPlay(_ []string) string {
	if s.player.State() == pianod.StatePlaying {
		return "OK\n"
	}
	return s.ack("play", s.player.Play)
}

// cmdPause handles 'pause': 1 pauses, 0 resumes, no argument toggles
func (s *Server) cmdPause(args []string) string {
	var shouldPause bool

	if len(args) > 0 {
		if args[0] != "0" && args[0] != "1" {
			return "ACK [2@0] {pause} invalid argument\n"
		}
		shouldPause = args[0] == "1"
	} else {
		shouldPause = s.player.State() != pianod.StatePaused
	}

	if shouldPause {
		return s.ack("pause", s.player.Pause)
	}
	return s.ack("pause", s.player.Play)
}

// cmdStop stops playback right away, as MPD's stop does
func (s *Server) cmdStop(_ []string) string {
	return s.ack("stop", func(ctx context.Context) (pianod.Result[pianod.Reply], error) {
		return s.player.Stop(ctx, true)
	})
}

// cmdNext skips the current song
func (s *Server) cmdNext(_ []string) string {
	return s.ack("next", s.player.Skip)
}

func mpdState(state pianod.PlaybackState) string {
	switch state {
	case pianod.StatePlaying, pianod.StateBetweenSongs:
		return "play"
	case pianod.StatePaused:
		return "pause"
	default:
		return "stop"
	}
}

// cmdStatus reports the locally tracked playback state
func (s *Server) cmdStatus(_ []string) string {
	song := s.player.SongInfo()

	var status strings.Builder
	status.WriteString("volume: -1\n")
	status.WriteString("repeat: 0\n")
	status.WriteString("random: 0\n")
	status.WriteString("single: 0\n")
	status.WriteString("consume: 0\n")
	status.WriteString("playlist: 1\n")
	status.WriteString("playlistlength: 1\n")
	fmt.Fprintf(&status, "state: %s\n", mpdState(song.State))
	status.WriteString("song: 0\n")
	status.WriteString("songid: 0\n")

	if total := int(song.Total.Seconds()); total > 0 {
		elapsed := total - int(song.Remaining.Seconds())
		if elapsed < 0 {
			elapsed = 0
		}
		fmt.Fprintf(&status, "time: %d:%d\n", elapsed, total)
		fmt.Fprintf(&status, "elapsed: %d\n", elapsed)
		fmt.Fprintf(&status, "duration: %d\n", total)
	}

	status.WriteString("OK\n")
	return status.String()
}

// cmdCurrentSong describes the song pianod is on
func (s *Server) cmdCurrentSong(_ []string) string {
	song := s.player.SongInfo()

	var out strings.Builder
	fmt.Fprintf(&out, "file: pianod://%s\n", song.ID)
	fmt.Fprintf(&out, "Artist: %s\n", song.Artist)
	fmt.Fprintf(&out, "Title: %s\n", song.Title)
	fmt.Fprintf(&out, "Album: %s\n", song.Album)
	fmt.Fprintf(&out, "Name: %s\n", song.Station)
	if total := int(song.Total.Seconds()); total > 0 {
		fmt.Fprintf(&out, "Time: %d\n", total)
		fmt.Fprintf(&out, "duration: %d\n", total)
	}
	out.WriteString("Pos: 0\n")
	out.WriteString("Id: 0\n")
	out.WriteString("OK\n")
	return out.String()
}

// cmdListPlaylists presents the stations as stored playlists
func (s *Server) cmdListPlaylists(_ []string) string {
	ctx, cancel := s.commandContext()
	defer cancel()

	res, err := s.player.ListStations(ctx)
	if err != nil {
		return fmt.Sprintf("ACK [52@0] {listplaylists} %s\n", err.Error())
	}
	if res.Failed {
		return "ACK [50@0] {listplaylists} stations unavailable\n"
	}

	var out strings.Builder
	for _, name := range res.Data {
		fmt.Fprintf(&out, "playlist: %s\n", name)
	}
	out.WriteString("OK\n")
	return out.String()
}

// cmdLoad switches to the station named like the playlist
func (s *Server) cmdLoad(args []string) string {
	if len(args) == 0 {
		return "ACK [2@0] {load} missing playlist name\n"
	}

	ctx, cancel := s.commandContext()
	defer cancel()

	res, err := s.player.SelectStation(ctx, args[0])
	if err != nil {
		if errors.Is(err, pianod.ErrTimeout) {
			return "ACK [52@0] {load} timed out\n"
		}
		return fmt.Sprintf("ACK [52@0] {load} %s\n", err.Error())
	}
	if res.Failed {
		return "ACK [50@0] {load} No such playlist\n"
	}

	s.NotifySubsystemChange("playlist")
	return "OK\n"
}
