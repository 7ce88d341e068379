package mpd

import (
	"fmt"
	"strings"
)

// handleCommand processes a single MPD command
func (s *Server) handleCommand(args []string) string {
	command := strings.ToLower(args[0])
	params := args[1:]

	switch command {
	case "ping":
		return "OK\n"

	case "play", "playid":
		return s.cmdPlay(params)

	case "pause":
		return s.cmdPause(params)

	case "stop":
		return s.cmdStop(params)

	case "next":
		return s.cmdNext(params)

	case "status":
		return s.cmdStatus(params)

	case "currentsong":
		return s.cmdCurrentSong(params)

	case "listplaylists":
		return s.cmdListPlaylists(params)

	case "load":
		return s.cmdLoad(params)

	case "outputs":
		return "outputid: 0\noutputname: pianod\noutputenabled: 1\nOK\n"

	case "commands":
		return s.cmdCommands(params)

	default:
		return fmt.Sprintf("ACK [5@0] {%s} unknown command \"%s\"\n", command, args[0])
	}
}

var supportedCommands = []string{
	"close", "command_list_begin", "command_list_end", "command_list_ok_begin",
	"commands", "currentsong", "idle", "listplaylists", "load", "next",
	"noidle", "outputs", "pause", "ping", "play", "playid", "status", "stop",
}

// cmdCommands lists the commands this server understands
func (s *Server) cmdCommands(_ []string) string {
	var out strings.Builder
	for _, c := range supportedCommands {
		fmt.Fprintf(&out, "command: %s\n", c)
	}
	out.WriteString("OK\n")
	return out.String()
}
