package pianod

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/famish99/pianodctl/internal/protocol"
)

// Reply is the complete answer to one command.
type Reply struct {
	Packets    []protocol.Packet
	Terminator protocol.Line
}

// Lines returns every line of the reply in order.
func (r Reply) Lines() []protocol.Line {
	var lines []protocol.Line
	for _, p := range r.Packets {
		lines = append(lines, p...)
	}
	return lines
}

// Has reports whether any line of the reply carries code.
func (r Reply) Has(code protocol.Code) bool {
	return lo.ContainsBy(r.Lines(), func(l protocol.Line) bool {
		return l.Code == code
	})
}

// Values returns the field values of all lines with code.
func (r Reply) Values(code protocol.Code) []string {
	return lo.FilterMap(r.Lines(), func(l protocol.Line, _ int) (string, bool) {
		return protocol.FieldValue(l.Message), l.Code == code
	})
}

// Failed reports whether the daemon ended the reply with an error code.
func (r Reply) Failed() bool {
	return r.Terminator.Code.IsError()
}

// Result is the outcome of a command the daemon answered. Failed carries
// a daemon-side refusal; transport problems are returned as errors.
type Result[T any] struct {
	Failed bool
	Data   T
}

// Status asks for the current song and refreshes the song fields.
func (s *Session) Status(ctx context.Context) (Result[Reply], error) {
	reply, err := s.Submit(ctx, "STATUS", protocol.Until(protocol.CodeDataEnd).OrError())
	if err != nil {
		return Result[Reply]{}, err
	}
	if !reply.Failed() {
		s.applyReplyFields(reply)
	}
	return Result[Reply]{Failed: reply.Failed(), Data: reply}, nil
}

// Skip moves on to the next song.
func (s *Session) Skip(ctx context.Context) (Result[Reply], error) {
	return s.ack(ctx, "SKIP")
}

// Authenticate logs in as user.
func (s *Session) Authenticate(ctx context.Context, user, password string) (Result[Reply], error) {
	for _, arg := range []string{user, password} {
		if err := protocol.CheckArgument(arg); err != nil {
			return Result[Reply]{}, err
		}
	}
	return s.ack(ctx, fmt.Sprintf("USER %s %s", protocol.Token(user), protocol.Token(password)))
}

// ListStations returns the names of the user's stations.
func (s *Session) ListStations(ctx context.Context) (Result[[]string], error) {
	reply, err := s.Submit(ctx, "STATIONS", protocol.Until(protocol.CodeDataEnd).OrError())
	if err != nil {
		return Result[[]string]{}, err
	}
	return Result[[]string]{
		Failed: reply.Failed(),
		Data:   reply.Values(protocol.CodeStation),
	}, nil
}

// Pause pauses playback.
func (s *Session) Pause(ctx context.Context) (Result[Reply], error) {
	return s.ack(ctx, "PAUSE")
}

// Play resumes playback.
func (s *Session) Play(ctx context.Context) (Result[Reply], error) {
	return s.ack(ctx, "PLAY")
}

// Stop stops after the current song, or right away when immediate is set.
func (s *Session) Stop(ctx context.Context, immediate bool) (Result[Reply], error) {
	if immediate {
		return s.ack(ctx, "STOP NOW")
	}
	return s.ack(ctx, "STOP")
}

// SelectStation switches to the named station. The name is remembered as
// the current station only when the daemon accepts it.
func (s *Session) SelectStation(ctx context.Context, name string) (Result[string], error) {
	if err := protocol.CheckArgument(name); err != nil {
		return Result[string]{}, err
	}

	command := "PLAY STATION " + protocol.Quote(name)
	terms := protocol.Until(protocol.CodeOK, protocol.CodeDataEnd, protocol.CodeNotFound).OrError()

	reply, err := s.Submit(ctx, command, terms)
	if err != nil {
		return Result[string]{}, err
	}
	if !reply.Has(protocol.CodeOK) {
		return Result[string]{Failed: true, Data: name}, nil
	}

	s.mu.Lock()
	s.station = name
	s.mu.Unlock()
	return Result[string]{Data: name}, nil
}

// ack sends a command answered by a bare 200.
func (s *Session) ack(ctx context.Context, command string) (Result[Reply], error) {
	reply, err := s.Submit(ctx, command, protocol.Until(protocol.CodeOK).OrError())
	if err != nil {
		return Result[Reply]{}, err
	}
	return Result[Reply]{Failed: !reply.Has(protocol.CodeOK), Data: reply}, nil
}
