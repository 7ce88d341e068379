package protocol

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

// maxPartialLine bounds how much of an unterminated line the decoder keeps
// between deliveries. Anything longer is not a protocol line.
const maxPartialLine = 64 * 1024

var lineRe = regexp.MustCompile(`^(\d{3}) (.+)$`)

// Line is one decoded protocol line.
type Line struct {
	Code    Code
	Message string

	// Index is the position of the line within the chunk it was decoded
	// from, counting only lines that matched.
	Index int
}

// ParseLine decodes a single line of text. Lines that don't look like
// "NNN message" are rejected.
func ParseLine(text string) (Line, bool) {
	m := lineRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Line{}, false
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return Line{}, false
	}
	return Line{Code: Code(code), Message: m[2]}, true
}

// Decoder turns raw chunks read from the connection into lines. A line
// split across two chunks is held back until its newline arrives.
type Decoder struct {
	partial []byte

	// discarding is set after an oversized line was dropped; input is
	// skipped up to its newline.
	discarding bool
}

// Decode appends chunk to any buffered partial line and returns every
// complete line that matches the protocol format, in order.
func (d *Decoder) Decode(chunk []byte) []Line {
	if d.discarding {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			return nil
		}
		chunk = chunk[i+1:]
		d.discarding = false
	}
	d.partial = append(d.partial, chunk...)

	var lines []Line
	for {
		i := bytes.IndexByte(d.partial, '\n')
		if i < 0 {
			break
		}
		text := string(d.partial[:i])
		d.partial = d.partial[i+1:]

		if line, ok := ParseLine(text); ok {
			line.Index = len(lines)
			lines = append(lines, line)
		}
	}

	if len(d.partial) > maxPartialLine {
		d.partial = nil
		d.discarding = true
	}
	// Release the consumed prefix instead of growing forever.
	if len(d.partial) == 0 {
		d.partial = nil
	}
	return lines
}

// Flush returns the buffered unterminated line, if it decodes, and resets
// the decoder. Used once the connection has reached EOF.
func (d *Decoder) Flush() []Line {
	text := string(d.partial)
	d.partial = nil
	if d.discarding {
		d.discarding = false
		return nil
	}
	if line, ok := ParseLine(text); ok {
		return []Line{line}
	}
	return nil
}

// Buffered reports how many bytes of an incomplete line are held.
func (d *Decoder) Buffered() int {
	return len(d.partial)
}

// FieldValue returns the value part of a "<label>: <value>" message. Only
// the first ": " separates label and value, values may contain colons.
func FieldValue(message string) string {
	_, value, found := strings.Cut(message, ": ")
	if !found {
		return ""
	}
	return value
}
