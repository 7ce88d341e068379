package protocol

import "github.com/samber/lo"

// Packet is one segment of a multi-line reply.
type Packet []Line

// Terminators is the set of codes that end a command's reply.
type Terminators struct {
	codes      []Code
	errorClass bool
}

// Until returns a terminator set matching exactly the given codes.
func Until(codes ...Code) Terminators {
	return Terminators{codes: codes}
}

// OrError extends the set with every 4xx/5xx code, so a rejected command
// ends its reply instead of waiting for a success code that never comes.
func (t Terminators) OrError() Terminators {
	t.errorClass = true
	return t
}

// Match reports whether code ends the reply.
func (t Terminators) Match(code Code) bool {
	if t.errorClass && code.IsError() {
		return true
	}
	return lo.Contains(t.codes, code)
}

// Codes returns the explicit codes of the set.
func (t Terminators) Codes() []Code {
	return t.codes
}

// Assembler collects the lines of a single in-flight reply into packets.
type Assembler struct {
	terminators Terminators
	packets     []Packet
	current     Packet
	terminator  *Line
}

// NewAssembler returns an assembler that completes on the first line whose
// code matches terms.
func NewAssembler(terms Terminators) *Assembler {
	return &Assembler{terminators: terms}
}

// Feed consumes lines until a terminator is seen. It returns done once the
// reply is complete, together with the lines of the chunk that came after
// the terminator; those belong to whoever handles unsolicited lines.
func (a *Assembler) Feed(lines []Line) (done bool, rest []Line) {
	if a.terminator != nil {
		return true, lines
	}
	for i, line := range lines {
		if line.Code == CodeSeparator {
			a.packets = append(a.packets, a.current)
			a.current = Packet{}
		} else {
			a.current = append(a.current, line)
		}

		if a.terminators.Match(line.Code) {
			a.packets = append(a.packets, a.current)
			a.current = nil
			term := line
			a.terminator = &term
			return true, lines[i+1:]
		}
	}
	return false, nil
}

// Done reports whether a terminator has been seen.
func (a *Assembler) Done() bool {
	return a.terminator != nil
}

// Packets returns the packets collected so far. After Done it is the full
// reply, terminator line included.
func (a *Assembler) Packets() []Packet {
	return a.packets
}

// Terminator returns the line that ended the reply.
func (a *Assembler) Terminator() (Line, bool) {
	if a.terminator == nil {
		return Line{}, false
	}
	return *a.terminator, true
}
