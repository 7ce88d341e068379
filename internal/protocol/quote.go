package protocol

import (
	"errors"
	"strings"
)

// ErrLineBreak is returned for arguments that would split a command over
// more than one line.
var ErrLineBreak = errors.New("argument contains a line break")

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\x00", `\0`)

// Escape backslash-escapes backslashes, double quotes and NUL bytes.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Quote escapes s and wraps it in double quotes.
func Quote(s string) string {
	return `"` + Escape(s) + `"`
}

// Token returns s unchanged when it can be sent as a bare word, otherwise
// quoted.
func Token(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"\\\x00") {
		return s
	}
	return Quote(s)
}

// CheckArgument rejects arguments containing CR or LF.
func CheckArgument(s string) error {
	if strings.ContainsAny(s, "\r\n") {
		return ErrLineBreak
	}
	return nil
}
