package node

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// ShellQuote quotes s as a single sh word
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ProcessPattern turns a process name into a pkill -f pattern matching the
// name literally. The first character goes in a bracket expression so the
// pattern does not match the command line of the shell or sudo running
// pkill.
func ProcessPattern(name string) string {
	if name == "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(name)
	first := "[" + string(r) + "]"
	if r == '^' {
		first = "[]^]"
	}
	return first + regexp.QuoteMeta(name[size:])
}

// KillCommand is pkill -9 -f on the quoted pattern of processName
func KillCommand(processName string) string {
	return "pkill -9 -f " + ShellQuote(ProcessPattern(processName))
}
