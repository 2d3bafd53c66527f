package logger

import "golang.org/x/term"

// isTerminal reports whether fd is attached to an interactive terminal.
// Color output is enabled only for terminals; files and pipes get plain
// text.
func isTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}
