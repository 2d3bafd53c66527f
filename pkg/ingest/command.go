package ingest

import "strings"

// Command is a recognized bot command.
type Command string

const (
	CommandStartSession Command = "start_session"
	CommandClose        Command = "close"
	CommandDone         Command = "done"
)

// ParseCommand extracts a recognized command from a chat message text.
// Matching is case-insensitive and tolerates the transport's "@botname"
// suffix ("/CLOSE@shiftsnap_bot" parses as close). Returns false for
// anything that is not a recognized command.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	// First token only; commands take no arguments.
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		text = text[:i]
	}
	name := strings.ToLower(strings.TrimPrefix(text, "/"))
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}

	switch Command(name) {
	case CommandStartSession, CommandClose, CommandDone:
		return Command(name), true
	}
	return "", false
}
