package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Command
		ok   bool
	}{
		{"start session", "/start_session", CommandStartSession, true},
		{"close", "/close", CommandClose, true},
		{"done", "/done", CommandDone, true},
		{"uppercase", "/CLOSE", CommandClose, true},
		{"mixed case", "/Start_Session", CommandStartSession, true},
		{"bot suffix", "/close@shiftsnap_bot", CommandClose, true},
		{"bot suffix uppercase", "/DONE@ShiftSnapBot", CommandDone, true},
		{"trailing text ignored", "/close please", CommandClose, true},
		{"surrounding whitespace", "  /done  ", CommandDone, true},
		{"unknown command", "/help", "", false},
		{"no slash", "close", "", false},
		{"plain text", "here is my schedule", "", false},
		{"empty", "", "", false},
		{"bare slash", "/", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
