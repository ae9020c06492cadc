// Package history renders a transcript's message sequence into the
// bounded textual context expected by the dialogue engine.
package history

import (
	"sort"
	"strings"

	"github.com/dajeong-health/intake-server/internal/database"
)

// Unbounded disables the history window: the full transcript is rendered.
const Unbounded = -1

// Render returns the transcript rendered as newline-joined "<Sender>: <text>"
// lines in ascending timestamp order. windowSize counts bot/user exchange
// pairs, so a positive windowSize keeps the last windowSize*2 messages;
// zero or negative means unbounded.
func Render(messages []database.TranscriptMessage, windowSize int) string {
	if len(messages) == 0 {
		return ""
	}

	bounded := messages
	if windowSize > 0 && len(messages) > windowSize*2 {
		bounded = messages[len(messages)-windowSize*2:]
	}

	ordered := make([]database.TranscriptMessage, len(bounded))
	copy(ordered, bounded)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	lines := make([]string, 0, len(ordered))
	for _, m := range ordered {
		label := "User"
		if m.Sender == database.SenderBot {
			label = "Bot"
		}
		lines = append(lines, label+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

// LastBotMessage returns the most recent bot message, scanning from the
// end, or nil when the transcript has none (first turn).
func LastBotMessage(messages []database.TranscriptMessage) *database.TranscriptMessage {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Sender == database.SenderBot {
			return &messages[i]
		}
	}
	return nil
}
