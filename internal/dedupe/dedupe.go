// Package dedupe implements content+time-window duplicate detection for
// conversation writes. Client retries and duplicate network deliveries
// produce back-to-back identical writes; comparing the candidate against
// the last recorded entry within a short window suppresses them without
// a global idempotency-token scheme.
//
// All functions are read-only comparisons; the caller decides whether to
// skip the write.
package dedupe

import (
	"time"

	"github.com/dajeong-health/intake-server/internal/database"
)

// Default suppression windows. Transcript messages arrive one sender at a
// time so a short window suffices; paired-log entries span a whole turn
// and get a wider one.
const (
	DefaultMessageWindow  = 5 * time.Second
	DefaultExchangeWindow = 10 * time.Second
)

// Message reports whether appending (sender, text) at time now would
// duplicate the last recorded transcript message: same sender, same text,
// recorded less than window ago.
func Message(last *database.TranscriptMessage, sender, text string, now time.Time, window time.Duration) bool {
	if last == nil {
		return false
	}
	if last.Sender != sender || last.Text != text {
		return false
	}
	return now.Sub(last.Timestamp) < window
}

// Exchange reports whether appending (botQuestion, userAnswer) at time now
// would duplicate the last recorded paired-log entry. botQuestion is nil
// on the very first turn; a nil candidate only matches a null recorded
// question.
func Exchange(last *database.Exchange, botQuestion *string, userAnswer string, now time.Time, window time.Duration) bool {
	if last == nil {
		return false
	}
	if last.UserAnswer != userAnswer {
		return false
	}
	if last.BotQuestion.Valid != (botQuestion != nil) {
		return false
	}
	if botQuestion != nil && last.BotQuestion.String != *botQuestion {
		return false
	}
	return now.Sub(last.Timestamp) < window
}
