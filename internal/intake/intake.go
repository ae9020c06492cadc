// Package intake implements the questionnaire state machine: the fixed
// ten-item question set, delta application from the dialogue engine, and
// completion tracking.
package intake

import (
	"database/sql"
	"time"

	"github.com/dajeong-health/intake-server/internal/database"
)

// Question experience values.
const (
	ExperienceYes     = "yes"
	ExperienceNo      = "no"
	ExperienceUnknown = "unknown"
)

// Question statuses. Answered is terminal: once an item is answered its
// status is never overwritten by a delta.
const (
	StatusUnanswered = "unanswered"
	StatusChecking   = "checking"
	StatusAsking     = "asking"
	StatusConflict   = "conflict"
	StatusAnswered   = "answered"
)

// questionTexts is the fixed PHQ/GAD-style screening questionnaire, in
// order. The ids form a closed enumeration; sessions always carry exactly
// these ten items.
var questionTexts = []struct {
	id   string
	text string
}{
	{"Q1", "최근 스트레스를 받거나 나를 힘들게 하는 일이 있다"},
	{"Q2", "기분이 가라앉거나, 우울하거나, 희망이 없다고 느낀다"},
	{"Q3", "평소 하던 일에 대한 흥미가 없어지거나 즐거움을 느끼지 못한다"},
	{"Q4", "잠들기가 어렵거나 자주 깨거나 혹은 평소와 다르게 너무 많이 잔다"},
	{"Q5", "최근 매사에 피곤하고 기운이 없다"},
	{"Q6", "내가 무언가를 잘못했거나 실패했다는 생각이 들거나 자신과 가족을 실망시켰다고 생각한다."},
	{"Q7", "차라리 죽는 것이 더 낫겠다거나 혹은 자해할 생각을 한다"},
	{"Q8", "초조하거나, 마음이 불안하거나, 혹시 나쁜 일이 생길까 조마조마한 느낌을 받는다"},
	{"Q9", "최근 여러 가지 일에 대해 너무 많은 걱정을 한다"},
	{"Q10", "걱정이 한 번 시작되면 쉽게 멈추거나 조절하기 어렵다"},
}

// QuestionCount is the size of the fixed questionnaire.
const QuestionCount = 10

// SeedQuestions returns the fresh question set every new intake state
// starts from: all ten items unanswered with unknown experience.
func SeedQuestions() []database.IntakeQuestion {
	questions := make([]database.IntakeQuestion, 0, len(questionTexts))
	for _, q := range questionTexts {
		questions = append(questions, database.IntakeQuestion{
			QuestionID:   q.id,
			QuestionText: q.text,
			Experience:   ExperienceUnknown,
			Status:       StatusUnanswered,
			RawUserInput: database.StringList{},
		})
	}
	return questions
}

// SlotUpdate is the dialogue engine's per-question delta. Pointer fields
// distinguish "not provided" from an explicit overwrite; only provided
// fields whose value differs from the stored one are applied.
type SlotUpdate struct {
	QuestionID   string   `json:"questionId"`
	Updated      bool     `json:"updated"`
	Experience   *string  `json:"experience,omitempty"`
	Status       *string  `json:"status,omitempty"`
	RawUserInput []string `json:"rawUserInput,omitempty"`
	Frequency    *string  `json:"frequency,omitempty"`
	Context      *string  `json:"context,omitempty"`
	Note         *string  `json:"note,omitempty"`
	Conflict     *string  `json:"conflict,omitempty"`
}

// ApplyDelta applies the engine's questionnaire delta to st in place and
// reports whether anything actually changed, so callers can skip the
// persistence write entirely on a no-op turn.
//
// Completion is recomputed from the items after the delta: isCompleted
// becomes true exactly when all ten are answered, completedAt is stamped
// on the first transition and never cleared, and a true isCompleted never
// reverts here (only Reset clears it).
func ApplyDelta(st *database.IntakeState, slots []SlotUpdate, lastAsked, lastAnswered *string) bool {
	changed := false

	for _, slot := range slots {
		if !slot.Updated {
			continue
		}
		q := findQuestion(st, slot.QuestionID)
		if q == nil {
			continue
		}
		if applySlot(q, slot) {
			q.Updated = true
			changed = true
			if slot.Status != nil && *slot.Status == StatusAnswered {
				setNullString(&st.LastAnsweredQuestion, slot.QuestionID, &changed)
			}
		}
	}

	if lastAsked != nil {
		setNullString(&st.LastAskedQuestion, *lastAsked, &changed)
	}
	if lastAnswered != nil {
		setNullString(&st.LastAnsweredQuestion, *lastAnswered, &changed)
	}

	if complete := allAnswered(st); complete && !st.IsCompleted {
		st.IsCompleted = true
		if !st.CompletedAt.Valid {
			st.CompletedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
		}
		changed = true
	}

	return changed
}

func applySlot(q *database.IntakeQuestion, slot SlotUpdate) bool {
	changed := false

	if slot.Experience != nil && q.Experience != *slot.Experience {
		q.Experience = *slot.Experience
		changed = true
	}
	// Answered is terminal; a delta cannot move an item out of it.
	if slot.Status != nil && q.Status != *slot.Status && q.Status != StatusAnswered {
		q.Status = *slot.Status
		changed = true
	}
	if slot.RawUserInput != nil && !equalStrings(q.RawUserInput, slot.RawUserInput) {
		q.RawUserInput = append(database.StringList{}, slot.RawUserInput...)
		changed = true
	}
	changed = applyNullable(&q.Frequency, slot.Frequency) || changed
	changed = applyNullable(&q.Context, slot.Context) || changed
	changed = applyNullable(&q.Note, slot.Note) || changed
	changed = applyNullable(&q.Conflict, slot.Conflict) || changed

	return changed
}

func applyNullable(dst *sql.NullString, src *string) bool {
	if src == nil {
		return false
	}
	if dst.Valid && dst.String == *src {
		return false
	}
	*dst = sql.NullString{String: *src, Valid: true}
	return true
}

func setNullString(dst *sql.NullString, value string, changed *bool) {
	if dst.Valid && dst.String == value {
		return
	}
	*dst = sql.NullString{String: value, Valid: true}
	*changed = true
}

func findQuestion(st *database.IntakeState, questionID string) *database.IntakeQuestion {
	for i := range st.Questions {
		if st.Questions[i].QuestionID == questionID {
			return &st.Questions[i]
		}
	}
	return nil
}

func allAnswered(st *database.IntakeState) bool {
	if len(st.Questions) == 0 {
		return false
	}
	for i := range st.Questions {
		if st.Questions[i].Status != StatusAnswered {
			return false
		}
	}
	return true
}

func equalStrings(a database.StringList, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AnsweredCount returns how many items have reached answered.
func AnsweredCount(st *database.IntakeState) int {
	count := 0
	for i := range st.Questions {
		if st.Questions[i].Status == StatusAnswered {
			count++
		}
	}
	return count
}

// CompletionRate returns questionnaire progress as a percentage,
// computed at read time rather than stored.
func CompletionRate(st *database.IntakeState) float64 {
	if len(st.Questions) == 0 {
		return 0
	}
	return float64(AnsweredCount(st)) / float64(len(st.Questions)) * 100
}

// Reset explicitly clears completion and returns every item to its seed
// state. This is the only way isCompleted goes back to false.
func Reset(st *database.IntakeState) {
	st.IsCompleted = false
	st.CompletedAt = sql.NullTime{}
	st.LastAnsweredQuestion = sql.NullString{}
	st.LastAskedQuestion = sql.NullString{}
	for i := range st.Questions {
		q := &st.Questions[i]
		q.Experience = ExperienceUnknown
		q.Status = StatusUnanswered
		q.RawUserInput = database.StringList{}
		q.Frequency = sql.NullString{}
		q.Context = sql.NullString{}
		q.Note = sql.NullString{}
		q.Conflict = sql.NullString{}
		q.Updated = false
	}
}

// QuestionSnapshot is the wire form of one questionnaire item, sent to
// the dialogue engine on every turn.
type QuestionSnapshot struct {
	QuestionID   string   `json:"questionId"`
	QuestionText string   `json:"questionText"`
	Experience   string   `json:"experience"`
	Status       string   `json:"status"`
	RawUserInput []string `json:"rawUserInput"`
	Frequency    *string  `json:"frequency"`
	Context      *string  `json:"context"`
	Note         *string  `json:"note"`
	Updated      bool     `json:"updated"`
}

// StatusSnapshot is the wire form of a whole intake state.
type StatusSnapshot struct {
	IsCompleted          bool               `json:"is_completed"`
	LastAnsweredQuestion *string            `json:"last_answered_question"`
	LastAskedQuestion    *string            `json:"last_asked_question"`
	Questions            []QuestionSnapshot `json:"questions"`
}

// Snapshot renders st into its wire form.
func Snapshot(st *database.IntakeState) *StatusSnapshot {
	snap := &StatusSnapshot{
		IsCompleted:          st.IsCompleted,
		LastAnsweredQuestion: nullableString(st.LastAnsweredQuestion),
		LastAskedQuestion:    nullableString(st.LastAskedQuestion),
		Questions:            make([]QuestionSnapshot, 0, len(st.Questions)),
	}
	for i := range st.Questions {
		q := &st.Questions[i]
		snap.Questions = append(snap.Questions, QuestionSnapshot{
			QuestionID:   q.QuestionID,
			QuestionText: q.QuestionText,
			Experience:   q.Experience,
			Status:       q.Status,
			RawUserInput: q.RawUserInput,
			Frequency:    nullableString(q.Frequency),
			Context:      nullableString(q.Context),
			Note:         nullableString(q.Note),
			Updated:      q.Updated,
		})
	}
	return snap
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
