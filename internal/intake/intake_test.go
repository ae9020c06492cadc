package intake_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dajeong-health/intake-server/internal/database"
	"github.com/dajeong-health/intake-server/internal/intake"
)

func strPtr(s string) *string { return &s }

func newState() *database.IntakeState {
	return &database.IntakeState{Questions: intake.SeedQuestions()}
}

func TestSeedQuestions(t *testing.T) {
	t.Parallel()

	questions := intake.SeedQuestions()
	require.Len(t, questions, intake.QuestionCount)

	assert.Equal(t, "Q1", questions[0].QuestionID)
	assert.Equal(t, "Q10", questions[9].QuestionID)
	for _, q := range questions {
		assert.Equal(t, intake.StatusUnanswered, q.Status)
		assert.Equal(t, intake.ExperienceUnknown, q.Experience)
		assert.NotEmpty(t, q.QuestionText)
		assert.Empty(t, q.RawUserInput)
	}
}

func TestApplyDeltaOverwritesChangedFields(t *testing.T) {
	t.Parallel()

	st := newState()
	changed := intake.ApplyDelta(st, []intake.SlotUpdate{{
		QuestionID:   "Q2",
		Updated:      true,
		Experience:   strPtr(intake.ExperienceYes),
		Status:       strPtr(intake.StatusAsking),
		RawUserInput: []string{"요즘 많이 우울해요"},
		Frequency:    strPtr("매일"),
	}}, strPtr("Q2"), nil)

	require.True(t, changed)
	q := st.Questions[1]
	assert.Equal(t, intake.ExperienceYes, q.Experience)
	assert.Equal(t, intake.StatusAsking, q.Status)
	assert.Equal(t, database.StringList{"요즘 많이 우울해요"}, q.RawUserInput)
	assert.Equal(t, "매일", q.Frequency.String)
	assert.True(t, q.Updated)
	assert.Equal(t, "Q2", st.LastAskedQuestion.String)
	assert.False(t, st.LastAnsweredQuestion.Valid)
}

func TestApplyDeltaNoOp(t *testing.T) {
	t.Parallel()

	st := newState()

	// A slot without the updated flag is skipped entirely.
	changed := intake.ApplyDelta(st, []intake.SlotUpdate{{
		QuestionID: "Q1",
		Status:     strPtr(intake.StatusAnswered),
	}}, nil, nil)
	assert.False(t, changed)
	assert.Equal(t, intake.StatusUnanswered, st.Questions[0].Status)

	// Re-applying identical values is a no-op.
	delta := []intake.SlotUpdate{{
		QuestionID: "Q1",
		Updated:    true,
		Status:     strPtr(intake.StatusChecking),
	}}
	require.True(t, intake.ApplyDelta(st, delta, strPtr("Q1"), nil))
	assert.False(t, intake.ApplyDelta(st, delta, strPtr("Q1"), nil))
}

func TestApplyDeltaUnknownQuestionIgnored(t *testing.T) {
	t.Parallel()

	st := newState()
	changed := intake.ApplyDelta(st, []intake.SlotUpdate{{
		QuestionID: "Q99",
		Updated:    true,
		Status:     strPtr(intake.StatusAnswered),
	}}, nil, nil)
	assert.False(t, changed)
}

func TestApplyDeltaAnsweredIsTerminal(t *testing.T) {
	t.Parallel()

	st := newState()
	require.True(t, intake.ApplyDelta(st, []intake.SlotUpdate{{
		QuestionID: "Q3",
		Updated:    true,
		Status:     strPtr(intake.StatusAnswered),
	}}, nil, nil))
	assert.Equal(t, "Q3", st.LastAnsweredQuestion.String)

	intake.ApplyDelta(st, []intake.SlotUpdate{{
		QuestionID: "Q3",
		Updated:    true,
		Status:     strPtr(intake.StatusChecking),
	}}, nil, nil)
	assert.Equal(t, intake.StatusAnswered, st.Questions[2].Status)
}

func TestApplyDeltaCompletion(t *testing.T) {
	t.Parallel()

	st := newState()
	for i, q := range st.Questions {
		last := i == len(st.Questions)-1
		intake.ApplyDelta(st, []intake.SlotUpdate{{
			QuestionID: q.QuestionID,
			Updated:    true,
			Status:     strPtr(intake.StatusAnswered),
			Experience: strPtr(intake.ExperienceNo),
		}}, nil, nil)
		assert.Equal(t, last, st.IsCompleted, "after answering %s", q.QuestionID)
	}

	require.True(t, st.CompletedAt.Valid)
	stamp := st.CompletedAt.Time

	// Completion is monotonic: further deltas never revert it or restamp.
	intake.ApplyDelta(st, []intake.SlotUpdate{{
		QuestionID: "Q5",
		Updated:    true,
		Note:       strPtr("추가 메모"),
	}}, nil, nil)
	assert.True(t, st.IsCompleted)
	assert.Equal(t, stamp, st.CompletedAt.Time)

	assert.Equal(t, intake.QuestionCount, intake.AnsweredCount(st))
	assert.InDelta(t, 100.0, intake.CompletionRate(st), 0.001)
}

func TestReset(t *testing.T) {
	t.Parallel()

	st := newState()
	for _, q := range st.Questions {
		intake.ApplyDelta(st, []intake.SlotUpdate{{
			QuestionID: q.QuestionID,
			Updated:    true,
			Status:     strPtr(intake.StatusAnswered),
		}}, nil, nil)
	}
	require.True(t, st.IsCompleted)

	intake.Reset(st)

	assert.False(t, st.IsCompleted)
	assert.False(t, st.CompletedAt.Valid)
	assert.False(t, st.LastAnsweredQuestion.Valid)
	assert.Zero(t, intake.AnsweredCount(st))
	for _, q := range st.Questions {
		assert.Equal(t, intake.StatusUnanswered, q.Status)
		assert.False(t, q.Updated)
	}
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	st := newState()
	intake.ApplyDelta(st, []intake.SlotUpdate{{
		QuestionID:   "Q1",
		Updated:      true,
		Status:       strPtr(intake.StatusAnswered),
		RawUserInput: []string{"네, 요즘 힘들어요"},
		Frequency:    strPtr("자주"),
	}}, strPtr("Q2"), nil)

	snap := intake.Snapshot(st)
	require.Len(t, snap.Questions, intake.QuestionCount)
	assert.Equal(t, "Q2", *snap.LastAskedQuestion)
	assert.Equal(t, "Q1", *snap.LastAnsweredQuestion)

	q1 := snap.Questions[0]
	assert.Equal(t, intake.StatusAnswered, q1.Status)
	assert.Equal(t, []string{"네, 요즘 힘들어요"}, q1.RawUserInput)
	require.NotNil(t, q1.Frequency)
	assert.Equal(t, "자주", *q1.Frequency)
	assert.Nil(t, q1.Note)
}

func TestSnapshotUnusedFieldsNull(t *testing.T) {
	t.Parallel()

	snap := intake.Snapshot(&database.IntakeState{
		IsCompleted: false,
		Questions:   intake.SeedQuestions(),
	})
	assert.Nil(t, snap.LastAskedQuestion)
	assert.Nil(t, snap.LastAnsweredQuestion)
	assert.False(t, snap.IsCompleted)
}
