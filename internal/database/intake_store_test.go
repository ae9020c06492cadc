package database_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dajeong-health/intake-server/internal/database"
)

func seedQuestions() []database.IntakeQuestion {
	return []database.IntakeQuestion{
		{QuestionID: "Q1", QuestionText: "첫 번째 질문", Experience: "unknown", Status: "unanswered", RawUserInput: database.StringList{}},
		{QuestionID: "Q2", QuestionText: "두 번째 질문", Experience: "unknown", Status: "unanswered", RawUserInput: database.StringList{}},
	}
}

func TestCreateIntakeStateIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	created, err := store.CreateIntakeState(ctx, "u1", "s1", seedQuestions())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.CreateIntakeState(ctx, "u1", "s1", seedQuestions())
	require.NoError(t, err)
	assert.False(t, created)

	state, err := store.GetIntakeState(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.False(t, state.IsCompleted)
	require.Len(t, state.Questions, 2, "questions must not be double-seeded")
	assert.Equal(t, "Q1", state.Questions[0].QuestionID)
}

func TestCreateIntakeStateConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	g, gCtx := errgroup.WithContext(ctx)
	for range 8 {
		g.Go(func() error {
			_, err := store.CreateIntakeState(gCtx, "u1", "s1", seedQuestions())
			return err
		})
	}
	require.NoError(t, g.Wait())

	state, err := store.GetIntakeState(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Len(t, state.Questions, 2)
}

func TestGetIntakeStateNotFound(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	_, err := store.GetIntakeState(context.Background(), "nobody", "nothing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestUpdateIntakeState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	_, err := store.CreateIntakeState(ctx, "u1", "s1", seedQuestions())
	require.NoError(t, err)

	state, err := store.GetIntakeState(ctx, "u1", "s1")
	require.NoError(t, err)

	state.Questions[0].Status = "answered"
	state.Questions[0].Experience = "yes"
	state.Questions[0].RawUserInput = database.StringList{"네, 자주 그래요"}
	state.Questions[0].Frequency = sql.NullString{String: "매일", Valid: true}
	state.Questions[0].Updated = true
	state.LastAnsweredQuestion = sql.NullString{String: "Q1", Valid: true}
	state.LastAskedQuestion = sql.NullString{String: "Q2", Valid: true}

	require.NoError(t, store.UpdateIntakeState(ctx, state))

	reloaded, err := store.GetIntakeState(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "Q1", reloaded.LastAnsweredQuestion.String)
	assert.Equal(t, "Q2", reloaded.LastAskedQuestion.String)

	q1 := reloaded.Questions[0]
	assert.Equal(t, "answered", q1.Status)
	assert.Equal(t, "yes", q1.Experience)
	assert.Equal(t, database.StringList{"네, 자주 그래요"}, q1.RawUserInput)
	assert.Equal(t, "매일", q1.Frequency.String)
	assert.True(t, q1.Updated)

	// The untouched question keeps its seed values.
	assert.Equal(t, "unanswered", reloaded.Questions[1].Status)
}

func TestUpdateIntakeStateCompletion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	_, err := store.CreateIntakeState(ctx, "u1", "s1", seedQuestions())
	require.NoError(t, err)

	state, err := store.GetIntakeState(ctx, "u1", "s1")
	require.NoError(t, err)
	state.IsCompleted = true
	state.CompletedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	require.NoError(t, store.UpdateIntakeState(ctx, state))

	reloaded, err := store.GetIntakeState(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.True(t, reloaded.IsCompleted)
	assert.True(t, reloaded.CompletedAt.Valid)
}

func TestListIntakeStatesByUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	for _, sid := range []string{"s1", "s2"} {
		_, err := store.CreateIntakeState(ctx, "u1", sid, seedQuestions())
		require.NoError(t, err)
	}
	_, err := store.CreateIntakeState(ctx, "u2", "s9", seedQuestions())
	require.NoError(t, err)

	states, err := store.ListIntakeStatesByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, states, 2)
	for _, st := range states {
		assert.Len(t, st.Questions, 2)
	}
}

func TestDeleteIntakeStates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	for _, sid := range []string{"s1", "s2", "s3"} {
		_, err := store.CreateIntakeState(ctx, "u1", sid, seedQuestions())
		require.NoError(t, err)
	}

	deleted, err := store.DeleteIntakeStates(ctx, "u1", []string{"s1", "s2"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	_, err = store.GetIntakeState(ctx, "u1", "s1")
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = store.GetIntakeState(ctx, "u1", "s3")
	require.NoError(t, err)
}
