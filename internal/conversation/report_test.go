package conversation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dajeong-health/intake-server/internal/database"
	"github.com/dajeong-health/intake-server/internal/engine"
)

func TestGetReportGeneratesThenCaches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	fake := newFakeEngine(t, simpleReply("ok"))
	coord := newCoordinator(t, store, fake.client())

	_, err := coord.StartSession(ctx, "user-1", "session-aaaa", "", "")
	require.NoError(t, err)

	first, err := coord.GetReport(ctx, "user-1", "session-aaaa")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "우울 수준 보통", first.Report.Depression)
	assert.EqualValues(t, 1, fake.summaryCalls.Load())

	second, err := coord.GetReport(ctx, "user-1", "session-aaaa")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Report.Depression, second.Report.Depression)
	assert.Equal(t, first.Report.Suggestion, second.Report.Suggestion)
	assert.EqualValues(t, 1, fake.summaryCalls.Load(), "cached read must not call upstream")
}

func TestGetReportUnknownSession(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	coord := newCoordinator(t, store, newFakeEngine(t, simpleReply("ok")).client())

	_, err := coord.GetReport(context.Background(), "nobody", "session-zzzz")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestGetReportUpstreamFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	fake := newFakeEngine(t, simpleReply("ok"))
	fake.summaryFail = true
	coord := newCoordinator(t, store, fake.client())

	_, err := coord.StartSession(ctx, "user-1", "session-aaaa", "", "")
	require.NoError(t, err)

	_, err = coord.GetReport(ctx, "user-1", "session-aaaa")
	assert.ErrorIs(t, err, engine.ErrUnavailable)

	// Nothing was cached by the failed attempt.
	transcript, err := store.GetTranscript(ctx, "user-1", "session-aaaa")
	require.NoError(t, err)
	assert.Nil(t, transcript.Report())
}

func TestRegenerateReportAlwaysCallsUpstream(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	fake := newFakeEngine(t, simpleReply("ok"))
	coord := newCoordinator(t, store, fake.client())

	_, err := coord.StartSession(ctx, "user-1", "session-aaaa", "", "")
	require.NoError(t, err)

	_, err = coord.GetReport(ctx, "user-1", "session-aaaa")
	require.NoError(t, err)
	require.EqualValues(t, 1, fake.summaryCalls.Load())

	res, err := coord.RegenerateReport(ctx, "user-1", "session-aaaa")
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.EqualValues(t, 2, fake.summaryCalls.Load())
}

func TestInvalidateReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	fake := newFakeEngine(t, simpleReply("ok"))
	coord := newCoordinator(t, store, fake.client())

	_, err := coord.StartSession(ctx, "user-1", "session-aaaa", "", "")
	require.NoError(t, err)
	_, err = coord.GetReport(ctx, "user-1", "session-aaaa")
	require.NoError(t, err)

	status, err := coord.GetReportStatus(ctx, "user-1", "session-aaaa")
	require.NoError(t, err)
	assert.True(t, status.HasSummary)
	assert.NotNil(t, status.GeneratedAt)

	require.NoError(t, coord.InvalidateReport(ctx, "user-1", "session-aaaa"))

	status, err = coord.GetReportStatus(ctx, "user-1", "session-aaaa")
	require.NoError(t, err)
	assert.False(t, status.HasSummary)
	assert.Nil(t, status.GeneratedAt)

	// Next read generates again.
	res, err := coord.GetReport(ctx, "user-1", "session-aaaa")
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.EqualValues(t, 2, fake.summaryCalls.Load())
}
