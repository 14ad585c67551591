package statemachine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryline/guardcore/pkg/guarderr"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSubmissionMachine_HappyPath(t *testing.T) {
	m := NewSubmissionMachine().WithClock(fixedClock(time.Unix(0, 0)))
	require.NoError(t, m.Transition(SubmissionConfirmed, "confirmation consumed"))
	require.NoError(t, m.Transition(SubmissionSubmitted, "transmission ok"))
	require.NoError(t, m.Transition(SubmissionAcknowledged, "platform ack"))
	assert.Equal(t, SubmissionAcknowledged, m.State())
	assert.Len(t, m.History(), 3)
}

func TestSubmissionMachine_ConfirmedCanFail(t *testing.T) {
	m := NewSubmissionMachine()
	require.NoError(t, m.Transition(SubmissionConfirmed, ""))
	require.NoError(t, m.Transition(SubmissionFailed, "transport error"))
	assert.True(t, submissionTable.IsTerminal(m.State()))
}

// P7 (Closed table): any transition not in the table is rejected,
// including backwards moves and self-loops.
func TestSubmissionMachine_RejectsNonAdjacentTransition(t *testing.T) {
	m := NewSubmissionMachine()
	err := m.Transition(SubmissionSubmitted, "skip ahead")
	require.Error(t, err)
	k, ok := guarderr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, guarderr.KindInvalidTransition, k)
	assert.Equal(t, SubmissionPending, m.State())
	assert.Empty(t, m.History())
}

func TestSubmissionMachine_RejectsSelfLoop(t *testing.T) {
	m := NewSubmissionMachine()
	require.NoError(t, m.Transition(SubmissionConfirmed, ""))
	err := m.Transition(SubmissionConfirmed, "repeat")
	require.Error(t, err)
	k, _ := guarderr.KindOf(err)
	assert.Equal(t, guarderr.KindInvalidTransition, k)
}

func TestSubmissionMachine_RejectsBackwardsMove(t *testing.T) {
	m := NewSubmissionMachine()
	require.NoError(t, m.Transition(SubmissionConfirmed, ""))
	require.NoError(t, m.Transition(SubmissionSubmitted, ""))
	err := m.Transition(SubmissionConfirmed, "rewind")
	require.Error(t, err)
	k, _ := guarderr.KindOf(err)
	assert.Equal(t, guarderr.KindInvalidTransition, k)
}

// P8 (Terminal absorption): once a terminal state is reached, every
// further transition attempt fails and the state never changes.
func TestSubmissionMachine_TerminalAbsorbsFurtherAttempts(t *testing.T) {
	m := NewSubmissionMachine()
	require.NoError(t, m.Transition(SubmissionConfirmed, ""))
	require.NoError(t, m.Transition(SubmissionSubmitted, ""))
	require.NoError(t, m.Transition(SubmissionRejected, "platform reject"))

	for _, attempt := range []string{SubmissionAcknowledged, SubmissionRejected, SubmissionSubmitted, SubmissionPending} {
		err := m.Transition(attempt, "post-terminal")
		require.Error(t, err)
		k, _ := guarderr.KindOf(err)
		assert.Equal(t, guarderr.KindInvalidTransition, k)
		assert.Equal(t, SubmissionRejected, m.State())
	}
	assert.Len(t, m.History(), 3)
}

func TestSessionMachine_DirectAbortFromStart(t *testing.T) {
	m := NewSessionMachine()
	require.NoError(t, m.Transition(SessionEnded, "aborted before first use"))
	assert.True(t, sessionTable.IsTerminal(m.State()))
}

func TestExportMachine_SealedIsTerminal(t *testing.T) {
	m := NewExportMachine()
	require.NoError(t, m.Transition(ExportSealed, ""))
	err := m.Transition(ExportDrafting, "reopen")
	require.Error(t, err)
	k, _ := guarderr.KindOf(err)
	assert.Equal(t, guarderr.KindInvalidTransition, k)
}

func TestMachine_HistoryIsAppendOnlyCopy(t *testing.T) {
	m := NewSubmissionMachine()
	require.NoError(t, m.Transition(SubmissionConfirmed, "step1"))
	h := m.History()
	h[0].Reason = "mutated"
	assert.Equal(t, "step1", m.History()[0].Reason)
}
