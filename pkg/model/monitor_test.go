package model

import "testing"

import "github.com/stretchr/testify/assert"

func TestSubRecordStateAllowed(t *testing.T) {
	t.Parallel()

	assert.True(t, StateRouting.Allowed(StateSplitting))
	assert.True(t, StateRouting.Allowed(StateIndexing))
	assert.False(t, StateIndexing.Allowed(StateRouting), "ratchet must not move backward")
	assert.False(t, StateComplete.Allowed(StateRouting), "terminal state rejects any further update")
	assert.False(t, StateFailed.Allowed(StateComplete), "terminal state rejects any further update")
	assert.True(t, StateTransferPutting.Allowed(StateFailed), "failure can be recorded from any non-terminal state")
}

func TestSubRecordStateIdempotentReplay(t *testing.T) {
	t.Parallel()

	// A message carrying an equal or older state than the stored one must
	// be a no-op under the ratchet.
	assert.False(t, StateCataloging.Allowed(StateCataloging))
	assert.False(t, StateCataloging.Allowed(StateIndexing))
}

func TestRollupMinimumOfNonTerminal(t *testing.T) {
	t.Parallel()

	subs := []SubRecord{
		{State: StateTransferPutting},
		{State: StateIndexing},
	}

	assert.Equal(t, StateIndexing, Rollup(subs))
}

func TestRollupCompleteWhenAllSubsTerminal(t *testing.T) {
	t.Parallel()

	subs := []SubRecord{{State: StateComplete}, {State: StateComplete}}

	assert.Equal(t, StateComplete, Rollup(subs))
}

func TestRollupFailedOncePromotedAfterAllTerminal(t *testing.T) {
	t.Parallel()

	subs := []SubRecord{{State: StateComplete}, {State: StateFailed}}

	assert.Equal(t, StateFailed, Rollup(subs))
}

func TestRollupNotFailedWhileOtherSubsStillInFlight(t *testing.T) {
	t.Parallel()

	// One sub failed but another is still progressing: rollup must not
	// jump to failed early.
	subs := []SubRecord{{State: StateFailed}, {State: StateIndexing}}

	assert.Equal(t, StateIndexing, Rollup(subs))
}

func TestRoutingKeyEchoesApplicationSegment(t *testing.T) {
	t.Parallel()

	k, err := ParseRoutingKey("nlds-api.route.put")
	assert.NoError(t, err)
	assert.Equal(t, "nlds-api", k.Application)

	next := k.WithWorkerState(WorkerIndex, StageInit)
	assert.Equal(t, "nlds-api.index.init", next.String())
}

func TestParseRoutingKeyRejectsWrongSegmentCount(t *testing.T) {
	t.Parallel()

	_, err := ParseRoutingKey("too.many.dots.here")
	assert.Error(t, err)

	_, err = ParseRoutingKey("onlytwo.segments")
	assert.Error(t, err)
}
