package services

import (
	"testing"

	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(routingKey string) model.Envelope {
	return model.Envelope{RoutingKey: routingKey}
}

func TestTransitionRoutePutToIndexInit(t *testing.T) {
	t.Parallel()

	out, ok, err := Transition(envelope("nlds-api.route.put"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "nlds-api.index.init", out.String())
}

func TestTransitionEchoesApplicationSegment(t *testing.T) {
	t.Parallel()

	out, ok, err := Transition(envelope("custom-app.route.put"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "custom-app", out.Application)
}

func TestTransitionFullPutChain(t *testing.T) {
	t.Parallel()

	steps := []struct {
		in   string
		want string
	}{
		{"a.route.put", "a.index.init"},
		{"a.index.complete", "a.catalog-put.start"},
		{"a.catalog-put.complete", "a.transfer-put.init"},
		{"a.transfer-put.complete", "a.catalog-update.start"},
	}

	for _, s := range steps {
		out, ok, err := Transition(envelope(s.in))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, s.want, out.String())
	}
}

func TestTransitionTransferPutFailedTriggersCatalogDel(t *testing.T) {
	t.Parallel()

	out, ok, err := Transition(envelope("a.transfer-put.failed"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.catalog-del.start", out.String())
}

func TestTransitionGetChain(t *testing.T) {
	t.Parallel()

	out, ok, err := Transition(envelope("a.route.get"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.catalog-get.start", out.String())

	out, ok, err = Transition(envelope("a.catalog-get.archive-restore"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.archive-get.prepare", out.String())
}

func TestTransitionWarmGetCompleteGoesStraightToTransferGet(t *testing.T) {
	t.Parallel()

	out, ok, err := Transition(envelope("a.catalog-get.complete"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.transfer-get.init", out.String())
}

func TestTransitionArchiveRecallChainReachesTransferGet(t *testing.T) {
	t.Parallel()

	out, ok, err := Transition(envelope("a.catalog-get.archive-restore"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.archive-get.prepare", out.String())

	out, ok, err = Transition(envelope("a.archive-get.complete"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.catalog-update.start", out.String())

	in := model.Envelope{RoutingKey: "a.catalog-update.complete", Details: model.Details{APIAction: "get"}}
	out, ok, err = Transition(in)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.transfer-get.init", out.String())
}

func TestTransitionArchiveGetFailedTriggersCatalogRemove(t *testing.T) {
	t.Parallel()

	out, ok, err := Transition(envelope("a.archive-get.failed"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.catalog-remove.start", out.String())
}

func TestTransitionCatalogUpdateCompleteIsTerminalForPutFlow(t *testing.T) {
	t.Parallel()

	in := model.Envelope{RoutingKey: "a.catalog-update.complete", Details: model.Details{APIAction: "put"}}
	_, ok, err := Transition(in)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransitionUnrecoverableFailedEmitsNoFollowOn(t *testing.T) {
	t.Parallel()

	_, ok, err := Transition(envelope("a.index.failed"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransitionMalformedRoutingKeyIsError(t *testing.T) {
	t.Parallel()

	_, _, err := Transition(envelope("not-three-segments"))
	assert.Error(t, err)
}
