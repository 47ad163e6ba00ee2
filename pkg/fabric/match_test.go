package fabric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicMatchSingleSegmentWildcard(t *testing.T) {
	t.Parallel()

	assert.True(t, TopicMatch("*.catalog-put.start", "nlds-api.catalog-put.start"))
	assert.False(t, TopicMatch("*.catalog-put.start", "nlds-api.extra.catalog-put.start"))
}

func TestTopicMatchMultiSegmentWildcard(t *testing.T) {
	t.Parallel()

	assert.True(t, TopicMatch("#.index.init", "nlds-api.index.init"))
	assert.True(t, TopicMatch("#.index.init", "a.b.c.index.init"))
	assert.False(t, TopicMatch("#.index.init", "nlds-api.index.start"))
}

func TestTopicMatchMarshallerBindings(t *testing.T) {
	t.Parallel()

	assert.True(t, TopicMatch("nlds-api.route.*", "nlds-api.route.put"))
	assert.True(t, TopicMatch("nlds-api.*.complete", "nlds-api.transfer-put.complete"))
	assert.False(t, TopicMatch("nlds-api.route.*", "other-api.route.put"), "application segment must match literally when not wildcarded")
}
