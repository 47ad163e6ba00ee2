package services

import (
	"testing"

	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinPackSplitsOnSizeCeiling(t *testing.T) {
	t.Parallel()

	files := model.FileList{
		{OriginalPath: "/a", Size: 6},
		{OriginalPath: "/b", Size: 6},
		{OriginalPath: "/c", Size: 6},
	}

	aggregates := BinPack(BinPackConfig{MaxAggregateBytes: 10}, files)

	require.Len(t, aggregates, 3)
	assert.Len(t, aggregates[0].Members, 1)
	assert.Len(t, aggregates[1].Members, 1)
}

func TestBinPackEmptyInputReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, BinPack(DefaultBinPackConfig, nil))
}

func TestBinPackOversizedSingleFileGetsItsOwnAggregate(t *testing.T) {
	t.Parallel()

	files := model.FileList{{OriginalPath: "/huge", Size: 100}}

	aggregates := BinPack(BinPackConfig{MaxAggregateBytes: 10}, files)

	require.Len(t, aggregates, 1)
	assert.Len(t, aggregates[0].Members, 1)
}
