package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitExactlyLEntriesOneSubTransaction(t *testing.T) {
	t.Parallel()

	paths := make([]string, 1000)
	for i := range paths {
		paths[i] = "p"
	}

	subs := Split(DefaultSplitConfig, "txn-1", paths)

	assert.Len(t, subs, 1)
	assert.Len(t, subs[0].Paths, 1000)
}

func TestSplitLPlusOneEntriesTwoSubTransactions(t *testing.T) {
	t.Parallel()

	paths := make([]string, 1001)
	for i := range paths {
		paths[i] = "p"
	}

	subs := Split(DefaultSplitConfig, "txn-1", paths)

	assert.Len(t, subs, 2)
	assert.Len(t, subs[0].Paths, 1000)
	assert.Len(t, subs[1].Paths, 1)
}

func TestSplitEmptyListProducesNoSubTransactions(t *testing.T) {
	t.Parallel()

	subs := Split(DefaultSplitConfig, "txn-1", nil)
	assert.Empty(t, subs)
}

func TestSplitFreshSubIDRetainsParentTransactionID(t *testing.T) {
	t.Parallel()

	subs := Split(DefaultSplitConfig, "txn-99", []string{"a", "b"})

	assert.Len(t, subs, 1)
	assert.Equal(t, "txn-99", subs[0].TransactionID)
	assert.NotEmpty(t, subs[0].SubID)
}
