// Package services implements archive-put: bin-packing catalog candidates
// into tape-sized aggregates, then streaming each aggregate's members into
// a single tar-like bundle on tape (§4.7).
package services

import (
	"fmt"

	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/google/uuid"
)

// BinPackConfig bounds how large a single aggregate may grow before a new
// one is started.
type BinPackConfig struct {
	MaxAggregateBytes int64 // default 5-20 GB, site-configurable
}

// DefaultBinPackConfig matches the spec's suggested 10 GB default.
var DefaultBinPackConfig = BinPackConfig{MaxAggregateBytes: 10 << 30}

// BinPack partitions files into aggregates, each accumulating members in
// order until the next member would push it over MaxAggregateBytes. A
// single file larger than the ceiling gets its own aggregate rather than
// being split, since tape bundles are per-file atomic.
func BinPack(cfg BinPackConfig, files model.FileList) []model.Aggregate {
	if cfg.MaxAggregateBytes <= 0 {
		cfg = DefaultBinPackConfig
	}

	if len(files) == 0 {
		return nil
	}

	var (
		aggregates []model.Aggregate
		current    model.FileList
		currentSum int64
	)

	flush := func() {
		if len(current) == 0 {
			return
		}

		aggregates = append(aggregates, model.Aggregate{
			TarName: fmt.Sprintf("%s.tar", uuid.NewString()),
			Members: current,
		})

		current = nil
		currentSum = 0
	}

	for _, pd := range files {
		if currentSum > 0 && currentSum+pd.Size > cfg.MaxAggregateBytes {
			flush()
		}

		current = append(current, pd)
		currentSum += pd.Size
	}

	flush()

	return aggregates
}
