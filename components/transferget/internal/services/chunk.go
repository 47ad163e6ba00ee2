package services

import "github.com/cedadev/nlds-go/pkg/model"

// ChunkConfig bounds how transfer-get.init splits one large filelist into
// transfer-get.start sublists.
type ChunkConfig struct {
	MaxLength int // L, default 1000
}

// DefaultChunkConfig matches the spec's default chunk length.
var DefaultChunkConfig = ChunkConfig{MaxLength: 1000}

// Chunk splits files into ceil(N/L) sublists of at most L entries each,
// matching the indexer's split behaviour so both components chunk large
// inputs identically (§4.3, §4.6).
func Chunk(cfg ChunkConfig, files model.FileList) []model.FileList {
	if cfg.MaxLength <= 0 {
		cfg = DefaultChunkConfig
	}

	if len(files) == 0 {
		return nil
	}

	var out []model.FileList

	for start := 0; start < len(files); start += cfg.MaxLength {
		end := start + cfg.MaxLength
		if end > len(files) {
			end = len(files)
		}

		out = append(out, files[start:end])
	}

	return out
}
