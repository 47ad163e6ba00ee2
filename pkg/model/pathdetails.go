// Package model defines the data that flows between NLDS stages: the
// per-file PathDetails record and the message Envelope that carries a
// filelist of them between worker processes.
package model

import "time"

// PathType enumerates what kind of filesystem entry a PathDetails refers to.
type PathType string

const (
	PathTypeFile         PathType = "file"
	PathTypeDirectory    PathType = "directory"
	PathTypeLinkCommon   PathType = "link-common"
	PathTypeLinkAbsolute PathType = "link-absolute"
)

// PathDetails is the unit of work flowing through every stage of the
// pipeline. original_path is the only field guaranteed present from the
// first message onward; object_name is populated once transfer-put
// succeeds.
type PathDetails struct {
	OriginalPath string   `json:"original_path" bson:"original_path"`
	ObjectName   string   `json:"object_name,omitempty" bson:"object_name,omitempty"`
	Size         int64    `json:"size" bson:"size"`
	UID          uint32   `json:"uid" bson:"uid"`
	GID          uint32   `json:"gid" bson:"gid"`
	Permissions  uint32   `json:"permissions" bson:"permissions"`
	AccessTime   time.Time `json:"access_time" bson:"access_time"`
	PathType     PathType `json:"path_type" bson:"path_type"`
	LinkTarget   string   `json:"link_target,omitempty" bson:"link_target,omitempty"`

	Retries      int      `json:"retries" bson:"retries"`
	RetryReasons []string `json:"retry_reasons,omitempty" bson:"retry_reasons,omitempty"`

	// AggregationID, if set, names the tape aggregate this path belongs to
	// once it has been through archive-put/archive-get; it is a per-stage
	// hint rather than a field every stage populates.
	AggregationID string `json:"aggregation_id,omitempty" bson:"aggregation_id,omitempty"`
}

// IsSymlink reports whether p records a symbolic link of either flavour.
func (p *PathDetails) IsSymlink() bool {
	return p.PathType == PathTypeLinkCommon || p.PathType == PathTypeLinkAbsolute
}

// AddRetryReason increments the retry counter and appends reason to the
// ordered trail of why this file has been retried.
func (p *PathDetails) AddRetryReason(reason string) {
	p.Retries++
	p.RetryReasons = append(p.RetryReasons, reason)
}

// FileList is a batch of PathDetails carried in a single message's data
// section.
type FileList []PathDetails

// TotalSize sums the Size field across the list, used by the indexer to
// decide when a batch crosses the byte threshold.
func (fl FileList) TotalSize() int64 {
	var total int64
	for _, p := range fl {
		total += p.Size
	}

	return total
}
