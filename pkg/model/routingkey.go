package model

import (
	"fmt"
	"strings"
)

// RoutingKey is the three-segment application.worker.state key every
// message on the fabric carries.
type RoutingKey struct {
	Application string
	Worker      string
	State       string
}

// String renders the key in wire form.
func (k RoutingKey) String() string {
	return fmt.Sprintf("%s.%s.%s", k.Application, k.Worker, k.State)
}

// ParseRoutingKey splits a wire-form key into its three segments. A key
// without exactly three dot-separated segments is a protocol error — see
// pkg/nlds.ErrMalformedEnvelope.
func ParseRoutingKey(s string) (RoutingKey, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return RoutingKey{}, fmt.Errorf("routing key %q: want 3 segments, got %d", s, len(parts))
	}

	return RoutingKey{Application: parts[0], Worker: parts[1], State: parts[2]}, nil
}

// WithWorkerState returns a copy of k with a new worker and state, keeping
// the application segment untouched — this is the mechanism by which a
// worker "echoes the caller's application segment verbatim" when emitting
// its own reply.
func (k RoutingKey) WithWorkerState(worker, state string) RoutingKey {
	return RoutingKey{Application: k.Application, Worker: worker, State: state}
}

// Worker/state name constants used across the transition table.
const (
	WorkerRoute                = "route"
	WorkerIndex                = "index"
	WorkerCatalogPut           = "catalog-put"
	WorkerCatalogGet           = "catalog-get"
	WorkerCatalogDel           = "catalog-del"
	WorkerCatalogUpdate        = "catalog-update"
	WorkerCatalogRemove        = "catalog-remove"
	WorkerCatalogArchiveNext   = "catalog-archive-next"
	WorkerCatalogArchiveUpdate = "catalog-archive-update"
	WorkerCatalogArchiveDel    = "catalog-archive-del"
	WorkerTransferPut          = "transfer-put"
	WorkerTransferGet          = "transfer-get"
	WorkerArchivePut           = "archive-put"
	WorkerArchiveGet           = "archive-get"
	WorkerMonitorPut           = "monitor-put"
	WorkerMonitorGet           = "monitor-get"
	WorkerLog                  = "log"

	StageInit           = "init"
	StageStart          = "start"
	StageComplete       = "complete"
	StageFailed         = "failed"
	StageReroute        = "reroute"
	StagePrepare        = "prepare"
	StagePrepareCheck   = "prepare-check"
	StageArchiveRestore = "archive-restore"
)
