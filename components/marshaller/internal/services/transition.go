// Package services implements the marshaller's transition table (§4.2):
// stateless routing from one inbound message to exactly one outbound
// publication. The marshaller never holds state between calls — every
// decision is a pure function of the inbound routing key and the
// envelope's details/data.
package services

import (
	"fmt"

	"github.com/cedadev/nlds-go/pkg/model"
)

// Transition computes the single next message to publish for an inbound
// envelope, or ok=false if no further action is required (e.g. a
// terminal *.failed with an unrecoverable error, which only emits a
// monitor failure — handled by the caller, not by publishing a follow-on
// stage message).
func Transition(in model.Envelope) (out model.RoutingKey, ok bool, err error) {
	key, err := model.ParseRoutingKey(in.RoutingKey)
	if err != nil {
		return model.RoutingKey{}, false, fmt.Errorf("marshaller: %w", err)
	}

	switch {
	case key.Worker == model.WorkerRoute && key.State == "put":
		return key.WithWorkerState(model.WorkerIndex, model.StageInit), true, nil

	case key.Worker == model.WorkerIndex && key.State == model.StageComplete:
		return key.WithWorkerState(model.WorkerCatalogPut, model.StageStart), true, nil

	case key.Worker == model.WorkerCatalogPut && key.State == model.StageComplete:
		return key.WithWorkerState(model.WorkerTransferPut, model.StageInit), true, nil

	case key.Worker == model.WorkerTransferPut && key.State == model.StageComplete:
		return key.WithWorkerState(model.WorkerCatalogUpdate, model.StageStart), true, nil

	case key.Worker == model.WorkerTransferPut && key.State == model.StageFailed:
		return key.WithWorkerState(model.WorkerCatalogDel, model.StageStart), true, nil

	case key.Worker == model.WorkerRoute && key.State == "get":
		return key.WithWorkerState(model.WorkerCatalogGet, model.StageStart), true, nil

	case key.Worker == model.WorkerCatalogGet && key.State == model.StageArchiveRestore:
		return key.WithWorkerState(model.WorkerArchiveGet, model.StagePrepare), true, nil

	case key.Worker == model.WorkerCatalogGet && key.State == model.StageComplete:
		// Warm hit: every resolved file already had an OBJECT_STORE
		// location, so there is nothing to recall from tape. Go straight
		// to delivery.
		return key.WithWorkerState(model.WorkerTransferGet, model.StageInit), true, nil

	case key.Worker == model.WorkerArchiveGet && key.State == model.StageComplete:
		// Tape recall finished: the recalled members were re-uploaded to
		// the object store under the empty location catalog-get staged
		// earlier, so fill it in before transfer-get can read it.
		return key.WithWorkerState(model.WorkerCatalogUpdate, model.StageStart), true, nil

	case key.Worker == model.WorkerArchiveGet && key.State == model.StageFailed:
		return key.WithWorkerState(model.WorkerCatalogRemove, model.StageStart), true, nil

	case key.Worker == model.WorkerCatalogUpdate && key.State == model.StageComplete && in.Details.APIAction == string(model.ActionGet):
		// Join point for the tape-recall path: the OBJECT_STORE location
		// is now populated, so the recalled members are ready for the
		// same delivery step a warm hit takes.
		return key.WithWorkerState(model.WorkerTransferGet, model.StageInit), true, nil

	case key.Worker == model.WorkerCatalogArchiveNext && key.State == model.StageComplete:
		return key.WithWorkerState(model.WorkerArchivePut, model.StageInit), true, nil

	case key.Worker == model.WorkerArchivePut && key.State == model.StageComplete:
		return key.WithWorkerState(model.WorkerCatalogArchiveUpdate, model.StageStart), true, nil

	case key.Worker == model.WorkerArchivePut && key.State == model.StageFailed:
		return key.WithWorkerState(model.WorkerCatalogArchiveDel, model.StageStart), true, nil

	case key.Worker == model.WorkerCatalogUpdate && key.State == model.StageComplete,
		key.Worker == model.WorkerCatalogDel && key.State == model.StageComplete,
		key.Worker == model.WorkerCatalogRemove && key.State == model.StageComplete,
		key.Worker == model.WorkerCatalogArchiveUpdate && key.State == model.StageComplete,
		key.Worker == model.WorkerCatalogArchiveDel && key.State == model.StageComplete:
		// Terminal for the marshaller's single-publish model: these only
		// feed a monitor update. catalog-update.complete is handled above
		// when it closes out the tape-recall join.
		return model.RoutingKey{}, false, nil

	case key.State == model.StageFailed:
		// Any other *.failed with an unrecoverable error: no further
		// stage publication, only a monitor failure (handled by caller).
		return model.RoutingKey{}, false, nil

	default:
		return model.RoutingKey{}, false, fmt.Errorf("marshaller: %w: %s", errUnknownTransition, in.RoutingKey)
	}
}

var errUnknownTransition = fmt.Errorf("no transition for inbound state")
