// Package services implements the monitor's two operations: recording a
// ratcheted sub-transaction update as each stage's message passes
// through, and answering stat queries over the RPC channel (§4.9, §4.10).
package services

import (
	"context"

	"github.com/cedadev/nlds-go/components/monitor/internal/adapters/postgres"
	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/model"
)

// Monitor wires the monitor's four repositories into its update/query
// operations.
type Monitor struct {
	Transactions *postgres.TransactionRepository
	SubRecords   *postgres.SubRecordRepository
	FailedFiles  *postgres.FailedFileRepository
	Warnings     *postgres.WarningRepository
}

// RecordUpdate applies one ratcheted state transition for a sub-
// transaction, creating the TransactionRecord/SubRecord rows on first
// sight. A disallowed (replayed or out-of-order) transition is a no-op,
// not an error — every handler is expected to be idempotent under
// at-least-once delivery (§7).
func (m *Monitor) RecordUpdate(ctx context.Context, details model.Details, next model.SubRecordState, failedPaths map[string]string) error {
	logger := mctx.LoggerFromContext(ctx)

	txRecord, err := m.Transactions.GetOrCreate(ctx, details.TransactionID, details.JobLabel, details.User, details.Group, model.APIAction(details.APIAction))
	if err != nil {
		return err
	}

	subRecord, err := m.SubRecords.GetOrCreate(ctx, txRecord.ID, details.SubID)
	if err != nil {
		return err
	}

	applied, err := m.SubRecords.ApplyRatchet(ctx, details.SubID, next)
	if err != nil {
		return err
	}

	if !applied {
		logger.Infof("monitor: dropped out-of-order/replayed transition sub_id=%s next=%s", details.SubID, next)
		return nil
	}

	if next == model.StateFailed {
		if err := m.SubRecords.IncrementRetry(ctx, details.SubID); err != nil {
			return err
		}
	}

	for path, reason := range failedPaths {
		if err := m.FailedFiles.Create(ctx, subRecord.ID, path, reason); err != nil {
			return err
		}
	}

	return nil
}

// TransactionStat is the user-facing rollup for one transaction: overall
// state plus the per-sub breakdown backing it.
type TransactionStat struct {
	Record  model.TransactionRecord
	Subs    []model.SubRecord
	Overall model.SubRecordState
}

// Stat answers the §4.10 monitor query: resolve a transaction's current
// rolled-up state from its sub-records.
func (m *Monitor) Stat(ctx context.Context, transactionID string) (*TransactionStat, error) {
	record, err := m.Transactions.Find(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	subs, err := m.SubRecords.ListByTransaction(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	return &TransactionStat{Record: *record, Subs: subs, Overall: model.Rollup(subs)}, nil
}
