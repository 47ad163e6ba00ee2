package model

import "time"

// SubRecordState is the ratcheted sub-transaction state machine. Rank order
// below is the partial order the ratchet enforces: an update only applies
// if its rank exceeds the stored rank.
type SubRecordState string

const (
	StateRouting                  SubRecordState = "routing"
	StateSplitting                SubRecordState = "splitting"
	StateIndexing                 SubRecordState = "indexing"
	StateCatalogPutting           SubRecordState = "catalog_putting"
	StateTransferPutting          SubRecordState = "transfer_putting"
	StateCataloging               SubRecordState = "cataloging"
	StateArchivePutting           SubRecordState = "archive_putting"
	StateCatalogArchiveAggregating SubRecordState = "catalog_archive_aggregating"
	StateArchiveGetting           SubRecordState = "archive_getting"
	StateCatalogGetting           SubRecordState = "catalog_getting"
	StateTransferGetting          SubRecordState = "transfer_getting"
	StateComplete                 SubRecordState = "complete"
	StateFailed                   SubRecordState = "failed"
)

// rank defines the ratchet's total order. Complete and Failed are both
// terminal and share the highest rank: once either is reached no further
// state update is possible, which is what "ratcheted, forward-only"
// requires — a failed sub cannot be resurrected to complete and vice
// versa, so the ratchet treats same-rank updates as no-ops via Allowed
// below rather than via a strict rank comparison alone.
var rankOrder = []SubRecordState{
	StateRouting,
	StateSplitting,
	StateIndexing,
	StateCatalogPutting,
	StateTransferPutting,
	StateCataloging,
	StateArchivePutting,
	StateCatalogArchiveAggregating,
	StateArchiveGetting,
	StateCatalogGetting,
	StateTransferGetting,
	StateComplete,
}

// Rank returns the state's position in the ratchet order. Failed is given
// the same terminal rank as Complete.
func (s SubRecordState) Rank() int {
	if s == StateFailed {
		return len(rankOrder) - 1
	}

	for i, r := range rankOrder {
		if r == s {
			return i
		}
	}

	return -1
}

// Terminal reports whether s is complete or failed.
func (s SubRecordState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Allowed applies the ratchet rule: a transition to next is allowed only if
// the current state is not already terminal and next's rank strictly
// exceeds current's, OR next is Failed (failure can always be recorded,
// since a system error can occur at any stage).
func (current SubRecordState) Allowed(next SubRecordState) bool {
	if current.Terminal() {
		return false
	}

	if next == StateFailed {
		return true
	}

	return next.Rank() > current.Rank()
}

// APIAction enumerates the top-level user operation a TransactionRecord
// represents.
type APIAction string

const (
	ActionPut        APIAction = "put"
	ActionGet        APIAction = "get"
	ActionDel        APIAction = "del"
	ActionArchivePut APIAction = "archive-put"
)

// TransactionRecord is the monitor's top-level, user-visible row for one
// transaction.
type TransactionRecord struct {
	ID            int64     `db:"id"`
	TransactionID string    `db:"transaction_id"`
	JobLabel      string    `db:"job_label"`
	User          string    `db:"user"`
	Group         string    `db:"group"`
	APIAction     APIAction `db:"api_action"`
	CreationTime  time.Time `db:"creation_time"`
}

// SubRecord is one sub-transaction's ratcheted progress.
type SubRecord struct {
	ID                  int64          `db:"id"`
	SubID               string         `db:"sub_id"`
	TransactionRecordID int64          `db:"transaction_record_id"`
	State               SubRecordState `db:"state"`
	RetryCount          int            `db:"retry_count"`
	LastUpdated         time.Time      `db:"last_updated"`
}

// FailedFile is one per-file failure reason recorded against a SubRecord.
type FailedFile struct {
	ID          int64  `db:"id"`
	FilePath    string `db:"filepath"`
	Reason      string `db:"reason"`
	SubRecordID int64  `db:"sub_record_id"`
}

// Warning is a non-fatal, user-visible note attached to a TransactionRecord.
type Warning struct {
	ID                  int64  `db:"id"`
	WarningText         string `db:"warning"`
	TransactionRecordID int64  `db:"transaction_record_id"`
}

// Rollup computes a TransactionRecord's displayed overall state from its
// SubRecords: the least-advanced (minimum rank) state, except that once
// every sub is terminal and at least one failed, the rollup is Failed.
func Rollup(subs []SubRecord) SubRecordState {
	if len(subs) == 0 {
		return StateComplete
	}

	allTerminal := true
	anyFailed := false
	min := subs[0].State

	for _, s := range subs {
		if !s.State.Terminal() {
			allTerminal = false
		}

		if s.State == StateFailed {
			anyFailed = true
		}

		if s.State.Rank() < min.Rank() {
			min = s.State
		}
	}

	if allTerminal && anyFailed {
		return StateFailed
	}

	if allTerminal {
		return StateComplete
	}

	return min
}
