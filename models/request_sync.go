// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"time"
)

// SyncOperation is a single client mutation submitted in a sync batch.
type SyncOperation struct {
	// OperationID is an optional client-supplied identifier used to map the
	// per-operation outcome back to the client's local mutation queue.
	// When empty, results reference EntityID instead.
	OperationID string `json:"operation_id,omitempty"`

	// EntityType selects the entity store the operation targets.
	EntityType EntityType `json:"entity_type"`

	// OperationType is one of create, update, delete.
	OperationType OperationType `json:"operation_type"`

	// EntityID identifies the target entity. Client-supplied for creates so
	// that the id is stable across retries.
	EntityID string `json:"entity_id"`

	// EntityData is the payload the client intends to write. Opaque to the
	// engine; decoded only by the owning entity store.
	EntityData json.RawMessage `json:"entity_data,omitempty"`

	// Version is the entity revision the client believed it was mutating.
	// Must be strictly greater than the effective version recorded in the
	// ledger to be accepted without conflict.
	Version int64 `json:"version"`
}

// Ref returns the identifier under which this operation's outcome is
// reported: the client-supplied OperationID when present, EntityID otherwise.
func (op SyncOperation) Ref() string {
	if op.OperationID != "" {
		return op.OperationID
	}
	return op.EntityID
}

// SyncRequest is the body of a POST /api/sync call.
type SyncRequest struct {
	// DeviceID identifies the originating device within the user's account.
	DeviceID string `json:"device_id"`

	// Operations is the client's pending mutation queue, applied in order.
	Operations []SyncOperation `json:"operations"`

	// LastSyncTime is the watermark of the client's previous successful sync.
	// The server update feed contains everything changed strictly after it.
	LastSyncTime time.Time `json:"last_sync_time"`
}

// ResolveConflictRequest is the body of a POST /api/sync/resolve-conflict call.
type ResolveConflictRequest struct {
	SyncRecordID string     `json:"sync_record_id"`
	Resolution   Resolution `json:"resolution"`

	// MergedData is required when Resolution is "merge": the caller-built
	// payload combining both sides of the conflict.
	MergedData json.RawMessage `json:"merged_data,omitempty"`
}

// RecordFilter narrows a GET /api/sync/records listing.
// Zero values mean "no constraint"; Limit defaults server-side.
type RecordFilter struct {
	EntityType EntityType
	Status     SyncStatus
	Limit      uint64
	Offset     uint64
}

// PageRequest carries optional pagination parameters for the update feed.
// Page is 1-based.
type PageRequest struct {
	Page     int
	PageSize int
}
