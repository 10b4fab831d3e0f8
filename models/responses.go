// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"time"
)

// OperationResult reports the outcome of a single batch operation.
// OperationID echoes the client-supplied reference (see SyncOperation.Ref)
// so the client can reconcile its local mutation queue.
type OperationResult struct {
	OperationID  string        `json:"operation_id"`
	EntityType   EntityType    `json:"entity_type"`
	EntityID     string        `json:"entity_id"`
	SyncRecordID string        `json:"sync_record_id,omitempty"`
	Error        string        `json:"error,omitempty"`
	ConflictData *ConflictData `json:"conflict_data,omitempty"`
}

// SyncResult aggregates the three per-operation outcome buckets of a batch.
// A structurally invalid operation lands in Failed without a SyncRecordID.
type SyncResult struct {
	Success   []OperationResult `json:"success"`
	Failed    []OperationResult `json:"failed"`
	Conflicts []OperationResult `json:"conflicts"`
}

// Pagination describes how the update feed lists were sliced.
// Totals holds the full (pre-slicing) length of each list, keyed by entity
// type plus "deleted_entities", so the client knows whether to fetch more.
type Pagination struct {
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Totals   map[string]int `json:"totals"`
}

// ServerUpdates is the server→client delta since the client's watermark:
// changed entities per type, deletion tombstones, and an optional pagination
// block when the client requested sliced lists.
//
// Entity payloads stay opaque (already-serialized rows produced by the
// entity stores), so the feed builder does not depend on entity internals.
type ServerUpdates struct {
	Entities        map[EntityType][]json.RawMessage
	DeletedEntities []Tombstone
	Pagination      *Pagination
}

// MarshalJSON flattens Entities so each entity type becomes a top-level key
// of the server_updates object, alongside deleted_entities and pagination:
//
//	{"reminder": [...], "holiday": [...], "deleted_entities": [...], "pagination": {...}}
func (u ServerUpdates) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Entities)+2)

	for entityType, items := range u.Entities {
		if items == nil {
			items = []json.RawMessage{}
		}
		out[string(entityType)] = items
	}

	deleted := u.DeletedEntities
	if deleted == nil {
		deleted = []Tombstone{}
	}
	out["deleted_entities"] = deleted

	if u.Pagination != nil {
		out["pagination"] = u.Pagination
	}

	return json.Marshal(out)
}

// SyncResponse is the body returned by POST /api/sync.
// SyncTime is the server-side timestamp of this sync call; the client stores
// it and sends it back as last_sync_time on the next call.
type SyncResponse struct {
	Results       SyncResult    `json:"results"`
	ServerUpdates ServerUpdates `json:"server_updates"`
	SyncTime      time.Time     `json:"sync_time"`
}

// ResolveResult is the body returned by POST /api/sync/resolve-conflict.
// FollowUpRecordID is set for client/merge resolutions, naming the new
// SyncRecord created for the corrective write.
type ResolveResult struct {
	EntityID         string     `json:"entity_id"`
	Resolution       Resolution `json:"resolution"`
	FollowUpRecordID string     `json:"follow_up_record_id,omitempty"`
	ResolvedAt       time.Time  `json:"resolved_at"`
}

// RecordsResponse is the body returned by GET /api/sync/records.
type RecordsResponse struct {
	Records []SyncRecord `json:"records"`
	Length  int          `json:"length"`
}

// LastSyncTimeResponse is the body returned by GET /api/sync/last-sync-time.
// LastSyncTime is nil when the device has never completed a sync.
type LastSyncTimeResponse struct {
	DeviceID     string     `json:"device_id"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
}
