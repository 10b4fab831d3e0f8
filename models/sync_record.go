// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"time"
)

// EntityType identifies which entity store a sync operation targets.
type EntityType string

const (
	EntityTypeReminder EntityType = "reminder"
	EntityTypeHoliday  EntityType = "holiday"
)

// Valid reports whether the entity type is one of the supported tags.
// Unknown tags are rejected at batch intake before any ledger row is written.
func (e EntityType) Valid() bool {
	switch e {
	case EntityTypeReminder, EntityTypeHoliday:
		return true
	}
	return false
}

// UserScoped reports whether rows of this entity type belong to a single
// user. Holidays are shared: every user's ledger rows count toward a
// holiday's effective version, and its deletion is visible to every user's
// tombstone feed.
func (e EntityType) UserScoped() bool {
	return e != EntityTypeHoliday
}

// GlobalEntityTypes lists the entity types whose rows are shared across
// users.
func GlobalEntityTypes() []EntityType {
	return []EntityType{EntityTypeHoliday}
}

// OperationType is the kind of mutation a client submits during sync.
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// Valid reports whether the operation type is one of create, update, delete.
func (o OperationType) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// SyncStatus is the lifecycle state of a SyncRecord.
//
// Transitions: pending → completed | failed | conflict, and conflict → resolved.
// A resolved record is immutable audit history; the corrective write produced
// by conflict resolution is a new SyncRecord.
type SyncStatus string

const (
	StatusPending   SyncStatus = "pending"
	StatusCompleted SyncStatus = "completed"
	StatusFailed    SyncStatus = "failed"
	StatusConflict  SyncStatus = "conflict"
	StatusResolved  SyncStatus = "resolved"
)

// Resolution names the strategy applied to a conflicted SyncRecord.
type Resolution string

const (
	// ResolutionServer keeps the server data; no corrective write is issued.
	ResolutionServer Resolution = "server"

	// ResolutionClient re-applies the client's original payload with the
	// version counter advanced past the conflicting server write.
	ResolutionClient Resolution = "client"

	// ResolutionMerge applies a caller-supplied merged payload as an update,
	// with the version counter advanced past the conflicting server write.
	ResolutionMerge Resolution = "merge"
)

// Valid reports whether the resolution is one of server, client, merge.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionServer, ResolutionClient, ResolutionMerge:
		return true
	}
	return false
}

// ConflictData captures both sides of a detected version conflict so the
// client can inspect them before choosing a resolution strategy.
// It is populated only while the owning SyncRecord has status "conflict".
type ConflictData struct {
	// ServerVersion is the effective version recorded in the ledger at the
	// time the conflicting operation arrived.
	ServerVersion int64 `json:"server_version"`

	// ClientVersion is the version the client believed it was mutating.
	ClientVersion int64 `json:"client_version"`

	// ServerEntity is the current authoritative entity snapshot, or null if
	// the entity no longer exists on the server.
	ServerEntity json.RawMessage `json:"server_entity,omitempty"`

	// ClientEntity is the payload the client intended to write.
	ClientEntity json.RawMessage `json:"client_entity,omitempty"`
}

// SyncRecord is one row of the sync ledger: the durable record of a single
// attempted operation within a sync call. Exactly one SyncRecord is written
// per structurally valid incoming operation, regardless of outcome.
//
// EntityData is opaque to the ledger; only the entity store matching
// EntityType deserializes it.
type SyncRecord struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"user_id"`
	DeviceID      string          `json:"device_id"`
	EntityType    EntityType      `json:"entity_type"`
	OperationType OperationType   `json:"operation_type"`
	EntityID      string          `json:"entity_id"`
	EntityData    json.RawMessage `json:"entity_data,omitempty"`
	Version       int64           `json:"version"`
	Status        SyncStatus      `json:"status"`
	ConflictData  *ConflictData   `json:"conflict_data,omitempty"`
	Resolution    Resolution      `json:"resolution,omitempty"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	SyncTime      time.Time       `json:"sync_time"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Tombstone marks a server-side deletion so clients can learn about removals
// without the deleted row existing to query.
type Tombstone struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	SyncTime   time.Time  `json:"sync_time"`
}
