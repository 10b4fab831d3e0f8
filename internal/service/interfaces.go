// Package service implements the sync engine's business logic: batch
// processing, conflict detection and resolution, the server update feed, and
// bearer token verification. All persistence is reached through the store
// layer's interfaces so every component here is testable with mocks.
package service

import (
	"context"
	"time"

	"github.com/MKhiriev/go-remind-sync/models"
)

// SyncProcessor orchestrates one client sync call: triage, conflict
// detection, transactional application, and the update feed for the reply.
type SyncProcessor interface {
	Process(ctx context.Context, userID int64, request models.SyncRequest, page models.PageRequest) (*models.SyncResponse, error)
}

// ConflictResolver applies a resolution strategy to a previously flagged
// conflict and, for client/merge strategies, issues the corrective write.
type ConflictResolver interface {
	Resolve(ctx context.Context, userID int64, request models.ResolveConflictRequest) (*models.ResolveResult, error)
}

// LedgerReader exposes the read-only ledger views served over HTTP.
type LedgerReader interface {
	ListRecords(ctx context.Context, userID int64, filter models.RecordFilter) ([]models.SyncRecord, error)
	LastSyncTime(ctx context.Context, userID int64, deviceID string) (*time.Time, error)
}

// TokenParser verifies a bearer token and extracts the authenticated user id.
type TokenParser interface {
	ParseToken(tokenString string) (int64, error)
}
