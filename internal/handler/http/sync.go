// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/internal/utils"
	"github.com/MKhiriev/go-remind-sync/models"
)

// Sync handles POST /api/sync. The body carries the device's pending
// operation queue and its last sync watermark; page and page_size query
// parameters control slicing of the reply's update feed.
//
// Per-operation failures and conflicts are reported inside the 200 response;
// only request-level problems produce an error status.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "user not authenticated", http.StatusUnauthorized)
		return
	}

	var request models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		log.Err(err).Str("func", "Handler.Sync").Msg("failed to decode sync request body")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	page := parsePageRequest(r)

	response, err := h.services.Sync.Process(r.Context(), userID, request, page)
	if err != nil {
		log.Err(err).Str("func", "Handler.Sync").Int64("user_id", userID).Msg("sync call failed")
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	if _, writeErr := utils.WriteJSON(w, response, http.StatusOK); writeErr != nil {
		log.Err(writeErr).Str("func", "Handler.Sync").Msg("failed to write sync response")
	}
}

// ResolveConflict handles POST /api/sync/resolve-conflict.
func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "user not authenticated", http.StatusUnauthorized)
		return
	}

	var request models.ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		log.Err(err).Str("func", "Handler.ResolveConflict").Msg("failed to decode resolve request body")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.services.Resolver.Resolve(r.Context(), userID, request)
	if err != nil {
		log.Err(err).
			Str("func", "Handler.ResolveConflict").
			Str("sync_record_id", request.SyncRecordID).
			Msg("conflict resolution failed")
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	if _, writeErr := utils.WriteJSON(w, result, http.StatusOK); writeErr != nil {
		log.Err(writeErr).Str("func", "Handler.ResolveConflict").Msg("failed to write resolve response")
	}
}

// ListRecords handles GET /api/sync/records. Optional query parameters:
// entity_type, status, limit, offset.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "user not authenticated", http.StatusUnauthorized)
		return
	}

	filter := models.RecordFilter{
		EntityType: models.EntityType(r.URL.Query().Get("entity_type")),
		Status:     models.SyncStatus(r.URL.Query().Get("status")),
	}
	if limit, err := strconv.ParseUint(r.URL.Query().Get("limit"), 10, 64); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.ParseUint(r.URL.Query().Get("offset"), 10, 64); err == nil {
		filter.Offset = offset
	}

	records, err := h.services.Ledger.ListRecords(r.Context(), userID, filter)
	if err != nil {
		log.Err(err).Str("func", "Handler.ListRecords").Int64("user_id", userID).Msg("failed to list sync records")
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	response := models.RecordsResponse{Records: records, Length: len(records)}
	if _, writeErr := utils.WriteJSON(w, response, http.StatusOK); writeErr != nil {
		log.Err(writeErr).Str("func", "Handler.ListRecords").Msg("failed to write records response")
	}
}

// LastSyncTime handles GET /api/sync/last-sync-time?device_id=...
func (h *Handler) LastSyncTime(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "user not authenticated", http.StatusUnauthorized)
		return
	}

	deviceID := r.URL.Query().Get("device_id")

	lastSyncTime, err := h.services.Ledger.LastSyncTime(r.Context(), userID, deviceID)
	if err != nil {
		log.Err(err).
			Str("func", "Handler.LastSyncTime").
			Int64("user_id", userID).
			Str("device_id", deviceID).
			Msg("failed to fetch last sync time")
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	response := models.LastSyncTimeResponse{DeviceID: deviceID, LastSyncTime: lastSyncTime}
	if _, writeErr := utils.WriteJSON(w, response, http.StatusOK); writeErr != nil {
		log.Err(writeErr).Str("func", "Handler.LastSyncTime").Msg("failed to write last sync time response")
	}
}

// parsePageRequest reads the optional page / page_size query parameters.
// Absent or malformed values leave the feed unpaginated.
func parsePageRequest(r *http.Request) models.PageRequest {
	var page models.PageRequest

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page.Page = p
	}
	if size, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && size > 0 {
		page.PageSize = size
	}

	return page
}
