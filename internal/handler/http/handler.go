// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package http exposes the sync engine over a JSON HTTP API:
//
//	POST /api/sync                   process a batch of client operations
//	POST /api/sync/resolve-conflict  apply a resolution strategy
//	GET  /api/sync/records           filtered ledger listing
//	GET  /api/sync/last-sync-time    latest completed sync for a device
//
// All routes require a bearer token verified by the auth middleware.
package http

import (
	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/internal/service"
)

// Handler holds the HTTP endpoints' dependencies.
type Handler struct {
	services *service.Services
	logger   *logger.Logger
}

// NewHandler constructs the HTTP handler over the wired services.
func NewHandler(services *service.Services, log *logger.Logger) *Handler {
	return &Handler{
		services: services,
		logger:   log.GetChildLogger(),
	}
}
