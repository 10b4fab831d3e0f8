package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/go-remind-sync/internal/service"
	"github.com/MKhiriev/go-remind-sync/internal/store"
)

// errorStatusMap pins each well-known service and store error to an HTTP
// status. Anything unmatched is a 500.
var errorStatusMap = map[error]int{
	service.ErrValidation:         http.StatusBadRequest,
	service.ErrInvalidResolution:  http.StatusBadRequest,
	service.ErrMergedDataRequired: http.StatusBadRequest,
	service.ErrBatchTooLarge:      http.StatusRequestEntityTooLarge,
	service.ErrForbidden:          http.StatusForbidden,
	service.ErrNotConflicted:      http.StatusConflict,

	store.ErrSyncRecordNotFound:   http.StatusNotFound,
	store.ErrEntityNotFound:       http.StatusNotFound,
	store.ErrEntityAlreadyExists:  http.StatusConflict,
	store.ErrInvalidEntityPayload: http.StatusUnprocessableEntity,
	store.ErrUnknownEntityType:    http.StatusBadRequest,
}

// statusFromError resolves the HTTP status for err using [errors.Is] so
// wrapped sentinels still match.
func statusFromError(err error) int {
	for sentinel, status := range errorStatusMap {
		if errors.Is(err, sentinel) {
			return status
		}
	}
	return http.StatusInternalServerError
}
