// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package api exposes the HTTP surface: room lifecycle, swiping, match
// retrieval and the room event stream.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/logging"
	"github.com/reelswipe/reelswipe/internal/models"
)

// respondJSON writes the success envelope.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	resp := models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	}
	writeJSON(w, r, status, resp)
}

// respondError maps a domain error onto an HTTP status and writes the
// error envelope. Unknown errors are masked as 500 without detail.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	code := string(kind)
	if status == http.StatusInternalServerError {
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled error")
		message = "internal error"
		code = "INTERNAL"
	}
	resp := models.APIResponse{
		Status: "error",
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	}
	writeJSON(w, r, status, resp)
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindNotMember:
		return http.StatusForbidden
	case domain.KindRoomFull, domain.KindRoomClosed, domain.KindAlreadyMember,
		domain.KindAlreadyVoted, domain.KindConditionFailed:
		return http.StatusConflict
	case domain.KindItemNotInRoom, domain.KindInsufficientContent:
		return http.StatusUnprocessableEntity
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindTransient, domain.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// decodeJSON reads and closes the request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Wrap(domain.KindValidation, "malformed JSON body", err)
	}
	return nil
}
