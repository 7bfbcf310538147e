// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reelswipe/reelswipe/internal/logging"
)

func TestRequestIDGeneratesWhenAbsent(t *testing.T) {
	var ctxID string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = logging.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	header := rec.Header().Get(RequestIDHeader)
	if header == "" {
		t.Fatal("response is missing the request ID header")
	}
	if ctxID != header {
		t.Errorf("context request ID %q differs from header %q", ctxID, header)
	}
}

func TestRequestIDHonorsClientValue(t *testing.T) {
	var ctxID string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = logging.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-supplied")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "client-supplied" {
		t.Errorf("request ID header = %q, want client-supplied", got)
	}
	if ctxID != "client-supplied" {
		t.Errorf("context request ID = %q, want client-supplied", ctxID)
	}
}

func TestRequestIDAssignsCorrelationID(t *testing.T) {
	var correlation string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		correlation = logging.CorrelationIDFromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if correlation == "" {
		t.Error("correlation ID missing from request context")
	}
}
