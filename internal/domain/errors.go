// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package domain defines the error taxonomy shared by every component.
//
// Components recover locally from TRANSIENT and TIMEOUT within their retry
// budgets; every other kind bubbles up unchanged and is mapped to a
// transport-level response at the API edge only.
package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and retry decisions.
type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindInsufficientContent Kind = "INSUFFICIENT_CONTENT"
	KindRoomFull            Kind = "ROOM_FULL"
	KindRoomClosed          Kind = "ROOM_CLOSED"
	KindAlreadyMember       Kind = "ALREADY_MEMBER"
	KindAlreadyVoted        Kind = "ALREADY_VOTED"
	KindNotMember           Kind = "NOT_MEMBER"
	KindItemNotInRoom       Kind = "ITEM_NOT_IN_ROOM"
	KindConditionFailed     Kind = "CONDITION_FAILED"
	KindTransient           Kind = "TRANSIENT"
	KindTimeout             Kind = "TIMEOUT"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindNotFound            Kind = "NOT_FOUND"
)

// Error carries a Kind alongside a wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes two domain errors equal when their kinds match, so callers can
// compare against the sentinel values below with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// E constructs a domain error of the given kind.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Sentinel values for errors.Is comparisons.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrInsufficientContent = &Error{Kind: KindInsufficientContent}
	ErrRoomFull            = &Error{Kind: KindRoomFull}
	ErrRoomClosed          = &Error{Kind: KindRoomClosed}
	ErrAlreadyMember       = &Error{Kind: KindAlreadyMember}
	ErrAlreadyVoted        = &Error{Kind: KindAlreadyVoted}
	ErrNotMember           = &Error{Kind: KindNotMember}
	ErrItemNotInRoom       = &Error{Kind: KindItemNotInRoom}
	ErrConditionFailed     = &Error{Kind: KindConditionFailed}
	ErrTransient           = &Error{Kind: KindTransient}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrNotFound            = &Error{Kind: KindNotFound}
)

// KindOf extracts the kind from err, or empty string for non-domain errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Retryable reports whether the error is worth retrying locally.
// TIMEOUT is retryable only when the caller knows the operation is
// idempotent; that decision stays with the caller.
func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}
