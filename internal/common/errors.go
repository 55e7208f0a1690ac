// Package common defines shared constants and sentinel errors used across
// the feed service and its operator CLI. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Pipeline errors. Both are handled at the orchestrator boundary and
	// never reach inbound callers.
	ErrFetchFailed = errors.New("fetch failed")
	ErrStoreFailed = errors.New("store failed")

	// Request validation errors.
	ErrUnknownGame         = errors.New("unknown game")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrInvalidCategory     = errors.New("invalid category")

	// Auth errors.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
)
