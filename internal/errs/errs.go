// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package errs defines the sentinel error taxonomy shared across engine
// components. Callers should compare with errors.Is against the sentinels
// below rather than inspecting message text.
package errs

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors. Wrap these with fmt.Errorf("...: %w", Err...) to attach
// context while keeping them matchable with errors.Is.
var (
	// ErrInvalidInput marks a request that failed validation before any
	// side effect occurred (bad config, malformed retriever DAG entry).
	ErrInvalidInput = errors.New("invalid input")

	// ErrFetch marks a failure to retrieve content from an external source
	// (network error, non-2xx response, timeout).
	ErrFetch = errors.New("fetch error")

	// ErrParse marks a failure to parse a fetched payload into content
	// items (malformed feed, unexpected schema).
	ErrParse = errors.New("parse error")

	// ErrModelUnavailable marks that no trained model exists for the
	// requested objective and no fallback could be resolved.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrOODFeatures marks that a feature vector fell outside the
	// distribution the active model was trained on.
	ErrOODFeatures = errors.New("out-of-distribution features")

	// ErrDualWriteConflict marks that the Content and Encoding halves of
	// an ingestion write diverged and could not be reconciled.
	ErrDualWriteConflict = errors.New("dual-write conflict")

	// ErrFatal marks a failure severe enough that the owning supervised
	// service should restart rather than continue. Only ErrFatal (or an
	// error wrapping it) should propagate out of a suture.Service.Serve.
	ErrFatal = errors.New("fatal error")

	// ErrRateLimited marks that a call was rejected or deferred by a
	// token-bucket or sliding-window throttle rather than by the remote
	// source itself.
	ErrRateLimited = errors.New("rate limited")
)

// Is reports whether err wraps target anywhere in its chain. Thin wrapper
// kept so call sites only need to import this package, not errors too.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Wrap annotates err with a sentinel and a message, preserving both for
// errors.Is/errors.As. If sentinel is nil, Wrap behaves like fmt.Errorf.
func Wrap(sentinel error, msg string, err error) error {
	if sentinel == nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if err == nil {
		return fmt.Errorf("%s: %w", msg, sentinel)
	}
	return fmt.Errorf("%s: %w: %w", msg, sentinel, err)
}

// CloseWithLog closes a resource and logs any error at warn level. Use for
// cleanup paths where a Close failure should be visible but must not fail
// the surrounding operation.
func CloseWithLog(closer io.Closer, logger *slog.Logger, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		if logger != nil {
			logger.Warn("failed to close resource", "type", resourceType, "error", err)
		}
	}
}

// CloseQuietly closes a resource and explicitly discards any error. Use in
// error paths already returning a more specific failure, where a Close
// error would only be noise.
func CloseQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
