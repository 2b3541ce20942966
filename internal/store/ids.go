// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package store

import "github.com/google/uuid"

// UUIDGenerator produces RFC 4122 v4 identifiers.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}
