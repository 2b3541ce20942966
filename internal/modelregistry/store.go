// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package modelregistry holds named ranking models, dispatches an objective
// to the model that serves it, and persists trained snapshots to disk.
package modelregistry

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tomtom215/omnifeed/internal/rank"
)

// SnapshotMetadata describes a persisted model snapshot.
type SnapshotMetadata struct {
	Name      string
	TrainedAt time.Time
	SavedAt   time.Time
	Examples  int
	Checksum  string
	SizeBytes int64
}

type storedFile struct {
	Metadata       SnapshotMetadata
	CompressedData []byte
}

// DiskStore persists rank.Model snapshots as gob-encoded, gzip-compressed
// files named "{name}.gob.gz" under a base directory, one file per model
// name (the registry only ever needs the latest trained state).
type DiskStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewDiskStore creates (if needed) baseDir and returns a DiskStore rooted there.
func NewDiskStore(baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create model storage directory: %w", err)
	}
	return &DiskStore{baseDir: baseDir}, nil
}

func (s *DiskStore) path(name string) string {
	return filepath.Join(s.baseDir, name+".gob.gz")
}

// Save gob-encodes and gzip-compresses snap, recording a checksum so Load
// can detect corruption.
func (s *DiskStore) Save(name string, snap rank.Snapshot, meta SnapshotMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("encode model snapshot: %w", err)
	}
	raw := buf.Bytes()

	hash := sha256.Sum256(raw)
	meta.Checksum = hex.EncodeToString(hash[:])
	meta.Name = name
	meta.SavedAt = time.Now()

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw); err != nil {
		return fmt.Errorf("compress model snapshot: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}
	meta.SizeBytes = int64(compressed.Len())

	f, err := os.Create(s.path(name))
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sf := storedFile{Metadata: meta, CompressedData: compressed.Bytes()}
	if err := gob.NewEncoder(f).Encode(sf); err != nil {
		return fmt.Errorf("write model file: %w", err)
	}
	return nil
}

// Load reads back the snapshot and metadata previously saved for name.
func (s *DiskStore) Load(name string) (rank.Snapshot, SnapshotMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path(name))
	if err != nil {
		return rank.Snapshot{}, SnapshotMetadata{}, fmt.Errorf("open model file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return rank.Snapshot{}, SnapshotMetadata{}, fmt.Errorf("read model file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return rank.Snapshot{}, SnapshotMetadata{}, fmt.Errorf("decompress model: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return rank.Snapshot{}, SnapshotMetadata{}, fmt.Errorf("read decompressed model: %w", err)
	}

	hash := sha256.Sum256(raw)
	if hex.EncodeToString(hash[:]) != sf.Metadata.Checksum {
		return rank.Snapshot{}, SnapshotMetadata{}, fmt.Errorf("model snapshot checksum mismatch for %s", name)
	}

	var snap rank.Snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return rank.Snapshot{}, SnapshotMetadata{}, fmt.Errorf("decode model snapshot: %w", err)
	}
	return snap, sf.Metadata, nil
}
