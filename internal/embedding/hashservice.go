// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// HashingService is a dependency-free Service implementation: it projects
// text into a fixed-dimensional vector via the hashing trick (each token
// hashes into a bucket, signed by a second hash bit) rather than calling
// out to a trained text encoder. It exists so the ingestion pipeline has a
// real, deterministic encoder to exercise when no hosted model is
// configured; swapping in a hosted provider means implementing Service,
// not changing any caller.
type HashingService struct {
	dim    int
	client *http.Client
}

// NewHashingService builds a HashingService producing vectors of the given
// dimension.
func NewHashingService(dim int) *HashingService {
	if dim <= 0 {
		dim = 256
	}
	return &HashingService{dim: dim, client: &http.Client{Timeout: 30 * time.Second}}
}

// Model returns the identifier recorded on embeddings this service produces.
func (s *HashingService) Model() string { return "hashing-v1" }

// Encode hashes each text into a dim-dimensional unit vector.
func (s *HashingService) Encode(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashEmbed(t, s.dim)
	}
	return out, nil
}

// EmbedText encodes a single string.
func (s *HashingService) EmbedText(_ context.Context, text string) ([]float32, error) {
	return hashEmbed(text, s.dim), nil
}

// EmbedAudioURL downloads the audio at url and hashes its raw bytes. This
// is a crude stand-in for acoustic features: real audio embeddings need a
// trained model the corpus doesn't provide, so the byte stream itself
// becomes the hashed signal.
func (s *HashingService) EmbedAudioURL(ctx context.Context, url string) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	h := sha1.New()
	if _, err := io.Copy(h, io.LimitReader(resp.Body, 8<<20)); err != nil {
		return nil, err
	}
	return hashEmbed(string(h.Sum(nil)), s.dim), nil
}

// hashEmbed tokenizes text on whitespace, hashes each token into a bucket
// of a dim-dimensional vector signed by a second hash bit, then L2-normalizes.
func hashEmbed(text string, dim int) []float32 {
	vec := make([]float64, dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		sum := sha1.Sum([]byte(tok))
		bucket := binary.BigEndian.Uint32(sum[0:4]) % uint32(dim)
		sign := 1.0
		if sum[4]&1 == 1 {
			sign = -1.0
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, dim)
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

var _ Service = (*HashingService)(nil)
