// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package pose

import (
	"context"
	"errors"

	"github.com/kinetiq/formcoach/internal/imaging"
)

// ErrExtraction signals that the extractor could not produce a landmark
// matrix for the frame. Callers surface it as an internal error, not a
// quality signal.
var ErrExtraction = errors.New("pose extraction failed")

// Extractor produces a 33x4 landmark matrix from a decoded frame. It is an
// injected capability: the production implementation wraps the external
// landmark model, tests inject a deterministic stub.
//
// Extraction is CPU-bound and runs synchronously inside the per-session
// pipeline lock, so implementations must not block on I/O.
type Extractor interface {
	Extract(ctx context.Context, frame *imaging.Frame) (Landmarks, error)
}

// StubExtractor replays canned landmark matrices in order. Once the script is
// exhausted it keeps returning the last entry. A nil entry yields an
// extraction error for that frame.
type StubExtractor struct {
	Script []Landmarks
	calls  int
}

// Extract implements Extractor.
func (s *StubExtractor) Extract(_ context.Context, _ *imaging.Frame) (Landmarks, error) {
	if len(s.Script) == 0 {
		return nil, ErrExtraction
	}
	idx := s.calls
	if idx >= len(s.Script) {
		idx = len(s.Script) - 1
	}
	s.calls++
	lm := s.Script[idx]
	if lm == nil {
		return nil, ErrExtraction
	}
	return lm.Clone(), nil
}

// Calls returns how many frames the stub has served.
func (s *StubExtractor) Calls() int { return s.calls }
