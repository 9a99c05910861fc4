// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package pose

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinetiq/formcoach/internal/imaging"
	xlog "github.com/kinetiq/formcoach/internal/log"
)

// RemoteExtractor calls the landmark model sidecar over HTTP. The sidecar
// receives the raw BGR pixel buffer and answers with a 33x4 matrix.
type RemoteExtractor struct {
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// NewRemoteExtractor builds the sidecar client. A zero timeout falls back to
// 500ms; extraction sits on the hot path and must fail fast.
func NewRemoteExtractor(endpoint string, timeout time.Duration) *RemoteExtractor {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &RemoteExtractor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   xlog.WithComponent("pose.remote"),
	}
}

type extractRequest struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Pixels string `json:"pixels"` // base64 BGR, 3 bytes per pixel
}

type extractResponse struct {
	Landmarks [][]float64 `json:"landmarks"`
}

// Extract implements Extractor.
func (e *RemoteExtractor) Extract(ctx context.Context, frame *imaging.Frame) (Landmarks, error) {
	body, err := json.Marshal(extractRequest{
		Width:  frame.Width,
		Height: frame.Height,
		Pixels: base64.StdEncoding.EncodeToString(frame.Pix),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrExtraction, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrExtraction, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn().Err(err).Str("event", "pose.extract_failed").Msg("landmark sidecar unreachable")
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: sidecar status %d", ErrExtraction, resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrExtraction, err)
	}
	if len(out.Landmarks) != LandmarkCount {
		return nil, fmt.Errorf("%w: expected %d landmarks, got %d", ErrExtraction, LandmarkCount, len(out.Landmarks))
	}

	lm := make(Landmarks, LandmarkCount)
	for i, row := range out.Landmarks {
		if len(row) != 4 {
			return nil, fmt.Errorf("%w: landmark %d has %d values", ErrExtraction, i, len(row))
		}
		lm[i] = Landmark{X: row[0], Y: row[1], Z: row[2], Visibility: row[3]}
	}
	return lm.Sanitized(), nil
}
