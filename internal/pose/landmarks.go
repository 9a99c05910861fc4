// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package pose defines the 33-point body landmark model, the extractor seam,
// and the stateless per-frame checks built on top of it (quality gate,
// position-side detection).
package pose

import "math"

// LandmarkCount is the fixed size of a full-body landmark set.
const LandmarkCount = 33

// Landmark is one body keypoint in normalized image coordinates.
type Landmark struct {
	X          float64
	Y          float64
	Z          float64
	Visibility float64
}

// Landmarks is a full-body keypoint matrix. A valid set has exactly
// LandmarkCount entries; anything else is treated as "no person".
type Landmarks []Landmark

// Body landmark indices.
const (
	Nose          = 0
	LeftShoulder  = 11
	RightShoulder = 12
	LeftElbow     = 13
	RightElbow    = 14
	LeftWrist     = 15
	RightWrist    = 16
	LeftHip       = 23
	RightHip      = 24
	LeftKnee      = 25
	RightKnee     = 26
	LeftAnkle     = 27
	RightAnkle    = 28
	LeftHeel      = 29
	RightHeel     = 30
	LeftFootIndex = 31
	RightFootIdx  = 32
)

// LeftSideIndices are the body landmarks on the subject's left side.
var LeftSideIndices = []int{LeftShoulder, LeftElbow, LeftWrist, LeftHip, LeftKnee, LeftAnkle, LeftHeel, LeftFootIndex}

// RightSideIndices are the body landmarks on the subject's right side.
var RightSideIndices = []int{RightShoulder, RightElbow, RightWrist, RightHip, RightKnee, RightAnkle, RightHeel, RightFootIdx}

// Complete reports whether the matrix has the full landmark count.
func (l Landmarks) Complete() bool {
	return len(l) == LandmarkCount
}

// Clone returns a deep copy. History records must never alias pipeline buffers.
func (l Landmarks) Clone() Landmarks {
	if l == nil {
		return nil
	}
	out := make(Landmarks, len(l))
	copy(out, l)
	return out
}

// Sanitized returns a copy with NaN coordinates and visibilities replaced by 0.
func (l Landmarks) Sanitized() Landmarks {
	out := l.Clone()
	for i := range out {
		if math.IsNaN(out[i].X) {
			out[i].X = 0
		}
		if math.IsNaN(out[i].Y) {
			out[i].Y = 0
		}
		if math.IsNaN(out[i].Z) {
			out[i].Z = 0
		}
		if math.IsNaN(out[i].Visibility) {
			out[i].Visibility = 0
		}
	}
	return out
}

// BoundingBoxArea returns the normalized (x,y) bounding box area of all points.
func (l Landmarks) BoundingBoxArea() float64 {
	if len(l) == 0 {
		return 0
	}
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range l {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return (maxX - minX) * (maxY - minY)
}

// VisibilityRatio returns the fraction of the given indices whose visibility
// is at or above threshold. An empty index set counts as fully visible.
func (l Landmarks) VisibilityRatio(indices []int, threshold float64) float64 {
	if len(indices) == 0 {
		return 1
	}
	visible := 0
	for _, idx := range indices {
		if idx >= 0 && idx < len(l) && l[idx].Visibility >= threshold {
			visible++
		}
	}
	return float64(visible) / float64(len(indices))
}

// MeanDelta returns the mean Euclidean (x,y) displacement against a previous
// landmark set of equal size.
func (l Landmarks) MeanDelta(prev Landmarks) float64 {
	if len(l) == 0 || len(l) != len(prev) {
		return 0
	}
	var sum float64
	for i := range l {
		dx := l[i].X - prev[i].X
		dy := l[i].Y - prev[i].Y
		sum += math.Hypot(dx, dy)
	}
	return sum / float64(len(l))
}
