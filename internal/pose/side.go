// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package pose

import "math"

// Side is the detected camera angle relative to the subject.
type Side string

const (
	SideLeft    Side = "LEFT"
	SideRight   Side = "RIGHT"
	SideFront   Side = "FRONT"
	SideUnknown Side = "UNKNOWN"
)

// SideParams carries the thresholds for position-side detection.
type SideParams struct {
	LandmarkVisibilityThreshold float64
	DominanceRatioThreshold     float64
	FrontSymmetryThreshold      float64
	MinRequiredLandmarkRatio    float64
}

// DetectSide classifies the camera angle from per-side landmark visibility.
// Callers validate the result against the exercise's allowed sides; UNKNOWN
// is always treated as not-OK.
func DetectSide(lm Landmarks, p SideParams) Side {
	if !lm.Complete() {
		return SideUnknown
	}
	clean := lm.Sanitized()
	left := clean.VisibilityRatio(LeftSideIndices, p.LandmarkVisibilityThreshold)
	right := clean.VisibilityRatio(RightSideIndices, p.LandmarkVisibilityThreshold)

	if math.Max(left, right) < p.MinRequiredLandmarkRatio {
		return SideUnknown
	}
	if math.Abs(left-right) <= p.FrontSymmetryThreshold {
		return SideFront
	}
	if left >= p.DominanceRatioThreshold && left > right {
		return SideLeft
	}
	if right >= p.DominanceRatioThreshold && right > left {
		return SideRight
	}
	return SideUnknown
}
