package pose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sideParams() SideParams {
	return SideParams{
		LandmarkVisibilityThreshold: 0.5,
		DominanceRatioThreshold:     0.7,
		FrontSymmetryThreshold:      0.1,
		MinRequiredLandmarkRatio:    0.5,
	}
}

func sideLandmarks(leftVis, rightVis float64) Landmarks {
	lm := spreadLandmarks(0.9)
	for _, idx := range LeftSideIndices {
		lm[idx].Visibility = leftVis
	}
	for _, idx := range RightSideIndices {
		lm[idx].Visibility = rightVis
	}
	return lm
}

func TestDetectSide(t *testing.T) {
	tests := []struct {
		name     string
		leftVis  float64
		rightVis float64
		want     Side
	}{
		{"left profile", 0.9, 0.1, SideLeft},
		{"right profile", 0.1, 0.9, SideRight},
		{"facing camera", 0.9, 0.9, SideFront},
		{"nothing visible", 0.1, 0.1, SideUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSide(sideLandmarks(tt.leftVis, tt.rightVis), sideParams()))
		})
	}
}

func TestDetectSideIncompleteMatrix(t *testing.T) {
	assert.Equal(t, SideUnknown, DetectSide(make(Landmarks, 10), sideParams()))
}

func TestDetectSideBelowDominance(t *testing.T) {
	// One side leads but neither reaches the dominance ratio.
	lm := sideLandmarks(0.9, 0.9)
	// 5 of 8 left landmarks visible (0.625), 3 of 8 right (0.375):
	// asymmetric but not dominant.
	for i, idx := range LeftSideIndices {
		if i >= 5 {
			lm[idx].Visibility = 0.1
		}
	}
	for i, idx := range RightSideIndices {
		if i >= 3 {
			lm[idx].Visibility = 0.1
		}
	}
	assert.Equal(t, SideUnknown, DetectSide(lm, sideParams()))
}
