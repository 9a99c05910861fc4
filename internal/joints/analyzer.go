// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package joints computes exercise-relevant joint angles from a landmark
// matrix.
package joints

import (
	"math"

	"github.com/kinetiq/formcoach/internal/exercise"
	"github.com/kinetiq/formcoach/internal/pose"
)

// Params carries the analyzer thresholds.
type Params struct {
	VisibilityThreshold float64
	MinValidJointRatio  float64
}

// Result is the outcome of one analysis pass. Angles maps joint name to
// degrees; a joint that could not be computed is absent from the map.
type Result struct {
	Angles         map[string]float64
	CoreValidRatio float64
}

// SufficientCore reports whether enough CORE joints resolved to run the
// downstream detectors.
func (r Result) SufficientCore(minRatio float64) bool {
	return r.CoreValidRatio >= minRatio
}

// Analyze computes all joints the exercise defines for the given side and
// evaluation mode. The core ratio is taken over the CORE joints actually
// evaluable from this side; lateral joints hidden by the camera angle do not
// count against it.
func Analyze(lm pose.Landmarks, def *exercise.Definition, side pose.Side, extended bool, p Params) Result {
	clean := lm.Sanitized()
	angles := make(map[string]float64)

	coreTotal, coreValid := 0, 0
	for _, spec := range def.Joints(side, extended) {
		isCore := specIsCore(def, spec.Name)
		if isCore {
			coreTotal++
		}
		deg, ok := jointAngle(clean, spec, p.VisibilityThreshold)
		if !ok {
			continue
		}
		angles[spec.Name] = deg
		if isCore {
			coreValid++
		}
	}

	ratio := 1.0
	if coreTotal > 0 {
		ratio = float64(coreValid) / float64(coreTotal)
	}
	return Result{Angles: angles, CoreValidRatio: ratio}
}

func specIsCore(def *exercise.Definition, name string) bool {
	for _, j := range def.Core {
		if j.Name == name {
			return true
		}
	}
	return false
}

func jointAngle(lm pose.Landmarks, spec exercise.JointSpec, visThreshold float64) (float64, bool) {
	for _, idx := range spec.Points {
		if idx < 0 || idx >= len(lm) {
			return 0, false
		}
		if lm[idx].Visibility < visThreshold {
			return 0, false
		}
	}
	switch len(spec.Points) {
	case 3:
		return threePointAngle(lm[spec.Points[0]], lm[spec.Points[1]], lm[spec.Points[2]])
	case 2:
		return twoPointIncline(lm[spec.Points[0]], lm[spec.Points[1]])
	default:
		return 0, false
	}
}

// threePointAngle returns the interior angle at b in degrees.
func threePointAngle(a, b, c pose.Landmark) (float64, bool) {
	ux, uy, uz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	vx, vy, vz := c.X-b.X, c.Y-b.Y, c.Z-b.Z

	nu := math.Sqrt(ux*ux + uy*uy + uz*uz)
	nv := math.Sqrt(vx*vx + vy*vy + vz*vz)
	if nu == 0 || nv == 0 {
		return 0, false
	}
	cos := (ux*vx + uy*vy + uz*vz) / (nu * nv)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi, true
}

// twoPointIncline returns the line's angle against the horizontal axis in
// degrees, ignoring depth. Identical endpoints cannot form a line.
func twoPointIncline(a, b pose.Landmark) (float64, bool) {
	dx, dy := b.X-a.X, b.Y-a.Y
	if dx == 0 && dy == 0 {
		return 0, false
	}
	return math.Atan2(math.Abs(dy), math.Abs(dx)) * 180 / math.Pi, true
}
