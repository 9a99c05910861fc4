// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package exercise defines the built-in exercise catalog: joint schemas,
// movement phases and allowed camera sides per exercise. Rule thresholds live
// in external config files; the catalog is the schema they are validated
// against.
package exercise

import (
	"fmt"
	"strings"

	"github.com/kinetiq/formcoach/internal/pose"
)

// Name identifies an exercise.
type Name string

const (
	Squat      Name = "squat"
	BicepsCurl Name = "biceps_curl"
)

// Phase is a named segment of an exercise's movement cycle. Phase values are
// exercise-scoped; the catalog lists which values each exercise defines.
type Phase string

// Squat phases.
const (
	SquatTop  Phase = "TOP"
	SquatDown Phase = "DOWN"
	SquatHold Phase = "HOLD"
	SquatUp   Phase = "UP"
)

// Biceps curl phases.
const (
	CurlRest  Phase = "REST"
	CurlLift  Phase = "LIFT"
	CurlTop   Phase = "TOP_HOLD"
	CurlLower Phase = "LOWER"
)

// JointSpec names a joint and the landmark indices that define it.
// Three points give an interior angle at the middle point; two points give
// the line's inclination against the horizontal axis.
type JointSpec struct {
	Name   string
	Points []int
}

// Definition is one catalog entry.
type Definition struct {
	Name         Name
	Phases       []Phase
	Core         []JointSpec
	Extended     []JointSpec
	AllowedSides []pose.Side
}

var catalog = map[Name]*Definition{
	Squat: {
		Name:   Squat,
		Phases: []Phase{SquatTop, SquatDown, SquatHold, SquatUp},
		Core: []JointSpec{
			{Name: "left_knee", Points: []int{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle}},
			{Name: "right_knee", Points: []int{pose.RightHip, pose.RightKnee, pose.RightAnkle}},
			{Name: "left_hip", Points: []int{pose.LeftShoulder, pose.LeftHip, pose.LeftKnee}},
			{Name: "right_hip", Points: []int{pose.RightShoulder, pose.RightHip, pose.RightKnee}},
		},
		Extended: []JointSpec{
			{Name: "left_torso_incline", Points: []int{pose.LeftShoulder, pose.LeftHip}},
			{Name: "right_torso_incline", Points: []int{pose.RightShoulder, pose.RightHip}},
		},
		AllowedSides: []pose.Side{pose.SideLeft, pose.SideRight, pose.SideFront},
	},
	BicepsCurl: {
		Name:   BicepsCurl,
		Phases: []Phase{CurlRest, CurlLift, CurlTop, CurlLower},
		Core: []JointSpec{
			{Name: "left_elbow", Points: []int{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist}},
			{Name: "right_elbow", Points: []int{pose.RightShoulder, pose.RightElbow, pose.RightWrist}},
		},
		Extended: []JointSpec{
			{Name: "left_shoulder", Points: []int{pose.LeftElbow, pose.LeftShoulder, pose.LeftHip}},
			{Name: "right_shoulder", Points: []int{pose.RightElbow, pose.RightShoulder, pose.RightHip}},
			{Name: "left_upper_arm_incline", Points: []int{pose.LeftShoulder, pose.LeftElbow}},
			{Name: "right_upper_arm_incline", Points: []int{pose.RightShoulder, pose.RightElbow}},
		},
		AllowedSides: []pose.Side{pose.SideLeft, pose.SideRight},
	},
}

// Lookup returns the catalog entry for an exercise.
func Lookup(name Name) (*Definition, error) {
	def, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("unknown exercise %q", name)
	}
	return def, nil
}

// Names returns all catalog exercises.
func Names() []Name {
	out := make([]Name, 0, len(catalog))
	for n := range catalog {
		out = append(out, n)
	}
	return out
}

// HasPhase reports whether the exercise defines the given phase.
func (d *Definition) HasPhase(p Phase) bool {
	for _, ph := range d.Phases {
		if ph == p {
			return true
		}
	}
	return false
}

// HasJoint reports whether the exercise schema defines the joint name.
func (d *Definition) HasJoint(name string) bool {
	for _, j := range d.Core {
		if j.Name == name {
			return true
		}
	}
	for _, j := range d.Extended {
		if j.Name == name {
			return true
		}
	}
	return false
}

// SideAllowed reports whether the camera side is valid for this exercise.
func (d *Definition) SideAllowed(s pose.Side) bool {
	for _, allowed := range d.AllowedSides {
		if allowed == s {
			return true
		}
	}
	return false
}

// JointAllowedOnSide reports whether a joint participates when filmed from
// the given side. Joints are lateralized by name: "left_*" joints are only
// evaluated from the left or front, "right_*" from the right or front.
// Unprefixed joints participate everywhere. An unknown side filters nothing,
// which matters during calibration before the side settles.
func JointAllowedOnSide(jointName string, side pose.Side) bool {
	switch side {
	case pose.SideLeft:
		return !strings.HasPrefix(jointName, "right_")
	case pose.SideRight:
		return !strings.HasPrefix(jointName, "left_")
	default:
		return true
	}
}

// Joints returns the joint specs to evaluate for the given side and
// evaluation mode, in schema order (CORE first).
func (d *Definition) Joints(side pose.Side, extended bool) []JointSpec {
	specs := make([]JointSpec, 0, len(d.Core)+len(d.Extended))
	for _, j := range d.Core {
		if JointAllowedOnSide(j.Name, side) {
			specs = append(specs, j)
		}
	}
	if extended {
		for _, j := range d.Extended {
			if JointAllowedOnSide(j.Name, side) {
				specs = append(specs, j)
			}
		}
	}
	return specs
}

// RequiredLandmarks returns the landmark index set the quality gate checks
// for this exercise, side and evaluation mode.
func (d *Definition) RequiredLandmarks(side pose.Side, extended bool) []int {
	seen := make(map[int]bool)
	var out []int
	for _, spec := range d.Joints(side, extended) {
		for _, idx := range spec.Points {
			if !seen[idx] {
				seen[idx] = true
				out = append(out, idx)
			}
		}
	}
	return out
}
