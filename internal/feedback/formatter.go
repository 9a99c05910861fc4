// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package feedback selects the single coaching code emitted per frame, from
// quality streaks and biomechanical streaks under a cooldown.
package feedback

import (
	"sort"

	"github.com/kinetiq/formcoach/internal/biomech"
	"github.com/kinetiq/formcoach/internal/history"
	"github.com/kinetiq/formcoach/internal/pose"
)

// Code is a client-facing feedback code.
type Code string

// Channel-holding specials. Any other code is an actual coaching message.
const (
	Silent Code = "SILENT"
	Valid  Code = "VALID"
)

// Quality-kind feedback codes.
const (
	NoPersonDetected    Code = "NO_PERSON_DETECTED"
	PartialBodyDetected Code = "PARTIAL_BODY_DETECTED"
	UserIsTooFar        Code = "USER_IS_TOO_FAR"
	CameraIsUnstable    Code = "CAMERA_IS_UNSTABLE"
)

// Holds reports whether the code holds the channel instead of speaking.
// Held codes let the cooldown counter grow; emitted codes reset it.
func (c Code) Holds() bool {
	return c == Silent || c == Valid
}

// FromQuality converts a pose quality kind to its feedback code.
func FromQuality(kind pose.QualityKind) Code {
	switch kind {
	case pose.QualityNoPerson:
		return NoPersonDetected
	case pose.QualityPartialBody:
		return PartialBodyDetected
	case pose.QualityTooFar:
		return UserIsTooFar
	case pose.QualityUnstable:
		return CameraIsUnstable
	default:
		return Silent
	}
}

// FromError converts a detected error code to its feedback code. The error
// detector config already uses client-facing names, so this is the identity
// for every biomechanical code.
func FromError(code biomech.Code) Code {
	return Code(code)
}

// Params carries the formatter thresholds.
type Params struct {
	PoseQualityFeedbackThreshold int
	BioFeedbackThreshold         int
	CooldownFrames               int
}

// Choose picks the code for the newest frame. Read-only on history; the
// orchestrator records the outcome through the history manager.
func Choose(d *history.Data, p Params) Code {
	if d.StateOK() {
		name, streak := worstBioStreak(d)
		if name == "" {
			return Valid
		}
		if streak < p.BioFeedbackThreshold {
			return Silent
		}
		if d.FramesSinceLastFeedback < p.CooldownFrames {
			return Silent
		}
		return FromError(biomech.Code(name))
	}

	if d.FramesSinceLastValid < p.PoseQualityFeedbackThreshold {
		return Silent
	}
	kind, streak := worstQualityStreak(d)
	if streak == 0 {
		return Silent
	}
	if d.FramesSinceLastFeedback < p.CooldownFrames {
		return Silent
	}
	return FromQuality(kind)
}

// worstBioStreak returns the biomechanical error with the longest running
// streak. Ties break lexicographically so the choice is deterministic.
func worstBioStreak(d *history.Data) (string, int) {
	names := make([]string, 0, len(d.ErrorStreaks))
	for name, streak := range d.ErrorStreaks {
		if streak > 0 && biomech.IsBiomechanical(biomech.Code(name)) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", 0
	}
	sort.Strings(names)
	best, bestStreak := "", 0
	for _, name := range names {
		if d.ErrorStreaks[name] > bestStreak {
			best, bestStreak = name, d.ErrorStreaks[name]
		}
	}
	return best, bestStreak
}

func worstQualityStreak(d *history.Data) (pose.QualityKind, int) {
	kinds := make([]string, 0, len(d.BadFrameStreaks))
	for kind, streak := range d.BadFrameStreaks {
		if streak > 0 {
			kinds = append(kinds, string(kind))
		}
	}
	if len(kinds) == 0 {
		return "", 0
	}
	sort.Strings(kinds)
	var best pose.QualityKind
	bestStreak := 0
	for _, kind := range kinds {
		if s := d.BadFrameStreaks[pose.QualityKind(kind)]; s > bestStreak {
			best, bestStreak = pose.QualityKind(kind), s
		}
	}
	return best, bestStreak
}
