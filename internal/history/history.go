// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package history holds the per-session rolling analysis state. Data is a
// plain container: every mutation goes through Manager, which is only called
// by the pipeline orchestrator under the session lock. Detectors and the
// summary builder read it directly.
package history

import (
	"time"

	"github.com/kinetiq/formcoach/internal/exercise"
	"github.com/kinetiq/formcoach/internal/pose"
)

// Frame is one accepted frame.
type Frame struct {
	FrameID   string
	Timestamp time.Time
	Landmarks pose.Landmarks // deep copy, never aliased
	Joints    map[string]float64
	Errors    []string
}

// BadFrame is one rejected frame.
type BadFrame struct {
	FrameID   string
	Timestamp time.Time
	Kind      pose.QualityKind
}

// Transition is a phase change event.
type Transition struct {
	From      exercise.Phase
	To        exercise.Phase
	Timestamp time.Time
	FrameID   string
	Joints    map[string]float64
}

// PhaseDuration is a finished phase segment. FrameEnd may be empty when the
// session closed mid-phase.
type PhaseDuration struct {
	Phase      exercise.Phase
	StartTime  time.Time
	EndTime    time.Time
	Seconds    float64
	FrameStart string
	FrameEnd   string
}

// Repetition is one completed traversal of the transition order.
type Repetition struct {
	StartTime time.Time
	EndTime   time.Time
	Seconds   float64
	IsCorrect bool
	Errors    []string
}

// OpenRep is the repetition currently in progress.
type OpenRep struct {
	StartTime time.Time
	HasError  bool
	Errors    []string
	Notified  map[string]bool // feedback codes already surfaced during this rep
}

// Data is the rolling per-session state. All writes go through Manager.
type Data struct {
	Frames              []Frame
	LastValidFrame      *Frame
	ConsecutiveOKFrames int

	PhaseState             exercise.Phase // empty means not yet established
	PhaseTransitions       []Transition
	PhaseDurations         []PhaseDuration
	CurrentTransitionIndex int

	BadFrameCounters     map[pose.QualityKind]int
	BadFrameStreaks      map[pose.QualityKind]int
	BadFramesLog         []BadFrame
	FramesSinceLastValid int
	InitialPhaseCounter  int

	ErrorCounters map[string]int
	ErrorStreaks  map[string]int

	RepCount    int
	Repetitions []Repetition
	CurrentRep  *OpenRep

	ExerciseStartTime     time.Time
	ExerciseEndTime       time.Time
	PauseSessionTimestamp time.Time
	PausesDurations       float64 // accumulated seconds
	ExerciseFinalDuration float64

	FramesSinceLastFeedback int

	LowMotionStreak int
	IsCameraStable  bool
	PositionSide    pose.Side
}

// New returns an empty history.
func New() *Data {
	return &Data{
		BadFrameCounters: make(map[pose.QualityKind]int),
		BadFrameStreaks:  make(map[pose.QualityKind]int),
		ErrorCounters:    make(map[string]int),
		ErrorStreaks:     make(map[string]int),
		PositionSide:     pose.SideUnknown,
	}
}

// StateOK reports whether the most recent pipeline event was a valid frame,
// i.e. detectors may trust LastValidFrame as the newest observation.
func (d *Data) StateOK() bool {
	return d.LastValidFrame != nil && d.FramesSinceLastValid == 0
}
