// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package history

import (
	"math"
	"time"

	"github.com/kinetiq/formcoach/internal/exercise"
	"github.com/kinetiq/formcoach/internal/pose"
)

// Limits bounds the rolling structures. Zero values are not valid; callers
// take them from validated config.
type Limits struct {
	FramesRollingWindowSize        int
	BadFrameLogSize                int
	LowMotionAngleDegreesThreshold float64
}

// Manager performs all writes to Data. It carries no lock of its own: the
// pipeline orchestrator is the single writer and already holds the session
// lock around every call.
type Manager struct {
	Limits Limits
}

// RecordValidFrame appends an accepted frame, updates the low-motion streak,
// resets the invalid-frame bookkeeping and bumps the OK streak.
func (m *Manager) RecordValidFrame(d *Data, frameID string, lm pose.Landmarks, joints map[string]float64, now time.Time) {
	m.updateLowMotion(d, joints)

	f := Frame{
		FrameID:   frameID,
		Timestamp: now,
		Landmarks: lm.Clone(),
		Joints:    cloneJoints(joints),
	}
	d.Frames = append(d.Frames, f)
	if max := m.Limits.FramesRollingWindowSize; max > 0 && len(d.Frames) > max {
		d.Frames = d.Frames[len(d.Frames)-max:]
	}
	d.LastValidFrame = &d.Frames[len(d.Frames)-1]

	d.ConsecutiveOKFrames++
	d.FramesSinceLastValid = 0
	for k := range d.BadFrameStreaks {
		d.BadFrameStreaks[k] = 0
	}
}

// RecordInvalidFrame accounts a rejected frame of the given quality kind.
// Exactly that kind's streak increments; all others reset.
func (m *Manager) RecordInvalidFrame(d *Data, frameID string, kind pose.QualityKind, now time.Time) {
	d.ConsecutiveOKFrames = 0
	d.FramesSinceLastValid++
	d.BadFrameCounters[kind]++
	for k := range d.BadFrameStreaks {
		if k != kind {
			d.BadFrameStreaks[k] = 0
		}
	}
	d.BadFrameStreaks[kind]++

	d.BadFramesLog = append(d.BadFramesLog, BadFrame{FrameID: frameID, Timestamp: now, Kind: kind})
	if max := m.Limits.BadFrameLogSize; max > 0 && len(d.BadFramesLog) > max {
		d.BadFramesLog = d.BadFramesLog[len(d.BadFramesLog)-max:]
	}
}

// RecordPhase applies a detected phase, advancing the repetition cycle.
//
// Rep progression against the configured transition order:
//   - stepping to the next expected non-initial phase opens a rep at index 0
//     and advances the index;
//   - returning to the initial phase from a non-zero index closes the current
//     rep;
//   - any other jump resets the index without closing a rep.
func (m *Manager) RecordPhase(d *Data, order []exercise.Phase, newPhase exercise.Phase, frameID string, joints map[string]float64, now time.Time) {
	oldPhase := d.PhaseState
	if oldPhase == "" {
		d.PhaseState = newPhase
		return
	}
	if newPhase == oldPhase {
		return
	}

	i := d.CurrentTransitionIndex
	var nextPhase exercise.Phase
	if i+1 < len(order) {
		nextPhase = order[i+1]
	}
	var initialPhase exercise.Phase
	if len(order) > 0 {
		initialPhase = order[0]
	}

	switch {
	case newPhase == nextPhase && newPhase != initialPhase:
		if i == 0 {
			d.CurrentRep = &OpenRep{
				StartTime: now,
				Notified:  make(map[string]bool),
			}
		}
		d.CurrentTransitionIndex++
	case newPhase == initialPhase && i != 0:
		m.closeRep(d, now)
		d.CurrentTransitionIndex = 0
	default:
		d.CurrentTransitionIndex = 0
	}

	if n := len(d.PhaseTransitions); n > 0 {
		prev := d.PhaseTransitions[n-1]
		d.PhaseDurations = append(d.PhaseDurations, PhaseDuration{
			Phase:      oldPhase,
			StartTime:  prev.Timestamp,
			EndTime:    now,
			Seconds:    now.Sub(prev.Timestamp).Seconds(),
			FrameStart: prev.FrameID,
			FrameEnd:   frameID,
		})
	}

	d.PhaseTransitions = append(d.PhaseTransitions, Transition{
		From:      oldPhase,
		To:        newPhase,
		Timestamp: now,
		FrameID:   frameID,
		Joints:    cloneJoints(joints),
	})
	d.PhaseState = newPhase
}

func (m *Manager) closeRep(d *Data, now time.Time) {
	rep := d.CurrentRep
	if rep == nil {
		return
	}
	d.Repetitions = append(d.Repetitions, Repetition{
		StartTime: rep.StartTime,
		EndTime:   now,
		Seconds:   now.Sub(rep.StartTime).Seconds(),
		IsCorrect: !rep.HasError,
		Errors:    append([]string(nil), rep.Errors...),
	})
	d.RepCount++
	d.CurrentRep = nil
}

// RecordFrameError accounts a detector verdict for the newest frame.
// biomechanical marks real form faults that must accumulate on the open rep;
// the neutral verdicts (no error / not ready) only touch counters and streaks.
func (m *Manager) RecordFrameError(d *Data, errName string, biomechanical bool) {
	d.ErrorCounters[errName]++
	for k := range d.ErrorStreaks {
		if k != errName {
			d.ErrorStreaks[k] = 0
		}
	}
	d.ErrorStreaks[errName]++

	if d.LastValidFrame != nil {
		d.LastValidFrame.Errors = append(d.LastValidFrame.Errors, errName)
	}
	if biomechanical && d.CurrentRep != nil {
		d.CurrentRep.HasError = true
		d.CurrentRep.Errors = append(d.CurrentRep.Errors, errName)
	}
}

// RecordFeedback updates the cooldown bookkeeping after a formatter decision.
// held is true for the codes that hold the channel (SILENT, VALID); they let
// the cooldown counter grow, any emitted code resets it and is marked as
// notified on the open rep.
func (m *Manager) RecordFeedback(d *Data, code string, held bool) {
	if held {
		d.FramesSinceLastFeedback++
		return
	}
	d.FramesSinceLastFeedback = 0
	if d.CurrentRep != nil {
		d.CurrentRep.Notified[code] = true
	}
}

// ResetOKStreak clears the calibration OK streak.
func (m *Manager) ResetOKStreak(d *Data) {
	d.ConsecutiveOKFrames = 0
}

// BumpOKStreak increments the calibration OK streak and returns the new value.
func (m *Manager) BumpOKStreak(d *Data) int {
	d.ConsecutiveOKFrames++
	return d.ConsecutiveOKFrames
}

// ResetInitialPhaseCounter clears the positioning streak.
func (m *Manager) ResetInitialPhaseCounter(d *Data) {
	d.InitialPhaseCounter = 0
}

// BumpInitialPhaseCounter increments the positioning streak and returns it.
func (m *Manager) BumpInitialPhaseCounter(d *Data) int {
	d.InitialPhaseCounter++
	return d.InitialPhaseCounter
}

// SetCameraStable marks calibration as settled.
func (m *Manager) SetCameraStable(d *Data) {
	d.IsCameraStable = true
}

// SetPositionSide stores the validated camera side.
func (m *Manager) SetPositionSide(d *Data, side pose.Side) {
	d.PositionSide = side
}

// StampStart records the exercise start time.
func (m *Manager) StampStart(d *Data, now time.Time) {
	d.ExerciseStartTime = now
}

// StampPause opens a pause window. At most one pause is open at a time.
func (m *Manager) StampPause(d *Data, now time.Time) {
	d.PauseSessionTimestamp = now
}

// StampResume closes the open pause window and accumulates its duration.
func (m *Manager) StampResume(d *Data, now time.Time) {
	if d.PauseSessionTimestamp.IsZero() {
		return
	}
	d.PausesDurations += now.Sub(d.PauseSessionTimestamp).Seconds()
	d.PauseSessionTimestamp = time.Time{}
}

// StampEnd finalizes the session clock: closes a pause left open, closes the
// running phase segment (without an end frame), and computes the net exercise
// duration.
func (m *Manager) StampEnd(d *Data, now time.Time) {
	if !d.PauseSessionTimestamp.IsZero() {
		d.PausesDurations += now.Sub(d.PauseSessionTimestamp).Seconds()
		d.PauseSessionTimestamp = time.Time{}
	}
	d.ExerciseEndTime = now

	if n := len(d.PhaseTransitions); n > 0 && d.PhaseState != "" {
		prev := d.PhaseTransitions[n-1]
		d.PhaseDurations = append(d.PhaseDurations, PhaseDuration{
			Phase:      d.PhaseState,
			StartTime:  prev.Timestamp,
			EndTime:    now,
			Seconds:    now.Sub(prev.Timestamp).Seconds(),
			FrameStart: prev.FrameID,
		})
	}

	if !d.ExerciseStartTime.IsZero() {
		total := now.Sub(d.ExerciseStartTime).Seconds() - d.PausesDurations
		if total < 0 {
			total = 0
		}
		d.ExerciseFinalDuration = total
	}
}

// updateLowMotion compares the incoming joints against the previous valid
// frame; when no angle moved more than the configured threshold the streak
// grows, otherwise it resets.
func (m *Manager) updateLowMotion(d *Data, joints map[string]float64) {
	if d.LastValidFrame == nil || len(joints) == 0 {
		d.LowMotionStreak = 0
		return
	}
	prev := d.LastValidFrame.Joints
	maxDelta := 0.0
	compared := 0
	for name, deg := range joints {
		prevDeg, ok := prev[name]
		if !ok {
			continue
		}
		compared++
		if delta := math.Abs(deg - prevDeg); delta > maxDelta {
			maxDelta = delta
		}
	}
	if compared == 0 {
		d.LowMotionStreak = 0
		return
	}
	if maxDelta <= m.Limits.LowMotionAngleDegreesThreshold {
		d.LowMotionStreak++
	} else {
		d.LowMotionStreak = 0
	}
}

func cloneJoints(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
