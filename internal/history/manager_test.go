package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetiq/formcoach/internal/exercise"
	"github.com/kinetiq/formcoach/internal/pose"
)

var squatOrder = []exercise.Phase{
	exercise.SquatTop, exercise.SquatDown, exercise.SquatHold, exercise.SquatUp, exercise.SquatTop,
}

func testManager() *Manager {
	return &Manager{Limits: Limits{
		FramesRollingWindowSize:        4,
		BadFrameLogSize:                3,
		LowMotionAngleDegreesThreshold: 2.0,
	}}
}

func fullLandmarks() pose.Landmarks {
	lm := make(pose.Landmarks, pose.LandmarkCount)
	for i := range lm {
		lm[i].Visibility = 0.9
	}
	return lm
}

func TestRecordValidFrameWindowBound(t *testing.T) {
	m := testManager()
	d := New()
	now := time.Now()

	for i := 0; i < 7; i++ {
		m.RecordValidFrame(d, fmt.Sprintf("f%d", i), fullLandmarks(), map[string]float64{"left_knee": 170}, now)
	}

	assert.Len(t, d.Frames, 4)
	assert.Equal(t, "f6", d.Frames[len(d.Frames)-1].FrameID)
	assert.Equal(t, "f6", d.LastValidFrame.FrameID)
	assert.Equal(t, 7, d.ConsecutiveOKFrames)
	assert.True(t, d.StateOK())
}

func TestRecordValidFrameCopiesLandmarks(t *testing.T) {
	m := testManager()
	d := New()
	lm := fullLandmarks()

	m.RecordValidFrame(d, "f1", lm, nil, time.Now())
	lm[0].X = 0.99

	assert.Equal(t, 0.0, d.LastValidFrame.Landmarks[0].X)
}

func TestRecordInvalidFrameStreaks(t *testing.T) {
	m := testManager()
	d := New()
	now := time.Now()

	m.RecordInvalidFrame(d, "b1", pose.QualityNoPerson, now)
	m.RecordInvalidFrame(d, "b2", pose.QualityNoPerson, now)
	assert.Equal(t, 2, d.BadFrameStreaks[pose.QualityNoPerson])
	assert.Equal(t, 2, d.FramesSinceLastValid)
	assert.False(t, d.StateOK())

	// A different kind resets the previous streak but keeps its counter.
	m.RecordInvalidFrame(d, "b3", pose.QualityTooFar, now)
	assert.Equal(t, 0, d.BadFrameStreaks[pose.QualityNoPerson])
	assert.Equal(t, 1, d.BadFrameStreaks[pose.QualityTooFar])
	assert.Equal(t, 2, d.BadFrameCounters[pose.QualityNoPerson])

	// Log is bounded.
	m.RecordInvalidFrame(d, "b4", pose.QualityTooFar, now)
	assert.Len(t, d.BadFramesLog, 3)
	assert.Equal(t, "b2", d.BadFramesLog[0].FrameID)
}

func TestValidFrameResetsBadStreaks(t *testing.T) {
	m := testManager()
	d := New()
	now := time.Now()

	m.RecordInvalidFrame(d, "b1", pose.QualityUnstable, now)
	m.RecordValidFrame(d, "f1", fullLandmarks(), nil, now)

	assert.Equal(t, 0, d.FramesSinceLastValid)
	assert.Equal(t, 0, d.BadFrameStreaks[pose.QualityUnstable])
	assert.Equal(t, 1, d.BadFrameCounters[pose.QualityUnstable])
	assert.True(t, d.StateOK())
}

func TestRecordPhaseFirstAndRepeated(t *testing.T) {
	m := testManager()
	d := New()
	now := time.Now()

	// First observation only establishes the state.
	m.RecordPhase(d, squatOrder, exercise.SquatTop, "f1", nil, now)
	assert.Equal(t, exercise.SquatTop, d.PhaseState)
	assert.Empty(t, d.PhaseTransitions)

	// Same phase again is a no-op.
	m.RecordPhase(d, squatOrder, exercise.SquatTop, "f2", nil, now.Add(time.Second))
	assert.Empty(t, d.PhaseTransitions)
	assert.Equal(t, 0, d.CurrentTransitionIndex)
}

func TestRecordPhaseFullRepetition(t *testing.T) {
	m := testManager()
	d := New()
	base := time.Now()

	steps := []exercise.Phase{
		exercise.SquatTop, exercise.SquatDown, exercise.SquatHold, exercise.SquatUp, exercise.SquatTop,
	}
	for i, p := range steps {
		m.RecordPhase(d, squatOrder, p, fmt.Sprintf("f%d", i), nil, base.Add(time.Duration(i)*time.Second))
	}

	require.Equal(t, 1, d.RepCount)
	require.Len(t, d.Repetitions, 1)
	rep := d.Repetitions[0]
	assert.True(t, rep.IsCorrect)
	// Rep opened at TOP->DOWN (t=1s) and closed at UP->TOP (t=4s).
	assert.InDelta(t, 3.0, rep.Seconds, 0.001)
	assert.Nil(t, d.CurrentRep)
	assert.Equal(t, 0, d.CurrentTransitionIndex)
	assert.Len(t, d.PhaseTransitions, 4)
	assert.Len(t, d.PhaseDurations, 3)
}

func TestRecordPhaseOutOfOrderJump(t *testing.T) {
	m := testManager()
	d := New()
	now := time.Now()

	m.RecordPhase(d, squatOrder, exercise.SquatTop, "f1", nil, now)
	m.RecordPhase(d, squatOrder, exercise.SquatDown, "f2", nil, now)
	require.NotNil(t, d.CurrentRep)
	require.Equal(t, 1, d.CurrentTransitionIndex)

	// Skipping HOLD and landing on UP is not the expected step: the index
	// resets and no rep closes.
	m.RecordPhase(d, squatOrder, exercise.SquatUp, "f3", nil, now)
	assert.Equal(t, 0, d.CurrentTransitionIndex)
	assert.Equal(t, 0, d.RepCount)
}

func TestRecordFrameErrorOnOpenRep(t *testing.T) {
	m := testManager()
	d := New()
	now := time.Now()

	m.RecordValidFrame(d, "f1", fullLandmarks(), nil, now)
	m.RecordPhase(d, squatOrder, exercise.SquatTop, "f1", nil, now)
	m.RecordPhase(d, squatOrder, exercise.SquatDown, "f2", nil, now.Add(time.Second))
	require.NotNil(t, d.CurrentRep)

	m.RecordFrameError(d, "SQUAT_DOWN_KNEE_TOO_BENT", true)
	m.RecordFrameError(d, "NO_BIOMECHANICAL_ERROR", false)

	assert.True(t, d.CurrentRep.HasError)
	assert.Equal(t, []string{"SQUAT_DOWN_KNEE_TOO_BENT"}, d.CurrentRep.Errors)
	assert.Equal(t, 1, d.ErrorCounters["SQUAT_DOWN_KNEE_TOO_BENT"])
	assert.Equal(t, 0, d.ErrorStreaks["SQUAT_DOWN_KNEE_TOO_BENT"]) // reset by the neutral verdict
	assert.Equal(t, 1, d.ErrorStreaks["NO_BIOMECHANICAL_ERROR"])

	// Close the rep: the error marks it incorrect.
	m.RecordPhase(d, squatOrder, exercise.SquatTop, "f3", nil, now.Add(2*time.Second))
	require.Len(t, d.Repetitions, 1)
	assert.False(t, d.Repetitions[0].IsCorrect)
}

func TestRecordFeedbackCooldown(t *testing.T) {
	m := testManager()
	d := New()

	m.RecordFeedback(d, "SILENT", true)
	m.RecordFeedback(d, "VALID", true)
	assert.Equal(t, 2, d.FramesSinceLastFeedback)

	m.RecordPhase(d, squatOrder, exercise.SquatTop, "f1", nil, time.Now())
	m.RecordPhase(d, squatOrder, exercise.SquatDown, "f2", nil, time.Now())
	m.RecordFeedback(d, "SQUAT_DOWN_KNEE_TOO_BENT", false)
	assert.Equal(t, 0, d.FramesSinceLastFeedback)
	assert.True(t, d.CurrentRep.Notified["SQUAT_DOWN_KNEE_TOO_BENT"])
}

func TestStampPauseResumeEnd(t *testing.T) {
	m := testManager()
	d := New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m.StampStart(d, base)
	m.StampPause(d, base.Add(30*time.Second))
	m.StampResume(d, base.Add(50*time.Second))
	m.StampEnd(d, base.Add(2*time.Minute))

	assert.InDelta(t, 20.0, d.PausesDurations, 0.001)
	// 120s wall clock minus 20s paused.
	assert.InDelta(t, 100.0, d.ExerciseFinalDuration, 0.001)
}

func TestStampEndClosesOpenPause(t *testing.T) {
	m := testManager()
	d := New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m.StampStart(d, base)
	m.StampPause(d, base.Add(time.Minute))
	m.StampEnd(d, base.Add(90*time.Second))

	assert.InDelta(t, 30.0, d.PausesDurations, 0.001)
	assert.InDelta(t, 60.0, d.ExerciseFinalDuration, 0.001)
}

func TestLowMotionStreak(t *testing.T) {
	m := testManager()
	d := New()
	now := time.Now()

	m.RecordValidFrame(d, "f1", fullLandmarks(), map[string]float64{"left_knee": 170}, now)
	assert.Equal(t, 0, d.LowMotionStreak) // nothing to compare against yet

	m.RecordValidFrame(d, "f2", fullLandmarks(), map[string]float64{"left_knee": 171}, now)
	m.RecordValidFrame(d, "f3", fullLandmarks(), map[string]float64{"left_knee": 170.5}, now)
	assert.Equal(t, 2, d.LowMotionStreak)

	m.RecordValidFrame(d, "f4", fullLandmarks(), map[string]float64{"left_knee": 140}, now)
	assert.Equal(t, 0, d.LowMotionStreak)
}
