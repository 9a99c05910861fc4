package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetiq/formcoach/internal/pose"
)

// analyze pushes one frame and returns the outcome.
func analyze(t *testing.T, m *Manager, id ID, n int) Outcome {
	t.Helper()
	return m.AnalyzeFrame(context.Background(), id, fmt.Sprintf("f%d", n), dummyFrame())
}

func TestCalibrationSequence(t *testing.T) {
	script := []pose.Landmarks{topPose(), topPose(), topPose(), topPose()}
	m, _ := newTestManager(t, testConfig(), script)

	_, id := m.Register("squat", ClientInfo{IP: "10.0.0.1"})
	require.Equal(t, CodeStarted, m.Start(id, false))

	out := analyze(t, m, id, 1)
	assert.Equal(t, OutcomeCalibration, out.Kind)
	assert.Equal(t, CodeVisibilityChecking, out.Code)

	out = analyze(t, m, id, 2)
	assert.Equal(t, CodeVisibilityValid, out.Code)

	out = analyze(t, m, id, 3)
	assert.Equal(t, CodePositioningChecking, out.Code)

	out = analyze(t, m, id, 4)
	assert.Equal(t, CodePositioningValid, out.Code)
}

func TestCalibrationResetsOnBadFrame(t *testing.T) {
	// A rejected frame between two good ones restarts the visibility streak.
	script := []pose.Landmarks{topPose(), emptyPose(), topPose(), topPose()}
	m, _ := newTestManager(t, testConfig(), script)

	_, id := m.Register("squat", ClientInfo{IP: "10.0.0.1"})
	require.Equal(t, CodeStarted, m.Start(id, false))

	assert.Equal(t, CodeVisibilityChecking, analyze(t, m, id, 1).Code)
	assert.Equal(t, "NO_PERSON_DETECTED", analyze(t, m, id, 2).Code)
	assert.Equal(t, CodeVisibilityChecking, analyze(t, m, id, 3).Code)
	assert.Equal(t, CodeVisibilityValid, analyze(t, m, id, 4).Code)
}

func TestCalibrationRejectsDisallowedSide(t *testing.T) {
	// The biceps curl must be filmed from the side; a frontal pose shows
	// both body sides equally.
	script := []pose.Landmarks{topPose()}
	m, _ := newTestManager(t, testConfig(), script)

	_, id := m.Register("biceps_curl", ClientInfo{IP: "10.0.0.1"})
	require.Equal(t, CodeStarted, m.Start(id, false))

	out := analyze(t, m, id, 1)
	assert.Equal(t, OutcomeCalibration, out.Kind)
	assert.Equal(t, CodeWrongPosition, out.Code)
}

func TestFullRepetitionFlow(t *testing.T) {
	script := []pose.Landmarks{
		topPose(), topPose(), // INIT
		topPose(), topPose(), // READY
		downPose(), holdPose(), downPose(), topPose(), // one full rep
	}
	m, _ := newTestManager(t, testConfig(), script)

	_, id := m.Register("squat", ClientInfo{IP: "10.0.0.1"})
	require.Equal(t, CodeStarted, m.Start(id, false))

	for n := 1; n <= 4; n++ {
		require.Equal(t, OutcomeCalibration, analyze(t, m, id, n).Kind)
	}
	for n := 5; n <= 8; n++ {
		out := analyze(t, m, id, n)
		require.Equal(t, OutcomeFeedback, out.Kind, "frame %d", n)
		assert.Equal(t, "VALID", out.Code, "frame %d", n)
	}

	require.Equal(t, CodeEnded, m.End(id))
	summary, code := m.Summary(id)
	require.Equal(t, CodeStatusEnded, code)
	assert.Equal(t, 1, summary.NumberOfReps)
	require.Len(t, summary.RepBreakdown, 1)
	assert.True(t, summary.RepBreakdown[0].IsCorrect)
	assert.Equal(t, summary.OverallGrade, 100.0)
	assert.Empty(t, summary.Recommendations)
}

func TestAbortAfterConsecutiveInvalidFrames(t *testing.T) {
	cfg := testConfig()
	cfg.History.MaxConsecutiveInvalidBeforeAbort = 3

	script := []pose.Landmarks{
		topPose(), topPose(), topPose(), topPose(), // calibration
		emptyPose(), emptyPose(), emptyPose(),
	}
	m, _ := newTestManager(t, cfg, script)

	_, id := m.Register("squat", ClientInfo{IP: "10.0.0.1"})
	require.Equal(t, CodeStarted, m.Start(id, false))
	for n := 1; n <= 4; n++ {
		require.Equal(t, OutcomeCalibration, analyze(t, m, id, n).Kind)
	}

	assert.Equal(t, OutcomeFeedback, analyze(t, m, id, 5).Kind)
	assert.Equal(t, OutcomeFeedback, analyze(t, m, id, 6).Kind)

	out := analyze(t, m, id, 7)
	assert.Equal(t, OutcomeError, out.Kind)
	assert.Equal(t, CodeSessionShouldAbort, out.Code)
	assert.True(t, out.Abort)

	// The abort coerced the session to ENDED; its summary exists.
	assert.Equal(t, CodeStatusEnded, m.StatusOf(id))
	summary, code := m.Summary(id)
	require.Equal(t, CodeStatusEnded, code)
	assert.Zero(t, summary.NumberOfReps)
}

func TestExtractionFailureIsInternalError(t *testing.T) {
	script := []pose.Landmarks{nil}
	m, _ := newTestManager(t, testConfig(), script)

	_, id := m.Register("squat", ClientInfo{IP: "10.0.0.1"})
	require.Equal(t, CodeStarted, m.Start(id, false))

	out := analyze(t, m, id, 1)
	assert.Equal(t, OutcomeError, out.Kind)
	assert.Equal(t, CodeInternalError, out.Code)
}

func TestFramesRejectedAfterEnd(t *testing.T) {
	script := []pose.Landmarks{topPose()}
	m, _ := newTestManager(t, testConfig(), script)

	_, id := m.Register("squat", ClientInfo{IP: "10.0.0.1"})
	require.Equal(t, CodeStarted, m.Start(id, false))
	require.Equal(t, CodeEnded, m.End(id))

	out := analyze(t, m, id, 1)
	assert.Equal(t, string(CodeNotActive), out.Code)
}

func TestBiomechanicalFeedbackEmitted(t *testing.T) {
	cfg := testConfig()
	cfg.Feedback.BioFeedbackThreshold = 2
	cfg.Feedback.CooldownFrames = 0

	// After calibration, frames hold a descent with the knee collapsed to
	// roughly 60 degrees, far below the DOWN window (75-170 degrees).
	bad := bodyPose(map[int][2]float64{
		pose.LeftShoulder: {0.45, 0.2}, pose.RightShoulder: {0.55, 0.2},
		pose.LeftHip: {0.45, 0.55}, pose.RightHip: {0.55, 0.55},
		pose.LeftKnee: {0.55, 0.6}, pose.RightKnee: {0.45, 0.6},
		pose.LeftAnkle: {0.425, 0.683}, pose.RightAnkle: {0.575, 0.683},
	})
	script := []pose.Landmarks{
		topPose(), topPose(), topPose(), topPose(),
		downPose(), bad, bad, bad,
	}
	m, _ := newTestManager(t, cfg, script)

	_, id := m.Register("squat", ClientInfo{IP: "10.0.0.1"})
	require.Equal(t, CodeStarted, m.Start(id, false))
	for n := 1; n <= 4; n++ {
		require.Equal(t, OutcomeCalibration, analyze(t, m, id, n).Kind)
	}
	require.Equal(t, "VALID", analyze(t, m, id, 5).Code)

	var saw bool
	for n := 6; n <= 8; n++ {
		out := analyze(t, m, id, n)
		require.Equal(t, OutcomeFeedback, out.Kind)
		if out.Code != "SILENT" && out.Code != "VALID" {
			saw = true
		}
	}
	assert.True(t, saw, "expected a biomechanical feedback code")

	require.Equal(t, CodeEnded, m.End(id))
	summary, _ := m.Summary(id)
	assert.NotEmpty(t, summary.AggregatedErrors)
	assert.Less(t, summary.OverallGrade, 100.0)
	assert.NotEmpty(t, summary.Recommendations)
}
