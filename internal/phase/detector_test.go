package phase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetiq/formcoach/internal/exercise"
	"github.com/kinetiq/formcoach/internal/history"
	"github.com/kinetiq/formcoach/internal/pose"
)

func squatRules() *ExerciseRules {
	return &ExerciseRules{
		InitialPhase: exercise.SquatTop,
		TransitionOrder: []exercise.Phase{
			exercise.SquatTop, exercise.SquatDown, exercise.SquatHold, exercise.SquatUp, exercise.SquatTop,
		},
		LowMotionPhases: []exercise.Phase{exercise.SquatTop, exercise.SquatHold},
		Rules: map[exercise.Phase]RuleBlock{
			exercise.SquatTop: {
				"left_knee": {Min: 160, Max: 180}, "right_knee": {Min: 160, Max: 180},
				"left_hip": {Min: 160, Max: 180}, "right_hip": {Min: 160, Max: 180},
			},
			exercise.SquatDown: {
				"left_knee": {Min: 95, Max: 159}, "right_knee": {Min: 95, Max: 159},
				"left_hip": {Min: 90, Max: 165}, "right_hip": {Min: 90, Max: 165},
			},
			exercise.SquatHold: {
				"left_knee": {Min: 60, Max: 94}, "right_knee": {Min: 60, Max: 94},
				"left_hip": {Min: 50, Max: 110}, "right_hip": {Min: 50, Max: 110},
			},
			exercise.SquatUp: {
				"left_knee": {Min: 95, Max: 159}, "right_knee": {Min: 95, Max: 159},
				"left_hip": {Min: 90, Max: 165}, "right_hip": {Min: 90, Max: 165},
			},
		},
	}
}

func squatDetector() *Detector {
	return &Detector{
		Rules:              Config{exercise.Squat: squatRules()},
		LowMotionThreshold: 3,
	}
}

// dataWithFrame builds a history whose newest event is a valid frame with the
// given joints.
func dataWithFrame(joints map[string]float64, phase exercise.Phase, side pose.Side) *history.Data {
	d := history.New()
	d.PositionSide = side
	d.PhaseState = phase
	f := history.Frame{FrameID: "f", Timestamp: time.Now(), Joints: joints}
	d.Frames = append(d.Frames, f)
	d.LastValidFrame = &d.Frames[0]
	return d
}

func leftJoints(knee, hip float64) map[string]float64 {
	return map[string]float64{"left_knee": knee, "left_hip": hip}
}

func TestDetermineWithoutValidFrame(t *testing.T) {
	det := squatDetector()

	d := history.New()
	got, err := det.Determine(d, exercise.Squat)
	require.NoError(t, err)
	assert.Equal(t, exercise.SquatTop, got)

	d.PhaseState = exercise.SquatHold
	got, err = det.Determine(d, exercise.Squat)
	require.NoError(t, err)
	assert.Equal(t, exercise.SquatHold, got)
}

func TestDetermineSingleCandidateAdjacency(t *testing.T) {
	det := squatDetector()

	// HOLD is the only candidate and the next expected step after DOWN.
	d := dataWithFrame(leftJoints(80, 100), exercise.SquatDown, pose.SideLeft)
	got, err := det.Determine(d, exercise.Squat)
	require.NoError(t, err)
	assert.Equal(t, exercise.SquatHold, got)

	// Same frame from TOP: HOLD is not adjacent, hysteresis keeps TOP.
	d = dataWithFrame(leftJoints(80, 100), exercise.SquatTop, pose.SideLeft)
	got, err = det.Determine(d, exercise.Squat)
	require.NoError(t, err)
	assert.Equal(t, exercise.SquatTop, got)
}

func TestDetermineMultiCandidatePrefersLast(t *testing.T) {
	det := squatDetector()

	// Mid-range angles satisfy both DOWN and UP; the current phase wins.
	d := dataWithFrame(leftJoints(120, 120), exercise.SquatUp, pose.SideLeft)
	got, err := det.Determine(d, exercise.Squat)
	require.NoError(t, err)
	assert.Equal(t, exercise.SquatUp, got)
}

func TestDetermineMultiCandidateNextExpected(t *testing.T) {
	det := squatDetector()

	// From TOP, both DOWN and UP match; the transition order picks DOWN.
	d := dataWithFrame(leftJoints(120, 120), exercise.SquatTop, pose.SideLeft)
	got, err := det.Determine(d, exercise.Squat)
	require.NoError(t, err)
	assert.Equal(t, exercise.SquatDown, got)
}

func TestDetermineNoCandidateKeepsLast(t *testing.T) {
	det := squatDetector()

	d := dataWithFrame(leftJoints(40, 30), exercise.SquatHold, pose.SideLeft)
	got, err := det.Determine(d, exercise.Squat)
	require.NoError(t, err)
	assert.Equal(t, exercise.SquatHold, got)
}

func TestDetermineUndeterminedWithoutHistory(t *testing.T) {
	det := squatDetector()

	// No established phase and an ambiguous frame: nothing to anchor on.
	d := dataWithFrame(leftJoints(120, 120), "", pose.SideLeft)
	_, err := det.Determine(d, exercise.Squat)
	assert.ErrorIs(t, err, ErrUndetermined)
}

func TestDetermineLowMotionGate(t *testing.T) {
	rules := squatRules()
	// Widen TOP and narrow UP so a mid-depth frame matches TOP and DOWN but
	// not the current phase, forcing the next-expected step into TOP.
	rules.Rules[exercise.SquatTop] = RuleBlock{
		"left_knee": {Min: 60, Max: 180}, "right_knee": {Min: 60, Max: 180},
		"left_hip": {Min: 60, Max: 180}, "right_hip": {Min: 60, Max: 180},
	}
	rules.Rules[exercise.SquatUp] = RuleBlock{
		"left_knee": {Min: 95, Max: 119}, "right_knee": {Min: 95, Max: 119},
		"left_hip": {Min: 95, Max: 119}, "right_hip": {Min: 95, Max: 119},
	}
	det := &Detector{Rules: Config{exercise.Squat: rules}, LowMotionThreshold: 3}

	// From UP the next expected phase is TOP (low motion). Without a
	// sufficient low-motion streak the detector stays in UP.
	d := dataWithFrame(leftJoints(120, 120), exercise.SquatUp, pose.SideLeft)
	d.LowMotionStreak = 0
	got, err := det.Determine(d, exercise.Squat)
	require.NoError(t, err)
	assert.Equal(t, exercise.SquatUp, got)

	d.LowMotionStreak = 3
	got, err = det.Determine(d, exercise.Squat)
	require.NoError(t, err)
	assert.Equal(t, exercise.SquatTop, got)
}

func TestDetermineSideFiltering(t *testing.T) {
	det := squatDetector()

	// Only left joints present. From the left side the right rules are
	// ignored; from the front they are required and missing.
	d := dataWithFrame(leftJoints(170, 170), exercise.SquatTop, pose.SideLeft)
	got, err := det.Determine(d, exercise.Squat)
	require.NoError(t, err)
	assert.Equal(t, exercise.SquatTop, got)

	d = dataWithFrame(leftJoints(170, 170), exercise.SquatTop, pose.SideFront)
	got, err = det.Determine(d, exercise.Squat)
	require.NoError(t, err)
	// No candidate satisfied: last phase survives.
	assert.Equal(t, exercise.SquatTop, got)
}

func TestEnsureInitialPhase(t *testing.T) {
	det := squatDetector()

	assert.True(t, det.EnsureInitialPhase(exercise.Squat, leftJoints(175, 172), pose.SideLeft))
	assert.False(t, det.EnsureInitialPhase(exercise.Squat, leftJoints(120, 120), pose.SideLeft))
	assert.False(t, det.EnsureInitialPhase(exercise.BicepsCurl, nil, pose.SideLeft))
}
