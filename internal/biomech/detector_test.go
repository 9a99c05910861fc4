package biomech

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetiq/formcoach/internal/exercise"
	"github.com/kinetiq/formcoach/internal/history"
)

func testConfig() Config {
	return Config{
		exercise.Squat: {
			exercise.SquatDown: []Threshold{
				{Joint: "left_knee", Min: 75, Max: 170, Low: "SQUAT_DOWN_KNEE_TOO_BENT", High: "SQUAT_DOWN_KNEE_NOT_BENT"},
				{Joint: "left_hip", Min: 60, Max: 170, Low: "SQUAT_DOWN_BACK_TOO_BENT", High: "SQUAT_DOWN_BACK_NOT_HINGED"},
			},
		},
	}
}

func frameData(phase exercise.Phase, joints map[string]float64) *history.Data {
	d := history.New()
	d.PhaseState = phase
	d.Frames = append(d.Frames, history.Frame{FrameID: "f", Timestamp: time.Now(), Joints: joints})
	d.LastValidFrame = &d.Frames[0]
	return d
}

func TestDetectNotReady(t *testing.T) {
	det := &Detector{Config: testConfig()}

	assert.Equal(t, NotReady, det.Detect(history.New(), exercise.Squat))

	// A valid frame exists but the latest event was a rejection.
	d := frameData(exercise.SquatDown, map[string]float64{"left_knee": 120})
	d.FramesSinceLastValid = 2
	assert.Equal(t, NotReady, det.Detect(d, exercise.Squat))

	// No phase established yet.
	d = frameData("", map[string]float64{"left_knee": 120})
	assert.Equal(t, NotReady, det.Detect(d, exercise.Squat))
}

func TestDetectMappingNotFound(t *testing.T) {
	det := &Detector{Config: testConfig()}

	d := frameData(exercise.SquatDown, map[string]float64{"left_elbow": 90})
	assert.Equal(t, MappingNotFound, det.Detect(d, exercise.BicepsCurl))

	// Exercise known, phase missing from the table.
	d = frameData(exercise.SquatHold, map[string]float64{"left_knee": 80})
	assert.Equal(t, MappingNotFound, det.Detect(d, exercise.Squat))
}

func TestDetectVerdicts(t *testing.T) {
	det := &Detector{Config: testConfig()}

	tests := []struct {
		name   string
		joints map[string]float64
		want   Code
	}{
		{"all in range", map[string]float64{"left_knee": 120, "left_hip": 120}, NoError},
		{"below min", map[string]float64{"left_knee": 60, "left_hip": 120}, "SQUAT_DOWN_KNEE_TOO_BENT"},
		{"above max", map[string]float64{"left_knee": 175, "left_hip": 120}, "SQUAT_DOWN_KNEE_NOT_BENT"},
		{"hip violation", map[string]float64{"left_knee": 120, "left_hip": 40}, "SQUAT_DOWN_BACK_TOO_BENT"},
		{"missing joints skipped", map[string]float64{"left_hip": 120}, NoError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := frameData(exercise.SquatDown, tt.joints)
			assert.Equal(t, tt.want, det.Detect(d, exercise.Squat))
		})
	}
}

func TestDetectPriorityOrder(t *testing.T) {
	det := &Detector{Config: testConfig()}

	// Both thresholds violated: the first entry in the table wins.
	d := frameData(exercise.SquatDown, map[string]float64{"left_knee": 60, "left_hip": 40})
	assert.Equal(t, Code("SQUAT_DOWN_KNEE_TOO_BENT"), det.Detect(d, exercise.Squat))
}

func TestIsBiomechanical(t *testing.T) {
	assert.False(t, IsBiomechanical(NoError))
	assert.False(t, IsBiomechanical(NotReady))
	assert.False(t, IsBiomechanical(MappingNotFound))
	assert.True(t, IsBiomechanical("SQUAT_DOWN_KNEE_TOO_BENT"))
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load("../../configs/errors.json")
	require.NoError(t, err)
	require.Contains(t, cfg, exercise.Squat)
	require.Contains(t, cfg, exercise.BicepsCurl)
	assert.NotEmpty(t, cfg[exercise.Squat][exercise.SquatDown])
}

func TestValidateRejectsBadTables(t *testing.T) {
	write := func(content string) string {
		path := filepath.Join(t.TempDir(), "errors.json")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	_, err := Load(write(`{"squat": {"DOWN": [{"joint": "neck", "min": 0, "max": 10, "low": "A", "high": "B"}]}}`))
	assert.ErrorContains(t, err, "undefined joint")

	_, err = Load(write(`{"squat": {"DOWN": [{"joint": "left_knee", "min": 0, "max": 10, "low": "A"}]}}`))
	assert.ErrorContains(t, err, "missing low/high")

	_, err = Load(write(`{"squat": {"FLY": [{"joint": "left_knee", "min": 0, "max": 10, "low": "A", "high": "B"}]}}`))
	assert.ErrorContains(t, err, "undefined phase")
}
