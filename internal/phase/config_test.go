package phase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetiq/formcoach/internal/exercise"
)

func writeRuleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "phases.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load("../../configs/phases.json")
	require.NoError(t, err)

	er, err := cfg.ForExercise(exercise.Squat)
	require.NoError(t, err)
	assert.Equal(t, exercise.SquatTop, er.InitialPhase)
	assert.Len(t, er.TransitionOrder, 5)
	assert.True(t, er.IsLowMotion(exercise.SquatHold))
	assert.Equal(t, er.TransitionOrder[:4], er.Cycle())

	_, err = cfg.ForExercise(exercise.BicepsCurl)
	assert.NoError(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidateRejectsUnknownExercise(t *testing.T) {
	_, err := Load(writeRuleFile(t, `{"handstand": {"initial_phase": "TOP", "transition_order": ["TOP","DOWN","TOP"], "rules": {}}}`))
	assert.ErrorContains(t, err, "unknown exercise")
}

func TestValidateRejectsMissingPhaseRules(t *testing.T) {
	_, err := Load(writeRuleFile(t, `{
		"squat": {
			"initial_phase": "TOP",
			"transition_order": ["TOP", "DOWN", "HOLD", "UP", "TOP"],
			"rules": {
				"TOP": {"left_knee": {"min": 160, "max": 180}}
			}
		}
	}`))
	assert.ErrorContains(t, err, "missing rules")
}

func TestValidateRejectsBadTransitionOrder(t *testing.T) {
	full := `"rules": {
		"TOP": {"left_knee": {"min": 160, "max": 180}},
		"DOWN": {"left_knee": {"min": 95, "max": 159}},
		"HOLD": {"left_knee": {"min": 60, "max": 94}},
		"UP": {"left_knee": {"min": 95, "max": 159}}
	}`

	// Order not closing on the initial phase.
	_, err := Load(writeRuleFile(t, `{"squat": {"initial_phase": "TOP", "transition_order": ["TOP","DOWN","HOLD"], `+full+`}}`))
	assert.ErrorContains(t, err, "start and end with the same phase")

	// Order starting elsewhere.
	_, err = Load(writeRuleFile(t, `{"squat": {"initial_phase": "TOP", "transition_order": ["DOWN","HOLD","DOWN"], `+full+`}}`))
	assert.ErrorContains(t, err, "must start with initial_phase")
}

func TestValidateRejectsUnknownJoint(t *testing.T) {
	_, err := Load(writeRuleFile(t, `{
		"squat": {
			"initial_phase": "TOP",
			"transition_order": ["TOP", "DOWN", "HOLD", "UP", "TOP"],
			"rules": {
				"TOP": {"neck": {"min": 0, "max": 180}},
				"DOWN": {"left_knee": {"min": 95, "max": 159}},
				"HOLD": {"left_knee": {"min": 60, "max": 94}},
				"UP": {"left_knee": {"min": 95, "max": 159}}
			}
		}
	}`))
	assert.ErrorContains(t, err, "undefined joint")
}

func TestValidateRejectsInvertedRange(t *testing.T) {
	_, err := Load(writeRuleFile(t, `{
		"squat": {
			"initial_phase": "TOP",
			"transition_order": ["TOP", "DOWN", "HOLD", "UP", "TOP"],
			"rules": {
				"TOP": {"left_knee": {"min": 180, "max": 160}},
				"DOWN": {"left_knee": {"min": 95, "max": 159}},
				"HOLD": {"left_knee": {"min": 60, "max": 94}},
				"UP": {"left_knee": {"min": 95, "max": 159}}
			}
		}
	}`))
	assert.ErrorContains(t, err, "min")
}
