// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package phase detects the current movement phase from per-exercise rule
// tables with hysteresis, transition-order bias and low-motion gating.
package phase

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kinetiq/formcoach/internal/exercise"
)

// Range is an inclusive angle window in degrees.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies inside the window.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// RuleBlock maps joint name to its allowed window for one phase.
type RuleBlock map[string]Range

// ExerciseRules is the phase configuration for one exercise.
type ExerciseRules struct {
	InitialPhase    exercise.Phase               `json:"initial_phase"`
	TransitionOrder []exercise.Phase             `json:"transition_order"`
	LowMotionPhases []exercise.Phase             `json:"low_motion_phases"`
	Rules           map[exercise.Phase]RuleBlock `json:"rules"`
}

// IsLowMotion reports whether the phase is expected to show little movement.
func (er *ExerciseRules) IsLowMotion(p exercise.Phase) bool {
	for _, lp := range er.LowMotionPhases {
		if lp == p {
			return true
		}
	}
	return false
}

// Cycle returns the transition order without the trailing repeat of the
// initial phase.
func (er *ExerciseRules) Cycle() []exercise.Phase {
	if len(er.TransitionOrder) < 2 {
		return er.TransitionOrder
	}
	return er.TransitionOrder[:len(er.TransitionOrder)-1]
}

// Config maps exercises to their phase rules.
type Config map[exercise.Name]*ExerciseRules

// Load reads and validates a phase rule file. A malformed file is a startup
// error; the daemon must not run with partial rules.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phase config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse phase config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("phase config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every exercise block against the catalog schema:
// rules for every phase, numeric windows, known joint names, and a
// transition order that starts and ends with the initial phase.
func (c Config) Validate() error {
	for name, er := range c {
		def, err := exercise.Lookup(name)
		if err != nil {
			return err
		}
		if er.InitialPhase == "" {
			return fmt.Errorf("%s: initial_phase must be set", name)
		}
		if !def.HasPhase(er.InitialPhase) {
			return fmt.Errorf("%s: initial_phase %q is not a defined phase", name, er.InitialPhase)
		}
		if len(er.TransitionOrder) < 3 {
			return fmt.Errorf("%s: transition_order must contain a full cycle", name)
		}
		first := er.TransitionOrder[0]
		last := er.TransitionOrder[len(er.TransitionOrder)-1]
		if first != last {
			return fmt.Errorf("%s: transition_order must start and end with the same phase (got %q..%q)", name, first, last)
		}
		if first != er.InitialPhase {
			return fmt.Errorf("%s: transition_order must start with initial_phase %q, got %q", name, er.InitialPhase, first)
		}
		for _, p := range er.TransitionOrder {
			if !def.HasPhase(p) {
				return fmt.Errorf("%s: transition_order references undefined phase %q", name, p)
			}
		}
		for _, p := range er.LowMotionPhases {
			if !def.HasPhase(p) {
				return fmt.Errorf("%s: low_motion_phases references undefined phase %q", name, p)
			}
		}
		for _, p := range def.Phases {
			block, ok := er.Rules[p]
			if !ok || len(block) == 0 {
				return fmt.Errorf("%s: missing rules for phase %q", name, p)
			}
			for joint, rng := range block {
				if !def.HasJoint(joint) {
					return fmt.Errorf("%s: phase %q rule references undefined joint %q", name, p, joint)
				}
				if rng.Min > rng.Max {
					return fmt.Errorf("%s: phase %q joint %q has min %v > max %v", name, p, joint, rng.Min, rng.Max)
				}
			}
		}
	}
	return nil
}

// ForExercise returns the rules for an exercise.
func (c Config) ForExercise(name exercise.Name) (*ExerciseRules, error) {
	er, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("no phase rules configured for exercise %q", name)
	}
	return er, nil
}
