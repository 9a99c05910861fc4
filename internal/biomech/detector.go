// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package biomech maps out-of-range joint angles to detected error codes
// using per-(exercise, phase) threshold tables.
package biomech

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kinetiq/formcoach/internal/exercise"
	"github.com/kinetiq/formcoach/internal/history"
)

// Code is a detected biomechanical error code.
type Code string

// Neutral verdicts. Everything else is a real form fault.
const (
	NoError         Code = "NO_BIOMECHANICAL_ERROR"
	NotReady        Code = "NOT_READY_FOR_ANALYSIS"
	MappingNotFound Code = "ERROR_DETECTOR_MAPPING_NOT_FOUND"
)

// IsBiomechanical reports whether the code names a real form fault.
func IsBiomechanical(c Code) bool {
	switch c {
	case NoError, NotReady, MappingNotFound:
		return false
	}
	return true
}

// Threshold is one joint's window for a phase, with the codes emitted when
// the measured angle leaves it. Entry order in the config file defines
// detection priority.
type Threshold struct {
	Joint string  `json:"joint"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Low   Code    `json:"low"`  // emitted when angle < Min
	High  Code    `json:"high"` // emitted when angle > Max
}

// Config maps exercise -> phase -> ordered thresholds.
type Config map[exercise.Name]map[exercise.Phase][]Threshold

// Load reads and validates an error detector config file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read error config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse error config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the mapping is exhaustive: every threshold names a joint
// defined by the exercise schema and carries both direction codes.
func (c Config) Validate() error {
	for name, phases := range c {
		def, err := exercise.Lookup(name)
		if err != nil {
			return err
		}
		for ph, thresholds := range phases {
			if !def.HasPhase(ph) {
				return fmt.Errorf("%s: thresholds for undefined phase %q", name, ph)
			}
			for _, t := range thresholds {
				if !def.HasJoint(t.Joint) {
					return fmt.Errorf("%s/%s: threshold references undefined joint %q", name, ph, t.Joint)
				}
				if t.Min > t.Max {
					return fmt.Errorf("%s/%s/%s: min %v > max %v", name, ph, t.Joint, t.Min, t.Max)
				}
				if t.Low == "" || t.High == "" {
					return fmt.Errorf("%s/%s/%s: missing low/high error code mapping", name, ph, t.Joint)
				}
			}
		}
	}
	return nil
}

// Detector evaluates the newest valid frame against the phase-scoped
// threshold table. Read-only on history.
type Detector struct {
	Config Config
}

// Detect returns the first violated threshold's code, NoError when all
// thresholds hold, or a neutral verdict when analysis cannot run.
func (det *Detector) Detect(d *history.Data, ex exercise.Name) Code {
	if !d.StateOK() || d.PhaseState == "" {
		return NotReady
	}
	phases, ok := det.Config[ex]
	if !ok {
		return MappingNotFound
	}
	thresholds, ok := phases[d.PhaseState]
	if !ok {
		return MappingNotFound
	}

	joints := d.LastValidFrame.Joints
	for _, t := range thresholds {
		v, present := joints[t.Joint]
		if !present {
			continue
		}
		if v < t.Min {
			return t.Low
		}
		if v > t.Max {
			return t.High
		}
	}
	return NoError
}
