// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package phase

import (
	"errors"

	"github.com/kinetiq/formcoach/internal/exercise"
	"github.com/kinetiq/formcoach/internal/history"
	"github.com/kinetiq/formcoach/internal/pose"
)

// ErrUndetermined signals that no phase could be selected for the frame.
var ErrUndetermined = errors.New("phase undetermined in frame")

// Detector selects the current phase from the configured rule tables. It
// reads history, never writes it.
type Detector struct {
	Rules Config
	// LowMotionThreshold is the minimum low-motion streak before a
	// low-motion phase may be entered.
	LowMotionThreshold int
}

// Determine returns the phase for the newest valid frame.
//
// Selection: candidate phases are those whose side-filtered rule block is
// fully satisfied by the frame's joints. A single candidate is accepted only
// when it is the last phase or the next expected one (hysteresis). Multiple
// candidates prefer the last phase, then the next expected phase, then the
// first reachable candidate along the transition order; low-motion phases
// require a sufficient low-motion streak throughout.
func (det *Detector) Determine(d *history.Data, ex exercise.Name) (exercise.Phase, error) {
	er, err := det.Rules.ForExercise(ex)
	if err != nil {
		return "", err
	}

	// Without a fresh valid frame there is nothing to re-evaluate.
	if !d.StateOK() {
		if d.PhaseState != "" {
			return d.PhaseState, nil
		}
		return er.InitialPhase, nil
	}

	joints := d.LastValidFrame.Joints
	side := d.PositionSide
	last := d.PhaseState

	var candidates []exercise.Phase
	for _, p := range er.Cycle() {
		if blockSatisfied(er.Rules[p], joints, side) {
			candidates = append(candidates, p)
		}
	}

	switch len(candidates) {
	case 0:
		if last != "" {
			return last, nil
		}
		return er.InitialPhase, nil

	case 1:
		cand := candidates[0]
		if cand != last && last != "" && cand != det.nextExpected(er, last) {
			return last, nil
		}
		return cand, nil

	default:
		if contains(candidates, last) {
			return last, nil
		}
		if last != "" {
			next := det.nextExpected(er, last)
			if er.IsLowMotion(next) && d.LowMotionStreak < det.LowMotionThreshold {
				return last, nil
			}
			if contains(candidates, next) {
				return next, nil
			}
			if p, ok := det.walkOrder(er, last, candidates, d.LowMotionStreak); ok {
				return p, nil
			}
			return last, nil
		}
		return "", ErrUndetermined
	}
}

// EnsureInitialPhase evaluates the initial phase's side-filtered rule block
// against the provided joints. Used during READY calibration.
func (det *Detector) EnsureInitialPhase(ex exercise.Name, joints map[string]float64, side pose.Side) bool {
	er, err := det.Rules.ForExercise(ex)
	if err != nil {
		return false
	}
	return blockSatisfied(er.Rules[er.InitialPhase], joints, side)
}

// InitialPhase returns the configured initial phase for an exercise.
func (det *Detector) InitialPhase(ex exercise.Name) (exercise.Phase, error) {
	er, err := det.Rules.ForExercise(ex)
	if err != nil {
		return "", err
	}
	return er.InitialPhase, nil
}

// TransitionOrder returns the configured transition order for an exercise.
func (det *Detector) TransitionOrder(ex exercise.Name) ([]exercise.Phase, error) {
	er, err := det.Rules.ForExercise(ex)
	if err != nil {
		return nil, err
	}
	return er.TransitionOrder, nil
}

// nextExpected returns the phase after last in the transition order cycle.
func (det *Detector) nextExpected(er *ExerciseRules, last exercise.Phase) exercise.Phase {
	cycle := er.Cycle()
	for i, p := range cycle {
		if p == last {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return er.InitialPhase
}

// walkOrder scans the cycle starting after last and returns the first
// candidate that is enterable under the low-motion gate.
func (det *Detector) walkOrder(er *ExerciseRules, last exercise.Phase, candidates []exercise.Phase, lowMotionStreak int) (exercise.Phase, bool) {
	cycle := er.Cycle()
	start := -1
	for i, p := range cycle {
		if p == last {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}
	for k := 1; k < len(cycle); k++ {
		p := cycle[(start+k)%len(cycle)]
		if !contains(candidates, p) {
			continue
		}
		if er.IsLowMotion(p) && lowMotionStreak < det.LowMotionThreshold {
			continue
		}
		return p, true
	}
	return "", false
}

// blockSatisfied checks a rule block against the frame's joints, restricted
// to the joints visible from the current camera side. A block with no
// applicable rules is never satisfied.
func blockSatisfied(block RuleBlock, joints map[string]float64, side pose.Side) bool {
	applicable := 0
	for joint, rng := range block {
		if !exercise.JointAllowedOnSide(joint, side) {
			continue
		}
		applicable++
		v, ok := joints[joint]
		if !ok || !rng.Contains(v) {
			return false
		}
	}
	return applicable > 0
}

func contains(phases []exercise.Phase, p exercise.Phase) bool {
	for _, x := range phases {
		if x == p {
			return true
		}
	}
	return false
}
