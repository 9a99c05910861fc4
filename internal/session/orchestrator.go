// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kinetiq/formcoach/internal/biomech"
	"github.com/kinetiq/formcoach/internal/config"
	"github.com/kinetiq/formcoach/internal/exercise"
	"github.com/kinetiq/formcoach/internal/feedback"
	"github.com/kinetiq/formcoach/internal/history"
	"github.com/kinetiq/formcoach/internal/imaging"
	"github.com/kinetiq/formcoach/internal/joints"
	xlog "github.com/kinetiq/formcoach/internal/log"
	"github.com/kinetiq/formcoach/internal/metrics"
	"github.com/kinetiq/formcoach/internal/phase"
	"github.com/kinetiq/formcoach/internal/pose"
	"github.com/kinetiq/formcoach/internal/telemetry"
)

// Orchestrator runs the staged per-frame analysis. It is the single writer
// to session history (through the history manager); detectors only read.
// Callers hold the session lock around every method.
type Orchestrator struct {
	Extractor pose.Extractor

	cfg *config.Holder

	// rulesMu guards the rule tables across config refreshes. Refresh swaps
	// both tables atomically; frames read a consistent pair.
	rulesMu sync.RWMutex
	phases  *phase.Detector
	errors  *biomech.Detector

	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOrchestrator loads the phase and error rule tables and wires the
// pipeline. Malformed rule files abort startup.
func NewOrchestrator(cfg *config.Holder, extractor pose.Extractor) (*Orchestrator, error) {
	o := &Orchestrator{
		Extractor: extractor,
		cfg:       cfg,
		tracer:    telemetry.Tracer("pipeline"),
		logger:    xlog.WithComponent("pipeline"),
	}
	if err := o.retrieveConfigurations(cfg.Get()); err != nil {
		return nil, err
	}
	return o, nil
}

// retrieveConfigurations reloads the rule tables from the configured files.
// On error the previous tables stay in place.
func (o *Orchestrator) retrieveConfigurations(cfg config.Config) error {
	phaseCfg, err := phase.Load(cfg.Phase.ConfigFile)
	if err != nil {
		return fmt.Errorf("load phase rules: %w", err)
	}
	errCfg, err := biomech.Load(cfg.Error.ConfigFile)
	if err != nil {
		return fmt.Errorf("load error thresholds: %w", err)
	}

	o.rulesMu.Lock()
	o.phases = &phase.Detector{Rules: phaseCfg, LowMotionThreshold: cfg.Phase.LowMotionThreshold}
	o.errors = &biomech.Detector{Config: errCfg}
	o.rulesMu.Unlock()
	return nil
}

// ApplyRules reloads the rule tables for an externally applied config, e.g.
// from the config holder's reload hook.
func (o *Orchestrator) ApplyRules(cfg config.Config) error {
	return o.retrieveConfigurations(cfg)
}

func (o *Orchestrator) detectors() (*phase.Detector, *biomech.Detector) {
	o.rulesMu.RLock()
	defer o.rulesMu.RUnlock()
	return o.phases, o.errors
}

// start stamps the exercise start time. Session lock held.
func (o *Orchestrator) start(s *Session, now time.Time) {
	hm := o.historyManager()
	hm.StampStart(s.History, now)
}

// pause opens the pause window. Session lock held.
func (o *Orchestrator) pause(s *Session, now time.Time) {
	hm := o.historyManager()
	hm.StampPause(s.History, now)
}

// resume closes the pause window and accumulates its duration. Session lock held.
func (o *Orchestrator) resume(s *Session, now time.Time) {
	hm := o.historyManager()
	hm.StampResume(s.History, now)
}

// end finalizes the history clock. Session lock held.
func (o *Orchestrator) end(s *Session, now time.Time) {
	hm := o.historyManager()
	hm.StampEnd(s.History, now)
}

func (o *Orchestrator) historyManager() *history.Manager {
	cfg := o.cfg.Get()
	return &history.Manager{Limits: history.Limits{
		FramesRollingWindowSize:        cfg.History.FramesRollingWindowSize,
		BadFrameLogSize:                cfg.History.BadFrameLogSize,
		LowMotionAngleDegreesThreshold: cfg.History.LowMotionAngleDegreesThreshold,
	}}
}

// process dispatches one frame by analyzing state. Session lock held by the
// caller for the full pass; everything below runs synchronously.
func (o *Orchestrator) process(ctx context.Context, s *Session, frameID string, frame *imaging.Frame) Outcome {
	started := time.Now()
	ctx, span := o.tracer.Start(ctx, "pipeline.analyze_frame", trace.WithAttributes(
		attribute.String("exercise", string(s.Exercise)),
		attribute.String("analyzing_state", string(s.Analyzing)),
	))
	defer span.End()

	state := s.Analyzing
	var out Outcome
	switch state {
	case AnalyzingInit:
		out = o.processInit(ctx, s, frame)
	case AnalyzingReady:
		out = o.processReady(ctx, s, frame)
	case AnalyzingActive:
		out = o.processActive(ctx, s, frameID, frame)
	default: // DONE, FAILURE
		out = errorOut(CodeSessionNotAnalyzing)
	}

	span.SetAttributes(attribute.String("outcome", out.Code))
	metrics.RecordFrame(string(state), out.Code)
	metrics.FrameDuration.Observe(time.Since(started).Seconds())
	return out
}

// processInit runs the visibility calibration: pose quality plus camera side
// must hold for num_of_min_init_ok_frames consecutive frames.
func (o *Orchestrator) processInit(ctx context.Context, s *Session, frame *imaging.Frame) Outcome {
	cfg := o.cfg.Get()
	hm := o.historyManager()

	lm, err := o.Extractor.Extract(ctx, frame)
	if err != nil {
		o.logger.Error().Err(err).Str("session_id", string(s.ID)).Msg("pose extraction failed")
		return errorOut(CodeInternalError)
	}
	def, err := exercise.Lookup(s.Exercise)
	if err != nil {
		return errorOut(CodeInternalError)
	}

	required := def.RequiredLandmarks(pose.SideUnknown, s.Extended)
	quality := pose.CheckQuality(lm, nil, required, qualityParams(cfg))
	if quality != pose.QualityOK {
		hm.ResetOKStreak(s.History)
		return calibration(string(feedback.FromQuality(quality)))
	}

	side := pose.DetectSide(lm, sideParams(cfg))
	if side == pose.SideUnknown || !def.SideAllowed(side) {
		hm.ResetOKStreak(s.History)
		return calibration(CodeWrongPosition)
	}

	if streak := hm.BumpOKStreak(s.History); streak >= cfg.Session.NumOfMinInitOKFrames {
		hm.SetCameraStable(s.History)
		s.Analyzing = AnalyzingReady
		return calibration(CodeVisibilityValid)
	}
	return calibration(CodeVisibilityChecking)
}

// processReady runs the positioning calibration: the initial phase's rule
// block must hold for num_of_min_init_correct_phase_frames consecutive frames.
func (o *Orchestrator) processReady(ctx context.Context, s *Session, frame *imaging.Frame) Outcome {
	cfg := o.cfg.Get()
	hm := o.historyManager()
	phases, _ := o.detectors()

	lm, err := o.Extractor.Extract(ctx, frame)
	if err != nil {
		o.logger.Error().Err(err).Str("session_id", string(s.ID)).Msg("pose extraction failed")
		return errorOut(CodeInternalError)
	}
	def, err := exercise.Lookup(s.Exercise)
	if err != nil {
		return errorOut(CodeInternalError)
	}

	required := def.RequiredLandmarks(pose.SideUnknown, s.Extended)
	quality := pose.CheckQuality(lm, nil, required, qualityParams(cfg))
	if quality != pose.QualityOK {
		hm.ResetInitialPhaseCounter(s.History)
		return calibration(string(feedback.FromQuality(quality)))
	}

	side := pose.DetectSide(lm, sideParams(cfg))
	if side == pose.SideUnknown || !def.SideAllowed(side) {
		hm.ResetInitialPhaseCounter(s.History)
		return calibration(CodeWrongPosition)
	}

	res := joints.Analyze(lm, def, side, s.Extended, jointParams(cfg))
	if !res.SufficientCore(cfg.Joints.MinValidJointRatio) {
		hm.ResetInitialPhaseCounter(s.History)
		return errorOut(CodeTooManyInvalidAngles)
	}

	if !phases.EnsureInitialPhase(s.Exercise, res.Angles, side) {
		hm.ResetInitialPhaseCounter(s.History)
		return calibration(CodePositioningChecking)
	}

	if n := hm.BumpInitialPhaseCounter(s.History); n >= cfg.Session.NumOfMinCorrectPhaseFrames {
		initial, err := phases.InitialPhase(s.Exercise)
		if err != nil {
			return errorOut(CodeInternalError)
		}
		order, err := phases.TransitionOrder(s.Exercise)
		if err != nil {
			return errorOut(CodeInternalError)
		}
		hm.RecordPhase(s.History, order, initial, "", res.Angles, time.Now())
		hm.SetPositionSide(s.History, side)
		s.Analyzing = AnalyzingActive
		return calibration(CodePositioningValid)
	}
	return calibration(CodePositioningChecking)
}

// processActive runs the full pipeline: quality gate, joints, history
// record, phase detection, error detection, feedback selection.
func (o *Orchestrator) processActive(ctx context.Context, s *Session, frameID string, frame *imaging.Frame) Outcome {
	cfg := o.cfg.Get()
	hm := o.historyManager()
	phases, errDet := o.detectors()
	d := s.History
	now := time.Now()

	lm, err := o.Extractor.Extract(ctx, frame)
	if err != nil {
		o.logger.Error().Err(err).Str("session_id", string(s.ID)).Msg("pose extraction failed")
		return errorOut(CodeInternalError)
	}
	def, err := exercise.Lookup(s.Exercise)
	if err != nil {
		return errorOut(CodeInternalError)
	}

	var prev pose.Landmarks
	if d.LastValidFrame != nil {
		prev = d.LastValidFrame.Landmarks
	}
	required := def.RequiredLandmarks(d.PositionSide, s.Extended)
	quality := pose.CheckQuality(lm, prev, required, qualityParams(cfg))

	if quality != pose.QualityOK {
		hm.RecordInvalidFrame(d, frameID, quality, now)
		if d.FramesSinceLastValid >= cfg.History.MaxConsecutiveInvalidBeforeAbort {
			o.logger.Warn().
				Str("event", "pipeline.abort").
				Str("session_id", string(s.ID)).
				Int("invalid_frames", d.FramesSinceLastValid).
				Msg("too many consecutive invalid frames")
			return Outcome{Kind: OutcomeError, Code: CodeSessionShouldAbort, Abort: true}
		}
		fb := feedback.Choose(d, feedbackParams(cfg))
		hm.RecordFeedback(d, string(fb), fb.Holds())
		if !fb.Holds() {
			metrics.RecordFeedback(string(fb))
		}
		return feedbackOut(string(fb))
	}

	res := joints.Analyze(lm, def, d.PositionSide, s.Extended, jointParams(cfg))
	if !res.SufficientCore(cfg.Joints.MinValidJointRatio) {
		return errorOut(CodeTooManyInvalidAngles)
	}

	hm.RecordValidFrame(d, frameID, lm, res.Angles, now)

	detected, err := phases.Determine(d, s.Exercise)
	if err != nil {
		return errorOut(CodePhaseUndetermined)
	}
	order, err := phases.TransitionOrder(s.Exercise)
	if err != nil {
		return errorOut(CodeInternalError)
	}
	repsBefore := d.RepCount
	hm.RecordPhase(d, order, detected, frameID, res.Angles, now)
	if d.RepCount > repsBefore {
		metrics.RecordRepetition(d.Repetitions[len(d.Repetitions)-1].IsCorrect)
	}

	errCode := errDet.Detect(d, s.Exercise)
	hm.RecordFrameError(d, string(errCode), biomech.IsBiomechanical(errCode))

	fb := feedback.Choose(d, feedbackParams(cfg))
	hm.RecordFeedback(d, string(fb), fb.Holds())
	if !fb.Holds() {
		metrics.RecordFeedback(string(fb))
	}
	return feedbackOut(string(fb))
}

func qualityParams(cfg config.Config) pose.QualityParams {
	return pose.QualityParams{
		StabilityThreshold:      cfg.Pose.StabilityThreshold,
		BBoxTooFar:              cfg.Pose.BBoxTooFar,
		MinimumBBoxArea:         cfg.Pose.MinimumBBoxArea,
		VisibilityGoodThreshold: cfg.Pose.VisibilityGoodThreshold,
		RequiredVisibilityRatio: cfg.Pose.RequiredVisibilityRatio,
	}
}

func sideParams(cfg config.Config) pose.SideParams {
	return pose.SideParams{
		LandmarkVisibilityThreshold: cfg.PositionSide.LandmarkVisibilityThreshold,
		DominanceRatioThreshold:     cfg.PositionSide.DominanceRatioThreshold,
		FrontSymmetryThreshold:      cfg.PositionSide.FrontSymmetryThreshold,
		MinRequiredLandmarkRatio:    cfg.PositionSide.MinRequiredLandmarkRatio,
	}
}

func jointParams(cfg config.Config) joints.Params {
	return joints.Params{
		VisibilityThreshold: cfg.Joints.VisibilityThreshold,
		MinValidJointRatio:  cfg.Joints.MinValidJointRatio,
	}
}

func feedbackParams(cfg config.Config) feedback.Params {
	return feedback.Params{
		PoseQualityFeedbackThreshold: cfg.Feedback.PoseQualityFeedbackThreshold,
		BioFeedbackThreshold:         cfg.Feedback.BioFeedbackThreshold,
		CooldownFrames:               cfg.Feedback.CooldownFrames,
	}
}
