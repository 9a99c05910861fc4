// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads, validates and hot-reloads the coachd configuration.
package config

import (
	"fmt"
	"time"
)

// Config is the full runtime configuration. It is loaded once at startup and
// can be refreshed through the Holder; callers always work on value snapshots.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Frame        FrameConfig        `yaml:"frame"`
	Session      SessionConfig      `yaml:"session"`
	Tasks        TasksConfig        `yaml:"tasks"`
	Pose         PoseConfig         `yaml:"pose"`
	PositionSide PositionSideConfig `yaml:"position_side"`
	Joints       JointsConfig       `yaml:"joints"`
	Phase        PhaseConfig        `yaml:"phase"`
	Error        ErrorConfig        `yaml:"error"`
	History      HistoryConfig      `yaml:"history"`
	Feedback     FeedbackConfig     `yaml:"feedback"`
	Summary      SummaryConfig      `yaml:"summary"`
	Log          LogConfig          `yaml:"log"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

type ServerConfig struct {
	Listen            string `yaml:"listen"`
	TerminatePassword string `yaml:"terminate_password"`
	// AnalyzeRateLimit bounds /analyze requests per client IP per minute.
	AnalyzeRateLimit int `yaml:"analyze_rate_limit"`
}

type FrameConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type SessionConfig struct {
	SupportedExercises         []string `yaml:"supported_exercises"`
	MaximumClients             int      `yaml:"maximum_clients"`
	NumOfMinInitOKFrames       int      `yaml:"num_of_min_init_ok_frames"`
	NumOfMinCorrectPhaseFrames int      `yaml:"num_of_min_init_correct_phase_frames"`
}

type TasksConfig struct {
	CleanupIntervalMinutes       int `yaml:"cleanup_interval_minutes"`
	MaxRegistrationMinutes       int `yaml:"max_registration_minutes"`
	MaxInactiveMinutes           int `yaml:"max_inactive_minutes"`
	MaxPauseMinutes              int `yaml:"max_pause_minutes"`
	MaxEndedRetentionMinutes     int `yaml:"max_ended_retention"`
	RetrieveConfigurationMinutes int `yaml:"retrieve_configuration_minutes"`
}

type PoseConfig struct {
	// ExtractorEndpoint is the landmark model sidecar URL.
	ExtractorEndpoint       string  `yaml:"extractor_endpoint"`
	ExtractorTimeoutMs      int     `yaml:"extractor_timeout_ms"`
	StabilityThreshold      float64 `yaml:"stability_threshold"`
	BBoxTooFar              float64 `yaml:"bbox_too_far"`
	MinimumBBoxArea         float64 `yaml:"minimum_bbox_area"`
	VisibilityGoodThreshold float64 `yaml:"visibility_good_threshold"`
	RequiredVisibilityRatio float64 `yaml:"required_visibility_ratio"`
}

type PositionSideConfig struct {
	LandmarkVisibilityThreshold float64 `yaml:"landmark_visibility_threshold"`
	DominanceRatioThreshold     float64 `yaml:"dominance_ratio_threshold"`
	FrontSymmetryThreshold      float64 `yaml:"front_symmetry_threshold"`
	MinRequiredLandmarkRatio    float64 `yaml:"min_required_landmark_ratio"`
}

type JointsConfig struct {
	VisibilityThreshold float64 `yaml:"visibility_threshold"`
	MinValidJointRatio  float64 `yaml:"min_valid_joint_ratio"`
}

type PhaseConfig struct {
	LowMotionThreshold int    `yaml:"phase_low_motion_threshold"`
	ConfigFile         string `yaml:"phase_detector_config_file"`
}

type ErrorConfig struct {
	ConfigFile string `yaml:"error_detector_config_file"`
}

type HistoryConfig struct {
	FramesRollingWindowSize        int     `yaml:"frames_rolling_window_size"`
	BadFrameLogSize                int     `yaml:"bad_frame_log_size"`
	RecoveryOKThreshold            int     `yaml:"recovery_ok_threshold"`
	BadStabilityLimit              int     `yaml:"bad_stability_limit"`
	MaxConsecutiveInvalidBeforeAbort int   `yaml:"max_consecutive_invalid_before_abort"`
	LowMotionAngleDegreesThreshold float64 `yaml:"low_motion_angle_degrees_threshold"`
}

type FeedbackConfig struct {
	PoseQualityFeedbackThreshold int `yaml:"pose_quality_feedback_threshold"`
	BioFeedbackThreshold         int `yaml:"bio_feedback_threshold"`
	CooldownFrames               int `yaml:"cooldown_frames"`
}

type SummaryConfig struct {
	NumberOfTopErrors int     `yaml:"number_of_top_errors"`
	PenaltyPerError   float64 `yaml:"penalty_per_error"`
	MaxGrade          float64 `yaml:"max_grade"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling"`
}

// CleanupInterval returns the sweep interval as a duration.
func (t TasksConfig) CleanupInterval() time.Duration {
	return time.Duration(t.CleanupIntervalMinutes) * time.Minute
}

// MaxRegistration returns the idle-REGISTERED eviction age.
func (t TasksConfig) MaxRegistration() time.Duration {
	return time.Duration(t.MaxRegistrationMinutes) * time.Minute
}

// MaxInactive returns the ACTIVE inactivity coercion age.
func (t TasksConfig) MaxInactive() time.Duration {
	return time.Duration(t.MaxInactiveMinutes) * time.Minute
}

// MaxPause returns the PAUSED coercion age.
func (t TasksConfig) MaxPause() time.Duration {
	return time.Duration(t.MaxPauseMinutes) * time.Minute
}

// MaxEndedRetention returns how long ENDED sessions stay queryable.
func (t TasksConfig) MaxEndedRetention() time.Duration {
	return time.Duration(t.MaxEndedRetentionMinutes) * time.Minute
}

// RetrieveConfigurationInterval returns the periodic refresh interval; zero disables it.
func (t TasksConfig) RetrieveConfigurationInterval() time.Duration {
	return time.Duration(t.RetrieveConfigurationMinutes) * time.Minute
}

// Default returns the built-in configuration. Every field holds a usable
// value so a missing config file still yields a runnable daemon.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:           "0.0.0.0:8080",
			AnalyzeRateLimit: 1800,
		},
		Frame: FrameConfig{Width: 640, Height: 480},
		Session: SessionConfig{
			SupportedExercises:        []string{"squat", "biceps_curl"},
			MaximumClients:            8,
			NumOfMinInitOKFrames:      5,
			NumOfMinCorrectPhaseFrames: 3,
		},
		Tasks: TasksConfig{
			CleanupIntervalMinutes:       1,
			MaxRegistrationMinutes:       5,
			MaxInactiveMinutes:           3,
			MaxPauseMinutes:              10,
			MaxEndedRetentionMinutes:     15,
			RetrieveConfigurationMinutes: 0,
		},
		Pose: PoseConfig{
			ExtractorEndpoint:       "http://127.0.0.1:9611/landmarks",
			ExtractorTimeoutMs:      500,
			StabilityThreshold:      0.12,
			BBoxTooFar:              0.08,
			MinimumBBoxArea:         0.01,
			VisibilityGoodThreshold: 0.6,
			RequiredVisibilityRatio: 0.8,
		},
		PositionSide: PositionSideConfig{
			LandmarkVisibilityThreshold: 0.5,
			DominanceRatioThreshold:     0.7,
			FrontSymmetryThreshold:      0.1,
			MinRequiredLandmarkRatio:    0.5,
		},
		Joints: JointsConfig{
			VisibilityThreshold: 0.5,
			MinValidJointRatio:  0.6,
		},
		Phase: PhaseConfig{
			LowMotionThreshold: 3,
			ConfigFile:         "configs/phases.json",
		},
		Error: ErrorConfig{ConfigFile: "configs/errors.json"},
		History: HistoryConfig{
			FramesRollingWindowSize:        120,
			BadFrameLogSize:                60,
			RecoveryOKThreshold:            3,
			BadStabilityLimit:              10,
			MaxConsecutiveInvalidBeforeAbort: 90,
			LowMotionAngleDegreesThreshold: 2.0,
		},
		Feedback: FeedbackConfig{
			PoseQualityFeedbackThreshold: 5,
			BioFeedbackThreshold:         3,
			CooldownFrames:               5,
		},
		Summary: SummaryConfig{
			NumberOfTopErrors: 3,
			PenaltyPerError:   2,
			MaxGrade:          100,
		},
		Log:       LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{ExporterType: "http", SamplingRate: 0.1},
	}
}

// Validate rejects configurations the pipeline cannot run with. The daemon
// refuses to start on any error; a hot reload keeps the previous config.
func Validate(c Config) error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must be set")
	}
	if c.Frame.Width <= 0 || c.Frame.Height <= 0 {
		return fmt.Errorf("frame.width and frame.height must be > 0 (got %dx%d)", c.Frame.Width, c.Frame.Height)
	}
	if len(c.Session.SupportedExercises) == 0 {
		return fmt.Errorf("session.supported_exercises must not be empty")
	}
	if c.Session.MaximumClients <= 0 {
		return fmt.Errorf("session.maximum_clients must be > 0, got %d", c.Session.MaximumClients)
	}
	if c.Session.NumOfMinInitOKFrames <= 0 {
		return fmt.Errorf("session.num_of_min_init_ok_frames must be > 0")
	}
	if c.Session.NumOfMinCorrectPhaseFrames <= 0 {
		return fmt.Errorf("session.num_of_min_init_correct_phase_frames must be > 0")
	}
	if c.Tasks.CleanupIntervalMinutes <= 0 {
		return fmt.Errorf("tasks.cleanup_interval_minutes must be > 0")
	}
	for key, v := range map[string]float64{
		"pose.visibility_good_threshold":            c.Pose.VisibilityGoodThreshold,
		"pose.required_visibility_ratio":            c.Pose.RequiredVisibilityRatio,
		"position_side.landmark_visibility_threshold": c.PositionSide.LandmarkVisibilityThreshold,
		"position_side.dominance_ratio_threshold":   c.PositionSide.DominanceRatioThreshold,
		"position_side.min_required_landmark_ratio": c.PositionSide.MinRequiredLandmarkRatio,
		"joints.visibility_threshold":               c.Joints.VisibilityThreshold,
		"joints.min_valid_joint_ratio":              c.Joints.MinValidJointRatio,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", key, v)
		}
	}
	if c.Pose.ExtractorEndpoint == "" {
		return fmt.Errorf("pose.extractor_endpoint must be set")
	}
	if c.Pose.StabilityThreshold <= 0 {
		return fmt.Errorf("pose.stability_threshold must be > 0")
	}
	if c.History.FramesRollingWindowSize <= 0 || c.History.BadFrameLogSize <= 0 {
		return fmt.Errorf("history window sizes must be > 0")
	}
	if c.History.MaxConsecutiveInvalidBeforeAbort <= 0 {
		return fmt.Errorf("history.max_consecutive_invalid_before_abort must be > 0")
	}
	if c.Feedback.BioFeedbackThreshold <= 0 || c.Feedback.PoseQualityFeedbackThreshold <= 0 {
		return fmt.Errorf("feedback thresholds must be > 0")
	}
	if c.Feedback.CooldownFrames < 0 {
		return fmt.Errorf("feedback.cooldown_frames must be >= 0")
	}
	if c.Summary.MaxGrade <= 0 {
		return fmt.Errorf("summary.max_grade must be > 0")
	}
	if c.Summary.PenaltyPerError < 0 {
		return fmt.Errorf("summary.penalty_per_error must be >= 0")
	}
	if c.Phase.ConfigFile == "" {
		return fmt.Errorf("phase.phase_detector_config_file must be set")
	}
	if c.Error.ConfigFile == "" {
		return fmt.Errorf("error.error_detector_config_file must be set")
	}
	return nil
}
