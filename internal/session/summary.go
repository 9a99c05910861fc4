// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kinetiq/formcoach/internal/biomech"
	"github.com/kinetiq/formcoach/internal/config"
	"github.com/kinetiq/formcoach/internal/history"
)

// RepReport is one repetition in the summary breakdown.
type RepReport struct {
	DurationSeconds float64  `json:"duration_seconds"`
	IsCorrect       bool     `json:"is_correct"`
	Errors          []string `json:"errors"`
}

// Summary is the end-of-session report.
type Summary struct {
	SessionID              string         `json:"session_id"`
	ExerciseType           string         `json:"exercise_type"`
	SessionDurationSeconds float64        `json:"session_duration_seconds"`
	NumberOfReps           int            `json:"number_of_reps"`
	AverageRepDuration     float64        `json:"average_rep_duration_seconds"`
	OverallGrade           float64        `json:"overall_grade"`
	RepBreakdown           []RepReport    `json:"rep_breakdown"`
	AggregatedErrors       map[string]int `json:"aggregated_errors"`
	Recommendations        []string       `json:"recommendations"`
}

// buildSummary aggregates the session's history. Session lock held by caller.
func buildSummary(s *Session, cfg config.SummaryConfig) *Summary {
	d := s.History

	breakdown := make([]RepReport, 0, len(d.Repetitions))
	var totalRepSeconds float64
	for _, rep := range d.Repetitions {
		breakdown = append(breakdown, RepReport{
			DurationSeconds: rep.Seconds,
			IsCorrect:       rep.IsCorrect,
			Errors:          append([]string{}, rep.Errors...),
		})
		totalRepSeconds += rep.Seconds
	}
	avg := 0.0
	if len(d.Repetitions) > 0 {
		avg = totalRepSeconds / float64(len(d.Repetitions))
	}

	aggregated := make(map[string]int, len(d.ErrorCounters))
	totalErrors := 0
	for name, count := range d.ErrorCounters {
		aggregated[name] = count
		if biomech.IsBiomechanical(biomech.Code(name)) {
			totalErrors += count
		}
	}

	grade := cfg.MaxGrade - float64(totalErrors)*cfg.PenaltyPerError
	if grade < 0 {
		grade = 0
	}

	return &Summary{
		SessionID:              string(s.ID),
		ExerciseType:           string(s.Exercise),
		SessionDurationSeconds: d.ExerciseFinalDuration,
		NumberOfReps:           d.RepCount,
		AverageRepDuration:     avg,
		OverallGrade:           grade,
		RepBreakdown:           breakdown,
		AggregatedErrors:       aggregated,
		Recommendations:        recommendations(d, cfg.NumberOfTopErrors),
	}
}

// recommendations ranks biomechanical errors by frequency and maps the top N
// to coaching advice. Neutral verdicts never produce a recommendation.
func recommendations(d *history.Data, topN int) []string {
	type entry struct {
		name  string
		count int
	}
	entries := make([]entry, 0, len(d.ErrorCounters))
	for name, count := range d.ErrorCounters {
		if !biomech.IsBiomechanical(biomech.Code(name)) || count == 0 {
			continue
		}
		entries = append(entries, entry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})
	if topN > 0 && len(entries) > topN {
		entries = entries[:topN]
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, recommendationFor(e.name))
	}
	return out
}

var recommendationTexts = map[string]string{
	"SQUAT_DOWN_KNEE_TOO_BENT":   "Do not drop below parallel; control the descent and keep tension in your quads.",
	"SQUAT_DOWN_KNEE_NOT_BENT":   "Sink deeper into the squat until your thighs approach parallel.",
	"SQUAT_DOWN_BACK_TOO_BENT":   "Keep your chest up and spine neutral while descending.",
	"SQUAT_UP_HIPS_RISING_EARLY": "Drive hips and shoulders up together when standing out of the squat.",
	"CURL_LIFT_ELBOW_DRIFT":      "Pin your elbows to your sides; only the forearms should travel.",
	"CURL_LIFT_SWINGING":         "Slow down and stop swinging; lift with the biceps, not momentum.",
	"CURL_LOWER_TOO_FAST":        "Lower the weight under control for a full, slow eccentric.",
	"CURL_TOP_INCOMPLETE":        "Squeeze fully at the top before starting the descent.",
}

func recommendationFor(code string) string {
	if text, ok := recommendationTexts[code]; ok {
		return text
	}
	// Fallback keeps unknown (newly configured) codes presentable.
	words := strings.ToLower(strings.ReplaceAll(code, "_", " "))
	return fmt.Sprintf("Work on correcting: %s.", words)
}
