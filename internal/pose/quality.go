// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package pose

// QualityKind classifies a frame's pose quality. These are domain signals,
// never server errors: they flow back to clients as calibration or feedback
// codes.
type QualityKind string

const (
	QualityOK          QualityKind = "OK"
	QualityNoPerson    QualityKind = "NO_PERSON"
	QualityPartialBody QualityKind = "PARTIAL_BODY"
	QualityTooFar      QualityKind = "TOO_FAR"
	QualityUnstable    QualityKind = "UNSTABLE"
)

// QualityParams carries the thresholds for the quality gate.
type QualityParams struct {
	StabilityThreshold      float64
	BBoxTooFar              float64
	MinimumBBoxArea         float64
	VisibilityGoodThreshold float64
	RequiredVisibilityRatio float64
}

// CheckQuality classifies a landmark matrix. Decisions apply in order, first
// match wins:
//
//  1. malformed matrix -> NO_PERSON
//  2. bounding box area at or below minimum -> NO_PERSON
//  3. required-landmark visibility ratio below threshold ->
//     TOO_FAR when the box is small, PARTIAL_BODY otherwise
//  4. mean displacement against the previous valid frame above threshold -> UNSTABLE
//  5. OK
//
// prev is the previous valid frame's landmarks, or nil when none exists
// (stability is then skipped).
func CheckQuality(lm Landmarks, prev Landmarks, required []int, p QualityParams) QualityKind {
	if !lm.Complete() {
		return QualityNoPerson
	}
	clean := lm.Sanitized()

	area := clean.BoundingBoxArea()
	if area <= p.MinimumBBoxArea {
		return QualityNoPerson
	}

	ratio := clean.VisibilityRatio(required, p.VisibilityGoodThreshold)
	if ratio < p.RequiredVisibilityRatio {
		if area < p.BBoxTooFar {
			return QualityTooFar
		}
		return QualityPartialBody
	}

	if prev != nil && prev.Complete() {
		if clean.MeanDelta(prev.Sanitized()) > p.StabilityThreshold {
			return QualityUnstable
		}
	}
	return QualityOK
}
