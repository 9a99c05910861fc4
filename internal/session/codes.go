// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

// ManagementCode is the typed result of a lifecycle operation. Keep these
// stable: clients and metrics depend on them.
type ManagementCode string

const (
	CodeRegistered        ManagementCode = "CLIENT_REGISTERED_SUCCESSFULLY"
	CodeAlreadyRegistered ManagementCode = "CLIENT_IS_ALREADY_REGISTERED"
	CodeAlreadyActive     ManagementCode = "CLIENT_IS_ALREADY_ACTIVE"
	CodeAlreadyPaused     ManagementCode = "CLIENT_IS_ALREADY_PAUSED"
	CodeUnregistered      ManagementCode = "CLIENT_UNREGISTERED"
	CodeStarted           ManagementCode = "CLIENT_SESSION_STARTED"
	CodePaused            ManagementCode = "CLIENT_SESSION_PAUSED"
	CodeResumed           ManagementCode = "CLIENT_SESSION_RESUMED"
	CodeEnded             ManagementCode = "CLIENT_SESSION_ENDED"

	CodeStatusRegistered  ManagementCode = "CLIENT_SESSION_IS_REGISTERED"
	CodeStatusActive      ManagementCode = "CLIENT_SESSION_IS_ACTIVE"
	CodeStatusPaused      ManagementCode = "CLIENT_SESSION_IS_PAUSED"
	CodeStatusEnded       ManagementCode = "CLIENT_SESSION_IS_ENDED"
	CodeStatusNotInSystem ManagementCode = "CLIENT_SESSION_IS_NOT_IN_SYSTEM"

	CodeInvalidSessionID ManagementCode = "INVALID_SESSION_ID"
	CodeInvalidExercise  ManagementCode = "INVALID_EXERCISE"
	CodeMaxClients       ManagementCode = "MAX_CLIENT_REACHED"
	CodeNotRegistered    ManagementCode = "CLIENT_IS_NOT_REGISTERED"
	CodeNotActive        ManagementCode = "CLIENT_IS_NOT_ACTIVE"
	CodeNotPaused        ManagementCode = "CLIENT_IS_NOT_PAUSED"

	CodeConfigRefreshed         ManagementCode = "CONFIGURATIONS_REFRESHED"
	CodeTerminating             ManagementCode = "SERVER_IS_TERMINATING"
	CodeWrongPassword           ManagementCode = "WRONG_PASSWORD"
	CodeInternalErrorManagement ManagementCode = "INTERNAL_SERVER_ERROR"
)

// OK reports whether the code is a success for its operation.
func (c ManagementCode) OK() bool {
	switch c {
	case CodeRegistered, CodeUnregistered, CodeStarted, CodePaused, CodeResumed,
		CodeEnded, CodeStatusRegistered, CodeStatusActive, CodeStatusPaused,
		CodeStatusEnded, CodeConfigRefreshed, CodeTerminating:
		return true
	}
	return false
}

// Calibration codes returned during INIT and READY.
const (
	CodeVisibilityChecking  = "USER_VISIBILITY_IS_UNDER_CHECKING"
	CodeVisibilityValid     = "USER_VISIBILITY_IS_VALID"
	CodePositioningChecking = "USER_POSITIONING_IS_UNDER_CHECKING"
	CodePositioningValid    = "USER_POSITIONING_IS_VALID"
	CodeWrongPosition       = "WRONG_EXERCISE_POSITION"
)

// Frame-level error codes.
const (
	CodeTooManyInvalidAngles = "TOO_MANY_INVALID_ANGLES"
	CodeSessionShouldAbort   = "SESSION_SHOULD_ABORT"
	CodeSessionNotAnalyzing  = "SESSION_IS_NOT_ANALYZING"
	CodePhaseUndetermined    = "PHASE_UNDETERMINED_IN_FRAME"
	CodeInternalError        = "INTERNAL_SERVER_ERROR"
)

// OutcomeKind tags a pipeline result for envelope serialization.
type OutcomeKind string

const (
	OutcomeCalibration OutcomeKind = "CALIBRATION"
	OutcomeFeedback    OutcomeKind = "FEEDBACK"
	OutcomeError       OutcomeKind = "ERROR"
)

// Outcome is the per-frame pipeline result surfaced to the client.
type Outcome struct {
	Kind  OutcomeKind
	Code  string
	Abort bool // set with SESSION_SHOULD_ABORT
}

func calibration(code string) Outcome { return Outcome{Kind: OutcomeCalibration, Code: code} }
func feedbackOut(code string) Outcome { return Outcome{Kind: OutcomeFeedback, Code: code} }
func errorOut(code string) Outcome    { return Outcome{Kind: OutcomeError, Code: code} }
