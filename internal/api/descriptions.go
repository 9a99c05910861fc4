// SPDX-License-Identifier: MIT

package api

import "strings"

// descriptions maps wire codes to client-facing text. Codes missing here
// fall back to a humanized form of the code itself.
var descriptions = map[string]string{
	"PONG": "Server is reachable.",

	"CLIENT_REGISTERED_SUCCESSFULLY": "Session registered; call /start/session to begin.",
	"CLIENT_IS_ALREADY_REGISTERED":   "This client already has a registered session.",
	"CLIENT_IS_ALREADY_ACTIVE":       "This client already has an active session.",
	"CLIENT_IS_ALREADY_PAUSED":       "This client already has a paused session.",
	"CLIENT_UNREGISTERED":            "Session removed.",
	"CLIENT_SESSION_STARTED":         "Session is active; begin streaming frames.",
	"CLIENT_SESSION_PAUSED":          "Session paused.",
	"CLIENT_SESSION_RESUMED":         "Session resumed.",
	"CLIENT_SESSION_ENDED":           "Session ended; the summary is available.",

	"CLIENT_SESSION_IS_REGISTERED":    "Session is registered and not yet started.",
	"CLIENT_SESSION_IS_ACTIVE":        "Session is active.",
	"CLIENT_SESSION_IS_PAUSED":        "Session is paused.",
	"CLIENT_SESSION_IS_ENDED":         "Session has ended.",
	"CLIENT_SESSION_IS_NOT_IN_SYSTEM": "No session with this id exists.",

	"INVALID_SESSION_ID":       "Unknown session id.",
	"INVALID_EXERCISE":         "The requested exercise is not supported.",
	"MAX_CLIENT_REACHED":       "Maximum number of concurrent active sessions reached; try again later.",
	"CLIENT_IS_NOT_REGISTERED": "Operation requires a registered session.",
	"CLIENT_IS_NOT_ACTIVE":     "Operation requires an active session.",
	"CLIENT_IS_NOT_PAUSED":     "Operation requires a paused session.",

	"CONFIGURATIONS_REFRESHED": "Configuration reloaded.",
	"SERVER_IS_TERMINATING":    "Server shutdown initiated.",
	"WRONG_PASSWORD":           "Wrong termination password.",
	"INTERNAL_SERVER_ERROR":    "Internal server error.",

	"USER_VISIBILITY_IS_UNDER_CHECKING":  "Hold still; checking that your full body is visible.",
	"USER_VISIBILITY_IS_VALID":           "Visibility confirmed; move into the starting position.",
	"USER_POSITIONING_IS_UNDER_CHECKING": "Hold the starting position.",
	"USER_POSITIONING_IS_VALID":          "Positioning confirmed; begin the exercise.",
	"WRONG_EXERCISE_POSITION":            "Adjust your camera angle for this exercise.",

	"NO_PERSON_DETECTED":    "No person detected in the frame.",
	"PARTIAL_BODY_DETECTED": "Part of your body is out of frame.",
	"USER_IS_TOO_FAR":       "Move closer to the camera.",
	"CAMERA_IS_UNSTABLE":    "Keep the camera steady.",

	"SILENT": "",
	"VALID":  "Good form.",

	"FRAME_DECODING_FAILED":       "The frame payload could not be decoded.",
	"TOO_MANY_INVALID_ANGLES":     "Too few joints could be measured in this frame.",
	"SESSION_SHOULD_ABORT":        "Too many unusable frames in a row; the session was ended.",
	"SESSION_IS_NOT_ANALYZING":    "This session no longer accepts frames.",
	"PHASE_UNDETERMINED_IN_FRAME": "The movement phase could not be determined.",
}

// Describe returns the description for a wire code.
func Describe(code string) string {
	if text, ok := descriptions[code]; ok {
		return text
	}
	return strings.ToLower(strings.ReplaceAll(code, "_", " "))
}
