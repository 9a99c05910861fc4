// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kinetiq/formcoach/internal/config"
	"github.com/kinetiq/formcoach/internal/imaging"
	xlog "github.com/kinetiq/formcoach/internal/log"
	"github.com/kinetiq/formcoach/internal/session"
)

const maxBodyBytes = 8 << 20 // frames arrive base64-encoded

// Handler carries the dependencies of every route.
type Handler struct {
	mgr      *session.Manager
	cfg      *config.Holder
	shutdown func()
	logger   zerolog.Logger
}

// NewHandler wires the route handlers. shutdown is invoked (once, from a
// fresh goroutine) when /terminate/server authenticates.
func NewHandler(mgr *session.Manager, cfg *config.Holder, shutdown func()) *Handler {
	return &Handler{
		mgr:      mgr,
		cfg:      cfg,
		shutdown: shutdown,
		logger:   xlog.WithComponent("api"),
	}
}

// decode parses a JSON body into dst, enforcing the size cap.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// clientInfo extracts the caller identity. chi's RealIP middleware has
// already rewritten RemoteAddr from X-Forwarded-For / X-Real-IP.
func clientInfo(r *http.Request) session.ClientInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return session.ClientInfo{IP: ip, UserAgent: r.UserAgent()}
}

// managementStatus maps a lifecycle code to an HTTP status.
func managementStatus(code session.ManagementCode) int {
	if code.OK() {
		return http.StatusOK
	}
	switch code {
	case session.CodeMaxClients, session.CodeInternalErrorManagement:
		return http.StatusInternalServerError
	case session.CodeWrongPassword:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

func writeManagement(w http.ResponseWriter, code session.ManagementCode, extra any) {
	status := managementStatus(code)
	if code.OK() {
		writeResponse(w, status, ResponseManagement, string(code), extra)
		return
	}
	writeError(w, status, string(code), extra)
}

// Ping reports liveness.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, http.StatusOK, ResponsePing, "PONG", nil)
}

type registerRequest struct {
	ExerciseType string `json:"exercise_type"`
}

// Register creates a new REGISTERED session for the caller's IP.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(session.CodeInvalidExercise), nil)
		return
	}
	code, id := h.mgr.Register(strings.TrimSpace(req.ExerciseType), clientInfo(r))

	var extra any
	if id != "" {
		extra = map[string]string{"session_id": string(id)}
	}
	writeManagement(w, code, extra)
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type startRequest struct {
	SessionID          string `json:"session_id"`
	ExtendedEvaluation bool   `json:"extended_evaluation"`
}

// Unregister removes a session that never started.
func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(session.CodeInvalidSessionID), nil)
		return
	}
	writeManagement(w, h.mgr.Unregister(session.ID(req.SessionID)), nil)
}

// Start activates a registered session and arms calibration.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(session.CodeInvalidSessionID), nil)
		return
	}
	writeManagement(w, h.mgr.Start(session.ID(req.SessionID), req.ExtendedEvaluation), nil)
}

// Pause suspends an active session.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(session.CodeInvalidSessionID), nil)
		return
	}
	writeManagement(w, h.mgr.Pause(session.ID(req.SessionID)), nil)
}

// Resume reactivates a paused session, subject to admission control.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(session.CodeInvalidSessionID), nil)
		return
	}
	writeManagement(w, h.mgr.Resume(session.ID(req.SessionID)), nil)
}

// End finishes a session; the summary stays queryable until retention expires.
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(session.CodeInvalidSessionID), nil)
		return
	}
	writeManagement(w, h.mgr.End(session.ID(req.SessionID)), nil)
}

// Status reports the lifecycle state of a session.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(session.CodeInvalidSessionID), nil)
		return
	}
	code := h.mgr.StatusOf(session.ID(req.SessionID))
	if code == session.CodeStatusNotInSystem {
		writeError(w, http.StatusBadRequest, string(code), nil)
		return
	}
	writeResponse(w, http.StatusOK, ResponseManagement, string(code), nil)
}

type analyzeRequest struct {
	SessionID    string `json:"session_id"`
	FrameID      string `json:"frame_id"`
	FrameContent string `json:"frame_content"`
}

// Analyze runs the per-frame pipeline: decode, extract, calibrate or
// evaluate, and answer with the calibration/feedback/error outcome.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "FRAME_DECODING_FAILED", nil)
		return
	}

	cfg := h.cfg.Get()
	frame, err := imaging.DecodeBase64(req.FrameContent, cfg.Frame.Width, cfg.Frame.Height)
	if err != nil {
		if errors.Is(err, imaging.ErrDecode) {
			writeError(w, http.StatusBadRequest, "FRAME_DECODING_FAILED", frameExtra(req.FrameID))
			return
		}
		h.logger.Error().Err(err).Str("frame_id", req.FrameID).Msg("frame decode failed")
		writeError(w, http.StatusInternalServerError, string(session.CodeInternalError), frameExtra(req.FrameID))
		return
	}

	out := h.mgr.AnalyzeFrame(r.Context(), session.ID(req.SessionID), req.FrameID, frame)
	h.writeOutcome(w, req.FrameID, out)
}

func frameExtra(frameID string) any {
	if frameID == "" {
		return nil
	}
	return map[string]string{"frame_id": frameID}
}

// writeOutcome serializes a pipeline outcome. An abort is reported as the
// error that caused it; the session is already ENDED by the time we answer.
func (h *Handler) writeOutcome(w http.ResponseWriter, frameID string, out session.Outcome) {
	extra := frameExtra(frameID)
	switch out.Kind {
	case session.OutcomeCalibration:
		writeResponse(w, http.StatusOK, ResponseCalibration, out.Code, extra)
	case session.OutcomeFeedback:
		writeResponse(w, http.StatusOK, ResponseFeedback, out.Code, extra)
	default:
		status := http.StatusBadRequest
		switch out.Code {
		case session.CodeSessionShouldAbort:
			// The frame was accepted and processed; the abort is a verdict,
			// not a request failure.
			status = http.StatusOK
		case session.CodeInternalError:
			status = http.StatusInternalServerError
		}
		writeError(w, status, out.Code, extra)
	}
}

// Summary returns the end-of-session report for an ENDED session.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(session.CodeInvalidSessionID), nil)
		return
	}
	summary, code := h.mgr.Summary(session.ID(req.SessionID))
	if summary == nil {
		writeError(w, managementStatus(code), string(code), nil)
		return
	}
	writeResponse(w, http.StatusOK, ResponseSummary, string(session.CodeStatusEnded), summary)
}

// Telemetry exposes the registry snapshot for operators.
func (h *Handler) Telemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mgr.Snapshot())
}

// Refresh reloads the configuration file and the rule tables.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	writeManagement(w, h.mgr.RefreshConfigurations(r.Context()), nil)
}

type terminateRequest struct {
	Password string `json:"password"`
}

// Terminate shuts the server down after password verification. The response
// is flushed before shutdown begins.
func (h *Handler) Terminate(w http.ResponseWriter, r *http.Request) {
	var req terminateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusUnauthorized, string(session.CodeWrongPassword), nil)
		return
	}
	cfg := h.cfg.Get()
	if cfg.Server.TerminatePassword == "" || req.Password != cfg.Server.TerminatePassword {
		h.logger.Warn().Str("event", "api.terminate_rejected").Str("ip", clientInfo(r).IP).Msg("terminate rejected")
		writeError(w, http.StatusUnauthorized, string(session.CodeWrongPassword), nil)
		return
	}

	h.logger.Info().Str("event", "api.terminate_accepted").Msg("server termination requested")
	writeManagement(w, session.CodeTerminating, nil)
	if h.shutdown != nil {
		go h.shutdown()
	}
}
