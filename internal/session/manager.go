// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kinetiq/formcoach/internal/config"
	"github.com/kinetiq/formcoach/internal/exercise"
	"github.com/kinetiq/formcoach/internal/imaging"
	xlog "github.com/kinetiq/formcoach/internal/log"
	"github.com/kinetiq/formcoach/internal/metrics"
)

// Manager owns the session registry: the primary id map and the secondary
// IP index. Lock acquisition order is mu -> ipMu; session mutexes are only
// taken after both registry locks are released.
type Manager struct {
	mu       sync.Mutex
	sessions map[ID]*Session

	ipMu    sync.Mutex
	ipIndex map[string]ID

	activeCount int

	cfg      *config.Holder
	pipeline *Orchestrator
	logger   zerolog.Logger

	startedAt      time.Time
	framesAnalyzed atomic.Int64
}

// NewManager creates the registry around a config holder and a pipeline
// orchestrator.
func NewManager(cfg *config.Holder, pipeline *Orchestrator) *Manager {
	return &Manager{
		sessions:  make(map[ID]*Session),
		ipIndex:   make(map[string]ID),
		cfg:       cfg,
		pipeline:  pipeline,
		logger:    xlog.WithComponent("session.manager"),
		startedAt: time.Now(),
	}
}

// Register validates the exercise, enforces one live session per client IP,
// and creates a new REGISTERED session. When the IP already maps to a
// non-ENDED session the existing id is returned with the matching
// CLIENT_IS_ALREADY_* code.
func (m *Manager) Register(exerciseName string, client ClientInfo) (ManagementCode, ID) {
	cfg := m.cfg.Get()
	if !m.exerciseSupported(cfg, exerciseName) {
		metrics.RecordReject("invalid_exercise")
		return CodeInvalidExercise, ""
	}
	ex := exercise.Name(exerciseName)
	if _, err := exercise.Lookup(ex); err != nil {
		metrics.RecordReject("invalid_exercise")
		return CodeInvalidExercise, ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ipMu.Lock()
	defer m.ipMu.Unlock()

	if existingID, ok := m.ipIndex[client.IP]; ok {
		if existing, found := m.sessions[existingID]; found {
			existing.lock()
			status := existing.Status
			existing.unlock()
			if status != StatusEnded {
				metrics.RecordReject("ip_already_registered")
				return alreadyCode(status), existingID
			}
		}
		// Stale index entry; the session ended or vanished.
		delete(m.ipIndex, client.IP)
	}

	id := NewID()
	now := time.Now()
	m.sessions[id] = newSession(id, ex, client, now)
	m.ipIndex[client.IP] = id
	m.updateGauges()

	m.logger.Info().
		Str("event", "session.registered").
		Str("session_id", string(id)).
		Str("exercise", exerciseName).
		Str("ip", client.IP).
		Msg("session registered")
	return CodeRegistered, id
}

func alreadyCode(s Status) ManagementCode {
	switch s {
	case StatusActive:
		return CodeAlreadyActive
	case StatusPaused:
		return CodeAlreadyPaused
	default:
		return CodeAlreadyRegistered
	}
}

// Unregister removes a session that never started.
func (m *Manager) Unregister(id ID) ManagementCode {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return CodeInvalidSessionID
	}
	s.lock()
	status := s.Status
	ip := s.Client.IP
	s.unlock()
	if status != StatusRegistered {
		return CodeNotRegistered
	}

	delete(m.sessions, id)
	m.ipMu.Lock()
	if m.ipIndex[ip] == id {
		delete(m.ipIndex, ip)
	}
	m.ipMu.Unlock()
	m.updateGauges()

	m.logger.Info().Str("event", "session.unregistered").Str("session_id", string(id)).Msg("session unregistered")
	return CodeUnregistered
}

// Start transitions REGISTERED -> ACTIVE under admission control and arms
// the pipeline (INIT calibration).
func (m *Manager) Start(id ID, extendedEvaluation bool) ManagementCode {
	cfg := m.cfg.Get()

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return CodeInvalidSessionID
	}

	s.lock()
	if s.Status != StatusRegistered {
		code := wrongStateForStart(s.Status)
		s.unlock()
		m.mu.Unlock()
		return code
	}
	if m.activeCount >= cfg.Session.MaximumClients {
		s.unlock()
		m.mu.Unlock()
		metrics.RecordReject("max_clients")
		return CodeMaxClients
	}

	now := time.Now()
	s.Status = StatusActive
	s.Extended = extendedEvaluation
	s.Analyzing = AnalyzingInit
	s.Times.Started = now
	s.Times.LastActivity = now
	m.pipeline.start(s, now)
	s.unlock()

	m.activeCount++
	m.updateGauges()
	m.mu.Unlock()

	m.logger.Info().
		Str("event", "session.started").
		Str("session_id", string(id)).
		Bool("extended_evaluation", extendedEvaluation).
		Msg("session started")
	return CodeStarted
}

func wrongStateForStart(s Status) ManagementCode {
	switch s {
	case StatusActive:
		return CodeAlreadyActive
	case StatusPaused:
		return CodeAlreadyPaused
	default:
		return CodeNotRegistered
	}
}

// Pause transitions ACTIVE -> PAUSED and frees the admission slot.
func (m *Manager) Pause(id ID) ManagementCode {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return CodeInvalidSessionID
	}

	s.lock()
	if s.Status != StatusActive {
		s.unlock()
		m.mu.Unlock()
		return CodeNotActive
	}
	now := time.Now()
	s.Status = StatusPaused
	s.Times.Paused = now
	s.Times.LastActivity = now
	m.pipeline.pause(s, now)
	s.unlock()

	m.activeCount--
	m.updateGauges()
	m.mu.Unlock()

	m.logger.Info().Str("event", "session.paused").Str("session_id", string(id)).Msg("session paused")
	return CodePaused
}

// Resume transitions PAUSED -> ACTIVE under the same admission check as Start.
func (m *Manager) Resume(id ID) ManagementCode {
	cfg := m.cfg.Get()

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return CodeInvalidSessionID
	}

	s.lock()
	if s.Status != StatusPaused {
		s.unlock()
		m.mu.Unlock()
		return CodeNotPaused
	}
	if m.activeCount >= cfg.Session.MaximumClients {
		s.unlock()
		m.mu.Unlock()
		metrics.RecordReject("max_clients")
		return CodeMaxClients
	}
	now := time.Now()
	s.Status = StatusActive
	s.Times.LastActivity = now
	m.pipeline.resume(s, now)
	s.unlock()

	m.activeCount++
	m.updateGauges()
	m.mu.Unlock()

	m.logger.Info().Str("event", "session.resumed").Str("session_id", string(id)).Msg("session resumed")
	return CodeResumed
}

// End transitions ACTIVE/PAUSED -> ENDED, frees the admission slot and the IP
// index entry, and finalizes the history clock. The session stays queryable
// for the summary until retention expires.
func (m *Manager) End(id ID) ManagementCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endLocked(id, "client")
}

// endLocked requires m.mu held.
func (m *Manager) endLocked(id ID, cause string) ManagementCode {
	s, ok := m.sessions[id]
	if !ok {
		return CodeInvalidSessionID
	}

	s.lock()
	if s.Status != StatusActive && s.Status != StatusPaused {
		s.unlock()
		return CodeNotActive
	}
	wasActive := s.Status == StatusActive
	now := time.Now()
	s.Status = StatusEnded
	s.Analyzing = AnalyzingDone
	s.Times.Ended = now
	m.pipeline.end(s, now)
	ip := s.Client.IP
	s.unlock()

	if wasActive {
		m.activeCount--
	}
	m.ipMu.Lock()
	if m.ipIndex[ip] == id {
		delete(m.ipIndex, ip)
	}
	m.ipMu.Unlock()
	m.updateGauges()

	m.logger.Info().
		Str("event", "session.ended").
		Str("session_id", string(id)).
		Str("cause", cause).
		Msg("session ended")
	return CodeEnded
}

// StatusOf reports the lifecycle state as a management code.
func (m *Manager) StatusOf(id ID) ManagementCode {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return CodeStatusNotInSystem
	}
	s.lock()
	defer s.unlock()
	switch s.Status {
	case StatusRegistered:
		return CodeStatusRegistered
	case StatusActive:
		return CodeStatusActive
	case StatusPaused:
		return CodeStatusPaused
	case StatusEnded:
		return CodeStatusEnded
	default:
		return CodeStatusNotInSystem
	}
}

// AnalyzeFrame runs the full pipeline for one frame. The per-session lock is
// held for the whole pass, serializing frames within a session while other
// sessions proceed in parallel. A SESSION_SHOULD_ABORT outcome coerces the
// session to ENDED before returning.
func (m *Manager) AnalyzeFrame(ctx context.Context, id ID, frameID string, frame *imaging.Frame) Outcome {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return errorOut(string(CodeInvalidSessionID))
	}

	s.lock()
	if s.Status != StatusActive {
		s.unlock()
		return errorOut(string(CodeNotActive))
	}
	s.Times.LastActivity = time.Now()
	out := m.pipeline.process(ctx, s, frameID, frame)
	s.unlock()

	m.framesAnalyzed.Add(1)

	if out.Abort {
		m.mu.Lock()
		_ = m.endLocked(id, "abort")
		m.mu.Unlock()
	}
	return out
}

// Summary builds the end-of-session report. Only ENDED sessions have one.
func (m *Manager) Summary(id ID) (*Summary, ManagementCode) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, CodeInvalidSessionID
	}
	s.lock()
	defer s.unlock()
	if s.Status != StatusEnded {
		return nil, CodeNotActive
	}
	cfg := m.cfg.Get()
	return buildSummary(s, cfg.Summary), CodeStatusEnded
}

// RefreshConfigurations triggers a config reload and re-arms the pipeline's
// rule tables.
func (m *Manager) RefreshConfigurations(ctx context.Context) ManagementCode {
	if err := m.cfg.Reload(ctx); err != nil {
		m.logger.Warn().Err(err).Str("event", "session.config_refresh_failed").Msg("keeping previous configuration")
		return CodeInternalErrorManagement
	}
	if err := m.pipeline.retrieveConfigurations(m.cfg.Get()); err != nil {
		m.logger.Warn().Err(err).Str("event", "session.rules_refresh_failed").Msg("keeping previous rule tables")
		return CodeInternalErrorManagement
	}
	return CodeConfigRefreshed
}

// Telemetry is the /internal/telemetry snapshot.
type Telemetry struct {
	UptimeSeconds   float64        `json:"uptime_seconds"`
	SessionsByState map[string]int `json:"sessions_by_state"`
	ActiveCount     int            `json:"active_count"`
	FramesAnalyzed  int64          `json:"frames_analyzed"`
}

// Snapshot returns current registry counters for the telemetry endpoint.
func (m *Manager) Snapshot() Telemetry {
	m.mu.Lock()
	defer m.mu.Unlock()

	byState := make(map[string]int)
	for _, s := range m.sessions {
		s.lock()
		byState[string(s.Status)]++
		s.unlock()
	}
	return Telemetry{
		UptimeSeconds:   time.Since(m.startedAt).Seconds(),
		SessionsByState: byState,
		ActiveCount:     m.activeCount,
		FramesAnalyzed:  m.framesAnalyzed.Load(),
	}
}

func (m *Manager) exerciseSupported(cfg config.Config, name string) bool {
	for _, ex := range cfg.Session.SupportedExercises {
		if ex == name {
			return true
		}
	}
	return false
}

// updateGauges requires m.mu held.
func (m *Manager) updateGauges() {
	byState := make(map[Status]int)
	for _, s := range m.sessions {
		s.lock()
		byState[s.Status]++
		s.unlock()
	}
	for _, st := range []Status{StatusRegistered, StatusActive, StatusPaused, StatusEnded} {
		metrics.SessionsByState.WithLabelValues(string(st)).Set(float64(byState[st]))
	}
	metrics.ActiveSessions.Set(float64(m.activeCount))
}
