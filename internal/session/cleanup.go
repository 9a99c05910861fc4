// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/kinetiq/formcoach/internal/log"
	"github.com/kinetiq/formcoach/internal/metrics"
)

// Sweeper performs background eviction of stale sessions:
//
//   - REGISTERED idle past max_registration_minutes: removed
//   - ACTIVE without a frame for max_inactive_minutes: coerced to ENDED
//   - PAUSED past max_pause_minutes: coerced to ENDED
//   - ENDED past max_ended_retention: removed
type Sweeper struct {
	Manager *Manager
	logger  zerolog.Logger
}

// NewSweeper wires a sweeper to the registry.
func NewSweeper(m *Manager) *Sweeper {
	return &Sweeper{Manager: m, logger: xlog.WithComponent("session.sweeper")}
}

// Run starts the sweep loop. Intervals come from the live config, so a hot
// reload takes effect on the next tick.
func (sw *Sweeper) Run(ctx context.Context) {
	interval := sw.Manager.cfg.Get().Tasks.CleanupInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sw.logger.Info().Dur("interval", interval).Msg("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.SweepOnce(time.Now())
		}
	}
}

type sweepAction struct {
	id   ID
	rule string
	end  bool // coerce to ENDED instead of removing
}

// SweepOnce performs exactly one deterministic sweep pass against the given
// clock. The registry lock is held only to snapshot candidates; every
// eviction re-validates state under the proper locks.
func (sw *Sweeper) SweepOnce(now time.Time) {
	m := sw.Manager
	tasks := m.cfg.Get().Tasks

	m.mu.Lock()
	candidates := make([]sweepAction, 0)
	for id, s := range m.sessions {
		s.lock()
		status := s.Status
		times := s.Times
		s.unlock()

		switch status {
		case StatusRegistered:
			idleSince := times.LastActivity
			if idleSince.IsZero() {
				idleSince = times.Registered
			}
			if now.Sub(idleSince) >= tasks.MaxRegistration() {
				candidates = append(candidates, sweepAction{id: id, rule: "registration_expired"})
			}
		case StatusActive:
			if !times.LastActivity.IsZero() && now.Sub(times.LastActivity) >= tasks.MaxInactive() {
				candidates = append(candidates, sweepAction{id: id, rule: "inactive", end: true})
			}
		case StatusPaused:
			if !times.Paused.IsZero() && now.Sub(times.Paused) >= tasks.MaxPause() {
				candidates = append(candidates, sweepAction{id: id, rule: "pause_expired", end: true})
			}
		case StatusEnded:
			if !times.Ended.IsZero() && now.Sub(times.Ended) >= tasks.MaxEndedRetention() {
				candidates = append(candidates, sweepAction{id: id, rule: "retention_expired"})
			}
		}
	}
	m.mu.Unlock()

	for _, c := range candidates {
		if c.end {
			m.mu.Lock()
			code := m.endLocked(c.id, c.rule)
			m.mu.Unlock()
			if code == CodeEnded {
				metrics.RecordEviction(c.rule)
				sw.logger.Info().
					Str("event", "sweeper.forced_end").
					Str("session_id", string(c.id)).
					Str("rule", c.rule).
					Msg("session coerced to ENDED")
			}
			continue
		}
		if sw.remove(c.id, c.rule) {
			metrics.RecordEviction(c.rule)
		}
	}
}

// remove deletes a session and its IP index entry, re-validating the
// eviction rule still applies.
func (sw *Sweeper) remove(id ID, rule string) bool {
	m := sw.Manager

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	s.lock()
	status := s.Status
	ip := s.Client.IP
	s.unlock()
	// Only the states the snapshot decided on are removable.
	if status != StatusRegistered && status != StatusEnded {
		return false
	}

	m.ipMu.Lock()
	if m.ipIndex[ip] == id {
		delete(m.ipIndex, ip)
	}
	m.ipMu.Unlock()
	delete(m.sessions, id)
	m.updateGauges()

	sw.logger.Info().
		Str("event", "sweeper.removed").
		Str("session_id", string(id)).
		Str("rule", rule).
		Msg("session removed")
	return true
}
