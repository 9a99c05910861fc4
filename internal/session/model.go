// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package session implements the session lifecycle engine and the per-frame
// analysis pipeline around it: a concurrent registry keyed by id and client
// IP, the REGISTERED -> ACTIVE -> (PAUSED <-> ACTIVE) -> ENDED state machine,
// admission control, a background cleanup sweeper, and the orchestrator that
// is the single writer to each session's history.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kinetiq/formcoach/internal/exercise"
	"github.com/kinetiq/formcoach/internal/history"
)

// ID is an opaque unique session identifier.
type ID string

// NewID generates a random session id.
func NewID() ID {
	return ID(uuid.NewString())
}

// Status is the client-visible session lifecycle state.
type Status string

const (
	StatusRegistered  Status = "REGISTERED"
	StatusActive      Status = "ACTIVE"
	StatusPaused      Status = "PAUSED"
	StatusEnded       Status = "ENDED"
	StatusNotInSystem Status = "NOT_IN_SYSTEM"
)

// AnalyzingState is the internal pipeline sub-state of a session.
type AnalyzingState string

const (
	AnalyzingInit    AnalyzingState = "INIT"
	AnalyzingReady   AnalyzingState = "READY"
	AnalyzingActive  AnalyzingState = "ACTIVE"
	AnalyzingDone    AnalyzingState = "DONE"
	AnalyzingFailure AnalyzingState = "FAILURE"
)

// ClientInfo identifies the registering client.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Times holds the lifecycle timestamps. Zero values mean "not yet".
type Times struct {
	Registered   time.Time
	Started      time.Time
	Paused       time.Time
	Ended        time.Time
	LastActivity time.Time
}

// Session is one client's exercise attempt. The mutex guards every mutable
// field and serializes the pipeline: the orchestrator holds it for the full
// duration of a frame. History is owned exclusively by the session and only
// written through the history manager.
type Session struct {
	mu sync.Mutex

	ID        ID
	Client    ClientInfo
	Exercise  exercise.Name
	Extended  bool
	Status    Status
	Analyzing AnalyzingState
	Times     Times
	History   *history.Data
}

func newSession(id ID, ex exercise.Name, client ClientInfo, now time.Time) *Session {
	return &Session{
		ID:        id,
		Client:    client,
		Exercise:  ex,
		Status:    StatusRegistered,
		Analyzing: AnalyzingInit,
		Times:     Times{Registered: now, LastActivity: now},
		History:   history.New(),
	}
}

// lock order: Manager.mu -> Manager.ipMu, and Manager locks are never taken
// while holding a session mutex.
func (s *Session) lock()   { s.mu.Lock() }
func (s *Session) unlock() { s.mu.Unlock() }
