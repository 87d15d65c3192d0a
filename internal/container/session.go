// Copyright (c) 2025, the reelay contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package container

import "sync"

type State string

const (
	StateCreated  State = "created"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateFailed   State = "failed"
)

// Session tracks one streaming worker container from launch request to
// running (or failed). Its container name is derived from the id alone, so
// downstream consumers can address the worker with nothing but the id.
type Session struct {
	ID            string
	MagnetURI     string
	ContainerName string
	NetworkName   string

	mu    sync.RWMutex
	state State
	err   error
	done  chan struct{}
}

func newSession(id, magnetURI, networkName string) *Session {
	return &Session{
		ID:            id,
		MagnetURI:     magnetURI,
		ContainerName: ContainerName(id),
		NetworkName:   networkName,
		state:         StateCreated,
		done:          make(chan struct{}),
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the launch failure, or nil while launching or when running.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Done is closed once the launch attempt has finished, successfully or not.
// Callers that need the outcome check State or Err afterwards.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = StateFailed
	s.err = err
	s.mu.Unlock()
}
