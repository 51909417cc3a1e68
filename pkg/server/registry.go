// --------------------------------------------------------------------------------
// Author: Thomas F McGeehan V
//
// This file is part of a software project developed by Thomas F McGeehan V.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// For more information about the MIT License, please visit:
// https://opensource.org/licenses/MIT
//
// Acknowledgment appreciated but not required.
// --------------------------------------------------------------------------------

package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/pkg/session"
)

var (
	errSessionNotFound = errors.New("session not found")
	errTooManySessions = errors.New("too many open sessions")
)

// registry holds the live sessions of the server, up to a fixed number.
type registry struct {
	mu       sync.Mutex
	max      int
	sessions map[uuid.UUID]*session.Session
}

func newRegistry(max int) *registry {
	return &registry{max: max, sessions: make(map[uuid.UUID]*session.Session)}
}

// reserve fails when the registry is full.
func (r *registry) reserve() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.sessions) >= r.max {
		return errors.WithHint(errTooManySessions, "reset an unused session and retry")
	}
	return nil
}

func (r *registry) add(s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.sessions) >= r.max {
		return errTooManySessions
	}
	r.sessions[s.ID()] = s
	return nil
}

func (r *registry) get(id string) (*session.Session, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return nil, &badRequestError{field: "session_id", msg: err.Error()}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if !ok {
		return nil, errors.Wrapf(errSessionNotFound, "session %s", id)
	}
	return s, nil
}

// remove drops the session and returns it.
func (r *registry) remove(id string) (*session.Session, error) {
	s, err := r.get(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	delete(r.sessions, s.ID())
	r.mu.Unlock()
	return s, nil
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// closeAll resets and drops every session.
func (r *registry) closeAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[uuid.UUID]*session.Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Reset()
	}
}
