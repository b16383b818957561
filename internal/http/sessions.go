package http

import (
	"errors"
	"sync"

	"github.com/fyrsmithlabs/codepad/internal/shell"
)

var errSessionNotFound = errors.New("session not found")

// session pairs a shell session with the project it runs in. mu keeps
// command lines on one session from overlapping.
type session struct {
	mu        sync.Mutex
	projectID string
	shell     *shell.Session
}

type sessionRegistry struct {
	mu   sync.Mutex
	byID map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{byID: make(map[string]*session)}
}

func (r *sessionRegistry) open(projectID string) *session {
	s := &session{projectID: projectID, shell: shell.NewSession()}
	r.mu.Lock()
	r.byID[s.shell.ID] = s
	r.mu.Unlock()
	return s
}

func (r *sessionRegistry) get(id string) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, errSessionNotFound
	}
	return s, nil
}

func (r *sessionRegistry) close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return errSessionNotFound
	}
	delete(r.byID, id)
	return nil
}

// closeProject drops every session opened on projectID.
func (r *sessionRegistry) closeProject(projectID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.byID {
		if s.projectID == projectID {
			delete(r.byID, id)
			n++
		}
	}
	return n
}
