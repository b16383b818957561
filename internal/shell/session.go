package shell

import (
	"sort"

	"github.com/google/uuid"
)

// DefaultEnvironment seeds every new Session.
var DefaultEnvironment = map[string]string{
	"HOME":     "/",
	"USER":     "developer",
	"SHELL":    "/bin/codepad",
	"PATH":     "/usr/local/bin:/usr/bin:/bin",
	"NODE_ENV": "development",
}

// Session is the state of one open terminal. It is not safe for concurrent
// use; callers serialize Execute calls on the same Session.
type Session struct {
	ID                string
	CurrentDirectory  string
	Environment       map[string]string
	History           []string
	InstalledPackages []string

	cursor int
	git    *gitState
}

// NewSession returns a Session rooted at "/" with the default environment.
func NewSession() *Session {
	env := make(map[string]string, len(DefaultEnvironment))
	for k, v := range DefaultEnvironment {
		env[k] = v
	}
	return &Session{
		ID:               uuid.NewString(),
		CurrentDirectory: "/",
		Environment:      env,
	}
}

func (s *Session) record(line string) {
	s.History = append(s.History, line)
	s.cursor = len(s.History)
}

// Previous moves the history cursor back one entry and returns it. ok is
// false when the history is empty; at the oldest entry it stays put.
func (s *Session) Previous() (line string, ok bool) {
	if len(s.History) == 0 {
		return "", false
	}
	if s.cursor > 0 {
		s.cursor--
	}
	return s.History[s.cursor], true
}

// Next moves the cursor forward. Stepping past the newest entry returns an
// empty line with ok false, the way a terminal clears the prompt.
func (s *Session) Next() (line string, ok bool) {
	if s.cursor >= len(s.History)-1 {
		s.cursor = len(s.History)
		return "", false
	}
	s.cursor++
	return s.History[s.cursor], true
}

// ResetCursor points the cursor past the newest entry.
func (s *Session) ResetCursor() { s.cursor = len(s.History) }

func (s *Session) addPackage(name string) {
	for _, p := range s.InstalledPackages {
		if p == name {
			return
		}
	}
	s.InstalledPackages = append(s.InstalledPackages, name)
}

func (s *Session) envKeys() []string {
	keys := make([]string, 0, len(s.Environment))
	for k := range s.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
