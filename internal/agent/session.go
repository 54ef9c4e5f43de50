package agent

import (
	"errors"
	"fmt"
	"sort"

	"halitebot.ai/internal/agent/tasks"
)

var ErrNotFound = errors.New("entity not found")

// Session is the only state carried from one turn to the next. It lives as
// long as one game and is owned by whoever calls Turn.
type Session struct {
	Tasks map[string]tasks.Task

	Turn      int
	Held      float64
	Spawned   int
	Converted int
}

func NewSession() *Session {
	return &Session{Tasks: map[string]tasks.Task{}}
}

func (s *Session) Task(unitID string) (tasks.Task, error) {
	t, ok := s.Tasks[unitID]
	if !ok {
		return nil, fmt.Errorf("%w: unit %q has no task", ErrNotFound, unitID)
	}
	return t, nil
}

func (s *Session) SetTask(unitID string, t tasks.Task) {
	if s.Tasks == nil {
		s.Tasks = map[string]tasks.Task{}
	}
	s.Tasks[unitID] = t
}

func (s *Session) Forget(unitID string) error {
	if _, ok := s.Tasks[unitID]; !ok {
		return fmt.Errorf("%w: unit %q", ErrNotFound, unitID)
	}
	delete(s.Tasks, unitID)
	return nil
}

// prune drops tasks of units that are no longer in play.
func (s *Session) prune(alive map[string]struct{}) {
	for id := range s.Tasks {
		if _, ok := alive[id]; !ok {
			delete(s.Tasks, id)
		}
	}
}

// TaskKinds maps each unit to the kind of its current task, for the turn log.
func (s *Session) TaskKinds() map[string]string {
	out := make(map[string]string, len(s.Tasks))
	for id, t := range s.Tasks {
		out[id] = string(t.Kind())
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
