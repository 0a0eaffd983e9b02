package api

import (
	"sync"

	"github.com/gregtusar/volhedge/pkg/models"
	"github.com/gregtusar/volhedge/pkg/replay"
)

// RunStore holds the latest completed result per mode.
type RunStore struct {
	mu      sync.RWMutex
	order   []models.Mode
	results map[models.Mode]*replay.Result
}

func NewRunStore() *RunStore {
	return &RunStore{results: make(map[models.Mode]*replay.Result)}
}

func (s *RunStore) Put(results ...*replay.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range results {
		if _, ok := s.results[res.Mode]; !ok {
			s.order = append(s.order, res.Mode)
		}
		s.results[res.Mode] = res
	}
}

func (s *RunStore) Get(mode models.Mode) (*replay.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[mode]
	return res, ok
}

// List returns results in the order their modes were first stored.
func (s *RunStore) List() []*replay.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*replay.Result, 0, len(s.order))
	for _, m := range s.order {
		out = append(out, s.results[m])
	}
	return out
}
