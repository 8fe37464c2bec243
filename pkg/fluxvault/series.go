package fluxvault

import (
	"sync"

	"github.com/norasector/fluxvault/pkg/protocol/frame"
)

// Series holds one append-only sequence of values per tag, in arrival order.
// Each value carries a position: its own index for transmitted values, the
// index of the request it answers for echoed values. Only the owning session
// appends; readers get copies.
type Series struct {
	mu        sync.RWMutex
	values    [frame.NumTags][]float32
	positions [frame.NumTags][]int
}

func NewSeries() *Series {
	return &Series{}
}

// Append records v at the next position.
func (s *Series) Append(tag frame.Tag, v float32) {
	if !tag.Valid() {
		return
	}
	s.mu.Lock()
	i := tag.Index()
	s.positions[i] = append(s.positions[i], len(s.values[i]))
	s.values[i] = append(s.values[i], v)
	s.mu.Unlock()
}

// AppendAt records v at an explicit position.
func (s *Series) AppendAt(tag frame.Tag, v float32, pos int) {
	if !tag.Valid() {
		return
	}
	s.mu.Lock()
	i := tag.Index()
	s.positions[i] = append(s.positions[i], pos)
	s.values[i] = append(s.values[i], v)
	s.mu.Unlock()
}

func (s *Series) Len(tag frame.Tag) int {
	if !tag.Valid() {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values[tag.Index()])
}

// Snapshot returns a copy of the values recorded for tag.
func (s *Series) Snapshot(tag frame.Tag) []float32 {
	if !tag.Valid() {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.values[tag.Index()]
	out := make([]float32, len(src))
	copy(out, src)
	return out
}

// Indexed returns copies of the positions and values recorded for tag.
func (s *Series) Indexed(tag frame.Tag) ([]int, []float32) {
	if !tag.Valid() {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := tag.Index()
	pos := make([]int, len(s.positions[i]))
	copy(pos, s.positions[i])
	vals := make([]float32, len(s.values[i]))
	copy(vals, s.values[i])
	return pos, vals
}

// SnapshotAll returns copies of every tag's values keyed by tag name.
func (s *Series) SnapshotAll() map[string][]float32 {
	out := make(map[string][]float32, frame.NumTags)
	for _, tag := range frame.Tags {
		out[tag.String()] = s.Snapshot(tag)
	}
	return out
}
