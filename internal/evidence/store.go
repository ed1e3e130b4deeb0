package evidence

import (
	"fmt"
	"sort"

	"github.com/factgraph/factgraph/internal/model"
)

// Store provides read-only indexed access to normalized messages. Every
// pipeline stage cites evidence by message id through this interface.
type Store interface {
	// Get returns the message with the given id.
	Get(id string) (model.Message, bool)

	// Has reports whether the id resolves to a known message.
	Has(id string) bool

	// All returns every message ordered by timestamp, then id.
	All() []model.Message

	// Len returns the number of messages in the store.
	Len() int
}

// MemoryStore is an immutable in-memory Store. Messages are copied in at
// construction and never mutated afterwards.
type MemoryStore struct {
	byID  map[string]model.Message
	order []string
}

// NewMemoryStore builds a store from a message collection. Duplicate ids are
// a corpus defect and rejected outright.
func NewMemoryStore(messages []model.Message) (*MemoryStore, error) {
	s := &MemoryStore{
		byID:  make(map[string]model.Message, len(messages)),
		order: make([]string, 0, len(messages)),
	}
	for _, m := range messages {
		if m.ID == "" {
			return nil, fmt.Errorf("message with empty id")
		}
		if _, dup := s.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate message id %q", m.ID)
		}
		s.byID[m.ID] = m
		s.order = append(s.order, m.ID)
	}
	sort.SliceStable(s.order, func(i, j int) bool {
		a, b := s.byID[s.order[i]], s.byID[s.order[j]]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
	return s, nil
}

func (s *MemoryStore) Get(id string) (model.Message, bool) {
	m, ok := s.byID[id]
	return m, ok
}

func (s *MemoryStore) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *MemoryStore) All() []model.Message {
	out := make([]model.Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *MemoryStore) Len() int {
	return len(s.byID)
}

// Resolve maps a set of evidence ids to their messages, failing on the first
// id that does not resolve.
func Resolve(s Store, ids []string) ([]model.Message, error) {
	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		m, ok := s.Get(id)
		if !ok {
			return nil, fmt.Errorf("evidence cites unknown message id %q", id)
		}
		out = append(out, m)
	}
	return out, nil
}
