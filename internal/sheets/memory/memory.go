// Package memory is an in-process mirror used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"duorico/internal/core"
)

type Store struct {
	mu    sync.Mutex
	items map[string]core.Transaction
	order []string
}

func New() *Store {
	return &Store{items: map[string]core.Transaction{}}
}

// Append stores the transaction keyed by id and returns a synthetic row
// reference. Re-appending an id overwrites the stored copy.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.items[t.ID] = t
	return fmt.Sprintf("mem:%s", t.ID), nil
}

// Remove drops the listed ids. Unknown ids are ignored.
func (s *Store) Remove(_ context.Context, transactionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range transactionIDs {
		if _, ok := s.items[id]; !ok {
			continue
		}
		delete(s.items, id)
		for i, got := range s.order {
			if got == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

// All returns the mirrored transactions in append order.
func (s *Store) All() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}
