package policy

import "sync/atomic"

// Store holds the current frozen artifact. Reload swaps the whole Loaded
// value atomically, so in-flight requests always see one consistent policy.
type Store struct {
	current atomic.Pointer[Loaded]
}

func NewStore() *Store {
	return &Store{}
}

// NewStoreFromFile loads path and returns a store holding it.
func NewStoreFromFile(path string) (*Store, error) {
	s := NewStore()
	if err := s.Reload(path); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Current() (Loaded, error) {
	p := s.current.Load()
	if p == nil {
		return Loaded{}, ErrNoPolicy
	}
	return *p, nil
}

func (s *Store) Set(loaded Loaded) {
	s.current.Store(&loaded)
}

// Reload loads path and swaps it in. On error the previous artifact stays
// active.
func (s *Store) Reload(path string) error {
	loaded, err := Load(path)
	if err != nil {
		return err
	}
	s.current.Store(&loaded)
	return nil
}
