package mirror

import "github.com/brainsharer/annostore/store"

// Target is the state a Mirror keeps in sync.
type Target interface {
	// ToJSON returns the committed state.
	ToJSON() ([]byte, error)
	// Replace discards the current state and restores data.
	Replace(data []byte) error
	// OnChange registers fn for every local change.
	OnChange(fn func()) (remove func())
}

// StoreTarget adapts a store that nothing but the mirror touches while Run
// is active. Callers sharing a store across goroutines wrap it with their
// own locking, as annostore.DB does.
func StoreTarget(s *store.Store) Target {
	return storeTarget{s}
}

type storeTarget struct {
	s *store.Store
}

func (t storeTarget) ToJSON() ([]byte, error) {
	return t.s.ToJSON()
}

func (t storeTarget) Replace(data []byte) error {
	if err := t.s.Clear(); err != nil {
		return err
	}
	return t.s.RestoreState(data)
}

func (t storeTarget) OnChange(fn func()) func() {
	return t.s.Changed.Add(fn)
}
