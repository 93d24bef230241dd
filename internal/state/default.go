package state

import "sync/atomic"

// defaultStore holds the process-wide Store, installed explicitly by
// the composition root (cmd/fscserver/main.go) via SetDefault — never
// built implicitly via init().
var defaultStore atomic.Pointer[Store]

// SetDefault installs s as the process-wide Store.
func SetDefault(s *Store) {
	defaultStore.Store(s)
}

// Default returns the process-wide Store. Panics if SetDefault has not
// been called yet, since every caller of Default() is assumed to run
// after the composition root has finished wiring.
func Default() *Store {
	s := defaultStore.Load()
	if s == nil {
		panic("state: Default() called before SetDefault()")
	}
	return s
}
