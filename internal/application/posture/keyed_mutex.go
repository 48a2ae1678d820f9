package posture

import "sync"

// keyedMutex hands out one mutex per logical key so report read-modify-write
// cycles for the same tenant/agent serialize without blocking other tenants.
// Entries are kept for the life of the process; the key space is bounded by
// the number of active tenant/agent pairs.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
