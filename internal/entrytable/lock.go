package entrytable

import "sync"

// rwGuard wraps sync.RWMutex with the panic-recovery discipline described
// in withRecover: every critical section runs under recover() so a
// panicking writer releases the lock (via the deferred Unlock in each
// helper) instead of leaving it held, and the engine logs a recovery
// notice instead of aborting.
type rwGuard struct {
	mu sync.RWMutex
}

func (g *rwGuard) withWriteLock(op string, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	withRecover(op, fn)
}

func (g *rwGuard) withReadLock(op string, fn func()) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	withRecover(op, fn)
}
