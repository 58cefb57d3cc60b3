package btree

import (
	"sync"

	"github.com/clamshell-db/kvbtree/common"
)

// guard is a non-reentrancy check for this engine: concurrent or
// reentrant use is out of scope, so rather than coordinate it the engine
// detects and panics on it, the same way a misused sync.Mutex panics on
// double-unlock. Adapted from the original's LatchManager/PageLatch pair
// — per-page RWMutex locks coordinating concurrent traversal — collapsed
// down to one mutex's TryLock, the only primitive a non-reentrancy check
// needs once concurrent traversal itself is out of scope.
type guard struct {
	mu sync.Mutex
}

func newGuard() *guard {
	return &guard{}
}

// enter panics with common.ErrReentrantCall if the engine is already
// inside another call, including a concurrent call from another
// goroutine.
func (g *guard) enter() {
	if !g.mu.TryLock() {
		panic(common.ErrReentrantCall)
	}
}

func (g *guard) exit() {
	g.mu.Unlock()
}
