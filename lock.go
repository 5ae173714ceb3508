package phoo

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// threadLock admits one compile or execute at a time per thread; waiters are
// admitted in the order they arrived.
type threadLock struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	holder *Guard
}

func (lk *threadLock) init() { lk.sem = semaphore.NewWeighted(1) }

func (lk *threadLock) holds(g *Guard) bool {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	return g != nil && lk.holder == g
}

// Guard is a scoped hold on a thread's lock. The context returned alongside
// it by Acquire carries the guard, so that compiles and executes made with
// that context, such as those of natives calling back into the thread, run
// under the same hold instead of waiting on it.
type Guard struct {
	th   *Thread
	once sync.Once
}

type guardKey struct{ th *Thread }

// Acquire waits for th's lock, returning a context carrying the hold and a
// guard that must be released. Acquiring again with a context that already
// carries a hold on th is a RaceConditionError.
func (th *Thread) Acquire(ctx context.Context) (context.Context, *Guard, error) {
	if g, ok := ctx.Value(guardKey{th}).(*Guard); ok {
		if th.lock.holds(g) {
			return ctx, nil, errorf(RaceConditionError, "thread lock is already held by this context")
		}
		return ctx, nil, errorf(RaceConditionError, "thread lock guard used after release")
	}
	if err := th.lock.sem.Acquire(ctx, 1); err != nil {
		return ctx, nil, interrupted(err)
	}
	g := &Guard{th: th}
	th.lock.mu.Lock()
	th.lock.holder = g
	th.lock.mu.Unlock()
	th.startRun(g)
	return context.WithValue(ctx, guardKey{th}, g), g, nil
}

// Release gives up the hold; only the first call has any effect.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		th := g.th
		th.endRun(g)
		th.lock.mu.Lock()
		th.lock.holder = nil
		th.lock.mu.Unlock()
		th.lock.sem.Release(1)
	})
}

// locked runs f under th's lock, reusing a hold carried by ctx. Top level
// calls run f under panic recovery.
func (th *Thread) locked(ctx context.Context, name string, f func(ctx context.Context) error) error {
	if g, ok := ctx.Value(guardKey{th}).(*Guard); ok {
		if !th.lock.holds(g) {
			return errorf(RaceConditionError, "thread lock guard used after release")
		}
		return f(ctx)
	}
	ctx, g, err := th.Acquire(ctx)
	if err != nil {
		return err
	}
	defer g.Release()
	return recoverRun(name, func() error { return f(ctx) })
}
