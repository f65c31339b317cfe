package runner

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/aatumaykin/ocalt/internal/config"
)

// ErrJobBusy возвращается, когда предыдущий запуск той же задачи ещё идёт (политика skip)
var ErrJobBusy = errors.New("job is already running")

// Guard serialises runs of the same job according to the overlap policy:
// skip rejects a second run, queue waits for the first to finish, allow
// lets both share the window and the log.
type Guard struct {
	policy string

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// NewGuard creates a Guard with the given overlap policy.
func NewGuard(policy string) *Guard {
	return &Guard{policy: policy, sems: make(map[string]*semaphore.Weighted)}
}

// Acquire takes the job slot. The returned release func must be called
// once the run has reached a terminal state.
func (g *Guard) Acquire(ctx context.Context, key string) (func(), error) {
	if g.policy == config.OverlapAllow {
		return func() {}, nil
	}

	sem := g.semaphore(key)
	if g.policy == config.OverlapQueue {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	} else if !sem.TryAcquire(1) {
		return nil, ErrJobBusy
	}

	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }, nil
}

func (g *Guard) semaphore(key string) *semaphore.Weighted {
	g.mu.Lock()
	defer g.mu.Unlock()

	sem, ok := g.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		g.sems[key] = sem
	}
	return sem
}
