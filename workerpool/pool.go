package workerpool

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.dataops.dev/dlog"
	"go.dataops.dev/uuidv7"
)

// Pool is a generic worker pool supporting two execution flavors behind
// one API: FlavorGoroutine runs submitted closures in-process;
// FlavorProcess dispatches to a pool of long-lived helper subprocesses.
// Concurrency is a single mutex plus one condition variable broadcast
// on every state change that might unblock a waiter (worker released,
// task submitted, shutdown requested); task execution itself runs
// unlocked so a slow task never stalls bookkeeping.
type Pool struct {
	cfg    Config
	flavor Flavor
	log    *logrus.Entry

	mu   sync.Mutex
	cond *sync.Cond

	createdAt    time.Time
	shuttingDown bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	available   []*workerRecord
	busy        map[WorkerID]*workerRecord
	hibernating map[WorkerID]*workerRecord
	all         map[WorkerID]*workerRecord

	pending taskHeap
	active  map[TaskID]*task
	byID    map[TaskID]*task
	taskSeq uint64

	stats statsCounters
}

// NewPool constructs a Pool in the given flavor. For FlavorProcess,
// cfg.ProcessCommand must be set.
func NewPool(flavor Flavor, cfg Config) (*Pool, error) {
	if flavor == FlavorProcess && cfg.ProcessCommand == nil {
		return nil, ErrProcessCommandRequired
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 10 * time.Second
	}
	p := &Pool{
		cfg:         cfg,
		flavor:      flavor,
		log:         dlog.For("workerpool." + cfg.Name),
		createdAt:   time.Now(),
		available:   make([]*workerRecord, 0, cfg.MaxWorkers),
		busy:        make(map[WorkerID]*workerRecord),
		hibernating: make(map[WorkerID]*workerRecord),
		all:         make(map[WorkerID]*workerRecord),
		active:      make(map[TaskID]*task),
		byID:        make(map[TaskID]*task),
	}
	p.cond = sync.NewCond(&p.mu)
	heap.Init(&p.pending)
	return p, nil
}

// Start ensures the configured minimum worker count and launches the
// background health-check, warmup, and hibernation loops.
func (p *Pool) Start(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.cfg.MinWorkers; i++ {
		if _, err := p.addWorker(); err != nil {
			p.log.Warnf("failed to start minimum worker: %v", err)
			break
		}
	}

	p.wg.Add(1)
	go p.dispatcherLoop(bgCtx)

	if p.cfg.HealthCheckInterval > 0 {
		p.wg.Add(1)
		go p.healthCheckLoop(bgCtx)
	}
	if p.cfg.WarmupInterval > 0 {
		p.wg.Add(1)
		go p.warmupLoop(bgCtx)
	}
	if p.cfg.EnableHibernation && p.cfg.HibernationDelay > 0 {
		p.wg.Add(1)
		go p.hibernationLoop(bgCtx)
	}
	return nil
}

// Shutdown stops accepting new work, wakes every waiter, destroys all
// workers, and waits for background loops to exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.shuttingDown = true
	p.cond.Broadcast()
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	workers := make([]*workerRecord, 0, len(p.all))
	for _, wr := range p.all {
		workers = append(workers, wr)
	}
	p.all = make(map[WorkerID]*workerRecord)
	p.available = nil
	p.busy = make(map[WorkerID]*workerRecord)
	p.hibernating = make(map[WorkerID]*workerRecord)
	p.mu.Unlock()

	for _, wr := range workers {
		p.destroyWorker(wr)
	}
	return nil
}

// Submit enqueues fn for FlavorGoroutine execution and returns its
// TaskID immediately; use GetResult to block on completion.
func (p *Pool) Submit(fn TaskFunc, opts Options) (TaskID, error) {
	return p.submit(&task{fn: fn, priority: opts.Priority, timeout: opts.Timeout})
}

// SubmitRef behaves like Submit but resolves fn from the package-level
// function registry by name, mirroring the "module:function" lookup
// the Python process pool performs in its child interpreter.
func (p *Pool) SubmitRef(ref string, opts Options) (TaskID, error) {
	fn, ok := lookupFunc(ref)
	if !ok {
		return "", ErrNoFuncRegistered
	}
	return p.submit(&task{fn: fn, priority: opts.Priority, timeout: opts.Timeout})
}

// SubmitProcess enqueues spec for FlavorProcess execution.
func (p *Pool) SubmitProcess(spec ProcessSpec, opts Options) (TaskID, error) {
	return p.submit(&task{proc: spec, priority: opts.Priority, timeout: opts.Timeout})
}

func (p *Pool) submit(t *task) (TaskID, error) {
	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		return "", ErrShuttingDown
	}
	t.id = TaskID(uuidv7.New())
	p.taskSeq++
	t.seq = p.taskSeq
	t.state = TaskPending
	t.submitted = time.Now()
	t.done = make(chan struct{})
	heap.Push(&p.pending, t)
	p.byID[t.id] = t
	p.cond.Broadcast()
	p.mu.Unlock()
	return t.id, nil
}

// GetResult blocks until task id completes, fails, or ctx is done.
func (p *Pool) GetResult(ctx context.Context, id TaskID) (any, error) {
	p.mu.Lock()
	t, ok := p.byID[id]
	p.mu.Unlock()
	if !ok {
		return nil, ErrTaskNotFound
	}
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AcquireWorker checks out a worker for exclusive use by the caller
// (e.g. the graph adapter pinning traversal calls to one session).
// Release it with ReleaseWorker when done.
func (p *Pool) AcquireWorker(ctx context.Context, timeout time.Duration) (WorkerID, error) {
	if timeout <= 0 {
		timeout = p.cfg.AcquireTimeout
	}
	id, _, err := p.acquire(ctx, timeout)
	return id, err
}

// ReleaseWorker returns a checked-out worker to the pool, retiring it
// first if its lifecycle policy (TTL, task count, error rate) says so.
func (p *Pool) ReleaseWorker(id WorkerID) {
	p.mu.Lock()
	wr, ok := p.busy[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.busy, id)
	wr.state = StateIdle
	wr.currentTask = ""

	retire := wr.shouldRetire(p.cfg)
	if retire {
		delete(p.all, id)
	} else {
		p.available = append(p.available, wr)
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	if retire {
		p.destroyWorker(wr)
	}
}

// Stats returns a point-in-time snapshot of pool composition and
// throughput.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Name:                p.cfg.Name,
		Flavor:              p.flavor.String(),
		TotalWorkers:        len(p.all),
		IdleWorkers:         len(p.available),
		BusyWorkers:         len(p.busy),
		HibernatingWorkers:  len(p.hibernating),
		PendingTasks:        p.pending.Len(),
		ActiveTasks:         len(p.active),
		CompletedTasks:      p.stats.completedTasks,
		FailedTasks:         p.stats.failedTasks,
		AverageTaskDuration: p.stats.averageTaskTime,
		Uptime:              time.Since(p.createdAt),
		LastHealthCheck:     p.stats.lastHealthCheck,
	}
}
