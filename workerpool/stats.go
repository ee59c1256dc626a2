package workerpool

import "time"

// PoolStats is a point-in-time snapshot of a Pool's composition and
// throughput, returned by Pool.Stats.
type PoolStats struct {
	Name               string
	Flavor             string
	TotalWorkers        int
	IdleWorkers         int
	BusyWorkers         int
	HibernatingWorkers  int
	PendingTasks        int
	ActiveTasks         int
	CompletedTasks      int64
	FailedTasks         int64
	AverageTaskDuration time.Duration
	Uptime              time.Duration
	LastHealthCheck     time.Time
}

// statsCounters holds the mutable counters a Pool updates under its
// mutex; PoolStats is derived from this plus live worker/task maps.
type statsCounters struct {
	completedTasks  int64
	failedTasks     int64
	averageTaskTime time.Duration
	lastHealthCheck time.Time
}

// recordCompletion counts a completed task and folds d into the running
// mean task duration: new_avg = old_avg + (d-old_avg)/n, with n the
// number of completed tasks (a cumulative mean, not an exponential one).
func (s *statsCounters) recordCompletion(d time.Duration) {
	s.completedTasks++
	n := s.completedTasks
	if n == 1 {
		s.averageTaskTime = d
		return
	}
	delta := d - s.averageTaskTime
	s.averageTaskTime += delta / time.Duration(n)
}

func (s *statsCounters) recordFailure() {
	s.failedTasks++
}
