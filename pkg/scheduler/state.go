package scheduler

import "sync/atomic"

// schedulerState is an atomically-tracked current phase, mirroring the
// teacher's migrationState (pkg/migration/runner.go: stateInitial,
// stateCopyRows, ...) so the scheduler's status can be read concurrently
// with Run without a mutex.
type schedulerState int32

const (
	stateInitial schedulerState = iota
	stateDispatching
	stateDraining
	stateClosed
)

func (s schedulerState) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateDispatching:
		return "dispatching"
	case stateDraining:
		return "draining"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s *Scheduler) getCurrentState() schedulerState {
	return schedulerState(atomic.LoadInt32((*int32)(&s.currentState)))
}

func (s *Scheduler) setCurrentState(state schedulerState) {
	atomic.StoreInt32((*int32)(&s.currentState), int32(state))
}
